package stream

import (
	"errors"
	"strings"
)

// ErrUnknownFile reports a chunk or descriptor referencing a file id that no
// lookup (exact, normalized, filename) could resolve. Callers drop the chunk
// and keep the session alive.
var ErrUnknownFile = errors.New("no file registered for id")

// idPrefix is the server's optional file-id prefix. The server and client
// have been observed to disagree on whether it is present, so lookups try
// both forms.
const idPrefix = "file-"

// Engine tracks every in-flight file of one response and reconstructs their
// content as chunks and descriptors arrive. Insertion order is display order.
type Engine struct {
	files map[string]*File
	order []string
}

// NewEngine returns an empty assembly engine.
func NewEngine() *Engine {
	return &Engine{files: make(map[string]*File)}
}

// Start registers a file announced by a file_start frame and returns it. The
// second return value is false when the id was already registered: duplicate
// file_start frames are tolerated as no-ops, never errors.
func (e *Engine) Start(meta FileMeta) (*File, bool) {
	if existing, ok := e.files[meta.ID]; ok {
		return existing, false
	}

	f := &File{
		ID:           meta.ID,
		Filename:     meta.Filename,
		Extension:    meta.Extension,
		Language:     meta.Language,
		Type:         meta.Type,
		State:        FileStreaming,
		IsExecutable: meta.IsExecutable,
		MimeType:     meta.MimeType,
	}
	f.InferMeta()
	e.insert(f)
	return f, true
}

// RegisterDescriptor materializes a file from an inline descriptor. A
// descriptor naming an already-known id or filename updates that file
// (last-write-wins); otherwise a new, immediately finalized file is created.
// The second return value reports whether a new file was created.
func (e *Engine) RegisterDescriptor(d *FileDescriptor) (*File, bool) {
	f, ok := e.resolveDescriptor(d)
	created := false
	if !ok {
		id := d.ID
		if id == "" {
			id = NewFileID()
		}
		f = &File{ID: id, Filename: d.Filename}
		e.insert(f)
		created = true
	}

	if d.Filename != "" {
		f.Filename = d.Filename
	}
	if d.Language != "" {
		f.Language = d.Language
	}
	if d.Type != "" {
		f.Type = d.Type
	}
	if d.MimeType != "" {
		f.MimeType = d.MimeType
	}
	if d.IsExecutable {
		f.IsExecutable = true
	}

	if len(d.Sections) > 0 {
		f.Sections = d.Sections
		f.Content = ReconstructFromSections(d.Sections)
	} else if d.HasContent {
		f.Content = d.Content
	}
	f.InferMeta()

	// Inline descriptors arrive whole, so the file is complete on arrival.
	f.State = FileFinalized
	return f, created
}

// AppendRaw concatenates a plain-text chunk onto the file's content.
func (e *Engine) AppendRaw(fileID, chunk string, isComplete bool) (*File, error) {
	f, ok := e.Lookup(fileID)
	if !ok {
		return nil, ErrUnknownFile
	}
	f.Content += chunk
	if isComplete {
		f.State = FileFinalized
	}
	return f, nil
}

// ApplySectioned replaces the file's content with a reconstruction of the
// given sectioned descriptor, delivered via a file_chunk payload.
func (e *Engine) ApplySectioned(fileID string, d *FileDescriptor, isComplete bool) (*File, error) {
	f, ok := e.Lookup(fileID)
	if !ok {
		// The descriptor itself may name the file.
		f, ok = e.resolveDescriptor(d)
	}
	if !ok {
		return nil, ErrUnknownFile
	}

	if d.Filename != "" {
		f.Filename = d.Filename
	}
	if d.Language != "" {
		f.Language = d.Language
	}
	if len(d.Sections) > 0 {
		f.Sections = d.Sections
		f.Content = ReconstructFromSections(d.Sections)
	} else if d.HasContent {
		f.Content = d.Content
	}
	f.InferMeta()

	if isComplete {
		f.State = FileFinalized
	}
	return f, nil
}

// Finalize marks the file as no longer streaming. Idempotent; unknown ids are
// ignored.
func (e *Engine) Finalize(fileID string) {
	if f, ok := e.Lookup(fileID); ok {
		f.State = FileFinalized
	}
}

// FinalizeAll marks every file as finalized, used when the whole response
// completes.
func (e *Engine) FinalizeAll() {
	for _, id := range e.order {
		e.files[id].State = FileFinalized
	}
}

// Add inserts an externally built file (e.g. the result of a partial-update
// merge) into the registry.
func (e *Engine) Add(f *File) {
	if _, ok := e.files[f.ID]; ok {
		return
	}
	e.insert(f)
}

// Lookup resolves a file id, tolerating id-format disagreement between
// server and client: exact match, then the id with the "file-" prefix
// stripped or added, then a filename match among in-flight files.
func (e *Engine) Lookup(id string) (*File, bool) {
	if id == "" {
		return nil, false
	}
	if f, ok := e.files[id]; ok {
		return f, true
	}
	if stripped := strings.TrimPrefix(id, idPrefix); stripped != id {
		if f, ok := e.files[stripped]; ok {
			return f, true
		}
	} else if f, ok := e.files[idPrefix+id]; ok {
		return f, true
	}
	for _, fid := range e.order {
		f := e.files[fid]
		if f.IsStreaming() && f.Filename == id {
			return f, true
		}
	}
	return nil, false
}

// ByFilename returns the most recently registered file with the given name.
func (e *Engine) ByFilename(name string) (*File, bool) {
	for i := len(e.order) - 1; i >= 0; i-- {
		f := e.files[e.order[i]]
		if f.Filename == name {
			return f, true
		}
	}
	return nil, false
}

// Files returns all files in insertion (display) order.
func (e *Engine) Files() []*File {
	out := make([]*File, 0, len(e.order))
	for _, id := range e.order {
		out = append(out, e.files[id])
	}
	return out
}

// Len returns the number of registered files.
func (e *Engine) Len() int {
	return len(e.order)
}

func (e *Engine) insert(f *File) {
	e.files[f.ID] = f
	e.order = append(e.order, f.ID)
}

// resolveDescriptor finds the file a descriptor refers to. Merged records
// are never resolution targets: a refined or re-detected descriptor lands on
// the base record, so an applied update is not silently overwritten.
func (e *Engine) resolveDescriptor(d *FileDescriptor) (*File, bool) {
	if d.ID != "" {
		if f, ok := e.Lookup(d.ID); ok && !f.IsUpdate {
			return f, true
		}
	}
	if d.Filename != "" {
		for i := len(e.order) - 1; i >= 0; i-- {
			f := e.files[e.order[i]]
			if f.Filename == d.Filename && !f.IsUpdate {
				return f, true
			}
		}
	}
	return nil, false
}
