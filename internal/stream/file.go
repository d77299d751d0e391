package stream

import (
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

// FileState tracks a file's assembly lifecycle within a session.
type FileState int

const (
	FileRegistered FileState = iota
	FileStreaming
	FileFinalized
)

func (s FileState) String() string {
	switch s {
	case FileRegistered:
		return "registered"
	case FileStreaming:
		return "streaming"
	case FileFinalized:
		return "finalized"
	default:
		return "unknown"
	}
}

// Section is one named fragment of a sectioned file. StartLine of 0 means the
// server declared no position; such sections keep their encounter order.
type Section struct {
	Name      string `json:"name"`
	Content   string `json:"content"`
	StartLine int    `json:"start_line,omitempty"`
}

// File is a file reconstructed (or being reconstructed) from a response
// stream. Content always holds the best-known complete-so-far rendering;
// callers never concatenate fragments themselves.
type File struct {
	ID           string    `json:"id"`
	Filename     string    `json:"filename"`
	Language     string    `json:"language,omitempty"`
	Extension    string    `json:"extension,omitempty"`
	Type         string    `json:"type,omitempty"` // "code", "document", "image", "binary"
	Content      string    `json:"content"`
	Sections     []Section `json:"sections,omitempty"` // present only for sectioned delivery
	State        FileState `json:"state"`
	IsExecutable bool      `json:"is_executable,omitempty"`
	MimeType     string    `json:"mime_type,omitempty"`

	// Set on files produced by a partial update. The source file is left
	// untouched as history.
	IsUpdate       bool   `json:"is_update,omitempty"`
	OriginalFileID string `json:"original_file_id,omitempty"`
}

// IsStreaming reports whether the file is still receiving chunks.
func (f *File) IsStreaming() bool {
	return f.State == FileStreaming
}

// NewFileID returns a fresh client-side file identifier, used for files
// derived from partial updates.
func NewFileID() string {
	return "weft-" + uuid.New().String()
}

// InferMeta fills Extension, Language and Type from the filename where the
// server declared none. Server-declared values always win.
func (f *File) InferMeta() {
	if f.Extension == "" {
		f.Extension = strings.TrimPrefix(filepath.Ext(f.Filename), ".")
	}
	if f.Language == "" {
		f.Language = languageForExtension(f.Extension)
	}
	if f.Type == "" {
		f.Type = typeForExtension(f.Extension)
	}
}

func languageForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case "js", "mjs":
		return "javascript"
	case "ts":
		return "typescript"
	case "py":
		return "python"
	case "go":
		return "go"
	case "rb":
		return "ruby"
	case "css":
		return "css"
	case "html", "htm":
		return "html"
	case "json":
		return "json"
	case "md":
		return "markdown"
	case "sh", "bash":
		return "shell"
	case "sql":
		return "sql"
	case "yaml", "yml":
		return "yaml"
	default:
		return ""
	}
}

func typeForExtension(ext string) string {
	switch strings.ToLower(ext) {
	case "png", "jpg", "jpeg", "gif", "svg", "webp", "bmp", "ico":
		return "image"
	case "pdf", "zip", "tar", "gz", "exe", "bin", "wasm":
		return "binary"
	case "md", "txt", "rst", "adoc":
		return "document"
	default:
		return "code"
	}
}
