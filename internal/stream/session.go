package stream

import (
	"encoding/json"
	"errors"

	"github.com/google/uuid"

	"github.com/youruser/weft/internal/logging"
	"github.com/youruser/weft/internal/sse"
)

var log = logging.Get()

// State is the session's lifecycle state. Complete, Failed and Aborted are
// terminal; frames arriving afterwards are dropped.
type State int

const (
	StateIdle State = iota
	StateAwaitingFirstByte
	StateStreaming
	StateComplete
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingFirstByte:
		return "awaiting_first_byte"
	case StateStreaming:
		return "streaming"
	case StateComplete:
		return "complete"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	default:
		return "unknown"
	}
}

// Merger applies a partial update to an existing file, producing a new file
// record and leaving the source untouched.
type Merger interface {
	Apply(f *File, u *UpdateDescriptor) (*File, error)
}

// Hooks is the observer contract the session fulfils toward its renderer.
// Any hook may be nil.
type Hooks struct {
	OnFirstContent    func()
	OnTextUpdated     func(displayText string)
	OnFileRegistered  func(f *File)
	OnFileUpdated     func(f *File)
	OnProgress        func(raw json.RawMessage)
	OnSessionComplete func(finalText string, files []*File)
	OnSessionError    func(err error)
	OnSessionAborted  func()
}

// Session owns all per-response state: the accumulated text, the file
// registry and the lifecycle state machine. One session exists per
// outstanding request; all mutation happens on the caller's goroutine, one
// frame at a time.
type Session struct {
	ID string

	state          State
	acc            Accumulator
	engine         *Engine
	merger         Merger
	hooks          Hooks
	displayText     string
	firstFired      bool
	err             error
	appliedUpdates  map[string]bool // raw update substrings already merged
	seenDescriptors map[string]bool // raw descriptor substrings already registered
}

// NewSession creates an idle session. merger may be nil, in which case
// partial updates are dropped with a log entry.
func NewSession(merger Merger, hooks Hooks) *Session {
	return &Session{
		ID:              uuid.New().String(),
		engine:          NewEngine(),
		merger:          merger,
		hooks:           hooks,
		appliedUpdates:  make(map[string]bool),
		seenDescriptors: make(map[string]bool),
	}
}

// Begin transitions the session out of idle, just before the request is
// dispatched.
func (s *Session) Begin() {
	if s.state == StateIdle {
		s.state = StateAwaitingFirstByte
	}
}

// State returns the current lifecycle state.
func (s *Session) State() State {
	return s.state
}

// Text returns the stripped, user-visible response text so far.
func (s *Session) Text() string {
	return s.displayText
}

// RawText returns the accumulated text including embedded descriptors.
func (s *Session) RawText() string {
	return s.acc.Text()
}

// Files returns every file known to the session, in display order.
func (s *Session) Files() []*File {
	return s.engine.Files()
}

// Err returns the error that failed the session, if any.
func (s *Session) Err() error {
	return s.err
}

// SeedFile preloads a file from an earlier turn so partial updates in this
// session can resolve it. Must be called before the first frame.
func (s *Session) SeedFile(f *File) {
	s.engine.Add(f)
}

func (s *Session) terminal() bool {
	return s.state == StateComplete || s.state == StateFailed || s.state == StateAborted
}

// HandleFrame dispatches one parsed frame. Malformed payloads are dropped
// with a log entry and never terminate the session; only transport-level
// conditions (Fail, Abort) and completion frames do.
func (s *Session) HandleFrame(fr sse.Frame) {
	if s.terminal() {
		log.Debug("Session %s: dropping late frame %q in state %s", s.ID, fr.Event, s.state)
		return
	}
	if s.state == StateIdle || s.state == StateAwaitingFirstByte {
		s.state = StateStreaming
	}

	log.Frame(fr.Event, fr.Data)

	if fr.Done() {
		s.complete(nil)
		return
	}

	switch fr.Event {
	case EventTextChunk:
		s.handleText(fr.Data)
	case EventFileStart:
		s.handleFileStart(fr.Data)
	case EventFileChunk:
		s.handleFileChunk(fr.Data)
	case EventStreamComplete, EventComplete:
		var p CompletePayload
		if err := json.Unmarshal([]byte(fr.Data), &p); err != nil {
			log.Debug("Session %s: unparseable completion payload: %v", s.ID, err)
			s.complete(nil)
			return
		}
		s.complete(&p)
	case EventDone:
		s.complete(nil)
	case EventError:
		var p ErrorPayload
		msg := fr.Data
		if err := json.Unmarshal([]byte(fr.Data), &p); err == nil && p.Error != "" {
			msg = p.Error
		}
		s.Fail(errors.New(msg))
	case EventProgress:
		if s.hooks.OnProgress != nil {
			s.hooks.OnProgress(json.RawMessage(fr.Data))
		}
	default:
		// Unknown event types are tolerated; some servers signal
		// completion under novel names.
		if looksComplete(fr.Data) {
			s.complete(nil)
			return
		}
		log.Debug("Session %s: ignoring unrecognized event %q", s.ID, fr.Event)
	}
}

// FinishEOF synthesizes completion when the transport closed without an
// explicit completion frame, so the caller is never left hanging.
func (s *Session) FinishEOF() {
	if s.terminal() {
		return
	}
	log.Info("Session %s: transport ended without completion frame, synthesizing", s.ID)
	s.complete(nil)
}

// Fail terminates the session on a transport-level error. Called at most
// once; later calls are no-ops.
func (s *Session) Fail(err error) {
	if s.terminal() {
		return
	}
	s.state = StateFailed
	s.err = err
	log.Error("Session %s failed: %v", s.ID, err)
	if s.hooks.OnSessionError != nil {
		s.hooks.OnSessionError(err)
	}
}

// Abort terminates the session on user cancellation. Safe to call at any
// point; a no-op once the session is terminal or still idle.
func (s *Session) Abort() {
	if s.terminal() || s.state == StateIdle {
		return
	}
	s.state = StateAborted
	log.Info("Session %s aborted", s.ID)
	if s.hooks.OnSessionAborted != nil {
		s.hooks.OnSessionAborted()
	}
}

func (s *Session) handleText(data string) {
	var p TextChunkPayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		log.Debug("Session %s: dropping malformed text_chunk: %v", s.ID, err)
		return
	}

	_, first := s.acc.Ingest(p.Chunk, p.Accumulated)
	if first {
		s.signalFirst()
	}
	s.rescan()
}

func (s *Session) handleFileStart(data string) {
	var p FileStartPayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		log.Debug("Session %s: dropping malformed file_start: %v", s.ID, err)
		return
	}
	if p.File.ID == "" && p.File.Filename == "" {
		log.Debug("Session %s: dropping file_start with no id or filename", s.ID)
		return
	}

	s.signalFirst()
	f, created := s.engine.Start(p.File)
	if created {
		log.Stream("file_start", f.Filename)
		if s.hooks.OnFileRegistered != nil {
			s.hooks.OnFileRegistered(f)
		}
	}
}

func (s *Session) handleFileChunk(data string) {
	var p FileChunkPayload
	if err := json.Unmarshal([]byte(data), &p); err != nil {
		log.Debug("Session %s: dropping malformed file_chunk: %v", s.ID, err)
		return
	}

	// First content is only signaled once a chunk actually lands somewhere;
	// a dropped chunk must not materialize the message container.
	switch c := Classify(p.Chunk); c.Kind {
	case KindPartialUpdate:
		if !s.appliedUpdates[p.Chunk] {
			s.appliedUpdates[p.Chunk] = true
			if s.applyUpdate(c.Update) {
				s.signalFirst()
			}
		}
		if p.IsComplete {
			s.engine.Finalize(p.FileID)
		}

	case KindFileDescriptor:
		f, err := s.engine.ApplySectioned(p.FileID, c.File, p.IsComplete)
		if err != nil {
			log.Debug("Session %s: dropping sectioned chunk for %q: %v", s.ID, p.FileID, err)
			return
		}
		s.signalFirst()
		if s.hooks.OnFileUpdated != nil {
			s.hooks.OnFileUpdated(f)
		}

	default:
		f, err := s.engine.AppendRaw(p.FileID, p.Chunk, p.IsComplete)
		if err != nil {
			// Out-of-order or unknown chunk: reportable, never fatal.
			log.Debug("Session %s: dropping chunk for unknown file %q", s.ID, p.FileID)
			return
		}
		s.signalFirst()
		if s.hooks.OnFileUpdated != nil {
			s.hooks.OnFileUpdated(f)
		}
	}
}

// rescan re-runs embedded descriptor detection over the full accumulated
// text. It runs on every text chunk so a descriptor renders as soon as its
// JSON closes, not only at stream completion. Each descriptor and update is
// consumed exactly once, keyed on its matched raw substring: the text keeps
// containing it on every later scan, and reprocessing it would overwrite
// whatever merges have landed since.
func (s *Session) rescan() {
	res := Scan(s.acc.Text())

	for _, df := range res.Files {
		if s.seenDescriptors[df.Raw] {
			continue
		}
		s.seenDescriptors[df.Raw] = true
		s.registerDetected(df)
	}
	for _, du := range res.Updates {
		if s.appliedUpdates[du.Raw] {
			continue
		}
		s.appliedUpdates[du.Raw] = true
		s.applyUpdate(du.Update)
	}

	if res.Stripped != s.displayText {
		s.displayText = res.Stripped
		if s.hooks.OnTextUpdated != nil {
			s.hooks.OnTextUpdated(s.displayText)
		}
	}
}

func (s *Session) registerDetected(df DetectedFile) {
	prior, existed := s.engine.resolveDescriptor(df.Desc)
	priorContent := ""
	if existed {
		priorContent = prior.Content
	}

	f, created := s.engine.RegisterDescriptor(df.Desc)
	if created {
		log.Stream("embedded_file", f.Filename)
		if s.hooks.OnFileRegistered != nil {
			s.hooks.OnFileRegistered(f)
		}
		return
	}
	if f.Content != priorContent && s.hooks.OnFileUpdated != nil {
		s.hooks.OnFileUpdated(f)
	}
}

// applyUpdate merges a partial update onto its target and reports whether a
// merge landed.
func (s *Session) applyUpdate(u *UpdateDescriptor) bool {
	target, ok := s.engine.ByFilename(u.Filename)
	if !ok {
		// The file may live in an earlier turn; resolving that is the
		// caller's concern. Within the session it is a non-fatal miss.
		log.Info("Session %s: partial update targets unknown file %q", s.ID, u.Filename)
		return false
	}
	if s.merger == nil {
		log.Info("Session %s: no merger wired, dropping partial update for %q", s.ID, u.Filename)
		return false
	}

	merged, err := s.merger.Apply(target, u)
	if err != nil {
		log.Error("Session %s: partial update for %q failed: %v", s.ID, u.Filename, err)
		return false
	}
	s.engine.Add(merged)
	log.Stream("partial_update", u.Filename)
	if s.hooks.OnFileUpdated != nil {
		s.hooks.OnFileUpdated(merged)
	}
	return true
}

// complete finishes the session exactly once. A completion payload carrying a
// final response snapshot is ingested before finalizing, so the last text and
// any descriptor that only closed in it are still picked up.
func (s *Session) complete(p *CompletePayload) {
	if s.terminal() {
		return
	}

	if p != nil && p.Response != "" {
		_, first := s.acc.Ingest("", &p.Response)
		if first {
			s.signalFirst()
		}
		s.rescan()
	}

	s.engine.FinalizeAll()
	s.state = StateComplete
	log.Stream("complete", s.displayText)
	if s.hooks.OnSessionComplete != nil {
		s.hooks.OnSessionComplete(s.displayText, s.engine.Files())
	}
}

func (s *Session) signalFirst() {
	if s.firstFired {
		return
	}
	s.firstFired = true
	if s.hooks.OnFirstContent != nil {
		s.hooks.OnFirstContent()
	}
}
