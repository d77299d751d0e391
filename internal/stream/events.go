package stream

import "encoding/json"

// Event types recognized on the wire. Any other event type is sniffed for a
// completion-looking payload and otherwise ignored, so the protocol can grow
// without breaking older clients.
const (
	EventTextChunk      = "text_chunk"
	EventFileStart      = "file_start"
	EventFileChunk      = "file_chunk"
	EventStreamComplete = "stream_complete"
	EventComplete       = "complete"
	EventDone           = "done"
	EventError          = "error"
	EventProgress       = "progress"
)

// TextChunkPayload is the payload of a text_chunk frame. Accumulated, when
// present, is an authoritative cumulative snapshot and wins over Chunk.
type TextChunkPayload struct {
	Chunk       string  `json:"chunk,omitempty"`
	Accumulated *string `json:"accumulated,omitempty"`
}

// FileMeta is the server-declared metadata carried by a file_start frame.
type FileMeta struct {
	ID           string `json:"id"`
	Filename     string `json:"filename"`
	Extension    string `json:"extension,omitempty"`
	Language     string `json:"language,omitempty"`
	Type         string `json:"type,omitempty"`
	IsExecutable bool   `json:"is_executable,omitempty"`
	MimeType     string `json:"mime_type,omitempty"`
}

// FileStartPayload is the payload of a file_start frame.
type FileStartPayload struct {
	File FileMeta `json:"file"`
}

// FileChunkPayload is the payload of a file_chunk frame. Chunk may itself be
// a serialized sectioned-file or partial-update descriptor; Classify decides.
type FileChunkPayload struct {
	FileID     string `json:"file_id"`
	Chunk      string `json:"chunk,omitempty"`
	IsComplete bool   `json:"is_complete,omitempty"`
}

// FileSummary is the per-file metadata echoed back in a completion frame.
type FileSummary struct {
	ID       string `json:"id"`
	Filename string `json:"filename"`
}

// CompletePayload is the payload of a stream_complete/complete frame. Files
// and ModelUsed are server-echoed metadata.
type CompletePayload struct {
	Response  string        `json:"response,omitempty"`
	Files     []FileSummary `json:"files,omitempty"`
	ModelUsed string        `json:"model_used,omitempty"`
}

// ErrorPayload is the payload of an error frame.
type ErrorPayload struct {
	Error string `json:"error"`
}

// looksComplete inspects an unrecognized frame payload for a
// complete/done/finished boolean, so completion signalled under a novel event
// name still terminates the session.
func looksComplete(data string) bool {
	var probe map[string]json.RawMessage
	if err := json.Unmarshal([]byte(data), &probe); err != nil {
		return false
	}
	for _, key := range []string{"complete", "done", "finished"} {
		raw, ok := probe[key]
		if !ok {
			continue
		}
		var b bool
		if err := json.Unmarshal(raw, &b); err == nil && b {
			return true
		}
	}
	return false
}
