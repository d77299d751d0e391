// Package sse splits a raw event stream into discrete (event, data) frames.
//
// The wire convention is the SSE-like one used by the chat backend: an
// "event: <type>" line sets the event type for every following "data:" line
// until the next "event:" line arrives. Blank lines and unknown field lines
// are ignored. Payload parsing (JSON or otherwise) is the caller's concern.
package sse

import (
	"bytes"
	"strings"
)

// DoneSentinel is the literal data payload that marks immediate stream
// completion regardless of the current event type.
const DoneSentinel = "[DONE]"

// Frame is one (eventType, payload) pair extracted from the stream.
type Frame struct {
	Event string
	Data  string
}

// Done reports whether the frame carries the terminal [DONE] sentinel.
func (f Frame) Done() bool {
	return f.Data == DoneSentinel
}

// Parser incrementally splits stream bytes into frames. The trailing partial
// line stays buffered until more input arrives, so a chunk boundary in the
// middle of a line (or of a multi-byte rune) never produces a truncated
// frame.
type Parser struct {
	buffer    []byte
	eventType string
}

// NewParser creates a parser with no pending state.
func NewParser() *Parser {
	return &Parser{}
}

// Feed appends chunk to the parser's buffer and returns all frames completed
// by it, in order.
func (p *Parser) Feed(chunk []byte) []Frame {
	if len(chunk) == 0 {
		return nil
	}
	p.buffer = append(p.buffer, chunk...)

	var frames []Frame
	for {
		idx := bytes.IndexByte(p.buffer, '\n')
		if idx == -1 {
			break
		}
		line := string(p.buffer[:idx])
		p.buffer = p.buffer[idx+1:]

		if f, ok := p.consumeLine(line); ok {
			frames = append(frames, f)
		}
	}
	return frames
}

// Flush processes any buffered partial line as if the stream had ended with a
// newline. Call once when the transport signals end-of-stream.
func (p *Parser) Flush() []Frame {
	if len(p.buffer) == 0 {
		return nil
	}
	line := string(p.buffer)
	p.buffer = nil
	if f, ok := p.consumeLine(line); ok {
		return []Frame{f}
	}
	return nil
}

// EventType returns the pending event type (the last "event:" line seen).
func (p *Parser) EventType() string {
	return p.eventType
}

func (p *Parser) consumeLine(line string) (Frame, bool) {
	line = strings.TrimSuffix(line, "\r")

	if strings.HasPrefix(line, "event:") {
		p.eventType = strings.TrimSpace(line[len("event:"):])
		return Frame{}, false
	}

	if strings.HasPrefix(line, "data:") {
		data := strings.TrimSpace(line[len("data:"):])
		return Frame{Event: p.eventType, Data: data}, true
	}

	// Blank lines and anything else carry no dispatchable payload.
	return Frame{}, false
}
