package stream

// Accumulator merges incoming text deltas into a single growing response
// string. A server-supplied cumulative snapshot always wins over
// chunk-concatenation, which makes repeated snapshots idempotent.
type Accumulator struct {
	text     string
	signaled bool
}

// Ingest applies one text event and returns the current full text. The second
// return value is true exactly once per session: on the first call after which
// the accumulated text is non-empty, so the caller can materialize its message
// container lazily. An empty snapshot still replaces the text but does not
// count as content.
//
// Policy, in priority order: a non-nil snapshot replaces the accumulated text
// verbatim; otherwise a non-empty chunk is appended; otherwise the call is a
// no-op.
func (a *Accumulator) Ingest(chunk string, snapshot *string) (string, bool) {
	switch {
	case snapshot != nil:
		a.text = *snapshot
	case chunk != "":
		a.text += chunk
	}

	first := false
	if a.text != "" && !a.signaled {
		a.signaled = true
		first = true
	}
	return a.text, first
}

// Text returns the accumulated text so far.
func (a *Accumulator) Text() string {
	return a.text
}
