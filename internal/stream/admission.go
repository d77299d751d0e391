package stream

import (
	"context"
	"errors"
	"sync"
)

// ErrBusy reports that a send was refused because a session is already
// active. Overlapping streams are rejected at the boundary, never queued.
var ErrBusy = errors.New("another response is already streaming")

// Tracker is the single-session admission slot. It is the only shared
// mutable resource in this subsystem: written by the orchestrator at session
// start/end, read by the send entry point.
type Tracker struct {
	mu        sync.Mutex
	sessionID string
	cancel    context.CancelFunc
	canceled  bool
}

// Reserve claims the slot for the given session id. Returns false (and
// leaves the slot untouched) if another session holds it.
func (t *Tracker) Reserve(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionID != "" {
		return false
	}
	t.sessionID = sessionID
	t.cancel = nil
	t.canceled = false
	return true
}

// SetCancel attaches the cancel function for the reserved session. Returns
// false if the slot is no longer held by sessionID.
func (t *Tracker) SetCancel(sessionID string, cancel context.CancelFunc) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionID != sessionID {
		return false
	}
	t.cancel = cancel
	return true
}

// Clear releases the slot if sessionID still holds it.
func (t *Tracker) Clear(sessionID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.sessionID != sessionID {
		return
	}
	t.sessionID = ""
	t.cancel = nil
	t.canceled = false
}

// Cancel aborts the active session. With a non-empty target it only cancels
// that session. Returns whether a cancellation was issued.
func (t *Tracker) Cancel(target string) bool {
	t.mu.Lock()
	if t.sessionID == "" {
		t.mu.Unlock()
		return false
	}
	if target != "" && t.sessionID != target {
		t.mu.Unlock()
		return false
	}
	cancel := t.cancel
	t.canceled = true
	t.mu.Unlock()
	if cancel != nil {
		cancel()
	}
	return true
}

// WasCanceled reports whether the given session was canceled by the user.
func (t *Tracker) WasCanceled(sessionID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID == sessionID && t.canceled
}

// Active reports whether any session currently holds the slot.
func (t *Tracker) Active() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.sessionID != ""
}
