// Package relay adapts a recognizer that runs on the client (the browser's
// speech engine) and forwards its events over the capture websocket.
package relay

import (
	"context"
	"sync"

	"consult-scribe-service/internal/service/stt"
)

// Recognizer implements stt.Recognizer by forwarding pushed events to the sink.
// Events pushed after Stop are still delivered; the capture engine decides
// whether they belong to the current session.
type Recognizer struct {
	mu         sync.Mutex
	sink       stt.Sink
	running    bool
	available  bool
	permission error
}

// New creates a relay recognizer for a client that reported an engine.
func New() *Recognizer {
	return &Recognizer{available: true}
}

// SetAvailable records whether the client has a speech engine.
func (r *Recognizer) SetAvailable(ok bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.available = ok
}

// SetPermission records the client's microphone permission outcome.
func (r *Recognizer) SetPermission(granted bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if granted {
		r.permission = nil
	} else {
		r.permission = stt.ErrPermissionDenied
	}
}

// Available reports whether the client has a speech engine.
func (r *Recognizer) Available() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.available
}

// RequestPermission returns the outcome reported by the client.
func (r *Recognizer) RequestPermission(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	return r.permission
}

// Start attaches sink. The client is expected to start its engine on receipt
// of the recording state.
func (r *Recognizer) Start(ctx context.Context, opts stt.Options, sink stt.Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.available {
		return stt.ErrUnsupported
	}
	if r.running {
		return stt.ErrAlreadyStarted
	}
	r.running = true
	r.sink = sink
	return nil
}

// Stop marks the handle stopped.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.running = false
	return nil
}

// Running reports whether the handle is started.
func (r *Recognizer) Running() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.running
}

// PushResults forwards a client result event.
func (r *Recognizer) PushResults(segs []stt.Segment) {
	if sink := r.current(); sink != nil {
		sink.OnResults(segs)
	}
}

// PushError forwards a client error event.
func (r *Recognizer) PushError(code string) {
	if sink := r.current(); sink != nil {
		sink.OnError(code, nil)
	}
}

// PushEnd forwards the client's end event.
func (r *Recognizer) PushEnd() {
	if sink := r.current(); sink != nil {
		sink.OnEnd()
	}
}

func (r *Recognizer) current() stt.Sink {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sink
}
