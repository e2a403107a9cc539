// Package capture turns recognizer events into a canonical consultation
// transcript and drives the recording state machine.
package capture

import (
	"errors"
	"fmt"
	"sync"
)

// State represents the capture session state.
type State int

const (
	// StateIdle - no recognizer handle is active.
	StateIdle State = iota
	// StateRequestingPermission - waiting on microphone access.
	StateRequestingPermission
	// StateRecording - recognizer events are accepted.
	StateRecording
	// StateStopping - stop was requested; late events are still accepted
	// until the settle delay elapses.
	StateStopping
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateRequestingPermission:
		return "REQUESTING_PERMISSION"
	case StateRecording:
		return "RECORDING"
	case StateStopping:
		return "STOPPING"
	default:
		return fmt.Sprintf("UNKNOWN(%d)", s)
	}
}

// IsActive returns true when a recognizer handle may be running.
func (s State) IsActive() bool {
	return s != StateIdle
}

// acceptsEvents reports whether recognizer events are applied in this state.
func (s State) acceptsEvents() bool {
	return s == StateRequestingPermission || s == StateRecording || s == StateStopping
}

// ErrInvalidTransition is returned for transitions outside the lifecycle graph.
var ErrInvalidTransition = errors.New("invalid capture state transition")

// Lifecycle enforces the capture state graph. Thread-safe.
//
//	IDLE → REQUESTING_PERMISSION → RECORDING → STOPPING → IDLE
//	                 │                 │
//	                 └──── denied ─────┴── error ──→ IDLE
//
// Any active state may go back to REQUESTING_PERMISSION when a new session
// replaces the current one.
type Lifecycle struct {
	mu    sync.RWMutex
	state State
}

// NewLifecycle creates a lifecycle in IDLE.
func NewLifecycle() *Lifecycle {
	return &Lifecycle{state: StateIdle}
}

// State returns the current state.
func (l *Lifecycle) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.state
}

// Transition moves to next and returns the previous state.
func (l *Lifecycle) Transition(next State) (State, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	prev := l.state
	if !allowed(prev, next) {
		return prev, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, prev, next)
	}
	l.state = next
	return prev, nil
}

func allowed(from, to State) bool {
	switch from {
	case StateIdle:
		return to == StateRequestingPermission
	case StateRequestingPermission:
		return to == StateRecording || to == StateIdle || to == StateRequestingPermission
	case StateRecording:
		return to == StateStopping || to == StateIdle || to == StateRequestingPermission
	case StateStopping:
		return to == StateIdle || to == StateRequestingPermission
	default:
		return false
	}
}
