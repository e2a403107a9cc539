// Package stt defines the interface for speech recognizers feeding a capture session.
package stt

import (
	"context"
	"errors"
)

// Recognizer error codes, shared by every provider.
const (
	CodeNoSpeech          = "no-speech"
	CodeNotAllowed        = "not-allowed"
	CodeServiceNotAllowed = "service-not-allowed"
	CodeAborted           = "aborted"
	CodeNetwork           = "network"
	CodeAudioCapture      = "audio-capture"
)

var (
	// ErrUnsupported means the environment has no recognizer at all.
	ErrUnsupported = errors.New("speech recognition unsupported")
	// ErrAlreadyStarted is returned by Start on a handle that is still running.
	ErrAlreadyStarted = errors.New("recognizer already started")
	// ErrPermissionDenied is returned when microphone access is refused.
	ErrPermissionDenied = errors.New("microphone permission denied")
)

// Segment is one recognition hypothesis. Interim segments may be revised;
// final segments are immutable.
type Segment struct {
	Text       string
	Final      bool
	Confidence float64
}

// Options configures a recognition session.
type Options struct {
	Locale         string
	Continuous     bool
	InterimResults bool
}

// Sink receives recognizer events. A recognizer delivers events for one
// session from a single goroutine, in arrival order.
type Sink interface {
	// OnResults delivers the segments carried by one recognizer event.
	OnResults(segments []Segment)

	// OnError reports a recognizer error by code. err may be nil.
	OnError(code string, err error)

	// OnEnd signals the recognizer handle has finished.
	OnEnd()
}

// Recognizer is a speech recognition handle (browser relay, Google, mock).
type Recognizer interface {
	// Start begins a session delivering events to sink.
	Start(ctx context.Context, opts Options, sink Sink) error

	// Stop asks the recognizer to finish. Events already in flight may still arrive.
	Stop() error
}

// AudioRecognizer accepts raw audio frames pushed by the caller.
type AudioRecognizer interface {
	Recognizer
	SendAudio(ctx context.Context, audio []byte) error
}

// PermissionRequester is implemented by recognizers that must obtain
// microphone access before starting.
type PermissionRequester interface {
	RequestPermission(ctx context.Context) error
}

// Availability is implemented by recognizers that can detect a missing engine.
type Availability interface {
	Available() bool
}

// Factory builds a fresh recognizer handle for one consultation.
// A nil recognizer with a nil error means capture is unavailable.
type Factory func(ctx context.Context) (Recognizer, error)
