package capture

import (
	"errors"
	"fmt"

	"consult-scribe-service/internal/service/stt"
)

var (
	// ErrCaptureUnsupported is terminal for the session; callers fall back to manual text.
	ErrCaptureUnsupported = errors.New("speech capture is not supported in this environment")
	// ErrNoSpeechDetected is returned by Stop when the finalized transcript is blank.
	ErrNoSpeechDetected = errors.New("no speech detected")
	// ErrNotRecording is returned by Stop outside of a recording session.
	ErrNotRecording = errors.New("capture is not recording")
	// ErrRecoverable matches every *Error with errors.Is.
	ErrRecoverable = errors.New("recoverable capture error")
)

// Error is a recognizer error surfaced to the user with a hint.
// The session returns to idle; the user may start again.
type Error struct {
	Code string
	Hint string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("capture error %s: %v", e.Code, e.Err)
	}
	return "capture error " + e.Code
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool { return target == ErrRecoverable }

// Classify maps a recognizer error code to a user-facing error.
// It returns false for codes that must be ignored (user-initiated aborts).
func Classify(code string, err error) (*Error, bool) {
	var hint string
	switch code {
	case stt.CodeAborted:
		return nil, false
	case stt.CodeNoSpeech:
		hint = "No speech was detected. Speak closer to the microphone."
	case stt.CodeNotAllowed, stt.CodeServiceNotAllowed:
		hint = "Microphone access was denied. Allow microphone access in your browser settings and try again."
	case stt.CodeNetwork:
		hint = "Network error during speech recognition. Check your connection."
	case stt.CodeAudioCapture:
		hint = "No microphone was found. Check that a microphone is connected."
	default:
		hint = "Speech recognition error: " + code
	}
	return &Error{Code: code, Hint: hint, Err: err}, true
}
