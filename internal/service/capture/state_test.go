package capture

import (
	"errors"
	"testing"

	"consult-scribe-service/internal/service/stt"
)

func TestLifecycle_InitialState(t *testing.T) {
	lc := NewLifecycle()

	if lc.State() != StateIdle {
		t.Errorf("expected StateIdle, got %v", lc.State())
	}
	if lc.State().IsActive() {
		t.Error("expected idle to be inactive")
	}
}

func TestLifecycle_Transitions(t *testing.T) {
	tests := []struct {
		name    string
		path    []State
		wantErr bool
	}{
		{"normal session", []State{StateRequestingPermission, StateRecording, StateStopping, StateIdle}, false},
		{"permission denied", []State{StateRequestingPermission, StateIdle}, false},
		{"error while recording", []State{StateRequestingPermission, StateRecording, StateIdle}, false},
		{"restart while recording", []State{StateRequestingPermission, StateRecording, StateRequestingPermission}, false},
		{"restart while stopping", []State{StateRequestingPermission, StateRecording, StateStopping, StateRequestingPermission}, false},
		{"idle to recording", []State{StateRecording}, true},
		{"idle to stopping", []State{StateStopping}, true},
		{"permission to stopping", []State{StateRequestingPermission, StateStopping}, true},
		{"stopping to recording", []State{StateRequestingPermission, StateRecording, StateStopping, StateRecording}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			lc := NewLifecycle()
			var err error
			for _, s := range tt.path {
				if _, err = lc.Transition(s); err != nil {
					break
				}
			}
			if tt.wantErr && !errors.Is(err, ErrInvalidTransition) {
				t.Errorf("expected ErrInvalidTransition, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Errorf("unexpected error: %v", err)
			}
		})
	}
}

func TestState_String(t *testing.T) {
	tests := []struct {
		state State
		want  string
	}{
		{StateIdle, "IDLE"},
		{StateRequestingPermission, "REQUESTING_PERMISSION"},
		{StateRecording, "RECORDING"},
		{StateStopping, "STOPPING"},
		{State(42), "UNKNOWN(42)"},
	}
	for _, tt := range tests {
		if got := tt.state.String(); got != tt.want {
			t.Errorf("State(%d).String() = %q, want %q", tt.state, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	if _, ok := Classify(stt.CodeAborted, nil); ok {
		t.Error("aborted must be ignored")
	}

	for _, code := range []string{stt.CodeNoSpeech, stt.CodeNotAllowed, stt.CodeServiceNotAllowed, stt.CodeNetwork, stt.CodeAudioCapture, "other"} {
		ce, ok := Classify(code, nil)
		if !ok || ce.Code != code || ce.Hint == "" {
			t.Errorf("Classify(%q) = %+v, %v", code, ce, ok)
		}
	}

	ce, _ := Classify("language-not-supported", nil)
	if ce.Hint != "Speech recognition error: language-not-supported" {
		t.Errorf("unexpected generic hint %q", ce.Hint)
	}
}

func TestTranscript(t *testing.T) {
	var tr Transcript
	tr.AppendFinal("hello")
	tr.AppendFinal("world")

	if tr.Raw() != "hello world " {
		t.Errorf("unexpected raw %q", tr.Raw())
	}
	if tr.Text() != "hello world" {
		t.Errorf("unexpected text %q", tr.Text())
	}
	if tr.Segments() != 2 {
		t.Errorf("expected 2 segments, got %d", tr.Segments())
	}
	if WordCount(tr.Text()) != 2 {
		t.Errorf("expected 2 words, got %d", WordCount(tr.Text()))
	}
	tr.Reset()
	if tr.Text() != "" || tr.Segments() != 0 {
		t.Error("expected empty transcript after reset")
	}
}
