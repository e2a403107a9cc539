package relay

import (
	"context"
	"errors"
	"testing"

	"consult-scribe-service/internal/service/stt"
)

type recordingSink struct {
	results [][]stt.Segment
	errors  []string
	ends    int
}

func (s *recordingSink) OnResults(segs []stt.Segment) { s.results = append(s.results, segs) }
func (s *recordingSink) OnError(code string, err error) { s.errors = append(s.errors, code) }
func (s *recordingSink) OnEnd()                         { s.ends++ }

func TestRecognizer_ForwardsEvents(t *testing.T) {
	r := New()
	sink := &recordingSink{}

	r.PushResults([]stt.Segment{{Text: "dropped"}})
	if len(sink.results) != 0 {
		t.Fatal("events before Start must not reach the sink")
	}

	if err := r.Start(context.Background(), stt.Options{}, sink); err != nil {
		t.Fatalf("Start: %v", err)
	}
	r.PushResults([]stt.Segment{{Text: "hello", Final: true}})
	r.PushError(stt.CodeNetwork)
	r.PushEnd()

	if len(sink.results) != 1 || sink.results[0][0].Text != "hello" {
		t.Errorf("unexpected results: %v", sink.results)
	}
	if len(sink.errors) != 1 || sink.errors[0] != stt.CodeNetwork {
		t.Errorf("unexpected errors: %v", sink.errors)
	}
	if sink.ends != 1 {
		t.Errorf("expected one end, got %d", sink.ends)
	}
}

func TestRecognizer_DeliversAfterStop(t *testing.T) {
	r := New()
	sink := &recordingSink{}
	_ = r.Start(context.Background(), stt.Options{}, sink)
	_ = r.Stop()

	r.PushResults([]stt.Segment{{Text: "late", Final: true}})

	if len(sink.results) != 1 {
		t.Error("expected in-flight result after Stop to be delivered")
	}
	if r.Running() {
		t.Error("expected handle stopped")
	}
}

func TestRecognizer_StartTwice(t *testing.T) {
	r := New()
	_ = r.Start(context.Background(), stt.Options{}, &recordingSink{})

	if err := r.Start(context.Background(), stt.Options{}, &recordingSink{}); !errors.Is(err, stt.ErrAlreadyStarted) {
		t.Errorf("expected ErrAlreadyStarted, got %v", err)
	}
	_ = r.Stop()
	if err := r.Start(context.Background(), stt.Options{}, &recordingSink{}); err != nil {
		t.Errorf("restart after Stop: %v", err)
	}
}

func TestRecognizer_AvailabilityAndPermission(t *testing.T) {
	r := New()
	r.SetAvailable(false)
	if err := r.Start(context.Background(), stt.Options{}, &recordingSink{}); !errors.Is(err, stt.ErrUnsupported) {
		t.Errorf("expected ErrUnsupported, got %v", err)
	}

	r.SetAvailable(true)
	r.SetPermission(false)
	if err := r.RequestPermission(context.Background()); !errors.Is(err, stt.ErrPermissionDenied) {
		t.Errorf("expected ErrPermissionDenied, got %v", err)
	}
	r.SetPermission(true)
	if err := r.RequestPermission(context.Background()); err != nil {
		t.Errorf("expected permission granted, got %v", err)
	}
}
