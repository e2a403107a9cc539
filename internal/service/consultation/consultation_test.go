package consultation

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"consult-scribe-service/internal/models"
	"consult-scribe-service/internal/record"
	"consult-scribe-service/internal/service/capture"
	"consult-scribe-service/internal/service/document"
	"consult-scribe-service/internal/service/extract"
)

type extractFunc func(ctx context.Context, text string) (record.Record, error)

type fakeExtractor struct {
	mu    sync.Mutex
	fn    extractFunc
	calls []string
}

func (f *fakeExtractor) Extract(ctx context.Context, text string) (record.Record, error) {
	f.mu.Lock()
	f.calls = append(f.calls, text)
	fn := f.fn
	f.mu.Unlock()
	return fn(ctx, text)
}

func (f *fakeExtractor) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func recordFor(name string) record.Record {
	r := record.Default()
	r.Patient.Name = name
	return r
}

func fixed(name string) extractFunc {
	return func(context.Context, string) (record.Record, error) {
		return recordFor(name), nil
	}
}

type fakePublisher struct {
	mu          sync.Mutex
	transcripts []models.TranscriptFinal
	records     []models.RecordExtracted
	err         error
}

func (p *fakePublisher) PublishTranscript(_ context.Context, ev models.TranscriptFinal) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.transcripts = append(p.transcripts, ev)
	return p.err
}

func (p *fakePublisher) PublishRecord(_ context.Context, ev models.RecordExtracted) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.records = append(p.records, ev)
	return p.err
}

type fakeCapture struct {
	supported bool
	state     capture.State
	text      string
	stopErr   error
	starts    int
	cancels   int
}

func (c *fakeCapture) Supported() bool      { return c.supported }
func (c *fakeCapture) State() capture.State { return c.state }
func (c *fakeCapture) Start(context.Context) error {
	c.starts++
	c.state = capture.StateRecording
	return nil
}
func (c *fakeCapture) Stop(context.Context) (string, error) {
	c.state = capture.StateIdle
	return c.text, c.stopErr
}
func (c *fakeCapture) Cancel() {
	c.cancels++
	c.state = capture.StateIdle
}

func TestSubmitManual_AppliesRecord(t *testing.T) {
	ex := &fakeExtractor{fn: fixed("María López")}
	pub := &fakePublisher{}
	at := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)
	c := New(ex, WithPublisher(pub), WithID("c-1"), WithClock(func() time.Time { return at }))

	rec, err := c.SubmitManual(context.Background(), "Patient María López, 32 years old")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Patient.Name != "María López" {
		t.Errorf("unexpected record %+v", rec.Patient)
	}

	snap, ok := c.Editor().Snapshot()
	if !ok || snap.Patient.Name != "María López" {
		t.Errorf("expected editor to hold the record, got %+v (loaded=%v)", snap.Patient, ok)
	}
	if c.Transcript() != "Patient María López, 32 years old" {
		t.Errorf("unexpected transcript %q", c.Transcript())
	}
	if c.Generation() != 1 {
		t.Errorf("expected generation 1, got %d", c.Generation())
	}

	if len(pub.transcripts) != 1 || len(pub.records) != 1 {
		t.Fatalf("expected one event each, got %d and %d", len(pub.transcripts), len(pub.records))
	}
	tr := pub.transcripts[0]
	if tr.ConsultationID != "c-1" || tr.Source != models.SourceManual || tr.WordCount != 6 || tr.Timestamp != at.UnixMilli() {
		t.Errorf("unexpected transcript event %+v", tr)
	}
	if pub.records[0].Generation != 1 || pub.records[0].Record.Patient.Name != "María López" {
		t.Errorf("unexpected record event %+v", pub.records[0])
	}
}

func TestSubmitManual_EmptyRejected(t *testing.T) {
	ex := &fakeExtractor{fn: fixed("x")}
	pub := &fakePublisher{}
	c := New(ex, WithPublisher(pub))

	for _, text := range []string{"", "   ", "\n\t"} {
		if _, err := c.SubmitManual(context.Background(), text); !errors.Is(err, extract.ErrEmptyTranscript) {
			t.Errorf("%q: expected ErrEmptyTranscript, got %v", text, err)
		}
	}
	if ex.callCount() != 0 {
		t.Error("extractor must not be called for blank input")
	}
	if len(pub.transcripts) != 0 {
		t.Error("no events expected for blank input")
	}
	if c.Generation() != 0 {
		t.Error("blank input must not advance the generation")
	}
}

func TestSubmit_ExtractionErrorKeepsEditor(t *testing.T) {
	xerr := &extract.Error{Kind: extract.KindRateLimited, Err: errors.New("429")}
	ex := &fakeExtractor{fn: fixed("First")}
	pub := &fakePublisher{}
	c := New(ex, WithPublisher(pub))

	if _, err := c.SubmitManual(context.Background(), "first"); err != nil {
		t.Fatal(err)
	}
	ex.fn = func(context.Context, string) (record.Record, error) { return record.Record{}, xerr }

	_, err := c.SubmitManual(context.Background(), "second")
	if !extract.IsKind(err, extract.KindRateLimited) {
		t.Fatalf("expected rate limited error, got %v", err)
	}
	snap, _ := c.Editor().Snapshot()
	if snap.Patient.Name != "First" {
		t.Errorf("failed extraction must keep the previous record, got %q", snap.Patient.Name)
	}
	if c.Transcript() != "first" {
		t.Errorf("unexpected transcript %q", c.Transcript())
	}
	if len(pub.records) != 1 {
		t.Errorf("expected only the first record event, got %d", len(pub.records))
	}
}

func TestSubmit_NewerSupersedesOlder(t *testing.T) {
	started := make(chan struct{})
	var canceled bool
	ex := &fakeExtractor{}
	ex.fn = func(ctx context.Context, text string) (record.Record, error) {
		if text == "old" {
			close(started)
			<-ctx.Done()
			canceled = true
			return record.Record{}, ctx.Err()
		}
		return recordFor("New"), nil
	}
	c := New(ex)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.SubmitManual(context.Background(), "old")
		errCh <- err
	}()
	<-started

	rec, err := c.SubmitManual(context.Background(), "new")
	if err != nil {
		t.Fatalf("newer submission failed: %v", err)
	}
	if rec.Patient.Name != "New" {
		t.Errorf("unexpected record %q", rec.Patient.Name)
	}

	if err := <-errCh; !errors.Is(err, ErrStaleResult) {
		t.Errorf("expected ErrStaleResult for the older submission, got %v", err)
	}
	if !canceled {
		t.Error("expected the older extraction to be cancelled")
	}
	snap, _ := c.Editor().Snapshot()
	if snap.Patient.Name != "New" {
		t.Errorf("editor must hold the newer record, got %q", snap.Patient.Name)
	}
}

func TestSubmit_LateResultDiscarded(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	ex := &fakeExtractor{}
	ex.fn = func(ctx context.Context, text string) (record.Record, error) {
		if text == "old" {
			close(started)
			<-release
			return recordFor("Old"), nil
		}
		return recordFor("New"), nil
	}
	pub := &fakePublisher{}
	c := New(ex, WithPublisher(pub))

	errCh := make(chan error, 1)
	go func() {
		_, err := c.SubmitManual(context.Background(), "old")
		errCh <- err
	}()
	<-started

	if _, err := c.SubmitManual(context.Background(), "new"); err != nil {
		t.Fatal(err)
	}
	close(release)

	if err := <-errCh; !errors.Is(err, ErrStaleResult) {
		t.Fatalf("expected ErrStaleResult, got %v", err)
	}
	snap, _ := c.Editor().Snapshot()
	if snap.Patient.Name != "New" {
		t.Errorf("late result overwrote the editor: %q", snap.Patient.Name)
	}
	if c.Transcript() != "new" {
		t.Errorf("unexpected transcript %q", c.Transcript())
	}
	if len(pub.records) != 1 || pub.records[0].Generation != 2 {
		t.Errorf("expected a single record event for generation 2, got %+v", pub.records)
	}
}

func TestCancel_DiscardsInFlight(t *testing.T) {
	started := make(chan struct{})
	ex := &fakeExtractor{}
	ex.fn = func(ctx context.Context, text string) (record.Record, error) {
		close(started)
		<-ctx.Done()
		return recordFor("Late"), nil
	}
	c := New(ex)

	errCh := make(chan error, 1)
	go func() {
		_, err := c.SubmitManual(context.Background(), "text")
		errCh <- err
	}()
	<-started
	c.Cancel()

	if err := <-errCh; !errors.Is(err, ErrStaleResult) {
		t.Fatalf("expected ErrStaleResult, got %v", err)
	}
	if _, ok := c.Editor().Snapshot(); ok {
		t.Error("cancelled extraction must not load a record")
	}
}

func TestStopCapture_SubmitsVoiceTranscript(t *testing.T) {
	ex := &fakeExtractor{fn: fixed("Juan")}
	pub := &fakePublisher{}
	cp := &fakeCapture{supported: true, text: "patient Juan has a headache"}
	c := New(ex, WithCapture(cp), WithPublisher(pub))

	if err := c.StartCapture(context.Background()); err != nil {
		t.Fatal(err)
	}
	rec, err := c.StopCapture(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if rec.Patient.Name != "Juan" {
		t.Errorf("unexpected record %+v", rec.Patient)
	}
	if len(ex.calls) != 1 || ex.calls[0] != "patient Juan has a headache" {
		t.Errorf("unexpected extractor calls %v", ex.calls)
	}
	if pub.transcripts[0].Source != models.SourceVoice {
		t.Errorf("expected voice source, got %q", pub.transcripts[0].Source)
	}
}

func TestStopCapture_NoSpeech(t *testing.T) {
	ex := &fakeExtractor{fn: fixed("x")}
	cp := &fakeCapture{supported: true, stopErr: capture.ErrNoSpeechDetected}
	c := New(ex, WithCapture(cp))

	_ = c.StartCapture(context.Background())
	if _, err := c.StopCapture(context.Background()); !errors.Is(err, capture.ErrNoSpeechDetected) {
		t.Fatalf("expected ErrNoSpeechDetected, got %v", err)
	}
	if ex.callCount() != 0 {
		t.Error("extractor must not be called without speech")
	}
}

func TestStartCapture_Unsupported(t *testing.T) {
	ex := &fakeExtractor{fn: fixed("x")}

	tests := []struct {
		name string
		opts []Option
	}{
		{"no capture", nil},
		{"unsupported capture", []Option{WithCapture(&fakeCapture{supported: false})}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := New(ex, tt.opts...)
			if c.CaptureSupported() {
				t.Error("expected capture to be unsupported")
			}
			if err := c.StartCapture(context.Background()); !errors.Is(err, capture.ErrCaptureUnsupported) {
				t.Errorf("expected ErrCaptureUnsupported, got %v", err)
			}
			if _, err := c.SubmitManual(context.Background(), "manual entry"); err != nil {
				t.Errorf("manual fallback failed: %v", err)
			}
		})
	}
}

func TestReset(t *testing.T) {
	ex := &fakeExtractor{fn: fixed("María")}
	cp := &fakeCapture{supported: true}
	c := New(ex, WithCapture(cp), WithID("first"))

	if _, err := c.SubmitManual(context.Background(), "text"); err != nil {
		t.Fatal(err)
	}
	c.Reset()

	if _, ok := c.Editor().Snapshot(); ok {
		t.Error("expected the record to be discarded")
	}
	if c.Transcript() != "" {
		t.Error("expected transcript to be cleared")
	}
	if c.ID() == "first" || c.ID() == "" {
		t.Errorf("expected a new consultation id, got %q", c.ID())
	}
	if cp.cancels != 1 {
		t.Errorf("expected capture to be cancelled once, got %d", cp.cancels)
	}
}

func TestDocument(t *testing.T) {
	ex := &fakeExtractor{fn: fixed("Ana")}
	c := New(ex)

	if _, err := c.Document(document.DefaultOptions()); !errors.Is(err, record.ErrNoRecord) {
		t.Fatalf("expected ErrNoRecord, got %v", err)
	}

	if _, err := c.SubmitManual(context.Background(), "text"); err != nil {
		t.Fatal(err)
	}
	if err := c.Editor().SetField(record.FieldDiagnosis, "Migraine"); err != nil {
		t.Fatal(err)
	}

	doc, err := c.Document(document.DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if doc.PageCount() < 1 || doc.PatientName != "Ana" {
		t.Errorf("unexpected document %d pages for %q", doc.PageCount(), doc.PatientName)
	}
	found := false
	for _, l := range doc.Lines() {
		if l == "Migraine" {
			found = true
		}
	}
	if !found {
		t.Error("document must reflect the edited record")
	}
}

func TestPublisherErrorDoesNotFailSubmission(t *testing.T) {
	ex := &fakeExtractor{fn: fixed("x")}
	c := New(ex, WithPublisher(&fakePublisher{err: errors.New("broker down")}))

	if _, err := c.SubmitManual(context.Background(), "text"); err != nil {
		t.Errorf("expected success despite publish failure, got %v", err)
	}
}
