// Package consultation ties one capture session, one extraction in flight and
// the editable record together for a single consultation.
package consultation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"consult-scribe-service/internal/models"
	"consult-scribe-service/internal/observability/logging"
	"consult-scribe-service/internal/observability/metrics"
	"consult-scribe-service/internal/record"
	"consult-scribe-service/internal/service/capture"
	"consult-scribe-service/internal/service/document"
	"consult-scribe-service/internal/service/extract"
)

// ErrStaleResult is returned by a submission whose result was superseded by a
// newer submission, a Cancel or a Reset. The editor is left untouched.
var ErrStaleResult = errors.New("extraction result superseded")

// Capture is the capture session a consultation drives.
type Capture interface {
	Supported() bool
	State() capture.State
	Start(ctx context.Context) error
	Stop(ctx context.Context) (string, error)
	Cancel()
}

// Extractor turns a transcript into a record.
type Extractor interface {
	Extract(ctx context.Context, transcript string) (record.Record, error)
}

// Publisher receives consultation events.
type Publisher interface {
	PublishTranscript(ctx context.Context, ev models.TranscriptFinal) error
	PublishRecord(ctx context.Context, ev models.RecordExtracted) error
}

// Option configures a Consultation.
type Option func(*Consultation)

// WithCapture attaches a capture session. Without one, StartCapture reports
// capture.ErrCaptureUnsupported and only manual submission is available.
func WithCapture(c Capture) Option {
	return func(cs *Consultation) { cs.capture = c }
}

// WithPublisher sets the event publisher.
func WithPublisher(p Publisher) Option {
	return func(cs *Consultation) { cs.publisher = p }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(cs *Consultation) { cs.metrics = m }
}

// WithID sets the consultation id instead of generating one.
func WithID(id string) Option {
	return func(cs *Consultation) { cs.id = id }
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(cs *Consultation) { cs.now = now }
}

// Consultation is safe for concurrent use.
type Consultation struct {
	capture   Capture
	extractor Extractor
	publisher Publisher
	editor    *record.Editor
	metrics   *metrics.Metrics
	now       func() time.Time
	log       zerolog.Logger

	mu         sync.Mutex
	id         string
	generation uint64
	cancel     context.CancelFunc
	transcript string
}

// New creates a consultation around an extractor.
func New(extractor Extractor, opts ...Option) *Consultation {
	c := &Consultation{
		extractor: extractor,
		editor:    record.NewEditor(),
		metrics:   metrics.DefaultMetrics,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.id == "" {
		c.id = uuid.NewString()
	}
	c.log = logging.WithConsultation(c.id)
	return c
}

// ID returns the current consultation id. Reset assigns a new one.
func (c *Consultation) ID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.id
}

// Generation returns the current request generation.
func (c *Consultation) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Editor returns the editable record.
func (c *Consultation) Editor() *record.Editor {
	return c.editor
}

// Transcript returns the last transcript whose extraction was applied.
func (c *Consultation) Transcript() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transcript
}

// CaptureSupported reports whether voice capture is available.
func (c *Consultation) CaptureSupported() bool {
	return c.capture != nil && c.capture.Supported()
}

// StartCapture begins a capture session, replacing any active one.
func (c *Consultation) StartCapture(ctx context.Context) error {
	if !c.CaptureSupported() {
		return capture.ErrCaptureUnsupported
	}
	return c.capture.Start(ctx)
}

// StopCapture ends the capture session and submits the finalized transcript.
func (c *Consultation) StopCapture(ctx context.Context) (record.Record, error) {
	if c.capture == nil {
		return record.Record{}, capture.ErrCaptureUnsupported
	}
	text, err := c.capture.Stop(ctx)
	if err != nil {
		return record.Record{}, err
	}
	return c.submit(ctx, text, models.SourceVoice)
}

// SubmitManual submits typed text. It is the fallback when capture is
// unsupported or failed.
func (c *Consultation) SubmitManual(ctx context.Context, text string) (record.Record, error) {
	return c.submit(ctx, text, models.SourceManual)
}

// submit runs one extraction. A newer submission cancels this one; the result
// is applied to the editor only if the generation still matches afterwards.
func (c *Consultation) submit(ctx context.Context, text, source string) (record.Record, error) {
	if strings.TrimSpace(text) == "" {
		return record.Record{}, extract.ErrEmptyTranscript
	}

	c.mu.Lock()
	c.generation++
	gen := c.generation
	if c.cancel != nil {
		c.cancel()
	}
	ectx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	id := c.id
	base := c.log
	c.mu.Unlock()

	defer func() {
		c.mu.Lock()
		if c.generation == gen {
			c.cancel = nil
		}
		c.mu.Unlock()
		cancel()
	}()

	log := base.With().Uint64("generation", gen).Str("source", source).Logger()
	c.publishTranscript(ctx, log, models.TranscriptFinal{
		ConsultationID: id,
		Timestamp:      c.now().UnixMilli(),
		Generation:     gen,
		Source:         source,
		Text:           text,
		WordCount:      capture.WordCount(text),
	})

	start := c.now()
	rec, err := c.extractor.Extract(ectx, text)
	latency := c.now().Sub(start)

	c.mu.Lock()
	stale := c.generation != gen
	if !stale && err == nil {
		c.editor.Load(rec)
		c.transcript = text
	}
	c.mu.Unlock()

	if stale {
		c.metrics.RecordStaleResult()
		log.Info().Err(err).Msg("Discarding superseded extraction result")
		return record.Record{}, ErrStaleResult
	}
	if err != nil {
		return record.Record{}, err
	}

	c.publishRecord(ctx, log, models.RecordExtracted{
		ConsultationID: id,
		Timestamp:      c.now().UnixMilli(),
		Generation:     gen,
		LatencyMs:      latency.Milliseconds(),
		Record:         rec,
	})
	log.Info().Int64("latencyMs", latency.Milliseconds()).Msg("Record applied")
	return rec, nil
}

// Cancel aborts the in-flight extraction, if any, and the capture session.
// A late result from the aborted extraction is discarded.
func (c *Consultation) Cancel() {
	c.mu.Lock()
	c.generation++
	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.mu.Unlock()

	if c.capture != nil {
		c.capture.Cancel()
	}
}

// Reset starts a new consultation: work in flight is cancelled, the record
// and transcript are discarded and a new id is assigned.
func (c *Consultation) Reset() {
	c.Cancel()

	c.mu.Lock()
	c.editor.Clear()
	c.transcript = ""
	c.id = uuid.NewString()
	c.log = logging.WithConsultation(c.id)
	c.mu.Unlock()
}

// Document renders the current editor state.
func (c *Consultation) Document(opts document.Options) (*document.Document, error) {
	rec, ok := c.editor.Snapshot()
	if !ok {
		return nil, record.ErrNoRecord
	}
	doc := document.Render(rec, opts)
	c.metrics.RecordDocument(doc.PageCount())
	return doc, nil
}

func (c *Consultation) publishTranscript(ctx context.Context, log zerolog.Logger, ev models.TranscriptFinal) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishTranscript(ctx, ev); err != nil {
		log.Warn().Err(err).Msg("Failed to publish transcript event")
	}
}

func (c *Consultation) publishRecord(ctx context.Context, log zerolog.Logger, ev models.RecordExtracted) {
	if c.publisher == nil {
		return
	}
	if err := c.publisher.PublishRecord(ctx, ev); err != nil {
		log.Warn().Err(err).Msg("Failed to publish record event")
	}
}
