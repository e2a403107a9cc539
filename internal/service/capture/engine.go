package capture

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"consult-scribe-service/internal/observability/logging"
	"consult-scribe-service/internal/observability/metrics"
	"consult-scribe-service/internal/service/stt"
)

// Config holds capture session settings.
type Config struct {
	Locale         string
	InterimResults bool
	// SettleDelay is how long Stop keeps accepting late finals.
	SettleDelay time.Duration
}

// DefaultConfig returns the default capture settings.
func DefaultConfig() Config {
	return Config{
		Locale:         "en-US",
		InterimResults: true,
		SettleDelay:    time.Second,
	}
}

// Observer receives session updates. Callbacks run outside the engine lock
// and must not call Start, Stop or Cancel.
type Observer interface {
	OnStateChange(from, to State)
	OnTranscript(text string)
	OnError(err *Error)
}

// PreviewObserver is optionally implemented by observers that display the
// interim hypothesis.
type PreviewObserver interface {
	OnPreview(text string)
}

// Option configures an Engine.
type Option func(*Engine)

// WithObserver registers the session observer.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.obs = o }
}

// WithMetrics overrides the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithLogger overrides the engine logger.
func WithLogger(l zerolog.Logger) Option {
	return func(e *Engine) { e.log = l }
}

// Engine owns one recognizer handle and the transcript it produces.
// Recognizer events are applied under a single lock in arrival order;
// events from a replaced session are discarded by epoch.
type Engine struct {
	rec     stt.Recognizer
	cfg     Config
	obs     Observer
	metrics *metrics.Metrics
	log     zerolog.Logger

	mu          sync.Mutex
	lifecycle   *Lifecycle
	transcript  Transcript
	preview     string
	lastErr     *Error
	epoch       uint64
	startedAt   time.Time
	counted     bool
	unsupported bool
}

// NewEngine creates an engine around rec. A nil rec yields an engine whose
// Start always returns ErrCaptureUnsupported.
func NewEngine(rec stt.Recognizer, cfg Config, opts ...Option) *Engine {
	e := &Engine{
		rec:       rec,
		cfg:       cfg,
		metrics:   metrics.DefaultMetrics,
		log:       logging.WithComponent("capture"),
		lifecycle: NewLifecycle(),
	}
	for _, o := range opts {
		o(e)
	}
	return e
}

// Supported reports whether speech capture is possible.
func (e *Engine) Supported() bool {
	if e.rec == nil {
		return false
	}
	e.mu.Lock()
	unsupported := e.unsupported
	e.mu.Unlock()
	if unsupported {
		return false
	}
	if a, ok := e.rec.(stt.Availability); ok {
		return a.Available()
	}
	return true
}

// State returns the current session state.
func (e *Engine) State() State {
	return e.lifecycle.State()
}

// Transcript returns the trimmed transcript accumulated so far.
func (e *Engine) Transcript() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.transcript.Text()
}

// Preview returns the latest interim hypothesis.
func (e *Engine) Preview() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.preview
}

// LastError returns the error that ended the latest session, if any.
func (e *Engine) LastError() *Error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.lastErr
}

// Start begins a new session. An active session is stopped and replaced; its
// transcript is discarded.
func (e *Engine) Start(ctx context.Context) error {
	if !e.Supported() {
		return ErrCaptureUnsupported
	}

	e.mu.Lock()
	prev := e.lifecycle.State()
	e.epoch++
	epoch := e.epoch
	e.transcript.Reset()
	e.preview = ""
	e.lastErr = nil
	e.endSession("replaced")
	var notes []func()
	notes = e.moveLocked(StateRequestingPermission, notes)
	notes = append(notes, e.transcriptNote(""))
	e.mu.Unlock()
	e.dispatch(notes)

	if prev.IsActive() {
		if err := e.rec.Stop(); err != nil {
			e.log.Warn().Err(err).Msg("failed to stop replaced recognizer")
		}
	}

	if p, ok := e.rec.(stt.PermissionRequester); ok {
		if err := p.RequestPermission(ctx); err != nil {
			ce, _ := Classify(stt.CodeNotAllowed, err)
			e.fail(epoch, ce)
			return ce
		}
	}

	opts := stt.Options{
		Locale:         e.cfg.Locale,
		Continuous:     true,
		InterimResults: e.cfg.InterimResults,
	}
	sink := &sessionSink{e: e, epoch: epoch}

	err := e.rec.Start(ctx, opts, sink)
	if errors.Is(err, stt.ErrAlreadyStarted) {
		e.log.Warn().Msg("Recognizer already started, restarting")
		if serr := e.rec.Stop(); serr != nil {
			e.log.Warn().Err(serr).Msg("failed to stop running recognizer")
		}
		err = e.rec.Start(ctx, opts, sink)
	}
	if errors.Is(err, stt.ErrUnsupported) {
		e.markUnsupported(epoch)
		return ErrCaptureUnsupported
	}
	if err != nil {
		ce := &Error{Code: "start-failed", Hint: "Speech recognition could not start. Try again.", Err: err}
		e.fail(epoch, ce)
		return ce
	}

	e.mu.Lock()
	if epoch != e.epoch || e.lifecycle.State() != StateRequestingPermission {
		// Superseded, or an error event already ended the session.
		lastErr := e.lastErr
		e.mu.Unlock()
		if lastErr != nil && epoch == e.currentEpoch() {
			return lastErr
		}
		return nil
	}
	notes = e.moveLocked(StateRecording, nil)
	e.startedAt = time.Now()
	e.counted = true
	e.metrics.RecordCaptureStart()
	e.mu.Unlock()
	e.dispatch(notes)

	e.log.Info().Str("locale", e.cfg.Locale).Msg("Capture started")
	return nil
}

// Stop ends the session. Late finals arriving within the settle delay are
// kept. The finalized transcript is returned trimmed; a blank transcript
// yields ErrNoSpeechDetected. ctx cancellation only shortens the settle delay.
func (e *Engine) Stop(ctx context.Context) (string, error) {
	e.mu.Lock()
	if e.lifecycle.State() != StateRecording {
		e.mu.Unlock()
		return "", ErrNotRecording
	}
	epoch := e.epoch
	notes := e.moveLocked(StateStopping, nil)
	e.mu.Unlock()
	e.dispatch(notes)

	if err := e.rec.Stop(); err != nil {
		e.log.Warn().Err(err).Msg("failed to stop recognizer")
	}

	if e.cfg.SettleDelay > 0 {
		timer := time.NewTimer(e.cfg.SettleDelay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
		}
	}

	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return "", ErrSessionReplaced
	}
	text := e.transcript.Text()
	segments := e.transcript.Segments()
	outcome := "stopped"
	if text == "" {
		outcome = "no_speech"
	}
	e.endSession(outcome)
	notes = e.moveLocked(StateIdle, nil)
	e.mu.Unlock()
	e.dispatch(notes)

	e.log.Info().
		Int("segments", segments).
		Int("words", WordCount(text)).
		Msg("Capture stopped")

	if text == "" {
		return "", ErrNoSpeechDetected
	}
	return text, nil
}

// Cancel abandons the current session and clears the transcript.
func (e *Engine) Cancel() {
	e.mu.Lock()
	prev := e.lifecycle.State()
	e.epoch++
	e.transcript.Reset()
	e.preview = ""
	e.lastErr = nil
	e.endSession("cancelled")
	var notes []func()
	if prev.IsActive() {
		notes = e.moveLocked(StateIdle, notes)
	}
	notes = append(notes, e.transcriptNote(""))
	e.mu.Unlock()
	e.dispatch(notes)

	if prev.IsActive() {
		if err := e.rec.Stop(); err != nil {
			e.log.Warn().Err(err).Msg("failed to stop cancelled recognizer")
		}
	}
}

// ErrSessionReplaced is returned by Stop when a new session started during the settle delay.
var ErrSessionReplaced = errors.New("capture session was replaced")

func (e *Engine) currentEpoch() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.epoch
}

func (e *Engine) handleResults(epoch uint64, segs []stt.Segment) {
	e.mu.Lock()
	if epoch != e.epoch || !e.lifecycle.State().acceptsEvents() {
		e.mu.Unlock()
		return
	}

	var interim strings.Builder
	finals := 0
	for _, s := range segs {
		e.metrics.RecordSegment(s.Final)
		if s.Final {
			e.transcript.AppendFinal(s.Text)
			finals++
		} else {
			interim.WriteString(s.Text)
		}
	}

	var notes []func()
	if interim.Len() > 0 {
		e.preview = interim.String()
	}
	if finals > 0 {
		e.preview = ""
		notes = append(notes, e.transcriptNote(e.transcript.Text()))
	}
	if interim.Len() > 0 || finals > 0 {
		notes = append(notes, e.previewNote(e.preview))
	}
	e.mu.Unlock()
	e.dispatch(notes)
}

func (e *Engine) handleError(epoch uint64, code string, err error) {
	e.metrics.RecordRecognizerError(code)
	ce, ok := Classify(code, err)
	if !ok {
		e.log.Debug().Str("code", code).Msg("Ignoring recognizer abort")
		return
	}

	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	state := e.lifecycle.State()
	var notes []func()
	switch state {
	case StateRecording, StateRequestingPermission:
		e.lastErr = ce
		e.preview = ""
		e.endSession("error")
		notes = e.moveLocked(StateIdle, notes)
	case StateStopping:
		// Stop finalizes whatever arrived.
		e.lastErr = ce
	default:
		e.mu.Unlock()
		return
	}
	notes = append(notes, e.errorNote(ce))
	e.mu.Unlock()
	e.dispatch(notes)

	e.log.Warn().Err(err).Str("code", code).Str("state", state.String()).Msg("Recognizer error")

	if state != StateStopping {
		if serr := e.rec.Stop(); serr != nil {
			e.log.Warn().Err(serr).Msg("failed to stop recognizer after error")
		}
	}
}

func (e *Engine) handleEnd(epoch uint64) {
	e.log.Debug().Uint64("epoch", epoch).Msg("Recognizer ended")
}

func (e *Engine) fail(epoch uint64, ce *Error) {
	e.mu.Lock()
	if epoch != e.epoch {
		e.mu.Unlock()
		return
	}
	e.lastErr = ce
	notes := e.moveLocked(StateIdle, nil)
	notes = append(notes, e.errorNote(ce))
	e.mu.Unlock()
	e.dispatch(notes)
	e.log.Warn().Err(ce).Msg("Capture failed to start")
}

func (e *Engine) markUnsupported(epoch uint64) {
	e.mu.Lock()
	e.unsupported = true
	var notes []func()
	if epoch == e.epoch {
		notes = e.moveLocked(StateIdle, nil)
	}
	e.mu.Unlock()
	e.dispatch(notes)
	e.log.Warn().Msg("Speech capture unsupported, manual entry only")
}

// moveLocked transitions the lifecycle and queues the observer note. Caller holds mu.
func (e *Engine) moveLocked(to State, notes []func()) []func() {
	from, err := e.lifecycle.Transition(to)
	if err != nil {
		e.log.Error().Err(err).Msg("capture state transition rejected")
		return notes
	}
	if from == to || e.obs == nil {
		return notes
	}
	obs := e.obs
	return append(notes, func() { obs.OnStateChange(from, to) })
}

// endSession records the end of a counted recording. Caller holds mu.
func (e *Engine) endSession(outcome string) {
	if !e.counted {
		return
	}
	e.counted = false
	e.metrics.RecordCaptureEnd(outcome, time.Since(e.startedAt).Seconds())
}

func (e *Engine) transcriptNote(text string) func() {
	obs := e.obs
	return func() {
		if obs != nil {
			obs.OnTranscript(text)
		}
	}
}

func (e *Engine) previewNote(text string) func() {
	p, ok := e.obs.(PreviewObserver)
	return func() {
		if ok {
			p.OnPreview(text)
		}
	}
}

func (e *Engine) errorNote(ce *Error) func() {
	obs := e.obs
	return func() {
		if obs != nil {
			obs.OnError(ce)
		}
	}
}

func (e *Engine) dispatch(notes []func()) {
	for _, n := range notes {
		n()
	}
}

// sessionSink tags recognizer events with the session that produced them.
type sessionSink struct {
	e     *Engine
	epoch uint64
}

func (s *sessionSink) OnResults(segs []stt.Segment)   { s.e.handleResults(s.epoch, segs) }
func (s *sessionSink) OnError(code string, err error) { s.e.handleError(s.epoch, code, err) }
func (s *sessionSink) OnEnd()                         { s.e.handleEnd(s.epoch) }
