// Package mock provides a scripted recognizer for demos and tests without a
// browser or cloud credentials. It plays progressive interim hypotheses,
// exactly one final per utterance, and flushes the in-progress utterance as a
// late final after Stop, the way real engines deliver in-flight results.
package mock

import (
	"context"
	"sync"
	"time"

	"consult-scribe-service/internal/service/stt"
)

// Utterance is one scripted utterance with progressive interim transcripts.
type Utterance struct {
	Partials   []string
	Final      string
	Confidence float64
}

// DefaultUtterances is a short doctor-patient exchange.
var DefaultUtterances = []Utterance{
	{
		Partials:   []string{"Good morning", "Good morning what brings"},
		Final:      "Good morning, what brings you in today?",
		Confidence: 0.95,
	},
	{
		Partials:   []string{"I have had", "I have had a headache", "I have had a headache and fever"},
		Final:      "I have had a headache and fever for three days.",
		Confidence: 0.92,
	},
	{
		Partials:   []string{"My name is", "My name is Juan Pérez"},
		Final:      "My name is Juan Pérez and I am 45 years old.",
		Confidence: 0.9,
	},
	{
		Partials:   []string{"Temperature is", "Temperature is 38.5"},
		Final:      "Temperature is 38.5, throat is red. Looks like a viral infection.",
		Confidence: 0.88,
	},
	{
		Partials:   []string{"Take paracetamol", "Take paracetamol every eight hours"},
		Final:      "Take paracetamol every eight hours and rest.",
		Confidence: 0.93,
	},
}

// Option configures a Recognizer.
type Option func(*Recognizer)

// WithUtterances replaces the script.
func WithUtterances(u ...Utterance) Option {
	return func(r *Recognizer) { r.utterances = u }
}

// WithInterval sets the delay between events.
func WithInterval(d time.Duration) Option {
	return func(r *Recognizer) { r.interval = d }
}

// WithError makes the recognizer report code after the script finishes.
func WithError(code string) Option {
	return func(r *Recognizer) { r.failCode = code }
}

// WithPermissionDenied makes RequestPermission fail.
func WithPermissionDenied() Option {
	return func(r *Recognizer) { r.denyPermission = true }
}

// Unavailable makes the recognizer report no engine.
func Unavailable() Option {
	return func(r *Recognizer) { r.unavailable = true }
}

// Recognizer implements stt.Recognizer with a fixed script.
type Recognizer struct {
	mu             sync.Mutex
	utterances     []Utterance
	interval       time.Duration
	failCode       string
	denyPermission bool
	unavailable    bool

	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

// New creates a mock recognizer playing DefaultUtterances.
func New(opts ...Option) *Recognizer {
	r := &Recognizer{
		utterances: DefaultUtterances,
		interval:   200 * time.Millisecond,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Available reports whether the mock simulates an installed engine.
func (r *Recognizer) Available() bool {
	return !r.unavailable
}

// RequestPermission simulates the microphone prompt.
func (r *Recognizer) RequestPermission(ctx context.Context) error {
	if r.denyPermission {
		return stt.ErrPermissionDenied
	}
	return ctx.Err()
}

// Start begins playback.
func (r *Recognizer) Start(ctx context.Context, opts stt.Options, sink stt.Sink) error {
	if r.unavailable {
		return stt.ErrUnsupported
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return stt.ErrAlreadyStarted
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.done = make(chan struct{})

	go r.play(sink, opts.InterimResults, r.stopCh, r.done)
	return nil
}

// Stop ends playback. The utterance in progress is still delivered as a final.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil
	}
	r.running = false
	close(r.stopCh)
	return nil
}

// Done is closed once the playback goroutine of the latest session exits.
func (r *Recognizer) Done() <-chan struct{} {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.done
}

func (r *Recognizer) play(sink stt.Sink, interim bool, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer sink.OnEnd()

	wait := func() bool {
		select {
		case <-stop:
			return false
		case <-time.After(r.interval):
			return true
		}
	}

	for _, u := range r.utterances {
		if !wait() {
			return
		}
		if interim {
			for _, p := range u.Partials {
				sink.OnResults([]stt.Segment{{Text: p}})
				if !wait() {
					sink.OnResults([]stt.Segment{{Text: u.Final, Final: true, Confidence: u.Confidence}})
					return
				}
			}
		}
		sink.OnResults([]stt.Segment{{Text: u.Final, Final: true, Confidence: u.Confidence}})
	}

	if r.failCode != "" {
		sink.OnError(r.failCode, nil)
		return
	}
	<-stop
}
