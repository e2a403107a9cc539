// Package audio forwards raw audio frames from a capture websocket to a
// streaming recognizer while enforcing per-session limits.
package audio

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"consult-scribe-service/internal/observability/logging"
	"consult-scribe-service/internal/observability/metrics"
	"consult-scribe-service/internal/service/stt"
)

// Limit names, used as metric labels and in warnings sent to the client.
const (
	LimitAudioBytes = "audio_bytes"
	LimitDuration   = "duration"
)

// ErrLimitExceeded matches every *LimitError with errors.Is.
var ErrLimitExceeded = errors.New("capture limit exceeded")

// Limits bounds one capture session. Zero disables a limit.
type Limits struct {
	MaxAudioBytes int64
	MaxDuration   time.Duration
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		MaxAudioBytes: 20 * 1024 * 1024, // ~10 minutes of 16kHz 16-bit mono
		MaxDuration:   30 * time.Minute,
	}
}

// LimitError reports which limit a frame crossed.
type LimitError struct {
	Limit  string
	Detail string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("capture limit exceeded: %s", e.Detail)
}

func (e *LimitError) Is(target error) bool { return target == ErrLimitExceeded }

// Forwarder is safe for concurrent use. Once a limit is crossed every later
// frame is rejected until Reset.
type Forwarder struct {
	rec     stt.AudioRecognizer
	limits  Limits
	metrics *metrics.Metrics
	now     func() time.Time
	log     zerolog.Logger

	mu       sync.Mutex
	started  time.Time
	bytes    int64
	exceeded *LimitError
}

// NewForwarder creates a forwarder for rec.
func NewForwarder(rec stt.AudioRecognizer, limits Limits, m *metrics.Metrics) *Forwarder {
	if m == nil {
		m = metrics.DefaultMetrics
	}
	return &Forwarder{
		rec:     rec,
		limits:  limits,
		metrics: m,
		now:     time.Now,
		log:     logging.WithComponent("audio"),
	}
}

// Reset starts a new accounting window. Call it when a capture session starts.
func (f *Forwarder) Reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.started = f.now()
	f.bytes = 0
	f.exceeded = nil
}

// Bytes returns the audio accepted since the last Reset.
func (f *Forwarder) Bytes() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bytes
}

// Send forwards one frame. It returns a *LimitError when the frame would
// cross a limit; the frame is not forwarded in that case.
func (f *Forwarder) Send(ctx context.Context, frame []byte) error {
	f.mu.Lock()
	if f.exceeded != nil {
		err := f.exceeded
		f.mu.Unlock()
		return err
	}
	if f.started.IsZero() {
		f.started = f.now()
	}
	total := f.bytes + int64(len(frame))
	elapsed := f.now().Sub(f.started)

	var lerr *LimitError
	switch {
	case f.limits.MaxAudioBytes > 0 && total > f.limits.MaxAudioBytes:
		lerr = &LimitError{
			Limit:  LimitAudioBytes,
			Detail: fmt.Sprintf("max audio bytes %d > %d", total, f.limits.MaxAudioBytes),
		}
	case f.limits.MaxDuration > 0 && elapsed > f.limits.MaxDuration:
		lerr = &LimitError{
			Limit:  LimitDuration,
			Detail: fmt.Sprintf("max duration %v > %v", elapsed.Truncate(time.Millisecond), f.limits.MaxDuration),
		}
	}
	if lerr != nil {
		f.exceeded = lerr
		f.mu.Unlock()
		f.metrics.RecordLimitExceeded(lerr.Limit)
		f.log.Warn().Str("limit", lerr.Limit).Msg(lerr.Detail)
		return lerr
	}
	f.bytes = total
	f.mu.Unlock()

	f.metrics.RecordAudioReceived(len(frame))
	return f.rec.SendAudio(ctx, frame)
}
