// Package google provides a Google Cloud Speech-to-Text recognizer for audio
// streamed from the capture websocket.
package google

import (
	"context"
	"errors"
	"io"
	"sync"

	speech "cloud.google.com/go/speech/apiv1"
	speechpb "cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"consult-scribe-service/internal/service/stt"
)

// Config holds streaming recognition settings.
type Config struct {
	LanguageCode   string
	SampleRateHz   int32
	InterimResults bool
	AudioEncoding  string
	Punctuation    bool
}

// DefaultConfig returns browser-friendly defaults.
func DefaultConfig() Config {
	return Config{
		LanguageCode:   "en-US",
		SampleRateHz:   16000,
		InterimResults: true,
		AudioEncoding:  "LINEAR16",
		Punctuation:    true,
	}
}

// parseAudioEncoding maps an upper-case encoding name to the proto enum,
// falling back to LINEAR16.
func parseAudioEncoding(s string) speechpb.RecognitionConfig_AudioEncoding {
	v, ok := speechpb.RecognitionConfig_AudioEncoding_value[s]
	if !ok || v == int32(speechpb.RecognitionConfig_ENCODING_UNSPECIFIED) {
		return speechpb.RecognitionConfig_LINEAR16
	}
	return speechpb.RecognitionConfig_AudioEncoding(v)
}

// Recognizer implements stt.AudioRecognizer using Google Cloud Speech-to-Text.
type Recognizer struct {
	client *speech.Client
	cfg    Config

	mu      sync.Mutex
	stream  speechpb.Speech_StreamingRecognizeClient
	cancel  context.CancelFunc
	running bool
}

// New creates a Google recognizer.
// Requires GOOGLE_APPLICATION_CREDENTIALS to be set.
func New(ctx context.Context, cfg Config) (*Recognizer, error) {
	c, err := speech.NewClient(ctx)
	if err != nil {
		return nil, err
	}
	return &Recognizer{client: c, cfg: cfg}, nil
}

func (r *Recognizer) streamingConfig(opts stt.Options) *speechpb.StreamingRecognitionConfig {
	lang := r.cfg.LanguageCode
	if opts.Locale != "" {
		lang = opts.Locale
	}
	return &speechpb.StreamingRecognitionConfig{
		Config: &speechpb.RecognitionConfig{
			Encoding:                   parseAudioEncoding(r.cfg.AudioEncoding),
			SampleRateHertz:            r.cfg.SampleRateHz,
			LanguageCode:               lang,
			EnableAutomaticPunctuation: r.cfg.Punctuation,
		},
		InterimResults: r.cfg.InterimResults && opts.InterimResults,
	}
}

// Start opens a streaming session, sends the config and starts listening.
func (r *Recognizer) Start(ctx context.Context, opts stt.Options, sink stt.Sink) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.running {
		return stt.ErrAlreadyStarted
	}
	if r.cancel != nil {
		// Previous stream was half-closed by Stop; drop its context too.
		r.cancel()
		r.cancel = nil
	}

	sctx, cancel := context.WithCancel(ctx)
	stream, err := r.client.StreamingRecognize(sctx)
	if err != nil {
		cancel()
		return err
	}

	err = stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: r.streamingConfig(opts),
		},
	})
	if err != nil {
		cancel()
		return err
	}

	r.stream = stream
	r.cancel = cancel
	r.running = true

	go listen(stream, sink, cancel)
	return nil
}

// SendAudio sends audio bytes to the active stream.
func (r *Recognizer) SendAudio(ctx context.Context, audio []byte) error {
	r.mu.Lock()
	stream, running := r.stream, r.running
	r.mu.Unlock()
	if !running {
		return nil
	}
	return stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_AudioContent{
			AudioContent: audio,
		},
	})
}

// Stop half-closes the stream. Google flushes remaining finals before EOF.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.running {
		return nil
	}
	r.running = false
	return r.stream.CloseSend()
}

// Close cancels any open stream and releases the client.
func (r *Recognizer) Close() error {
	r.mu.Lock()
	if r.cancel != nil {
		r.cancel()
	}
	r.running = false
	r.mu.Unlock()
	return r.client.Close()
}

// listen delivers responses to sink until the stream ends, then releases the
// stream context.
func listen(stream speechpb.Speech_StreamingRecognizeClient, sink stt.Sink, release context.CancelFunc) {
	defer release()
	defer sink.OnEnd()
	for {
		resp, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			return
		}
		if err != nil {
			sink.OnError(classifyStreamError(err), err)
			return
		}
		if resp.Error != nil && resp.Error.Code != int32(codes.OK) {
			serr := status.ErrorProto(resp.Error)
			sink.OnError(classifyStreamError(serr), serr)
			return
		}
		if segs := toSegments(resp); len(segs) > 0 {
			sink.OnResults(segs)
		}
	}
}

func toSegments(resp *speechpb.StreamingRecognizeResponse) []stt.Segment {
	var segs []stt.Segment
	for _, r := range resp.GetResults() {
		if len(r.Alternatives) == 0 {
			continue
		}
		alt := r.Alternatives[0]
		segs = append(segs, stt.Segment{
			Text:       alt.Transcript,
			Final:      r.IsFinal,
			Confidence: float64(alt.Confidence),
		})
	}
	return segs
}

// classifyStreamError maps a gRPC status onto the recognizer error codes.
func classifyStreamError(err error) string {
	switch status.Code(err) {
	case codes.Canceled:
		return stt.CodeAborted
	case codes.PermissionDenied, codes.Unauthenticated:
		return stt.CodeServiceNotAllowed
	case codes.OutOfRange:
		// Audio timeout: the stream went quiet.
		return stt.CodeNoSpeech
	case codes.Unavailable, codes.DeadlineExceeded:
		return stt.CodeNetwork
	default:
		log.Warn().Err(err).Msg("unclassified speech stream error")
		return status.Code(err).String()
	}
}
