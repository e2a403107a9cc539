// Package extract turns a consultation transcript into a structured record
// with one language-model call.
package extract

import (
	"io"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"consult-scribe-service/internal/observability/logging"
	"consult-scribe-service/internal/observability/metrics"
	"consult-scribe-service/internal/record"
	"consult-scribe-service/internal/schema"
	"consult-scribe-service/internal/service/llm"
)

// Config holds sampling parameters for the extraction call.
type Config struct {
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// DefaultConfig favours determinism over creativity.
func DefaultConfig() Config {
	return Config{
		Temperature: 0.3,
		MaxTokens:   2000,
		Timeout:     60 * time.Second,
	}
}

// Service extracts records. Safe for concurrent use.
type Service struct {
	provider  llm.Provider
	validator *schema.Validator
	cfg       Config
	metrics   *metrics.Metrics
	log       zerolog.Logger
}

// New creates an extraction service.
func New(provider llm.Provider, cfg Config) (*Service, error) {
	v, err := schema.New()
	if err != nil {
		return nil, err
	}
	return &Service{
		provider:  provider,
		validator: v,
		cfg:       cfg,
		metrics:   metrics.DefaultMetrics,
		log:       logging.WithComponent("extract"),
	}, nil
}

// BuildRequest renders the completion request for a transcript.
func (s *Service) BuildRequest(transcript string) llm.CompletionRequest {
	return llm.CompletionRequest{
		SystemPrompt: SystemPrompt(),
		Messages:     []llm.Message{{Role: "user", Content: UserPrompt(transcript)}},
		Temperature:  s.cfg.Temperature,
		MaxTokens:    s.cfg.MaxTokens,
		JSONObject:   true,
	}
}

// Extract performs one upstream call and returns a record with every field populated.
func (s *Service) Extract(ctx context.Context, transcript string) (record.Record, error) {
	if strings.TrimSpace(transcript) == "" {
		return record.Record{}, ErrEmptyTranscript
	}

	rid := uuid.NewString()
	log := s.log.With().Str("requestId", rid).Logger()
	log.Info().
		Int("transcriptLen", len(transcript)).
		Float64("temperature", s.cfg.Temperature).
		Msg("Extraction started")

	if s.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.cfg.Timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := s.provider.Complete(ctx, s.BuildRequest(transcript))
	latency := time.Since(start).Seconds()
	if err != nil {
		xerr := classifyProviderError(err)
		s.metrics.RecordExtraction(xerr.Kind.String(), latency)
		log.Error().Err(err).Str("kind", xerr.Kind.String()).Msg("Extraction upstream call failed")
		return record.Record{}, xerr
	}

	rec, xerr := s.parse(resp.Content)
	if xerr != nil {
		s.metrics.RecordExtraction(xerr.Kind.String(), latency)
		log.Error().Err(xerr.Err).
			Str("kind", xerr.Kind.String()).
			Int("rawLen", len(xerr.Raw)).
			Msg("Extraction response rejected")
		return record.Record{}, xerr
	}

	s.metrics.RecordExtraction("ok", latency)
	log.Info().
		Int("symptoms", len(rec.Symptoms)).
		Int("totalTokens", resp.Usage.TotalTokens).
		Float64("latencySeconds", latency).
		Msg("Extraction completed")
	return rec, nil
}

// parse decodes, gates and coerces a model response.
func (s *Service) parse(raw string) (record.Record, *Error) {
	return DecodeRecord(s.validator, raw)
}

// DecodeRecord decodes one JSON object, checks it against the record schema
// and fills missing fields with their defaults. Trailing data after the
// object is malformed.
func DecodeRecord(v *schema.Validator, raw string) (record.Record, *Error) {
	doc, xerr := decodeGated(v, raw)
	if xerr != nil {
		return record.Record{}, xerr
	}
	obj, _ := doc.(map[string]any)
	return Coerce(obj), nil
}

// DecodeEdited decodes a record that has already been through the editor.
// It passes the same gate as DecodeRecord but keeps every value as posted:
// blank fields stay blank and no defaults are filled in.
func DecodeEdited(v *schema.Validator, raw string) (record.Record, *Error) {
	if _, xerr := decodeGated(v, raw); xerr != nil {
		return record.Record{}, xerr
	}
	var rec record.Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return record.Record{}, &Error{Kind: KindMalformed, Raw: raw, Err: err}
	}
	if rec.Symptoms == nil {
		rec.Symptoms = []string{}
	}
	return rec, nil
}

// decodeGated decodes exactly one JSON value and runs the schema gate.
func decodeGated(v *schema.Validator, raw string) (any, *Error) {
	dec := json.NewDecoder(strings.NewReader(strings.TrimSpace(raw)))
	dec.UseNumber()
	var doc any
	if err := dec.Decode(&doc); err != nil {
		return nil, &Error{Kind: KindMalformed, Raw: raw, Err: err}
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		if err == nil {
			err = errors.New("trailing data after JSON value")
		}
		return nil, &Error{Kind: KindMalformed, Raw: raw, Err: err}
	}

	if err := v.Validate(doc); err != nil {
		return nil, &Error{Kind: KindIncomplete, Raw: raw, Err: err}
	}
	return doc, nil
}

func classifyProviderError(err error) *Error {
	switch {
	case errors.Is(err, llm.ErrUnauthorized):
		return &Error{Kind: KindConfig, Err: err}
	case errors.Is(err, llm.ErrRateLimited):
		return &Error{Kind: KindRateLimited, Err: err}
	default:
		return &Error{Kind: KindUpstream, Err: err}
	}
}
