package app

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"consult-scribe-service/internal/config"
	"consult-scribe-service/internal/events"
	"consult-scribe-service/internal/observability/logging"
	"consult-scribe-service/internal/observability/metrics"
	"consult-scribe-service/internal/service/capture"
	"consult-scribe-service/internal/service/consultation"
	"consult-scribe-service/internal/service/document"
	"consult-scribe-service/internal/service/export"
	"consult-scribe-service/internal/service/extract"
	"consult-scribe-service/internal/service/llm"
	llmmock "consult-scribe-service/internal/service/llm/mock"
	"consult-scribe-service/internal/service/llm/openai"
	"consult-scribe-service/internal/service/stt"
	"consult-scribe-service/internal/service/stt/google"
	sttmock "consult-scribe-service/internal/service/stt/mock"
	"consult-scribe-service/internal/service/stt/relay"
)

// Application holds process-wide state for the service.
type Application struct {
	StartupTime time.Time
	Logger      zerolog.Logger
	Cfg         *config.Configuration
	Metrics     *metrics.Metrics
	Publisher   *events.Publisher
	Extractor   *extract.Service
	Recognizers stt.Factory
	Measurer    document.Measurer
}

// New constructs a new Application from the provided configuration.
func New(cfg *config.Configuration) (*Application, error) {
	a := &Application{
		Cfg:      cfg,
		Metrics:  metrics.DefaultMetrics,
		Measurer: export.NewMeasurer(),
	}
	a.setupLogger()

	appLogger := a.Logger.With().
		Str("method", "New").
		Logger()

	provider, err := NewLLMProvider(cfg.LLM)
	if err != nil {
		return nil, err
	}
	a.Extractor, err = extract.New(provider, extract.Config{
		Temperature: cfg.LLM.Temperature,
		MaxTokens:   cfg.LLM.MaxTokens,
		Timeout:     cfg.LLM.Timeout,
	})
	if err != nil {
		return nil, fmt.Errorf("extraction service: %w", err)
	}

	a.Recognizers, err = NewRecognizerFactory(cfg.STT)
	if err != nil {
		return nil, err
	}

	a.Publisher = events.New(&events.Config{
		Enabled:         cfg.Kafka.Enabled,
		Brokers:         cfg.Kafka.Brokers,
		TopicTranscript: cfg.Kafka.TopicTranscript,
		TopicRecord:     cfg.Kafka.TopicRecord,
		Principal:       cfg.Kafka.Principal,
	})

	appLogger.Info().
		Str("sttProvider", cfg.STT.Provider).
		Str("llmProvider", cfg.LLM.Provider).
		Str("llmModel", cfg.LLM.Model).
		Bool("llmConfigured", cfg.LLM.APIKey != "" || cfg.LLM.Provider == "mock").
		Msg("Consultation scribe application created")
	return a, nil
}

// setupLogger configures the global zerolog logger and the application logger.
func (a *Application) setupLogger() {
	logging.Init(logging.Config{
		Level:      a.Cfg.Observability.LogLevel,
		Format:     a.Cfg.Observability.LogFormat,
		TimeFormat: time.RFC3339,
	})

	a.Logger = logging.WithComponent("application").With().
		Str("service", "consult-scribe-service").
		Logger()

	a.Logger.Info().
		Str("logLevel", zerolog.GlobalLevel().String()).
		Str("environment", os.Getenv("ENV")).
		Msg("Logger setup completed")
}

// NewLLMProvider builds the extraction model client. A missing API key is
// not fatal: every extraction then fails with a configuration error.
func NewLLMProvider(cfg config.LLMConfig) (llm.Provider, error) {
	switch cfg.Provider {
	case "mock":
		return &llmmock.Provider{Content: llmmock.SampleRecordJSON}, nil
	case "openai", "":
		if cfg.APIKey == "" {
			return llm.Unconfigured("LLM API key is not set"), nil
		}
		return openai.New(cfg.APIKey, cfg.Model,
			openai.WithBaseURL(cfg.BaseURL),
			openai.WithTimeout(cfg.Timeout),
		)
	default:
		return nil, fmt.Errorf("unknown LLM provider %q", cfg.Provider)
	}
}

// NewRecognizerFactory returns the per-consultation recognizer constructor
// for the configured provider.
func NewRecognizerFactory(cfg config.STTConfig) (stt.Factory, error) {
	switch cfg.Provider {
	case "relay":
		return func(context.Context) (stt.Recognizer, error) {
			return relay.New(), nil
		}, nil
	case "google":
		gcfg := google.Config{
			LanguageCode:   cfg.LanguageCode,
			SampleRateHz:   int32(cfg.SampleRateHz),
			InterimResults: cfg.InterimResults,
			AudioEncoding:  cfg.AudioEncoding,
			Punctuation:    true,
		}
		return func(ctx context.Context) (stt.Recognizer, error) {
			r, err := google.New(ctx, gcfg)
			if err != nil {
				return nil, fmt.Errorf("google recognizer: %w", err)
			}
			return r, nil
		}, nil
	case "mock":
		return func(context.Context) (stt.Recognizer, error) {
			return sttmock.New(), nil
		}, nil
	case "none":
		return func(context.Context) (stt.Recognizer, error) {
			return nil, nil
		}, nil
	default:
		return nil, fmt.Errorf("unknown STT provider %q", cfg.Provider)
	}
}

// CaptureConfig returns the capture engine settings.
func (a *Application) CaptureConfig() capture.Config {
	return capture.Config{
		Locale:         a.Cfg.STT.LanguageCode,
		InterimResults: a.Cfg.STT.InterimResults,
		SettleDelay:    a.Cfg.STT.SettleDelay,
	}
}

// NewConsultation wires a consultation around rec. A nil rec yields a
// consultation that only accepts manual text.
func (a *Application) NewConsultation(rec stt.Recognizer, obs capture.Observer) *consultation.Consultation {
	id := uuid.NewString()
	opts := []consultation.Option{
		consultation.WithID(id),
		consultation.WithPublisher(a.Publisher),
		consultation.WithMetrics(a.Metrics),
	}
	if rec != nil {
		engine := capture.NewEngine(rec, a.CaptureConfig(),
			capture.WithObserver(obs),
			capture.WithMetrics(a.Metrics),
			capture.WithLogger(logging.WithCapture(id, a.Cfg.STT.Provider)),
		)
		opts = append(opts, consultation.WithCapture(engine))
	}
	return consultation.New(a.Extractor, opts...)
}

// DocumentOptions returns render options stamped with at.
func (a *Application) DocumentOptions(at time.Time) document.Options {
	opts := document.DefaultOptions()
	opts.GeneratedAt = at
	opts.AppName = a.Cfg.Document.AppName
	if a.Measurer != nil {
		opts.Measurer = a.Measurer
	}
	return opts
}

// Ready reports whether extraction can be served.
func (a *Application) Ready() error {
	if a.Extractor == nil {
		return errors.New("extraction service not initialised")
	}
	return nil
}

// Start performs any startup work required before serving traffic.
func (a *Application) Start() error {
	startLogger := a.Logger.With().
		Str("method", "Start").
		Logger()

	if err := os.MkdirAll(a.Cfg.Document.OutputDir, 0o755); err != nil {
		return fmt.Errorf("document output dir: %w", err)
	}

	a.StartupTime = time.Now().UTC()
	startLogger.Info().
		Time("startupTime", a.StartupTime).
		Msg("Consultation scribe starting")

	return nil
}

// Shutdown performs a best-effort cleanup before process exit.
func (a *Application) Shutdown() {
	shutdownLogger := a.Logger.With().
		Str("method", "Shutdown").
		Logger()

	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil {
			shutdownLogger.Error().Err(err).Msg("Failed to close publisher")
		}
	}
	shutdownLogger.Info().Msg("Consultation scribe shutting down")
}
