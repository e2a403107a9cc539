// Package config loads service configuration from environment variables.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultLLMBaseURL is Groq's OpenAI-compatible endpoint.
const DefaultLLMBaseURL = "https://api.groq.com/openai/v1"

// Configuration holds all service configuration.
type Configuration struct {
	Service       ServiceConfig
	STT           STTConfig
	CaptureLimits CaptureLimitsConfig
	LLM           LLMConfig
	Kafka         KafkaConfig
	Document      DocumentConfig
	Observability ObservabilityConfig
}

// ServiceConfig holds service identity and listen ports.
type ServiceConfig struct {
	Principal string
	HTTPPort  string
	GRPCPort  string
}

// STTConfig selects and tunes the speech recognizer.
type STTConfig struct {
	Provider       string // relay, google, mock or none
	LanguageCode   string
	SampleRateHz   int
	InterimResults bool
	AudioEncoding  string
	SettleDelay    time.Duration
}

// CaptureLimitsConfig bounds a single websocket capture session.
type CaptureLimitsConfig struct {
	MaxAudioBytes   int64
	MaxDuration     time.Duration
	MaxMessageBytes int64
}

// LLMConfig configures the extraction model.
type LLMConfig struct {
	Provider    string // openai or mock
	APIKey      string
	BaseURL     string
	Model       string
	Temperature float64
	MaxTokens   int
	Timeout     time.Duration
}

// KafkaConfig holds event publishing settings.
type KafkaConfig struct {
	Enabled         bool
	Brokers         []string
	TopicTranscript string
	TopicRecord     string
	Principal       string
}

// DocumentConfig holds report output settings.
type DocumentConfig struct {
	OutputDir string
	AppName   string
}

// ObservabilityConfig holds logging and metrics settings.
type ObservabilityConfig struct {
	LogLevel    string
	LogFormat   string
	MetricsAddr string
}

// Load reads the configuration. Unparseable values fall back to defaults.
func Load() *Configuration {
	principal := envOrDefault("SERVICE_PRINCIPAL", "svc-consult-scribe")

	return &Configuration{
		Service: ServiceConfig{
			Principal: principal,
			HTTPPort:  envOrDefault("HTTP_PORT", "8080"),
			GRPCPort:  envOrDefault("GRPC_PORT", "50051"),
		},
		STT: STTConfig{
			Provider:       envOrDefault("STT_PROVIDER", "relay"),
			LanguageCode:   envOrDefault("STT_LANGUAGE_CODE", "en-US"),
			SampleRateHz:   envOrDefaultInt("STT_SAMPLE_RATE_HZ", 16000),
			InterimResults: envOrDefaultBool("STT_INTERIM_RESULTS", true),
			AudioEncoding:  envOrDefault("STT_AUDIO_ENCODING", "LINEAR16"),
			SettleDelay:    envOrDefaultDuration("STT_SETTLE_DELAY", time.Second),
		},
		CaptureLimits: CaptureLimitsConfig{
			MaxAudioBytes:   envOrDefaultInt64("CAPTURE_MAX_AUDIO_BYTES", 20*1024*1024),
			MaxDuration:     envOrDefaultDuration("CAPTURE_MAX_DURATION", 30*time.Minute),
			MaxMessageBytes: envOrDefaultInt64("CAPTURE_MAX_MESSAGE_BYTES", 256*1024),
		},
		LLM: LLMConfig{
			Provider:    envOrDefault("LLM_PROVIDER", "openai"),
			APIKey:      firstEnv("LLM_API_KEY", "GROQ_API_KEY", "OPENAI_API_KEY"),
			BaseURL:     envOrDefault("LLM_BASE_URL", DefaultLLMBaseURL),
			Model:       envOrDefault("LLM_MODEL", "llama-3.3-70b-versatile"),
			Temperature: envOrDefaultFloat("LLM_TEMPERATURE", 0.3),
			MaxTokens:   envOrDefaultInt("LLM_MAX_TOKENS", 2000),
			Timeout:     envOrDefaultDuration("LLM_TIMEOUT", 60*time.Second),
		},
		Kafka: KafkaConfig{
			Enabled:         envOrDefaultBool("KAFKA_ENABLED", false),
			Brokers:         envList("KAFKA_BROKERS"),
			TopicTranscript: envOrDefault("KAFKA_TOPIC_TRANSCRIPT", "consultation.transcript.final"),
			TopicRecord:     envOrDefault("KAFKA_TOPIC_RECORD", "consultation.record.extracted"),
			Principal:       envOrDefault("KAFKA_PRINCIPAL", principal),
		},
		Document: DocumentConfig{
			OutputDir: envOrDefault("DOCUMENT_OUTPUT_DIR", "./reports"),
			AppName:   envOrDefault("DOCUMENT_APP_NAME", "MediConsult AI"),
		},
		Observability: ObservabilityConfig{
			LogLevel:    envOrDefault("LOG_LEVEL", "info"),
			LogFormat:   envOrDefault("LOG_FORMAT", "json"),
			MetricsAddr: envOrDefault("METRICS_ADDR", ":9090"),
		},
	}
}

func envOrDefault(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// firstEnv returns the first non-empty variable among keys.
func firstEnv(keys ...string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return ""
}

func envOrDefaultInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
			return i
		}
	}
	return def
}

func envOrDefaultFloat(key string, def float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return def
}

func envOrDefaultBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envOrDefaultDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

// envList splits a comma-separated variable, dropping blanks.
func envList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
