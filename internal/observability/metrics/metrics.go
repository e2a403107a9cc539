// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "consult_scribe"

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Capture metrics
	CapturesTotal    prometheus.Counter
	CapturesActive   prometheus.Gauge
	CaptureOutcomes  *prometheus.CounterVec
	CaptureDuration  prometheus.Histogram
	SegmentsReceived *prometheus.CounterVec
	RecognizerErrors *prometheus.CounterVec

	// Audio metrics
	AudioBytesReceived   prometheus.Counter
	AudioFramesReceived  prometheus.Counter
	CaptureLimitExceeded *prometheus.CounterVec

	// Extraction metrics
	ExtractionsTotal  *prometheus.CounterVec
	ExtractionLatency prometheus.Histogram
	StaleResults      prometheus.Counter

	// Document metrics
	DocumentsRendered prometheus.Counter
	DocumentPages     prometheus.Histogram
	ExportsTotal      *prometheus.CounterVec

	// HTTP metrics
	HTTPRequests *prometheus.CounterVec
	HTTPLatency  *prometheus.HistogramVec

	// gRPC metrics
	GRPCCalls *prometheus.CounterVec

	// Kafka publish metrics
	KafkaPublishTotal   *prometheus.CounterVec
	KafkaPublishErrors  *prometheus.CounterVec
	KafkaPublishLatency *prometheus.HistogramVec
}

// DefaultMetrics is the global metrics instance.
var DefaultMetrics = NewMetrics()

// NewMetrics creates and registers all Prometheus metrics.
func NewMetrics() *Metrics {
	return &Metrics{
		CapturesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "captures_total",
			Help:      "Total number of capture sessions started",
		}),
		CapturesActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "captures_active",
			Help:      "Number of capture sessions currently recording",
		}),
		CaptureOutcomes: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_outcomes_total",
			Help:      "Capture sessions by how they ended",
		}, []string{"outcome"}),
		CaptureDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "capture_duration_seconds",
			Help:      "Duration of capture sessions in seconds",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 1800},
		}),
		SegmentsReceived: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_received_total",
			Help:      "Recognition segments received",
		}, []string{"kind"}),
		RecognizerErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "recognizer_errors_total",
			Help:      "Recognizer errors by code",
		}, []string{"code"}),

		AudioBytesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_received_total",
			Help:      "Total audio bytes received",
		}),
		AudioFramesReceived: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_frames_received_total",
			Help:      "Total audio frames received",
		}),
		CaptureLimitExceeded: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "capture_limit_exceeded_total",
			Help:      "Total number of times capture limits were exceeded",
		}, []string{"limit_type"}),

		ExtractionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extractions_total",
			Help:      "Extraction attempts by outcome",
		}, []string{"outcome"}),
		ExtractionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "extraction_latency_seconds",
			Help:      "Language model round-trip latency in seconds",
			Buckets:   []float64{0.25, 0.5, 1, 2, 4, 8, 15, 30, 60},
		}),
		StaleResults: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "extraction_stale_results_total",
			Help:      "Extraction results discarded because a newer request superseded them",
		}),

		DocumentsRendered: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_rendered_total",
			Help:      "Total number of documents paginated",
		}),
		DocumentPages: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "document_pages",
			Help:      "Pages per rendered document",
			Buckets:   []float64{1, 2, 3, 4, 6, 8, 12, 20},
		}),
		ExportsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "exports_total",
			Help:      "Document exports by format and outcome",
		}, []string{"format", "outcome"}),

		HTTPRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "HTTP requests by route and status",
		}, []string{"route", "status"}),
		HTTPLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route"}),

		GRPCCalls: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grpc_calls_total",
			Help:      "gRPC calls by method and status code",
		}, []string{"method", "code"}),

		KafkaPublishTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_total",
			Help:      "Total number of Kafka messages published",
		}, []string{"topic", "event_type"}),
		KafkaPublishErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kafka_publish_errors_total",
			Help:      "Total number of Kafka publish errors",
		}, []string{"topic", "event_type"}),
		KafkaPublishLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "kafka_publish_latency_seconds",
			Help:      "Kafka publish latency in seconds",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"topic"}),
	}
}

// RecordCaptureStart records a capture session entering the recording state.
func (m *Metrics) RecordCaptureStart() {
	m.CapturesTotal.Inc()
	m.CapturesActive.Inc()
}

// RecordCaptureEnd records a capture session returning to idle.
func (m *Metrics) RecordCaptureEnd(outcome string, durationSeconds float64) {
	m.CapturesActive.Dec()
	m.CaptureDuration.Observe(durationSeconds)
	m.CaptureOutcomes.WithLabelValues(outcome).Inc()
}

// RecordSegment records one recognition segment.
func (m *Metrics) RecordSegment(final bool) {
	kind := "interim"
	if final {
		kind = "final"
	}
	m.SegmentsReceived.WithLabelValues(kind).Inc()
}

// RecordRecognizerError records a recognizer error code.
func (m *Metrics) RecordRecognizerError(code string) {
	m.RecognizerErrors.WithLabelValues(code).Inc()
}

// RecordAudioReceived records audio bytes and frames received.
func (m *Metrics) RecordAudioReceived(bytes int) {
	m.AudioBytesReceived.Add(float64(bytes))
	m.AudioFramesReceived.Inc()
}

// RecordLimitExceeded records when a capture limit is exceeded.
func (m *Metrics) RecordLimitExceeded(limitType string) {
	m.CaptureLimitExceeded.WithLabelValues(limitType).Inc()
}

// RecordExtraction records an extraction attempt.
func (m *Metrics) RecordExtraction(outcome string, latencySeconds float64) {
	m.ExtractionsTotal.WithLabelValues(outcome).Inc()
	if latencySeconds > 0 {
		m.ExtractionLatency.Observe(latencySeconds)
	}
}

// RecordStaleResult records an extraction result discarded as superseded.
func (m *Metrics) RecordStaleResult() {
	m.StaleResults.Inc()
}

// RecordDocument records a paginated document.
func (m *Metrics) RecordDocument(pages int) {
	m.DocumentsRendered.Inc()
	m.DocumentPages.Observe(float64(pages))
}

// RecordExport records a document export attempt.
func (m *Metrics) RecordExport(format string, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.ExportsTotal.WithLabelValues(format, outcome).Inc()
}

// RecordHTTPRequest records one served HTTP request.
func (m *Metrics) RecordHTTPRequest(route, status string, latencySeconds float64) {
	m.HTTPRequests.WithLabelValues(route, status).Inc()
	m.HTTPLatency.WithLabelValues(route).Observe(latencySeconds)
}

// RecordGRPCCall records one completed gRPC call.
func (m *Metrics) RecordGRPCCall(method, code string) {
	m.GRPCCalls.WithLabelValues(method, code).Inc()
}

// RecordKafkaPublish records a Kafka publish attempt.
func (m *Metrics) RecordKafkaPublish(topic, eventType string, err error, latencySeconds float64) {
	m.KafkaPublishTotal.WithLabelValues(topic, eventType).Inc()
	m.KafkaPublishLatency.WithLabelValues(topic).Observe(latencySeconds)
	if err != nil {
		m.KafkaPublishErrors.WithLabelValues(topic, eventType).Inc()
	}
}
