// Package models defines the payloads of consultation events.
package models

import "consult-scribe-service/internal/record"

// Event type names carried in the eventType field and Kafka header.
const (
	EventTranscriptFinal = "consultation.transcript.final"
	EventRecordExtracted = "consultation.record.extracted"
)

// Transcript sources.
const (
	SourceVoice  = "voice"
	SourceManual = "manual"
)

// TranscriptFinal is emitted once per submitted transcript, before extraction.
type TranscriptFinal struct {
	EventType      string `json:"eventType"`
	ConsultationID string `json:"consultationId"`
	Principal      string `json:"principal"`
	Timestamp      int64  `json:"timestamp"`
	Generation     uint64 `json:"generation"`
	Source         string `json:"source"`
	Text           string `json:"text"`
	WordCount      int    `json:"wordCount"`
}

// RecordExtracted is emitted when an extraction result is applied.
type RecordExtracted struct {
	EventType      string        `json:"eventType"`
	ConsultationID string        `json:"consultationId"`
	Principal      string        `json:"principal"`
	Timestamp      int64         `json:"timestamp"`
	Generation     uint64        `json:"generation"`
	LatencyMs      int64         `json:"latencyMs"`
	Record         record.Record `json:"record"`
}
