package events

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/segmentio/kafka-go"
	"golang.org/x/sync/errgroup"

	"consult-scribe-service/internal/models"
)

// Event is a decoded consultation event. Exactly one payload is set.
type Event struct {
	Topic      string
	Key        string
	Transcript *models.TranscriptFinal
	Record     *models.RecordExtracted
}

// WatchConfig configures a Watcher.
type WatchConfig struct {
	Brokers []string
	Topics  []string
	// Since rewinds each partition-0 reader this far back. Zero reads new messages only.
	Since time.Duration
}

// Watcher tails consultation topics without a consumer group.
type Watcher struct {
	cfg WatchConfig
}

// NewWatcher creates a watcher. It connects lazily in Run.
func NewWatcher(cfg WatchConfig) (*Watcher, error) {
	if len(cfg.Brokers) == 0 {
		return nil, errors.New("no Kafka brokers configured")
	}
	if len(cfg.Topics) == 0 {
		return nil, errors.New("no topics to watch")
	}
	return &Watcher{cfg: cfg}, nil
}

// Run reads every topic until ctx is done and hands each decoded event to fn.
// Undecodable messages are logged and skipped.
func (w *Watcher) Run(ctx context.Context, fn func(Event)) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, topic := range w.cfg.Topics {
		g.Go(func() error {
			return w.consume(gctx, topic, fn)
		})
	}
	err := g.Wait()
	if ctx.Err() != nil {
		return nil
	}
	return err
}

func (w *Watcher) consume(ctx context.Context, topic string, fn func(Event)) error {
	// Partition reader without a consumer group works better through port-forward.
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:   w.cfg.Brokers,
		Topic:     topic,
		Partition: 0,
		MinBytes:  1,
		MaxBytes:  10e6,
	})
	defer reader.Close()

	if w.cfg.Since > 0 {
		if err := reader.SetOffsetAt(ctx, time.Now().Add(-w.cfg.Since)); err != nil {
			return fmt.Errorf("rewind %s: %w", topic, err)
		}
	} else if err := reader.SetOffset(kafka.LastOffset); err != nil {
		return fmt.Errorf("seek %s: %w", topic, err)
	}

	log.Info().Str("topic", topic).Dur("since", w.cfg.Since).Msg("Consuming Kafka topic")

	for {
		msg, err := reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			log.Warn().Err(err).Str("topic", topic).Msg("Kafka read error")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(time.Second):
			}
			continue
		}

		ev, err := Decode(msg)
		if err != nil {
			log.Warn().Err(err).Str("topic", topic).Int64("offset", msg.Offset).Msg("Skipping undecodable event")
			continue
		}
		fn(ev)
	}
}

// Decode parses a Kafka message published by Publisher. The eventType
// header selects the payload; the body's eventType field is the fallback.
func Decode(msg kafka.Message) (Event, error) {
	ev := Event{Topic: msg.Topic, Key: string(msg.Key)}

	eventType := ""
	for _, h := range msg.Headers {
		if h.Key == "eventType" {
			eventType = string(h.Value)
		}
	}
	if eventType == "" {
		var probe struct {
			EventType string `json:"eventType"`
		}
		if err := json.Unmarshal(msg.Value, &probe); err != nil {
			return ev, fmt.Errorf("decode event: %w", err)
		}
		eventType = probe.EventType
	}

	switch eventType {
	case models.EventTranscriptFinal:
		var t models.TranscriptFinal
		if err := json.Unmarshal(msg.Value, &t); err != nil {
			return ev, fmt.Errorf("decode %s: %w", eventType, err)
		}
		ev.Transcript = &t
	case models.EventRecordExtracted:
		var r models.RecordExtracted
		if err := json.Unmarshal(msg.Value, &r); err != nil {
			return ev, fmt.Errorf("decode %s: %w", eventType, err)
		}
		ev.Record = &r
	default:
		return ev, fmt.Errorf("unknown event type %q", eventType)
	}
	return ev, nil
}
