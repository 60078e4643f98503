// Package events publishes generation job lifecycle events to Kafka so
// downstream consumers can react to job state changes without polling.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/sadiq-codes/genpaper-sub003/internal/config"
)

const serviceName = "genpaper-generation"

// Event types published on the events topic.
const (
	EventGenerationStarted   = "generation.started"
	EventGenerationProgress  = "generation.progress"
	EventGenerationCompleted = "generation.completed"
	EventGenerationFailed    = "generation.failed"
)

// Envelope is the wire format for every lifecycle event.
type Envelope struct {
	EventID    uuid.UUID       `json:"event_id"`
	EventType  string          `json:"event_type"`
	JobID      uuid.UUID       `json:"job_id"`
	Source     string          `json:"source"`
	OccurredAt time.Time       `json:"occurred_at"`
	Payload    json.RawMessage `json:"payload,omitempty"`
}

// StartedPayload accompanies generation.started events.
type StartedPayload struct {
	Topic       string `json:"topic"`
	SourceCount int    `json:"source_count"`
}

// ProgressPayload accompanies generation.progress events.
type ProgressPayload struct {
	Phase            string `json:"phase"`
	SectionsComplete int    `json:"sections_complete"`
	SectionsTotal    int    `json:"sections_total"`
}

// CompletedPayload accompanies generation.completed events.
type CompletedPayload struct {
	WordCount     int `json:"word_count"`
	CitationCount int `json:"citation_count"`
}

// FailedPayload accompanies generation.failed events.
type FailedPayload struct {
	Category string `json:"category"`
	Message  string `json:"message"`
}

// messageWriter is the subset of kafka.Writer used by the emitter.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Emitter publishes lifecycle events keyed by job ID so events for one
// job land on the same partition in order.
type Emitter struct {
	writer  messageWriter
	enabled bool
	logger  zerolog.Logger
}

// NewEmitter creates an Emitter backed by a kafka.Writer. When Kafka is
// disabled the emitter drops events and every Emit call succeeds.
func NewEmitter(cfg config.KafkaConfig, logger zerolog.Logger) *Emitter {
	e := &Emitter{
		enabled: cfg.Enabled,
		logger:  logger.With().Str("component", "event_emitter").Logger(),
	}
	if cfg.Enabled {
		e.writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.EventsTopic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: cfg.BatchTimeout,
			RequiredAcks: kafka.RequireOne,
		}
	}
	return e
}

// Emit publishes a single lifecycle event for the given job.
func (e *Emitter) Emit(ctx context.Context, eventType string, jobID uuid.UUID, payload any) error {
	if eventType == "" {
		return fmt.Errorf("event type is required")
	}
	if jobID == uuid.Nil {
		return fmt.Errorf("job id is required")
	}

	if !e.enabled {
		e.logger.Debug().
			Str("event_type", eventType).
			Str("job_id", jobID.String()).
			Msg("kafka disabled, dropping event")
		return nil
	}

	var raw json.RawMessage
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("marshal event payload: %w", err)
		}
		raw = data
	}

	envelope := Envelope{
		EventID:    uuid.New(),
		EventType:  eventType,
		JobID:      jobID,
		Source:     serviceName,
		OccurredAt: time.Now().UTC(),
		Payload:    raw,
	}
	value, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(jobID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	if err := e.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish %s event: %w", eventType, err)
	}

	e.logger.Debug().
		Str("event_type", eventType).
		Str("job_id", jobID.String()).
		Msg("published lifecycle event")
	return nil
}

// EmitStarted publishes a generation.started event.
func (e *Emitter) EmitStarted(ctx context.Context, jobID uuid.UUID, topic string, sourceCount int) error {
	return e.Emit(ctx, EventGenerationStarted, jobID, StartedPayload{Topic: topic, SourceCount: sourceCount})
}

// EmitProgress publishes a generation.progress event.
func (e *Emitter) EmitProgress(ctx context.Context, jobID uuid.UUID, phase string, complete, total int) error {
	return e.Emit(ctx, EventGenerationProgress, jobID, ProgressPayload{
		Phase:            phase,
		SectionsComplete: complete,
		SectionsTotal:    total,
	})
}

// EmitCompleted publishes a generation.completed event.
func (e *Emitter) EmitCompleted(ctx context.Context, jobID uuid.UUID, wordCount, citationCount int) error {
	return e.Emit(ctx, EventGenerationCompleted, jobID, CompletedPayload{
		WordCount:     wordCount,
		CitationCount: citationCount,
	})
}

// EmitFailed publishes a generation.failed event.
func (e *Emitter) EmitFailed(ctx context.Context, jobID uuid.UUID, category, message string) error {
	return e.Emit(ctx, EventGenerationFailed, jobID, FailedPayload{Category: category, Message: message})
}

// Close closes the underlying Kafka writer.
func (e *Emitter) Close() error {
	if e.writer == nil {
		return nil
	}
	return e.writer.Close()
}
