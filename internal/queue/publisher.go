// Package queue publishes full-text extraction jobs to Kafka so the
// extraction worker can fetch and chunk source documents out of band.
package queue

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

// Priority orders extraction jobs within the worker's queue.
type Priority string

const (
	// PriorityHigh marks jobs whose sources are blocking an active generation.
	PriorityHigh Priority = "high"
	// PriorityNormal marks routine backfill extractions.
	PriorityNormal Priority = "normal"
)

// ExtractionJob is the message published for each source needing full text.
type ExtractionJob struct {
	SourceID   uuid.UUID `json:"source_id"`
	ContentURL string    `json:"content_url"`
	Priority   Priority  `json:"priority"`
	EnqueuedAt time.Time `json:"enqueued_at"`
}

// messageWriter is the subset of kafka.Writer used by the publisher.
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// ExtractionPublisher enqueues extraction jobs onto the extraction topic.
type ExtractionPublisher struct {
	writer  messageWriter
	enabled bool
	logger  zerolog.Logger
}

// NewExtractionPublisher creates a publisher backed by a kafka.Writer.
// When Kafka is disabled in config the publisher silently drops jobs,
// which keeps single-node deployments working without a broker.
func NewExtractionPublisher(cfg config.KafkaConfig, logger zerolog.Logger) *ExtractionPublisher {
	p := &ExtractionPublisher{
		enabled: cfg.Enabled,
		logger:  logger.With().Str("component", "extraction_publisher").Logger(),
	}
	if cfg.Enabled {
		p.writer = &kafka.Writer{
			Addr:         kafka.TCP(cfg.Brokers...),
			Topic:        cfg.ExtractionTopic,
			Balancer:     &kafka.Hash{},
			BatchTimeout: cfg.BatchTimeout,
			RequiredAcks: kafka.RequireOne,
		}
	}
	return p
}

// Enqueue publishes an extraction job for the given source. The source ID
// is used as the message key so retries for one source stay ordered.
func (p *ExtractionPublisher) Enqueue(ctx context.Context, sourceID uuid.UUID, contentURL string, priority Priority) error {
	if sourceID == uuid.Nil {
		return fmt.Errorf("source id is required")
	}
	if contentURL == "" {
		return fmt.Errorf("content url is required")
	}
	if priority == "" {
		priority = PriorityNormal
	}

	if !p.enabled {
		p.logger.Debug().
			Str("source_id", sourceID.String()).
			Msg("kafka disabled, dropping extraction job")
		return nil
	}

	job := ExtractionJob{
		SourceID:   sourceID,
		ContentURL: contentURL,
		Priority:   priority,
		EnqueuedAt: time.Now().UTC(),
	}
	value, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("marshal extraction job: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(sourceID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "priority", Value: []byte(priority)},
		},
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("publish extraction job: %w", err)
	}

	p.logger.Info().
		Str("source_id", sourceID.String()).
		Str("priority", string(priority)).
		Msg("enqueued extraction job")
	return nil
}

// Close closes the underlying Kafka writer.
func (p *ExtractionPublisher) Close() error {
	if p.writer == nil {
		return nil
	}
	return p.writer.Close()
}
