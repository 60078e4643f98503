// Package control provides a Kafka listener for external job-control
// requests. Other services cancel running generations by publishing to the
// control topic instead of calling the HTTP API.
package control

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/segmentio/kafka-go"

	"github.com/sadiq-codes/genpaper-sub003/internal/repository"
	gentemporal "github.com/sadiq-codes/genpaper-sub003/internal/temporal"
)

// WorkflowSignaler sends signals to running workflows. Satisfied by the
// Temporal client.Client.
type WorkflowSignaler interface {
	SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error
}

// CancelRequestedEvent is the control message requesting cancellation of a
// running generation job.
type CancelRequestedEvent struct {
	JobID       uuid.UUID `json:"job_id"`
	RequestedBy string    `json:"requested_by"`
	Reason      string    `json:"reason"`
}

// Config holds configuration for the control listener.
type Config struct {
	// Brokers is the list of Kafka broker addresses.
	Brokers []string
	// Topic is the Kafka topic for control events.
	Topic string
	// GroupID is the consumer group ID.
	GroupID string
}

// Listener consumes control events from Kafka and signals the affected
// workflows.
type Listener struct {
	reader         *kafka.Reader
	workflowClient WorkflowSignaler
	jobs           repository.JobRepository
	logger         zerolog.Logger
}

// NewListener creates a new control event listener.
func NewListener(
	cfg Config,
	workflowClient WorkflowSignaler,
	jobs repository.JobRepository,
	logger zerolog.Logger,
) *Listener {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  cfg.Brokers,
		Topic:    cfg.Topic,
		GroupID:  cfg.GroupID,
		MinBytes: 1,
		MaxBytes: 10e6,
		MaxWait:  3 * time.Second,
	})

	return &Listener{
		reader:         reader,
		workflowClient: workflowClient,
		jobs:           jobs,
		logger:         logger.With().Str("component", "control_listener").Logger(),
	}
}

// Run starts the listener loop. Blocks until context is cancelled.
func (l *Listener) Run(ctx context.Context) error {
	l.logger.Info().Msg("starting control listener")

	for {
		msg, err := l.reader.ReadMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				l.logger.Info().Msg("control listener stopped via context cancellation")
				return ctx.Err()
			}
			l.logger.Error().Err(err).Msg("failed to read message from Kafka")
			continue
		}

		l.logger.Debug().
			Int("partition", msg.Partition).
			Int64("offset", msg.Offset).
			Msg("received control event")

		var event CancelRequestedEvent
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			l.logger.Error().Err(err).
				Str("raw_value", string(msg.Value)).
				Msg("failed to unmarshal control event")
			continue
		}

		if err := l.handleCancelRequested(ctx, event); err != nil {
			l.logger.Error().Err(err).
				Str("job_id", event.JobID.String()).
				Msg("failed to handle cancel request")
		}
	}
}

// handleCancelRequested signals the job's workflow to stop at its next
// checkpoint. Terminal jobs and jobs without a workflow are skipped, not
// errors: the request may have raced job completion.
func (l *Listener) handleCancelRequested(ctx context.Context, event CancelRequestedEvent) error {
	if event.JobID == uuid.Nil {
		return fmt.Errorf("cancel request without job ID")
	}

	l.logger.Info().
		Str("job_id", event.JobID.String()).
		Str("requested_by", event.RequestedBy).
		Str("reason", event.Reason).
		Msg("handling cancel request")

	job, err := l.jobs.Get(ctx, event.JobID)
	if err != nil {
		return fmt.Errorf("get job %s: %w", event.JobID, err)
	}

	if job.Status.IsTerminal() {
		l.logger.Debug().
			Str("job_id", job.ID.String()).
			Str("status", string(job.Status)).
			Msg("job already terminal, ignoring cancel request")
		return nil
	}
	if job.WorkflowID == "" {
		l.logger.Warn().
			Str("job_id", job.ID.String()).
			Msg("job has no workflow ID, skipping cancel request")
		return nil
	}

	// Empty run ID targets the latest run.
	err = l.workflowClient.SignalWorkflow(ctx,
		job.WorkflowID,
		"",
		gentemporal.SignalCancel,
		nil,
	)
	if err != nil {
		return fmt.Errorf("signal workflow %s: %w", job.WorkflowID, err)
	}

	l.logger.Info().
		Str("job_id", job.ID.String()).
		Str("workflow_id", job.WorkflowID).
		Msg("sent cancel signal to workflow")
	return nil
}

// Close closes the Kafka reader.
func (l *Listener) Close() error {
	l.logger.Info().Msg("closing control listener")
	return l.reader.Close()
}
