package activities

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
)

// EventPublisher publishes job lifecycle events. Satisfied by
// *events.Emitter.
type EventPublisher interface {
	EmitStarted(ctx context.Context, jobID uuid.UUID, topic string, sourceCount int) error
	EmitProgress(ctx context.Context, jobID uuid.UUID, phase string, complete, total int) error
	EmitCompleted(ctx context.Context, jobID uuid.UUID, wordCount, citationCount int) error
	EmitFailed(ctx context.Context, jobID uuid.UUID, category, message string) error
}

// EventActivities provides Temporal activities for publishing job lifecycle
// events to Kafka. The workflow invokes these fire-and-forget; failures are
// logged and returned but never fail the job.
type EventActivities struct {
	emitter EventPublisher
}

// NewEventActivities creates a new EventActivities instance.
func NewEventActivities(emitter EventPublisher) *EventActivities {
	return &EventActivities{emitter: emitter}
}

// PublishStarted publishes a generation.started event.
func (a *EventActivities) PublishStarted(ctx context.Context, input PublishStartedInput) error {
	if err := a.emitter.EmitStarted(ctx, input.JobID, input.Topic, input.SourceCount); err != nil {
		activity.GetLogger(ctx).Warn("failed to publish started event",
			"jobID", input.JobID,
			"error", err,
		)
		return fmt.Errorf("publish started event: %w", err)
	}
	return nil
}

// PublishProgress publishes a generation.progress event.
func (a *EventActivities) PublishProgress(ctx context.Context, input PublishProgressInput) error {
	if err := a.emitter.EmitProgress(ctx, input.JobID, input.Phase, input.SectionsComplete, input.SectionsTotal); err != nil {
		activity.GetLogger(ctx).Warn("failed to publish progress event",
			"jobID", input.JobID,
			"error", err,
		)
		return fmt.Errorf("publish progress event: %w", err)
	}
	return nil
}

// PublishCompleted publishes a generation.completed event.
func (a *EventActivities) PublishCompleted(ctx context.Context, input PublishCompletedInput) error {
	if err := a.emitter.EmitCompleted(ctx, input.JobID, input.WordCount, input.CitationCount); err != nil {
		activity.GetLogger(ctx).Warn("failed to publish completed event",
			"jobID", input.JobID,
			"error", err,
		)
		return fmt.Errorf("publish completed event: %w", err)
	}
	return nil
}

// PublishFailed publishes a generation.failed event.
func (a *EventActivities) PublishFailed(ctx context.Context, input PublishFailedInput) error {
	if err := a.emitter.EmitFailed(ctx, input.JobID, input.Category, input.Message); err != nil {
		activity.GetLogger(ctx).Warn("failed to publish failed event",
			"jobID", input.JobID,
			"error", err,
		)
		return fmt.Errorf("publish failed event: %w", err)
	}
	return nil
}
