package activities

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
	"github.com/sadiq-codes/genpaper-sub003/internal/observability"
	"github.com/sadiq-codes/genpaper-sub003/internal/repository"
)

// CacheEvictor frees per-job retrieval cache state once a job finishes.
// Satisfied by *retrieval.Retriever.
type CacheEvictor interface {
	EvictJob(jobID uuid.UUID)
}

// JobActivities provides Temporal activities for job status transitions and
// result persistence. Methods on this struct are registered as Temporal
// activities via the worker.
type JobActivities struct {
	jobs    repository.JobRepository
	evictor CacheEvictor
	metrics *observability.Metrics
}

// NewJobActivities creates a new JobActivities instance. The evictor and
// metrics parameters may be nil (cache eviction and metrics recording will
// be skipped).
func NewJobActivities(jobs repository.JobRepository, evictor CacheEvictor, metrics *observability.Metrics) *JobActivities {
	return &JobActivities{
		jobs:    jobs,
		evictor: evictor,
		metrics: metrics,
	}
}

// UpdateStatus transitions a generation job to the given status.
//
// For terminal states (failed, cancelled), metrics are recorded and the
// per-job retrieval cache is evicted. The errorMsg field is stored only
// when transitioning to a failed state.
func (a *JobActivities) UpdateStatus(ctx context.Context, input UpdateStatusInput) error {
	logger := activity.GetLogger(ctx)
	logger.Info("updating job status",
		"jobID", input.JobID,
		"status", input.Status,
		"hasErrorMsg", input.ErrorMsg != "",
	)

	err := a.jobs.UpdateStatus(ctx, input.JobID, input.Status, input.ErrorMsg)
	if err != nil {
		logger.Error("failed to update job status",
			"jobID", input.JobID,
			"status", input.Status,
			"error", err,
		)
		return asActivityError(ctx, fmt.Errorf("update job status to %s: %w", input.Status, err))
	}

	if input.Status.IsTerminal() && a.evictor != nil {
		a.evictor.EvictJob(input.JobID)
	}

	if a.metrics != nil {
		switch input.Status {
		case domain.JobStatusFailed:
			a.metrics.JobsFailed.Inc()
		case domain.JobStatusCancelled:
			a.metrics.JobsCancelled.Inc()
		}
	}

	return nil
}

// CompleteJob assembles and persists the final result, transitions the job
// to completed, and releases the per-job retrieval cache.
func (a *JobActivities) CompleteJob(ctx context.Context, input CompleteJobInput) (*CompleteJobOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("completing job",
		"jobID", input.JobID,
		"sections", len(input.Drafts),
		"citations", len(input.Records),
	)

	result := assembleResult(input.JobID, input.Drafts, input.Records, input.Analytics, input.Warnings)

	if err := a.jobs.SaveResult(ctx, result); err != nil {
		logger.Error("failed to save result",
			"jobID", input.JobID,
			"error", err,
		)
		return nil, asActivityError(ctx, fmt.Errorf("save result: %w", err))
	}

	if err := a.jobs.UpdateStatus(ctx, input.JobID, domain.JobStatusCompleted, ""); err != nil {
		return nil, asActivityError(ctx, fmt.Errorf("update job status to completed: %w", err))
	}

	if a.evictor != nil {
		a.evictor.EvictJob(input.JobID)
	}

	if a.metrics != nil {
		a.metrics.JobsCompleted.Inc()
		if input.DurationSeconds > 0 {
			a.metrics.JobDuration.Observe(input.DurationSeconds)
		}
	}

	citationCount := len(uniqueRecordSources(input.Records))

	logger.Info("job completed",
		"jobID", input.JobID,
		"words", result.WordCount,
		"citations", citationCount,
	)

	return &CompleteJobOutput{
		WordCount:     result.WordCount,
		CitationCount: citationCount,
	}, nil
}

// uniqueRecordSources returns the distinct source IDs across citation
// records, in first-appearance order.
func uniqueRecordSources(records []domain.CitationRecord) []uuid.UUID {
	seen := make(map[uuid.UUID]struct{}, len(records))
	ids := make([]uuid.UUID, 0, len(records))
	for _, rec := range records {
		if _, ok := seen[rec.SourceID]; ok {
			continue
		}
		seen[rec.SourceID] = struct{}{}
		ids = append(ids, rec.SourceID)
	}
	return ids
}
