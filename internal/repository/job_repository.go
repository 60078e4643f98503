package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// JobRepository handles generation job persistence and lifecycle tracking.
// The Temporal workflow owns in-flight state; the rows here exist so the HTTP
// surface can answer status and result queries without touching the workflow.
type JobRepository interface {
	// Create inserts a new generation job.
	// Returns domain.ErrAlreadyExists if a job with the same ID exists.
	Create(ctx context.Context, job *domain.GenerationJob) error

	// Get retrieves a generation job by its ID.
	// Returns domain.ErrNotFound if no matching job exists.
	Get(ctx context.Context, id uuid.UUID) (*domain.GenerationJob, error)

	// GetByWorkflowID retrieves a generation job by its Temporal workflow ID.
	// Returns domain.ErrNotFound if no matching job exists.
	GetByWorkflowID(ctx context.Context, workflowID string) (*domain.GenerationJob, error)

	// UpdateStatus transitions a job to the given status. The error message is
	// stored only for failed jobs. Started and completed timestamps are set on
	// the first active and first terminal transition respectively.
	// Returns domain.ErrNotFound if no matching job exists.
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errorMsg string) error

	// SetWorkflow records the Temporal workflow and run IDs for a job.
	// Returns domain.ErrNotFound if no matching job exists.
	SetWorkflow(ctx context.Context, id uuid.UUID, workflowID, runID string) error

	// SaveResult stores the assembled result of a completed job, replacing any
	// earlier result for the same job.
	SaveResult(ctx context.Context, result *domain.GenerationResult) error

	// GetResult retrieves the stored result for a job.
	// Returns domain.ErrNotFound if the job has no stored result.
	GetResult(ctx context.Context, jobID uuid.UUID) (*domain.GenerationResult, error)

	// List retrieves jobs matching the filter, newest first, with the total
	// match count for pagination.
	List(ctx context.Context, filter JobFilter) ([]*domain.GenerationJob, int64, error)
}

// JobFilter holds criteria for listing generation jobs.
type JobFilter struct {
	// Status restricts results to a single status when non-empty.
	Status domain.JobStatus

	// CreatedAfter restricts results to jobs created after this time.
	CreatedAfter *time.Time

	Limit  int
	Offset int
}
