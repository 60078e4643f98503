package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// Compile-time interface verification.
var _ JobRepository = (*PgJobRepository)(nil)

// PgJobRepository is a PostgreSQL implementation of JobRepository.
type PgJobRepository struct {
	db DBTX
}

// NewPgJobRepository creates a new PostgreSQL job repository.
func NewPgJobRepository(db DBTX) *PgJobRepository {
	return &PgJobRepository{db: db}
}

const jobColumns = `id, topic, pinned_source_ids, status, error_message, config,
	workflow_id, run_id, created_at, updated_at, started_at, completed_at`

// Create inserts a new generation job.
func (r *PgJobRepository) Create(ctx context.Context, job *domain.GenerationJob) error {
	if job == nil {
		return domain.NewValidationError("job", "job cannot be nil")
	}
	if strings.TrimSpace(job.Topic) == "" {
		return domain.NewValidationError("topic", "topic is required")
	}
	if !job.Status.IsValid() {
		return domain.NewValidationError("status", fmt.Sprintf("unknown status %q", job.Status))
	}

	if job.ID == uuid.Nil {
		job.ID = uuid.New()
	}

	pinnedJSON, err := json.Marshal(job.PinnedSourceIDs)
	if err != nil {
		return fmt.Errorf("failed to marshal pinned source IDs: %w", err)
	}
	configJSON, err := json.Marshal(job.Config)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	now := time.Now().UTC()
	job.CreatedAt = now
	job.UpdatedAt = now

	query := `
		INSERT INTO generation_jobs (
			id, topic, pinned_source_ids, status, error_message, config,
			workflow_id, run_id, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)`

	_, err = r.db.Exec(ctx, query,
		job.ID,
		job.Topic,
		pinnedJSON,
		job.Status,
		job.ErrorMessage,
		configJSON,
		job.WorkflowID,
		job.RunID,
		job.CreatedAt,
		job.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// Get retrieves a generation job by its ID.
func (r *PgJobRepository) Get(ctx context.Context, id uuid.UUID) (*domain.GenerationJob, error) {
	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE id = $1`

	job, err := scanJob(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("job", id.String())
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return job, nil
}

// GetByWorkflowID retrieves a generation job by its Temporal workflow ID.
func (r *PgJobRepository) GetByWorkflowID(ctx context.Context, workflowID string) (*domain.GenerationJob, error) {
	if workflowID == "" {
		return nil, domain.NewValidationError("workflow_id", "workflow ID is required")
	}

	query := `SELECT ` + jobColumns + ` FROM generation_jobs WHERE workflow_id = $1`

	job, err := scanJob(r.db.QueryRow(ctx, query, workflowID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("job", workflowID)
		}
		return nil, fmt.Errorf("failed to get job by workflow ID: %w", err)
	}

	return job, nil
}

// UpdateStatus transitions a job to the given status.
func (r *PgJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errorMsg string) error {
	if !status.IsValid() {
		return domain.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	if status != domain.JobStatusFailed {
		errorMsg = ""
	}

	query := `
		UPDATE generation_jobs SET
			status = $2,
			error_message = $3,
			started_at = CASE WHEN started_at IS NULL AND $2 NOT IN ('pending') THEN NOW() ELSE started_at END,
			completed_at = CASE WHEN completed_at IS NULL AND $2 IN ('completed', 'failed', 'cancelled') THEN NOW() ELSE completed_at END,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, status, errorMsg)
	if err != nil {
		return fmt.Errorf("failed to update job status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("job", id.String())
	}

	return nil
}

// SetWorkflow records the Temporal workflow and run IDs for a job.
func (r *PgJobRepository) SetWorkflow(ctx context.Context, id uuid.UUID, workflowID, runID string) error {
	query := `
		UPDATE generation_jobs SET
			workflow_id = $2,
			run_id = $3,
			updated_at = NOW()
		WHERE id = $1`

	tag, err := r.db.Exec(ctx, query, id, workflowID, runID)
	if err != nil {
		return fmt.Errorf("failed to set job workflow: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return domain.NewNotFoundError("job", id.String())
	}

	return nil
}

// SaveResult stores the assembled result of a completed job.
func (r *PgJobRepository) SaveResult(ctx context.Context, result *domain.GenerationResult) error {
	if result == nil {
		return domain.NewValidationError("result", "result cannot be nil")
	}
	if result.JobID == uuid.Nil {
		return domain.NewValidationError("job_id", "job ID is required")
	}

	citationsJSON, err := json.Marshal(result.CitationMap)
	if err != nil {
		return fmt.Errorf("failed to marshal citation map: %w", err)
	}
	structureJSON, err := json.Marshal(result.SectionStructure)
	if err != nil {
		return fmt.Errorf("failed to marshal section structure: %w", err)
	}
	metricsJSON, err := json.Marshal(result.QualityMetrics)
	if err != nil {
		return fmt.Errorf("failed to marshal quality metrics: %w", err)
	}
	analyticsJSON, err := json.Marshal(result.ToolCallAnalytics)
	if err != nil {
		return fmt.Errorf("failed to marshal analytics: %w", err)
	}
	warningsJSON, err := json.Marshal(result.Warnings)
	if err != nil {
		return fmt.Errorf("failed to marshal warnings: %w", err)
	}

	query := `
		INSERT INTO generation_results (
			job_id, content, citation_map, word_count,
			section_structure, quality_metrics, tool_call_analytics, warnings,
			created_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, NOW()
		)
		ON CONFLICT (job_id) DO UPDATE SET
			content = EXCLUDED.content,
			citation_map = EXCLUDED.citation_map,
			word_count = EXCLUDED.word_count,
			section_structure = EXCLUDED.section_structure,
			quality_metrics = EXCLUDED.quality_metrics,
			tool_call_analytics = EXCLUDED.tool_call_analytics,
			warnings = EXCLUDED.warnings`

	_, err = r.db.Exec(ctx, query,
		result.JobID,
		result.Content,
		citationsJSON,
		result.WordCount,
		structureJSON,
		metricsJSON,
		analyticsJSON,
		warningsJSON,
	)
	if err != nil {
		return fmt.Errorf("failed to save result: %w", err)
	}

	return nil
}

// GetResult retrieves the stored result for a job.
func (r *PgJobRepository) GetResult(ctx context.Context, jobID uuid.UUID) (*domain.GenerationResult, error) {
	query := `
		SELECT job_id, content, citation_map, word_count,
			section_structure, quality_metrics, tool_call_analytics, warnings
		FROM generation_results
		WHERE job_id = $1`

	var result domain.GenerationResult
	var citationsJSON, structureJSON, metricsJSON, analyticsJSON, warningsJSON []byte

	err := r.db.QueryRow(ctx, query, jobID).Scan(
		&result.JobID,
		&result.Content,
		&citationsJSON,
		&result.WordCount,
		&structureJSON,
		&metricsJSON,
		&analyticsJSON,
		&warningsJSON,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("result", jobID.String())
		}
		return nil, fmt.Errorf("failed to get result: %w", err)
	}

	if err := json.Unmarshal(citationsJSON, &result.CitationMap); err != nil {
		return nil, fmt.Errorf("failed to unmarshal citation map: %w", err)
	}
	if err := json.Unmarshal(structureJSON, &result.SectionStructure); err != nil {
		return nil, fmt.Errorf("failed to unmarshal section structure: %w", err)
	}
	if err := json.Unmarshal(metricsJSON, &result.QualityMetrics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal quality metrics: %w", err)
	}
	if err := json.Unmarshal(analyticsJSON, &result.ToolCallAnalytics); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analytics: %w", err)
	}
	if len(warningsJSON) > 0 {
		if err := json.Unmarshal(warningsJSON, &result.Warnings); err != nil {
			return nil, fmt.Errorf("failed to unmarshal warnings: %w", err)
		}
	}

	return &result, nil
}

// List retrieves jobs matching the filter, newest first.
func (r *PgJobRepository) List(ctx context.Context, filter JobFilter) ([]*domain.GenerationJob, int64, error) {
	applyPaginationDefaults(&filter.Limit, &filter.Offset)

	var conditions []string
	var args []interface{}
	argPos := 1

	if filter.Status != "" {
		conditions = append(conditions, fmt.Sprintf("status = $%d", argPos))
		args = append(args, filter.Status)
		argPos++
	}
	if filter.CreatedAfter != nil {
		conditions = append(conditions, fmt.Sprintf("created_at > $%d", argPos))
		args = append(args, *filter.CreatedAfter)
		argPos++
	}

	where := ""
	if len(conditions) > 0 {
		where = " WHERE " + strings.Join(conditions, " AND ")
	}

	var total int64
	countQuery := `SELECT COUNT(*) FROM generation_jobs` + where
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	query := `SELECT ` + jobColumns + ` FROM generation_jobs` + where +
		fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d OFFSET $%d", argPos, argPos+1)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	var jobs []*domain.GenerationJob
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan job: %w", err)
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate jobs: %w", err)
	}

	return jobs, total, nil
}

// scanJob scans one generation job row.
func scanJob(row pgx.Row) (*domain.GenerationJob, error) {
	var job domain.GenerationJob
	var pinnedJSON, configJSON []byte

	err := row.Scan(
		&job.ID,
		&job.Topic,
		&pinnedJSON,
		&job.Status,
		&job.ErrorMessage,
		&configJSON,
		&job.WorkflowID,
		&job.RunID,
		&job.CreatedAt,
		&job.UpdatedAt,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(pinnedJSON) > 0 {
		if err := json.Unmarshal(pinnedJSON, &job.PinnedSourceIDs); err != nil {
			return nil, fmt.Errorf("failed to unmarshal pinned source IDs: %w", err)
		}
	}
	if len(configJSON) > 0 {
		if err := json.Unmarshal(configJSON, &job.Config); err != nil {
			return nil, fmt.Errorf("failed to unmarshal config: %w", err)
		}
	}

	return &job, nil
}
