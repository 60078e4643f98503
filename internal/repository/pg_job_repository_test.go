package repository

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

func newTestJob() *domain.GenerationJob {
	return &domain.GenerationJob{
		ID:              uuid.New(),
		Topic:           "transformer architectures for time-series forecasting",
		PinnedSourceIDs: []uuid.UUID{uuid.New(), uuid.New()},
		Status:          domain.JobStatusPending,
		Config:          domain.DefaultGenerationConfig(),
	}
}

func jobRow(t *testing.T, job *domain.GenerationJob) *pgxmock.Rows {
	t.Helper()
	pinnedJSON, err := json.Marshal(job.PinnedSourceIDs)
	require.NoError(t, err)
	configJSON, err := json.Marshal(job.Config)
	require.NoError(t, err)

	now := time.Now().UTC()
	return pgxmock.NewRows([]string{
		"id", "topic", "pinned_source_ids", "status", "error_message", "config",
		"workflow_id", "run_id", "created_at", "updated_at", "started_at", "completed_at",
	}).AddRow(
		job.ID, job.Topic, pinnedJSON, job.Status, job.ErrorMessage, configJSON,
		job.WorkflowID, job.RunID, now, now, nil, nil,
	)
}

func TestPgJobRepositoryCreate(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("INSERT INTO generation_jobs").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := NewPgJobRepository(mock)
		require.NoError(t, repo.Create(context.Background(), newTestJob()))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("blank topic rejected", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		job := newTestJob()
		job.Topic = "   "

		repo := NewPgJobRepository(mock)
		err = repo.Create(context.Background(), job)
		require.Error(t, err)

		var validationErr *domain.ValidationError
		assert.ErrorAs(t, err, &validationErr)
	})

	t.Run("duplicate maps to already exists", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("INSERT INTO generation_jobs").
			WillReturnError(&pgconn.PgError{Code: "23505"})

		repo := NewPgJobRepository(mock)
		err = repo.Create(context.Background(), newTestJob())
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})
}

func TestPgJobRepositoryGet(t *testing.T) {
	t.Parallel()

	t.Run("found", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		want := newTestJob()
		mock.ExpectQuery("SELECT .+ FROM generation_jobs WHERE id =").
			WithArgs(want.ID).
			WillReturnRows(jobRow(t, want))

		repo := NewPgJobRepository(mock)
		got, err := repo.Get(context.Background(), want.ID)
		require.NoError(t, err)
		assert.Equal(t, want.Topic, got.Topic)
		assert.Equal(t, want.PinnedSourceIDs, got.PinnedSourceIDs)
		assert.Equal(t, want.Config.DocumentType, got.Config.DocumentType)
	})

	t.Run("not found", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := uuid.New()
		mock.ExpectQuery("SELECT .+ FROM generation_jobs WHERE id =").
			WithArgs(id).
			WillReturnError(pgx.ErrNoRows)

		repo := NewPgJobRepository(mock)
		_, err = repo.Get(context.Background(), id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPgJobRepositoryUpdateStatus(t *testing.T) {
	t.Parallel()

	t.Run("success", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := uuid.New()
		mock.ExpectExec("UPDATE generation_jobs").
			WithArgs(id, domain.JobStatusCollecting, "").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewPgJobRepository(mock)
		require.NoError(t, repo.UpdateStatus(context.Background(), id, domain.JobStatusCollecting, ""))
	})

	t.Run("error message kept only for failed", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := uuid.New()
		mock.ExpectExec("UPDATE generation_jobs").
			WithArgs(id, domain.JobStatusCompleted, "").
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		repo := NewPgJobRepository(mock)
		require.NoError(t, repo.UpdateStatus(context.Background(), id, domain.JobStatusCompleted, "stale error"))
		require.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("unknown job", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		id := uuid.New()
		mock.ExpectExec("UPDATE generation_jobs").
			WithArgs(id, domain.JobStatusFailed, "llm provider unavailable").
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		repo := NewPgJobRepository(mock)
		err = repo.UpdateStatus(context.Background(), id, domain.JobStatusFailed, "llm provider unavailable")
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("invalid status rejected", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgJobRepository(mock)
		err = repo.UpdateStatus(context.Background(), uuid.New(), domain.JobStatus("bogus"), "")
		require.Error(t, err)
	})
}

func TestPgJobRepositoryResultRoundTrip(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	sourceID := uuid.New()
	result := &domain.GenerationResult{
		JobID:       jobID,
		Content:     "## Introduction\n\nDrafted text [cite:" + sourceID.String() + "].",
		CitationMap: map[string]uuid.UUID{sourceID.String(): sourceID},
		WordCount:   4,
		SectionStructure: []domain.SectionStructure{
			{Key: "introduction", Title: "Introduction", WordCount: 4, Score: 81.5},
		},
		QualityMetrics: domain.SectionQualityMetrics{CitationCoverage: 80, Relevance: 85, Density: 70, Structure: 90},
		Warnings:       []string{"citation shortfall: target 6, achieved 5"},
	}

	t.Run("save", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectExec("INSERT INTO generation_results").
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		repo := NewPgJobRepository(mock)
		require.NoError(t, repo.SaveResult(context.Background(), result))
	})

	t.Run("get", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		citationsJSON, err := json.Marshal(result.CitationMap)
		require.NoError(t, err)
		structureJSON, err := json.Marshal(result.SectionStructure)
		require.NoError(t, err)
		metricsJSON, err := json.Marshal(result.QualityMetrics)
		require.NoError(t, err)
		analyticsJSON, err := json.Marshal(result.ToolCallAnalytics)
		require.NoError(t, err)
		warningsJSON, err := json.Marshal(result.Warnings)
		require.NoError(t, err)

		mock.ExpectQuery("SELECT .+ FROM generation_results").
			WithArgs(jobID).
			WillReturnRows(pgxmock.NewRows([]string{
				"job_id", "content", "citation_map", "word_count",
				"section_structure", "quality_metrics", "tool_call_analytics", "warnings",
			}).AddRow(
				jobID, result.Content, citationsJSON, result.WordCount,
				structureJSON, metricsJSON, analyticsJSON, warningsJSON,
			))

		repo := NewPgJobRepository(mock)
		got, err := repo.GetResult(context.Background(), jobID)
		require.NoError(t, err)
		assert.Equal(t, result.Content, got.Content)
		assert.Equal(t, result.CitationMap, got.CitationMap)
		assert.Equal(t, result.Warnings, got.Warnings)
	})

	t.Run("missing result", func(t *testing.T) {
		t.Parallel()
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		mock.ExpectQuery("SELECT .+ FROM generation_results").
			WithArgs(jobID).
			WillReturnError(pgx.ErrNoRows)

		repo := NewPgJobRepository(mock)
		_, err = repo.GetResult(context.Background(), jobID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPgJobRepositoryList(t *testing.T) {
	t.Parallel()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	want := newTestJob()
	want.Status = domain.JobStatusCompleted

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(domain.JobStatusCompleted).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(1)))
	mock.ExpectQuery("SELECT .+ FROM generation_jobs WHERE status =").
		WithArgs(domain.JobStatusCompleted, 50, 0).
		WillReturnRows(jobRow(t, want))

	repo := NewPgJobRepository(mock)
	jobs, total, err := repo.List(context.Background(), JobFilter{
		Status: domain.JobStatusCompleted,
		Limit:  50,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, jobs, 1)
	assert.Equal(t, want.ID, jobs[0].ID)
	require.NoError(t, mock.ExpectationsWereMet())
}
