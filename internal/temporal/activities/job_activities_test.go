package activities

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
	"github.com/sadiq-codes/genpaper-sub003/internal/repository"
)

type statusChange struct {
	id       uuid.UUID
	status   domain.JobStatus
	errorMsg string
}

type stubJobRepo struct {
	mu       sync.Mutex
	statuses []statusChange
	results  []*domain.GenerationResult

	updateErr error
	saveErr   error
}

func (r *stubJobRepo) Create(context.Context, *domain.GenerationJob) error { return nil }

func (r *stubJobRepo) Get(context.Context, uuid.UUID) (*domain.GenerationJob, error) {
	return nil, domain.ErrNotFound
}

func (r *stubJobRepo) GetByWorkflowID(context.Context, string) (*domain.GenerationJob, error) {
	return nil, domain.ErrNotFound
}

func (r *stubJobRepo) UpdateStatus(_ context.Context, id uuid.UUID, status domain.JobStatus, errorMsg string) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.statuses = append(r.statuses, statusChange{id: id, status: status, errorMsg: errorMsg})
	return nil
}

func (r *stubJobRepo) SetWorkflow(context.Context, uuid.UUID, string, string) error { return nil }

func (r *stubJobRepo) SaveResult(_ context.Context, result *domain.GenerationResult) error {
	if r.saveErr != nil {
		return r.saveErr
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
	return nil
}

func (r *stubJobRepo) GetResult(context.Context, uuid.UUID) (*domain.GenerationResult, error) {
	return nil, domain.ErrNotFound
}

func (r *stubJobRepo) List(context.Context, repository.JobFilter) ([]*domain.GenerationJob, int64, error) {
	return nil, 0, nil
}

type stubEvictor struct {
	mu      sync.Mutex
	evicted []uuid.UUID
}

func (e *stubEvictor) EvictJob(jobID uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.evicted = append(e.evicted, jobID)
}

func TestUpdateStatus(t *testing.T) {
	t.Run("records transition", func(t *testing.T) {
		repo := &stubJobRepo{}
		evictor := &stubEvictor{}
		act := NewJobActivities(repo, evictor, nil)

		var suite testsuite.WorkflowTestSuite
		env := suite.NewTestActivityEnvironment()
		env.RegisterActivity(act.UpdateStatus)

		jobID := uuid.New()
		_, err := env.ExecuteActivity(act.UpdateStatus, UpdateStatusInput{
			JobID: jobID, Status: domain.JobStatusGenerating,
		})
		require.NoError(t, err)

		require.Len(t, repo.statuses, 1)
		assert.Equal(t, domain.JobStatusGenerating, repo.statuses[0].status)
		assert.Empty(t, evictor.evicted, "non-terminal transitions do not evict")
	})

	t.Run("terminal transition evicts job cache", func(t *testing.T) {
		repo := &stubJobRepo{}
		evictor := &stubEvictor{}
		act := NewJobActivities(repo, evictor, nil)

		var suite testsuite.WorkflowTestSuite
		env := suite.NewTestActivityEnvironment()
		env.RegisterActivity(act.UpdateStatus)

		jobID := uuid.New()
		_, err := env.ExecuteActivity(act.UpdateStatus, UpdateStatusInput{
			JobID: jobID, Status: domain.JobStatusFailed, ErrorMsg: "generation failed",
		})
		require.NoError(t, err)

		require.Len(t, repo.statuses, 1)
		assert.Equal(t, "generation failed", repo.statuses[0].errorMsg)
		assert.Equal(t, []uuid.UUID{jobID}, evictor.evicted)
	})

	t.Run("repository failure is classified", func(t *testing.T) {
		repo := &stubJobRepo{updateErr: errors.New("connection reset")}
		act := NewJobActivities(repo, nil, nil)

		var suite testsuite.WorkflowTestSuite
		env := suite.NewTestActivityEnvironment()
		env.RegisterActivity(act.UpdateStatus)

		_, err := env.ExecuteActivity(act.UpdateStatus, UpdateStatusInput{
			JobID: uuid.New(), Status: domain.JobStatusGenerating,
		})
		require.Error(t, err)

		var appErr *temporal.ApplicationError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "transient", appErr.Type())
	})
}

func TestCompleteJob(t *testing.T) {
	sourceA := uuid.New()
	sourceB := uuid.New()
	drafts := []*domain.SectionDraft{
		{Key: "introduction", Title: "Introduction", Content: "Intro.", WordCount: 200},
		{Key: "conclusion", Title: "Conclusion", Content: "Done.", WordCount: 150},
	}
	records := []domain.CitationRecord{
		{Token: domain.CitationToken(sourceA), SourceID: sourceA, SectionKey: "introduction"},
		{Token: domain.CitationToken(sourceA), SourceID: sourceA, SectionKey: "conclusion"},
		{Token: domain.CitationToken(sourceB), SourceID: sourceB, SectionKey: "conclusion"},
	}

	t.Run("persists result and completes", func(t *testing.T) {
		repo := &stubJobRepo{}
		evictor := &stubEvictor{}
		act := NewJobActivities(repo, evictor, nil)

		var suite testsuite.WorkflowTestSuite
		env := suite.NewTestActivityEnvironment()
		env.RegisterActivity(act.CompleteJob)

		jobID := uuid.New()
		val, err := env.ExecuteActivity(act.CompleteJob, CompleteJobInput{
			JobID:           jobID,
			Drafts:          drafts,
			Records:         records,
			Analytics:       domain.ToolCallAnalytics{TotalCalls: 7},
			Warnings:        []string{"partial coverage"},
			DurationSeconds: 42,
		})
		require.NoError(t, err)

		var output CompleteJobOutput
		require.NoError(t, val.Get(&output))
		assert.Equal(t, 350, output.WordCount)
		assert.Equal(t, 2, output.CitationCount, "distinct sources, not records")

		require.Len(t, repo.results, 1)
		assert.Equal(t, jobID, repo.results[0].JobID)
		assert.Equal(t, []string{"partial coverage"}, repo.results[0].Warnings)

		require.Len(t, repo.statuses, 1)
		assert.Equal(t, domain.JobStatusCompleted, repo.statuses[0].status)

		assert.Equal(t, []uuid.UUID{jobID}, evictor.evicted)
	})

	t.Run("save failure skips the status transition", func(t *testing.T) {
		repo := &stubJobRepo{saveErr: errors.New("connection reset")}
		act := NewJobActivities(repo, nil, nil)

		var suite testsuite.WorkflowTestSuite
		env := suite.NewTestActivityEnvironment()
		env.RegisterActivity(act.CompleteJob)

		_, err := env.ExecuteActivity(act.CompleteJob, CompleteJobInput{
			JobID: uuid.New(), Drafts: drafts, Records: records,
		})
		require.Error(t, err)
		assert.Empty(t, repo.statuses)
	})
}

func TestUniqueRecordSources(t *testing.T) {
	t.Parallel()

	a, b := uuid.New(), uuid.New()
	records := []domain.CitationRecord{
		{SourceID: a}, {SourceID: b}, {SourceID: a},
	}
	assert.Equal(t, []uuid.UUID{a, b}, uniqueRecordSources(records))
	assert.Empty(t, uniqueRecordSources(nil))
}
