package control

import (
	"context"
	"errors"
	"io"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
	"github.com/sadiq-codes/genpaper-sub003/internal/repository"
	gentemporal "github.com/sadiq-codes/genpaper-sub003/internal/temporal"
)

// mockJobRepository implements repository.JobRepository for testing.
type mockJobRepository struct {
	mock.Mock
}

func (m *mockJobRepository) Get(ctx context.Context, id uuid.UUID) (*domain.GenerationJob, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.GenerationJob), args.Error(1)
}

// Stub implementations for other repository.JobRepository methods.
func (m *mockJobRepository) Create(ctx context.Context, job *domain.GenerationJob) error { return nil }
func (m *mockJobRepository) GetByWorkflowID(ctx context.Context, workflowID string) (*domain.GenerationJob, error) {
	return nil, nil
}
func (m *mockJobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, errorMsg string) error {
	return nil
}
func (m *mockJobRepository) SetWorkflow(ctx context.Context, id uuid.UUID, workflowID, runID string) error {
	return nil
}
func (m *mockJobRepository) SaveResult(ctx context.Context, result *domain.GenerationResult) error {
	return nil
}
func (m *mockJobRepository) GetResult(ctx context.Context, jobID uuid.UUID) (*domain.GenerationResult, error) {
	return nil, nil
}
func (m *mockJobRepository) List(ctx context.Context, filter repository.JobFilter) ([]*domain.GenerationJob, int64, error) {
	return nil, 0, nil
}

// mockSignaler implements WorkflowSignaler for testing.
type mockSignaler struct {
	mock.Mock
}

func (m *mockSignaler) SignalWorkflow(ctx context.Context, workflowID, runID, signalName string, arg interface{}) error {
	args := m.Called(ctx, workflowID, runID, signalName, arg)
	return args.Error(0)
}

func newTestListener(signaler WorkflowSignaler, jobs repository.JobRepository) *Listener {
	return &Listener{
		workflowClient: signaler,
		jobs:           jobs,
		logger:         zerolog.New(io.Discard),
	}
}

func TestHandleCancelRequested_SignalsWorkflow(t *testing.T) {
	ctx := context.Background()
	jobID := uuid.New()

	job := &domain.GenerationJob{
		ID:         jobID,
		Status:     domain.JobStatusGenerating,
		WorkflowID: "generation-" + jobID.String(),
	}

	repo := new(mockJobRepository)
	repo.On("Get", ctx, jobID).Return(job, nil)

	signaler := new(mockSignaler)
	signaler.On("SignalWorkflow", ctx, job.WorkflowID, "", gentemporal.SignalCancel, nil).
		Return(nil)

	l := newTestListener(signaler, repo)

	err := l.handleCancelRequested(ctx, CancelRequestedEvent{
		JobID:       jobID,
		RequestedBy: "core_service",
		Reason:      "user requested",
	})
	require.NoError(t, err)
	signaler.AssertExpectations(t)
}

func TestHandleCancelRequested_TerminalJobIgnored(t *testing.T) {
	ctx := context.Background()
	jobID := uuid.New()

	repo := new(mockJobRepository)
	repo.On("Get", ctx, jobID).Return(&domain.GenerationJob{
		ID:         jobID,
		Status:     domain.JobStatusCompleted,
		WorkflowID: "generation-" + jobID.String(),
	}, nil)

	signaler := new(mockSignaler)

	l := newTestListener(signaler, repo)

	err := l.handleCancelRequested(ctx, CancelRequestedEvent{JobID: jobID})
	require.NoError(t, err)
	signaler.AssertNotCalled(t, "SignalWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleCancelRequested_NoWorkflowID(t *testing.T) {
	ctx := context.Background()
	jobID := uuid.New()

	repo := new(mockJobRepository)
	repo.On("Get", ctx, jobID).Return(&domain.GenerationJob{
		ID:     jobID,
		Status: domain.JobStatusPending,
	}, nil)

	signaler := new(mockSignaler)

	l := newTestListener(signaler, repo)

	err := l.handleCancelRequested(ctx, CancelRequestedEvent{JobID: jobID})
	require.NoError(t, err)
	signaler.AssertNotCalled(t, "SignalWorkflow", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestHandleCancelRequested_MissingJobID(t *testing.T) {
	l := newTestListener(new(mockSignaler), new(mockJobRepository))

	err := l.handleCancelRequested(context.Background(), CancelRequestedEvent{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "without job ID")
}

func TestHandleCancelRequested_RepoError(t *testing.T) {
	ctx := context.Background()
	jobID := uuid.New()

	repo := new(mockJobRepository)
	repo.On("Get", ctx, jobID).Return(nil, errors.New("connection refused"))

	l := newTestListener(new(mockSignaler), repo)

	err := l.handleCancelRequested(ctx, CancelRequestedEvent{JobID: jobID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "get job")
}

func TestHandleCancelRequested_SignalError(t *testing.T) {
	ctx := context.Background()
	jobID := uuid.New()

	job := &domain.GenerationJob{
		ID:         jobID,
		Status:     domain.JobStatusGenerating,
		WorkflowID: "generation-" + jobID.String(),
	}

	repo := new(mockJobRepository)
	repo.On("Get", ctx, jobID).Return(job, nil)

	signaler := new(mockSignaler)
	signaler.On("SignalWorkflow", ctx, job.WorkflowID, "", gentemporal.SignalCancel, nil).
		Return(errors.New("workflow not found"))

	l := newTestListener(signaler, repo)

	err := l.handleCancelRequested(ctx, CancelRequestedEvent{JobID: jobID})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "signal workflow")
}
