package httpserver

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
	"github.com/sadiq-codes/genpaper-sub003/internal/repository"
	"github.com/sadiq-codes/genpaper-sub003/internal/temporal"
)

// Pagination and validation constants.
const (
	defaultPageSize    = 50
	maxPageSize        = 100
	maxRequestBodySize = 1 << 20 // 1 MB limit for request bodies
)

// createGenerationRequest is the JSON request body for starting a
// generation job.
type createGenerationRequest struct {
	Topic           string   `json:"topic" validate:"required,min=3,max=500"`
	PinnedSourceIDs []string `json:"pinned_source_ids,omitempty" validate:"max=50,dive,uuid"`
	DocumentType    string   `json:"document_type,omitempty" validate:"omitempty,oneof=research_paper literature_review empirical_article"`
	TargetSources   *int     `json:"target_sources,omitempty" validate:"omitempty,min=1,max=50"`
	EnableDiscovery *bool    `json:"enable_discovery,omitempty"`
	ChunkLimit      *int     `json:"chunk_limit,omitempty" validate:"omitempty,min=1,max=50"`
	LLMModel        string   `json:"llm_model,omitempty" validate:"omitempty,max=128"`
}

// createGeneration handles POST /generations. It creates a generation job
// and starts the Temporal workflow that drives it.
func (s *Server) createGeneration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	defer r.Body.Close()
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read request body")
		return
	}

	var req createGenerationRequest
	if err := json.Unmarshal(body, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON request body")
		return
	}

	if err := s.validate.Struct(&req); err != nil {
		writeError(w, http.StatusBadRequest, validationMessage(err))
		return
	}

	pinned := make([]uuid.UUID, len(req.PinnedSourceIDs))
	for i, raw := range req.PinnedSourceIDs {
		pinned[i], _ = uuid.Parse(raw)
	}

	// Build configuration from defaults with optional overrides.
	cfg := domain.DefaultGenerationConfig()
	if req.DocumentType != "" {
		cfg.DocumentType = req.DocumentType
	}
	if req.TargetSources != nil {
		cfg.TargetSources = *req.TargetSources
	}
	if req.EnableDiscovery != nil {
		cfg.EnableDiscovery = *req.EnableDiscovery
	}
	if req.ChunkLimit != nil {
		cfg.ChunkLimit = *req.ChunkLimit
	}
	if req.LLMModel != "" {
		cfg.LLMModel = req.LLMModel
	}

	now := time.Now()
	job := &domain.GenerationJob{
		ID:              uuid.New(),
		Topic:           req.Topic,
		PinnedSourceIDs: pinned,
		Status:          domain.JobStatusPending,
		Config:          cfg,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	if err := s.jobs.Create(ctx, job); err != nil {
		writeDomainError(w, err)
		return
	}

	workflowID, runID, err := s.workflowClient.StartGenerationWorkflow(ctx, s.workflowFunc, temporal.GenerationWorkflowInput{
		JobID:           job.ID,
		Topic:           job.Topic,
		PinnedSourceIDs: job.PinnedSourceIDs,
		Config:          cfg,
	})
	if err != nil {
		// The job row exists but nothing will drive it; mark it failed so
		// clients are not left polling a pending job forever.
		_ = s.jobs.UpdateStatus(ctx, job.ID, domain.JobStatusFailed, "failed to start workflow")
		writeDomainError(w, err)
		return
	}

	// Best-effort update of workflow tracking IDs on the job record.
	_ = s.jobs.SetWorkflow(ctx, job.ID, workflowID, runID)

	writeJSON(w, http.StatusCreated, createGenerationResponse{
		JobID:      job.ID.String(),
		WorkflowID: workflowID,
		Status:     string(domain.JobStatusPending),
		CreatedAt:  now,
		Message:    "generation started",
	})
}

// getGeneration handles GET /generations/{jobID}. It returns the current
// status and details of a generation job.
func (s *Server) getGeneration(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseUUID(w, chi.URLParam(r, "jobID"), "job_id")
	if !ok {
		return
	}

	job, err := s.jobs.Get(r.Context(), jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainJobToStatusResponse(job))
}

// getGenerationResult handles GET /generations/{jobID}/result. The result
// exists only once the job has completed.
func (s *Server) getGenerationResult(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, ok := parseUUID(w, chi.URLParam(r, "jobID"), "job_id")
	if !ok {
		return
	}

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if job.Status != domain.JobStatusCompleted {
		writeError(w, http.StatusConflict, fmt.Sprintf("result not available: job is %s", job.Status))
		return
	}

	result, err := s.jobs.GetResult(ctx, jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, domainResultToResponse(result))
}

// cancelGeneration handles DELETE /generations/{jobID}. It requests
// cooperative cancellation of a running job by signalling its workflow.
func (s *Server) cancelGeneration(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	jobID, ok := parseUUID(w, chi.URLParam(r, "jobID"), "job_id")
	if !ok {
		return
	}

	job, err := s.jobs.Get(ctx, jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	if job.Status.IsTerminal() {
		writeError(w, http.StatusConflict, "job is already in terminal state")
		return
	}
	if job.WorkflowID == "" {
		writeError(w, http.StatusConflict, "job has no associated workflow")
		return
	}

	if err := s.workflowClient.CancelWorkflow(ctx, job.WorkflowID, job.RunID); err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, cancelGenerationResponse{
		Success:       true,
		Message:       "cancellation requested",
		CurrentStatus: string(job.Status),
	})
}

// listGenerations handles GET /generations. It returns a paginated list of
// job summaries with optional status and date filters.
func (s *Server) listGenerations(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	limit, offset := parsePaginationParams(r)

	filter := repository.JobFilter{
		Limit:  limit,
		Offset: offset,
	}

	if statusParam := r.URL.Query().Get("status"); statusParam != "" {
		status := domain.JobStatus(statusParam)
		if !status.IsValid() {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status: %s", statusParam))
			return
		}
		filter.Status = status
	}

	if createdAfter := r.URL.Query().Get("created_after"); createdAfter != "" {
		t, parseErr := time.Parse(time.RFC3339, createdAfter)
		if parseErr != nil {
			writeError(w, http.StatusBadRequest, "invalid created_after format: expected RFC3339")
			return
		}
		filter.CreatedAfter = &t
	}

	jobs, totalCount, err := s.jobs.List(ctx, filter)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	summaries := make([]jobSummaryResponse, len(jobs))
	for i, j := range jobs {
		summaries[i] = domainJobToSummary(j)
	}

	writeJSON(w, http.StatusOK, listJobsResponse{
		Jobs:          summaries,
		NextPageToken: encodePageToken(offset, limit, int(totalCount)),
		TotalCount:    int(totalCount),
	})
}

// validationMessage condenses a validator error into a client-facing
// message naming the first offending field.
func validationMessage(err error) string {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		return fmt.Sprintf("invalid field %s: failed %s validation", fe.Field(), fe.Tag())
	}
	return "invalid request"
}

// writeDomainError maps domain and temporal errors to HTTP status codes
// and writes a JSON error response. Internal error details are not leaked
// to clients.
func writeDomainError(w http.ResponseWriter, err error) {
	if err == nil {
		return
	}

	switch {
	case errors.Is(err, domain.ErrNotFound):
		writeError(w, http.StatusNotFound, "resource not found")
	case errors.Is(err, domain.ErrInvalidInput):
		var ve *domain.ValidationError
		if errors.As(err, &ve) {
			writeError(w, http.StatusBadRequest, ve.Error())
		} else {
			writeError(w, http.StatusBadRequest, "invalid input")
		}
	case errors.Is(err, domain.ErrAlreadyExists):
		writeError(w, http.StatusConflict, "resource already exists")
	case errors.Is(err, domain.ErrUnauthorized):
		writeError(w, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, domain.ErrForbidden):
		writeError(w, http.StatusForbidden, "forbidden")
	case errors.Is(err, domain.ErrRateLimited):
		writeError(w, http.StatusTooManyRequests, "rate limited")
	case errors.Is(err, domain.ErrServiceUnavailable):
		writeError(w, http.StatusServiceUnavailable, "service unavailable")
	case errors.Is(err, domain.ErrCancelled):
		writeError(w, http.StatusConflict, "operation cancelled")
	case errors.Is(err, temporal.ErrWorkflowNotFound):
		writeError(w, http.StatusNotFound, "workflow not found")
	case errors.Is(err, temporal.ErrWorkflowAlreadyStarted):
		writeError(w, http.StatusConflict, "workflow already started")
	default:
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// parseUUID parses a UUID from a string, writing a 400 error response if
// invalid. The parse error details are not echoed back.
func parseUUID(w http.ResponseWriter, s, fieldName string) (uuid.UUID, bool) {
	id, err := uuid.Parse(s)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%s must be a valid UUID", fieldName))
		return uuid.Nil, false
	}
	return id, true
}

// parsePaginationParams extracts page_size and page_token from query
// parameters, applying default and maximum bounds to the page size.
func parsePaginationParams(r *http.Request) (limit, offset int) {
	limit = defaultPageSize
	if pageSizeStr := r.URL.Query().Get("page_size"); pageSizeStr != "" {
		if parsed, err := strconv.Atoi(pageSizeStr); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}

	if pageToken := r.URL.Query().Get("page_token"); pageToken != "" {
		decoded, err := base64.StdEncoding.DecodeString(pageToken)
		if err == nil {
			if parsed, parseErr := strconv.Atoi(string(decoded)); parseErr == nil && parsed > 0 {
				offset = parsed
			}
		}
	}

	return limit, offset
}

// encodePageToken encodes the next offset as a base64 page token. Returns
// an empty string if there are no more results.
func encodePageToken(offset, limit, totalCount int) string {
	nextOffset := offset + limit
	if nextOffset < totalCount {
		return base64.StdEncoding.EncodeToString([]byte(strconv.Itoa(nextOffset)))
	}
	return ""
}
