package httpserver

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

const (
	// ssePollInterval is how often the workflow and job store are polled.
	ssePollInterval = 2 * time.Second
	// sseMaxDuration is the maximum time an SSE stream may remain open.
	sseMaxDuration = 2 * time.Hour
)

// sseEvent represents an event sent via SSE.
type sseEvent struct {
	EventType string           `json:"event_type"`
	JobID     string           `json:"job_id"`
	Status    string           `json:"status"`
	Progress  *domain.Progress `json:"progress,omitempty"`
	Message   string           `json:"message"`
	Timestamp time.Time        `json:"timestamp"`
}

// streamProgress handles GET /generations/{jobID}/progress (SSE). The
// workflow progress query gives fine-grained stage and percent; the job
// store is the authority for terminal state.
func (s *Server) streamProgress(w http.ResponseWriter, r *http.Request) {
	jobID, ok := parseUUID(w, chi.URLParam(r, "jobID"), "job_id")
	if !ok {
		return
	}

	job, err := s.jobs.Get(r.Context(), jobID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	// Set SSE headers.
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	// If already terminal, send one event and close.
	if job.Status.IsTerminal() {
		sendSSEEvent(w, flusher, sseEvent{
			EventType: terminalEventType(job.Status),
			JobID:     jobID.String(),
			Status:    string(job.Status),
			Progress:  terminalProgress(job.Status),
			Message:   "job is in terminal state",
			Timestamp: time.Now(),
		})
		return
	}

	if job.WorkflowID == "" {
		sendSSEEvent(w, flusher, sseEvent{
			EventType: "error",
			JobID:     jobID.String(),
			Status:    string(job.Status),
			Message:   "job has no associated workflow",
			Timestamp: time.Now(),
		})
		return
	}

	ctx := r.Context()

	// Send initial state.
	initial := sseEvent{
		EventType: "stream_started",
		JobID:     jobID.String(),
		Status:    string(job.Status),
		Message:   "progress stream started",
		Timestamp: time.Now(),
	}
	if progress, qErr := s.workflowClient.GetProgress(ctx, job.WorkflowID, job.RunID); qErr == nil {
		initial.Progress = progress
	}
	sendSSEEvent(w, flusher, initial)

	deadlineTimer := time.NewTimer(sseMaxDuration)
	defer deadlineTimer.Stop()
	ticker := time.NewTicker(ssePollInterval)
	defer ticker.Stop()

	var last domain.Progress

	for {
		select {
		case <-ctx.Done():
			return

		case <-deadlineTimer.C:
			sendSSEEvent(w, flusher, sseEvent{
				EventType: "timeout",
				JobID:     jobID.String(),
				Message:   "stream max duration exceeded",
				Timestamp: time.Now(),
			})
			return

		case <-ticker.C:
			current, pollErr := s.jobs.Get(ctx, jobID)
			if pollErr != nil {
				s.logger.Error().Err(pollErr).Str("job_id", jobID.String()).Msg("failed to poll job status")
				continue
			}

			if current.Status.IsTerminal() {
				sendSSEEvent(w, flusher, sseEvent{
					EventType: terminalEventType(current.Status),
					JobID:     current.ID.String(),
					Status:    string(current.Status),
					Progress:  terminalProgress(current.Status),
					Message:   "job finished with status: " + string(current.Status),
					Timestamp: time.Now(),
				})
				return
			}

			progress, qErr := s.workflowClient.GetProgress(ctx, current.WorkflowID, current.RunID)
			if qErr != nil {
				// The workflow may not be queryable yet; the job store poll
				// still catches terminal transitions.
				s.logger.Debug().Err(qErr).Str("job_id", jobID.String()).Msg("progress query failed")
				continue
			}

			if *progress == last {
				continue
			}
			last = *progress

			sendSSEEvent(w, flusher, sseEvent{
				EventType: "progress_update",
				JobID:     current.ID.String(),
				Status:    string(current.Status),
				Progress:  progress,
				Message:   progress.Message,
				Timestamp: time.Now(),
			})
		}
	}
}

// sendSSEEvent writes a single SSE event to the response writer.
func sendSSEEvent(w http.ResponseWriter, flusher http.Flusher, event sseEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.EventType, data)
	flusher.Flush()
}

// terminalEventType maps a terminal job status to its SSE event type.
func terminalEventType(status domain.JobStatus) string {
	switch status {
	case domain.JobStatusFailed:
		return "failed"
	case domain.JobStatusCancelled:
		return "cancelled"
	default:
		return "completed"
	}
}

// terminalProgress is the progress report attached to a terminal event.
func terminalProgress(status domain.JobStatus) *domain.Progress {
	if status == domain.JobStatusCompleted {
		return &domain.Progress{Stage: domain.StageComplete, Percent: 100, Message: "generation complete"}
	}
	return &domain.Progress{Stage: domain.StageFailed, Message: string(status)}
}
