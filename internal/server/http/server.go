// Package httpserver provides the REST API for the generation service:
// job submission, status and result retrieval, cancellation, and an SSE
// progress stream.
package httpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"github.com/sadiq-codes/genpaper-sub003/internal/database"
	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
	"github.com/sadiq-codes/genpaper-sub003/internal/repository"
	"github.com/sadiq-codes/genpaper-sub003/internal/temporal"
)

// WorkflowClient defines the workflow operations the HTTP server needs.
// Satisfied by *temporal.GenerationWorkflowClient.
type WorkflowClient interface {
	StartGenerationWorkflow(ctx context.Context, workflowFunc interface{}, input temporal.GenerationWorkflowInput) (workflowID, runID string, err error)
	CancelWorkflow(ctx context.Context, workflowID, runID string) error
	GetProgress(ctx context.Context, workflowID, runID string) (*domain.Progress, error)
	Health(ctx context.Context) error
}

// Server is the HTTP REST API server.
type Server struct {
	router         chi.Router
	httpServer     *http.Server
	workflowClient WorkflowClient
	workflowFunc   interface{} // The Temporal workflow function reference.
	jobs           repository.JobRepository
	db             *database.DB
	validate       *validator.Validate
	logger         zerolog.Logger
}

// Config holds HTTP server configuration.
type Config struct {
	Address         string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// NewServer creates a new HTTP server with all dependencies. workflowFunc is
// the Temporal workflow function reference (e.g. workflows.GenerationWorkflow)
// passed to StartGenerationWorkflow.
func NewServer(
	cfg Config,
	workflowClient WorkflowClient,
	workflowFunc interface{},
	jobs repository.JobRepository,
	db *database.DB,
	logger zerolog.Logger,
) *Server {
	s := &Server{
		workflowClient: workflowClient,
		workflowFunc:   workflowFunc,
		jobs:           jobs,
		db:             db,
		validate:       validator.New(),
		logger:         logger.With().Str("component", "http-server").Logger(),
	}

	s.router = s.buildRouter()

	s.httpServer = &http.Server{
		Addr:         cfg.Address,
		Handler:      s.router,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// buildRouter creates the chi router with all middleware and routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(correlationIDMiddleware)
	r.Use(s.requestLogMiddleware)

	// Health endpoints
	r.Get("/healthz", s.healthHandler)
	r.Get("/readyz", s.readinessHandler)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(jsonContentTypeMiddleware)

		r.Post("/generations", s.createGeneration)
		r.Get("/generations", s.listGenerations)
		r.Get("/generations/{jobID}", s.getGeneration)
		r.Delete("/generations/{jobID}", s.cancelGeneration)
		r.Get("/generations/{jobID}/result", s.getGenerationResult)
		r.Get("/generations/{jobID}/progress", s.streamProgress)
	})

	return r
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.logger.Info().Str("address", s.httpServer.Addr).Msg("HTTP server starting")
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listen on HTTP address: %w", err)
	}
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// healthHandler returns basic liveness status.
func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status == "healthy" {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "database": health.Status})
		return
	}
	writeJSON(w, http.StatusServiceUnavailable, map[string]string{
		"status":   "unhealthy",
		"database": health.Status,
		"error":    health.Error,
	})
}

// readinessHandler returns readiness status including Temporal connectivity.
func (s *Server) readinessHandler(w http.ResponseWriter, r *http.Request) {
	health := s.db.Health(r.Context())
	if health.Status != "healthy" {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": health.Status,
			"error":    health.Error,
		})
		return
	}
	if err := s.workflowClient.Health(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status":   "not_ready",
			"database": "healthy",
			"temporal": "unreachable",
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":   "ready",
		"database": "healthy",
		"temporal": "healthy",
	})
}

// writeJSON writes a JSON response with the given status code.
func writeJSON(w http.ResponseWriter, statusCode int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		// Best-effort; headers already sent.
		_ = err
	}
}

// writeError writes a JSON error response.
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, map[string]string{
		"error": message,
	})
}
