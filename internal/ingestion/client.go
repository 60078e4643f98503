// Package ingestion provides an HTTP client for the ingestion service, the
// collaborator that persists discovered sources and extracts their full text.
package ingestion

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// Config holds ingestion client configuration.
type Config struct {
	// BaseURL is the HTTP base URL of the ingestion service.
	BaseURL string

	// Timeout is the per-request timeout. Defaults to 30 seconds.
	Timeout time.Duration
}

// Client talks to the ingestion service over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a new ingestion service client.
func NewClient(cfg Config) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("ingestion service base URL is required")
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// ingestRequest is the JSON body sent to the sources endpoint.
type ingestRequest struct {
	Title           string          `json:"title"`
	Abstract        string          `json:"abstract,omitempty"`
	Authors         []domain.Author `json:"authors,omitempty"`
	PublicationYear int             `json:"publication_year,omitempty"`
	Venue           string          `json:"venue,omitempty"`
	DOI             string          `json:"doi,omitempty"`
	ContentURL      string          `json:"content_url,omitempty"`
}

// ingestResponse is the JSON body returned by the sources endpoint.
type ingestResponse struct {
	ID         uuid.UUID `json:"id"`
	IsExisting bool      `json:"is_existing"`
}

// IngestResult holds the outcome of ingesting one source.
type IngestResult struct {
	// ID is the persistent identifier assigned by the ingestion service.
	ID uuid.UUID

	// IsExisting is true when the idempotency key matched an earlier submission.
	IsExisting bool
}

// IngestSource submits a discovered source for persistence. Duplicate
// submissions of the same source return the existing record. Only sources
// this call succeeds for may enter a job corpus.
func (c *Client) IngestSource(ctx context.Context, source *domain.SourceDocument) (*IngestResult, error) {
	if source == nil {
		return nil, domain.NewValidationError("source", "source cannot be nil")
	}
	if source.Title == "" {
		return nil, domain.NewValidationError("title", "title is required")
	}

	body, err := json.Marshal(ingestRequest{
		Title:           source.Title,
		Abstract:        source.Abstract,
		Authors:         source.Authors,
		PublicationYear: source.PublicationYear,
		Venue:           source.Venue,
		DOI:             source.DOI,
		ContentURL:      source.ContentURL,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal ingest request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/sources", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create ingest request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Idempotency-Key", idempotencyKey(source))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ingest source: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError("ingestion", resp.StatusCode, string(respBody), nil)
	}

	var ingestResp ingestResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&ingestResp); err != nil {
		return nil, fmt.Errorf("decode ingest response: %w", err)
	}
	if ingestResp.ID == uuid.Nil {
		return nil, fmt.Errorf("ingestion service returned no source ID")
	}

	return &IngestResult{
		ID:         ingestResp.ID,
		IsExisting: ingestResp.IsExisting,
	}, nil
}

// idempotencyKey derives a stable key from the DOI when present, otherwise
// from the title and content URL.
func idempotencyKey(source *domain.SourceDocument) string {
	material := source.DOI
	if material == "" {
		material = source.Title + "|" + source.ContentURL
	}
	h := sha256.Sum256([]byte(material))
	return fmt.Sprintf("%x", h)
}
