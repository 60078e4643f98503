package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

const (
	// defaultOpenAlexURL is the public OpenAlex API endpoint.
	defaultOpenAlexURL = "https://api.openalex.org"

	// openAlexMaxPerPage is the API's per_page ceiling.
	openAlexMaxPerPage = 200

	doiPrefix = "https://doi.org/"
)

// OpenAlexConfig holds configuration for the OpenAlex search backend.
type OpenAlexConfig struct {
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string

	// Email joins the polite pool for higher rate limits.
	Email string

	Timeout    time.Duration
	RateLimit  float64
	BurstSize  int
	MaxResults int
}

// OpenAlexBackend searches OpenAlex for candidate sources.
type OpenAlexBackend struct {
	config     OpenAlexConfig
	httpClient *HTTPClient
	logger     zerolog.Logger
}

// Compile-time interface verification.
var _ SearchBackend = (*OpenAlexBackend)(nil)

// NewOpenAlexBackend creates an OpenAlex search backend.
func NewOpenAlexBackend(cfg OpenAlexConfig, logger zerolog.Logger) *OpenAlexBackend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultOpenAlexURL
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = 25
	}

	httpClient := NewHTTPClient(HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "genpaper/1.0 (mailto:" + cfg.Email + ")",
	})

	return &OpenAlexBackend{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "openalex").Logger(),
	}
}

// Name returns the backend name.
func (b *OpenAlexBackend) Name() string {
	return "openalex"
}

// Search queries the works endpoint and maps results to source documents.
func (b *OpenAlexBackend) Search(ctx context.Context, topic string, maxResults int) ([]*domain.SourceDocument, error) {
	if strings.TrimSpace(topic) == "" {
		return nil, domain.NewValidationError("topic", "topic is required")
	}

	searchURL, err := b.buildSearchURL(topic, maxResults)
	if err != nil {
		return nil, fmt.Errorf("building search URL: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("executing request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
		return nil, domain.NewExternalAPIError("OpenAlex", resp.StatusCode, string(body), nil)
	}

	var searchResp searchResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&searchResp); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	sources := make([]*domain.SourceDocument, 0, len(searchResp.Results))
	for i := range searchResp.Results {
		if s := workToSource(&searchResp.Results[i]); s != nil {
			sources = append(sources, s)
		}
	}

	b.logger.Debug().
		Int("results", len(sources)).
		Int("total", searchResp.Meta.Count).
		Msg("openalex search completed")

	return sources, nil
}

func (b *OpenAlexBackend) buildSearchURL(topic string, maxResults int) (string, error) {
	baseURL, err := url.Parse(b.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path = "/works"

	if maxResults <= 0 {
		maxResults = b.config.MaxResults
	}
	if maxResults > openAlexMaxPerPage {
		maxResults = openAlexMaxPerPage
	}

	query := url.Values{}
	query.Set("search", topic)
	query.Set("per_page", strconv.Itoa(maxResults))
	if b.config.Email != "" {
		query.Set("mailto", b.config.Email)
	}

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// workToSource converts an OpenAlex work to a source document. Works without
// a title are skipped.
func workToSource(w *work) *domain.SourceDocument {
	title := w.DisplayName
	if title == "" {
		title = w.Title
	}
	if title == "" {
		return nil
	}

	authors := make([]domain.Author, 0, len(w.Authorships))
	for _, a := range w.Authorships {
		author := domain.Author{
			Name:  a.Author.DisplayName,
			ORCID: strings.TrimPrefix(a.Author.Orcid, "https://orcid.org/"),
		}
		if len(a.Institutions) > 0 {
			author.Affiliation = a.Institutions[0].DisplayName
		}
		authors = append(authors, author)
	}

	var venue string
	if w.PrimaryLocation != nil && w.PrimaryLocation.Source != nil {
		venue = w.PrimaryLocation.Source.DisplayName
	}

	// Prefer the open-access URL; fall back to the primary location PDF.
	var contentURL string
	if w.OpenAccess != nil && w.OpenAccess.OAURL != "" {
		contentURL = w.OpenAccess.OAURL
	} else if w.PrimaryLocation != nil && w.PrimaryLocation.PDFURL != "" {
		contentURL = w.PrimaryLocation.PDFURL
	}

	return &domain.SourceDocument{
		Title:           title,
		Abstract:        reconstructAbstract(w.AbstractInvertedIndex),
		Authors:         authors,
		PublicationYear: w.PublicationYear,
		Venue:           venue,
		DOI:             normalizeDOI(w.DOI),
		ContentURL:      contentURL,
		RelevanceScore:  w.RelevanceScore,
	}
}

// normalizeDOI strips URL and scheme prefixes and lowercases the DOI.
func normalizeDOI(doi string) string {
	doi = strings.TrimSpace(doi)
	doi = strings.TrimPrefix(doi, doiPrefix)
	doi = strings.TrimPrefix(doi, "http://doi.org/")
	doi = strings.TrimPrefix(doi, "doi:")
	return strings.ToLower(strings.TrimSpace(doi))
}

// reconstructAbstract rebuilds abstract text from OpenAlex's inverted index,
// which maps words to their positions.
func reconstructAbstract(invertedIndex map[string][]int) string {
	if len(invertedIndex) == 0 {
		return ""
	}

	type posWord struct {
		pos  int
		word string
	}

	const maxAbstractWords = 100_000
	totalPairs := 0
	for _, positions := range invertedIndex {
		totalPairs += len(positions)
	}
	if totalPairs > maxAbstractWords {
		return ""
	}

	pairs := make([]posWord, 0, totalPairs)
	for word, positions := range invertedIndex {
		for _, pos := range positions {
			pairs = append(pairs, posWord{pos: pos, word: word})
		}
	}
	sort.Slice(pairs, func(i, j int) bool {
		return pairs[i].pos < pairs[j].pos
	})

	var builder strings.Builder
	builder.Grow(totalPairs * 7)
	for i, pair := range pairs {
		if i > 0 {
			builder.WriteByte(' ')
		}
		builder.WriteString(pair.word)
	}
	return builder.String()
}
