package discovery

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

const (
	// defaultArXivURL is the public arXiv export API endpoint.
	defaultArXivURL = "https://export.arxiv.org/api"

	// arXivMaxResults is the API's max_results ceiling per request.
	arXivMaxResults = 2000
)

// arXivIDPattern extracts the bare paper ID from an abs URL, dropping any
// version suffix.
var arXivIDPattern = regexp.MustCompile(`arxiv\.org/abs/(.+?)(?:v\d+)?$`)

// ArXivConfig holds configuration for the arXiv search backend.
type ArXivConfig struct {
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string

	Timeout    time.Duration
	RateLimit  float64
	BurstSize  int
	MaxResults int
}

// ArXivBackend searches the arXiv Atom API for candidate sources.
type ArXivBackend struct {
	config     ArXivConfig
	httpClient *HTTPClient
	logger     zerolog.Logger
}

// Compile-time interface verification.
var _ SearchBackend = (*ArXivBackend)(nil)

// NewArXivBackend creates an arXiv search backend. The API terms of use ask
// for no more than one request every three seconds, so the rate limit
// defaults conservatively when unset.
func NewArXivBackend(cfg ArXivConfig, logger zerolog.Logger) *ArXivBackend {
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultArXivURL
	}
	if cfg.MaxResults == 0 {
		cfg.MaxResults = 25
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = 1.0 / 3.0
		cfg.BurstSize = 1
	}

	httpClient := NewHTTPClient(HTTPClientConfig{
		Timeout:   cfg.Timeout,
		RateLimit: cfg.RateLimit,
		BurstSize: cfg.BurstSize,
		UserAgent: "genpaper/1.0",
	})

	return &ArXivBackend{
		config:     cfg,
		httpClient: httpClient,
		logger:     logger.With().Str("component", "arxiv").Logger(),
	}
}

// Name returns the backend name.
func (b *ArXivBackend) Name() string {
	return "arxiv"
}

// Search queries the arXiv query endpoint and maps Atom entries to source
// documents.
func (b *ArXivBackend) Search(ctx context.Context, topic string, maxResults int) ([]*domain.SourceDocument, error) {
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
		return nil, domain.NewExternalAPIError("arXiv", resp.StatusCode, string(body), nil)
	}

	var feed atomFeed
	if err := xml.NewDecoder(io.LimitReader(resp.Body, 10<<20)).Decode(&feed); err != nil {
		return nil, fmt.Errorf("decoding feed: %w", err)
	}

	sources := make([]*domain.SourceDocument, 0, len(feed.Entries))
	for i := range feed.Entries {
		if s := entryToSource(&feed.Entries[i]); s != nil {
			sources = append(sources, s)
		}
	}

	b.logger.Debug().
		Int("results", len(sources)).
		Int("total", feed.TotalResults).
		Msg("arxiv search completed")

	return sources, nil
}

func (b *ArXivBackend) buildSearchURL(topic string, maxResults int) (string, error) {
	baseURL, err := url.Parse(b.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing base URL: %w", err)
	}
	baseURL.Path += "/query"

	if maxResults <= 0 {
		maxResults = b.config.MaxResults
	}
	if maxResults > arXivMaxResults {
		maxResults = arXivMaxResults
	}

	query := url.Values{}
	query.Set("search_query", "all:"+topic)
	query.Set("start", "0")
	query.Set("max_results", strconv.Itoa(maxResults))
	query.Set("sortBy", "relevance")
	query.Set("sortOrder", "descending")

	baseURL.RawQuery = query.Encode()
	return baseURL.String(), nil
}

// atomFeed is the arXiv API's Atom response envelope.
type atomFeed struct {
	XMLName      xml.Name    `xml:"feed"`
	TotalResults int         `xml:"totalResults"`
	Entries      []atomEntry `xml:"entry"`
}

type atomEntry struct {
	ID        string       `xml:"id"` // "http://arxiv.org/abs/2301.12345v1"
	Title     string       `xml:"title"`
	Summary   string       `xml:"summary"`
	Published string       `xml:"published"` // RFC 3339
	Authors   []atomAuthor `xml:"author"`
	Links     []atomLink   `xml:"link"`
	DOI       string       `xml:"doi"`
}

type atomAuthor struct {
	Name        string `xml:"name"`
	Affiliation string `xml:"affiliation"`
}

type atomLink struct {
	Href  string `xml:"href,attr"`
	Rel   string `xml:"rel,attr"`
	Type  string `xml:"type,attr"`
	Title string `xml:"title,attr"`
}

// entryToSource converts an Atom entry to a source document. Entries without
// a title are skipped.
func entryToSource(e *atomEntry) *domain.SourceDocument {
	title := collapseWhitespace(e.Title)
	if title == "" {
		return nil
	}

	authors := make([]domain.Author, 0, len(e.Authors))
	for _, a := range e.Authors {
		authors = append(authors, domain.Author{
			Name:        a.Name,
			Affiliation: a.Affiliation,
		})
	}

	var year int
	if t, err := time.Parse(time.RFC3339, e.Published); err == nil {
		year = t.Year()
	}

	return &domain.SourceDocument{
		Title:           title,
		Abstract:        collapseWhitespace(e.Summary),
		Authors:         authors,
		PublicationYear: year,
		Venue:           "arXiv",
		DOI:             normalizeDOI(e.DOI),
		ContentURL:      pdfURL(e),
	}
}

// pdfURL picks the PDF link from the entry, constructing one from the
// abstract URL when the feed omits it.
func pdfURL(e *atomEntry) string {
	for _, link := range e.Links {
		if link.Title == "pdf" || link.Type == "application/pdf" {
			return link.Href
		}
	}
	if m := arXivIDPattern.FindStringSubmatch(e.ID); m != nil {
		return "https://arxiv.org/pdf/" + m[1]
	}
	return ""
}

// collapseWhitespace folds the hard-wrapped whitespace arXiv embeds in titles
// and abstracts into single spaces.
func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
