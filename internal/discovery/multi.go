package discovery

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// MultiBackend fans one search out to several backends concurrently and
// merges their results. A backend failure degrades the result set rather
// than failing the search; the call errors only when every backend fails.
type MultiBackend struct {
	backends []SearchBackend
	logger   zerolog.Logger
}

// Compile-time interface verification.
var _ SearchBackend = (*MultiBackend)(nil)

// NewMultiBackend creates a fan-out backend over the given backends.
func NewMultiBackend(logger zerolog.Logger, backends ...SearchBackend) *MultiBackend {
	return &MultiBackend{
		backends: backends,
		logger:   logger.With().Str("component", "multi_backend").Logger(),
	}
}

// Name returns the joined names of the underlying backends.
func (m *MultiBackend) Name() string {
	names := make([]string, len(m.backends))
	for i, b := range m.backends {
		names[i] = b.Name()
	}
	return strings.Join(names, "+")
}

// Search queries all backends concurrently and merges their results,
// dropping records that duplicate an earlier backend's DOI. Backend order
// determines merge priority.
func (m *MultiBackend) Search(ctx context.Context, topic string, maxResults int) ([]*domain.SourceDocument, error) {
	if len(m.backends) == 0 {
		return nil, fmt.Errorf("no search backends configured")
	}

	perBackend := make([][]*domain.SourceDocument, len(m.backends))
	errs := make([]error, len(m.backends))

	var mu sync.Mutex
	g, gCtx := errgroup.WithContext(ctx)
	for i, backend := range m.backends {
		g.Go(func() error {
			sources, err := backend.Search(gCtx, topic, maxResults)
			mu.Lock()
			perBackend[i] = sources
			errs[i] = err
			mu.Unlock()
			if err != nil {
				m.logger.Warn().
					Err(err).
					Str("backend", backend.Name()).
					Msg("search backend failed")
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	failed := 0
	for _, err := range errs {
		if err != nil {
			failed++
		}
	}
	if failed == len(m.backends) {
		return nil, fmt.Errorf("all search backends failed: %w", errs[0])
	}

	seen := make(map[string]struct{})
	var merged []*domain.SourceDocument
	for _, sources := range perBackend {
		for _, s := range sources {
			if s.DOI != "" {
				if _, ok := seen[s.DOI]; ok {
					continue
				}
				seen[s.DOI] = struct{}{}
			}
			merged = append(merged, s)
		}
	}

	if maxResults > 0 && len(merged) > maxResults {
		merged = merged[:maxResults]
	}
	return merged, nil
}
