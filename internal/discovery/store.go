package discovery

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
	"github.com/sadiq-codes/genpaper-sub003/internal/repository"
)

// StoreBackend searches sources already persisted in the corpus store. Used
// standalone when external discovery is disabled, or as a fallback when the
// external backend fails.
type StoreBackend struct {
	sources repository.SourceRepository
	logger  zerolog.Logger
}

// Compile-time interface verification.
var _ SearchBackend = (*StoreBackend)(nil)

// NewStoreBackend creates a store-backed search backend.
func NewStoreBackend(sources repository.SourceRepository, logger zerolog.Logger) *StoreBackend {
	return &StoreBackend{
		sources: sources,
		logger:  logger.With().Str("component", "store_search").Logger(),
	}
}

// Name returns the backend name.
func (b *StoreBackend) Name() string {
	return "store"
}

// Search runs a keyword search over stored titles and abstracts.
func (b *StoreBackend) Search(ctx context.Context, topic string, maxResults int) ([]*domain.SourceDocument, error) {
	sources, err := b.sources.Search(ctx, topic, maxResults)
	if err != nil {
		return nil, fmt.Errorf("store search failed: %w", err)
	}
	return sources, nil
}
