package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// SourceRepository handles source document persistence.
type SourceRepository interface {
	// Upsert inserts a source document or updates an existing one. Sources
	// discovered twice keep the richer record: abstracts, URLs, and scores
	// are only overwritten with non-empty values. Sets ID when nil.
	Upsert(ctx context.Context, source *domain.SourceDocument) error

	// GetByID retrieves a source with its current chunk count.
	// Returns domain.ErrNotFound if no matching source exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.SourceDocument, error)

	// GetByIDs retrieves the sources with the given IDs, each with its
	// current chunk count. Missing IDs are silently skipped; callers compare
	// lengths when absence matters.
	GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.SourceDocument, error)

	// GetByDOI retrieves a source by its DOI.
	// Returns domain.ErrNotFound if no matching source exists.
	GetByDOI(ctx context.Context, doi string) (*domain.SourceDocument, error)

	// Search performs a keyword search over stored titles and abstracts,
	// ranked by text-search relevance. Used as the store-backed discovery
	// fallback when the external search backend is unavailable.
	Search(ctx context.Context, query string, limit int) ([]*domain.SourceDocument, error)

	// ChunkCounts returns the number of indexed passages per source for the
	// given IDs. Sources with no passages map to zero.
	ChunkCounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error)
}
