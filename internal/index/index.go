// Package index provides semantic passage search over the chunks table using
// pgvector cosine similarity.
package index

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/rs/zerolog"

	"github.com/sadiq-codes/genpaper-sub003/internal/database"
	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
	"github.com/sadiq-codes/genpaper-sub003/internal/llm"
)

// PassageIndex searches indexed full-text passages by semantic similarity.
type PassageIndex interface {
	// Query embeds the query text and returns the most similar passages with
	// scores in [0,1], best first. A non-empty sourceIDs restricts results to
	// those sources; minScore drops passages scoring below it.
	Query(ctx context.Context, query string, sourceIDs []uuid.UUID, minScore float64, limit int) ([]*domain.Chunk, error)
}

// Compile-time interface verification.
var _ PassageIndex = (*PgPassageIndex)(nil)

// PgPassageIndex is a pgvector-backed PassageIndex. Passages are written by
// the ingestion service; this side only reads.
type PgPassageIndex struct {
	db       database.DBTX
	embedder llm.Embedder
	logger   zerolog.Logger
}

// NewPgPassageIndex creates a passage index over the given database.
func NewPgPassageIndex(db database.DBTX, embedder llm.Embedder, logger zerolog.Logger) *PgPassageIndex {
	return &PgPassageIndex{
		db:       db,
		embedder: embedder,
		logger:   logger.With().Str("component", "passage_index").Logger(),
	}
}

// Query returns the passages most similar to the query text.
func (idx *PgPassageIndex) Query(ctx context.Context, query string, sourceIDs []uuid.UUID, minScore float64, limit int) ([]*domain.Chunk, error) {
	if query == "" {
		return nil, domain.NewValidationError("query", "query text is required")
	}
	if limit <= 0 {
		return nil, domain.NewValidationError("limit", "limit must be positive")
	}

	embedding, err := idx.embedder.EmbedText(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	// Cosine distance is in [0,2]; 1 - distance maps to a [-1,1] similarity,
	// of which only the non-negative band clears any threshold tier.
	sql := `
		SELECT id, source_id, content, chunk_index, 1 - (embedding <=> $1) AS score
		FROM chunks
		WHERE ($2::uuid[] IS NULL OR source_id = ANY($2))
			AND 1 - (embedding <=> $1) >= $3
		ORDER BY embedding <=> $1
		LIMIT $4`

	var filter interface{}
	if len(sourceIDs) > 0 {
		ids := make([]string, len(sourceIDs))
		for i, id := range sourceIDs {
			ids[i] = id.String()
		}
		filter = ids
	}

	rows, err := idx.db.Query(ctx, sql, pgvector.NewVector(embedding), filter, minScore, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query passages: %w", err)
	}
	defer rows.Close()

	var chunks []*domain.Chunk
	for rows.Next() {
		chunk := &domain.Chunk{Tier: domain.TierPrimary}
		if err := rows.Scan(&chunk.ID, &chunk.SourceID, &chunk.Content, &chunk.Index, &chunk.Score); err != nil {
			return nil, fmt.Errorf("failed to scan passage: %w", err)
		}
		chunks = append(chunks, chunk)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate passages: %w", err)
	}

	idx.logger.Debug().
		Int("results", len(chunks)).
		Float64("min_score", minScore).
		Int("source_filter", len(sourceIDs)).
		Msg("passage query completed")

	return chunks, nil
}
