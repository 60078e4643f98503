package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// Compile-time interface verification.
var _ SourceRepository = (*PgSourceRepository)(nil)

// PgSourceRepository is a PostgreSQL implementation of SourceRepository.
type PgSourceRepository struct {
	db DBTX
}

// NewPgSourceRepository creates a new PostgreSQL source repository.
func NewPgSourceRepository(db DBTX) *PgSourceRepository {
	return &PgSourceRepository{db: db}
}

const sourceColumns = `s.id, s.title, s.abstract, s.authors, s.publication_year,
	s.venue, s.doi, s.content_url, s.has_full_text, s.relevance_score,
	s.created_at, s.updated_at,
	(SELECT COUNT(*) FROM chunks c WHERE c.source_id = s.id) AS chunk_count`

// Upsert inserts a source document or updates an existing one keyed by ID.
func (r *PgSourceRepository) Upsert(ctx context.Context, source *domain.SourceDocument) error {
	if source == nil {
		return domain.NewValidationError("source", "source cannot be nil")
	}
	if source.Title == "" {
		return domain.NewValidationError("title", "title is required")
	}

	authorsJSON, err := json.Marshal(source.Authors)
	if err != nil {
		return fmt.Errorf("failed to marshal authors: %w", err)
	}

	if source.ID == uuid.Nil {
		source.ID = uuid.New()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO sources (
			id, title, abstract, authors, publication_year,
			venue, doi, content_url, has_full_text, relevance_score,
			created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12
		)
		ON CONFLICT (id) DO UPDATE SET
			title = EXCLUDED.title,
			abstract = CASE WHEN EXCLUDED.abstract <> '' THEN EXCLUDED.abstract ELSE sources.abstract END,
			authors = EXCLUDED.authors,
			publication_year = CASE WHEN EXCLUDED.publication_year > 0 THEN EXCLUDED.publication_year ELSE sources.publication_year END,
			venue = CASE WHEN EXCLUDED.venue <> '' THEN EXCLUDED.venue ELSE sources.venue END,
			doi = CASE WHEN EXCLUDED.doi <> '' THEN EXCLUDED.doi ELSE sources.doi END,
			content_url = CASE WHEN EXCLUDED.content_url <> '' THEN EXCLUDED.content_url ELSE sources.content_url END,
			has_full_text = EXCLUDED.has_full_text OR sources.has_full_text,
			relevance_score = COALESCE(EXCLUDED.relevance_score, sources.relevance_score),
			updated_at = NOW()
		RETURNING created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		source.ID,
		source.Title,
		source.Abstract,
		authorsJSON,
		source.PublicationYear,
		source.Venue,
		source.DOI,
		source.ContentURL,
		source.HasFullText,
		source.RelevanceScore,
		now,
		now,
	).Scan(&source.CreatedAt, &source.UpdatedAt)

	if err != nil {
		return fmt.Errorf("failed to upsert source: %w", err)
	}

	return nil
}

// GetByID retrieves a source by its UUID.
func (r *PgSourceRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.SourceDocument, error) {
	query := `SELECT ` + sourceColumns + ` FROM sources s WHERE s.id = $1`

	row := r.db.QueryRow(ctx, query, id)
	source, err := scanSource(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("source", id.String())
		}
		return nil, fmt.Errorf("failed to get source by ID: %w", err)
	}

	return source, nil
}

// GetByIDs retrieves the sources with the given IDs.
func (r *PgSourceRepository) GetByIDs(ctx context.Context, ids []uuid.UUID) ([]*domain.SourceDocument, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query := `SELECT ` + sourceColumns + ` FROM sources s WHERE s.id = ANY($1)`

	rows, err := r.db.Query(ctx, query, idStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to get sources by IDs: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// GetByDOI retrieves a source by its DOI.
func (r *PgSourceRepository) GetByDOI(ctx context.Context, doi string) (*domain.SourceDocument, error) {
	if doi == "" {
		return nil, domain.NewValidationError("doi", "DOI is required")
	}

	query := `SELECT ` + sourceColumns + ` FROM sources s WHERE s.doi = $1`

	row := r.db.QueryRow(ctx, query, doi)
	source, err := scanSource(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("source", doi)
		}
		return nil, fmt.Errorf("failed to get source by DOI: %w", err)
	}

	return source, nil
}

// Search performs a ranked full-text search over titles and abstracts.
func (r *PgSourceRepository) Search(ctx context.Context, query string, limit int) ([]*domain.SourceDocument, error) {
	if query == "" {
		return nil, domain.NewValidationError("query", "search query is required")
	}
	offset := 0
	applyPaginationDefaults(&limit, &offset)

	sql := `SELECT ` + sourceColumns + `
		FROM sources s
		WHERE to_tsvector('english', s.title || ' ' || s.abstract) @@ websearch_to_tsquery('english', $1)
		ORDER BY ts_rank(to_tsvector('english', s.title || ' ' || s.abstract), websearch_to_tsquery('english', $1)) DESC
		LIMIT $2`

	rows, err := r.db.Query(ctx, sql, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to search sources: %w", err)
	}
	defer rows.Close()

	return scanSources(rows)
}

// ChunkCounts returns the indexed passage count per source.
func (r *PgSourceRepository) ChunkCounts(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]int, error) {
	counts := make(map[uuid.UUID]int, len(ids))
	if len(ids) == 0 {
		return counts, nil
	}
	for _, id := range ids {
		counts[id] = 0
	}

	query := `
		SELECT source_id, COUNT(*)
		FROM chunks
		WHERE source_id = ANY($1)
		GROUP BY source_id`

	rows, err := r.db.Query(ctx, query, idStrings(ids))
	if err != nil {
		return nil, fmt.Errorf("failed to count chunks: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sourceID uuid.UUID
		var count int
		if err := rows.Scan(&sourceID, &count); err != nil {
			return nil, fmt.Errorf("failed to scan chunk count: %w", err)
		}
		counts[sourceID] = count
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate chunk counts: %w", err)
	}

	return counts, nil
}

// scanSource scans a single source row including the chunk_count column.
func scanSource(row pgx.Row) (*domain.SourceDocument, error) {
	var s domain.SourceDocument
	var authorsJSON []byte

	err := row.Scan(
		&s.ID,
		&s.Title,
		&s.Abstract,
		&authorsJSON,
		&s.PublicationYear,
		&s.Venue,
		&s.DOI,
		&s.ContentURL,
		&s.HasFullText,
		&s.RelevanceScore,
		&s.CreatedAt,
		&s.UpdatedAt,
		&s.ChunkCount,
	)
	if err != nil {
		return nil, err
	}

	if len(authorsJSON) > 0 {
		if err := json.Unmarshal(authorsJSON, &s.Authors); err != nil {
			return nil, fmt.Errorf("failed to unmarshal authors: %w", err)
		}
	}

	return &s, nil
}

func scanSources(rows pgx.Rows) ([]*domain.SourceDocument, error) {
	var sources []*domain.SourceDocument
	for rows.Next() {
		s, err := scanSource(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan source: %w", err)
		}
		sources = append(sources, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate sources: %w", err)
	}
	return sources, nil
}

// idStrings converts UUIDs to their text form for ANY($1) parameters.
func idStrings(ids []uuid.UUID) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = id.String()
	}
	return out
}
