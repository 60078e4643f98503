// Package retrieval implements adaptive multi-tier passage retrieval with
// per-source balancing over the passage index.
package retrieval

import (
	"context"
	"fmt"
	"strings"
	"unicode"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/sadiq-codes/genpaper-sub003/internal/config"
	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
	"github.com/sadiq-codes/genpaper-sub003/internal/index"
	"github.com/sadiq-codes/genpaper-sub003/internal/observability"
)

// rawLimitFactor is the headroom requested from the index over the caller's
// limit, so per-source balancing has candidates to choose from.
const rawLimitFactor = 3

// Request holds the parameters for one retrieval call.
type Request struct {
	JobID uuid.UUID

	// Query is the text passages are ranked against.
	Query string

	// Sources is the eligible corpus subset. Abstracts are used as fallback
	// material when no indexed passage clears any threshold tier.
	Sources []*domain.SourceDocument

	// Limit is the maximum number of chunks returned.
	Limit int
}

// Retriever runs an ordered list of score-threshold tiers against the passage
// index; the first tier returning results wins. Results pass a quality filter
// and per-source balancing before being returned.
type Retriever struct {
	index   index.PassageIndex
	cfg     config.RetrievalConfig
	cache   *Cache
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewRetriever creates a chunk retriever.
func NewRetriever(idx index.PassageIndex, cfg config.RetrievalConfig, metrics *observability.Metrics, logger zerolog.Logger) *Retriever {
	return &Retriever{
		index:   idx,
		cfg:     cfg,
		cache:   NewCache(cfg.CacheTTL),
		metrics: metrics,
		logger:  logger.With().Str("component", "retriever").Logger(),
	}
}

// Retrieve returns up to req.Limit balanced chunks for the query.
//
// When the final set's average score falls below the configured floor, the
// chunks are returned together with domain.ErrLowRetrievalQuality: the error
// is a signal, not an abort, and callers top up with AbstractChunks. When no
// indexed passage clears any tier, abstract-derived pseudo-chunks are
// returned instead; when those are also unavailable the call fails with
// domain.ErrNoRelevantContent.
func (r *Retriever) Retrieve(ctx context.Context, req Request) ([]*domain.Chunk, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, domain.NewValidationError("query", "query is required")
	}
	if req.Limit <= 0 {
		return nil, domain.NewValidationError("limit", "limit must be positive")
	}
	if len(req.Sources) == 0 {
		return nil, domain.ErrNoRelevantContent
	}

	sourceIDs := make([]uuid.UUID, len(req.Sources))
	for i, s := range req.Sources {
		sourceIDs[i] = s.ID
	}

	key := cacheKey(req.JobID, req.Query, sourceIDs, req.Limit)
	if cached := r.cache.Get(key); cached != nil {
		r.metrics.RetrievalCacheHits.Inc()
		return cached, r.scoreFloorSignal(cached)
	}

	raw, tier, err := r.queryTiers(ctx, req.Query, sourceIDs, req.Limit*rawLimitFactor)
	if err != nil {
		return nil, err
	}

	if len(raw) == 0 {
		chunks := r.AbstractChunks(req.Sources, req.Limit)
		if len(chunks) == 0 {
			r.metrics.RetrievalsTotal.WithLabelValues("empty").Inc()
			return nil, domain.ErrNoRelevantContent
		}
		r.metrics.RetrievalsTotal.WithLabelValues("abstract").Inc()
		r.metrics.ChunksPerRetrieval.Observe(float64(len(chunks)))
		r.cache.Set(key, chunks)

		r.logger.Debug().
			Str("job_id", req.JobID.String()).
			Int("chunks", len(chunks)).
			Msg("no indexed passage cleared any tier, using abstracts")
		return chunks, nil
	}

	filtered := r.qualityFilter(raw)
	balanced := r.balance(filtered, req.Limit)

	r.metrics.RetrievalsTotal.WithLabelValues("primary").Inc()
	r.metrics.ChunksPerRetrieval.Observe(float64(len(balanced)))
	r.cache.Set(key, balanced)

	r.logger.Debug().
		Str("job_id", req.JobID.String()).
		Float64("tier", tier).
		Int("raw", len(raw)).
		Int("chunks", len(balanced)).
		Msg("retrieval completed")

	return balanced, r.scoreFloorSignal(balanced)
}

// EvictJob drops all cached results for a finished job.
func (r *Retriever) EvictJob(jobID uuid.UUID) {
	r.cache.EvictJob(jobID)
}

// queryTiers tries each score threshold in order and returns the first
// non-empty result set, stamping the winning threshold onto each chunk.
// More permissive tiers are never consulted once a tier succeeds.
func (r *Retriever) queryTiers(ctx context.Context, query string, sourceIDs []uuid.UUID, rawLimit int) ([]*domain.Chunk, float64, error) {
	for _, tier := range r.cfg.Tiers {
		chunks, err := r.index.Query(ctx, query, sourceIDs, tier, rawLimit)
		if err != nil {
			return nil, 0, fmt.Errorf("tier %.2f query failed: %w", tier, err)
		}
		if len(chunks) > 0 {
			for _, c := range chunks {
				c.Tier = domain.TierPrimary
				c.TierThreshold = tier
			}
			return chunks, tier, nil
		}
	}
	return nil, 0, nil
}

// qualityFilter drops candidates that are too short or carry no letters. When
// filtering would empty a non-empty candidate set, the top raw candidates are
// kept instead.
func (r *Retriever) qualityFilter(raw []*domain.Chunk) []*domain.Chunk {
	filtered := make([]*domain.Chunk, 0, len(raw))
	for _, c := range raw {
		content := strings.TrimSpace(c.Content)
		if len(content) < r.cfg.MinChunkChars {
			continue
		}
		if len(strings.Fields(content)) < r.cfg.MinChunkWords {
			continue
		}
		if !strings.ContainsFunc(content, unicode.IsLetter) {
			continue
		}
		filtered = append(filtered, c)
	}

	if len(filtered) == 0 {
		n := r.cfg.RawFallbackLimit
		if n > len(raw) {
			n = len(raw)
		}
		return raw[:n]
	}
	return filtered
}

// balance caps chunks per source at max(floor, ceil(limit/sourceCount)), then
// fills any remaining slots ignoring the cap, de-duplicating by content.
func (r *Retriever) balance(chunks []*domain.Chunk, limit int) []*domain.Chunk {
	if len(chunks) == 0 {
		return nil
	}

	distinct := make(map[uuid.UUID]struct{})
	for _, c := range chunks {
		distinct[c.SourceID] = struct{}{}
	}
	perSourceCap := ceilDiv(limit, len(distinct))
	if perSourceCap < r.cfg.PerSourceFloor {
		perSourceCap = r.cfg.PerSourceFloor
	}

	selected := make([]*domain.Chunk, 0, limit)
	perSource := make(map[uuid.UUID]int)
	seen := make(map[string]struct{})
	picked := make(map[*domain.Chunk]struct{})

	for _, c := range chunks {
		if len(selected) >= limit {
			break
		}
		norm := normalizeContent(c.Content)
		if _, dup := seen[norm]; dup {
			continue
		}
		if perSource[c.SourceID] >= perSourceCap {
			continue
		}
		selected = append(selected, c)
		perSource[c.SourceID]++
		seen[norm] = struct{}{}
		picked[c] = struct{}{}
	}

	// Fill pass: top up to limit ignoring the per-source cap.
	for _, c := range chunks {
		if len(selected) >= limit {
			break
		}
		if _, ok := picked[c]; ok {
			continue
		}
		norm := normalizeContent(c.Content)
		if _, dup := seen[norm]; dup {
			continue
		}
		selected = append(selected, c)
		seen[norm] = struct{}{}
	}

	return selected
}

// AbstractChunks builds pseudo-chunks from source abstracts: long abstracts
// are split into sentence-sized pieces, short ones are used whole. Returns at
// most limit chunks, round-robin across sources so one long abstract cannot
// crowd out the rest.
func (r *Retriever) AbstractChunks(sources []*domain.SourceDocument, limit int) []*domain.Chunk {
	perSource := make([][]*domain.Chunk, 0, len(sources))
	for _, s := range sources {
		abstract := strings.TrimSpace(s.Abstract)
		if abstract == "" {
			continue
		}

		var pieces []string
		if len(abstract) > r.cfg.AbstractSplitThreshold {
			pieces = splitSentences(abstract)
		} else {
			pieces = []string{abstract}
		}

		chunks := make([]*domain.Chunk, 0, len(pieces))
		for i, piece := range pieces {
			chunks = append(chunks, &domain.Chunk{
				ID:       uuid.New(),
				SourceID: s.ID,
				Content:  piece,
				Tier:     domain.TierAbstract,
				Index:    i,
			})
		}
		perSource = append(perSource, chunks)
	}

	var out []*domain.Chunk
	for round := 0; ; round++ {
		added := false
		for _, chunks := range perSource {
			if round < len(chunks) && len(out) < limit {
				out = append(out, chunks[round])
				added = true
			}
		}
		if !added || len(out) >= limit {
			break
		}
	}
	return out
}

// scoreFloorSignal reports low aggregate quality without withholding results.
// Abstract pseudo-chunks are exempt: they are the top-up material themselves.
func (r *Retriever) scoreFloorSignal(chunks []*domain.Chunk) error {
	if len(chunks) == 0 || chunks[0].Tier == domain.TierAbstract {
		return nil
	}
	var sum float64
	for _, c := range chunks {
		sum += c.Score
	}
	if sum/float64(len(chunks)) < r.cfg.ScoreFloor {
		return domain.ErrLowRetrievalQuality
	}
	return nil
}

// splitSentences splits text at sentence-ending punctuation followed by
// whitespace, dropping fragments too short to stand alone.
func splitSentences(text string) []string {
	var sentences []string
	var current strings.Builder

	runes := []rune(text)
	for i, r := range runes {
		current.WriteRune(r)
		if (r == '.' || r == '!' || r == '?') &&
			(i+1 >= len(runes) || unicode.IsSpace(runes[i+1])) {
			s := strings.TrimSpace(current.String())
			if len(s) >= 20 {
				sentences = append(sentences, s)
			}
			current.Reset()
		}
	}
	if s := strings.TrimSpace(current.String()); len(s) >= 20 {
		sentences = append(sentences, s)
	}
	return sentences
}

func normalizeContent(s string) string {
	return strings.Join(strings.Fields(strings.ToLower(s)), " ")
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
