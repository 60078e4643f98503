// Package collector assembles the working corpus for a generation job:
// pinned sources plus discovered ones, persisted through the ingestion
// service, with background full-text extraction and coverage gating
// before generation starts.
package collector

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/sadiq-codes/genpaper-sub003/internal/config"
	"github.com/sadiq-codes/genpaper-sub003/internal/dedup"
	"github.com/sadiq-codes/genpaper-sub003/internal/discovery"
	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
	"github.com/sadiq-codes/genpaper-sub003/internal/ingestion"
	"github.com/sadiq-codes/genpaper-sub003/internal/observability"
	"github.com/sadiq-codes/genpaper-sub003/internal/queue"
	"github.com/sadiq-codes/genpaper-sub003/internal/repository"
)

// Ingestor persists discovered sources. Satisfied by ingestion.Client.
type Ingestor interface {
	IngestSource(ctx context.Context, source *domain.SourceDocument) (*ingestion.IngestResult, error)
}

// ExtractionQueue enqueues background full-text extraction jobs.
// Satisfied by queue.ExtractionPublisher.
type ExtractionQueue interface {
	Enqueue(ctx context.Context, sourceID uuid.UUID, contentURL string, priority queue.Priority) error
}

// Result is the assembled corpus plus any non-fatal degradations that
// occurred while building it.
type Result struct {
	Sources  []*domain.SourceDocument
	Warnings []string

	// CoverageRatio is the fraction of sources meeting the chunk floor
	// when collection finished.
	CoverageRatio float64
}

// Collector builds job corpora.
type Collector struct {
	sources repository.SourceRepository
	search  discovery.SearchBackend
	ingest  Ingestor
	queue   ExtractionQueue
	matcher *dedup.Matcher
	cfg     config.CollectorConfig
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// New creates a Collector. The search backend may be nil when discovery
// is globally disabled.
func New(
	sources repository.SourceRepository,
	search discovery.SearchBackend,
	ingest Ingestor,
	extractionQueue ExtractionQueue,
	cfg config.CollectorConfig,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *Collector {
	return &Collector{
		sources: sources,
		search:  search,
		ingest:  ingest,
		queue:   extractionQueue,
		matcher: dedup.NewMatcher(dedup.DefaultMatcherConfig()),
		cfg:     cfg,
		metrics: metrics,
		logger:  logger.With().Str("component", "collector").Logger(),
	}
}

// Collect assembles the corpus for a job: pinned sources always included,
// discovery filling the remaining slots when enabled, then coverage
// gating. An empty final corpus is a terminal condition the caller must
// not retry; every other degradation surfaces as a warning.
func (c *Collector) Collect(ctx context.Context, topic string, pinnedIDs []uuid.UUID, jobCfg domain.GenerationConfig) (*Result, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, domain.NewValidationError("topic", "must not be empty")
	}

	result := &Result{}

	pinned, err := c.loadPinned(ctx, pinnedIDs, result)
	if err != nil {
		return nil, err
	}
	corpus := pinned

	remaining := jobCfg.TargetSources - len(corpus)
	if remaining > 0 && jobCfg.EnableDiscovery && c.search != nil {
		discovered := c.discover(ctx, topic, corpus, remaining, result)
		corpus = append(corpus, discovered...)
	}

	if len(corpus) == 0 {
		return nil, fmt.Errorf("no sources for topic %q: %w", topic, domain.ErrEmptyCorpus)
	}

	ratio, err := c.ensureCoverage(ctx, corpus, result)
	if err != nil {
		return nil, err
	}

	result.Sources = corpus
	result.CoverageRatio = ratio
	if c.metrics != nil {
		c.metrics.SourcesCollected.Observe(float64(len(corpus)))
	}
	c.logger.Info().
		Int("corpus_size", len(corpus)).
		Int("pinned", len(pinned)).
		Float64("coverage", ratio).
		Msg("corpus assembled")
	return result, nil
}

// loadPinned resolves pinned ids against the store. Missing ids degrade
// to a warning rather than failing the job.
func (c *Collector) loadPinned(ctx context.Context, pinnedIDs []uuid.UUID, result *Result) ([]*domain.SourceDocument, error) {
	if len(pinnedIDs) == 0 {
		return nil, nil
	}
	pinned, err := c.sources.GetByIDs(ctx, pinnedIDs)
	if err != nil {
		return nil, fmt.Errorf("load pinned sources: %w", err)
	}
	if len(pinned) < len(pinnedIDs) {
		missing := len(pinnedIDs) - len(pinned)
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("%d pinned source(s) not found and skipped", missing))
		c.logger.Warn().Int("missing", missing).Msg("pinned sources not found")
	}
	return pinned, nil
}

// discover queries the search backend for up to remaining sources,
// filters them for topical fit, and persists survivors through the
// ingestion service. Search failure degrades to the pinned-only corpus.
func (c *Collector) discover(ctx context.Context, topic string, existing []*domain.SourceDocument, remaining int, result *Result) []*domain.SourceDocument {
	candidates, err := c.search.Search(ctx, topic, remaining*2)
	if err != nil {
		result.Warnings = append(result.Warnings,
			fmt.Sprintf("source discovery failed (%s), continuing with pinned sources only", c.search.Name()))
		c.logger.Warn().Err(err).Str("backend", c.search.Name()).Msg("discovery failed")
		return nil
	}

	knownIDs := make(map[uuid.UUID]struct{}, len(existing))
	knownDOIs := make(map[string]struct{}, len(existing))
	for _, s := range existing {
		knownIDs[s.ID] = struct{}{}
		if s.DOI != "" {
			knownDOIs[s.DOI] = struct{}{}
		}
	}

	filter := newTopicFilter(topic, c.cfg.MinTermMatchRatio, c.cfg.MinRelevanceScore, c.cfg.PermissiveNoScore)

	var accepted []*domain.SourceDocument
	for _, candidate := range candidates {
		if len(accepted) >= remaining {
			break
		}
		if _, ok := knownIDs[candidate.ID]; ok && candidate.ID != uuid.Nil {
			continue
		}
		if _, ok := knownDOIs[candidate.DOI]; ok && candidate.DOI != "" {
			continue
		}
		if !filter.termMatch(candidate) {
			c.reject("off_topic")
			continue
		}
		if !filter.scoreMatch(candidate) {
			c.reject("low_score")
			continue
		}
		if c.matcher.AgainstCorpus(candidate, existing) || c.matcher.AgainstCorpus(candidate, accepted) {
			c.reject("duplicate")
			c.logger.Debug().Str("title", candidate.Title).Msg("dropping near-duplicate source")
			continue
		}

		ingested, err := c.ingest.IngestSource(ctx, candidate)
		if err != nil {
			c.reject("ingest_failed")
			c.logger.Warn().Err(err).Str("title", candidate.Title).Msg("ingest failed, dropping source")
			continue
		}
		candidate.ID = ingested.ID
		if candidate.DOI != "" {
			knownDOIs[candidate.DOI] = struct{}{}
		}
		accepted = append(accepted, candidate)
		if c.metrics != nil {
			c.metrics.SourcesDiscovered.Inc()
		}
	}

	c.logger.Info().
		Int("candidates", len(candidates)).
		Int("accepted", len(accepted)).
		Msg("discovery complete")
	return accepted
}

func (c *Collector) reject(reason string) {
	if c.metrics != nil {
		c.metrics.SourcesRejected.WithLabelValues(reason).Inc()
	}
}

// ensureCoverage enqueues extraction for under-chunked sources with a
// direct full-text URL, then waits for the coverage ratio to reach the
// target. Timing out never fails the job.
func (c *Collector) ensureCoverage(ctx context.Context, corpus []*domain.SourceDocument, result *Result) (float64, error) {
	needing := c.enqueueExtractions(ctx, corpus)

	ratio, err := c.coverageRatio(ctx, corpus)
	if err != nil {
		return 0, err
	}
	if len(needing) == 0 || ratio >= c.cfg.CoverageTarget {
		return ratio, nil
	}

	budget := coverageWait(len(needing), c.cfg.PerSourceAllowance, c.cfg.MinWait, c.cfg.MaxWait)
	c.logger.Info().
		Int("sources_needing_extraction", len(needing)).
		Dur("budget", budget).
		Msg("waiting for full-text coverage")

	start := time.Now()
	deadline := time.NewTimer(budget)
	defer deadline.Stop()
	ticker := time.NewTicker(c.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ratio, ctx.Err()
		case <-deadline.C:
			if c.metrics != nil {
				c.metrics.CoverageTimeouts.Inc()
				c.metrics.CoverageWaits.Observe(time.Since(start).Seconds())
			}
			result.Warnings = append(result.Warnings, fmt.Sprintf(
				"full-text coverage %.0f%% below target %.0f%% after %s, proceeding with partial coverage",
				ratio*100, c.cfg.CoverageTarget*100, budget))
			return ratio, nil
		case <-ticker.C:
			ratio, err = c.coverageRatio(ctx, corpus)
			if err != nil {
				return 0, err
			}
			if ratio >= c.cfg.CoverageTarget {
				if c.metrics != nil {
					c.metrics.CoverageWaits.Observe(time.Since(start).Seconds())
				}
				return ratio, nil
			}
		}
	}
}

// enqueueExtractions probes each source and enqueues the ones needing
// background extraction. Probes run with bounded parallelism; enqueue
// failures degrade that source to abstract-only coverage.
func (c *Collector) enqueueExtractions(ctx context.Context, corpus []*domain.SourceDocument) []*domain.SourceDocument {
	var needing []*domain.SourceDocument
	for _, s := range corpus {
		if s.ChunkCount < c.cfg.ChunkFloor && IsDirectFullTextURL(s.ContentURL) {
			needing = append(needing, s)
		}
	}
	if len(needing) == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.ProbeConcurrency)
	for _, s := range needing {
		g.Go(func() error {
			if err := c.queue.Enqueue(gctx, s.ID, s.ContentURL, queue.PriorityHigh); err != nil {
				c.logger.Warn().Err(err).Str("source_id", s.ID.String()).Msg("extraction enqueue failed")
				return nil
			}
			if c.metrics != nil {
				c.metrics.ExtractionsEnqueued.Inc()
			}
			return nil
		})
	}
	_ = g.Wait()
	return needing
}

// coverageRatio is the fraction of corpus sources meeting the chunk
// floor. An empty corpus counts as fully covered.
func (c *Collector) coverageRatio(ctx context.Context, corpus []*domain.SourceDocument) (float64, error) {
	if len(corpus) == 0 {
		return 1.0, nil
	}
	ids := make([]uuid.UUID, len(corpus))
	for i, s := range corpus {
		ids[i] = s.ID
	}
	counts, err := c.sources.ChunkCounts(ctx, ids)
	if err != nil {
		return 0, fmt.Errorf("poll chunk counts: %w", err)
	}

	var covered int
	for _, s := range corpus {
		if n, ok := counts[s.ID]; ok {
			s.ChunkCount = n
		}
		if s.ChunkCount >= c.cfg.ChunkFloor {
			covered++
		}
	}
	return float64(covered) / float64(len(corpus)), nil
}

// coverageWait computes the dynamic wait budget for the coverage gate.
func coverageWait(needingWork int, perSource, minWait, maxWait time.Duration) time.Duration {
	budget := time.Duration(needingWork) * perSource
	if budget < minWait {
		budget = minWait
	}
	if budget > maxWait {
		budget = maxWait
	}
	return budget
}
