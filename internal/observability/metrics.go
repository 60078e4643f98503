package observability

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains all Prometheus metrics for the generation service.
// Metrics are organized by subsystem: jobs, collection, retrieval, sections,
// citations, and LLM operations. All counters and histograms are registered
// via promauto for automatic registration with the default Prometheus registry.
type Metrics struct {
	// JobsStarted counts the total number of generation jobs initiated.
	JobsStarted prometheus.Counter

	// JobsCompleted counts the total number of jobs that finished successfully.
	JobsCompleted prometheus.Counter

	// JobsFailed counts the total number of jobs that ended in failure.
	JobsFailed prometheus.Counter

	// JobsCancelled counts the total number of jobs cancelled by user or system.
	JobsCancelled prometheus.Counter

	// JobDuration observes the end-to-end duration of jobs in seconds.
	JobDuration prometheus.Histogram

	// SourcesCollected observes the corpus size per job.
	SourcesCollected prometheus.Histogram

	// SourcesDiscovered counts sources added by the search backend.
	SourcesDiscovered prometheus.Counter

	// SourcesRejected counts discovered sources dropped by a filter, labeled
	// by reason (off_topic, low_score, ingest_failed).
	SourcesRejected *prometheus.CounterVec

	// CoverageWaits observes seconds spent waiting on full-text coverage.
	CoverageWaits prometheus.Histogram

	// CoverageTimeouts counts coverage waits that hit their deadline.
	CoverageTimeouts prometheus.Counter

	// ExtractionsEnqueued counts background extraction jobs enqueued.
	ExtractionsEnqueued prometheus.Counter

	// RetrievalsTotal counts chunk retrievals, labeled by outcome tier
	// (primary, abstract, empty).
	RetrievalsTotal *prometheus.CounterVec

	// RetrievalCacheHits counts chunk-cache hits.
	RetrievalCacheHits prometheus.Counter

	// ChunksPerRetrieval observes the number of chunks returned per retrieval.
	ChunksPerRetrieval prometheus.Histogram

	// SectionsGenerated counts sections completed, labeled by section key.
	SectionsGenerated *prometheus.CounterVec

	// SectionScore observes overall section scores (0-100).
	SectionScore prometheus.Histogram

	// ReflectionCycles observes reflection cycles applied per section.
	ReflectionCycles prometheus.Histogram

	// PlanFallbacks counts sections that fell back to a heuristic plan.
	PlanFallbacks prometheus.Counter

	// CitationsEmitted counts citation tokens emitted during drafting.
	CitationsEmitted prometheus.Counter

	// CitationsBackfilled counts citations inserted by the coordinator,
	// labeled by pass (evidence, reference_list).
	CitationsBackfilled *prometheus.CounterVec

	// CitationsDropped counts tokens stripped during the cleanup pass.
	CitationsDropped prometheus.Counter

	// LLMRequestsTotal counts LLM API requests, labeled by operation and model.
	LLMRequestsTotal *prometheus.CounterVec

	// LLMRequestsFailed counts failed LLM API requests, labeled by operation,
	// model, and error type.
	LLMRequestsFailed *prometheus.CounterVec

	// LLMRequestDuration observes LLM API request duration in seconds,
	// labeled by operation and model.
	LLMRequestDuration *prometheus.HistogramVec

	// LLMTokensUsed counts tokens consumed by LLM operations, labeled by
	// operation, model, and token type.
	LLMTokensUsed *prometheus.CounterVec
}

// NewMetrics creates and registers all service metrics with the default
// Prometheus registry.
func NewMetrics() *Metrics {
	return &Metrics{
		JobsStarted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "genpaper_jobs_started_total",
			Help: "Total number of generation jobs initiated.",
		}),
		JobsCompleted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "genpaper_jobs_completed_total",
			Help: "Total number of generation jobs completed successfully.",
		}),
		JobsFailed: promauto.NewCounter(prometheus.CounterOpts{
			Name: "genpaper_jobs_failed_total",
			Help: "Total number of generation jobs that failed.",
		}),
		JobsCancelled: promauto.NewCounter(prometheus.CounterOpts{
			Name: "genpaper_jobs_cancelled_total",
			Help: "Total number of generation jobs cancelled.",
		}),
		JobDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "genpaper_job_duration_seconds",
			Help:    "End-to-end generation job duration in seconds.",
			Buckets: []float64{30, 60, 120, 300, 600, 1200, 2400, 3600},
		}),
		SourcesCollected: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "genpaper_sources_collected",
			Help:    "Corpus size per generation job.",
			Buckets: []float64{1, 3, 5, 10, 15, 25, 50},
		}),
		SourcesDiscovered: promauto.NewCounter(prometheus.CounterOpts{
			Name: "genpaper_sources_discovered_total",
			Help: "Total sources added by the discovery backend.",
		}),
		SourcesRejected: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "genpaper_sources_rejected_total",
			Help: "Discovered sources dropped before joining a corpus.",
		}, []string{"reason"}),
		CoverageWaits: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "genpaper_coverage_wait_seconds",
			Help:    "Seconds spent waiting for full-text coverage.",
			Buckets: []float64{5, 15, 30, 60, 120, 300, 600},
		}),
		CoverageTimeouts: promauto.NewCounter(prometheus.CounterOpts{
			Name: "genpaper_coverage_timeouts_total",
			Help: "Coverage waits that timed out and proceeded with partial coverage.",
		}),
		ExtractionsEnqueued: promauto.NewCounter(prometheus.CounterOpts{
			Name: "genpaper_extractions_enqueued_total",
			Help: "Background full-text extraction jobs enqueued.",
		}),
		RetrievalsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "genpaper_retrievals_total",
			Help: "Chunk retrievals by outcome tier.",
		}, []string{"tier"}),
		RetrievalCacheHits: promauto.NewCounter(prometheus.CounterOpts{
			Name: "genpaper_retrieval_cache_hits_total",
			Help: "Chunk retrievals served from the per-job cache.",
		}),
		ChunksPerRetrieval: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "genpaper_chunks_per_retrieval",
			Help:    "Number of chunks returned per retrieval.",
			Buckets: []float64{0, 1, 3, 5, 10, 20, 40},
		}),
		SectionsGenerated: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "genpaper_sections_generated_total",
			Help: "Sections generated, by section key.",
		}, []string{"section"}),
		SectionScore: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "genpaper_section_score",
			Help:    "Overall section score (0-100).",
			Buckets: []float64{40, 50, 60, 70, 80, 90, 100},
		}),
		ReflectionCycles: promauto.NewHistogram(prometheus.HistogramOpts{
			Name:    "genpaper_reflection_cycles",
			Help:    "Reflection cycles applied per section.",
			Buckets: []float64{0, 1, 2, 3, 4},
		}),
		PlanFallbacks: promauto.NewCounter(prometheus.CounterOpts{
			Name: "genpaper_plan_fallbacks_total",
			Help: "Sections that used the heuristic fallback plan.",
		}),
		CitationsEmitted: promauto.NewCounter(prometheus.CounterOpts{
			Name: "genpaper_citations_emitted_total",
			Help: "Citation tokens emitted during drafting.",
		}),
		CitationsBackfilled: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "genpaper_citations_backfilled_total",
			Help: "Citations inserted by the coordinator after drafting.",
		}, []string{"pass"}),
		CitationsDropped: promauto.NewCounter(prometheus.CounterOpts{
			Name: "genpaper_citations_dropped_total",
			Help: "Citation tokens stripped during the cleanup pass.",
		}),
		LLMRequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "genpaper_llm_requests_total",
			Help: "LLM API requests by operation and model.",
		}, []string{"operation", "model"}),
		LLMRequestsFailed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "genpaper_llm_requests_failed_total",
			Help: "Failed LLM API requests by operation, model, and error type.",
		}, []string{"operation", "model", "error_type"}),
		LLMRequestDuration: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "genpaper_llm_request_duration_seconds",
			Help:    "LLM API request duration in seconds.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120},
		}, []string{"operation", "model"}),
		LLMTokensUsed: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "genpaper_llm_tokens_used_total",
			Help: "Tokens consumed by LLM operations.",
		}, []string{"operation", "model", "type"}),
	}
}
