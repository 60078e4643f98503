package activities

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/activity"

	"github.com/sadiq-codes/genpaper-sub003/internal/config"
	"github.com/sadiq-codes/genpaper-sub003/internal/llm"
	"github.com/sadiq-codes/genpaper-sub003/internal/observability"
	"github.com/sadiq-codes/genpaper-sub003/internal/pipeline"
	"github.com/sadiq-codes/genpaper-sub003/internal/quality"
)

// SectionActivities provides the section-drafting and summary activities.
// A fresh pipeline with its own analytics accumulator is built per call so
// usage is attributable to the invoking job.
type SectionActivities struct {
	llm       llm.Service
	retriever pipeline.ChunkRetriever
	engine    *quality.Engine
	cfg       config.PipelineConfig
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// NewSectionActivities creates a new SectionActivities instance. The metrics
// parameter may be nil (metrics recording will be skipped).
func NewSectionActivities(
	service llm.Service,
	retriever pipeline.ChunkRetriever,
	engine *quality.Engine,
	cfg config.PipelineConfig,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *SectionActivities {
	return &SectionActivities{
		llm:       service,
		retriever: retriever,
		engine:    engine,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// GenerateSection drives one section through the drafting pipeline and
// returns the frozen draft with its usage analytics.
func (a *SectionActivities) GenerateSection(ctx context.Context, input GenerateSectionInput) (*GenerateSectionOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("generating section",
		"jobID", input.JobID,
		"section", input.Spec.Key,
		"expectedWords", input.Spec.ExpectedWords,
		"sources", len(input.Sources),
	)

	analytics := llm.NewAnalytics()
	p := pipeline.New(a.llm, a.retriever, a.engine, a.cfg, a.metrics, analytics, a.logger)

	draft, err := p.GenerateSection(ctx, pipeline.Request{
		JobID:        input.JobID,
		Topic:        input.Topic,
		Spec:         input.Spec,
		DocumentType: input.DocumentType,
		Sources:      input.Sources,
		ChunkLimit:   input.ChunkLimit,
		PriorSummary: input.PriorSummary,
	})
	if err != nil {
		logger.Error("section generation failed",
			"jobID", input.JobID,
			"section", input.Spec.Key,
			"error", err,
		)
		return nil, asActivityError(ctx, fmt.Errorf("generate section %s: %w", input.Spec.Key, err))
	}

	logger.Info("section generated",
		"jobID", input.JobID,
		"section", draft.Key,
		"words", draft.WordCount,
		"score", draft.OverallScore,
		"revisions", draft.RevisionCount,
	)

	return &GenerateSectionOutput{
		Draft:     draft,
		Analytics: analytics.Snapshot(),
	}, nil
}

// SummarizeSection produces the short summary of a finished draft used to
// condition later sections.
func (a *SectionActivities) SummarizeSection(ctx context.Context, input SummarizeSectionInput) (*SummarizeSectionOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("summarizing section",
		"jobID", input.JobID,
		"section", input.Draft.Key,
	)

	analytics := llm.NewAnalytics()
	p := pipeline.New(a.llm, a.retriever, a.engine, a.cfg, a.metrics, analytics, a.logger)

	summary, err := p.Summarize(ctx, input.Draft)
	if err != nil {
		return nil, asActivityError(ctx, fmt.Errorf("summarize section %s: %w", input.Draft.Key, err))
	}

	return &SummarizeSectionOutput{
		Summary:   summary,
		Analytics: analytics.Snapshot(),
	}, nil
}
