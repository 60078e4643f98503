package activities

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
	"go.temporal.io/sdk/activity"

	"github.com/sadiq-codes/genpaper-sub003/internal/citations"
	"github.com/sadiq-codes/genpaper-sub003/internal/config"
	"github.com/sadiq-codes/genpaper-sub003/internal/observability"
	"github.com/sadiq-codes/genpaper-sub003/internal/profile"
)

// CitationActivities provides the citation-finalization activity.
type CitationActivities struct {
	retriever citations.ChunkRetriever
	refs      citations.ReferenceLister
	cfg       config.CitationsConfig
	metrics   *observability.Metrics
	logger    zerolog.Logger
}

// NewCitationActivities creates a new CitationActivities instance. refs may
// be nil when no reference-list collaborator is available; the secondary
// backfill pass is then skipped.
func NewCitationActivities(
	retriever citations.ChunkRetriever,
	refs citations.ReferenceLister,
	cfg config.CitationsConfig,
	metrics *observability.Metrics,
	logger zerolog.Logger,
) *CitationActivities {
	return &CitationActivities{
		retriever: retriever,
		refs:      refs,
		cfg:       cfg,
		metrics:   metrics,
		logger:    logger,
	}
}

// FinalizeCitations runs the per-job citation pass: token extraction and
// corpus cleanup over every draft, then coverage backfill against the
// structural profile's target. A remaining shortfall is a warning, not a
// failure.
func (a *CitationActivities) FinalizeCitations(ctx context.Context, input FinalizeCitationsInput) (*FinalizeCitationsOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("finalizing citations",
		"jobID", input.JobID,
		"documentType", input.DocumentType,
		"sections", len(input.Drafts),
		"corpus", len(input.Corpus),
	)

	prof, err := profile.Get(input.DocumentType)
	if err != nil {
		return nil, asActivityError(ctx, fmt.Errorf("resolve profile: %w", err))
	}

	coord := citations.NewCoordinator(input.JobID, a.retriever, a.refs, a.cfg, a.metrics, a.logger)
	for _, draft := range input.Drafts {
		coord.ObserveSection(draft, input.Corpus)
	}

	added, err := coord.EnsureCoverage(ctx, input.Drafts, input.Corpus, prof)
	if err != nil {
		return nil, asActivityError(ctx, fmt.Errorf("ensure citation coverage: %w", err))
	}

	output := &FinalizeCitationsOutput{
		Drafts:     input.Drafts,
		Records:    coord.Records(),
		CitedCount: coord.CitedCount(),
		Backfilled: added,
	}

	target := prof.CitationTarget(len(input.Corpus))
	if output.CitedCount < target {
		output.Warnings = append(output.Warnings, fmt.Sprintf(
			"citation coverage below target: %d of %d sources cited", output.CitedCount, target))
	}

	logger.Info("citations finalized",
		"jobID", input.JobID,
		"cited", output.CitedCount,
		"target", target,
		"backfilled", added,
	)

	return output, nil
}
