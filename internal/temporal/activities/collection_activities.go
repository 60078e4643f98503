package activities

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"

	"github.com/sadiq-codes/genpaper-sub003/internal/collector"
	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// Corpus assembles job corpora. Satisfied by *collector.Collector.
type Corpus interface {
	Collect(ctx context.Context, topic string, pinnedIDs []uuid.UUID, jobCfg domain.GenerationConfig) (*collector.Result, error)
}

// CollectionActivities provides the corpus-collection activity.
// Methods on this struct are registered as Temporal activities via the worker.
type CollectionActivities struct {
	collector Corpus
}

// NewCollectionActivities creates a new CollectionActivities instance.
func NewCollectionActivities(c Corpus) *CollectionActivities {
	return &CollectionActivities{collector: c}
}

// CollectCorpus assembles the working corpus for a generation job: pinned
// sources, optional discovery, and the coverage gate. Coverage waiting can
// take several minutes, so a heartbeat is recorded up front.
//
// An empty final corpus surfaces as a non-retryable user-action error;
// degradations (missing pinned sources, search failure, partial coverage)
// come back as warnings.
func (a *CollectionActivities) CollectCorpus(ctx context.Context, input CollectCorpusInput) (*CollectCorpusOutput, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("collecting corpus",
		"jobID", input.JobID,
		"topic", input.Topic,
		"pinned", len(input.PinnedSourceIDs),
		"target", input.Config.TargetSources,
	)

	activity.RecordHeartbeat(ctx, "collecting")

	result, err := a.collector.Collect(ctx, input.Topic, input.PinnedSourceIDs, input.Config)
	if err != nil {
		logger.Error("corpus collection failed",
			"jobID", input.JobID,
			"error", err,
		)
		return nil, asActivityError(ctx, fmt.Errorf("collect corpus: %w", err))
	}

	logger.Info("corpus collected",
		"jobID", input.JobID,
		"sources", len(result.Sources),
		"coverageRatio", result.CoverageRatio,
		"warnings", len(result.Warnings),
	)

	return &CollectCorpusOutput{
		Sources:       result.Sources,
		Warnings:      result.Warnings,
		CoverageRatio: result.CoverageRatio,
	}, nil
}
