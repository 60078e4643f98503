// Package workflows defines the Temporal workflow orchestrating one
// generation job: collect the corpus, draft sections sequentially with a
// rolling summary, finalize citations, and persist the assembled result.
package workflows

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
	"github.com/sadiq-codes/genpaper-sub003/internal/generr"
	"github.com/sadiq-codes/genpaper-sub003/internal/profile"
	gentemporal "github.com/sadiq-codes/genpaper-sub003/internal/temporal"
	"github.com/sadiq-codes/genpaper-sub003/internal/temporal/activities"
)

// Re-export signal/query name constants from the parent temporal package for
// convenience. They are defined in the parent package so the server layer can
// reference them without depending on the workflows package.
const (
	SignalCancel  = gentemporal.SignalCancel
	QueryProgress = gentemporal.QueryProgress
)

// Activity timeout constants.
const (
	// collectActivityTimeout bounds corpus collection including the
	// coverage wait, which alone can take up to ten minutes.
	collectActivityTimeout = 15 * time.Minute

	// sectionActivityTimeout bounds one section's full pipeline run
	// including reflection cycles.
	sectionActivityTimeout = 10 * time.Minute

	citationActivityTimeout = 5 * time.Minute
	statusActivityTimeout   = 30 * time.Second
)

// Progress percent checkpoints. Sections fill the span between
// writingStartPercent and citationsPercent.
const (
	searchingPercent    = 5
	analyzingPercent    = 15
	writingStartPercent = 20
	citationsPercent    = 85
	assemblingPercent   = 92
)

// GenerationWorkflowInput is an alias for the shared input type defined in
// the parent temporal package.
type GenerationWorkflowInput = gentemporal.GenerationWorkflowInput

// GenerationWorkflowResult contains the final outcome of a generation
// workflow.
type GenerationWorkflowResult struct {
	// JobID is the generation job identifier.
	JobID uuid.UUID

	// Status is the final job status.
	Status string

	// SectionsGenerated is the number of sections drafted.
	SectionsGenerated int

	// WordCount is the total word count of the assembled draft.
	WordCount int

	// CitationCount is the number of distinct cited sources.
	CitationCount int

	// Warnings carries the non-fatal degradations accumulated across the job.
	Warnings []string

	// Duration is the total workflow execution time in seconds.
	Duration float64
}

// GenerationWorkflow orchestrates one long-form generation job.
//
// The workflow proceeds through the following phases:
//  1. Collect the corpus (pinned sources, discovery, coverage gate)
//  2. Draft each profile section sequentially, conditioning later sections
//     on a rolling summary of earlier ones
//  3. Finalize citations (token cleanup and coverage backfill)
//  4. Assemble and persist the result
//
// Progress is exposed via the "progress" query as a domain.Progress report
// whose percent never decreases; cancellation is cooperative via the
// "cancel" signal. Activity retry policies derive from the failure
// classifier: transient failures back off and retry, user-action and fatal
// failures stop immediately.
func GenerationWorkflow(ctx workflow.Context, input GenerationWorkflowInput) (*GenerationWorkflowResult, error) {
	logger := workflow.GetLogger(ctx)
	startTime := workflow.Now(ctx)

	progress := &domain.Progress{Stage: domain.StageSearching, Message: "starting"}
	err := workflow.SetQueryHandler(ctx, QueryProgress, func() (*domain.Progress, error) {
		return progress, nil
	})
	if err != nil {
		logger.Error("failed to register progress query handler", "error", err)
		return nil, fmt.Errorf("register query handler: %w", err)
	}

	// Cooperative cancellation: the signal cancels the derived context so
	// the in-flight activity stops, and the flag routes the workflow to the
	// cancelled epilogue at the next checkpoint.
	cancelled := false
	cancelCtx, cancelFunc := workflow.WithCancel(ctx)
	signalCh := workflow.GetSignalChannel(ctx, SignalCancel)
	workflow.Go(ctx, func(gCtx workflow.Context) {
		signalCh.Receive(gCtx, nil)
		logger.Info("received cancel signal", "jobID", input.JobID)
		cancelled = true
		cancelFunc()
	})

	// Activity nil-pointer variables for method references.
	var collectAct *activities.CollectionActivities
	var sectionAct *activities.SectionActivities
	var citationAct *activities.CitationActivities
	var jobAct *activities.JobActivities
	var eventAct *activities.EventActivities

	// Build activity option contexts. The transient classification sets the
	// outer retry ceiling; activity errors carry their own category's backoff
	// and flip to non-retryable once that category's budget is spent, so
	// quality failures stop after two attempts even under this policy.
	// user_action and fatal stop the retry loop immediately.
	transient := generr.Get(generr.CategoryTransient)
	nonRetryable := []string{string(generr.CategoryUserAction), string(generr.CategoryFatal)}

	pipelineOptions := func(timeout time.Duration) workflow.ActivityOptions {
		return workflow.ActivityOptions{
			StartToCloseTimeout: timeout,
			RetryPolicy: &temporal.RetryPolicy{
				InitialInterval:        transient.InitialBackoff,
				BackoffCoefficient:     transient.BackoffCoefficient,
				MaximumInterval:        1 * time.Minute,
				MaximumAttempts:        int32(transient.MaxRetries),
				NonRetryableErrorTypes: nonRetryable,
			},
		}
	}
	statusOptions := workflow.ActivityOptions{
		StartToCloseTimeout: statusActivityTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    500 * time.Millisecond,
			BackoffCoefficient: 2.0,
			MaximumInterval:    10 * time.Second,
			MaximumAttempts:    5,
		},
	}

	collectCtx := workflow.WithActivityOptions(cancelCtx, pipelineOptions(collectActivityTimeout))
	sectionCtx := workflow.WithActivityOptions(cancelCtx, pipelineOptions(sectionActivityTimeout))
	citationCtx := workflow.WithActivityOptions(cancelCtx, pipelineOptions(citationActivityTimeout))
	statusCtx := workflow.WithActivityOptions(cancelCtx, statusOptions)
	eventCtx := workflow.WithActivityOptions(cancelCtx, statusOptions)

	updateStatus := func(status domain.JobStatus) error {
		return workflow.ExecuteActivity(statusCtx, jobAct.UpdateStatus, activities.UpdateStatusInput{
			JobID:  input.JobID,
			Status: status,
		}).Get(cancelCtx, nil)
	}

	// handleCancelled marks the job cancelled and returns a cancelled result
	// without an error. Status updates use the root context because the
	// derived context is already cancelled.
	handleCancelled := func() (*GenerationWorkflowResult, error) {
		logger.Info("generation workflow cancelled", "jobID", input.JobID)
		advanceProgress(progress, domain.StageFailed, progress.Percent, "cancelled")

		rootStatusCtx := workflow.WithActivityOptions(ctx, statusOptions)
		_ = workflow.ExecuteActivity(rootStatusCtx, jobAct.UpdateStatus, activities.UpdateStatusInput{
			JobID:  input.JobID,
			Status: domain.JobStatusCancelled,
		}).Get(ctx, nil)

		return &GenerationWorkflowResult{
			JobID:    input.JobID,
			Status:   string(domain.JobStatusCancelled),
			Duration: workflow.Now(ctx).Sub(startTime).Seconds(),
		}, nil
	}

	// handleFailure records the terminal failure and returns the original
	// error. The static user message is stored and published; the technical
	// detail stays in the log.
	handleFailure := func(originalErr error) (*GenerationWorkflowResult, error) {
		if cancelled {
			return handleCancelled()
		}

		c := classificationFor(originalErr)
		logger.Error("generation workflow failed",
			"jobID", input.JobID,
			"category", c.Category,
			"error", originalErr,
		)
		advanceProgress(progress, domain.StageFailed, progress.Percent, c.UserMessage)

		// Use the root context for failure-path activities to avoid
		// cancelled context issues.
		failCtx := workflow.WithActivityOptions(ctx, statusOptions)
		_ = workflow.ExecuteActivity(failCtx, jobAct.UpdateStatus, activities.UpdateStatusInput{
			JobID:    input.JobID,
			Status:   domain.JobStatusFailed,
			ErrorMsg: c.UserMessage,
		}).Get(ctx, nil)

		// Fire-and-forget: publish generation.failed.
		_ = workflow.ExecuteActivity(failCtx, eventAct.PublishFailed, activities.PublishFailedInput{
			JobID:    input.JobID,
			Category: string(c.Category),
			Message:  c.UserMessage,
		}).Get(ctx, nil)

		return nil, originalErr
	}

	// =========================================================================
	// Phase 1: Corpus collection
	// =========================================================================

	logger.Info("starting corpus collection", "jobID", input.JobID, "topic", input.Topic)
	if err := updateStatus(domain.JobStatusCollecting); err != nil {
		return handleFailure(fmt.Errorf("update status to collecting: %w", err))
	}
	advanceProgress(progress, domain.StageSearching, searchingPercent, "collecting sources")

	var corpus activities.CollectCorpusOutput
	err = workflow.ExecuteActivity(collectCtx, collectAct.CollectCorpus, activities.CollectCorpusInput{
		JobID:           input.JobID,
		Topic:           input.Topic,
		PinnedSourceIDs: input.PinnedSourceIDs,
		Config:          input.Config,
	}).Get(cancelCtx, &corpus)
	if err != nil {
		return handleFailure(fmt.Errorf("collect corpus: %w", err))
	}
	warnings := corpus.Warnings

	logger.Info("corpus collected",
		"jobID", input.JobID,
		"sources", len(corpus.Sources),
		"coverageRatio", corpus.CoverageRatio,
	)

	// Fire-and-forget: publish generation.started.
	_ = workflow.ExecuteActivity(eventCtx, eventAct.PublishStarted, activities.PublishStartedInput{
		JobID:       input.JobID,
		Topic:       input.Topic,
		SourceCount: len(corpus.Sources),
	}).Get(cancelCtx, nil)

	// =========================================================================
	// Phase 2: Sequential section drafting
	// =========================================================================

	advanceProgress(progress, domain.StageAnalyzing, analyzingPercent, "preparing document structure")

	prof, err := profile.Get(input.Config.DocumentType)
	if err != nil {
		return handleFailure(fmt.Errorf("resolve structural profile: %w", err))
	}
	specs := prof.SectionSpecs()

	if err := updateStatus(domain.JobStatusGenerating); err != nil {
		return handleFailure(fmt.Errorf("update status to generating: %w", err))
	}

	drafts := make([]*domain.SectionDraft, 0, len(specs))
	var analytics domain.ToolCallAnalytics
	summary := ""

	for i, spec := range specs {
		if cancelled {
			return handleCancelled()
		}

		percent := writingStartPercent + ((citationsPercent - writingStartPercent) * i / len(specs))
		advanceProgress(progress, domain.StageWriting, percent, fmt.Sprintf("writing %s", spec.Title))
		logger.Info("generating section",
			"jobID", input.JobID,
			"section", spec.Key,
			"position", i+1,
			"total", len(specs),
		)

		var out activities.GenerateSectionOutput
		err = workflow.ExecuteActivity(sectionCtx, sectionAct.GenerateSection, activities.GenerateSectionInput{
			JobID:        input.JobID,
			Topic:        input.Topic,
			Spec:         spec,
			DocumentType: input.Config.DocumentType,
			Sources:      corpus.Sources,
			ChunkLimit:   input.Config.ChunkLimit,
			PriorSummary: summary,
		}).Get(cancelCtx, &out)
		if err != nil {
			return handleFailure(fmt.Errorf("generate section %s: %w", spec.Key, err))
		}

		drafts = append(drafts, out.Draft)
		mergeAnalytics(&analytics, out.Analytics)

		// Fire-and-forget: publish per-section progress.
		_ = workflow.ExecuteActivity(eventCtx, eventAct.PublishProgress, activities.PublishProgressInput{
			JobID:            input.JobID,
			Phase:            "writing",
			SectionsComplete: i + 1,
			SectionsTotal:    len(specs),
		}).Get(cancelCtx, nil)

		// Summarize for the rolling context of later sections. A summary
		// failure degrades to the previous summary, never fails the job.
		if i < len(specs)-1 {
			var sumOut activities.SummarizeSectionOutput
			sumErr := workflow.ExecuteActivity(sectionCtx, sectionAct.SummarizeSection, activities.SummarizeSectionInput{
				JobID: input.JobID,
				Draft: out.Draft,
			}).Get(cancelCtx, &sumOut)
			if sumErr != nil {
				if cancelled {
					return handleCancelled()
				}
				logger.Warn("section summary failed, continuing without",
					"jobID", input.JobID,
					"section", spec.Key,
					"error", sumErr,
				)
			} else {
				summary = joinSummaries(summary, sumOut.Summary)
				mergeAnalytics(&analytics, sumOut.Analytics)
			}
		}
	}

	// =========================================================================
	// Phase 3: Citation finalization
	// =========================================================================

	if err := updateStatus(domain.JobStatusCiting); err != nil {
		return handleFailure(fmt.Errorf("update status to citing: %w", err))
	}
	advanceProgress(progress, domain.StageCitations, citationsPercent, "finalizing citations")

	var finalized activities.FinalizeCitationsOutput
	err = workflow.ExecuteActivity(citationCtx, citationAct.FinalizeCitations, activities.FinalizeCitationsInput{
		JobID:        input.JobID,
		DocumentType: input.Config.DocumentType,
		Drafts:       drafts,
		Corpus:       corpus.Sources,
	}).Get(cancelCtx, &finalized)
	if err != nil {
		return handleFailure(fmt.Errorf("finalize citations: %w", err))
	}
	warnings = append(warnings, finalized.Warnings...)

	// =========================================================================
	// Phase 4: Assemble and persist
	// =========================================================================

	advanceProgress(progress, domain.StageCitations, assemblingPercent, "assembling result")

	duration := workflow.Now(ctx).Sub(startTime).Seconds()
	var completed activities.CompleteJobOutput
	err = workflow.ExecuteActivity(statusCtx, jobAct.CompleteJob, activities.CompleteJobInput{
		JobID:           input.JobID,
		Drafts:          finalized.Drafts,
		Records:         finalized.Records,
		Analytics:       analytics,
		Warnings:        warnings,
		DurationSeconds: duration,
	}).Get(cancelCtx, &completed)
	if err != nil {
		return handleFailure(fmt.Errorf("complete job: %w", err))
	}

	advanceProgress(progress, domain.StageComplete, 100, "complete")

	// Fire-and-forget: publish generation.completed.
	_ = workflow.ExecuteActivity(eventCtx, eventAct.PublishCompleted, activities.PublishCompletedInput{
		JobID:         input.JobID,
		WordCount:     completed.WordCount,
		CitationCount: completed.CitationCount,
	}).Get(cancelCtx, nil)

	duration = workflow.Now(ctx).Sub(startTime).Seconds()
	logger.Info("generation workflow completed",
		"jobID", input.JobID,
		"sections", len(finalized.Drafts),
		"words", completed.WordCount,
		"citations", completed.CitationCount,
		"warnings", len(warnings),
		"duration", duration,
	)

	return &GenerationWorkflowResult{
		JobID:             input.JobID,
		Status:            string(domain.JobStatusCompleted),
		SectionsGenerated: len(finalized.Drafts),
		WordCount:         completed.WordCount,
		CitationCount:     completed.CitationCount,
		Warnings:          warnings,
		Duration:          duration,
	}, nil
}

// advanceProgress moves the report forward. Percent never decreases; the
// terminal failed stage keeps the last reached percent.
func advanceProgress(p *domain.Progress, stage domain.ProgressStage, percent int, message string) {
	if percent < p.Percent {
		percent = p.Percent
	}
	p.Stage = stage
	p.Percent = percent
	p.Message = message
}

// classificationFor resolves the failure classification for a workflow-level
// error. Activity failures carry their category as the application error
// type; anything else goes through the classifier directly.
func classificationFor(err error) generr.Classification {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) && appErr.Type() != "" {
		return generr.Get(generr.Category(appErr.Type()))
	}
	return generr.Classify(err)
}

// mergeAnalytics folds one activity's usage into the job total.
func mergeAnalytics(total *domain.ToolCallAnalytics, part domain.ToolCallAnalytics) {
	total.TotalCalls += part.TotalCalls
	total.TotalTokens += part.TotalTokens
	total.TotalDuration += part.TotalDuration
	if len(part.CallsByKind) == 0 {
		return
	}
	if total.CallsByKind == nil {
		total.CallsByKind = make(map[string]int, len(part.CallsByKind))
	}
	for kind, count := range part.CallsByKind {
		total.CallsByKind[kind] += count
	}
}

// joinSummaries appends a new section summary to the rolling summary.
func joinSummaries(rolling, next string) string {
	if rolling == "" {
		return next
	}
	if next == "" {
		return rolling
	}
	return rolling + " " + next
}
