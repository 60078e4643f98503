// Package activities implements the Temporal activities executed by the
// generation workflow: corpus collection, per-section drafting, citation
// finalization, job persistence, and lifecycle event publishing.
package activities

import (
	"github.com/google/uuid"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// CollectCorpusInput contains the parameters for assembling a job corpus.
type CollectCorpusInput struct {
	// JobID is the generation job identifier.
	JobID uuid.UUID

	// Topic is the research topic sources are collected for.
	Topic string

	// PinnedSourceIDs are user-selected sources always included.
	PinnedSourceIDs []uuid.UUID

	// Config holds the per-job generation configuration.
	Config domain.GenerationConfig
}

// CollectCorpusOutput contains the assembled corpus.
type CollectCorpusOutput struct {
	// Sources is the working corpus in collection order.
	Sources []*domain.SourceDocument

	// Warnings carries non-fatal degradations (missing pinned sources,
	// search fallback, partial coverage).
	Warnings []string

	// CoverageRatio is the fraction of sources meeting the chunk floor.
	CoverageRatio float64
}

// GenerateSectionInput contains the parameters for drafting one section.
type GenerateSectionInput struct {
	// JobID is the generation job identifier.
	JobID uuid.UUID

	// Topic is the job research topic.
	Topic string

	// Spec describes the section to generate.
	Spec domain.SectionSpec

	// DocumentType selects the structural profile whose forbidden-section
	// list constrains planning.
	DocumentType string

	// Sources is the job corpus.
	Sources []*domain.SourceDocument

	// ChunkLimit caps passages retrieved for the section. Zero uses the
	// configured default.
	ChunkLimit int

	// PriorSummary is the rolling summary of earlier sections.
	PriorSummary string
}

// GenerateSectionOutput contains the frozen section draft.
type GenerateSectionOutput struct {
	// Draft is the scored section draft.
	Draft *domain.SectionDraft

	// Analytics is the language-model usage accumulated for this section.
	Analytics domain.ToolCallAnalytics
}

// SummarizeSectionInput contains the parameters for summarizing a draft.
type SummarizeSectionInput struct {
	// JobID is the generation job identifier.
	JobID uuid.UUID

	// Draft is the finished section draft to summarize.
	Draft *domain.SectionDraft
}

// SummarizeSectionOutput contains the draft summary.
type SummarizeSectionOutput struct {
	// Summary is a short prose summary of the section.
	Summary string

	// Analytics is the language-model usage for the summary call.
	Analytics domain.ToolCallAnalytics
}

// FinalizeCitationsInput contains the parameters for the citation pass.
type FinalizeCitationsInput struct {
	// JobID is the generation job identifier.
	JobID uuid.UUID

	// DocumentType selects the structural profile supplying the coverage
	// target.
	DocumentType string

	// Drafts are the finished section drafts in document order.
	Drafts []*domain.SectionDraft

	// Corpus is the job corpus the citation tokens must resolve into.
	Corpus []*domain.SourceDocument
}

// FinalizeCitationsOutput contains the citation-finalized drafts.
type FinalizeCitationsOutput struct {
	// Drafts are the drafts after token cleanup and backfill, in the same
	// order as the input.
	Drafts []*domain.SectionDraft

	// Records are the citation records bound during the pass.
	Records []domain.CitationRecord

	// CitedCount is the size of the final cited-source set.
	CitedCount int

	// Backfilled is the number of citations inserted by the coordinator.
	Backfilled int

	// Warnings carries a coverage-shortfall warning when the target was
	// not reached.
	Warnings []string
}

// UpdateStatusInput contains the parameters for a job status transition.
type UpdateStatusInput struct {
	// JobID is the generation job identifier.
	JobID uuid.UUID

	// Status is the status to transition to.
	Status domain.JobStatus

	// ErrorMsg is stored only when transitioning to failed.
	ErrorMsg string
}

// CompleteJobInput contains the parameters for finishing a job.
type CompleteJobInput struct {
	// JobID is the generation job identifier.
	JobID uuid.UUID

	// Drafts are the citation-finalized section drafts in document order.
	Drafts []*domain.SectionDraft

	// Records are the citation records accumulated across the job.
	Records []domain.CitationRecord

	// Analytics is the language-model usage accumulated across the job.
	Analytics domain.ToolCallAnalytics

	// Warnings carries the non-fatal degradations surfaced to the caller.
	Warnings []string

	// DurationSeconds is the elapsed workflow time, recorded as a metric.
	DurationSeconds float64
}

// CompleteJobOutput summarizes the persisted result.
type CompleteJobOutput struct {
	// WordCount is the total word count of the assembled draft.
	WordCount int

	// CitationCount is the number of distinct cited sources.
	CitationCount int
}

// PublishStartedInput contains the parameters for a generation.started event.
type PublishStartedInput struct {
	JobID       uuid.UUID
	Topic       string
	SourceCount int
}

// PublishProgressInput contains the parameters for a generation.progress event.
type PublishProgressInput struct {
	JobID            uuid.UUID
	Phase            string
	SectionsComplete int
	SectionsTotal    int
}

// PublishCompletedInput contains the parameters for a generation.completed event.
type PublishCompletedInput struct {
	JobID         uuid.UUID
	WordCount     int
	CitationCount int
}

// PublishFailedInput contains the parameters for a generation.failed event.
type PublishFailedInput struct {
	JobID    uuid.UUID
	Category string
	Message  string
}
