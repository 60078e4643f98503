package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus is the lifecycle status of a generation job.
type JobStatus string

// Generation job lifecycle statuses.
const (
	JobStatusPending    JobStatus = "pending"
	JobStatusCollecting JobStatus = "collecting"
	JobStatusGenerating JobStatus = "generating"
	JobStatusCiting     JobStatus = "citing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusCancelled  JobStatus = "cancelled"
)

// IsTerminal returns true if the status is a terminal state.
func (s JobStatus) IsTerminal() bool {
	switch s {
	case JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// IsValid returns true if the status is a known job status.
func (s JobStatus) IsValid() bool {
	switch s {
	case JobStatusPending, JobStatusCollecting, JobStatusGenerating,
		JobStatusCiting, JobStatusCompleted, JobStatusFailed, JobStatusCancelled:
		return true
	default:
		return false
	}
}

// ProgressStage is the coarse progress stage reported to clients.
type ProgressStage string

// Progress stages, in reporting order. Percent is monotonically
// non-decreasing within a job except on terminal failure.
const (
	StageSearching ProgressStage = "searching"
	StageAnalyzing ProgressStage = "analyzing"
	StageWriting   ProgressStage = "writing"
	StageCitations ProgressStage = "citations"
	StageComplete  ProgressStage = "complete"
	StageFailed    ProgressStage = "failed"
)

// Progress is a point-in-time progress report for a generation job.
type Progress struct {
	Stage   ProgressStage `json:"stage"`
	Percent int           `json:"percent"`
	Message string        `json:"message"`
}

// GenerationConfig holds the per-job configuration parameters. Stored as
// JSONB alongside the job for auditability.
type GenerationConfig struct {
	// DocumentType selects the structural profile (e.g. "research_paper",
	// "literature_review", "empirical_article").
	DocumentType string `json:"document_type"`

	// TargetSources is the desired corpus size including pinned sources.
	TargetSources int `json:"target_sources"`

	// EnableDiscovery controls whether the search backend is consulted for
	// sources beyond the pinned set.
	EnableDiscovery bool `json:"enable_discovery"`

	// ChunkLimit is the maximum passages retrieved per section.
	ChunkLimit int `json:"chunk_limit,omitempty"`

	// LLMModel overrides the default model for this job.
	LLMModel string `json:"llm_model,omitempty"`

	// Custom holds any additional custom configuration.
	Custom map[string]interface{} `json:"custom,omitempty"`
}

// DefaultGenerationConfig returns a GenerationConfig with default values.
func DefaultGenerationConfig() GenerationConfig {
	return GenerationConfig{
		DocumentType:    "research_paper",
		TargetSources:   12,
		EnableDiscovery: true,
		ChunkLimit:      10,
	}
}

// GenerationJob owns all per-job state for one long-form generation request.
// Nothing survives across jobs except the time-boxed chunk-retrieval cache.
type GenerationJob struct {
	ID uuid.UUID `json:"id"`

	// Topic is the research topic the draft is written about.
	Topic string `json:"topic"`

	// PinnedSourceIDs are user-selected sources that are always part of the
	// corpus and never re-discovered.
	PinnedSourceIDs []uuid.UUID `json:"pinned_source_ids,omitempty"`

	// Corpus is the working source set assembled by the collector.
	Corpus []*SourceDocument `json:"corpus,omitempty"`

	// Sections are the per-section drafts in document order.
	Sections []*SectionDraft `json:"sections,omitempty"`

	Status       JobStatus `json:"status"`
	ErrorMessage string    `json:"error_message,omitempty"`

	Config GenerationConfig `json:"config"`

	// Temporal workflow tracking.
	WorkflowID string `json:"workflow_id,omitempty"`
	RunID      string `json:"run_id,omitempty"`

	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Duration returns the elapsed time of the job: zero before it starts,
// time-since-start while running, total duration once completed.
func (j *GenerationJob) Duration() time.Duration {
	if j.StartedAt == nil {
		return 0
	}
	if j.CompletedAt != nil {
		return j.CompletedAt.Sub(*j.StartedAt)
	}
	return time.Since(*j.StartedAt)
}

// IsActive returns true if the job is still in progress.
func (j *GenerationJob) IsActive() bool {
	return !j.Status.IsTerminal()
}

// CorpusIDs returns the IDs of all sources in the job corpus.
func (j *GenerationJob) CorpusIDs() []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(j.Corpus))
	for _, s := range j.Corpus {
		ids = append(ids, s.ID)
	}
	return ids
}

// SourceByID returns the corpus source with the given ID, or nil.
func (j *GenerationJob) SourceByID(id uuid.UUID) *SourceDocument {
	for _, s := range j.Corpus {
		if s.ID == id {
			return s
		}
	}
	return nil
}

// SectionQualityMetrics is the quality-metric bundle computed for one drafted
// section. All scores are on a 0-100 scale.
type SectionQualityMetrics struct {
	// CitationCoverage measures how well statements are backed by citation
	// tokens relative to the section length.
	CitationCoverage float64 `json:"citation_coverage"`

	// Relevance measures topical overlap between the draft and its section
	// brief plus the job topic.
	Relevance float64 `json:"relevance"`

	// Density measures informational density (content words per sentence).
	Density float64 `json:"density"`

	// Structure measures paragraphing and ordering quality.
	Structure float64 `json:"structure"`
}

// Composite returns the unweighted mean of the four metric scores.
func (m SectionQualityMetrics) Composite() float64 {
	return (m.CitationCoverage + m.Relevance + m.Density + m.Structure) / 4
}

// SectionStage is the processing state of a section draft.
type SectionStage string

// Section pipeline stages.
const (
	SectionStagePlanning   SectionStage = "planning"
	SectionStageWriting    SectionStage = "writing"
	SectionStageReflecting SectionStage = "reflecting"
	SectionStageScoring    SectionStage = "scoring"
	SectionStageDone       SectionStage = "done"
)

// SectionSpec describes one section to be generated. Produced once per job by
// the structural profile and treated as read-only input by the pipeline.
type SectionSpec struct {
	// Key is the canonical section identifier (e.g. "introduction",
	// "literature_review", "methodology", "results", "discussion").
	Key string `json:"key"`

	// Title is the human-readable section heading.
	Title string `json:"title"`

	// ExpectedWords is the target word count for the section.
	ExpectedWords int `json:"expected_words"`

	// CandidateSourceIDs restricts retrieval for this section when non-empty;
	// empty means the whole corpus is eligible.
	CandidateSourceIDs []uuid.UUID `json:"candidate_source_ids,omitempty"`
}

// SectionDraft is the mutable product of the section pipeline. It is created
// at WRITING, mutated through REFLECTING, and frozen at SCORING.
type SectionDraft struct {
	Key     string `json:"key"`
	Title   string `json:"title"`
	Content string `json:"content"`

	// CitedSourceIDs are the sources referenced by neutral citation tokens
	// in Content, in first-appearance order.
	CitedSourceIDs []uuid.UUID `json:"cited_source_ids,omitempty"`

	Metrics SectionQualityMetrics `json:"metrics"`

	// Scores per pipeline stage, 0-100 each.
	PlanningScore   float64 `json:"planning_score"`
	WritingScore    float64 `json:"writing_score"`
	ReflectionScore float64 `json:"reflection_score"`

	// OverallScore is the stage-weighted composite computed at SCORING.
	OverallScore float64 `json:"overall_score"`

	// RevisionCount is the number of reflection cycles applied.
	RevisionCount int `json:"revision_count"`

	WordCount int `json:"word_count"`

	Stage SectionStage `json:"stage"`
}

// CitationRecord binds one emitted citation token to a source. Records are
// append-only within a job; the cited-source set is monotonically
// non-decreasing.
type CitationRecord struct {
	// Token is the neutral citation token as it appears in drafted text.
	Token string `json:"token"`

	// SourceID is the corpus source the token resolves to.
	SourceID uuid.UUID `json:"source_id"`

	// SectionKey identifies the section the token was first seen in.
	SectionKey string `json:"section_key"`

	// Backfilled reports whether the coordinator inserted this citation
	// after drafting rather than the writer emitting it.
	Backfilled bool `json:"backfilled"`
}

// SectionStructure summarizes one section for the final result payload.
type SectionStructure struct {
	Key       string  `json:"key"`
	Title     string  `json:"title"`
	WordCount int     `json:"word_count"`
	Score     float64 `json:"score"`
	Revisions int     `json:"revisions"`
}

// ToolCallAnalytics aggregates language-model usage across a job.
type ToolCallAnalytics struct {
	TotalCalls    int            `json:"total_calls"`
	TotalTokens   int            `json:"total_tokens"`
	CallsByKind   map[string]int `json:"calls_by_kind,omitempty"`
	TotalDuration time.Duration  `json:"total_duration"`
}

// GenerationResult is the assembled output of a completed generation job.
type GenerationResult struct {
	JobID uuid.UUID `json:"job_id"`

	// Content is the full draft with neutral citation tokens in place.
	Content string `json:"content"`

	// CitationMap maps token keys to source IDs for the downstream
	// formatting pass.
	CitationMap map[string]uuid.UUID `json:"citation_map"`

	WordCount int `json:"word_count"`

	SectionStructure []SectionStructure `json:"section_structure"`

	// QualityMetrics is the mean of the per-section metric bundles.
	QualityMetrics SectionQualityMetrics `json:"quality_metrics"`

	ToolCallAnalytics ToolCallAnalytics `json:"tool_call_analytics"`

	// Warnings carries non-fatal degradations (partial coverage, search
	// fallback, citation shortfall) surfaced to the caller.
	Warnings []string `json:"warnings,omitempty"`
}
