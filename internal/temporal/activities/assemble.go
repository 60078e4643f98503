package activities

import (
	"strings"

	"github.com/google/uuid"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// assembleResult builds the final generation result from the frozen drafts:
// sections concatenated under markdown headings with their neutral citation
// tokens in place, the token-to-source map for the downstream formatting
// pass, and the mean of the per-section metric bundles.
func assembleResult(
	jobID uuid.UUID,
	drafts []*domain.SectionDraft,
	records []domain.CitationRecord,
	analytics domain.ToolCallAnalytics,
	warnings []string,
) *domain.GenerationResult {
	var b strings.Builder
	structure := make([]domain.SectionStructure, 0, len(drafts))
	var metrics domain.SectionQualityMetrics
	wordCount := 0

	for i, draft := range drafts {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString("## ")
		b.WriteString(draft.Title)
		b.WriteString("\n\n")
		b.WriteString(strings.TrimSpace(draft.Content))

		structure = append(structure, domain.SectionStructure{
			Key:       draft.Key,
			Title:     draft.Title,
			WordCount: draft.WordCount,
			Score:     draft.OverallScore,
			Revisions: draft.RevisionCount,
		})
		wordCount += draft.WordCount

		metrics.CitationCoverage += draft.Metrics.CitationCoverage
		metrics.Relevance += draft.Metrics.Relevance
		metrics.Density += draft.Metrics.Density
		metrics.Structure += draft.Metrics.Structure
	}

	if n := float64(len(drafts)); n > 0 {
		metrics.CitationCoverage /= n
		metrics.Relevance /= n
		metrics.Density /= n
		metrics.Structure /= n
	}

	citationMap := make(map[string]uuid.UUID, len(records))
	for _, rec := range records {
		citationMap[rec.Token] = rec.SourceID
	}

	return &domain.GenerationResult{
		JobID:             jobID,
		Content:           b.String(),
		CitationMap:       citationMap,
		WordCount:         wordCount,
		SectionStructure:  structure,
		QualityMetrics:    metrics,
		ToolCallAnalytics: analytics,
		Warnings:          warnings,
	}
}
