package activities

import (
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

func TestAssembleResult(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	sourceA := uuid.New()
	sourceB := uuid.New()

	drafts := []*domain.SectionDraft{
		{
			Key:       "introduction",
			Title:     "Introduction",
			Content:   "Opening statement " + domain.CitationToken(sourceA) + ".\n",
			WordCount: 200,
			Metrics: domain.SectionQualityMetrics{
				CitationCoverage: 80, Relevance: 90, Density: 70, Structure: 60,
			},
			OverallScore:  75,
			RevisionCount: 1,
		},
		{
			Key:       "discussion",
			Title:     "Discussion",
			Content:   "Synthesis " + domain.CitationToken(sourceB) + ".",
			WordCount: 400,
			Metrics: domain.SectionQualityMetrics{
				CitationCoverage: 60, Relevance: 70, Density: 90, Structure: 80,
			},
			OverallScore: 82,
		},
	}
	records := []domain.CitationRecord{
		{Token: domain.CitationToken(sourceA), SourceID: sourceA, SectionKey: "introduction"},
		{Token: domain.CitationToken(sourceB), SourceID: sourceB, SectionKey: "discussion", Backfilled: true},
	}
	analytics := domain.ToolCallAnalytics{TotalCalls: 9, TotalTokens: 4200, TotalDuration: 3 * time.Second}
	warnings := []string{"proceeding with partial coverage"}

	result := assembleResult(jobID, drafts, records, analytics, warnings)

	assert.Equal(t, jobID, result.JobID)
	assert.Equal(t, 600, result.WordCount)
	assert.Equal(t, warnings, result.Warnings)
	assert.Equal(t, analytics, result.ToolCallAnalytics)

	// Sections appear under markdown headings in document order with
	// citation tokens intact.
	assert.True(t, strings.HasPrefix(result.Content, "## Introduction\n\n"))
	assert.Contains(t, result.Content, "\n\n## Discussion\n\n")
	assert.Contains(t, result.Content, domain.CitationToken(sourceA))
	assert.Contains(t, result.Content, domain.CitationToken(sourceB))
	assert.Less(t,
		strings.Index(result.Content, "## Introduction"),
		strings.Index(result.Content, "## Discussion"),
	)

	require.Len(t, result.CitationMap, 2)
	assert.Equal(t, sourceA, result.CitationMap[domain.CitationToken(sourceA)])
	assert.Equal(t, sourceB, result.CitationMap[domain.CitationToken(sourceB)])

	require.Len(t, result.SectionStructure, 2)
	assert.Equal(t, domain.SectionStructure{
		Key: "introduction", Title: "Introduction", WordCount: 200, Score: 75, Revisions: 1,
	}, result.SectionStructure[0])

	// Quality metrics are the mean of the per-section bundles.
	assert.InDelta(t, 70.0, result.QualityMetrics.CitationCoverage, 0.001)
	assert.InDelta(t, 80.0, result.QualityMetrics.Relevance, 0.001)
	assert.InDelta(t, 80.0, result.QualityMetrics.Density, 0.001)
	assert.InDelta(t, 70.0, result.QualityMetrics.Structure, 0.001)
}

func TestAssembleResult_Empty(t *testing.T) {
	t.Parallel()

	jobID := uuid.New()
	result := assembleResult(jobID, nil, nil, domain.ToolCallAnalytics{}, nil)

	assert.Equal(t, jobID, result.JobID)
	assert.Empty(t, result.Content)
	assert.Zero(t, result.WordCount)
	assert.Empty(t, result.CitationMap)
	assert.Zero(t, result.QualityMetrics.Composite())
}
