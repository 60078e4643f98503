package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJobStatusIsTerminal(t *testing.T) {
	t.Parallel()

	tests := []struct {
		status   JobStatus
		terminal bool
	}{
		{JobStatusPending, false},
		{JobStatusCollecting, false},
		{JobStatusGenerating, false},
		{JobStatusCiting, false},
		{JobStatusCompleted, true},
		{JobStatusFailed, true},
		{JobStatusCancelled, true},
	}

	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestJobStatusIsValid(t *testing.T) {
	t.Parallel()

	assert.True(t, JobStatusGenerating.IsValid())
	assert.False(t, JobStatus("bogus").IsValid())
	assert.False(t, JobStatus("").IsValid())
}

func TestGenerationJobDuration(t *testing.T) {
	t.Parallel()

	t.Run("not started", func(t *testing.T) {
		j := &GenerationJob{}
		assert.Equal(t, time.Duration(0), j.Duration())
	})

	t.Run("completed", func(t *testing.T) {
		start := time.Now().Add(-10 * time.Minute)
		end := start.Add(7 * time.Minute)
		j := &GenerationJob{StartedAt: &start, CompletedAt: &end}
		assert.Equal(t, 7*time.Minute, j.Duration())
	})

	t.Run("running", func(t *testing.T) {
		start := time.Now().Add(-time.Minute)
		j := &GenerationJob{StartedAt: &start}
		assert.Greater(t, j.Duration(), 50*time.Second)
	})
}

func TestGenerationJobSourceLookup(t *testing.T) {
	t.Parallel()

	a := &SourceDocument{ID: uuid.New(), Title: "A"}
	b := &SourceDocument{ID: uuid.New(), Title: "B"}
	j := &GenerationJob{Corpus: []*SourceDocument{a, b}}

	ids := j.CorpusIDs()
	require.Len(t, ids, 2)
	assert.Equal(t, a.ID, ids[0])

	assert.Equal(t, b, j.SourceByID(b.ID))
	assert.Nil(t, j.SourceByID(uuid.New()))
}

func TestSourceDocumentAuthorYear(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		doc  SourceDocument
		want string
	}{
		{
			name: "author and year",
			doc: SourceDocument{
				Authors:         []Author{{Name: "Maria del Carmen Ruiz"}},
				PublicationYear: 2021,
			},
			want: "Ruiz, 2021",
		},
		{
			name: "no year",
			doc: SourceDocument{
				Authors: []Author{{Name: "Chen"}},
			},
			want: "Chen, n.d.",
		},
		{
			name: "no authors falls back to title fragment",
			doc: SourceDocument{
				Title:           "Short title",
				PublicationYear: 2019,
			},
			want: "Short title, 2019",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.doc.AuthorYear())
		})
	}
}

func TestSectionQualityMetricsComposite(t *testing.T) {
	t.Parallel()

	m := SectionQualityMetrics{
		CitationCoverage: 80,
		Relevance:        60,
		Density:          70,
		Structure:        90,
	}
	assert.InDelta(t, 75.0, m.Composite(), 0.001)

	assert.Zero(t, SectionQualityMetrics{}.Composite())
}

func TestAuthorString(t *testing.T) {
	t.Parallel()

	a := Author{Name: "Jane Roe", Affiliation: "MIT", ORCID: "0000-0001"}
	assert.Equal(t, "Jane Roe (MIT) [0000-0001]", a.String())

	assert.Equal(t, "Jane Roe", Author{Name: "Jane Roe"}.String())
}
