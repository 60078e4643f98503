package profile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

func TestGetKnownProfiles(t *testing.T) {
	t.Parallel()

	for _, docType := range DocumentTypes() {
		p, err := Get(docType)
		require.NoError(t, err, docType)
		assert.Equal(t, docType, p.DocumentType)
		assert.NotEmpty(t, p.Sections)
		assert.Greater(t, p.CoverageFloor, 0)
		assert.Greater(t, p.CoverageFraction, 0.0)
	}
}

func TestGetDefaultsToResearchPaper(t *testing.T) {
	t.Parallel()

	p, err := Get("")
	require.NoError(t, err)
	assert.Equal(t, DocumentTypeResearchPaper, p.DocumentType)
}

func TestGetUnknownType(t *testing.T) {
	t.Parallel()

	_, err := Get("grant_proposal")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestCitationTarget(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		docType     string
		sourceCount int
		want        int
	}{
		{"fraction wins over floor", DocumentTypeResearchPaper, 10, 6},
		{"floor wins for small corpus", DocumentTypeResearchPaper, 6, 5},
		{"capped at corpus size", DocumentTypeResearchPaper, 3, 3},
		{"empty corpus", DocumentTypeResearchPaper, 0, 0},
		{"literature review high floor", DocumentTypeLiteratureReview, 8, 8},
		{"literature review fraction", DocumentTypeLiteratureReview, 20, 17},
		{"empirical low fraction", DocumentTypeEmpiricalArticle, 20, 8},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			p, err := Get(tt.docType)
			require.NoError(t, err)
			assert.Equal(t, tt.want, p.CitationTarget(tt.sourceCount))
		})
	}
}

func TestIsForbidden(t *testing.T) {
	t.Parallel()

	review, err := Get(DocumentTypeLiteratureReview)
	require.NoError(t, err)
	assert.True(t, review.IsForbidden("results"))
	assert.True(t, review.IsForbidden("  Results "))
	assert.False(t, review.IsForbidden("discussion"))

	empirical, err := Get(DocumentTypeEmpiricalArticle)
	require.NoError(t, err)
	assert.True(t, empirical.IsForbidden("literature_review"))
	assert.False(t, empirical.IsForbidden("results"))
}

func TestSectionSpecsReturnsCopy(t *testing.T) {
	t.Parallel()

	p, err := Get(DocumentTypeResearchPaper)
	require.NoError(t, err)

	specs := p.SectionSpecs()
	require.NotEmpty(t, specs)
	specs[0].Title = "Mutated"

	fresh := p.SectionSpecs()
	assert.NotEqual(t, "Mutated", fresh[0].Title)
}

func TestProfilesOmitForbiddenSections(t *testing.T) {
	t.Parallel()

	for _, docType := range DocumentTypes() {
		p, err := Get(docType)
		require.NoError(t, err)
		for _, spec := range p.Sections {
			assert.Falsef(t, p.IsForbidden(spec.Key),
				"%s profile contains forbidden section %s", docType, spec.Key)
		}
	}
}
