// Package profile ships the built-in structural profiles that shape a
// generated document: which sections it carries, how citation coverage
// is targeted, and which sections a document type must not contain.
package profile

import (
	"fmt"
	"math"
	"strings"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// Document types with a built-in profile.
const (
	DocumentTypeResearchPaper    = "research_paper"
	DocumentTypeLiteratureReview = "literature_review"
	DocumentTypeEmpiricalArticle = "empirical_article"
)

// Profile is the read-only structural description for one document type.
type Profile struct {
	// DocumentType identifies the profile.
	DocumentType string

	// Sections are the section specs in document order. Callers receive a
	// copy and may attach candidate source ids per job.
	Sections []domain.SectionSpec

	// CoverageFloor is the minimum number of distinct sources that must be
	// cited regardless of corpus size.
	CoverageFloor int

	// CoverageFraction is the fraction of the corpus that should be cited.
	CoverageFraction float64

	// ForbiddenSections are section keys this document type must not
	// contain. Plan validation rejects outlines that introduce them.
	ForbiddenSections []string
}

// CitationTarget computes the number of distinct sources the coordinator
// must cite for a corpus of the given size.
func (p *Profile) CitationTarget(sourceCount int) int {
	if sourceCount <= 0 {
		return 0
	}
	target := int(math.Ceil(float64(sourceCount) * p.CoverageFraction))
	if target < p.CoverageFloor {
		target = p.CoverageFloor
	}
	if target > sourceCount {
		target = sourceCount
	}
	return target
}

// IsForbidden reports whether the given section key is disallowed for
// this document type. Matching is case-insensitive.
func (p *Profile) IsForbidden(sectionKey string) bool {
	key := strings.ToLower(strings.TrimSpace(sectionKey))
	for _, forbidden := range p.ForbiddenSections {
		if key == forbidden {
			return true
		}
	}
	return false
}

// SectionSpecs returns a fresh copy of the profile's section specs so
// callers can attach per-job candidate sources without mutating the
// shared profile.
func (p *Profile) SectionSpecs() []domain.SectionSpec {
	specs := make([]domain.SectionSpec, len(p.Sections))
	copy(specs, p.Sections)
	return specs
}

var builtins = map[string]*Profile{
	DocumentTypeResearchPaper: {
		DocumentType: DocumentTypeResearchPaper,
		Sections: []domain.SectionSpec{
			{Key: "introduction", Title: "Introduction", ExpectedWords: 500},
			{Key: "literature_review", Title: "Related Work", ExpectedWords: 800},
			{Key: "methodology", Title: "Methodology", ExpectedWords: 700},
			{Key: "results", Title: "Results", ExpectedWords: 600},
			{Key: "discussion", Title: "Discussion", ExpectedWords: 700},
			{Key: "conclusion", Title: "Conclusion", ExpectedWords: 300},
		},
		CoverageFloor:     5,
		CoverageFraction:  0.6,
		ForbiddenSections: []string{"appendix", "acknowledgements"},
	},
	DocumentTypeLiteratureReview: {
		DocumentType: DocumentTypeLiteratureReview,
		Sections: []domain.SectionSpec{
			{Key: "introduction", Title: "Introduction", ExpectedWords: 400},
			{Key: "methodology", Title: "Review Methodology", ExpectedWords: 350},
			{Key: "literature_review", Title: "Thematic Synthesis", ExpectedWords: 1800},
			{Key: "discussion", Title: "Discussion and Gaps", ExpectedWords: 700},
			{Key: "conclusion", Title: "Conclusion", ExpectedWords: 300},
		},
		CoverageFloor:     10,
		CoverageFraction:  0.85,
		ForbiddenSections: []string{"results", "appendix"},
	},
	DocumentTypeEmpiricalArticle: {
		DocumentType: DocumentTypeEmpiricalArticle,
		Sections: []domain.SectionSpec{
			{Key: "introduction", Title: "Introduction", ExpectedWords: 450},
			{Key: "methodology", Title: "Methods", ExpectedWords: 800},
			{Key: "results", Title: "Results", ExpectedWords: 800},
			{Key: "discussion", Title: "Discussion", ExpectedWords: 800},
			{Key: "conclusion", Title: "Conclusion", ExpectedWords: 250},
		},
		CoverageFloor:     4,
		CoverageFraction:  0.4,
		ForbiddenSections: []string{"literature_review", "appendix"},
	},
}

// Get returns the built-in profile for the given document type. An empty
// document type resolves to the research paper profile.
func Get(documentType string) (*Profile, error) {
	if documentType == "" {
		documentType = DocumentTypeResearchPaper
	}
	p, ok := builtins[strings.ToLower(strings.TrimSpace(documentType))]
	if !ok {
		return nil, fmt.Errorf("unknown document type %q: %w", documentType, domain.ErrNotFound)
	}
	return p, nil
}

// DocumentTypes lists the document types with a built-in profile.
func DocumentTypes() []string {
	return []string{
		DocumentTypeResearchPaper,
		DocumentTypeLiteratureReview,
		DocumentTypeEmpiricalArticle,
	}
}
