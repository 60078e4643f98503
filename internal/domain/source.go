package domain

import (
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Author represents a source document author.
type Author struct {
	Name        string `json:"name"`
	Affiliation string `json:"affiliation,omitempty"`
	ORCID       string `json:"orcid,omitempty"`
}

// String returns a formatted string representation of the author.
func (a Author) String() string {
	var sb strings.Builder
	sb.WriteString(a.Name)

	if a.Affiliation != "" {
		sb.WriteString(" (")
		sb.WriteString(a.Affiliation)
		sb.WriteString(")")
	}

	if a.ORCID != "" {
		sb.WriteString(" [")
		sb.WriteString(a.ORCID)
		sb.WriteString("]")
	}

	return sb.String()
}

// SourceDocument represents one document in a generation job's working corpus.
// All fields are immutable for the lifetime of a job except ChunkCount, which
// grows asynchronously as background full-text extraction completes.
type SourceDocument struct {
	ID              uuid.UUID
	Title           string
	Abstract        string
	Authors         []Author
	PublicationYear int
	Venue           string
	DOI             string

	// ContentURL is the best-known URL for the document's content. It may be
	// a direct full-text link (PDF, arXiv abs page) or a publisher landing
	// page; the collector classifies it before enqueueing extraction.
	ContentURL string

	// HasFullText reports whether full-text extraction has ever completed
	// for this source.
	HasFullText bool

	// ChunkCount is the number of full-text chunks known to exist for this
	// source in the passage index.
	ChunkCount int

	// RelevanceScore is the discovery-time relevance of this source to the
	// job topic, when the search backend supplied one. Nil when no score of
	// any kind was available.
	RelevanceScore *float64

	CreatedAt time.Time
	UpdatedAt time.Time
}

// FirstAuthorLastName returns the last name of the first author, or an empty
// string when the source has no authors.
func (s *SourceDocument) FirstAuthorLastName() string {
	if len(s.Authors) == 0 {
		return ""
	}
	name := strings.TrimSpace(s.Authors[0].Name)
	if name == "" {
		return ""
	}
	parts := strings.Fields(name)
	return parts[len(parts)-1]
}

// AuthorYear returns an "Author, Year" string for inline attribution, falling
// back to a title fragment when the source has no authors and "n.d." when it
// has no year.
func (s *SourceDocument) AuthorYear() string {
	author := s.FirstAuthorLastName()
	if author == "" {
		title := strings.TrimSpace(s.Title)
		if len(title) > 30 {
			title = title[:30]
		}
		author = title
	}

	year := "n.d."
	if s.PublicationYear > 0 {
		year = strconv.Itoa(s.PublicationYear)
	}

	return author + ", " + year
}

// Chunk is a scored passage of text from a single source document, recomputed
// per query and never persisted as shared state between components.
type Chunk struct {
	ID       uuid.UUID
	SourceID uuid.UUID
	Content  string

	// Score is the retrieval relevance in [0,1].
	Score float64

	// Tier identifies which retrieval attempt produced this chunk.
	Tier ChunkTier

	// TierThreshold is the score threshold of the tier that won the
	// retrieval, zero for abstract pseudo-chunks.
	TierThreshold float64

	// Index is the chunk's position within its source document, when known.
	Index int
}

// ChunkTier identifies the retrieval attempt that produced a chunk.
type ChunkTier string

// Chunk tiers, in decreasing order of retrieval strictness.
const (
	// TierPrimary marks chunks returned by one of the score-threshold tiers.
	TierPrimary ChunkTier = "primary"

	// TierAbstract marks pseudo-chunks derived from source abstracts when no
	// indexed passage cleared any threshold tier.
	TierAbstract ChunkTier = "abstract"
)

// CorpusCoverage summarizes full-text readiness for a set of sources.
type CorpusCoverage struct {
	// Ratio is the fraction of sources meeting the chunk floor, in [0,1].
	// An empty source set has ratio 1.0 (vacuously covered).
	Ratio float64

	// Ready is the number of sources at or above the chunk floor.
	Ready int

	// Total is the number of sources checked.
	Total int
}
