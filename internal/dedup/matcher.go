package dedup

import (
	"strings"
	"unicode"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// MatcherConfig holds the thresholds for near-duplicate detection.
type MatcherConfig struct {
	// TitleThreshold is the title token overlap above which two sources
	// are title-similar (e.g. 0.9).
	TitleThreshold float64

	// AuthorThreshold is the author overlap required to confirm a
	// title-similar pair as a duplicate (e.g. 0.5).
	AuthorThreshold float64
}

// DefaultMatcherConfig returns thresholds tuned for bibliographic metadata:
// preprint and published versions of the same paper typically differ only
// in subtitle punctuation and author ordering.
func DefaultMatcherConfig() MatcherConfig {
	return MatcherConfig{
		TitleThreshold:  0.9,
		AuthorThreshold: 0.5,
	}
}

// Matcher decides whether two sources describe the same work. Matching is
// purely metadata-based: DOI equality short-circuits, otherwise a pair must
// clear both the title and author thresholds.
type Matcher struct {
	cfg MatcherConfig
}

// NewMatcher creates a Matcher. Zero thresholds fall back to the defaults.
func NewMatcher(cfg MatcherConfig) *Matcher {
	def := DefaultMatcherConfig()
	if cfg.TitleThreshold <= 0 {
		cfg.TitleThreshold = def.TitleThreshold
	}
	if cfg.AuthorThreshold <= 0 {
		cfg.AuthorThreshold = def.AuthorThreshold
	}
	return &Matcher{cfg: cfg}
}

// IsDuplicate reports whether candidate and existing describe the same work.
func (m *Matcher) IsDuplicate(candidate, existing *domain.SourceDocument) bool {
	if candidate == nil || existing == nil {
		return false
	}

	if candidate.DOI != "" && candidate.DOI == existing.DOI {
		return true
	}

	titleScore := TitleOverlap(candidate.Title, existing.Title)
	if titleScore < m.cfg.TitleThreshold {
		return false
	}

	// An exact normalized title with no author data on either side still
	// counts: many preprint records carry empty author lists.
	if titleScore >= 1.0 && (len(candidate.Authors) == 0 || len(existing.Authors) == 0) {
		return true
	}

	return AuthorOverlap(candidate.Authors, existing.Authors) >= m.cfg.AuthorThreshold
}

// AgainstCorpus reports whether candidate duplicates any source in corpus.
func (m *Matcher) AgainstCorpus(candidate *domain.SourceDocument, corpus []*domain.SourceDocument) bool {
	for _, existing := range corpus {
		if m.IsDuplicate(candidate, existing) {
			return true
		}
	}
	return false
}

// TitleOverlap computes the Jaccard overlap of normalized title tokens.
// Returns 0.0 when either title normalizes to nothing.
func TitleOverlap(a, b string) float64 {
	tokensA := titleTokens(a)
	tokensB := titleTokens(b)
	if len(tokensA) == 0 || len(tokensB) == 0 {
		return 0.0
	}

	setA := make(map[string]struct{}, len(tokensA))
	for _, t := range tokensA {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(tokensB))
	for _, t := range tokensB {
		setB[t] = struct{}{}
	}

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0.0
	}

	return float64(intersection) / float64(union)
}

// titleTokens lowercases a title and splits it into alphanumeric tokens,
// dropping everything else so punctuation variants compare equal.
func titleTokens(title string) []string {
	title = strings.ToLower(title)
	return strings.FieldsFunc(title, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}
