package collector

import (
	"strings"
	"unicode"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// minTermLength is the shortest token counted as a significant term.
const minTermLength = 3

// topicFilter decides whether a discovered source is on topic by
// whole-word overlap between the topic's significant terms and the
// source's title plus abstract, combined with a relevance-score gate.
type topicFilter struct {
	terms             []string
	minMatchRatio     float64
	minRelevanceScore float64
	permissiveNoScore bool
}

func newTopicFilter(topic string, minMatchRatio, minRelevanceScore float64, permissiveNoScore bool) *topicFilter {
	return &topicFilter{
		terms:             significantTerms(topic),
		minMatchRatio:     minMatchRatio,
		minRelevanceScore: minRelevanceScore,
		permissiveNoScore: permissiveNoScore,
	}
}

// Accept reports whether the source passes both the term-overlap and the
// relevance-score gates.
func (f *topicFilter) Accept(source *domain.SourceDocument) bool {
	return f.termMatch(source) && f.scoreMatch(source)
}

func (f *topicFilter) termMatch(source *domain.SourceDocument) bool {
	if len(f.terms) == 0 {
		return true
	}
	haystack := wordSet(source.Title + " " + source.Abstract)
	var hits int
	for _, term := range f.terms {
		if _, ok := haystack[term]; ok {
			hits++
		}
	}
	ratio := float64(hits) / float64(len(f.terms))
	return ratio >= f.minMatchRatio
}

func (f *topicFilter) scoreMatch(source *domain.SourceDocument) bool {
	if source.RelevanceScore == nil {
		return f.permissiveNoScore
	}
	return *source.RelevanceScore >= f.minRelevanceScore
}

// significantTerms tokenizes the topic into lowercase whole words, drops
// stopwords and short tokens, and de-duplicates.
func significantTerms(topic string) []string {
	seen := make(map[string]struct{})
	var out []string
	for _, w := range strings.Fields(topic) {
		term := normalizeWord(w)
		if len(term) < minTermLength || isFilterStopword(term) {
			continue
		}
		if _, ok := seen[term]; ok {
			continue
		}
		seen[term] = struct{}{}
		out = append(out, term)
	}
	return out
}

func wordSet(text string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		if term := normalizeWord(w); term != "" {
			set[term] = struct{}{}
		}
	}
	return set
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}))
}

var filterStopwords = map[string]struct{}{
	"the": {}, "and": {}, "for": {}, "with": {}, "from": {}, "into": {},
	"their": {}, "about": {}, "using": {}, "based": {}, "toward": {},
	"towards": {}, "via": {}, "between": {}, "among": {}, "study": {},
	"analysis": {}, "review": {}, "approach": {}, "effects": {},
}

func isFilterStopword(term string) bool {
	_, ok := filterStopwords[term]
	return ok
}
