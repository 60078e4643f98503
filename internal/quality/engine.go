// Package quality scores drafted section text on a 0-100 scale across
// four axes: citation coverage, topical relevance, informational density,
// and paragraph structure. Scores are heuristic and cheap so the pipeline
// can re-score after every reflection cycle without a model call.
package quality

import (
	"math"
	"strings"
	"unicode"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

const (
	// wordsPerExpectedCitation is the draft length that should carry one
	// citation token. Longer stretches without evidence lower coverage.
	wordsPerExpectedCitation = 120

	// idealParagraphWords is the paragraph length the structure score
	// treats as well formed.
	idealParagraphWords = 150

	// minSentenceWords and maxSentenceWords bound the sentence-length band
	// the density score rewards.
	minSentenceWords = 8
	maxSentenceWords = 35
)

// Engine computes SectionQualityMetrics from drafted text. It is
// stateless and safe for concurrent use.
type Engine struct{}

// NewEngine creates a metrics engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Score computes the metric bundle for a draft. The topic and section
// title seed the relevance vocabulary.
func (e *Engine) Score(content, topic, sectionTitle string) domain.SectionQualityMetrics {
	content = strings.TrimSpace(content)
	if content == "" {
		return domain.SectionQualityMetrics{}
	}
	prose := domain.StripCitationTokens(content)
	words := strings.Fields(prose)

	return domain.SectionQualityMetrics{
		CitationCoverage: e.citationCoverage(content, len(words)),
		Relevance:        e.relevance(prose, topic, sectionTitle),
		Density:          e.density(prose),
		Structure:        e.structure(prose, len(words)),
	}
}

// citationCoverage rewards one citation token per wordsPerExpectedCitation
// words, saturating at 100.
func (e *Engine) citationCoverage(content string, wordCount int) float64 {
	tokens := domain.CountCitationTokens(content)
	if wordCount == 0 {
		return 0
	}
	expected := math.Max(1, float64(wordCount)/wordsPerExpectedCitation)
	return clamp(100 * float64(tokens) / expected)
}

// relevance measures what fraction of the topic and title vocabulary the
// draft actually uses.
func (e *Engine) relevance(prose, topic, sectionTitle string) float64 {
	vocab := contentTerms(topic + " " + sectionTitle)
	if len(vocab) == 0 {
		return 100
	}
	draft := make(map[string]struct{})
	for _, term := range contentTerms(prose) {
		draft[term] = struct{}{}
	}
	var hits int
	for _, term := range vocab {
		if _, ok := draft[term]; ok {
			hits++
		}
	}
	return clamp(100 * float64(hits) / float64(len(vocab)))
}

// density scores average sentence length against a readable band and
// penalizes sentences dominated by stopwords.
func (e *Engine) density(prose string) float64 {
	sentences := splitSentences(prose)
	if len(sentences) == 0 {
		return 0
	}

	var lengthScore, contentScore float64
	for _, s := range sentences {
		words := strings.Fields(s)
		n := len(words)
		switch {
		case n >= minSentenceWords && n <= maxSentenceWords:
			lengthScore += 100
		case n < minSentenceWords:
			lengthScore += 100 * float64(n) / minSentenceWords
		default:
			over := float64(n - maxSentenceWords)
			lengthScore += math.Max(0, 100-over*3)
		}

		var content int
		for _, w := range words {
			if !isStopword(normalizeTerm(w)) {
				content++
			}
		}
		if n > 0 {
			contentScore += 100 * float64(content) / float64(n)
		}
	}
	n := float64(len(sentences))
	return clamp((lengthScore/n)*0.5 + (contentScore/n)*0.5)
}

// structure scores paragraphing: drafts should break into paragraphs of
// roughly idealParagraphWords words rather than a single wall of text or
// a scatter of one-liners.
func (e *Engine) structure(prose string, wordCount int) float64 {
	if wordCount == 0 {
		return 0
	}
	paragraphs := splitParagraphs(prose)
	if len(paragraphs) == 0 {
		return 0
	}

	ideal := math.Max(1, float64(wordCount)/idealParagraphWords)
	ratio := float64(len(paragraphs)) / ideal
	if ratio > 1 {
		ratio = 1 / ratio
	}
	score := 100 * ratio

	// A single paragraph is acceptable only for short sections.
	if len(paragraphs) == 1 && wordCount > 2*idealParagraphWords {
		score = math.Min(score, 50)
	}
	return clamp(score)
}

func splitParagraphs(text string) []string {
	var out []string
	for _, p := range strings.Split(text, "\n\n") {
		if strings.TrimSpace(p) != "" {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

func splitSentences(text string) []string {
	var out []string
	var b strings.Builder
	for _, r := range text {
		b.WriteRune(r)
		if r == '.' || r == '!' || r == '?' {
			s := strings.TrimSpace(b.String())
			if len(strings.Fields(s)) > 0 {
				out = append(out, s)
			}
			b.Reset()
		}
	}
	if s := strings.TrimSpace(b.String()); len(strings.Fields(s)) > 2 {
		out = append(out, s)
	}
	return out
}

// contentTerms lowercases, strips punctuation, and drops stopwords and
// short tokens.
func contentTerms(text string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, w := range strings.Fields(text) {
		term := normalizeTerm(w)
		if len(term) < 3 || isStopword(term) {
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

func normalizeTerm(w string) string {
	return strings.ToLower(strings.TrimFunc(w, func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsNumber(r)
	}))
}

var stopwords = map[string]struct{}{
	"the": {}, "and": {}, "that": {}, "this": {}, "with": {}, "for": {},
	"are": {}, "was": {}, "were": {}, "has": {}, "have": {}, "been": {},
	"from": {}, "into": {}, "which": {}, "their": {}, "its": {}, "also": {},
	"such": {}, "these": {}, "those": {}, "can": {}, "may": {}, "more": {},
	"not": {}, "but": {}, "however": {}, "between": {}, "within": {},
	"about": {}, "over": {}, "other": {}, "than": {}, "when": {}, "while": {},
}

func isStopword(term string) bool {
	_, ok := stopwords[term]
	return ok
}

func clamp(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 100 {
		return 100
	}
	return v
}
