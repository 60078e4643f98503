// Package dedup detects near-duplicate sources through normalized title
// comparison and fuzzy author-list matching. The collector uses it to drop
// discovered candidates that restate a source already in the corpus under a
// different identifier.
package dedup

import (
	"strings"
	"unicode"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// AuthorOverlap computes a fuzzy overlap score between two author lists.
// Each author in the smaller list is greedily paired with the most similar
// unmatched author in the larger list; the summed pair similarity is then
// divided by the union count, Jaccard style.
//
// Returns 0.0 if either list is empty, 1.0 for a perfect match. The result
// is symmetric.
func AuthorOverlap(a, b []domain.Author) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	normA := normalizeAuthors(a)
	normB := normalizeAuthors(b)

	if len(normA) > len(normB) {
		normA, normB = normB, normA
	}

	used := make([]bool, len(normB))
	totalScore := 0.0

	for _, nameA := range normA {
		bestScore := 0.0
		bestIdx := -1

		for j, nameB := range normB {
			if used[j] {
				continue
			}
			score := nameSimilarity(nameA, nameB)
			if score > bestScore {
				bestScore = score
				bestIdx = j
			}
		}

		if bestIdx >= 0 {
			used[bestIdx] = true
			totalScore += bestScore
		}
	}

	matchedPairs := 0
	for _, u := range used {
		if u {
			matchedPairs++
		}
	}
	unionCount := len(normA) + len(normB) - matchedPairs

	if unionCount == 0 {
		return 0.0
	}

	return totalScore / float64(unionCount)
}

// NormalizeName normalizes an author name for comparison: lowercase,
// "Last, First" reordered to "First Last", punctuation stripped, whitespace
// collapsed.
func NormalizeName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}

	name = strings.ToLower(name)

	if idx := strings.Index(name, ","); idx >= 0 {
		last := strings.TrimSpace(name[:idx])
		first := strings.TrimSpace(name[idx+1:])
		if first != "" {
			name = first + " " + last
		} else {
			name = last
		}
	}

	var sb strings.Builder
	sb.Grow(len(name))
	prevSpace := false

	for _, r := range name {
		if unicode.IsLetter(r) {
			sb.WriteRune(r)
			prevSpace = false
		} else if unicode.IsSpace(r) {
			if !prevSpace && sb.Len() > 0 {
				sb.WriteRune(' ')
				prevSpace = true
			}
		}
	}

	return strings.TrimRight(sb.String(), " ")
}

// nameSimilarity compares two normalized author names.
//
// Scoring:
//   - exact match, or same last and first name: 1.0
//   - same last name, matching initial: 0.9
//   - same last name, first name missing on either side: 0.7
//   - same last name, conflicting first names: 0.3
//   - different last names: 0.0
func nameSimilarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0.0
	}

	partsA := strings.Fields(a)
	partsB := strings.Fields(b)

	lastA := partsA[len(partsA)-1]
	lastB := partsB[len(partsB)-1]

	if lastA != lastB {
		return 0.0
	}

	firstA := partsA[:len(partsA)-1]
	firstB := partsB[:len(partsB)-1]

	if len(firstA) == 0 || len(firstB) == 0 {
		return 0.7
	}

	if strings.Join(firstA, " ") == strings.Join(firstB, " ") {
		return 1.0
	}

	if isInitialMatch(firstA[0], firstB[0]) {
		return 0.9
	}

	return 0.3
}

// isInitialMatch returns true if one token is a single-character initial
// matching the first character of the other token.
func isInitialMatch(a, b string) bool {
	if len(a) == 1 && len(b) > 1 && a[0] == b[0] {
		return true
	}
	if len(b) == 1 && len(a) > 1 && b[0] == a[0] {
		return true
	}
	return false
}

func normalizeAuthors(authors []domain.Author) []string {
	result := make([]string, len(authors))
	for i, a := range authors {
		result[i] = NormalizeName(a.Name)
	}
	return result
}
