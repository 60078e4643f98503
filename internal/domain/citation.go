package domain

import (
	"fmt"
	"regexp"

	"github.com/google/uuid"
)

// citationTokenPattern matches neutral citation tokens of the form
// [cite:<uuid>] emitted by the writer. Formatting into a citation style
// happens in a single later pass, never at draft time.
var citationTokenPattern = regexp.MustCompile(`\[cite:([0-9a-fA-F-]{36})\]`)

// CitationToken renders the neutral citation token for a source.
func CitationToken(sourceID uuid.UUID) string {
	return fmt.Sprintf("[cite:%s]", sourceID)
}

// ExtractCitationIDs returns the source ids of every well-formed citation
// token in text, in order of appearance. Malformed ids are skipped.
func ExtractCitationIDs(text string) []uuid.UUID {
	matches := citationTokenPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil
	}
	ids := make([]uuid.UUID, 0, len(matches))
	for _, m := range matches {
		id, err := uuid.Parse(m[1])
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// CountCitationTokens returns the number of well-formed citation tokens
// in text.
func CountCitationTokens(text string) int {
	return len(ExtractCitationIDs(text))
}

// StripCitationTokens removes every citation token from text, well formed
// or not, leaving the surrounding prose intact.
func StripCitationTokens(text string) string {
	return citationTokenPattern.ReplaceAllString(text, "")
}
