package pipeline

import (
	"fmt"
	"strings"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

const systemPrompt = "You are an academic writing assistant producing one section " +
	"of a long-form research draft. Write precise, well-structured prose. " +
	"Cite evidence with neutral tokens of the form [cite:<source-uuid>] placed " +
	"immediately after the claim they support. Never invent source ids and never " +
	"format citations as author-year text."

func planPrompt(topic string, spec domain.SectionSpec, sources []*domain.SourceDocument) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Plan the %q section (target %d words) of a draft on: %s\n\n",
		spec.Title, spec.ExpectedWords, topic)
	b.WriteString("Available sources:\n")
	for _, s := range sources {
		fmt.Fprintf(&b, "- %s: %s", s.ID, s.Title)
		if s.Abstract != "" {
			fmt.Fprintf(&b, ": %s", truncateWords(s.Abstract, 40))
		}
		b.WriteString("\n")
	}
	b.WriteString("\nRespond with JSON: {\"outline_points\": [string], " +
		"\"citation_slots\": [{\"placeholder\": snake_case string, \"source_id\": uuid, \"claim\": string}], " +
		"\"key_arguments\": [string], \"paragraph_estimate\": int}. " +
		"Every source_id must come from the list above.")
	return b.String()
}

func writePrompt(topic string, spec domain.SectionSpec, plan *SectionPlan, chunks []*domain.Chunk, priorSummary string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write the %q section (about %d words) of a draft on: %s\n\n",
		spec.Title, spec.ExpectedWords, topic)

	if priorSummary != "" {
		fmt.Fprintf(&b, "Summary of preceding sections:\n%s\n\n", priorSummary)
	}

	b.WriteString("Outline:\n")
	for i, point := range plan.OutlinePoints {
		fmt.Fprintf(&b, "%d. %s\n", i+1, point)
	}
	if len(plan.CitationSlots) > 0 {
		b.WriteString("\nPlanned evidence:\n")
		for _, slot := range plan.CitationSlots {
			fmt.Fprintf(&b, "- [%s] source %s: %s\n", slot.Placeholder, slot.SourceID, slot.Claim)
		}
	}

	b.WriteString("\nEvidence passages:\n")
	for _, c := range chunks {
		fmt.Fprintf(&b, "[source %s] %s\n\n", c.SourceID, truncateWords(c.Content, 120))
	}

	fmt.Fprintf(&b, "Ground every claim in the passages above and cite with [cite:<source-uuid>] tokens. "+
		"Separate paragraphs with blank lines. Do not write a heading; start with prose.")
	return b.String()
}

func reflectPrompt(topic string, spec domain.SectionSpec, draft string, metrics domain.SectionQualityMetrics) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Revise this draft of the %q section (target %d words) on: %s\n\n",
		spec.Title, spec.ExpectedWords, topic)
	fmt.Fprintf(&b, "Current weaknesses (0-100): citation coverage %.0f, relevance %.0f, density %.0f, structure %.0f.\n\n",
		metrics.CitationCoverage, metrics.Relevance, metrics.Density, metrics.Structure)
	b.WriteString("Draft:\n")
	b.WriteString(draft)
	b.WriteString("\n\nReturn the full revised section. Keep existing [cite:<uuid>] tokens " +
		"attached to the claims they support; you may reposition but never fabricate them.")
	return b.String()
}

func summaryPrompt(title, content string) string {
	return fmt.Sprintf("Summarize the following %q section in two or three sentences "+
		"so a later section can build on it. Omit citations.\n\n%s",
		title, domain.StripCitationTokens(content))
}

// truncateWords cuts text to at most n words.
func truncateWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= n {
		return text
	}
	return strings.Join(words[:n], " ") + "…"
}
