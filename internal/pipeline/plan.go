package pipeline

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/sadiq-codes/genpaper-sub003/internal/config"
)

// placeholderPattern is the syntax accepted for citation slot keys.
var placeholderPattern = regexp.MustCompile(`^[a-z][a-z0-9_]*$`)

// CitationSlot marks a place in the outline where evidence from a
// specific source should appear.
type CitationSlot struct {
	// Placeholder is a short snake_case key the writer can reference.
	Placeholder string `json:"placeholder"`

	// SourceID is the corpus source expected to back the slot.
	SourceID uuid.UUID `json:"source_id"`

	// Claim sketches what the slot should support.
	Claim string `json:"claim,omitempty"`
}

// SectionPlan is the structured plan requested during PLANNING.
type SectionPlan struct {
	OutlinePoints     []string       `json:"outline_points"`
	CitationSlots     []CitationSlot `json:"citation_slots"`
	KeyArguments      []string       `json:"key_arguments,omitempty"`
	ParagraphEstimate int            `json:"paragraph_estimate"`

	// Fallback marks plans produced mechanically rather than by a model.
	Fallback bool `json:"-"`
}

// validatePlan checks a model-produced plan: enough outline points and
// citation slots, no outline heading naming a section the document type
// forbids, syntactically valid unique placeholders, and every referenced
// source present in the available set. An invalid plan is replaced by a
// fallback, never fails the section. forbidden may be nil when the document
// type carries no profile.
func validatePlan(plan *SectionPlan, available map[uuid.UUID]struct{}, forbidden func(string) bool, cfg config.PipelineConfig) error {
	if plan == nil {
		return fmt.Errorf("plan is nil")
	}
	if len(plan.OutlinePoints) < cfg.MinOutlinePoints {
		return fmt.Errorf("plan has %d outline points, need at least %d",
			len(plan.OutlinePoints), cfg.MinOutlinePoints)
	}
	if forbidden != nil {
		for _, point := range plan.OutlinePoints {
			if key := outlineKey(point); forbidden(key) {
				return fmt.Errorf("outline introduces forbidden section %q", key)
			}
		}
	}
	if len(plan.CitationSlots) < cfg.MinCitationSlots {
		return fmt.Errorf("plan has %d citation slots, need at least %d",
			len(plan.CitationSlots), cfg.MinCitationSlots)
	}

	seen := make(map[string]struct{}, len(plan.CitationSlots))
	for _, slot := range plan.CitationSlots {
		if !placeholderPattern.MatchString(slot.Placeholder) {
			return fmt.Errorf("invalid placeholder key %q", slot.Placeholder)
		}
		if _, dup := seen[slot.Placeholder]; dup {
			return fmt.Errorf("duplicate placeholder key %q", slot.Placeholder)
		}
		seen[slot.Placeholder] = struct{}{}
		if _, ok := available[slot.SourceID]; !ok {
			return fmt.Errorf("citation slot %q references unknown source %s",
				slot.Placeholder, slot.SourceID)
		}
	}
	return nil
}

// outlineKey reduces an outline point to section-key form: the heading text
// before any colon, lowercased, with spaces collapsed to underscores. Prose
// points reduce to keys no profile lists, so only heading-like points can
// collide with a forbidden section.
func outlineKey(point string) string {
	head := point
	if i := strings.IndexByte(head, ':'); i >= 0 {
		head = head[:i]
	}
	head = strings.ToLower(strings.TrimSpace(head))
	return strings.ReplaceAll(head, " ", "_")
}

// fallbackPlan builds a mechanical plan from the section key and topic:
// a generic outline skeleton and citation slots sized to the target
// length, spread across the candidate sources.
func fallbackPlan(sectionKey, topic string, expectedWords int, candidates []uuid.UUID, cfg config.PipelineConfig) *SectionPlan {
	outline := []string{
		fmt.Sprintf("Introduce the role of the %s in the context of %s", humanizeKey(sectionKey), topic),
		fmt.Sprintf("Develop the main findings and evidence relevant to %s", topic),
		"Contrast viewpoints and note limitations in the cited work",
		"Summarize the takeaway and transition to the next section",
	}
	for len(outline) < cfg.MinOutlinePoints {
		outline = append(outline, fmt.Sprintf("Expand supporting detail on %s", topic))
	}

	slotCount := expectedWords / 200
	if slotCount < cfg.MinCitationSlots {
		slotCount = cfg.MinCitationSlots
	}
	if slotCount > len(candidates) {
		slotCount = len(candidates)
	}
	slots := make([]CitationSlot, 0, slotCount)
	for i := 0; i < slotCount; i++ {
		slots = append(slots, CitationSlot{
			Placeholder: fmt.Sprintf("evidence_%d", i+1),
			SourceID:    candidates[i],
			Claim:       fmt.Sprintf("Supporting evidence for %s", topic),
		})
	}

	paragraphs := expectedWords / 150
	if paragraphs < 1 {
		paragraphs = 1
	}
	return &SectionPlan{
		OutlinePoints:     outline,
		CitationSlots:     slots,
		KeyArguments:      []string{fmt.Sprintf("The %s advances the argument about %s", humanizeKey(sectionKey), topic)},
		ParagraphEstimate: paragraphs,
		Fallback:          true,
	}
}

func humanizeKey(key string) string {
	return strings.ReplaceAll(key, "_", " ")
}
