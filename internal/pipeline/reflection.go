package pipeline

import "github.com/sadiq-codes/genpaper-sub003/internal/domain"

// reflectionThresholdWords is the target length below which reflection
// is never worth a model call.
const reflectionThresholdWords = 400

// longSectionWords is the target length at which any section reflects
// regardless of its current quality.
const longSectionWords = 800

// compositeReflectBelow is the composite quality score under which a
// section reflects even when short of longSectionWords.
const compositeReflectBelow = 75

// alwaysReflectKeys are the evidence-heavy sections that reflect
// unconditionally with an extra cycle.
var alwaysReflectKeys = map[string]struct{}{
	"results":           {},
	"discussion":        {},
	"methodology":       {},
	"literature_review": {},
}

// ReflectionDecision is the outcome of the reflection policy.
type ReflectionDecision struct {
	Use       bool
	Reason    string
	MaxCycles int
}

// DecideReflection is the reflection policy: a deterministic, side-effect
// free function of the section key, its target length, and the draft's
// current metrics. metrics may be nil when no draft has been scored yet.
func DecideReflection(sectionKey string, expectedWords int, metrics *domain.SectionQualityMetrics, defaultCycles int) ReflectionDecision {
	if expectedWords < reflectionThresholdWords {
		return ReflectionDecision{Reason: "section too short to justify reflection"}
	}
	if _, ok := alwaysReflectKeys[sectionKey]; ok {
		return ReflectionDecision{
			Use:       true,
			Reason:    "evidence-heavy section always reflects",
			MaxCycles: defaultCycles + 1,
		}
	}
	if metrics != nil && metrics.Composite() < compositeReflectBelow {
		return ReflectionDecision{
			Use:       true,
			Reason:    "draft quality below reflection threshold",
			MaxCycles: defaultCycles,
		}
	}
	if expectedWords >= longSectionWords {
		return ReflectionDecision{
			Use:       true,
			Reason:    "long section reflects by default",
			MaxCycles: defaultCycles,
		}
	}
	return ReflectionDecision{Reason: "draft quality sufficient"}
}
