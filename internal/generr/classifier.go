// Package generr classifies generation failures into a retry taxonomy
// consumed by the job driver and the workflow retry policies.
package generr

import (
	"errors"
	"strings"
	"time"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// Category is the failure taxonomy.
type Category string

const (
	// CategoryTransient covers rate limits, network failures, and
	// timeouts. Retried with exponential backoff.
	CategoryTransient Category = "transient"

	// CategoryQuality covers low-relevance or insufficient-content
	// failures. Retried with a small backoff.
	CategoryQuality Category = "quality"

	// CategoryUserAction covers conditions only the caller can fix, such
	// as an empty corpus or invalid topic. Never retried.
	CategoryUserAction Category = "user_action"

	// CategoryFatal covers authentication and validation failures, and is
	// the fail-safe default for anything unclassified. Never retried.
	CategoryFatal Category = "fatal"
)

// Classification carries the retry policy and messaging for a failure.
type Classification struct {
	Category   Category
	Retryable  bool
	MaxRetries int

	// InitialBackoff seeds the retry schedule; the backoff coefficient
	// applies on each subsequent attempt.
	InitialBackoff     time.Duration
	BackoffCoefficient float64

	// UserMessage is a static, non-technical message safe to surface to
	// callers. Technical detail stays in logs.
	UserMessage string
}

var classifications = map[Category]Classification{
	CategoryTransient: {
		Category:           CategoryTransient,
		Retryable:          true,
		MaxRetries:         5,
		InitialBackoff:     2 * time.Second,
		BackoffCoefficient: 2.0,
		UserMessage:        "The service hit a temporary issue and is retrying.",
	},
	CategoryQuality: {
		Category:           CategoryQuality,
		Retryable:          true,
		MaxRetries:         2,
		InitialBackoff:     time.Second,
		BackoffCoefficient: 1.0,
		UserMessage:        "Generated content fell below the quality bar and is being redone.",
	},
	CategoryUserAction: {
		Category:    CategoryUserAction,
		Retryable:   false,
		UserMessage: "The request cannot proceed as submitted. Adjust the topic or sources and try again.",
	},
	CategoryFatal: {
		Category:    CategoryFatal,
		Retryable:   false,
		UserMessage: "Generation failed due to an internal error.",
	},
}

// substring groups checked in order; first match wins.
var (
	transientMarkers = []string{
		"rate limit", "rate_limit", "too many requests", "429",
		"network", "connection refused", "connection reset", "broken pipe",
		"timeout", "deadline exceeded", "temporarily unavailable",
		"service unavailable", "502", "503",
	}
	qualityMarkers = []string{
		"low retrieval quality", "quality", "low relevance", "score below",
		"no relevant content", "no content", "insufficient content",
	}
	userActionMarkers = []string{
		"empty corpus", "no sources", "invalid topic", "topic is required",
		"must not be empty",
	}
	fatalMarkers = []string{
		"unauthorized", "authentication", "invalid api key", "forbidden",
		"validation failed", "401", "403",
	}
)

// Classify maps an error to its category. Typed domain errors are
// checked first; everything else falls back to substring matching on the
// error text, and unknown errors default to fatal so nothing unclassified
// is ever silently retried.
func Classify(err error) Classification {
	if err == nil {
		return classifications[CategoryFatal]
	}

	switch {
	case errors.Is(err, domain.ErrEmptyCorpus):
		return classifications[CategoryUserAction]
	case errors.Is(err, domain.ErrNoRelevantContent),
		errors.Is(err, domain.ErrLowRetrievalQuality):
		return classifications[CategoryQuality]
	}

	var rateLimitErr *domain.RateLimitError
	if errors.As(err, &rateLimitErr) {
		return classifications[CategoryTransient]
	}
	var validationErr *domain.ValidationError
	if errors.As(err, &validationErr) {
		return classifications[CategoryUserAction]
	}
	var apiErr *domain.ExternalAPIError
	if errors.As(err, &apiErr) {
		switch {
		case apiErr.StatusCode == 401 || apiErr.StatusCode == 403:
			return classifications[CategoryFatal]
		case apiErr.StatusCode == 429 || apiErr.StatusCode >= 500:
			return classifications[CategoryTransient]
		}
	}

	text := strings.ToLower(err.Error())
	for _, marker := range userActionMarkers {
		if strings.Contains(text, marker) {
			return classifications[CategoryUserAction]
		}
	}
	for _, marker := range fatalMarkers {
		if strings.Contains(text, marker) {
			return classifications[CategoryFatal]
		}
	}
	for _, marker := range transientMarkers {
		if strings.Contains(text, marker) {
			return classifications[CategoryTransient]
		}
	}
	for _, marker := range qualityMarkers {
		if strings.Contains(text, marker) {
			return classifications[CategoryQuality]
		}
	}
	return classifications[CategoryFatal]
}

// Get returns the classification for a known category. Unknown
// categories resolve to fatal.
func Get(category Category) Classification {
	if c, ok := classifications[category]; ok {
		return c
	}
	return classifications[CategoryFatal]
}

// Categories lists every category in the taxonomy.
func Categories() []Category {
	return []Category{CategoryTransient, CategoryQuality, CategoryUserAction, CategoryFatal}
}
