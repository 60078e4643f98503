// Package llm provides the language-model service used by the generation
// pipeline: plain text completion, schema-constrained JSON completion, and
// text embedding for the passage index.
package llm

import (
	"context"
	"sync"
	"time"

	"github.com/sadiq-codes/genpaper-sub003/internal/domain"
)

// Request is a single language-model call.
type Request struct {
	// Operation labels the call for metrics and analytics
	// (e.g. "plan", "write", "reflect", "summarize").
	Operation string

	// System is the system prompt. Optional.
	System string

	// Prompt is the user prompt.
	Prompt string

	// MaxTokens caps the completion length. Zero means the provider default.
	MaxTokens int

	// Temperature overrides the configured temperature when non-nil.
	Temperature *float64
}

// Usage reports token consumption for one call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Total returns the combined token count.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Service is the language-model collaborator consumed by the pipeline.
type Service interface {
	// GenerateText returns a free-form completion for the request.
	GenerateText(ctx context.Context, req Request) (string, Usage, error)

	// GenerateStructured requests a JSON completion and unmarshals it into
	// out. The concrete schema is conveyed by the prompt; out must be a
	// pointer to a JSON-unmarshalable value.
	GenerateStructured(ctx context.Context, req Request, out interface{}) (Usage, error)

	// Provider returns the provider name.
	Provider() string

	// Model returns the chat model identifier in use.
	Model() string
}

// Embedder embeds a single text into a dense vector.
type Embedder interface {
	EmbedText(ctx context.Context, text string) ([]float32, error)
}

// Analytics accumulates tool-call usage across one generation job. Safe for
// use by the single job driver; a mutex guards against incidental concurrent
// recording from probes.
type Analytics struct {
	mu          sync.Mutex
	calls       int
	tokens      int
	callsByKind map[string]int
	duration    time.Duration
}

// NewAnalytics creates an empty analytics accumulator.
func NewAnalytics() *Analytics {
	return &Analytics{callsByKind: make(map[string]int)}
}

// Record adds one call's usage to the accumulator.
func (a *Analytics) Record(operation string, usage Usage, elapsed time.Duration) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls++
	a.tokens += usage.Total()
	a.callsByKind[operation]++
	a.duration += elapsed
}

// Snapshot returns the accumulated analytics as a domain value.
func (a *Analytics) Snapshot() domain.ToolCallAnalytics {
	a.mu.Lock()
	defer a.mu.Unlock()

	byKind := make(map[string]int, len(a.callsByKind))
	for k, v := range a.callsByKind {
		byKind[k] = v
	}

	return domain.ToolCallAnalytics{
		TotalCalls:    a.calls,
		TotalTokens:   a.tokens,
		CallsByKind:   byKind,
		TotalDuration: a.duration,
	}
}
