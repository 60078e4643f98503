package llm

import (
	"context"
	"fmt"

	"golang.org/x/time/rate"
)

// RateLimitedService wraps a Service with a token-bucket rate limiter so
// concurrent probes and the job driver together stay within the provider's
// request budget. Embedding calls share the same bucket.
type RateLimitedService struct {
	inner   Service
	limiter *rate.Limiter
}

// Compile-time interface check.
var _ Service = (*RateLimitedService)(nil)

// NewRateLimitedService wraps inner so that calls proceed at no more than rps
// requests per second with the given burst.
func NewRateLimitedService(inner Service, rps float64, burst int) *RateLimitedService {
	if rps <= 0 {
		rps = 1
	}
	if burst < 1 {
		burst = 1
	}
	return &RateLimitedService{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// GenerateText waits for a rate-limit slot and delegates to the inner service.
func (s *RateLimitedService) GenerateText(ctx context.Context, req Request) (string, Usage, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return "", Usage{}, fmt.Errorf("llm rate limiter: %w", err)
	}
	return s.inner.GenerateText(ctx, req)
}

// GenerateStructured waits for a rate-limit slot and delegates to the inner service.
func (s *RateLimitedService) GenerateStructured(ctx context.Context, req Request, out interface{}) (Usage, error) {
	if err := s.limiter.Wait(ctx); err != nil {
		return Usage{}, fmt.Errorf("llm rate limiter: %w", err)
	}
	return s.inner.GenerateStructured(ctx, req, out)
}

// Provider returns the inner provider name.
func (s *RateLimitedService) Provider() string { return s.inner.Provider() }

// Model returns the inner model identifier.
func (s *RateLimitedService) Model() string { return s.inner.Model() }
