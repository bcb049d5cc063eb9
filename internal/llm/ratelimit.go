package llm

import (
	"context"

	"golang.org/x/time/rate"
)

// RateLimited spaces out generation calls with a token bucket.
type RateLimited struct {
	next    TextGenerator
	limiter *rate.Limiter
}

// WithRateLimit wraps gen so at most requestsPerSecond calls start per second.
// A non-positive rate returns gen unchanged.
func WithRateLimit(gen TextGenerator, requestsPerSecond float64) TextGenerator {
	if requestsPerSecond <= 0 {
		return gen
	}
	burst := int(requestsPerSecond)
	if burst < 1 {
		burst = 1
	}
	return &RateLimited{
		next:    gen,
		limiter: rate.NewLimiter(rate.Limit(requestsPerSecond), burst),
	}
}

// Generate waits for a token and then forwards the call.
func (r *RateLimited) Generate(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	if err := r.limiter.Wait(ctx); err != nil {
		return "", err
	}
	return r.next.Generate(ctx, systemPrompt, userPrompt, opts)
}
