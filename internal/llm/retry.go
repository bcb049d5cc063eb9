package llm

import (
	"context"
	"time"
)

// RetryConfig controls how failed generation calls are retried.
type RetryConfig struct {
	// MaxRetries is the number of extra attempts after the first failure.
	MaxRetries int
	// BaseDelay is the first backoff delay; it doubles per attempt.
	BaseDelay time.Duration
}

// DefaultRetryConfig returns sensible defaults.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: 2,
		BaseDelay:  time.Second,
	}
}

// Retrying retries retryable generation failures with exponential backoff.
type Retrying struct {
	next   TextGenerator
	config RetryConfig
	// OnRetry is called before each retry wait, if set.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// WithRetry wraps gen so retryable errors are attempted again.
func WithRetry(gen TextGenerator, cfg RetryConfig) *Retrying {
	return &Retrying{next: gen, config: cfg}
}

// Generate forwards to the wrapped generator, retrying on retryable errors.
func (r *Retrying) Generate(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	var lastErr error
	for attempt := 0; attempt <= r.config.MaxRetries; attempt++ {
		if attempt > 0 {
			delay := r.config.BaseDelay * time.Duration(1<<uint(attempt-1))
			if r.OnRetry != nil {
				r.OnRetry(attempt, delay, lastErr)
			}
			select {
			case <-time.After(delay):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		out, err := r.next.Generate(ctx, systemPrompt, userPrompt, opts)
		if err == nil {
			return out, nil
		}
		lastErr = err
		if !IsRetryable(err) {
			break
		}
	}
	return "", lastErr
}
