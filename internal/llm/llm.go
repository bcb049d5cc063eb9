// Package llm provides the text generation backends used by workflow stages.
package llm

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Options tune a single generation call.
type Options struct {
	// Temperature controls sampling randomness.
	Temperature float64
	// MaxOutputTokens caps the response length.
	MaxOutputTokens int
}

// TextGenerator produces text from a system and a user prompt.
// Implementations must return before ctx is done; a failure is reported
// as an error and never as a panic.
type TextGenerator interface {
	Generate(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error)
}

// GeneratorFunc adapts a function to the TextGenerator interface.
type GeneratorFunc func(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error)

// Generate calls f.
func (f GeneratorFunc) Generate(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	return f(ctx, systemPrompt, userPrompt, opts)
}

var (
	// ErrEmptyOutput is returned when a backend answers with no text.
	ErrEmptyOutput = errors.New("model returned empty output")
	// ErrUnknownProvider is returned for provider names the factory does not know.
	ErrUnknownProvider = errors.New("unknown llm provider")
	// ErrNoAPIKey is returned when a backend needs a key and none was given or found in the environment.
	ErrNoAPIKey = errors.New("no API key configured")
)

// GenerationError wraps a backend failure with the provider that produced it.
type GenerationError struct {
	Provider  string
	Retryable bool
	Err       error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("%s generation failed: %v", e.Provider, e.Err)
}

func (e *GenerationError) Unwrap() error {
	return e.Err
}

// wrapError classifies a backend error. Transport-level failures, rate limits
// and server errors are retryable; auth and request errors are not.
func wrapError(provider string, err error) error {
	if err == nil {
		return nil
	}
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return err
	}
	return &GenerationError{
		Provider:  provider,
		Retryable: isRetryable(err),
		Err:       err,
	}
}

func isRetryable(err error) bool {
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, marker := range []string{"429", "rate limit", "overloaded", "500", "502", "503", "504", "timeout", "connection reset", "connection refused", "eof"} {
		if strings.Contains(msg, marker) {
			return true
		}
	}
	return false
}

// IsRetryable reports whether err is a GenerationError marked retryable.
func IsRetryable(err error) bool {
	var genErr *GenerationError
	if errors.As(err, &genErr) {
		return genErr.Retryable
	}
	return false
}

// Ping issues a tiny generation call to confirm the backend answers.
func Ping(ctx context.Context, gen TextGenerator, timeout time.Duration) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	out, err := gen.Generate(ctx, "You are a connectivity check.", "Reply with the single word: ok", Options{
		Temperature:     0,
		MaxOutputTokens: 10,
	})
	if err != nil {
		return err
	}
	if strings.TrimSpace(out) == "" {
		return ErrEmptyOutput
	}
	return nil
}
