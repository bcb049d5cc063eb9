package llm

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
)

// Provider names accepted by New.
const (
	ProviderAnthropic = "anthropic"
	ProviderBedrock   = "bedrock"
	ProviderOpenAI    = "openai"
	ProviderOllama    = "ollama"
)

// Providers lists every supported provider name.
var Providers = []string{ProviderAnthropic, ProviderBedrock, ProviderOpenAI, ProviderOllama}

// DefaultModel returns the model used when none is configured.
func DefaultModel(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderOllama:
		return "llama3.1:8b"
	default:
		return string(anthropic.ModelClaudeSonnet4_20250514)
	}
}

// ProviderConfig selects and configures a backend.
type ProviderConfig struct {
	Provider          string
	Model             string
	APIKey            string
	BaseURL           string
	AWSRegion         string
	AWSProfile        string
	RequestsPerSecond float64
	MaxRetries        int
	// Timeout bounds each individual generation call. Zero means no bound.
	Timeout time.Duration
	Tracker *TokenTracker
}

// Backend is a ready-to-use generator plus its identity.
type Backend struct {
	TextGenerator
	Provider string
	Model    string
	Tracker  *TokenTracker
}

// New builds the generator for cfg.Provider, wrapped with retry, rate
// limiting and a per-call timeout as configured.
func New(cfg ProviderConfig) (*Backend, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = ProviderAnthropic
	}
	model := cfg.Model
	if model == "" {
		model = DefaultModel(provider)
	}
	tracker := cfg.Tracker
	if tracker == nil {
		tracker = NewTokenTracker()
	}

	var gen TextGenerator
	switch provider {
	case ProviderAnthropic, ProviderBedrock:
		g, err := NewAnthropicGenerator(AnthropicConfig{
			Model:         anthropic.Model(model),
			APIKey:        cfg.APIKey,
			BaseURL:       cfg.BaseURL,
			UseAWSBedrock: provider == ProviderBedrock,
			AWSRegion:     cfg.AWSRegion,
			AWSProfile:    cfg.AWSProfile,
			Tracker:       tracker,
		})
		if err != nil {
			return nil, err
		}
		model = string(g.Model())
		gen = g
	case ProviderOpenAI, ProviderOllama:
		g, err := NewLangchainGenerator(LangchainConfig{
			Provider: provider,
			Model:    model,
			APIKey:   cfg.APIKey,
			BaseURL:  cfg.BaseURL,
			Tracker:  tracker,
		})
		if err != nil {
			return nil, err
		}
		gen = g
	default:
		return nil, fmt.Errorf("%w: %q (want one of %s)", ErrUnknownProvider, cfg.Provider, strings.Join(Providers, ", "))
	}

	gen = withTimeout(gen, cfg.Timeout)
	if cfg.MaxRetries > 0 {
		gen = WithRetry(gen, RetryConfig{MaxRetries: cfg.MaxRetries, BaseDelay: DefaultRetryConfig().BaseDelay})
	}
	gen = WithRateLimit(gen, cfg.RequestsPerSecond)

	return &Backend{
		TextGenerator: gen,
		Provider:      provider,
		Model:         model,
		Tracker:       tracker,
	}, nil
}

func withTimeout(gen TextGenerator, timeout time.Duration) TextGenerator {
	if timeout <= 0 {
		return gen
	}
	return GeneratorFunc(func(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()
		return gen.Generate(ctx, systemPrompt, userPrompt, opts)
	})
}
