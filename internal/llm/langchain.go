package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
)

// DefaultOllamaURL is where a local Ollama server listens by default.
const DefaultOllamaURL = "http://localhost:11434"

// contentModel is the subset of llms.Model the generator needs.
type contentModel interface {
	GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error)
}

// LangchainGenerator serves OpenAI and Ollama models through langchaingo.
type LangchainGenerator struct {
	client   contentModel
	provider string
	model    string
	tracker  *TokenTracker
}

// LangchainConfig configures a LangchainGenerator.
type LangchainConfig struct {
	// Provider is "openai" or "ollama".
	Provider string
	Model    string
	// APIKey is used by openai. If empty, uses OPENAI_API_KEY env var.
	APIKey string
	// BaseURL overrides the endpoint. For ollama it defaults to DefaultOllamaURL.
	BaseURL string
	Tracker *TokenTracker
}

// NewLangchainGenerator creates a generator for an OpenAI or Ollama model.
func NewLangchainGenerator(cfg LangchainConfig) (*LangchainGenerator, error) {
	var (
		client contentModel
		err    error
	)

	switch cfg.Provider {
	case ProviderOpenAI:
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("OPENAI_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("%w for openai (set OPENAI_API_KEY)", ErrNoAPIKey)
		}
		opts := []openai.Option{
			openai.WithToken(apiKey),
			openai.WithModel(cfg.Model),
		}
		if cfg.BaseURL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
		}
		client, err = openai.New(opts...)
	case ProviderOllama:
		serverURL := cfg.BaseURL
		if serverURL == "" {
			serverURL = DefaultOllamaURL
		}
		client, err = ollama.New(
			ollama.WithServerURL(serverURL),
			ollama.WithModel(cfg.Model),
		)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s client: %w", cfg.Provider, err)
	}

	return newLangchainGenerator(client, cfg.Provider, cfg.Model, cfg.Tracker), nil
}

func newLangchainGenerator(client contentModel, provider, model string, tracker *TokenTracker) *LangchainGenerator {
	if tracker == nil {
		tracker = NewTokenTracker()
	}
	return &LangchainGenerator{
		client:   client,
		provider: provider,
		model:    model,
		tracker:  tracker,
	}
}

// Model returns the configured model name.
func (g *LangchainGenerator) Model() string {
	return g.model
}

// Tracker returns the token tracker for this generator.
func (g *LangchainGenerator) Tracker() *TokenTracker {
	return g.tracker
}

// Generate sends a system and a human message and returns the first choice.
func (g *LangchainGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeSystem, systemPrompt),
		llms.TextParts(llms.ChatMessageTypeHuman, userPrompt),
	}

	callOpts := []llms.CallOption{llms.WithTemperature(opts.Temperature)}
	if opts.MaxOutputTokens > 0 {
		callOpts = append(callOpts, llms.WithMaxTokens(opts.MaxOutputTokens))
	}

	resp, err := g.client.GenerateContent(ctx, messages, callOpts...)
	if err != nil {
		return "", wrapError(g.provider, err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", wrapError(g.provider, ErrEmptyOutput)
	}

	choice := resp.Choices[0]
	g.tracker.Add(usageField(choice.GenerationInfo, "PromptTokens"), usageField(choice.GenerationInfo, "CompletionTokens"))

	if strings.TrimSpace(choice.Content) == "" {
		return "", wrapError(g.provider, ErrEmptyOutput)
	}
	return choice.Content, nil
}

// usageField reads a token count from langchaingo generation info.
// Backends report counts as int, int64 or float64 depending on the decoder.
func usageField(info map[string]any, key string) int64 {
	switch v := info[key].(type) {
	case int:
		return int64(v)
	case int64:
		return v
	case float64:
		return int64(v)
	default:
		return 0
	}
}
