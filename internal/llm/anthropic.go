package llm

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/bedrock"
	"github.com/anthropics/anthropic-sdk-go/option"
	"github.com/aws/aws-sdk-go-v2/config"
)

// AnthropicGenerator calls the Anthropic Messages API directly or through AWS Bedrock.
type AnthropicGenerator struct {
	inner   anthropic.Client
	model   anthropic.Model
	tracker *TokenTracker
	bedrock bool
}

// AnthropicConfig contains configuration for creating an AnthropicGenerator.
type AnthropicConfig struct {
	// Model is the Claude model to use (e.g., anthropic.ModelClaudeSonnet4_20250514).
	Model anthropic.Model
	// APIKey is the Anthropic API key. If empty, uses ANTHROPIC_API_KEY env var.
	APIKey string
	// BaseURL overrides the API endpoint.
	BaseURL string
	// UseAWSBedrock indicates whether to use AWS Bedrock instead of direct API.
	UseAWSBedrock bool
	// AWSRegion is the AWS region for Bedrock (e.g., "us-west-2").
	AWSRegion string
	// AWSProfile is the optional AWS profile name to use.
	AWSProfile string
	// Tracker receives token usage. A new tracker is created when nil.
	Tracker *TokenTracker
}

// NewAnthropicGenerator creates a generator backed by the Anthropic SDK.
func NewAnthropicGenerator(cfg AnthropicConfig) (*AnthropicGenerator, error) {
	var opts []option.RequestOption

	if cfg.UseAWSBedrock {
		ctx := context.Background()

		var loadOpts []func(*config.LoadOptions) error
		if cfg.AWSRegion != "" {
			loadOpts = append(loadOpts, config.WithRegion(cfg.AWSRegion))
		}
		if cfg.AWSProfile != "" {
			loadOpts = append(loadOpts, config.WithSharedConfigProfile(cfg.AWSProfile))
		}

		opts = append(opts, bedrock.WithLoadDefaultConfig(ctx, loadOpts...))
	} else {
		apiKey := cfg.APIKey
		if apiKey == "" {
			apiKey = os.Getenv("ANTHROPIC_API_KEY")
		}
		if apiKey == "" {
			return nil, fmt.Errorf("%w for anthropic (set ANTHROPIC_API_KEY)", ErrNoAPIKey)
		}
		opts = append(opts, option.WithAPIKey(apiKey))
		if cfg.BaseURL != "" {
			opts = append(opts, option.WithBaseURL(cfg.BaseURL))
		}
	}

	model := cfg.Model
	if model == "" {
		model = anthropic.ModelClaudeSonnet4_20250514
	}
	if cfg.UseAWSBedrock {
		model = translateModelForBedrock(model)
	}

	tracker := cfg.Tracker
	if tracker == nil {
		tracker = NewTokenTracker()
	}

	return &AnthropicGenerator{
		inner:   anthropic.NewClient(opts...),
		model:   model,
		tracker: tracker,
		bedrock: cfg.UseAWSBedrock,
	}, nil
}

// translateModelForBedrock converts standard Anthropic model names to Bedrock inference profile format.
// Bedrock uses cross-region inference profiles: us.anthropic.{model}-v1:0
func translateModelForBedrock(model anthropic.Model) anthropic.Model {
	bedrockModels := map[anthropic.Model]string{
		anthropic.ModelClaudeSonnet4_20250514:   "us.anthropic.claude-sonnet-4-20250514-v1:0",
		anthropic.ModelClaudeSonnet4_5_20250929: "us.anthropic.claude-sonnet-4-5-20250929-v1:0",
		anthropic.ModelClaudeHaiku4_5_20251001:  "us.anthropic.claude-haiku-4-5-20251001-v1:0",
		anthropic.ModelClaudeOpus4_1_20250805:   "us.anthropic.claude-opus-4-1-20250805-v1:0",
		anthropic.ModelClaudeOpus4_5_20251101:   "us.anthropic.claude-opus-4-5-20251101-v1:0",
		anthropic.ModelClaude3_7Sonnet20250219:  "us.anthropic.claude-3-7-sonnet-20250219-v1:0",
		anthropic.ModelClaude3_5Haiku20241022:   "us.anthropic.claude-3-5-haiku-20241022-v1:0",
	}

	if bedrockModel, ok := bedrockModels[model]; ok {
		return anthropic.Model(bedrockModel)
	}

	// Not in map: may already be a Bedrock id or a custom model.
	return model
}

// Model returns the configured model name.
func (g *AnthropicGenerator) Model() anthropic.Model {
	return g.model
}

// Tracker returns the token tracker for this generator.
func (g *AnthropicGenerator) Tracker() *TokenTracker {
	return g.tracker
}

func (g *AnthropicGenerator) providerName() string {
	if g.bedrock {
		return "bedrock"
	}
	return "anthropic"
}

// Generate executes a prompt with a system message and returns the text response.
func (g *AnthropicGenerator) Generate(ctx context.Context, systemPrompt, userPrompt string, opts Options) (string, error) {
	maxTokens := int64(opts.MaxOutputTokens)
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	resp, err := g.inner.Messages.New(ctx, anthropic.MessageNewParams{
		Model:       g.model,
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(opts.Temperature),
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		return "", wrapError(g.providerName(), err)
	}

	g.tracker.Add(resp.Usage.InputTokens, resp.Usage.OutputTokens)

	var result strings.Builder
	for _, block := range resp.Content {
		if variant, ok := block.AsAny().(anthropic.TextBlock); ok {
			result.WriteString(variant.Text)
		}
	}

	text := result.String()
	if strings.TrimSpace(text) == "" {
		return "", wrapError(g.providerName(), ErrEmptyOutput)
	}
	return text, nil
}
