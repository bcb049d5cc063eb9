package orchestrator

import (
	"context"
	"fmt"

	"github.com/ShayCichocki/referee/internal/agent"
	"github.com/ShayCichocki/referee/internal/config"
	"github.com/ShayCichocki/referee/internal/graph"
	"github.com/ShayCichocki/referee/internal/llm"
	"github.com/ShayCichocki/referee/pkg/models"
)

// RunWorkflow builds the generator, stages, graph and engine described by cfg
// and runs them over input. It fails only when construction fails; stage
// failures are recorded in the returned state's history.
func RunWorkflow(ctx context.Context, input string, cfg *config.Config, opts ...Option) (models.SharedState, error) {
	o := applyOptions(opts)

	engine, err := buildEngine(cfg, o)
	if err != nil {
		return models.SharedState{}, err
	}

	state := models.NewSharedState(input)
	if o.initial != nil {
		state = *o.initial
	}
	return engine.Run(ctx, state), nil
}

// NewEngineFromConfig builds an engine the same way RunWorkflow does.
func NewEngineFromConfig(cfg *config.Config, opts ...Option) (*Engine, error) {
	return buildEngine(cfg, applyOptions(opts))
}

func buildEngine(cfg *config.Config, o *engineOptions) (*Engine, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	gen := o.generator
	if gen == nil {
		backend, err := BackendFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		gen = backend
	}

	prompts := o.prompts
	if prompts == nil {
		r, err := RendererFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		prompts = r
	}

	deps := agent.Deps{
		Generator: gen,
		Prompts:   prompts,
		Options:   GenerationOptions(cfg),
		DebugLog:  o.logger.Log,
	}
	policy := agent.Policy{
		MaxIterations: cfg.Workflow.MaxIterations,
		MaxReruns:     cfg.Workflow.MaxReruns,
	}
	stages, err := agent.NewStages(deps, policy)
	if err != nil {
		return nil, fmt.Errorf("build stages: %w", err)
	}

	g := graph.New()
	g.SetDebugLog(o.logger.Log)
	nodes := make([]graph.Node, 0, len(stages))
	for _, s := range stages {
		nodes = append(nodes, s)
	}
	if err := g.Build(nodes); err != nil {
		return nil, fmt.Errorf("build graph: %w", err)
	}

	return &Engine{graph: g, opts: o}, nil
}

// BackendFromConfig builds the text generation backend selected by cfg.
func BackendFromConfig(cfg *config.Config) (*llm.Backend, error) {
	key, err := config.GetAPIKey(cfg)
	if err != nil {
		return nil, err
	}
	return llm.New(llm.ProviderConfig{
		Provider:          cfg.LLM.Provider,
		Model:             cfg.LLM.Model,
		APIKey:            key,
		BaseURL:           cfg.LLM.BaseURL,
		AWSRegion:         cfg.LLM.AWSRegion,
		AWSProfile:        cfg.LLM.AWSProfile,
		RequestsPerSecond: cfg.LLM.RequestsPerSecond,
		MaxRetries:        cfg.LLM.MaxRetries,
		Timeout:           cfg.LLM.Timeout,
	})
}

// RendererFromConfig returns the default templates with any configured overrides applied.
func RendererFromConfig(cfg *config.Config) (*agent.TemplateRenderer, error) {
	var overrides map[string]agent.PromptTemplate
	if path := cfg.Prompts.OverridesFile; path != "" {
		o, err := agent.LoadPromptOverrides(path)
		if err != nil {
			return nil, err
		}
		overrides = o
	}
	r, err := agent.NewTemplateRenderer(overrides)
	if err != nil {
		return nil, fmt.Errorf("prompt overrides: %w", err)
	}
	return r, nil
}

// GenerationOptions maps the per-stage config onto generator options.
func GenerationOptions(cfg *config.Config) map[models.StageKind]llm.Options {
	out := make(map[models.StageKind]llm.Options)
	for kind := range agent.DefaultGenerationOptions() {
		sc := cfg.Stage(kind)
		out[kind] = llm.Options{Temperature: sc.Temperature, MaxOutputTokens: sc.MaxTokens}
	}
	return out
}
