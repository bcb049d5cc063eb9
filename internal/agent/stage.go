// Package agent provides the workflow stages: the four analysis workers and the
// supervising coordinator that routes between them.
package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/referee/internal/decision"
	"github.com/ShayCichocki/referee/internal/llm"
	"github.com/ShayCichocki/referee/pkg/models"
)

// Stage is one node of the workflow. Run never fails: recoverable problems are
// recorded in the returned state's history.
type Stage interface {
	Kind() models.StageKind
	Run(ctx context.Context, state models.SharedState) models.SharedState
}

// History actions recorded by stages.
const (
	ActionGenerationFailed = "generation_failed"
	ActionRoute            = "route"
	ActionRerun            = "rerun"
	ActionRerunDiscarded   = "rerun_discarded"
	ActionFallbackRoute    = "fallback_route"
	ActionForceComplete    = "force_complete"
)

// DefaultGenerationOptions returns the per-stage sampling settings.
func DefaultGenerationOptions() map[models.StageKind]llm.Options {
	return map[models.StageKind]llm.Options{
		models.StageSupervisor: {Temperature: 0.3, MaxOutputTokens: 500},
		models.StageLiterature: {Temperature: 0.5, MaxOutputTokens: 800},
		models.StageTechnical:  {Temperature: 0.4, MaxOutputTokens: 800},
		models.StageCritical:   {Temperature: 0.6, MaxOutputTokens: 800},
		models.StageSynthesis:  {Temperature: 0.5, MaxOutputTokens: 1200},
	}
}

// Deps are the collaborators shared by every stage.
type Deps struct {
	Generator llm.TextGenerator
	Prompts   PromptRenderer
	// Options holds per-stage generation settings. Missing kinds use the defaults.
	Options map[models.StageKind]llm.Options
	// DebugLog receives diagnostic lines. May be nil.
	DebugLog func(format string, args ...interface{})
}

func (d Deps) options(kind models.StageKind) llm.Options {
	if opts, ok := d.Options[kind]; ok {
		return opts
	}
	return DefaultGenerationOptions()[kind]
}

func (d Deps) debugLog(format string, args ...interface{}) {
	if d.DebugLog != nil {
		d.DebugLog(format, args...)
	}
}

func (d Deps) validate() error {
	if d.Generator == nil {
		return fmt.Errorf("stage deps: generator is required")
	}
	if d.Prompts == nil {
		return fmt.Errorf("stage deps: prompt renderer is required")
	}
	return nil
}

// generate renders the prompt for kind and calls the generator.
// Blank output is reported as llm.ErrEmptyOutput.
func (d Deps) generate(ctx context.Context, kind models.StageKind, state models.SharedState) (string, error) {
	if err := d.validate(); err != nil {
		return "", err
	}
	system, user, err := d.Prompts.Render(kind, state)
	if err != nil {
		return "", err
	}
	out, err := d.Generator.Generate(ctx, system, user, d.options(kind))
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(out) == "" {
		return "", llm.ErrEmptyOutput
	}
	return out, nil
}

// NewStages builds the coordinator and every worker.
func NewStages(deps Deps, policy Policy) ([]Stage, error) {
	if err := deps.validate(); err != nil {
		return nil, err
	}
	stages := []Stage{NewCoordinator(deps, policy)}
	for _, kind := range models.CanonicalOrder {
		w, err := NewWorker(kind, deps)
		if err != nil {
			return nil, err
		}
		stages = append(stages, w)
	}
	return stages, nil
}

// clipSummary keeps history summaries readable.
func clipSummary(s string) string {
	return decision.Clip(strings.TrimSpace(s), 100)
}
