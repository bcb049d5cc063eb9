package agent

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ShayCichocki/referee/pkg/models"
)

func TestNewCoordinator_Defaults(t *testing.T) {
	c := NewCoordinator(testDeps(newScriptedGenerator()), Policy{MaxIterations: 0, MaxReruns: -1})
	assert.Equal(t, 10, c.Policy().MaxIterations)
	assert.Equal(t, 0, c.Policy().MaxReruns)
	assert.Equal(t, models.StageSupervisor, c.Kind())
}

func TestCoordinator_Routes(t *testing.T) {
	gen := newScriptedGenerator().reply(models.StageSupervisor, route("literature_reviewer"))
	c := NewCoordinator(testDeps(gen), DefaultPolicy())

	out := c.Run(context.Background(), models.NewSharedState("abstract"))
	assert.Equal(t, models.StageLiterature, out.NextStage)
	assert.Equal(t, 1, out.Iteration)
	assert.False(t, out.Complete)
	require.Len(t, out.History, 1)
	assert.Equal(t, ActionRoute, out.History[0].Action)
	assert.Equal(t, "Routing decision: literature_reviewer. go to literature_reviewer", out.History[0].Summary)
}

func TestCoordinator_ReasoningClipped(t *testing.T) {
	long := strings.Repeat("r", 300)
	gen := newScriptedGenerator().reply(models.StageSupervisor,
		`{"reasoning": "`+long+`", "next_stage": "literature_reviewer"}`)
	c := NewCoordinator(testDeps(gen), DefaultPolicy())

	out := c.Run(context.Background(), models.NewSharedState("abstract"))
	assert.Equal(t, "Routing decision: literature_reviewer. "+strings.Repeat("r", 100), out.History[0].Summary)
}

func TestCoordinator_FinishCompletes(t *testing.T) {
	gen := newScriptedGenerator().reply(models.StageSupervisor, route("FINISH"))
	c := NewCoordinator(testDeps(gen), DefaultPolicy())

	out := c.Run(context.Background(), models.NewSharedState("abstract"))
	assert.Equal(t, models.StageFinish, out.NextStage)
	assert.True(t, out.Complete)
}

func TestCoordinator_UnknownTargetFinishes(t *testing.T) {
	for _, target := range []string{"translator", "supervisor"} {
		t.Run(target, func(t *testing.T) {
			gen := newScriptedGenerator().reply(models.StageSupervisor, route(target))
			c := NewCoordinator(testDeps(gen), DefaultPolicy())

			out := c.Run(context.Background(), models.NewSharedState("abstract"))
			assert.Equal(t, models.StageFinish, out.NextStage)
			assert.True(t, out.Complete)
			assert.Contains(t, out.History[0].Summary, `unknown target "`+target+`"`)
		})
	}
}

func TestCoordinator_RedirectsToMissingPrerequisite(t *testing.T) {
	tests := []struct {
		name    string
		target  string
		results map[models.ResultSlot]string
		want    models.StageKind
	}{
		{"technical without literature", "technical_analyzer", nil, models.StageLiterature},
		{"synthesis without anything", "synthesis", nil, models.StageLiterature},
		{"synthesis without critical", "synthesis",
			map[models.ResultSlot]string{models.SlotLiterature: "l", models.SlotTechnical: "t"}, models.StageCritical},
		{"critical with inputs", "critical_reviewer",
			map[models.ResultSlot]string{models.SlotLiterature: "l", models.SlotTechnical: "t"}, models.StageCritical},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newScriptedGenerator().reply(models.StageSupervisor, route(tt.target))
			c := NewCoordinator(testDeps(gen), DefaultPolicy())

			in := models.NewSharedState("abstract")
			for k, v := range tt.results {
				in.Results[k] = v
			}
			out := c.Run(context.Background(), in)
			assert.Equal(t, tt.want, out.NextStage)
		})
	}
}

func TestCoordinator_HeuristicDecision(t *testing.T) {
	gen := newScriptedGenerator().reply(models.StageSupervisor, "I think the final synthesis should run now")
	c := NewCoordinator(testDeps(gen), DefaultPolicy())

	in := models.NewSharedState("abstract")
	in.Results[models.SlotLiterature] = "l"
	in.Results[models.SlotTechnical] = "t"
	in.Results[models.SlotCritical] = "c"

	out := c.Run(context.Background(), in)
	assert.Equal(t, models.StageSynthesis, out.NextStage)
}

func TestCoordinator_FallbackRouting(t *testing.T) {
	tests := []struct {
		name     string
		results  map[models.ResultSlot]string
		want     models.StageKind
		complete bool
	}{
		{"nothing done", nil, models.StageLiterature, false},
		{"literature done", map[models.ResultSlot]string{models.SlotLiterature: "l"}, models.StageTechnical, false},
		{"all done", map[models.ResultSlot]string{
			models.SlotLiterature: "l", models.SlotTechnical: "t", models.SlotCritical: "c", models.SlotFinal: "f",
		}, models.StageFinish, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			gen := newScriptedGenerator().fail(models.StageSupervisor, errors.New("model offline"))
			c := NewCoordinator(testDeps(gen), DefaultPolicy())

			in := models.NewSharedState("abstract")
			in.Iteration = 2
			for k, v := range tt.results {
				in.Results[k] = v
			}

			out := c.Run(context.Background(), in)
			assert.Equal(t, tt.want, out.NextStage)
			assert.Equal(t, tt.complete, out.Complete)
			assert.Equal(t, 3, out.Iteration)
			require.Len(t, out.History, 1)
			assert.Equal(t, ActionFallbackRoute, out.History[0].Action)
		})
	}
}

func TestCoordinator_ForcedCompletion(t *testing.T) {
	gen := newScriptedGenerator().reply(models.StageSupervisor, route("literature_reviewer"))
	c := NewCoordinator(testDeps(gen), Policy{MaxIterations: 3})

	in := models.NewSharedState("abstract")
	in.Iteration = 3
	in.RerunRequests = []models.StageKind{models.StageLiterature}

	out := c.Run(context.Background(), in)
	assert.Equal(t, models.StageFinish, out.NextStage)
	assert.True(t, out.Complete)
	assert.Equal(t, 4, out.Iteration)
	assert.Equal(t, ActionForceComplete, out.History[len(out.History)-1].Action)
	assert.Zero(t, gen.callCount(models.StageSupervisor))
}

func TestCoordinator_ForcedCompletionAdvancesPastCap(t *testing.T) {
	// A run resumed under a lower cap is already beyond it.
	c := NewCoordinator(testDeps(newScriptedGenerator()), Policy{MaxIterations: 3})

	in := models.NewSharedState("abstract")
	in.Iteration = 7

	out := c.Run(context.Background(), in)
	assert.True(t, out.Complete)
	assert.Equal(t, models.StageFinish, out.NextStage)
	assert.Equal(t, 8, out.Iteration)
}

func TestCoordinator_RerunTakesPrecedence(t *testing.T) {
	gen := newScriptedGenerator().reply(models.StageSupervisor, route("synthesis"))
	c := NewCoordinator(testDeps(gen), DefaultPolicy())

	in := models.NewSharedState("abstract")
	in.Results[models.SlotLiterature] = "l"
	in.Results[models.SlotTechnical] = "t"
	in.Results[models.SlotCritical] = "c"
	in.Iteration = 4
	in.RerunRequests = []models.StageKind{models.StageLiterature, models.StageTechnical}

	out := c.Run(context.Background(), in)
	assert.Equal(t, models.StageLiterature, out.NextStage)
	assert.Equal(t, 5, out.Iteration)
	assert.Equal(t, 1, out.RerunCounts[models.StageLiterature])
	assert.Equal(t, []models.StageKind{models.StageTechnical}, out.RerunRequests)
	assert.Equal(t, ActionRerun, out.History[len(out.History)-1].Action)
	assert.Zero(t, gen.callCount(models.StageSupervisor))

	out = c.Run(context.Background(), out)
	assert.Equal(t, models.StageTechnical, out.NextStage)
	assert.Equal(t, 1, out.RerunCounts[models.StageTechnical])
	assert.Empty(t, out.RerunRequests)
	assert.False(t, out.HasRerunRequests())

	// Input is untouched.
	assert.Len(t, in.RerunRequests, 2)
	assert.Empty(t, in.RerunCounts)
}

func TestCoordinator_RerunLimit(t *testing.T) {
	gen := newScriptedGenerator().reply(models.StageSupervisor, route("synthesis"))
	c := NewCoordinator(testDeps(gen), Policy{MaxIterations: 10, MaxReruns: 2})

	in := models.NewSharedState("abstract")
	in.Results[models.SlotLiterature] = "l"
	in.Results[models.SlotTechnical] = "t"
	in.Results[models.SlotCritical] = "c"
	in.RerunRequests = []models.StageKind{models.StageLiterature}
	in.RerunCounts[models.StageLiterature] = 2

	out := c.Run(context.Background(), in)
	assert.Equal(t, models.StageSynthesis, out.NextStage)
	assert.Equal(t, 2, out.RerunCounts[models.StageLiterature])
	assert.Empty(t, out.RerunRequests)
	assert.Equal(t, 1, gen.callCount(models.StageSupervisor))

	require.Len(t, out.History, 2)
	assert.Equal(t, ActionRerunDiscarded, out.History[0].Action)
	assert.Equal(t, ActionRoute, out.History[1].Action)
}

func TestCoordinator_UnlimitedReruns(t *testing.T) {
	c := NewCoordinator(testDeps(newScriptedGenerator()), Policy{MaxIterations: 100, MaxReruns: 0})

	in := models.NewSharedState("abstract")
	in.Results[models.SlotLiterature] = "l"
	in.RerunRequests = []models.StageKind{models.StageLiterature}
	in.RerunCounts[models.StageLiterature] = 50

	out := c.Run(context.Background(), in)
	assert.Equal(t, models.StageLiterature, out.NextStage)
	assert.Equal(t, 51, out.RerunCounts[models.StageLiterature])
}

func TestNewStages(t *testing.T) {
	stages, err := NewStages(testDeps(newScriptedGenerator()), DefaultPolicy())
	require.NoError(t, err)
	require.Len(t, stages, 5)
	assert.Equal(t, models.StageSupervisor, stages[0].Kind())
	for i, kind := range models.CanonicalOrder {
		assert.Equal(t, kind, stages[i+1].Kind())
	}

	_, err = NewStages(Deps{}, DefaultPolicy())
	assert.Error(t, err)
}
