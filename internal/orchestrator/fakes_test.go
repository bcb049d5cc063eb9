package orchestrator

import (
	"context"
	"fmt"
	"sync"

	"github.com/ShayCichocki/referee/internal/llm"
	"github.com/ShayCichocki/referee/pkg/models"
)

// kindRenderer puts the stage kind in the system prompt so stageGenerator
// can answer per stage.
type kindRenderer struct{}

func (kindRenderer) Render(kind models.StageKind, state models.SharedState) (string, string, error) {
	return string(kind), state.Input, nil
}

// stageGenerator answers per stage from a queue; the last answer repeats.
type stageGenerator struct {
	mu      sync.Mutex
	replies map[models.StageKind][]string
	calls   map[models.StageKind]int
}

func newStageGenerator() *stageGenerator {
	return &stageGenerator{
		replies: make(map[models.StageKind][]string),
		calls:   make(map[models.StageKind]int),
	}
}

func (g *stageGenerator) reply(kind models.StageKind, replies ...string) *stageGenerator {
	g.replies[kind] = append(g.replies[kind], replies...)
	return g
}

func (g *stageGenerator) Generate(_ context.Context, system, _ string, _ llm.Options) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	kind := models.StageKind(system)
	g.calls[kind]++
	queue := g.replies[kind]
	if len(queue) == 0 {
		return "", fmt.Errorf("no scripted reply for %s", kind)
	}
	out := queue[0]
	if len(queue) > 1 {
		g.replies[kind] = queue[1:]
	}
	return out, nil
}

func (g *stageGenerator) callCount(kind models.StageKind) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[kind]
}

// happyGenerator scripts a run that visits each worker once in order.
func happyGenerator() *stageGenerator {
	return newStageGenerator().
		reply(models.StageSupervisor,
			route(models.StageLiterature),
			route(models.StageTechnical),
			route(models.StageCritical),
			route(models.StageSynthesis)).
		reply(models.StageLiterature, "Related work: transformers, attention.").
		reply(models.StageTechnical, "Methodology is sound; sample size is small.").
		reply(models.StageCritical, evaluation()).
		reply(models.StageSynthesis, "Final report: accept with minor revisions.")
}

func route(next models.StageKind) string {
	return fmt.Sprintf(`{"reasoning": "next is %s", "next_stage": %q, "priority": "high"}`, next, next)
}

func evaluation(rerun ...models.StageKind) string {
	quoted := "["
	for i, k := range rerun {
		if i > 0 {
			quoted += ", "
		}
		quoted += fmt.Sprintf("%q", k)
	}
	quoted += "]"
	return fmt.Sprintf(`{"literature_quality": "GOOD", "literature_assessment": "ok",
"technical_quality": "ACCEPTABLE", "technical_assessment": "ok",
"reasoning": "fine", "needs_rerun": %s}`, quoted)
}

// memoryRecorder keeps revisions in memory.
type memoryRecorder struct {
	mu     sync.Mutex
	stages []models.StageKind
	states []models.SharedState
	err    error
}

func (r *memoryRecorder) Record(stage models.StageKind, s models.SharedState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return r.err
	}
	r.stages = append(r.stages, stage)
	r.states = append(r.states, s)
	return nil
}

// drain collects every event after the emitter is closed.
func drain(e *EventEmitter) []WorkflowEvent {
	e.Close()
	var out []WorkflowEvent
	for ev := range e.Events() {
		out = append(out, ev)
	}
	return out
}

// funcNode is a graph node backed by a function.
type funcNode struct {
	kind models.StageKind
	run  func(models.SharedState) models.SharedState
}

func (n funcNode) Kind() models.StageKind { return n.kind }

func (n funcNode) Run(_ context.Context, s models.SharedState) models.SharedState {
	return n.run(s)
}
