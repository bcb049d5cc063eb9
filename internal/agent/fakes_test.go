package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/ShayCichocki/referee/internal/llm"
	"github.com/ShayCichocki/referee/pkg/models"
)

// kindRenderer renders the stage kind as the system prompt so the fake
// generator can tell stages apart.
type kindRenderer struct{}

func (kindRenderer) Render(kind models.StageKind, state models.SharedState) (string, string, error) {
	return string(kind), state.Input, nil
}

// scriptedGenerator answers per stage from a queue; the last answer repeats.
type scriptedGenerator struct {
	mu      sync.Mutex
	replies map[models.StageKind][]string
	errs    map[models.StageKind]error
	calls   map[models.StageKind]int
	opts    map[models.StageKind]llm.Options
}

func newScriptedGenerator() *scriptedGenerator {
	return &scriptedGenerator{
		replies: make(map[models.StageKind][]string),
		errs:    make(map[models.StageKind]error),
		calls:   make(map[models.StageKind]int),
		opts:    make(map[models.StageKind]llm.Options),
	}
}

func (g *scriptedGenerator) reply(kind models.StageKind, replies ...string) *scriptedGenerator {
	g.replies[kind] = append(g.replies[kind], replies...)
	return g
}

func (g *scriptedGenerator) fail(kind models.StageKind, err error) *scriptedGenerator {
	g.errs[kind] = err
	return g
}

func (g *scriptedGenerator) Generate(_ context.Context, system, _ string, opts llm.Options) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	kind := models.StageKind(system)
	g.calls[kind]++
	g.opts[kind] = opts
	if err := g.errs[kind]; err != nil {
		return "", err
	}
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

func (g *scriptedGenerator) callCount(kind models.StageKind) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls[kind]
}

func testDeps(gen llm.TextGenerator) Deps {
	return Deps{Generator: gen, Prompts: kindRenderer{}}
}

func route(next string) string {
	return fmt.Sprintf(`{"reasoning": "go to %s", "next_stage": %q, "priority": "high"}`, next, next)
}
