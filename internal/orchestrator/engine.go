package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/ShayCichocki/referee/internal/graph"
	"github.com/ShayCichocki/referee/pkg/models"
)

// Engine is the dispatch loop over a validated stage graph.
type Engine struct {
	graph *graph.StageGraph
	opts  *engineOptions
}

// NewEngine creates an engine for g. The graph must validate.
func NewEngine(g *graph.StageGraph, opts ...Option) (*Engine, error) {
	if g == nil {
		return nil, fmt.Errorf("engine: graph is required")
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("engine: %w", err)
	}
	return &Engine{graph: g, opts: applyOptions(opts)}, nil
}

// Run drives state from the supervisor until the routing reaches FINISH or
// the state is complete. If ctx is done the loop stops before the next
// dispatch and the latest state is returned as is.
func (e *Engine) Run(ctx context.Context, state models.SharedState) models.SharedState {
	logger := e.opts.logger
	start := time.Now()

	if state.Results == nil {
		state = state.Clone()
	}
	if len(state.History) == 0 {
		e.record("", state)
	}

	current := models.StageSupervisor
	if state.Complete {
		current = models.StageFinish
	}
	logger.Log("[engine] run started: input=%d chars, iteration=%d", len(state.Input), state.Iteration)

	for current != models.StageFinish {
		if err := ctx.Err(); err != nil {
			logger.Stage(current, state.Iteration, "not dispatched: %v", err)
			break
		}

		node, ok := e.graph.Node(current)
		if !ok {
			logger.Stage(current, state.Iteration, "no node registered, finishing")
			break
		}

		e.emit(WorkflowEvent{Type: EventStageStarted, Stage: current, Iteration: state.Iteration})
		stageStart := time.Now()
		next := node.Run(ctx, state)
		elapsed := time.Since(stageStart)

		ev := WorkflowEvent{
			Type:      EventStageCompleted,
			Stage:     current,
			Iteration: next.Iteration,
			Complete:  next.Complete,
			Duration:  elapsed,
		}
		if len(next.History) == len(state.History) {
			ev.Type = EventStageNoop
		} else {
			last := next.History[len(next.History)-1]
			ev.Message = last.Summary
			if slot, ok := models.SlotFor(current); ok && next.Results[slot] != state.Results[slot] {
				ev.Output = len(next.Results[slot])
			}
		}
		e.emit(ev)
		e.record(current, next)
		if e.opts.stepHook != nil {
			e.opts.stepHook(ctx, current, next)
		}

		target := e.graph.Route(current, next)
		if current == models.StageSupervisor {
			e.emit(WorkflowEvent{
				Type:      EventRouted,
				Stage:     current,
				Next:      target,
				Iteration: next.Iteration,
				Complete:  next.Complete,
			})
		}
		state = next
		current = target
	}

	e.emit(WorkflowEvent{
		Type:      EventWorkflowCompleted,
		Next:      current,
		Iteration: state.Iteration,
		Complete:  state.Complete,
		Duration:  time.Since(start),
	})
	return state
}

// emit traces ev to the debug log and forwards it to the emitter, if any.
func (e *Engine) emit(ev WorkflowEvent) {
	e.opts.logger.Event(ev)
	if e.opts.emitter != nil {
		e.opts.emitter.Emit(ev)
	}
}

func (e *Engine) record(stage models.StageKind, s models.SharedState) {
	if e.opts.recorder == nil {
		return
	}
	if err := e.opts.recorder.Record(stage, s); err != nil {
		e.opts.logger.Stage(stage, s.Iteration, "WARNING: failed to record revision: %v", err)
	}
}
