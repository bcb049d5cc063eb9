package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/referee/internal/decision"
	"github.com/ShayCichocki/referee/pkg/models"
)

// Policy bounds the coordinator.
type Policy struct {
	// MaxIterations is the number of coordinator passes before completion is forced.
	MaxIterations int
	// MaxReruns caps how often one stage may be rerun on request. Zero means unlimited.
	MaxReruns int
}

// DefaultPolicy returns the standard limits. Reruns are unlimited; the
// iteration cap is the only bound.
func DefaultPolicy() Policy {
	return Policy{
		MaxIterations: 10,
		MaxReruns:     0,
	}
}

// maxRouteReasoning is how much decision reasoning is kept in history.
const maxRouteReasoning = 100

// Coordinator is the supervisor stage. Each pass it picks the next stage,
// advances the iteration counter, and sets the terminal flag when done.
type Coordinator struct {
	deps   Deps
	policy Policy
}

// NewCoordinator creates a coordinator. A non-positive MaxIterations uses the default.
func NewCoordinator(deps Deps, policy Policy) *Coordinator {
	if policy.MaxIterations <= 0 {
		policy.MaxIterations = DefaultPolicy().MaxIterations
	}
	if policy.MaxReruns < 0 {
		policy.MaxReruns = 0
	}
	return &Coordinator{deps: deps, policy: policy}
}

// Kind returns models.StageSupervisor.
func (c *Coordinator) Kind() models.StageKind {
	return models.StageSupervisor
}

// Policy returns the limits in effect.
func (c *Coordinator) Policy() Policy {
	return c.policy
}

// Run performs one routing pass.
func (c *Coordinator) Run(ctx context.Context, state models.SharedState) models.SharedState {
	iteration := state.Iteration + 1
	c.deps.debugLog("[supervisor] pass %d", iteration)

	if iteration > c.policy.MaxIterations {
		return c.forceComplete(state)
	}

	if state.HasRerunRequests() {
		next, target, ok := c.consumeRerun(state)
		if ok {
			return c.route(next, iteration, target, ActionRerun,
				fmt.Sprintf("Rerun requested by critical review: %s", target))
		}
		state = next
	}

	text, err := c.deps.generate(ctx, models.StageSupervisor, state)
	if err != nil {
		c.deps.debugLog("[supervisor] decision failed, using fallback: %v", err)
		return c.fallback(state, iteration, err)
	}

	d := decision.Parse(text)
	c.deps.debugLog("[supervisor] %s decision: next=%s priority=%s", d.Source, d.Next, d.Priority)

	target, note := c.guard(state, d.Next)
	summary := fmt.Sprintf("Routing decision: %s. %s", target, decision.Clip(strings.TrimSpace(d.Reasoning), maxRouteReasoning))
	if note != "" {
		summary += " (" + note + ")"
	}
	return c.route(state, iteration, target, ActionRoute, summary)
}

// guard applies the routing policy to a proposed target and returns the
// target to use plus a note when it was changed.
func (c *Coordinator) guard(state models.SharedState, proposed models.StageKind) (models.StageKind, string) {
	if !proposed.Valid() || proposed == models.StageSupervisor {
		return models.StageFinish, fmt.Sprintf("unknown target %q", string(proposed))
	}
	if !proposed.IsWorker() {
		return proposed, ""
	}
	if missing := state.MissingInputs(proposed); len(missing) > 0 {
		redirect, _ := models.StageForSlot(missing[0])
		return redirect, fmt.Sprintf("%s needs %s first", proposed, missing[0])
	}
	return proposed, ""
}

// route records the decision and moves the state to target.
func (c *Coordinator) route(state models.SharedState, iteration int, target models.StageKind, action, summary string) models.SharedState {
	next := state.WithHistory(models.StageSupervisor.DisplayName(), action, summary)
	next.Iteration = iteration
	next.NextStage = target
	if target == models.StageFinish {
		next.Complete = true
	}
	return next
}

// consumeRerun takes the first admissible rerun request in canonical order.
// Requests for stages that reached MaxReruns are dropped with a history note.
// The returned state carries the updated request set even when nothing was taken.
func (c *Coordinator) consumeRerun(state models.SharedState) (models.SharedState, models.StageKind, bool) {
	next := state.Clone()
	requested := make(map[models.StageKind]bool, len(state.RerunRequests))
	for _, k := range state.RerunRequests {
		requested[k] = true
	}

	var (
		chosen models.StageKind
		found  bool
	)
	for _, kind := range models.CanonicalOrder {
		if !requested[kind] {
			continue
		}
		if !kind.Rerunnable() {
			delete(requested, kind)
			continue
		}
		if c.policy.MaxReruns > 0 && next.RerunCounts[kind] >= c.policy.MaxReruns {
			delete(requested, kind)
			next = next.WithHistory(models.StageSupervisor.DisplayName(), ActionRerunDiscarded,
				fmt.Sprintf("Rerun of %s discarded: limit of %d reached", kind, c.policy.MaxReruns))
			continue
		}
		chosen = kind
		found = true
		delete(requested, kind)
		break
	}

	remaining := make([]models.StageKind, 0, len(requested))
	for _, kind := range models.CanonicalOrder {
		if requested[kind] {
			remaining = append(remaining, kind)
		}
	}
	next.RerunRequests = remaining
	if len(remaining) == 0 {
		next.RerunRequests = nil
	}

	if found {
		next.RerunCounts[chosen]++
	}
	return next, chosen, found
}

// fallback routes to the first stage without output, or finishes.
func (c *Coordinator) fallback(state models.SharedState, iteration int, cause error) models.SharedState {
	target := models.StageFinish
	for _, kind := range models.CanonicalOrder {
		slot, _ := models.SlotFor(kind)
		if !state.IsDone(slot) {
			target = kind
			break
		}
	}
	return c.route(state, iteration, target, ActionFallbackRoute,
		fmt.Sprintf("Fallback routing to %s after decision failure: %s", target, clipSummary(cause.Error())))
}

// forceComplete ends the run once the iteration cap is exceeded.
func (c *Coordinator) forceComplete(state models.SharedState) models.SharedState {
	c.deps.debugLog("[supervisor] iteration cap %d reached, forcing completion", c.policy.MaxIterations)
	next := state.WithHistory(models.StageSupervisor.DisplayName(), ActionForceComplete,
		"Maximum iterations reached. Forcing workflow completion.")
	next.NextStage = models.StageFinish
	next.Complete = true
	next.Iteration = state.Iteration + 1
	return next
}
