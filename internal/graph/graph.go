// Package graph provides the stage graph the orchestrator dispatches over.
package graph

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/ShayCichocki/referee/pkg/models"
)

var (
	// ErrMissingNode indicates a stage the workflow needs has no registered node.
	ErrMissingNode = errors.New("missing stage node")
	// ErrKindMismatch indicates a node was registered under a kind it does not report.
	ErrKindMismatch = errors.New("stage registered under wrong kind")
)

// Node is a runnable stage.
type Node interface {
	Kind() models.StageKind
	Run(ctx context.Context, state models.SharedState) models.SharedState
}

// StageGraph is the fixed workflow topology: a conditional edge from the
// supervisor to every worker and FINISH, and a static edge from every worker
// back to the supervisor.
type StageGraph struct {
	mu sync.RWMutex
	// nodes maps stage kind to its implementation.
	nodes map[models.StageKind]Node
	// conditional lists the targets the supervisor may route to.
	conditional map[models.StageKind]bool
	// static maps each worker to the stage it always returns to.
	static map[models.StageKind]models.StageKind
	// debugLog is an optional logging function.
	debugLog func(format string, args ...interface{})
}

// New creates the workflow graph with its edges and no nodes.
func New() *StageGraph {
	g := &StageGraph{
		nodes:       make(map[models.StageKind]Node),
		conditional: map[models.StageKind]bool{models.StageFinish: true},
		static:      make(map[models.StageKind]models.StageKind),
		debugLog:    func(format string, args ...interface{}) {}, // no-op by default
	}
	for _, kind := range models.CanonicalOrder {
		g.conditional[kind] = true
		g.static[kind] = models.StageSupervisor
	}
	return g
}

// SetDebugLog sets the debug logging function.
func (g *StageGraph) SetDebugLog(fn func(format string, args ...interface{})) {
	if fn != nil {
		g.debugLog = fn
	}
}

// Register adds node under kind, replacing any previous registration.
func (g *StageGraph) Register(kind models.StageKind, node Node) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.debugLog("[graph.Register] %s", kind)
	g.nodes[kind] = node
}

// Build registers every node under the kind it reports and validates the result.
func (g *StageGraph) Build(nodes []Node) error {
	for _, n := range nodes {
		g.Register(n.Kind(), n)
	}
	return g.Validate()
}

// Validate reports missing nodes and nodes registered under the wrong kind.
func (g *StageGraph) Validate() error {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var problems []error
	required := append([]models.StageKind{models.StageSupervisor}, models.CanonicalOrder...)
	for _, kind := range required {
		if _, ok := g.nodes[kind]; !ok {
			problems = append(problems, fmt.Errorf("%w: %s", ErrMissingNode, kind))
		}
	}

	kinds := make([]string, 0, len(g.nodes))
	for kind := range g.nodes {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	for _, k := range kinds {
		kind := models.StageKind(k)
		node := g.nodes[kind]
		if node == nil {
			problems = append(problems, fmt.Errorf("%w: %s is nil", ErrMissingNode, kind))
			continue
		}
		if node.Kind() != kind {
			problems = append(problems, fmt.Errorf("%w: %s reports %s", ErrKindMismatch, kind, node.Kind()))
		}
		if kind == models.StageFinish || !kind.Valid() {
			problems = append(problems, fmt.Errorf("%w: %s is not a stage", ErrKindMismatch, kind))
		}
	}

	return errors.Join(problems...)
}

// Node returns the node registered for kind.
func (g *StageGraph) Node(kind models.StageKind) (Node, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	n, ok := g.nodes[kind]
	return n, ok
}

// Route returns the stage that follows from after it produced state.
// Workers always return to the supervisor. From the supervisor the state's
// NextStage is followed; a completed state or an unknown target yields FINISH.
func (g *StageGraph) Route(from models.StageKind, state models.SharedState) models.StageKind {
	if back, ok := g.static[from]; ok {
		if state.Complete {
			return models.StageFinish
		}
		return back
	}
	if state.Complete {
		return models.StageFinish
	}
	if !g.conditional[state.NextStage] {
		g.debugLog("[graph.Route] unknown target %q from %s, finishing", state.NextStage, from)
		return models.StageFinish
	}
	return state.NextStage
}

// Targets returns the conditional targets of the supervisor in canonical order.
func (g *StageGraph) Targets() []models.StageKind {
	targets := make([]models.StageKind, 0, len(g.conditional))
	for _, kind := range models.CanonicalOrder {
		if g.conditional[kind] {
			targets = append(targets, kind)
		}
	}
	return append(targets, models.StageFinish)
}

// String renders the edges, one per line.
func (g *StageGraph) String() string {
	var b strings.Builder
	for _, t := range g.Targets() {
		fmt.Fprintf(&b, "%s -?-> %s\n", models.StageSupervisor, t)
	}
	for _, kind := range models.CanonicalOrder {
		fmt.Fprintf(&b, "%s ---> %s\n", kind, g.static[kind])
	}
	return b.String()
}
