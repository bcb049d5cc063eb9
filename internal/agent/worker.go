package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/ShayCichocki/referee/internal/decision"
	"github.com/ShayCichocki/referee/pkg/models"
)

// workerSpec describes how one worker records its output.
type workerSpec struct {
	action  string
	summary string
}

var workerSpecs = map[models.StageKind]workerSpec{
	models.StageLiterature: {
		action:  "literature_analysis",
		summary: "Completed literature review. Identified key concepts and research context.",
	},
	models.StageTechnical: {
		action:  "technical_analysis",
		summary: "Completed technical analysis. Evaluated methodology and soundness.",
	},
	models.StageCritical: {
		action:  "critical_review",
		summary: "Completed critical review.",
	},
	models.StageSynthesis: {
		action:  "synthesis",
		summary: "Final report synthesized from all analyses.",
	},
}

// Worker runs one analysis stage: it checks prerequisites, generates output,
// and writes it into the stage's result slot.
type Worker struct {
	kind models.StageKind
	slot models.ResultSlot
	spec workerSpec
	deps Deps
}

// NewWorker creates the worker for kind.
func NewWorker(kind models.StageKind, deps Deps) (*Worker, error) {
	if !kind.IsWorker() {
		return nil, fmt.Errorf("%q is not a worker stage", kind)
	}
	if err := deps.validate(); err != nil {
		return nil, err
	}
	slot, _ := models.SlotFor(kind)
	return &Worker{
		kind: kind,
		slot: slot,
		spec: workerSpecs[kind],
		deps: deps,
	}, nil
}

// Kind returns the stage kind.
func (w *Worker) Kind() models.StageKind {
	return w.kind
}

// Run executes the stage. Missing prerequisites return state untouched;
// a failed generation returns state plus a generation_failed history entry.
func (w *Worker) Run(ctx context.Context, state models.SharedState) models.SharedState {
	if strings.TrimSpace(state.Input) == "" {
		w.deps.debugLog("[%s] no input, skipping", w.kind)
		return state
	}
	if missing := state.MissingInputs(w.kind); len(missing) > 0 {
		w.deps.debugLog("[%s] missing inputs %v, skipping", w.kind, missing)
		return state
	}

	out, err := w.deps.generate(ctx, w.kind, state)
	if err != nil {
		w.deps.debugLog("[%s] generation failed: %v", w.kind, err)
		return state.WithHistory(w.kind.DisplayName(), ActionGenerationFailed, clipSummary(err.Error()))
	}
	w.deps.debugLog("[%s] produced %d chars", w.kind, len(out))

	summary := w.spec.summary
	next := state.Clone()
	next.Results[w.slot] = out

	switch w.kind {
	case models.StageCritical:
		summary = w.applyEvaluation(&next, out)
	case models.StageSynthesis:
		next.Complete = true
	}

	next = next.WithHistory(w.kind.DisplayName(), w.spec.action, summary)
	if w.kind == models.StageSynthesis {
		next.NextStage = models.StageFinish
	} else {
		next.NextStage = models.StageSupervisor
	}
	return next
}

// applyEvaluation stores the reviewer's verdict and rerun requests in state
// and returns the history summary describing them.
func (w *Worker) applyEvaluation(state *models.SharedState, out string) string {
	ev, ok := decision.ParseEvaluation(out)
	if !ok {
		delete(state.Results, models.SlotEvaluation)
		state.RerunRequests = nil
		w.deps.debugLog("[%s] evaluation not parseable, no reruns requested", w.kind)
		return w.spec.summary + " Evaluation not parseable; no reruns requested."
	}

	state.Results[models.SlotEvaluation] = ev.Raw
	accepted, rejected := ev.RerunRequests()
	state.RerunRequests = accepted

	var b strings.Builder
	b.WriteString(w.spec.summary)
	fmt.Fprintf(&b, " Literature: %s, technical: %s.", gradeOrUnknown(ev.LiteratureQuality), gradeOrUnknown(ev.TechnicalQuality))
	if len(accepted) > 0 {
		names := make([]string, len(accepted))
		for i, k := range accepted {
			names[i] = string(k)
		}
		fmt.Fprintf(&b, " Reruns requested: %s.", strings.Join(names, ", "))
	}
	if len(rejected) > 0 {
		fmt.Fprintf(&b, " Ignored rerun requests: %s.", strings.Join(rejected, ", "))
	}
	return b.String()
}

func gradeOrUnknown(q decision.Quality) string {
	if q.Valid() {
		return string(q)
	}
	return "ungraded"
}
