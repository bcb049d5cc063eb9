package models

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// HistoryEntry is one line of the workflow audit trail.
type HistoryEntry struct {
	// Actor is the display name of the stage that acted.
	Actor string `json:"actor" yaml:"actor"`
	// Action is a short machine-readable tag (route, literature_analysis, ...).
	Action string `json:"action" yaml:"action"`
	// Summary describes what happened.
	Summary string `json:"summary" yaml:"summary"`
	// Timestamp is when the entry was appended.
	Timestamp time.Time `json:"timestamp" yaml:"timestamp"`
}

// SharedState is the blackboard threaded through every stage invocation.
// Stages receive a value and return a replacement; use Clone before
// modifying maps or slices so earlier revisions stay intact.
type SharedState struct {
	// Input is the source text. Never overwritten.
	Input string `json:"input" yaml:"input"`
	// Results holds the latest output for each slot. Absent means pending.
	Results map[ResultSlot]string `json:"results" yaml:"results"`
	// History is the append-only audit trail.
	History []HistoryEntry `json:"history" yaml:"history"`
	// NextStage is the routing target chosen by the last pass.
	NextStage StageKind `json:"next_stage" yaml:"next_stage"`
	// Iteration counts supervisor passes.
	Iteration int `json:"iteration" yaml:"iteration"`
	// Complete is the terminal flag.
	Complete bool `json:"complete" yaml:"complete"`
	// RerunRequests holds stages the critical reviewer flagged, in canonical order.
	RerunRequests []StageKind `json:"rerun_requests,omitempty" yaml:"rerun_requests,omitempty"`
	// RerunCounts tracks how often each stage was re-executed on request.
	RerunCounts map[StageKind]int `json:"rerun_counts,omitempty" yaml:"rerun_counts,omitempty"`
}

// NewSharedState creates the initial state for a run.
func NewSharedState(input string) SharedState {
	return SharedState{
		Input:       input,
		Results:     make(map[ResultSlot]string),
		History:     []HistoryEntry{},
		NextStage:   StageSupervisor,
		RerunCounts: make(map[StageKind]int),
	}
}

// Clone returns a deep copy.
func (s SharedState) Clone() SharedState {
	out := s
	out.Results = make(map[ResultSlot]string, len(s.Results))
	for k, v := range s.Results {
		out.Results[k] = v
	}
	out.History = make([]HistoryEntry, len(s.History))
	copy(out.History, s.History)
	if s.RerunRequests != nil {
		out.RerunRequests = make([]StageKind, len(s.RerunRequests))
		copy(out.RerunRequests, s.RerunRequests)
	}
	out.RerunCounts = make(map[StageKind]int, len(s.RerunCounts))
	for k, v := range s.RerunCounts {
		out.RerunCounts[k] = v
	}
	return out
}

// WithHistory returns a copy with one more history entry.
func (s SharedState) WithHistory(actor, action, summary string) SharedState {
	out := s.Clone()
	out.History = append(out.History, HistoryEntry{
		Actor:     actor,
		Action:    action,
		Summary:   summary,
		Timestamp: time.Now(),
	})
	return out
}

// IsDone reports whether a result slot holds non-empty text.
func (s SharedState) IsDone(slot ResultSlot) bool {
	return strings.TrimSpace(s.Results[slot]) != ""
}

// Result returns the text in a slot, or "" when pending.
func (s SharedState) Result(slot ResultSlot) string {
	return s.Results[slot]
}

// PendingSlots returns worker slots without output, in canonical order.
func (s SharedState) PendingSlots() []ResultSlot {
	var pending []ResultSlot
	for _, kind := range CanonicalOrder {
		slot, _ := SlotFor(kind)
		if !s.IsDone(slot) {
			pending = append(pending, slot)
		}
	}
	return pending
}

// AllWorkDone reports whether every worker slot is filled.
func (s SharedState) AllWorkDone() bool {
	return len(s.PendingSlots()) == 0
}

// MissingInputs returns the prerequisite slots for kind that are still pending.
func (s SharedState) MissingInputs(kind StageKind) []ResultSlot {
	var missing []ResultSlot
	for _, slot := range Requires(kind) {
		if !s.IsDone(slot) {
			missing = append(missing, slot)
		}
	}
	return missing
}

// HasRerunRequests reports whether the critical reviewer asked for reruns.
func (s SharedState) HasRerunRequests() bool {
	return len(s.RerunRequests) > 0
}

// RecentHistory returns at most n of the latest history entries.
func (s SharedState) RecentHistory(n int) []HistoryEntry {
	if n <= 0 || len(s.History) == 0 {
		return nil
	}
	if len(s.History) <= n {
		return s.History
	}
	return s.History[len(s.History)-n:]
}

// Summary renders a short diagnostic view of the state.
func (s SharedState) Summary() string {
	status := func(slot ResultSlot) string {
		if s.IsDone(slot) {
			return "done"
		}
		return "pending"
	}
	next := string(s.NextStage)
	if next == "" {
		next = "None"
	}

	lines := []string{
		fmt.Sprintf("Next Stage: %s", next),
		fmt.Sprintf("Messages: %d stage communications", len(s.History)),
		fmt.Sprintf("Literature Findings: %s", status(SlotLiterature)),
		fmt.Sprintf("Technical Analysis: %s", status(SlotTechnical)),
		fmt.Sprintf("Critical Review: %s", status(SlotCritical)),
		fmt.Sprintf("Final Report: %s", status(SlotFinal)),
		fmt.Sprintf("Complete: %t", s.Complete),
		fmt.Sprintf("Iterations: %d", s.Iteration),
	}
	if len(s.RerunCounts) > 0 {
		kinds := make([]string, 0, len(s.RerunCounts))
		for k := range s.RerunCounts {
			kinds = append(kinds, string(k))
		}
		sort.Strings(kinds)
		parts := make([]string, 0, len(kinds))
		for _, k := range kinds {
			parts = append(parts, fmt.Sprintf("%s=%d", k, s.RerunCounts[StageKind(k)]))
		}
		lines = append(lines, "Reruns: "+strings.Join(parts, ", "))
	}
	return strings.Join(lines, "\n")
}

// Contribution describes how much one stage produced.
type Contribution struct {
	Stage       StageKind
	Chars       int
	Description string
}

// Contributions lists the output size of every finished worker.
func (s SharedState) Contributions() []Contribution {
	descriptions := map[StageKind]string{
		StageLiterature: "Research context and key concepts",
		StageTechnical:  "Methodology evaluation",
		StageCritical:   "Weakness identification and improvements",
		StageSynthesis:  "Integrated final report",
	}
	var out []Contribution
	for _, kind := range CanonicalOrder {
		slot, _ := SlotFor(kind)
		if !s.IsDone(slot) {
			continue
		}
		out = append(out, Contribution{
			Stage:       kind,
			Chars:       len(s.Results[slot]),
			Description: descriptions[kind],
		})
	}
	return out
}
