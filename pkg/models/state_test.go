package models

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSharedState(t *testing.T) {
	s := NewSharedState("abstract")

	assert.Equal(t, "abstract", s.Input)
	assert.Equal(t, StageSupervisor, s.NextStage)
	assert.Equal(t, 0, s.Iteration)
	assert.False(t, s.Complete)
	assert.Empty(t, s.Results)
	assert.Empty(t, s.History)
	assert.False(t, s.HasRerunRequests())
}

func TestSharedState_CloneIsDeep(t *testing.T) {
	s := NewSharedState("x")
	s.Results[SlotLiterature] = "L1"
	s.RerunRequests = []StageKind{StageTechnical}
	s.RerunCounts[StageLiterature] = 1
	s = s.WithHistory("Supervisor", "route", "go")

	c := s.Clone()
	c.Results[SlotLiterature] = "changed"
	c.RerunRequests[0] = StageLiterature
	c.RerunCounts[StageLiterature] = 5
	c.History[0].Summary = "changed"

	assert.Equal(t, "L1", s.Results[SlotLiterature])
	assert.Equal(t, StageTechnical, s.RerunRequests[0])
	assert.Equal(t, 1, s.RerunCounts[StageLiterature])
	assert.Equal(t, "go", s.History[0].Summary)
}

func TestSharedState_WithHistoryDoesNotMutateReceiver(t *testing.T) {
	s := NewSharedState("x")
	next := s.WithHistory("Literature Reviewer", "literature_analysis", "done")

	assert.Len(t, s.History, 0)
	require.Len(t, next.History, 1)
	assert.Equal(t, "literature_analysis", next.History[0].Action)
	assert.False(t, next.History[0].Timestamp.IsZero())
}

func TestSharedState_PendingAndMissing(t *testing.T) {
	s := NewSharedState("x")
	assert.Equal(t, []ResultSlot{SlotLiterature, SlotTechnical, SlotCritical, SlotFinal}, s.PendingSlots())
	assert.Equal(t, []ResultSlot{SlotLiterature}, s.MissingInputs(StageTechnical))
	assert.Empty(t, s.MissingInputs(StageLiterature))

	s.Results[SlotLiterature] = "L"
	s.Results[SlotTechnical] = "   "
	assert.True(t, s.IsDone(SlotLiterature))
	assert.False(t, s.IsDone(SlotTechnical), "whitespace output counts as pending")
	assert.Equal(t, []ResultSlot{SlotTechnical}, s.MissingInputs(StageCritical))

	s.Results[SlotTechnical] = "T"
	s.Results[SlotCritical] = "C"
	s.Results[SlotFinal] = "F"
	assert.True(t, s.AllWorkDone())
}

func TestSharedState_RecentHistory(t *testing.T) {
	s := NewSharedState("x")
	assert.Nil(t, s.RecentHistory(6))

	for i := 0; i < 8; i++ {
		s = s.WithHistory("a", "b", string(rune('a'+i)))
	}
	recent := s.RecentHistory(6)
	require.Len(t, recent, 6)
	assert.Equal(t, "c", recent[0].Summary)
	assert.Equal(t, "h", recent[5].Summary)
}

func TestSharedState_Summary(t *testing.T) {
	s := NewSharedState("x")
	s.Results[SlotLiterature] = "L"
	s.Iteration = 2
	s.RerunCounts[StageTechnical] = 1

	summary := s.Summary()
	assert.Contains(t, summary, "Next Stage: supervisor")
	assert.Contains(t, summary, "Literature Findings: done")
	assert.Contains(t, summary, "Technical Analysis: pending")
	assert.Contains(t, summary, "Iterations: 2")
	assert.Contains(t, summary, "Reruns: technical_analyzer=1")
	assert.Equal(t, 9, len(strings.Split(summary, "\n")))
}

func TestSharedState_Contributions(t *testing.T) {
	s := NewSharedState("x")
	s.Results[SlotLiterature] = "12345"
	s.Results[SlotFinal] = "123"

	got := s.Contributions()
	require.Len(t, got, 2)
	assert.Equal(t, StageLiterature, got[0].Stage)
	assert.Equal(t, 5, got[0].Chars)
	assert.Equal(t, StageSynthesis, got[1].Stage)
}

func TestParseStageKind(t *testing.T) {
	tests := []struct {
		in   string
		want StageKind
	}{
		{"literature_reviewer", StageLiterature},
		{"Literature Review", StageLiterature},
		{" technical-analysis ", StageTechnical},
		{`"critical_reviewer"`, StageCritical},
		{"synthesis", StageSynthesis},
		{"FINISH", StageFinish},
		{"end", StageFinish},
		{"Supervisor", StageSupervisor},
		{"translator", StageKind("translator")},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseStageKind(tt.in))
		})
	}
	assert.False(t, ParseStageKind("translator").Valid())
}

func TestStageKindPredicates(t *testing.T) {
	for _, kind := range CanonicalOrder {
		assert.True(t, kind.IsWorker(), kind)
		slot, ok := SlotFor(kind)
		require.True(t, ok)
		back, ok := StageForSlot(slot)
		require.True(t, ok)
		assert.Equal(t, kind, back)
	}
	assert.False(t, StageSupervisor.IsWorker())
	assert.False(t, StageFinish.IsWorker())
	assert.True(t, StageLiterature.Rerunnable())
	assert.True(t, StageTechnical.Rerunnable())
	assert.False(t, StageSynthesis.Rerunnable())
	assert.Len(t, Requires(StageSynthesis), 3)
}
