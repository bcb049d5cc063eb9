package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/ShayCichocki/referee/internal/state"
	"github.com/ShayCichocki/referee/pkg/models"
)

func TestFormatReplay(t *testing.T) {
	var buf bytes.Buffer
	formatReplay(&buf, nil, false)
	if !strings.Contains(buf.String(), "No revisions recorded.") {
		t.Errorf("unexpected empty output %q", buf.String())
	}

	s0 := models.NewSharedState("An abstract.")
	s1 := s0.WithHistory("Supervisor", "route", "first decision")
	s1.Iteration = 1
	s1.NextStage = models.StageLiterature
	s2 := s1.WithHistory("Literature Reviewer", "literature_analysis", "context found")
	s2.Results = map[models.ResultSlot]string{models.SlotLiterature: "ctx"}

	revs := []state.Revision{
		{Seq: 0, Stage: "", Iteration: 0, NextStage: models.StageSupervisor, State: s0},
		{Seq: 1, Stage: models.StageSupervisor, Iteration: 1, NextStage: models.StageLiterature, State: s1},
		{Seq: 2, Stage: models.StageLiterature, Iteration: 1, NextStage: models.StageLiterature, State: s2},
	}

	buf.Reset()
	formatReplay(&buf, revs, false)
	out := buf.String()

	for _, want := range []string{
		"#0 initial state (iteration 0, next: supervisor)",
		"#1 Supervisor (iteration 1, next: literature_reviewer)",
		"#2 Literature Reviewer",
		"[Literature Reviewer] literature_analysis: context found",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("replay missing %q:\n%s", want, out)
		}
	}
	if n := strings.Count(out, "first decision"); n != 1 {
		t.Errorf("history entries should print once, got %d:\n%s", n, out)
	}
	if strings.Contains(out, "Next Stage:") {
		t.Errorf("summaries only belong to --full:\n%s", out)
	}

	buf.Reset()
	formatReplay(&buf, revs, true)
	if !strings.Contains(buf.String(), "Next Stage:") {
		t.Errorf("--full should print state summaries:\n%s", buf.String())
	}
}
