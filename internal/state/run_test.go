package state

import (
	"errors"
	"os"
	"testing"
	"time"

	"github.com/ShayCichocki/referee/pkg/models"
)

func TestCreateAndGetRun(t *testing.T) {
	db := setupTestDB(t)

	r := &Run{Input: "paper text", Provider: "anthropic", Model: "m"}
	if err := db.CreateRun(r); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if r.ID == "" {
		t.Fatal("expected generated ID")
	}
	if r.Status != RunRunning {
		t.Errorf("status = %q, want running", r.Status)
	}
	if r.PID != os.Getpid() {
		t.Errorf("pid = %d, want %d", r.PID, os.Getpid())
	}

	got, err := db.GetRun(r.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Input != "paper text" || got.Provider != "anthropic" || got.Model != "m" {
		t.Errorf("unexpected run: %+v", got)
	}
	if got.FinishedAt != nil {
		t.Error("expected no finish time")
	}
}

func TestGetRun_NotFound(t *testing.T) {
	db := setupTestDB(t)

	_, err := db.GetRun("missing")
	if !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestResolveRunID(t *testing.T) {
	db := setupTestDB(t)

	for _, id := range []string{"abc123", "abd456"} {
		if err := db.CreateRun(&Run{ID: id, Input: "x"}); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
	}

	tests := []struct {
		prefix  string
		want    string
		wantErr error
	}{
		{"abc", "abc123", nil},
		{"abd456", "abd456", nil},
		{"ab", "", ErrAmbiguousRunID},
		{"zz", "", ErrRunNotFound},
		{"", "", ErrRunNotFound},
	}

	for _, tt := range tests {
		got, err := db.ResolveRunID(tt.prefix)
		if tt.wantErr != nil {
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("ResolveRunID(%q) error = %v, want %v", tt.prefix, err, tt.wantErr)
			}
			continue
		}
		if err != nil || got != tt.want {
			t.Errorf("ResolveRunID(%q) = %q, %v; want %q", tt.prefix, got, err, tt.want)
		}
	}
}

func TestFinishRunAndFinalState(t *testing.T) {
	db := setupTestDB(t)

	r := &Run{Input: "text"}
	if err := db.CreateRun(r); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	final := models.NewSharedState("text")
	final.Results[models.SlotFinal] = "report"
	final.Iteration = 4
	final.Complete = true
	final.NextStage = models.StageFinish

	if err := db.FinishRun(r.ID, RunCompleted, final); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	got, err := db.GetRun(r.ID)
	if err != nil {
		t.Fatalf("GetRun failed: %v", err)
	}
	if got.Status != RunCompleted || !got.Complete || got.Iterations != 4 {
		t.Errorf("unexpected run after finish: %+v", got)
	}
	if got.FinishedAt == nil {
		t.Error("expected finish time")
	}
	if got.PID != 0 {
		t.Errorf("expected pid cleared, got %d", got.PID)
	}

	s, err := db.FinalState(r.ID)
	if err != nil {
		t.Fatalf("FinalState failed: %v", err)
	}
	if s.Results[models.SlotFinal] != "report" || s.NextStage != models.StageFinish {
		t.Errorf("unexpected final state: %+v", s)
	}

	if err := db.FinishRun("missing", RunCompleted, final); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound, got %v", err)
	}
}

func TestListRuns(t *testing.T) {
	db := setupTestDB(t)

	base := time.Now().Add(-time.Hour)
	for i, id := range []string{"first", "second", "third"} {
		r := &Run{ID: id, Input: "x", StartedAt: base.Add(time.Duration(i) * time.Minute)}
		if err := db.CreateRun(r); err != nil {
			t.Fatalf("CreateRun failed: %v", err)
		}
	}
	if err := db.FinishRun("second", RunCompleted, models.NewSharedState("x")); err != nil {
		t.Fatalf("FinishRun failed: %v", err)
	}

	all, err := db.ListRuns(nil, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(all) != 3 || all[0].ID != "third" || all[2].ID != "first" {
		t.Errorf("expected newest first, got %+v", all)
	}

	limited, err := db.ListRuns(nil, 2)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(limited) != 2 {
		t.Errorf("expected 2 runs, got %d", len(limited))
	}

	status := RunCompleted
	done, err := db.ListRuns(&status, 0)
	if err != nil {
		t.Fatalf("ListRuns failed: %v", err)
	}
	if len(done) != 1 || done[0].ID != "second" {
		t.Errorf("expected only the completed run, got %+v", done)
	}
}

func TestRevisions(t *testing.T) {
	db := setupTestDB(t)

	r := &Run{Input: "text"}
	if err := db.CreateRun(r); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}

	if _, err := db.LatestState(r.ID); !errors.Is(err, ErrRunNotFound) {
		t.Errorf("expected ErrRunNotFound before any revision, got %v", err)
	}

	rec, err := NewRecorder(db, r.ID)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}

	s0 := models.NewSharedState("text")
	s1 := s0.WithHistory("Supervisor", "route", "Routing decision: literature_reviewer.")
	s1.Iteration = 1
	s1.NextStage = models.StageLiterature
	s2 := s1.Clone()
	s2.Results[models.SlotLiterature] = "lit"
	s2.NextStage = models.StageSupervisor

	for _, step := range []struct {
		stage models.StageKind
		state models.SharedState
	}{
		{models.StageSupervisor, s0},
		{models.StageSupervisor, s1},
		{models.StageLiterature, s2},
	} {
		if err := rec.Record(step.stage, step.state); err != nil {
			t.Fatalf("Record failed: %v", err)
		}
	}

	revs, err := db.ListRevisions(r.ID)
	if err != nil {
		t.Fatalf("ListRevisions failed: %v", err)
	}
	if len(revs) != 3 {
		t.Fatalf("expected 3 revisions, got %d", len(revs))
	}
	for i, rev := range revs {
		if rev.Seq != i {
			t.Errorf("revision %d has seq %d", i, rev.Seq)
		}
	}
	if revs[1].Iteration != 1 || revs[1].NextStage != models.StageLiterature {
		t.Errorf("unexpected revision 1: %+v", revs[1])
	}
	if revs[2].Stage != models.StageLiterature || revs[2].State.Results[models.SlotLiterature] != "lit" {
		t.Errorf("unexpected revision 2: %+v", revs[2])
	}
	if len(revs[0].State.Results) != 0 {
		t.Error("earlier revision must not see later results")
	}

	latest, err := db.LatestState(r.ID)
	if err != nil {
		t.Fatalf("LatestState failed: %v", err)
	}
	if latest.Results[models.SlotLiterature] != "lit" {
		t.Errorf("unexpected latest state: %+v", latest)
	}

	// A new recorder continues the chain.
	rec2, err := NewRecorder(db, r.ID)
	if err != nil {
		t.Fatalf("NewRecorder failed: %v", err)
	}
	if err := rec2.Record(models.StageSupervisor, s2); err != nil {
		t.Fatalf("Record failed: %v", err)
	}
	if seq, _ := db.NextSeq(r.ID); seq != 4 {
		t.Errorf("NextSeq = %d, want 4", seq)
	}
}

func TestDeleteRun_CascadesRevisions(t *testing.T) {
	db := setupTestDB(t)

	r := &Run{Input: "text"}
	if err := db.CreateRun(r); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	if err := db.AppendRevision(&Revision{RunID: r.ID, Seq: 0, Stage: models.StageSupervisor, State: models.NewSharedState("text")}); err != nil {
		t.Fatalf("AppendRevision failed: %v", err)
	}

	if err := db.DeleteRun(r.ID); err != nil {
		t.Fatalf("DeleteRun failed: %v", err)
	}

	revs, err := db.ListRevisions(r.ID)
	if err != nil {
		t.Fatalf("ListRevisions failed: %v", err)
	}
	if len(revs) != 0 {
		t.Errorf("expected revisions deleted, got %d", len(revs))
	}
}

func TestAppendRevision_UnknownRun(t *testing.T) {
	db := setupTestDB(t)

	err := db.AppendRevision(&Revision{RunID: "ghost", Seq: 0, Stage: models.StageSupervisor, State: models.NewSharedState("x")})
	if err == nil {
		t.Error("expected foreign key error for unknown run")
	}
}
