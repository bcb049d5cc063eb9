package state

import (
	"errors"
	"fmt"
	"os"
	"syscall"
	"time"

	"github.com/ShayCichocki/referee/pkg/models"
)

// InterruptedRun describes a run that stopped before it finished.
type InterruptedRun struct {
	RunID        string
	Input        string
	StartedAt    time.Time
	LastActivity time.Time
	Revisions    int
	Iteration    int
}

// RecoveryManager handles detection and recovery of interrupted runs.
type RecoveryManager struct {
	db *DB
}

// NewRecoveryManager creates a new RecoveryManager with the given database.
func NewRecoveryManager(db *DB) *RecoveryManager {
	return &RecoveryManager{db: db}
}

// CheckForInterrupted returns runs that stopped without finishing, newest first.
// A run still marked running whose process is gone is marked interrupted.
func (rm *RecoveryManager) CheckForInterrupted() ([]InterruptedRun, error) {
	runs, err := rm.db.ListRuns(nil, 0)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}

	var out []InterruptedRun
	for _, r := range runs {
		switch r.Status {
		case RunInterrupted:
		case RunRunning:
			if isProcessAlive(r.PID) {
				continue
			}
			if err := rm.db.UpdateRunStatus(r.ID, RunInterrupted); err != nil {
				return nil, err
			}
		default:
			continue
		}

		revs, err := rm.db.ListRevisions(r.ID)
		if err != nil {
			return nil, fmt.Errorf("list revisions for %s: %w", r.ID, err)
		}

		ir := InterruptedRun{
			RunID:        r.ID,
			Input:        r.Input,
			StartedAt:    r.StartedAt,
			LastActivity: r.StartedAt,
			Revisions:    len(revs),
		}
		if n := len(revs); n > 0 {
			ir.LastActivity = revs[n-1].RecordedAt
			ir.Iteration = revs[n-1].Iteration
		}
		out = append(out, ir)
	}
	return out, nil
}

// Resume claims an interrupted run for the current process and returns the
// state to continue from. A run with no revisions restarts from its input.
func (rm *RecoveryManager) Resume(runID string) (models.SharedState, error) {
	run, err := rm.db.GetRun(runID)
	if err != nil {
		return models.SharedState{}, err
	}
	if run.Status == RunCompleted {
		return models.SharedState{}, fmt.Errorf("run %s already completed", runID)
	}
	if run.Status == RunRunning && run.PID != os.Getpid() && isProcessAlive(run.PID) {
		return models.SharedState{}, fmt.Errorf("run %s is still running (pid %d)", runID, run.PID)
	}

	s, err := rm.db.LatestState(runID)
	if errors.Is(err, ErrRunNotFound) {
		s = models.NewSharedState(run.Input)
	} else if err != nil {
		return models.SharedState{}, err
	}

	if _, err := rm.db.Exec(`UPDATE runs SET status = ?, pid = ?, finished_at = NULL WHERE id = ?`,
		string(RunRunning), os.Getpid(), runID); err != nil {
		return models.SharedState{}, fmt.Errorf("claim run: %w", err)
	}
	return s, nil
}

// Clean marks an interrupted run as failed, keeping its latest state as final.
func (rm *RecoveryManager) Clean(runID string) error {
	run, err := rm.db.GetRun(runID)
	if err != nil {
		return err
	}

	s, err := rm.db.LatestState(runID)
	if errors.Is(err, ErrRunNotFound) {
		s = models.NewSharedState(run.Input)
	} else if err != nil {
		return err
	}
	return rm.db.FinishRun(runID, RunFailed, s)
}

// isProcessAlive checks if a process with the given PID is still running.
func isProcessAlive(pid int) bool {
	if pid <= 0 {
		return false
	}
	process, err := os.FindProcess(pid)
	if err != nil {
		return false
	}
	// Send signal 0 to check if process exists
	err = process.Signal(syscall.Signal(0))
	return err == nil
}
