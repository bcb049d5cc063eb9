package state

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/referee/pkg/models"
)

var (
	// ErrRunNotFound is returned when no run matches an ID or prefix.
	ErrRunNotFound = errors.New("run not found")
	// ErrAmbiguousRunID is returned when a prefix matches more than one run.
	ErrAmbiguousRunID = errors.New("ambiguous run id")
)

// RunStatus represents the status of a run.
type RunStatus string

const (
	RunRunning     RunStatus = "running"
	RunCompleted   RunStatus = "completed"
	RunInterrupted RunStatus = "interrupted"
	RunFailed      RunStatus = "failed"
)

// Run is one execution of the workflow.
type Run struct {
	ID         string     `json:"id" yaml:"id"`
	Input      string     `json:"input" yaml:"input"`
	Provider   string     `json:"provider" yaml:"provider"`
	Model      string     `json:"model" yaml:"model"`
	Status     RunStatus  `json:"status" yaml:"status"`
	PID        int        `json:"pid,omitempty" yaml:"pid,omitempty"`
	Iterations int        `json:"iterations" yaml:"iterations"`
	Complete   bool       `json:"complete" yaml:"complete"`
	StartedAt  time.Time  `json:"started_at" yaml:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty" yaml:"finished_at,omitempty"`
}

// Revision is one recorded value of the shared state.
type Revision struct {
	RunID      string             `json:"run_id" yaml:"run_id"`
	Seq        int                `json:"seq" yaml:"seq"`
	Stage      models.StageKind   `json:"stage" yaml:"stage"`
	Iteration  int                `json:"iteration" yaml:"iteration"`
	NextStage  models.StageKind   `json:"next_stage" yaml:"next_stage"`
	State      models.SharedState `json:"state" yaml:"state"`
	RecordedAt time.Time          `json:"recorded_at" yaml:"recorded_at"`
}

// CreateRun inserts a run. An empty ID is filled with a new UUID.
func (db *DB) CreateRun(r *Run) error {
	if r.ID == "" {
		r.ID = uuid.NewString()
	}
	if r.StartedAt.IsZero() {
		r.StartedAt = time.Now()
	}
	if r.Status == "" {
		r.Status = RunRunning
	}
	if r.PID == 0 && r.Status == RunRunning {
		r.PID = os.Getpid()
	}

	_, err := db.Exec(`
		INSERT INTO runs (id, input, provider, model, status, pid, iterations, complete, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, r.ID, r.Input, r.Provider, r.Model, string(r.Status), r.PID, r.Iterations, r.Complete, formatTime(r.StartedAt))
	if err != nil {
		return fmt.Errorf("create run: %w", err)
	}
	return nil
}

const runColumns = `id, input, provider, model, status, pid, iterations, complete, started_at, finished_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*Run, error) {
	var (
		r          Run
		startedAt  string
		finishedAt sql.NullString
	)
	if err := row.Scan(&r.ID, &r.Input, &r.Provider, &r.Model, &r.Status, &r.PID, &r.Iterations, &r.Complete, &startedAt, &finishedAt); err != nil {
		return nil, err
	}
	r.StartedAt, _ = parseTime(startedAt)
	r.FinishedAt = parseNullableTime(finishedAt)
	return &r, nil
}

// GetRun retrieves a run by its full ID.
func (db *DB) GetRun(id string) (*Run, error) {
	row := db.QueryRow(`SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// ResolveRunID expands a unique ID prefix to the full run ID.
func (db *DB) ResolveRunID(prefix string) (string, error) {
	if prefix == "" {
		return "", fmt.Errorf("%w: empty id", ErrRunNotFound)
	}
	rows, err := db.Query(`SELECT id FROM runs WHERE id LIKE ? || '%' LIMIT 2`, prefix)
	if err != nil {
		return "", fmt.Errorf("resolve run id: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return "", fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return "", fmt.Errorf("resolve run id: %w", err)
	}

	switch len(ids) {
	case 0:
		return "", fmt.Errorf("%w: %s", ErrRunNotFound, prefix)
	case 1:
		return ids[0], nil
	default:
		return "", fmt.Errorf("%w: %s", ErrAmbiguousRunID, prefix)
	}
}

// FinishRun records the final state and status of a run.
func (db *DB) FinishRun(id string, status RunStatus, final models.SharedState) error {
	data, err := json.Marshal(final)
	if err != nil {
		return fmt.Errorf("encode final state: %w", err)
	}

	result, err := db.Exec(`
		UPDATE runs SET status = ?, pid = 0, iterations = ?, complete = ?, final_state = ?, finished_at = ?
		WHERE id = ?
	`, string(status), final.Iteration, final.Complete, string(data), formatTime(time.Now()), id)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// UpdateRunStatus changes only the status of a run.
func (db *DB) UpdateRunStatus(id string, status RunStatus) error {
	_, err := db.Exec(`UPDATE runs SET status = ? WHERE id = ?`, string(status), id)
	if err != nil {
		return fmt.Errorf("update run status: %w", err)
	}
	return nil
}

// FinalState returns the stored final state of a finished run.
func (db *DB) FinalState(id string) (models.SharedState, error) {
	var data sql.NullString
	err := db.QueryRow(`SELECT final_state FROM runs WHERE id = ?`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SharedState{}, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return models.SharedState{}, fmt.Errorf("get final state: %w", err)
	}
	if !data.Valid {
		return db.LatestState(id)
	}

	var s models.SharedState
	if err := json.Unmarshal([]byte(data.String), &s); err != nil {
		return models.SharedState{}, fmt.Errorf("decode final state: %w", err)
	}
	return s, nil
}

// ListRuns lists runs newest first, optionally filtered by status.
// A non-positive limit returns every run.
func (db *DB) ListRuns(status *RunStatus, limit int) ([]Run, error) {
	query := `SELECT ` + runColumns + ` FROM runs`
	var args []any
	if status != nil {
		query += ` WHERE status = ?`
		args = append(args, string(*status))
	}
	query += ` ORDER BY started_at DESC`
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, *r)
	}
	return runs, rows.Err()
}

// DeleteRun deletes a run and its revisions.
func (db *DB) DeleteRun(id string) error {
	if _, err := db.Exec("DELETE FROM runs WHERE id = ?", id); err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	return nil
}

// AppendRevision stores one state revision. Seq must be unique within the run.
func (db *DB) AppendRevision(rev *Revision) error {
	data, err := json.Marshal(rev.State)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	if rev.RecordedAt.IsZero() {
		rev.RecordedAt = time.Now()
	}

	_, err = db.Exec(`
		INSERT INTO revisions (run_id, seq, stage, iteration, next_stage, state, recorded_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, rev.RunID, rev.Seq, string(rev.Stage), rev.State.Iteration, string(rev.State.NextStage), string(data), formatTime(rev.RecordedAt))
	if err != nil {
		return fmt.Errorf("append revision %d: %w", rev.Seq, err)
	}
	rev.Iteration = rev.State.Iteration
	rev.NextStage = rev.State.NextStage
	return nil
}

// ListRevisions returns the revision chain of a run in order.
func (db *DB) ListRevisions(runID string) ([]Revision, error) {
	rows, err := db.Query(`
		SELECT run_id, seq, stage, iteration, next_stage, state, recorded_at
		FROM revisions WHERE run_id = ? ORDER BY seq
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("list revisions: %w", err)
	}
	defer rows.Close()

	var revs []Revision
	for rows.Next() {
		var (
			rev        Revision
			data       string
			recordedAt string
		)
		if err := rows.Scan(&rev.RunID, &rev.Seq, &rev.Stage, &rev.Iteration, &rev.NextStage, &data, &recordedAt); err != nil {
			return nil, fmt.Errorf("scan revision: %w", err)
		}
		if err := json.Unmarshal([]byte(data), &rev.State); err != nil {
			return nil, fmt.Errorf("decode revision %d: %w", rev.Seq, err)
		}
		rev.RecordedAt, _ = parseTime(recordedAt)
		revs = append(revs, rev)
	}
	return revs, rows.Err()
}

// LatestState returns the most recent recorded state of a run.
func (db *DB) LatestState(runID string) (models.SharedState, error) {
	var data string
	err := db.QueryRow(`
		SELECT state FROM revisions WHERE run_id = ? ORDER BY seq DESC LIMIT 1
	`, runID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return models.SharedState{}, fmt.Errorf("%w: no revisions for %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return models.SharedState{}, fmt.Errorf("get latest state: %w", err)
	}

	var s models.SharedState
	if err := json.Unmarshal([]byte(data), &s); err != nil {
		return models.SharedState{}, fmt.Errorf("decode latest state: %w", err)
	}
	return s, nil
}

// NextSeq returns the sequence number the next revision of a run should use.
func (db *DB) NextSeq(runID string) (int, error) {
	var seq int
	err := db.QueryRow(`SELECT COALESCE(MAX(seq), -1) + 1 FROM revisions WHERE run_id = ?`, runID).Scan(&seq)
	if err != nil {
		return 0, fmt.Errorf("next revision seq: %w", err)
	}
	return seq, nil
}
