package state

import (
	"sync"

	"github.com/ShayCichocki/referee/pkg/models"
)

// Recorder appends each state produced by a run to its revision chain.
type Recorder struct {
	db    *DB
	runID string

	mu  sync.Mutex
	seq int
}

// NewRecorder returns a Recorder for runID that continues after any
// revisions already stored for it.
func NewRecorder(db *DB, runID string) (*Recorder, error) {
	seq, err := db.NextSeq(runID)
	if err != nil {
		return nil, err
	}
	return &Recorder{db: db, runID: runID, seq: seq}, nil
}

// RunID returns the run this recorder writes to.
func (r *Recorder) RunID() string {
	return r.runID
}

// Record stores s as the next revision, attributed to stage.
func (r *Recorder) Record(stage models.StageKind, s models.SharedState) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rev := &Revision{
		RunID: r.runID,
		Seq:   r.seq,
		Stage: stage,
		State: s,
	}
	if err := r.db.AppendRevision(rev); err != nil {
		return err
	}
	r.seq++
	return nil
}
