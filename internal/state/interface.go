package state

import (
	"io"
	"time"

	"github.com/ShayCichocki/referee/pkg/models"
)

// RunStore handles run-related persistence operations.
type RunStore interface {
	CreateRun(r *Run) error
	GetRun(id string) (*Run, error)
	ResolveRunID(prefix string) (string, error)
	FinishRun(id string, status RunStatus, final models.SharedState) error
	ListRuns(status *RunStatus, limit int) ([]Run, error)
	DeleteRun(id string) error
	PurgeOldRuns(olderThan time.Duration) (int64, error)
}

// RevisionStore handles the per-run chain of state revisions.
type RevisionStore interface {
	AppendRevision(rev *Revision) error
	ListRevisions(runID string) ([]Revision, error)
	LatestState(runID string) (models.SharedState, error)
}

// Migrator handles database schema migrations.
type Migrator interface {
	// Migrate applies all pending schema migrations.
	Migrate() error
}

// Store composes every persistence operation the CLI needs.
type Store interface {
	io.Closer
	Migrator
	RunStore
	RevisionStore
}

// Compile-time verification that DB implements all interfaces.
var (
	_ Store         = (*DB)(nil)
	_ Migrator      = (*DB)(nil)
	_ RunStore      = (*DB)(nil)
	_ RevisionStore = (*DB)(nil)
)
