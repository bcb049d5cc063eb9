package main

import (
	"fmt"
	"os"

	"github.com/ShayCichocki/referee/internal/config"
	"github.com/ShayCichocki/referee/internal/llm"
	"github.com/ShayCichocki/referee/internal/orchestrator"
	"github.com/ShayCichocki/referee/internal/state"
	"github.com/ShayCichocki/referee/pkg/models"
)

// session bundles what one workflow run needs besides the engine:
// the generation backend, the debug log and the optional run store.
type session struct {
	cfg      *config.Config
	backend  *llm.Backend
	logger   *orchestrator.DebugLogger
	db       *state.DB
	recorder *state.Recorder
	initial  models.SharedState
}

// newSession builds the backend and opens the run store when storage is enabled.
func newSession(cfg *config.Config) (*session, error) {
	backend, err := orchestrator.BackendFromConfig(cfg)
	if err != nil {
		return nil, err
	}

	logger, err := openDebugLogger(cfg)
	if err != nil {
		return nil, err
	}

	s := &session{cfg: cfg, backend: backend, logger: logger}
	if cfg.Storage.Enabled {
		db, err := openStore(cfg)
		if err != nil {
			logger.Close()
			return nil, err
		}
		s.db = db
	}
	return s, nil
}

// openDebugLogger honours logging.debug_log, then REFEREE_DEBUG for the project default.
func openDebugLogger(cfg *config.Config) (*orchestrator.DebugLogger, error) {
	if cfg.Logging.DebugLog != "" {
		return orchestrator.NewDebugLogger(cfg.Logging.DebugLog)
	}
	if os.Getenv("REFEREE_DEBUG") != "" {
		return orchestrator.NewDebugLoggerForProject("."), nil
	}
	return orchestrator.NopLogger(), nil
}

// openStore opens and migrates the configured run database.
func openStore(cfg *config.Config) (*state.DB, error) {
	path := cfg.Storage.Path
	if path == "" {
		path = state.ProjectDBPath(".")
	}
	db, err := state.OpenWithDriver(cfg.Storage.Driver, path)
	if err != nil {
		return nil, fmt.Errorf("open run store: %w", err)
	}
	if err := db.Migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate run store: %w", err)
	}
	return db, nil
}

// begin prepares a fresh run over input.
func (s *session) begin(input string) error {
	s.initial = models.NewSharedState(input)
	if s.db == nil {
		return nil
	}

	run := &state.Run{
		Input:    input,
		Provider: s.backend.Provider,
		Model:    s.backend.Model,
	}
	if err := s.db.CreateRun(run); err != nil {
		return err
	}
	rec, err := state.NewRecorder(s.db, run.ID)
	if err != nil {
		return err
	}
	s.recorder = rec
	s.logger = s.logger.ForRun(run.ID)
	s.logger.Log("started (%s/%s, input %d chars)", run.Provider, run.Model, len(input))
	return nil
}

// resume continues a stored run identified by a unique ID prefix.
func (s *session) resume(prefix string) error {
	if s.db == nil {
		return fmt.Errorf("cannot resume: storage is disabled")
	}
	id, err := s.db.ResolveRunID(prefix)
	if err != nil {
		return err
	}
	latest, err := state.NewRecoveryManager(s.db).Resume(id)
	if err != nil {
		return err
	}
	rec, err := state.NewRecorder(s.db, id)
	if err != nil {
		return err
	}
	s.initial = latest
	s.recorder = rec
	s.logger = s.logger.ForRun(id)
	s.logger.Log("resumed at iteration %d", latest.Iteration)
	return nil
}

// runID returns the stored run's ID, or "" when storage is disabled.
func (s *session) runID() string {
	if s.recorder == nil {
		return ""
	}
	return s.recorder.RunID()
}

// options returns the engine options that wire this session in.
func (s *session) options(extra ...orchestrator.Option) []orchestrator.Option {
	opts := []orchestrator.Option{
		orchestrator.WithGenerator(s.backend),
		orchestrator.WithLogger(s.logger),
		orchestrator.WithInitialState(s.initial),
	}
	if s.recorder != nil {
		opts = append(opts, orchestrator.WithRecorder(s.recorder))
	}
	return append(opts, extra...)
}

// finish stores the final state. Incomplete runs are kept as interrupted so they can be resumed.
func (s *session) finish(final models.SharedState) error {
	if s.recorder == nil {
		return nil
	}
	if !final.Complete {
		return s.db.UpdateRunStatus(s.recorder.RunID(), state.RunInterrupted)
	}
	return s.db.FinishRun(s.recorder.RunID(), state.RunCompleted, final)
}

// Close releases the store and the debug log.
func (s *session) Close() {
	if s.db != nil {
		s.db.Close()
	}
	s.logger.Close()
}
