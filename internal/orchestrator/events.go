package orchestrator

import (
	"time"

	"github.com/ShayCichocki/referee/pkg/models"
)

// EventType represents the type of workflow event.
type EventType string

const (
	// EventStageStarted indicates a stage is about to run.
	EventStageStarted EventType = "stage_started"
	// EventStageCompleted indicates a stage returned a changed state.
	EventStageCompleted EventType = "stage_completed"
	// EventStageNoop indicates a stage returned the state unchanged.
	EventStageNoop EventType = "stage_noop"
	// EventRouted indicates the supervisor chose the next stage.
	EventRouted EventType = "routed"
	// EventWorkflowCompleted indicates the dispatch loop has stopped.
	EventWorkflowCompleted EventType = "workflow_completed"
)

// WorkflowEvent represents an event emitted by the engine.
// These events are used to update the TUI and the CLI progress output.
type WorkflowEvent struct {
	// Type is the kind of event.
	Type EventType
	// Stage is the stage the event is about.
	Stage models.StageKind
	// Next is the routing target (routed and workflow_completed events).
	Next models.StageKind
	// Iteration is the supervisor pass count after the stage ran.
	Iteration int
	// Complete mirrors the terminal flag after the stage ran.
	Complete bool
	// Message is the summary of the history entry the stage appended, if any.
	Message string
	// Output is the size in characters of the result the stage wrote, if any.
	Output int
	// Duration is how long the stage took (completed/noop events).
	Duration time.Duration
	// Timestamp is when the event occurred.
	Timestamp time.Time
}
