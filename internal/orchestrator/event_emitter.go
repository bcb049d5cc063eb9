package orchestrator

import (
	"log"
	"sync"
	"time"
)

// How long Emit waits for a full channel to drain, by event type.
// Stage starts are superseded by the matching completion and are dropped at
// once; the final workflow event gets the longest wait.
var emitWait = map[EventType]time.Duration{
	EventStageStarted:      0,
	EventStageCompleted:    100 * time.Millisecond,
	EventStageNoop:         100 * time.Millisecond,
	EventRouted:            100 * time.Millisecond,
	EventWorkflowCompleted: time.Second,
}

// EventEmitter delivers workflow events to one subscriber over a buffered
// channel. Emit never blocks the engine for longer than the event's wait.
type EventEmitter struct {
	events    chan WorkflowEvent
	closeOnce sync.Once

	mu      sync.Mutex
	dropped map[EventType]uint64
	total   uint64
}

// NewEventEmitter creates an emitter with the given buffer size.
func NewEventEmitter(bufferSize int) *EventEmitter {
	return &EventEmitter{
		events:  make(chan WorkflowEvent, bufferSize),
		dropped: make(map[EventType]uint64),
	}
}

// Emit timestamps event and queues it, dropping it if the subscriber does
// not make room in time.
func (e *EventEmitter) Emit(event WorkflowEvent) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	select {
	case e.events <- event:
		return
	default:
	}

	if wait := emitWait[event.Type]; wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case e.events <- event:
			return
		case <-timer.C:
		}
	}
	e.drop(event)
}

func (e *EventEmitter) drop(event WorkflowEvent) {
	e.mu.Lock()
	e.dropped[event.Type]++
	e.total++
	total := e.total
	e.mu.Unlock()

	if event.Type == EventWorkflowCompleted || total%10 == 1 {
		log.Printf("[orchestrator] WARNING: event channel full, dropped %s for %s at iteration %d (total dropped: %d)",
			event.Type, event.Stage, event.Iteration, total)
	}
}

// DroppedCount returns how many events have been dropped in total.
func (e *EventEmitter) DroppedCount() uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.total
}

// Dropped returns how many events of type t have been dropped.
func (e *EventEmitter) Dropped(t EventType) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.dropped[t]
}

// Events returns the channel subscribers read from. It is closed by Close.
func (e *EventEmitter) Events() <-chan WorkflowEvent {
	return e.events
}

// Close closes the events channel. Safe to call more than once.
func (e *EventEmitter) Close() {
	e.closeOnce.Do(func() { close(e.events) })
}
