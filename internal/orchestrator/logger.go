package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/ShayCichocki/referee/pkg/models"
)

// DebugLogger appends workflow traces to a file. Loggers derived with ForRun
// share the file and tag every line with the run ID. A nil logger, or one
// without a file, discards everything.
type DebugLogger struct {
	sink  *logSink
	runID string
}

type logSink struct {
	mu     sync.Mutex
	file   *os.File
	closed bool
}

// NewDebugLogger opens logPath for appending, creating parent directories.
// An empty path yields a no-op logger.
func NewDebugLogger(logPath string) (*DebugLogger, error) {
	if logPath == "" {
		return &DebugLogger{}, nil
	}

	if err := os.MkdirAll(filepath.Dir(logPath), 0755); err != nil {
		return nil, fmt.Errorf("create log directory: %w", err)
	}

	f, err := os.OpenFile(logPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open log file: %w", err)
	}

	l := &DebugLogger{sink: &logSink{file: f}}
	l.sink.write(fmt.Sprintf("=== referee debug log opened %s (pid %d) ===", time.Now().Format(time.RFC3339), os.Getpid()))
	return l, nil
}

// DefaultLogPath returns the debug log location inside a project.
func DefaultLogPath(projectRoot string) string {
	return filepath.Join(projectRoot, ".referee", "logs", "workflow-debug.log")
}

// NewDebugLoggerForProject opens the log under the project's .referee/logs.
// Returns a no-op logger if the file cannot be opened.
func NewDebugLoggerForProject(projectRoot string) *DebugLogger {
	logger, err := NewDebugLogger(DefaultLogPath(projectRoot))
	if err != nil {
		return &DebugLogger{}
	}
	return logger
}

// NopLogger returns a logger that discards everything.
func NopLogger() *DebugLogger {
	return &DebugLogger{}
}

// ForRun returns a logger writing to the same file with lines tagged by runID,
// and marks the start of the run in the log.
func (l *DebugLogger) ForRun(runID string) *DebugLogger {
	if l == nil {
		return nil
	}
	run := &DebugLogger{sink: l.sink, runID: runID}
	if l.sink != nil {
		l.sink.write(fmt.Sprintf("--- run %s ---", runID))
	}
	return run
}

// RunID returns the run this logger is tagged with, or "".
func (l *DebugLogger) RunID() string {
	if l == nil {
		return ""
	}
	return l.runID
}

// Log writes a timestamped line.
func (l *DebugLogger) Log(format string, args ...interface{}) {
	if l == nil || l.sink == nil {
		return
	}
	msg := fmt.Sprintf(format, args...)
	if l.runID != "" {
		msg = fmt.Sprintf("[run %s] %s", shortRunID(l.runID), msg)
	}
	l.sink.write(fmt.Sprintf("[%s] %s", time.Now().Format("15:04:05.000"), msg))
}

// Stage writes a line about one stage dispatch at the given supervisor pass.
func (l *DebugLogger) Stage(kind models.StageKind, iteration int, format string, args ...interface{}) {
	l.Log("[iter %d %s] %s", iteration, kind, fmt.Sprintf(format, args...))
}

// Event writes a one-line trace of a workflow event.
func (l *DebugLogger) Event(ev WorkflowEvent) {
	switch ev.Type {
	case EventRouted:
		l.Stage(ev.Stage, ev.Iteration, "routed to %s", ev.Next)
	case EventWorkflowCompleted:
		l.Log("workflow stopped at %s: iteration=%d complete=%v (%v)", ev.Next, ev.Iteration, ev.Complete, ev.Duration)
	case EventStageNoop:
		l.Stage(ev.Stage, ev.Iteration, "no change (%v)", ev.Duration)
	case EventStageCompleted:
		l.Stage(ev.Stage, ev.Iteration, "%s (%d chars, %v)", ev.Message, ev.Output, ev.Duration)
	}
}

// Close closes the log file. Loggers sharing it stop writing.
func (l *DebugLogger) Close() error {
	if l == nil || l.sink == nil {
		return nil
	}
	return l.sink.close()
}

func (s *logSink) write(line string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return
	}
	fmt.Fprintln(s.file, line)
	s.file.Sync()
}

func (s *logSink) close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.file.Close()
}

func shortRunID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
