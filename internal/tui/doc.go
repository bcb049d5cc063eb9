// Package tui provides the terminal progress view for `referee run --tui`.
//
// The TUI is read-only. It displays, in real time:
//   - Each stage's status (pending, running, done, no change)
//   - The supervisor's iteration counter and latest routing decision
//   - Progress over the four result slots
//   - Activity log with recent events
//
// Users can only quit with 'q' or Ctrl+C.
//
// Usage:
//
//	program, app := tui.NewWorkflowProgram(emitter.Events())
//	go func() {
//	    final := engine.Run(ctx, state)
//	    emitter.Close()
//	    program.Send(tui.WorkflowDoneMsg{State: final})
//	}()
//	program.Run()
package tui
