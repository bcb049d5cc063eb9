package main

import (
	"context"
	"fmt"
	"io"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/referee/internal/orchestrator"
	"github.com/ShayCichocki/referee/internal/tui"
	"github.com/ShayCichocki/referee/pkg/models"
)

// runWithTUI runs the engine behind the live progress view.
// Quitting the view cancels the run; the engine stops before its next stage.
func runWithTUI(ctx context.Context, sess *session) (final models.SharedState, retErr error) {
	// Suppress log output while TUI is active (it corrupts the display)
	originalOutput := log.Writer()
	log.SetOutput(io.Discard)
	defer log.SetOutput(originalOutput)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	emitter := orchestrator.NewEventEmitter(100)
	program, app := tui.NewWorkflowProgram(emitter.Events())
	if program == nil {
		return models.SharedState{}, fmt.Errorf("failed to create TUI program (nil)")
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("PANIC in workflow: %v", r)
				program.Send(tui.WorkflowDoneMsg{Err: err})
			}
		}()
		defer emitter.Close()

		opts := sess.options(orchestrator.WithEmitter(emitter))
		result, runErr := orchestrator.RunWorkflow(gctx, sess.initial.Input, sess.cfg, opts...)
		final = result
		program.Send(tui.WorkflowDoneMsg{State: result, Err: runErr})
		return runErr
	})
	g.Go(func() (err error) {
		defer cancel()
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("PANIC in TUI: %v", r)
			}
		}()
		_, err = program.Run()
		return err
	})

	if err := g.Wait(); err != nil {
		return models.SharedState{}, err
	}
	if _, err := app.Final(); err != nil {
		return models.SharedState{}, err
	}
	return final, nil
}
