package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/ShayCichocki/referee/internal/config"
	"github.com/ShayCichocki/referee/internal/llm"
	"github.com/ShayCichocki/referee/internal/orchestrator"
	"github.com/ShayCichocki/referee/pkg/models"
)

var (
	runFile    string
	runSample  bool
	runTUI     bool
	runStep    bool
	runCheck   bool
	runResume  string
	runNoStore bool
)

var runCmd = &cobra.Command{
	Use:   "run [abstract text]",
	Short: "Review a research abstract",
	Long: `Run the review workflow over a research abstract.

The abstract is taken from --sample, --file, the arguments, or stdin,
in that order. Progress is printed as the supervisor routes between
stages; --tui shows a live progress view instead.

Examples:
  referee run --sample
  referee run --file abstract.txt --tui
  cat abstract.txt | referee run
  referee run --step "We propose ..."
  referee run --resume 3f2a`,
	RunE: runReview,
}

func init() {
	runCmd.Flags().StringVarP(&runFile, "file", "f", "", "Read the abstract from a file")
	runCmd.Flags().BoolVar(&runSample, "sample", false, "Use the embedded sample abstract")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "Show a live progress view")
	runCmd.Flags().BoolVar(&runStep, "step", false, "Pause for Enter after each stage")
	runCmd.Flags().BoolVar(&runCheck, "check", false, "Check provider connectivity before running")
	runCmd.Flags().StringVar(&runResume, "resume", "", "Resume an interrupted run by ID or unique prefix")
	runCmd.Flags().BoolVar(&runNoStore, "no-store", false, "Do not record the run")
}

func runReview(cmd *cobra.Command, args []string) error {
	if runTUI && runStep {
		return fmt.Errorf("--tui and --step cannot be combined")
	}
	if runResume != "" && (runSample || runFile != "" || len(args) > 0) {
		return fmt.Errorf("--resume continues a stored run and takes no new input")
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if runNoStore {
		cfg.Storage.Enabled = false
	}

	var input string
	if runResume == "" {
		src := inputSource{Sample: runSample, File: runFile, Args: args}
		if !runStep {
			src.Stdin = stdinIfPiped()
		}
		if input, err = readInput(src); err != nil {
			return err
		}
	}

	sess, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runCheck {
		if err := checkBackend(ctx, sess.backend, 30*time.Second); err != nil {
			return err
		}
	}

	if runResume != "" {
		if err := sess.resume(runResume); err != nil {
			return err
		}
		printStatus("↻", fmt.Sprintf("Resuming run %s at iteration %d", sess.runID(), sess.initial.Iteration), color.FgCyan)
	} else {
		if len(input) < minInputLength {
			printStatus("!", fmt.Sprintf("Abstract is very short (%d chars). Results may be limited.", len(input)), color.FgYellow)
		}
		if err := sess.begin(input); err != nil {
			return err
		}
	}

	if !runTUI && cfg.Logging.Verbosity >= 1 {
		printStatus("●", fmt.Sprintf("Reviewing %d-character abstract with %s (%s)",
			len(sess.initial.Input), sess.backend.Provider, sess.backend.Model), color.FgBlue)
		if cfg.Logging.Verbosity >= 2 {
			printSection(color.Output, "Initial state")
			fmt.Fprintln(color.Output, sess.initial.Summary())
		}
	}

	start := time.Now()
	var final models.SharedState
	if runTUI {
		final, err = runWithTUI(ctx, sess)
	} else {
		var extra []orchestrator.Option
		if runStep {
			extra = append(extra, orchestrator.WithStepHook(stepHook(os.Stdin, color.Output)))
		}
		final, err = runPlain(ctx, sess, eventPrinter{w: color.Output, verbosity: cfg.Logging.Verbosity}, extra...)
	}
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	if ferr := sess.finish(final); ferr != nil {
		printStatus("!", fmt.Sprintf("Could not store the final state: %v", ferr), color.FgYellow)
	}
	if !final.Complete {
		msg := "Workflow interrupted"
		if id := sess.runID(); id != "" {
			msg += fmt.Sprintf("; resume with: referee run --resume %s", shortID(id))
		}
		printStatus("!", msg, color.FgYellow)
	}

	printSummary(color.Output, runSummary{
		RunID:    sess.runID(),
		Final:    final,
		Elapsed:  elapsed,
		Tracker:  sess.backend.Tracker,
		ShowCost: showsCost(cfg),
	}, cfg.Logging.Verbosity)
	return nil
}

// runPlain runs the engine while a second goroutine prints its events.
func runPlain(ctx context.Context, sess *session, printer eventPrinter, extra ...orchestrator.Option) (models.SharedState, error) {
	emitter := orchestrator.NewEventEmitter(100)

	var final models.SharedState
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		for ev := range emitter.Events() {
			printer.print(ev)
		}
		return nil
	})
	g.Go(func() error {
		defer emitter.Close()
		opts := sess.options(append(extra, orchestrator.WithEmitter(emitter))...)
		var err error
		final, err = orchestrator.RunWorkflow(gctx, sess.initial.Input, sess.cfg, opts...)
		return err
	})
	if err := g.Wait(); err != nil {
		return models.SharedState{}, err
	}
	return final, nil
}

// stepHook pauses after every stage until a line is read from in.
func stepHook(in io.Reader, out io.Writer) orchestrator.StepHook {
	reader := bufio.NewReader(in)
	return func(ctx context.Context, stage models.StageKind, s models.SharedState) {
		if s.Complete {
			return
		}
		fmt.Fprintf(out, "%s finished (iteration %d). Press Enter to continue...", stage.DisplayName(), s.Iteration)

		read := make(chan struct{})
		go func() {
			reader.ReadString('\n')
			close(read)
		}()
		select {
		case <-ctx.Done():
		case <-read:
		}
	}
}

// checkBackend issues a tiny generation call and reports the outcome.
func checkBackend(ctx context.Context, backend *llm.Backend, timeout time.Duration) error {
	if err := llm.Ping(ctx, backend, timeout); err != nil {
		printStatus("✗", fmt.Sprintf("%s (%s) is not reachable: %v", backend.Provider, backend.Model, err), color.FgRed)
		return fmt.Errorf("connectivity check failed: %w", err)
	}
	printStatus("✓", fmt.Sprintf("%s (%s) is reachable", backend.Provider, backend.Model), color.FgGreen)
	return nil
}

// showsCost reports whether token usage is billed at Anthropic list prices.
func showsCost(cfg *config.Config) bool {
	return cfg.LLM.Provider == llm.ProviderAnthropic || cfg.LLM.Provider == llm.ProviderBedrock
}

// shortID returns the first 8 characters of a run ID.
func shortID(id string) string {
	if len(id) <= 8 {
		return id
	}
	return id[:8]
}
