package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var watchDebounce time.Duration

var watchCmd = &cobra.Command{
	Use:   "watch <file>",
	Short: "Re-run the review whenever an abstract file changes",
	Long: `Review the abstract in <file>, then review it again every time the
file is saved. A change made while a review is running queues exactly
one more review. Stop with Ctrl+C.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 500*time.Millisecond, "Wait this long after the last change before re-running")
}

func runWatch(cmd *cobra.Command, args []string) error {
	path, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("resolving path: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	sess, err := newSession(cfg)
	if err != nil {
		return err
	}
	defer sess.Close()

	// Watch the directory: editors often replace the file instead of writing it.
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer watcher.Close()
	if err := watcher.Add(filepath.Dir(path)); err != nil {
		return fmt.Errorf("watch %s: %w", filepath.Dir(path), err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	triggers := make(chan struct{}, 1)
	triggers <- struct{}{}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return watchFile(gctx, watcher, path, watchDebounce, triggers)
	})
	g.Go(func() error {
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-triggers:
				if err := reviewFile(gctx, sess, path); err != nil {
					printStatus("✗", err.Error(), color.FgRed)
				}
				if gctx.Err() == nil {
					printStatus("…", "Watching "+path+" for changes", color.FgCyan)
				}
			}
		}
	})
	return g.Wait()
}

// watchFile turns file system events for path into debounced triggers.
func watchFile(ctx context.Context, watcher *fsnotify.Watcher, path string, debounce time.Duration, triggers chan<- struct{}) error {
	var (
		timer *time.Timer
		fire  <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if !isChangeTo(event, path) {
				continue
			}
			if timer == nil {
				timer = time.NewTimer(debounce)
			} else {
				timer.Reset(debounce)
			}
			fire = timer.C
		case <-fire:
			fire = nil
			select {
			case triggers <- struct{}{}:
			default:
			}
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			printStatus("!", "watch error: "+err.Error(), color.FgYellow)
		}
	}
}

// isChangeTo reports whether event writes or recreates path.
func isChangeTo(event fsnotify.Event, path string) bool {
	if filepath.Clean(event.Name) != filepath.Clean(path) {
		return false
	}
	return event.Has(fsnotify.Write) || event.Has(fsnotify.Create)
}

// reviewFile runs one review of the file's current content.
func reviewFile(ctx context.Context, sess *session, path string) error {
	input, err := readInput(inputSource{File: path})
	if err != nil {
		return err
	}
	if len(input) < minInputLength {
		printStatus("!", fmt.Sprintf("Abstract is very short (%d chars). Results may be limited.", len(input)), color.FgYellow)
	}
	if err := sess.begin(input); err != nil {
		return err
	}

	sess.backend.Tracker.Reset()
	start := time.Now()
	final, err := runPlain(ctx, sess, eventPrinter{w: color.Output, verbosity: sess.cfg.Logging.Verbosity})
	if err != nil {
		return err
	}
	if err := sess.finish(final); err != nil {
		printStatus("!", fmt.Sprintf("Could not store the final state: %v", err), color.FgYellow)
	}
	printSummary(color.Output, runSummary{
		RunID:    sess.runID(),
		Final:    final,
		Elapsed:  time.Since(start),
		Tracker:  sess.backend.Tracker,
		ShowCost: showsCost(sess.cfg),
	}, sess.cfg.Logging.Verbosity)
	return nil
}
