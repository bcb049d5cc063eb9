package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/referee/internal/state"
)

var (
	historyLimit       int
	historyStatus      string
	historyInterrupted bool
	historyPurge       time.Duration
	historyClean       string
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recorded runs",
	Long: `List recorded runs, newest first.

Examples:
  referee history                    # Last 20 runs
  referee history --status completed # Only completed runs
  referee history --interrupted      # Runs that can be resumed
  referee history --clean 3f2a       # Give up on an interrupted run
  referee history --purge 720h       # Delete runs older than 30 days`,
	Args: cobra.NoArgs,
	RunE: runHistory,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "Maximum number of runs to list (0 for all)")
	historyCmd.Flags().StringVar(&historyStatus, "status", "", "Only list runs with this status (running, completed, interrupted, failed)")
	historyCmd.Flags().BoolVar(&historyInterrupted, "interrupted", false, "List runs that stopped before finishing")
	historyCmd.Flags().DurationVar(&historyPurge, "purge", 0, "Delete runs started longer ago than this")
	historyCmd.Flags().StringVar(&historyClean, "clean", "", "Mark an interrupted run as failed")
}

func runHistory(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	db, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	out := cmd.OutOrStdout()

	switch {
	case historyPurge > 0:
		n, err := db.PurgeOldRuns(historyPurge)
		if err != nil {
			return err
		}
		printStatus("✓", fmt.Sprintf("Deleted %d run(s) older than %s", n, historyPurge), color.FgGreen)
		return nil

	case historyClean != "":
		id, err := db.ResolveRunID(historyClean)
		if err != nil {
			return err
		}
		if err := state.NewRecoveryManager(db).Clean(id); err != nil {
			return err
		}
		printStatus("✓", "Marked run "+shortID(id)+" as failed", color.FgGreen)
		return nil

	case historyInterrupted:
		runs, err := state.NewRecoveryManager(db).CheckForInterrupted()
		if err != nil {
			return err
		}
		formatInterrupted(out, runs)
		return nil
	}

	var status *state.RunStatus
	if historyStatus != "" {
		s, err := parseRunStatus(historyStatus)
		if err != nil {
			return err
		}
		status = &s
	}
	runs, err := db.ListRuns(status, historyLimit)
	if err != nil {
		return err
	}
	formatRunTable(out, runs)
	return nil
}

func parseRunStatus(s string) (state.RunStatus, error) {
	switch st := state.RunStatus(strings.ToLower(strings.TrimSpace(s))); st {
	case state.RunRunning, state.RunCompleted, state.RunInterrupted, state.RunFailed:
		return st, nil
	default:
		return "", fmt.Errorf("unknown run status %q", s)
	}
}

// formatRunTable writes one line per run.
func formatRunTable(w io.Writer, runs []state.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	fmt.Fprintf(w, "%-8s  %-11s  %-16s  %4s  %-8s  %s\n", "ID", "STATUS", "STARTED", "ITER", "COMPLETE", "INPUT")
	for _, r := range runs {
		fmt.Fprintf(w, "%-8s  %-11s  %-16s  %4d  %-8t  %s\n",
			shortID(r.ID),
			r.Status,
			r.StartedAt.Local().Format("2006-01-02 15:04"),
			r.Iterations,
			r.Complete,
			clipLine(r.Input, 50),
		)
	}
}

// formatInterrupted writes resumable runs with the command to resume them.
func formatInterrupted(w io.Writer, runs []state.InterruptedRun) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No interrupted runs.")
		return
	}
	for _, r := range runs {
		fmt.Fprintf(w, "%s  iteration %d, %d revisions, last activity %s\n",
			shortID(r.RunID), r.Iteration, r.Revisions, r.LastActivity.Local().Format("2006-01-02 15:04:05"))
		fmt.Fprintf(w, "          %s\n", clipLine(r.Input, 70))
		fmt.Fprintf(w, "          resume: referee run --resume %s\n", shortID(r.RunID))
	}
}
