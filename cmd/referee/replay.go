package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/referee/internal/state"
)

var replayFull bool

var replayCmd = &cobra.Command{
	Use:   "replay <run-id>",
	Short: "Step through the recorded revisions of a run",
	Long: `Print every recorded revision of a run in order: which stage ran,
where the supervisor routed next, and what the stage added to the
history. With --full the whole state summary is printed per revision.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		db, err := openStore(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		id, err := db.ResolveRunID(args[0])
		if err != nil {
			return err
		}
		revs, err := db.ListRevisions(id)
		if err != nil {
			return err
		}
		formatReplay(cmd.OutOrStdout(), revs, replayFull)
		return nil
	},
}

func init() {
	replayCmd.Flags().BoolVar(&replayFull, "full", false, "Print the full state summary of each revision")
}

// formatReplay writes one block per revision with the history entries it added.
func formatReplay(w io.Writer, revs []state.Revision, full bool) {
	if len(revs) == 0 {
		fmt.Fprintln(w, "No revisions recorded.")
		return
	}

	seen := 0
	for _, rev := range revs {
		stage := "initial state"
		if rev.Stage != "" {
			stage = rev.Stage.DisplayName()
		}
		fmt.Fprintf(w, "#%d %s (iteration %d, next: %s)\n", rev.Seq, stage, rev.Iteration, rev.NextStage)

		history := rev.State.History
		if seen > len(history) {
			seen = 0
		}
		for _, h := range history[seen:] {
			fmt.Fprintf(w, "    [%s] %s: %s\n", h.Actor, h.Action, clipLine(h.Summary, 100))
		}
		seen = len(history)

		if full {
			fmt.Fprintln(w)
			fmt.Fprintln(w, rev.State.Summary())
			fmt.Fprintln(w)
		}
	}
}
