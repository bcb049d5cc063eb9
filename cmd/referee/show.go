package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ShayCichocki/referee/internal/state"
	"github.com/ShayCichocki/referee/pkg/models"
)

var showFormat string

var showCmd = &cobra.Command{
	Use:   "show <run-id>",
	Short: "Show the result of a recorded run",
	Long: `Show a recorded run and its final state. The run ID may be any
unique prefix. Use --format json or --format yaml to export the run.`,
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
		run, err := db.GetRun(id)
		if err != nil {
			return err
		}
		final, err := db.FinalState(id)
		if err != nil {
			return err
		}
		return writeRun(cmd.OutOrStdout(), runExport{Run: *run, State: final}, showFormat)
	},
}

func init() {
	showCmd.Flags().StringVarP(&showFormat, "format", "o", "text", "Output format: text, json or yaml")
}

// runExport is the exported form of a run.
type runExport struct {
	Run   state.Run          `json:"run" yaml:"run"`
	State models.SharedState `json:"state" yaml:"state"`
}

// writeRun renders a run in the requested format.
func writeRun(w io.Writer, exp runExport, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(exp)
	case "yaml", "yml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(exp); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		writeRunText(w, exp)
		return nil
	default:
		return fmt.Errorf("unknown format %q (want text, json or yaml)", format)
	}
}

func writeRunText(w io.Writer, exp runExport) {
	r := exp.Run
	fmt.Fprintf(w, "Run %s\n", r.ID)
	fmt.Fprintf(w, "Status: %s\n", r.Status)
	fmt.Fprintf(w, "Model: %s (%s)\n", r.Model, r.Provider)
	fmt.Fprintf(w, "Started: %s\n", r.StartedAt.Local().Format("2006-01-02 15:04:05"))
	if r.FinishedAt != nil {
		fmt.Fprintf(w, "Finished: %s\n", r.FinishedAt.Local().Format("2006-01-02 15:04:05"))
	}

	printSection(w, "State")
	fmt.Fprintln(w, exp.State.Summary())

	for _, kind := range models.CanonicalOrder {
		slot, _ := models.SlotFor(kind)
		text := exp.State.Result(slot)
		if text == "" {
			continue
		}
		printSection(w, kind.DisplayName())
		fmt.Fprintln(w, strings.TrimSpace(text))
	}

	if len(exp.State.History) > 0 {
		printSection(w, "History")
		for i, h := range exp.State.History {
			fmt.Fprintf(w, "%2d. [%s] %s: %s\n", i+1, h.Actor, h.Action, clipLine(h.Summary, 120))
		}
	}
}
