package main

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/ShayCichocki/referee/internal/decision"
	"github.com/ShayCichocki/referee/internal/llm"
	"github.com/ShayCichocki/referee/internal/orchestrator"
	"github.com/ShayCichocki/referee/pkg/models"
)

// printStatus prints a status line with color
func printStatus(symbol, message string, colorAttr color.Attribute) {
	fprintStatus(color.Output, symbol, message, colorAttr)
}

func fprintStatus(w io.Writer, symbol, message string, colorAttr color.Attribute) {
	c := color.New(colorAttr)
	fmt.Fprintf(w, "%s %s\n", c.Sprint(symbol), message)
}

// printSection prints a section heading.
func printSection(w io.Writer, title string) {
	bold := color.New(color.Bold)
	fmt.Fprintf(w, "\n%s\n%s\n", bold.Sprint(title), strings.Repeat("-", len(title)))
}

// eventPrinter renders engine events as progress lines.
type eventPrinter struct {
	w         io.Writer
	verbosity int
}

// print writes ev according to the verbosity level.
// 0 prints nothing, 1 prints clipped summaries, 2 prints them in full.
func (p eventPrinter) print(ev orchestrator.WorkflowEvent) {
	if p.verbosity <= 0 {
		return
	}
	msg := strings.TrimSpace(ev.Message)
	if p.verbosity == 1 {
		msg = clipLine(msg, 100)
	}

	switch ev.Type {
	case orchestrator.EventStageCompleted:
		line := ev.Stage.DisplayName()
		if ev.Output > 0 {
			line += fmt.Sprintf(" (%d chars, %s)", ev.Output, ev.Duration.Round(time.Millisecond))
		}
		if msg != "" {
			line += ": " + msg
		}
		fprintStatus(p.w, "✓", line, color.FgGreen)
	case orchestrator.EventStageNoop:
		fprintStatus(p.w, "•", ev.Stage.DisplayName()+": no change", color.FgYellow)
	case orchestrator.EventRouted:
		fprintStatus(p.w, "→", fmt.Sprintf("iteration %d: routing to %s", ev.Iteration, ev.Next.DisplayName()), color.FgCyan)
	case orchestrator.EventWorkflowCompleted:
		if ev.Complete {
			fprintStatus(p.w, "■", fmt.Sprintf("workflow finished after %d iterations", ev.Iteration), color.FgGreen)
		} else {
			fprintStatus(p.w, "■", fmt.Sprintf("workflow stopped at iteration %d", ev.Iteration), color.FgRed)
		}
	}
}

// clipLine flattens s to one line of at most n runes.
func clipLine(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	clipped := decision.Clip(s, n)
	if clipped != s {
		return clipped + "..."
	}
	return s
}

// runSummary holds what printSummary reports.
type runSummary struct {
	RunID   string
	Final   models.SharedState
	Elapsed time.Duration
	Tracker *llm.TokenTracker
	// ShowCost is false for local providers.
	ShowCost bool
}

// printSummary writes the contribution table, the final report and the execution statistics.
func printSummary(w io.Writer, sum runSummary, verbosity int) {
	final := sum.Final

	if verbosity >= 1 {
		printSection(w, "Stage contributions")
		total := 0
		for _, c := range final.Contributions() {
			fmt.Fprintf(w, "%-30s | %5d chars | %s\n", c.Stage.DisplayName(), c.Chars, c.Description)
			total += c.Chars
		}
		fmt.Fprintf(w, "%-30s | %5d chars\n", "Total Output", total)
	}

	if report := final.Result(models.SlotFinal); report != "" {
		printSection(w, "Final report")
		fmt.Fprintln(w, strings.TrimSpace(report))
	} else {
		missing := make([]string, 0)
		for _, slot := range final.PendingSlots() {
			missing = append(missing, string(slot))
		}
		fprintStatus(w, "!", "no final report produced; pending: "+strings.Join(missing, ", "), color.FgYellow)
	}

	printSection(w, "Execution statistics")
	fmt.Fprintf(w, "Total execution time: %.2f seconds\n", sum.Elapsed.Seconds())
	fmt.Fprintf(w, "Total stage messages: %d\n", len(final.History))
	fmt.Fprintf(w, "Workflow iterations: %d\n", final.Iteration)
	fmt.Fprintf(w, "Analysis complete: %t\n", final.Complete)
	if sum.Tracker != nil {
		in, out := sum.Tracker.Total()
		fmt.Fprintf(w, "Generation calls: %d (%d input / %d output tokens)\n", sum.Tracker.Calls(), in, out)
		if sum.ShowCost {
			fmt.Fprintf(w, "Estimated cost: $%.4f\n", sum.Tracker.Cost())
		}
	}
	if sum.RunID != "" {
		fmt.Fprintf(w, "Run ID: %s\n", sum.RunID)
	}
}
