package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/referee/internal/orchestrator"
	"github.com/ShayCichocki/referee/pkg/models"
)

// StageStatus is the display status of one stage.
type StageStatus string

const (
	StatusPending StageStatus = "pending"
	StatusRunning StageStatus = "running"
	StatusDone    StageStatus = "done"
	StatusNoop    StageStatus = "no change"
)

// displayStages is the row order of the stage table.
var displayStages = append([]models.StageKind{models.StageSupervisor}, models.CanonicalOrder...)

// StageRow is the display state of one stage.
type StageRow struct {
	Kind     models.StageKind
	Status   StageStatus
	Runs     int
	Output   int
	Duration time.Duration
}

// WorkflowState tracks the current workflow progress.
type WorkflowState struct {
	Iteration int
	Complete  bool
	LastRoute models.StageKind
	Current   models.StageKind
	Stages    map[models.StageKind]*StageRow
	// SlotsDone counts filled worker slots.
	SlotsDone int
}

func newWorkflowState() WorkflowState {
	s := WorkflowState{Stages: make(map[models.StageKind]*StageRow)}
	for _, kind := range displayStages {
		s.Stages[kind] = &StageRow{Kind: kind, Status: StatusPending}
	}
	return s
}

// apply folds one engine event into the state.
func (s *WorkflowState) apply(ev orchestrator.WorkflowEvent) {
	row := s.Stages[ev.Stage]
	switch ev.Type {
	case orchestrator.EventStageStarted:
		s.Current = ev.Stage
		if row != nil {
			row.Status = StatusRunning
		}
	case orchestrator.EventStageCompleted, orchestrator.EventStageNoop:
		s.Current = ""
		s.Iteration = ev.Iteration
		s.Complete = ev.Complete
		if row != nil {
			row.Runs++
			row.Duration += ev.Duration
			row.Status = StatusDone
			if ev.Type == orchestrator.EventStageNoop {
				row.Status = StatusNoop
			}
			if ev.Output > 0 {
				if row.Output == 0 && ev.Stage.IsWorker() {
					s.SlotsDone++
				}
				row.Output = ev.Output
			}
		}
	case orchestrator.EventRouted:
		s.LastRoute = ev.Next
		s.Iteration = ev.Iteration
	case orchestrator.EventWorkflowCompleted:
		s.Current = ""
		s.Iteration = ev.Iteration
		s.Complete = ev.Complete
	}
}

// WorkflowView displays the stage table and progress.
type WorkflowView struct {
	state WorkflowState
	width int

	// Styles
	headerStyle   lipgloss.Style
	labelStyle    lipgloss.Style
	valueStyle    lipgloss.Style
	progressFull  lipgloss.Style
	progressEmpty lipgloss.Style
	phaseStyle    lipgloss.Style
	pendingStyle  lipgloss.Style
	runningStyle  lipgloss.Style
	noopStyle     lipgloss.Style
}

// NewWorkflowView creates a new WorkflowView instance.
func NewWorkflowView() *WorkflowView {
	return &WorkflowView{
		state: newWorkflowState(),

		headerStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("15")).
			BorderStyle(lipgloss.NormalBorder()).
			BorderBottom(true).
			BorderForeground(lipgloss.Color("238")).
			MarginBottom(1),

		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(16),

		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),

		progressFull: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		progressEmpty: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		phaseStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Bold(true),

		pendingStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		runningStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")),

		noopStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("214")),
	}
}

// View renders the workflow progress display.
func (v *WorkflowView) View(spin string) string {
	var b strings.Builder

	b.WriteString(v.headerStyle.Render("Workflow Progress"))
	b.WriteString("\n")

	b.WriteString(v.labelStyle.Render("Iteration:"))
	b.WriteString(v.valueStyle.Render(fmt.Sprintf("%d", v.state.Iteration)))
	b.WriteString("  ")
	b.WriteString(v.labelStyle.Render("Last route:"))
	route := string(v.state.LastRoute)
	if route == "" {
		route = "none"
	}
	b.WriteString(v.phaseStyle.Render(route))
	b.WriteString("\n")

	pct := float64(v.state.SlotsDone) / float64(len(models.CanonicalOrder)) * 100
	b.WriteString(v.labelStyle.Render("Analyses:"))
	b.WriteString(v.valueStyle.Render(fmt.Sprintf("%d/%d complete", v.state.SlotsDone, len(models.CanonicalOrder))))
	b.WriteString("\n")
	b.WriteString(v.renderProgressBar(pct, 30))
	b.WriteString("\n\n")

	for _, kind := range displayStages {
		row := v.state.Stages[kind]
		b.WriteString(v.renderRow(row, spin))
		b.WriteString("\n")
	}

	return b.String()
}

func (v *WorkflowView) renderRow(row *StageRow, spin string) string {
	marker := " "
	style := v.pendingStyle
	switch row.Status {
	case StatusRunning:
		marker = spin
		style = v.runningStyle
	case StatusDone:
		marker = "✓"
		style = v.runningStyle
	case StatusNoop:
		marker = "-"
		style = v.noopStyle
	}

	line := fmt.Sprintf("  %s %-20s %-10s", marker, row.Kind.DisplayName(), style.Render(string(row.Status)))
	if row.Runs > 0 {
		line += fmt.Sprintf("  runs:%d", row.Runs)
	}
	if row.Output > 0 {
		line += fmt.Sprintf("  %d chars", row.Output)
	}
	if row.Duration > 0 {
		line += fmt.Sprintf("  %s", row.Duration.Round(time.Millisecond))
	}
	return line
}

// renderProgressBar renders a progress bar.
func (v *WorkflowView) renderProgressBar(pct float64, width int) string {
	if pct > 100 {
		pct = 100
	}
	if pct < 0 {
		pct = 0
	}

	filled := int(pct / 100 * float64(width))
	empty := width - filled

	bar := v.progressFull.Render(strings.Repeat("█", filled)) +
		v.progressEmpty.Render(strings.Repeat("░", empty))

	return fmt.Sprintf("  %s %.0f%%", bar, pct)
}

// State returns the current workflow state.
func (v *WorkflowView) State() WorkflowState {
	return v.state
}

// WorkflowLogEntry represents an entry in the activity log.
type WorkflowLogEntry struct {
	Timestamp time.Time
	Stage     string
	Message   string
}

// WorkflowEventMsg carries one engine event into the program.
type WorkflowEventMsg struct {
	Event orchestrator.WorkflowEvent
}

// eventsClosedMsg is sent once the event channel is drained.
type eventsClosedMsg struct{}

// WorkflowDoneMsg is sent when the run has returned.
type WorkflowDoneMsg struct {
	State models.SharedState
	Err   error
}

// WorkflowApp is the bubbletea model for the run TUI.
type WorkflowApp struct {
	view     *WorkflowView
	spinner  spinner.Model
	events   <-chan orchestrator.WorkflowEvent
	logs     []WorkflowLogEntry
	width    int
	height   int
	quitting bool
	done     bool
	final    models.SharedState
	err      error

	// Styles
	logStyle     lipgloss.Style
	logTimeStyle lipgloss.Style
	errorStyle   lipgloss.Style
	doneStyle    lipgloss.Style
}

// NewWorkflowApp creates a WorkflowApp that reads from events.
func NewWorkflowApp(events <-chan orchestrator.WorkflowEvent) *WorkflowApp {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &WorkflowApp{
		view:    NewWorkflowView(),
		spinner: s,
		events:  events,
		logs:    make([]WorkflowLogEntry, 0),

		logStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),

		logTimeStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")),

		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),

		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true),
	}
}

// waitForEvent reads the next engine event.
func waitForEvent(events <-chan orchestrator.WorkflowEvent) tea.Cmd {
	if events == nil {
		return nil
	}
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return eventsClosedMsg{}
		}
		return WorkflowEventMsg{Event: ev}
	}
}

// Init implements tea.Model.
func (a *WorkflowApp) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, waitForEvent(a.events))
}

// Update implements tea.Model.
func (a *WorkflowApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			a.quitting = !a.done
			return a, tea.Quit
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.view.width = msg.Width

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case WorkflowEventMsg:
		a.view.state.apply(msg.Event)
		a.logEvent(msg.Event)
		return a, waitForEvent(a.events)

	case eventsClosedMsg:
		return a, nil

	case WorkflowDoneMsg:
		a.done = true
		a.final = msg.State
		a.err = msg.Err
		// Don't quit immediately - let user see final state
	}

	return a, nil
}

func (a *WorkflowApp) logEvent(ev orchestrator.WorkflowEvent) {
	var message string
	switch ev.Type {
	case orchestrator.EventStageCompleted:
		message = ev.Message
	case orchestrator.EventStageNoop:
		message = "no change"
	case orchestrator.EventRouted:
		message = fmt.Sprintf("routed to %s (iteration %d)", ev.Next, ev.Iteration)
	case orchestrator.EventWorkflowCompleted:
		message = fmt.Sprintf("workflow finished after %d iterations (complete: %v)", ev.Iteration, ev.Complete)
	default:
		return
	}
	ts := ev.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	a.logs = append(a.logs, WorkflowLogEntry{Timestamp: ts, Stage: string(ev.Stage), Message: message})
}

// Final returns the state delivered by WorkflowDoneMsg.
func (a *WorkflowApp) Final() (models.SharedState, error) {
	return a.final, a.err
}

// Quitting reports whether the user quit before the run finished.
func (a *WorkflowApp) Quitting() bool {
	return a.quitting
}

// View implements tea.Model.
func (a *WorkflowApp) View() string {
	if a.quitting {
		return "Workflow cancelled.\n"
	}

	var b strings.Builder

	header := lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("205")).
		Render("=== Referee ===")
	b.WriteString(header)
	b.WriteString("\n\n")

	b.WriteString(a.view.View(a.spinner.View()))
	b.WriteString("\n")

	b.WriteString(a.renderLogs())

	b.WriteString("\n")
	if a.done {
		if a.err != nil {
			b.WriteString(a.errorStyle.Render(fmt.Sprintf("Error: %v", a.err)))
		} else {
			b.WriteString(a.doneStyle.Render("Workflow complete! Press q to exit."))
		}
	} else {
		b.WriteString(lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Render("Press q to cancel"))
	}
	b.WriteString("\n")

	return b.String()
}

// renderLogs renders the recent log entries.
func (a *WorkflowApp) renderLogs() string {
	if len(a.logs) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(lipgloss.NewStyle().
		Bold(true).
		Foreground(lipgloss.Color("252")).
		Render("Activity Log"))
	b.WriteString("\n")

	// Show last 8 log entries
	start := 0
	if len(a.logs) > 8 {
		start = len(a.logs) - 8
	}

	for _, entry := range a.logs[start:] {
		ts := a.logTimeStyle.Render(entry.Timestamp.Format("15:04:05"))
		stage := lipgloss.NewStyle().
			Foreground(lipgloss.Color("205")).
			Width(20).
			Render(entry.Stage)
		msg := a.logStyle.Render(entry.Message)
		b.WriteString(fmt.Sprintf("  %s %s %s\n", ts, stage, msg))
	}

	return b.String()
}

// NewWorkflowProgram creates a new Bubbletea program for the run TUI.
func NewWorkflowProgram(events <-chan orchestrator.WorkflowEvent) (*tea.Program, *WorkflowApp) {
	app := NewWorkflowApp(events)
	p := tea.NewProgram(app, tea.WithAltScreen())
	return p, app
}
