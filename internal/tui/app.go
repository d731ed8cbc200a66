package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/jayasaisrikar/spoc-agent/internal/orchestrator"
	"github.com/jayasaisrikar/spoc-agent/pkg/models"
)

// visibleLogLines is how many activity lines the view shows.
const visibleLogLines = 8

// Controller is the run control surface the display drives.
type Controller interface {
	Pause()
	Resume()
	IsPaused() bool
	Stop()
}

// Source supplies orchestrator events.
type Source interface {
	Events() <-chan orchestrator.OrchestratorEvent
}

// EventMsg carries one orchestrator event into the model.
type EventMsg struct {
	Event orchestrator.OrchestratorEvent
}

// EventsClosedMsg is sent once the event channel is closed.
type EventsClosedMsg struct{}

// DoneMsg is sent when the analysis call returns.
type DoneMsg struct {
	Result *models.AnalysisResult
	Err    error
}

// WaitForEvent returns a command that blocks on the next event.
func WaitForEvent(events <-chan orchestrator.OrchestratorEvent) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-events
		if !ok {
			return EventsClosedMsg{}
		}
		return EventMsg{Event: ev}
	}
}

// AnalyzeApp is the bubbletea model for a single analysis run.
type AnalyzeApp struct {
	title   string
	events  <-chan orchestrator.OrchestratorEvent
	control Controller

	state    ProgressState
	logs     []LogEntry
	spinner  spinner.Model
	bar      progress.Model
	width    int
	quitting bool
	done     bool
	result   *models.AnalysisResult
	err      error

	titleStyle lipgloss.Style
	labelStyle lipgloss.Style
	valueStyle lipgloss.Style
	timeStyle  lipgloss.Style
	kindStyle  lipgloss.Style
	logStyle   lipgloss.Style
	errorStyle lipgloss.Style
	doneStyle  lipgloss.Style
	hintStyle  lipgloss.Style
}

// NewAnalyzeApp creates the model. src and control may be nil.
func NewAnalyzeApp(title string, src Source, control Controller) *AnalyzeApp {
	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	a := &AnalyzeApp{
		title:   title,
		control: control,
		spinner: sp,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(40)),
		state:   ProgressState{ActiveTasks: make(map[string]string)},

		titleStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("205")),
		labelStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")).
			Width(14),
		valueStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")).
			Bold(true),
		timeStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		kindStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("205")).Width(16),
		logStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("245")),
		errorStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true),
		doneStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("34")).
			Bold(true),
		hintStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
	}
	if src != nil {
		a.events = src.Events()
	}
	return a
}

// Init implements tea.Model.
func (a *AnalyzeApp) Init() tea.Cmd {
	if a.events == nil {
		return a.spinner.Tick
	}
	return tea.Batch(a.spinner.Tick, WaitForEvent(a.events))
}

// Update implements tea.Model.
func (a *AnalyzeApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if !a.done && a.control != nil {
				a.control.Stop()
			}
			a.quitting = true
			return a, tea.Quit
		case "p":
			if a.control == nil || a.done {
				return a, nil
			}
			if a.control.IsPaused() {
				a.control.Resume()
				a.log(LogEntry{Timestamp: time.Now(), Kind: "control", Message: "resumed"})
			} else {
				a.control.Pause()
				a.log(LogEntry{Timestamp: time.Now(), Kind: "control", Message: "paused"})
			}
		}

	case tea.WindowSizeMsg:
		a.width = msg.Width
		if w := msg.Width - 20; w > 10 && w < 60 {
			a.bar.Width = w
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd

	case EventMsg:
		a.log(a.state.apply(msg.Event))
		return a, WaitForEvent(a.events)

	case EventsClosedMsg:
		a.events = nil

	case DoneMsg:
		a.done = true
		a.result = msg.Result
		a.err = msg.Err
		if a.err == nil && msg.Result != nil && !msg.Result.Success && len(msg.Result.Errors) > 0 {
			a.err = fmt.Errorf("%s", strings.Join(msg.Result.Errors, "; "))
		}
		if msg.Result != nil {
			a.state.Finished = true
			a.state.Confidence = msg.Result.Confidence
			a.state.Elapsed = msg.Result.ExecutionTime
		}
	}
	return a, nil
}

// Result returns the analysis result once DoneMsg has been received.
func (a *AnalyzeApp) Result() *models.AnalysisResult {
	return a.result
}

// State returns a copy of the progress state.
func (a *AnalyzeApp) State() ProgressState {
	return a.state
}

// Logs returns the activity log.
func (a *AnalyzeApp) Logs() []LogEntry {
	return append([]LogEntry(nil), a.logs...)
}

func (a *AnalyzeApp) log(e LogEntry) {
	a.logs = append(a.logs, e)
	if len(a.logs) > maxLogEntries {
		a.logs = a.logs[len(a.logs)-maxLogEntries:]
	}
}

// View implements tea.Model.
func (a *AnalyzeApp) View() string {
	if a.quitting && !a.done {
		return "Analysis stopped.\n"
	}

	var b strings.Builder
	heading := a.titleStyle.Render("spoc: " + a.title)
	if !a.done {
		heading = a.spinner.View() + " " + heading
	}
	b.WriteString(heading)
	b.WriteString("\n\n")

	b.WriteString(a.row("Iteration:", fmt.Sprintf("%d", a.state.Iteration)))
	b.WriteString(a.row("Confidence:", fmt.Sprintf("%.2f", a.state.Confidence)))
	b.WriteString(a.row("Tasks:", fmt.Sprintf("%d done, %d failed, %d running",
		a.state.TasksCompleted, a.state.TasksFailed, len(a.state.ActiveTasks))))
	if a.state.Replanned > 0 || a.state.Retried > 0 {
		b.WriteString(a.row("Corrections:", fmt.Sprintf("%d replanned, %d retried", a.state.Replanned, a.state.Retried)))
	}
	b.WriteString(a.row("Elapsed:", a.state.Elapsed.Round(time.Second).String()))
	b.WriteString("\n")
	b.WriteString(a.bar.ViewAs(clampPercent(a.state.Completion) / 100))
	b.WriteString("\n\n")

	if len(a.state.ActiveTasks) > 0 {
		ids := make([]string, 0, len(a.state.ActiveTasks))
		for id := range a.state.ActiveTasks {
			ids = append(ids, id)
		}
		sort.Strings(ids)
		for _, id := range ids {
			fmt.Fprintf(&b, "  %s %s\n", a.valueStyle.Render(a.state.ActiveTasks[id]), a.hintStyle.Render(id))
		}
		b.WriteString("\n")
	}

	b.WriteString(a.renderLogs())
	b.WriteString("\n")

	switch {
	case a.done && a.err != nil:
		b.WriteString(a.errorStyle.Render(fmt.Sprintf("Error: %v", a.err)))
		b.WriteString("  ")
		b.WriteString(a.hintStyle.Render("Press q to exit"))
	case a.done:
		b.WriteString(a.doneStyle.Render("Analysis complete! Press q to exit."))
	case a.control != nil && a.control.IsPaused():
		b.WriteString(a.hintStyle.Render("Paused. Press p to resume, q to stop"))
	default:
		b.WriteString(a.hintStyle.Render("Press p to pause, q to stop"))
	}
	b.WriteString("\n")
	return b.String()
}

func (a *AnalyzeApp) row(label, value string) string {
	return a.labelStyle.Render(label) + a.valueStyle.Render(value) + "\n"
}

func (a *AnalyzeApp) renderLogs() string {
	if len(a.logs) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString(a.valueStyle.Render("Activity"))
	b.WriteString("\n")

	start := 0
	if len(a.logs) > visibleLogLines {
		start = len(a.logs) - visibleLogLines
	}
	for _, e := range a.logs[start:] {
		msg := a.logStyle.Render(e.Message)
		if e.Failed {
			msg = a.errorStyle.Render(e.Message)
		}
		fmt.Fprintf(&b, "  %s %s %s\n", a.timeStyle.Render(e.Timestamp.Format("15:04:05")), a.kindStyle.Render(e.Kind), msg)
	}
	return b.String()
}

func clampPercent(p float64) float64 {
	if p < 0 {
		return 0
	}
	if p > 100 {
		return 100
	}
	return p
}

// NewAnalyzeProgram creates a bubbletea program following orch.
func NewAnalyzeProgram(title string, orch *orchestrator.Orchestrator) (*tea.Program, *AnalyzeApp) {
	app := NewAnalyzeApp(title, orch, orch)
	p := tea.NewProgram(app, tea.WithAltScreen())
	return p, app
}
