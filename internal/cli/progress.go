// internal/cli/progress.go
// Package: cli
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/progress"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/solverbench/internal/harness"
	"github.com/mwiater/solverbench/internal/report"
	"github.com/mwiater/solverbench/internal/solver"
)

// recentLines is how many finished trials the progress view keeps on screen.
const recentLines = 8

// progressState is the lifecycle of the progress view.
type progressState int

const (
	// progressWaiting is before the plan arrives.
	progressWaiting progressState = iota
	// progressRunning is while trials are executing.
	progressRunning
	// progressStopping is after the user asked to stop; the current trial still finishes.
	progressStopping
	// progressDone is after the suite returned.
	progressDone
)

// Messages sent from the suite goroutine into the program.
type (
	planMsg  struct{ plan harness.Plan }
	trialMsg struct{ trial harness.Trial }
	cellMsg  struct{ row harness.SummaryRow }
	doneMsg  struct {
		res harness.SuiteResult
		err error
	}
)

// progressModel is the Bubble Tea model of a running suite.
type progressModel struct {
	state progressState

	plan   harness.Plan
	done   int
	cells  int
	counts harness.Counts
	// Case and cell of the trial currently running.
	current string
	recent  []harness.Trial

	res harness.SuiteResult
	err error

	bar     progress.Model
	spinner spinner.Model
	console *Console
	cancel  context.CancelFunc

	width int
}

func newProgressModel(console *Console) *progressModel {
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return &progressModel{
		state:   progressWaiting,
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithWidth(60)),
		spinner: s,
		console: console,
	}
}

// Init starts the spinner animation.
func (m *progressModel) Init() tea.Cmd {
	return m.spinner.Tick
}

// Update folds suite events and key presses into the model.
func (m *progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			if m.state == progressDone {
				return m, tea.Quit
			}
			m.state = progressStopping
			if m.cancel != nil {
				m.cancel()
			}
		}
		return m, nil

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.bar.Width = min(max(msg.Width-20, 10), 80)
		return m, nil

	case planMsg:
		m.plan = msg.plan
		if m.state == progressWaiting {
			m.state = progressRunning
		}
		if len(msg.plan.Units) > 0 {
			m.current = unitLabel(msg.plan.Units[0].Case.Name, msg.plan.Units[0].Cell)
		}
		return m, nil

	case trialMsg:
		m.done++
		m.counts.Add(msg.trial.Outcome)
		m.recent = append(m.recent, msg.trial)
		if len(m.recent) > recentLines {
			m.recent = m.recent[len(m.recent)-recentLines:]
		}
		m.current = unitLabel(msg.trial.Case, msg.trial.Cell)
		return m, nil

	case cellMsg:
		m.cells++
		if m.cells < len(m.plan.Units) {
			next := m.plan.Units[m.cells]
			m.current = unitLabel(next.Case.Name, next.Cell)
		}
		return m, nil

	case doneMsg:
		m.state = progressDone
		m.res, m.err = msg.res, msg.err
		return m, tea.Quit

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd
	}
	return m, nil
}

func unitLabel(caseName string, cell harness.Cell) string {
	return fmt.Sprintf("%s [%s]", caseName, cell.Display())
}

// percent is the share of planned trials that finished.
func (m *progressModel) percent() float64 {
	total := m.plan.TotalTrials()
	if total == 0 {
		return 0
	}
	return float64(m.done) / float64(total)
}

// View renders the progress screen.
func (m *progressModel) View() string {
	titleStyle := lipgloss.NewStyle().Background(lipgloss.Color("62")).Foreground(lipgloss.Color("230")).Padding(0, 1)
	help := lipgloss.NewStyle().Faint(true)

	var b strings.Builder
	b.WriteString(titleStyle.Render("solverbench") + " ")

	switch m.state {
	case progressWaiting:
		b.WriteString(m.spinner.View() + " preparing...\n")
		return b.String()
	case progressDone:
		b.WriteString("finished\n\n")
		if m.err != nil && !errors.Is(m.err, context.Canceled) {
			b.WriteString(lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Render("Error: "+m.err.Error()) + "\n")
		}
		b.WriteString(report.Trailer(m.res))
		return b.String()
	case progressStopping:
		b.WriteString(m.spinner.View() + " stopping after the current trial: " + m.current + "\n\n")
	default:
		b.WriteString(m.spinner.View() + " running " + m.current + "\n\n")
	}

	b.WriteString(m.bar.ViewAs(m.percent()))
	fmt.Fprintf(&b, "  %d/%d trials, %d/%d cells\n", m.done, m.plan.TotalTrials(), m.cells, len(m.plan.Units))
	fmt.Fprintf(&b, "%s %d  %s %d  %s %d  %s %d\n\n",
		m.badge(solver.Win), m.counts.Win,
		m.badge(solver.Loss), m.counts.Loss,
		m.badge(solver.Draw), m.counts.Draw,
		m.badge(solver.Error), m.counts.Error)

	for _, t := range m.recent {
		b.WriteString(m.console.TrialLine(t) + "\n")
	}
	b.WriteString("\n" + help.Render("(q to stop)"))
	return b.String()
}

func (m *progressModel) badge(o solver.Outcome) string {
	return m.console.badges[o].Render(o.Letter())
}

// TUI shows a live progress view while the suite runs. It is a harness sink;
// events are forwarded to the Bubble Tea program with Send.
type TUI struct {
	model   *progressModel
	program *tea.Program
}

var _ harness.Sink = (*TUI)(nil)

// NewTUI builds the progress program. Options are passed to tea.NewProgram.
func NewTUI(opts ...tea.ProgramOption) *TUI {
	m := newProgressModel(NewConsole(os.Stdout))
	return &TUI{model: m, program: tea.NewProgram(m, opts...)}
}

func (t *TUI) Begin(plan harness.Plan) error {
	t.program.Send(planMsg{plan: plan})
	return nil
}

func (t *TUI) RecordTrial(tr harness.Trial) error {
	t.program.Send(trialMsg{trial: tr})
	return nil
}

func (t *TUI) RecordCell(row harness.SummaryRow) error {
	t.program.Send(cellMsg{row: row})
	return nil
}

// End is a no-op; Run delivers the final result once the suite returns.
func (t *TUI) End(harness.SuiteResult) error { return nil }

// Run executes suite on a background goroutine while the program renders its
// progress. Pressing q cancels the context handed to suite.
func (t *TUI) Run(ctx context.Context, suite func(context.Context) (harness.SuiteResult, error)) (harness.SuiteResult, error) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	t.model.cancel = cancel

	var (
		res harness.SuiteResult
		err error
	)
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		res, err = suite(ctx)
		t.program.Send(doneMsg{res: res, err: err})
	}()

	_, perr := t.program.Run()
	if perr != nil {
		cancel()
	}
	<-finished
	if perr != nil && !errors.Is(perr, tea.ErrProgramKilled) {
		return res, errors.Join(err, fmt.Errorf("progress view: %w", perr))
	}
	return res, err
}
