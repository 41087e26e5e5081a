// internal/cli/console.go
// Package: cli
package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/mwiater/solverbench/internal/harness"
	"github.com/mwiater/solverbench/internal/report"
	"github.com/mwiater/solverbench/internal/solver"
)

// Console prints one colored line per trial and the per-cell summaries, the
// plain terminal view of a run.
type Console struct {
	out    io.Writer
	stats  harness.StatsVariant
	badges map[solver.Outcome]lipgloss.Style
	cell   lipgloss.Style
	faint  lipgloss.Style
}

var _ harness.Sink = (*Console)(nil)

// NewConsole writes to out. Colors are only emitted when out is a terminal.
func NewConsole(out io.Writer) *Console {
	r := lipgloss.NewRenderer(out)
	badge := func(color string) lipgloss.Style {
		return r.NewStyle().Bold(true).Foreground(lipgloss.Color(color))
	}
	return &Console{
		out: out,
		badges: map[solver.Outcome]lipgloss.Style{
			solver.Win:   badge("10"),
			solver.Loss:  badge("9"),
			solver.Draw:  badge("214"),
			solver.Error: badge("9").Reverse(true),
		},
		cell:  r.NewStyle().Bold(true),
		faint: r.NewStyle().Faint(true),
	}
}

func (c *Console) Begin(plan harness.Plan) error {
	c.stats = plan.Config.Stats
	fmt.Fprintln(c.out, c.faint.Render(fmt.Sprintf(
		"run %s: %d cases x %d cells x %d repetitions = %d trials -> %s",
		plan.RunID, len(plan.Cases), len(plan.Cells), plan.Repetitions, plan.TotalTrials(), plan.Config.OutputDir)))
	return nil
}

func (c *Console) RecordTrial(t harness.Trial) error {
	fmt.Fprintln(c.out, c.TrialLine(t))
	return nil
}

// TrialLine renders a trial with its outcome letter highlighted.
func (c *Console) TrialLine(t harness.Trial) string {
	letter := t.Outcome.Letter()
	rest := strings.TrimPrefix(report.TrialLine(t), letter+". ")
	return c.badges[t.Outcome].Render(" "+letter+". ") + " " + rest
}

func (c *Console) RecordCell(row harness.SummaryRow) error {
	fmt.Fprintln(c.out, c.cell.Render(report.CellLine(row, c.stats)))
	return nil
}

func (c *Console) End(res harness.SuiteResult) error {
	fmt.Fprint(c.out, "\n"+report.Trailer(res))
	return nil
}
