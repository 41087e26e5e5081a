package cli

import (
	"bytes"
	"context"
	"errors"
	"io"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mwiater/solverbench/internal/cases"
	"github.com/mwiater/solverbench/internal/harness"
	"github.com/mwiater/solverbench/internal/solver"
)

func samplePlan() harness.Plan {
	cells := harness.Sweep{{Key: "uct_C", Values: []string{"0.5", "3.0"}}}.Cells()
	var units []harness.Unit
	for _, c := range cells {
		units = append(units, harness.Unit{Cell: c})
	}
	for i := range units {
		units[i].Case.Name = "cube"
	}
	return harness.Plan{
		RunID:       "r1",
		Cases:       []cases.Case{{Name: "cube"}},
		Config:      harness.Config{OutputDir: "/tmp/out", Stats: harness.StatsBasic},
		Cells:       cells,
		Units:       units,
		Repetitions: 2,
	}
}

func TestConsole_Lines(t *testing.T) {
	var buf bytes.Buffer
	c := NewConsole(&buf)
	plan := samplePlan()

	require.NoError(t, c.Begin(plan))
	require.NoError(t, c.RecordTrial(harness.Trial{
		Case: "cube", Cell: plan.Cells[0], Ordinal: 1, ExitCode: 2, Outcome: solver.Win, Duration: 1500 * time.Millisecond,
	}))
	require.NoError(t, c.RecordTrial(harness.Trial{
		Case: "cube", Cell: plan.Cells[0], Ordinal: 2, ExitCode: 42, Outcome: solver.Error,
	}))
	trials := []harness.Trial{{Outcome: solver.Win, Duration: time.Second}, {Outcome: solver.Error}}
	require.NoError(t, c.RecordCell(harness.SummaryRow{Case: "cube", Cell: plan.Cells[0], Aggregate: harness.Reduce(trials)}))
	require.NoError(t, c.End(harness.SuiteResult{Totals: harness.Counts{Win: 1, Error: 1}, Elapsed: time.Second}))

	out := buf.String()
	assert.Contains(t, out, "1 cases x 2 cells x 2 repetitions = 4 trials")
	assert.Contains(t, out, "W.  cube [uct_C=0.5] #1 - 1.50s")
	assert.Contains(t, out, "E.  cube [uct_C=0.5] #2 (42) - 0.00s")
	assert.Contains(t, out, "cube [uct_C=0.5]: W=1, L=0, D=0, E=1")
	assert.Contains(t, out, "(total, win, lost, draw, errors) = (2, 1, 0, 0, 1)")
}

func TestProgressModel_StateTransitions_And_View(t *testing.T) {
	m := newProgressModel(NewConsole(io.Discard))
	_, _ = m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	if m.state != progressWaiting {
		t.Fatalf("expected waiting; got %v", m.state)
	}
	if !strings.Contains(m.View(), "preparing") {
		t.Fatalf("expected preparing view; got %s", m.View())
	}

	plan := samplePlan()
	m2, _ := m.Update(planMsg{plan: plan})
	m = m2.(*progressModel)
	if m.state != progressRunning || m.current != "cube [uct_C=0.5]" {
		t.Fatalf("expected running first unit; state=%v current=%q", m.state, m.current)
	}

	for i, o := range []solver.Outcome{solver.Win, solver.Draw} {
		m2, _ = m.Update(trialMsg{trial: harness.Trial{Case: "cube", Cell: plan.Cells[0], Ordinal: i + 1, Outcome: o}})
		m = m2.(*progressModel)
	}
	m2, _ = m.Update(cellMsg{})
	m = m2.(*progressModel)
	if m.done != 2 || m.cells != 1 || m.counts != (harness.Counts{Win: 1, Draw: 1}) {
		t.Fatalf("unexpected progress: done=%d cells=%d counts=%+v", m.done, m.cells, m.counts)
	}
	if m.current != "cube [uct_C=3.0]" {
		t.Fatalf("expected next unit after cell; got %q", m.current)
	}
	assert.InDelta(t, 0.5, m.percent(), 1e-9)

	view := m.View()
	assert.Contains(t, view, "2/4 trials, 1/2 cells")
	assert.Contains(t, view, "D.  cube [uct_C=0.5] #2")

	cancelled := false
	m.cancel = func() { cancelled = true }
	m2, cmd := m.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	m = m2.(*progressModel)
	assert.True(t, cancelled)
	assert.Nil(t, cmd)
	assert.Equal(t, progressStopping, m.state)
	assert.Contains(t, m.View(), "stopping after the current trial")

	m2, cmd = m.Update(doneMsg{res: harness.SuiteResult{Totals: m.counts, Interrupted: true}, err: context.Canceled})
	m = m2.(*progressModel)
	require.NotNil(t, cmd)
	assert.Equal(t, progressDone, m.state)
	view = m.View()
	assert.Contains(t, view, "(total, win, lost, draw, errors) = (2, 1, 0, 1, 0)")
	assert.NotContains(t, view, "Error:")
}

func TestProgressModel_RecentIsBounded(t *testing.T) {
	m := newProgressModel(NewConsole(io.Discard))
	m.Update(planMsg{plan: samplePlan()})
	for i := 0; i < recentLines+5; i++ {
		m.Update(trialMsg{trial: harness.Trial{Case: "cube", Ordinal: i + 1}})
	}
	require.Len(t, m.recent, recentLines)
	assert.Equal(t, recentLines+5, m.recent[recentLines-1].Ordinal)
}

func TestTUI_RunHeadless(t *testing.T) {
	var out bytes.Buffer
	tui := NewTUI(tea.WithInput(nil), tea.WithOutput(&out), tea.WithoutSignalHandler())
	plan := samplePlan()

	res, err := tui.Run(context.Background(), func(ctx context.Context) (harness.SuiteResult, error) {
		assert.NoError(t, tui.Begin(plan))
		assert.NoError(t, tui.RecordTrial(harness.Trial{Case: "cube", Outcome: solver.Loss}))
		assert.NoError(t, tui.RecordCell(harness.SummaryRow{Case: "cube"}))
		assert.NoError(t, tui.End(harness.SuiteResult{}))
		return harness.SuiteResult{RunID: plan.RunID, Totals: harness.Counts{Loss: 1}}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, "r1", res.RunID)
	assert.Equal(t, progressDone, tui.model.state)
	assert.Equal(t, 1, tui.model.done)
}

func TestTUI_RunPropagatesSuiteError(t *testing.T) {
	tui := NewTUI(tea.WithInput(nil), tea.WithOutput(io.Discard), tea.WithoutSignalHandler())
	boom := errors.New("begin failed")
	_, err := tui.Run(context.Background(), func(context.Context) (harness.SuiteResult, error) {
		return harness.SuiteResult{}, boom
	})
	assert.ErrorIs(t, err, boom)
}
