package harness

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mwiater/solverbench/internal/params"
	"github.com/mwiater/solverbench/internal/solver"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// scriptedRunner returns the given exit statuses in a loop and records every call.
type scriptedRunner struct {
	statuses []int
	calls    []solver.Invocation
	onCall   func(n int)
}

func (r *scriptedRunner) Run(_ context.Context, inv solver.Invocation) solver.Result {
	n := len(r.calls)
	r.calls = append(r.calls, inv)
	if r.onCall != nil {
		r.onCall(n + 1)
	}
	status := 0
	if len(r.statuses) > 0 {
		status = r.statuses[n%len(r.statuses)]
	}
	res := solver.Result{ExitCode: status, Duration: time.Duration(n+1) * time.Second}
	if status == solver.ExitInvocationError {
		res.Err = errors.New("exec: no such file")
	}
	return res
}

type recordingSink struct {
	NopSink
	begun    int
	trials   []Trial
	rows     []SummaryRow
	ended    *SuiteResult
	beginErr error
}

func (s *recordingSink) Begin(Plan) error {
	s.begun++
	return s.beginErr
}

func (s *recordingSink) RecordTrial(t Trial) error {
	s.trials = append(s.trials, t)
	return nil
}

func (s *recordingSink) RecordCell(row SummaryRow) error {
	s.rows = append(s.rows, row)
	return nil
}

func (s *recordingSink) End(res SuiteResult) error {
	s.ended = &res
	return nil
}

// fixture lays out a cases directory and a default parameter document.
func fixture(t *testing.T, caseNames ...string) Config {
	t.Helper()
	root := t.TempDir()
	casesDir := filepath.Join(root, "cases")
	require.NoError(t, os.MkdirAll(casesDir, 0o755))
	for _, n := range caseNames {
		require.NoError(t, os.WriteFile(filepath.Join(casesDir, n+".vtk"), []byte("shape"), 0o644))
	}
	paramsPath := filepath.Join(root, "params.json")
	require.NoError(t, os.WriteFile(paramsPath, []byte(`{"uct_C": 1.0, "utc_D": 50, "seed": 7}`), 0o644))
	return Config{
		Executable: "solver",
		CasesPath:  casesDir,
		ParamsPath: paramsPath,
		OutputDir:  filepath.Join(root, "out"),
	}
}

func TestReduce_Statistics(t *testing.T) {
	var trials []Trial
	for i := 1; i <= 5; i++ {
		trials = append(trials, Trial{Outcome: solver.Win, Duration: time.Duration(i) * time.Second})
	}
	agg := Reduce(trials)
	assert.Equal(t, Counts{Win: 5}, agg.Counts)
	assert.InDelta(t, 3.0, agg.Mean, 1e-9)
	assert.InDelta(t, 3.0, agg.Median, 1e-9)
	assert.InDelta(t, 2.0, agg.Q1, 1e-9)
	assert.InDelta(t, 4.0, agg.Q3, 1e-9)
	assert.InDelta(t, 1.0, agg.Min, 1e-9)
	assert.InDelta(t, 5.0, agg.Max, 1e-9)
	assert.InDelta(t, math.Sqrt(2), agg.Std, 1e-9)
}

func TestReduce_EmptyIsNaN(t *testing.T) {
	agg := Reduce(nil)
	assert.Zero(t, agg.Counts.Total())
	assert.True(t, math.IsNaN(agg.Mean))
	assert.True(t, math.IsNaN(agg.Median))
	assert.True(t, math.IsNaN(agg.Min))

	b, err := agg.MarshalJSON()
	require.NoError(t, err)
	assert.Contains(t, string(b), `"mean_s":null`)
}

func TestSimpleQuantile_Interpolates(t *testing.T) {
	assert.InDelta(t, 1.75, simpleQuantile([]float64{4, 1, 3, 2}, 0.25), 1e-9)
	assert.InDelta(t, 2.5, simpleQuantile([]float64{4, 1, 3, 2}, 0.5), 1e-9)
	assert.InDelta(t, 7.0, simpleQuantile([]float64{7}, 0.75), 1e-9)
}

func TestCounts_TallyMatchesCounts(t *testing.T) {
	c := Counts{Win: 2, Loss: 1, Draw: 0, Error: 3}
	var back Counts
	for _, o := range c.Tally() {
		back.Add(o)
	}
	assert.Equal(t, c, back)
	assert.Equal(t, []solver.Outcome{solver.Win, solver.Win, solver.Loss, solver.Error, solver.Error, solver.Error}, c.Tally())
}

func TestSweep_CellsFirstAxisOutermost(t *testing.T) {
	s, err := ParseSweep([]string{"uct_C=0.5,3.0", "utc_D=100, 1000"})
	require.NoError(t, err)

	cells := s.Cells()
	require.Len(t, cells, 4)
	var labels []string
	for _, c := range cells {
		labels = append(labels, c.Label())
	}
	assert.Equal(t, []string{
		"uct_C=0.5_utc_D=100",
		"uct_C=0.5_utc_D=1000",
		"uct_C=3.0_utc_D=100",
		"uct_C=3.0_utc_D=1000",
	}, labels)
	assert.Equal(t, "uct_C=3.0, utc_D=100", cells[2].Display())
	assert.Equal(t, []string{"uct_C", "utc_D"}, s.Keys())
}

func TestSweep_EmptyHasDefaultCell(t *testing.T) {
	cells := Sweep(nil).Cells()
	require.Len(t, cells, 1)
	assert.Equal(t, DefaultCellLabel, cells[0].Label())
	assert.Empty(t, cells[0].Overrides())
}

func TestParseSweep_Errors(t *testing.T) {
	for _, spec := range [][]string{{"novalue"}, {"=1,2"}, {"k="}, {"k=1", "k=2"}} {
		_, err := ParseSweep(spec)
		assert.Error(t, err, "%v", spec)
	}
	assert.Len(t, Presets["uct"].Cells(), 16)
}

func TestHarness_MixedOutcomes(t *testing.T) {
	cfg := fixture(t, "shape")
	cfg.Repetitions = 3
	runner := &scriptedRunner{statuses: []int{solver.ExitDraw, solver.ExitWin, solver.ExitInvocationError}}
	sink := &recordingSink{}
	core, logs := observer.New(zapcore.WarnLevel)

	res, err := New(cfg, runner, zap.New(core), sink).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Rows, 1)
	row := res.Rows[0]
	assert.Equal(t, "shape", row.Case)
	assert.Equal(t, Counts{Win: 1, Loss: 0, Draw: 1, Error: 1}, row.Aggregate.Counts)
	assert.Equal(t, []float64{1, 2, 3}, row.Aggregate.Durations)
	assert.Equal(t, row.Aggregate.Counts, res.Totals)
	assert.False(t, res.Interrupted)

	require.Len(t, sink.trials, 3)
	for i, tr := range sink.trials {
		assert.Equal(t, i+1, tr.Ordinal)
	}
	assert.Equal(t, solver.Error, sink.trials[2].Outcome)
	assert.Equal(t, solver.ExitInvocationError, sink.trials[2].ExitCode)
	assert.Len(t, sink.rows, 1)
	require.NotNil(t, sink.ended)
	assert.Equal(t, 1, sink.begun)

	warned := logs.FilterMessage("solver run ended in error").All()
	require.Len(t, warned, 1)
	assert.Equal(t, int64(solver.ExitInvocationError), warned[0].ContextMap()["exit_code"])

	// Solver runs inside <out>/<case> with absolute paths.
	for _, inv := range runner.calls {
		assert.Equal(t, filepath.Join(res.Config.OutputDir, "shape"), inv.WorkDir)
		assert.True(t, filepath.IsAbs(inv.InputPath))
		assert.Equal(t, res.Config.ParamsPath, inv.ParamsPath)
	}
	assert.DirExists(t, filepath.Join(res.Config.OutputDir, "shape"))
}

func TestHarness_SweepCoversEveryCell(t *testing.T) {
	cfg := fixture(t, "b", "A")
	cfg.Repetitions = 2
	cfg.Sweep = Sweep{
		{Key: "uct_C", Values: []string{"0.5", "3.0"}},
		{Key: "utc_D", Values: []string{"100", "1000"}},
	}
	runner := &scriptedRunner{statuses: []int{0, 1, 2, 5}}
	sink := &recordingSink{}

	res, err := New(cfg, runner, nil, sink).Run(context.Background())
	require.NoError(t, err)

	require.Len(t, res.Rows, 8)
	total := 0
	for i, row := range res.Rows {
		assert.Equal(t, 2, row.Aggregate.Counts.Total(), "row %d", i)
		total += row.Aggregate.Counts.Total()
	}
	assert.Equal(t, 16, total)
	assert.Equal(t, 16, res.Totals.Total())
	assert.Len(t, runner.calls, 16)

	// Case-major, then cell order.
	assert.Equal(t, "A", res.Rows[0].Case)
	assert.Equal(t, "A", res.Rows[3].Case)
	assert.Equal(t, "b", res.Rows[4].Case)
	assert.Equal(t, 3, res.Rows[3].Cell.Index)

	out := res.Config.OutputDir
	first := runner.calls[0]
	assert.Equal(t, filepath.Join(out, "params_uct_C0.5_utc_D100.json"), first.ParamsPath)
	assert.Equal(t, filepath.Join(out, "A", "uct_C=0.5_utc_D=100"), first.WorkDir)

	doc, err := params.Load(first.ParamsPath)
	require.NoError(t, err)
	assert.JSONEq(t, `0.5`, string(doc.Get("uct_C")))
	assert.JSONEq(t, `100`, string(doc.Get("utc_D")))
	assert.JSONEq(t, `7`, string(doc.Get("seed")))

	seen := map[string]bool{}
	for _, inv := range runner.calls {
		seen[inv.ParamsPath] = true
	}
	assert.Len(t, seen, 4)
}

func TestHarness_CaseOverride(t *testing.T) {
	cfg := fixture(t, "alpha", "beta")
	override := filepath.Join(cfg.CasesPath, "alpha.json")
	require.NoError(t, os.WriteFile(override, []byte(`{"uct_C": 9, "mode": "own"}`), 0o644))
	cfg.Repetitions = 1

	runner := &scriptedRunner{}
	_, err := New(cfg, runner, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, runner.calls, 2)
	assert.Equal(t, override, runner.calls[0].ParamsPath)
	assert.NotEqual(t, override, runner.calls[1].ParamsPath)

	cfg.Sweep = Sweep{{Key: "uct_C", Values: []string{"2"}}}
	runner = &scriptedRunner{}
	res, err := New(cfg, runner, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(res.Config.OutputDir, "alpha", "params_uct_C2.json"), runner.calls[0].ParamsPath)
	assert.Equal(t, filepath.Join(res.Config.OutputDir, "params_uct_C2.json"), runner.calls[1].ParamsPath)

	doc, err := params.Load(runner.calls[0].ParamsPath)
	require.NoError(t, err)
	assert.JSONEq(t, `"own"`, string(doc.Get("mode")))
	assert.JSONEq(t, `2`, string(doc.Get("uct_C")))
}

func TestHarness_BadParamsIsFatal(t *testing.T) {
	cfg := fixture(t, "shape")
	require.NoError(t, os.WriteFile(cfg.ParamsPath, []byte(`{not json`), 0o644))
	runner := &scriptedRunner{}
	sink := &recordingSink{}

	_, err := New(cfg, runner, nil, sink).Run(context.Background())
	var cerr *params.ConfigError
	require.ErrorAs(t, err, &cerr)
	assert.Empty(t, runner.calls)
	assert.Zero(t, sink.begun)
}

func TestHarness_MalformedOverrideWithoutSweepIsPassedThrough(t *testing.T) {
	cfg := fixture(t, "a", "b")
	override := filepath.Join(cfg.CasesPath, "a.json")
	require.NoError(t, os.WriteFile(override, []byte("not json"), 0o644))
	cfg.Repetitions = 2

	runner := &scriptedRunner{}
	res, err := New(cfg, runner, nil).Run(context.Background())
	require.NoError(t, err)
	require.Len(t, runner.calls, 4)
	assert.Equal(t, override, runner.calls[0].ParamsPath)
	assert.Equal(t, cfg.ParamsPath, runner.calls[2].ParamsPath)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, "b", res.Rows[1].Case)

	// A sweep has to rewrite the override, so then it must parse.
	cfg.Sweep = Sweep{{Key: "uct_C", Values: []string{"2"}}}
	_, err = New(cfg, &scriptedRunner{}, nil).Run(context.Background())
	var cerr *params.ConfigError
	assert.ErrorAs(t, err, &cerr)
}

func TestHarness_MissingFields(t *testing.T) {
	_, err := New(Config{}, &scriptedRunner{}, nil).Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "executable")

	cfg := fixture(t, "shape")
	cfg.Stats = "fancy"
	_, err = New(cfg, &scriptedRunner{}, nil).Run(context.Background())
	assert.ErrorContains(t, err, "fancy")
}

func TestHarness_Filter(t *testing.T) {
	cfg := fixture(t, "alpha", "beta", "gamma")
	cfg.Repetitions = 1
	cfg.FilterPath = filepath.Join(t.TempDir(), "filter.json")
	require.NoError(t, os.WriteFile(cfg.FilterPath, []byte(`["gamma", "alpha", "delta"]`), 0o644))

	res, err := New(cfg, &scriptedRunner{}, nil).Run(context.Background())
	require.NoError(t, err)
	var got []string
	for _, r := range res.Rows {
		got = append(got, r.Case)
	}
	assert.Equal(t, []string{"alpha", "gamma"}, got)
}

func TestHarness_MissingFilterRunsEverything(t *testing.T) {
	cfg := fixture(t, "alpha", "beta")
	cfg.Repetitions = 1
	cfg.FilterPath = filepath.Join(t.TempDir(), "nope.json")
	core, logs := observer.New(zapcore.WarnLevel)

	res, err := New(cfg, &scriptedRunner{}, zap.New(core)).Run(context.Background())
	require.NoError(t, err)
	assert.Len(t, res.Rows, 2)
	assert.Equal(t, 1, logs.FilterMessage("no filter file found, running on all cases").Len())
}

func TestHarness_NoCases(t *testing.T) {
	cfg := fixture(t)
	sink := &recordingSink{}
	res, err := New(cfg, &scriptedRunner{}, nil, sink).Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, res.Rows)
	assert.Zero(t, res.Totals.Total())
	require.NotNil(t, sink.ended)
}

func TestHarness_CancelStopsBetweenTrials(t *testing.T) {
	cfg := fixture(t, "one", "two")
	cfg.Repetitions = 3
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cancel during the second trial of the second cell.
	runner := &scriptedRunner{onCall: func(n int) {
		if n == 5 {
			cancel()
		}
	}}
	sink := &recordingSink{}

	res, err := New(cfg, runner, nil, sink).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
	assert.True(t, res.Interrupted)
	assert.Len(t, runner.calls, 5)
	assert.Len(t, sink.trials, 5)
	require.Len(t, res.Rows, 1)
	assert.Equal(t, "one", res.Rows[0].Case)
	require.NotNil(t, sink.ended)
	assert.True(t, sink.ended.Interrupted)
}

func TestHarness_BeginErrorAborts(t *testing.T) {
	cfg := fixture(t, "shape")
	runner := &scriptedRunner{}
	sink := &recordingSink{beginErr: errors.New("disk full")}

	_, err := New(cfg, runner, nil, sink).Run(context.Background())
	require.ErrorContains(t, err, "disk full")
	assert.Empty(t, runner.calls)
	assert.Nil(t, sink.ended)
}

func TestHarness_BeginErrorEndsStartedSinks(t *testing.T) {
	cfg := fixture(t, "shape")
	first := &recordingSink{}
	second := &recordingSink{beginErr: errors.New("database locked")}
	third := &recordingSink{}

	_, err := New(cfg, &scriptedRunner{}, nil, first, second, third).Run(context.Background())
	require.ErrorContains(t, err, "database locked")
	require.NotNil(t, first.ended)
	assert.True(t, first.ended.Interrupted)
	assert.Empty(t, first.ended.Rows)
	assert.Nil(t, second.ended)
	assert.Zero(t, third.begun)
	assert.Nil(t, third.ended)
}
