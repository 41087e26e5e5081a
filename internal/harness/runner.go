// internal/harness/runner.go
// Package: harness
package harness

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mwiater/solverbench/internal/cases"
	"github.com/mwiater/solverbench/internal/params"
	"github.com/mwiater/solverbench/internal/solver"
)

// Harness runs every (case, cell) of a configuration against the solver, one trial
// at a time, and streams the results to its sinks.
type Harness struct {
	cfg    Config
	runner solver.Runner
	sinks  multiSink
	logger *zap.Logger
	now    func() time.Time
}

// New returns a harness. A nil logger discards log output.
func New(cfg Config, runner solver.Runner, logger *zap.Logger, sinks ...Sink) *Harness {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Harness{
		cfg:    cfg,
		runner: runner,
		sinks:  sinks,
		logger: logger,
		now:    time.Now,
	}
}

// Run prepares the plan and executes it. Only configuration problems fail before
// the first trial; afterwards the suite always runs to the end unless ctx is
// cancelled, which stops it between trials.
func (h *Harness) Run(ctx context.Context) (SuiteResult, error) {
	plan, err := h.Prepare()
	if err != nil {
		return SuiteResult{}, err
	}
	return h.Execute(ctx, plan)
}

// Prepare validates the configuration, discovers and filters cases, loads the
// parameter documents and materializes one document per sweep cell.
func (h *Harness) Prepare() (Plan, error) {
	cfg, err := normalize(h.cfg)
	if err != nil {
		return Plan{}, err
	}

	base, err := params.Load(cfg.ParamsPath)
	if err != nil {
		return Plan{}, err
	}

	found, err := cases.Discover(cfg.CasesPath, cfg.InputExt, cfg.ParamsExt)
	if err != nil {
		h.logger.Warn("case discovery found nothing", zap.Error(err))
	}
	found = h.filter(found, cfg.FilterPath)

	if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
		return Plan{}, fmt.Errorf("create output dir: %w", err)
	}

	plan := Plan{
		RunID:       uuid.NewString(),
		Config:      cfg,
		Cases:       found,
		Cells:       cfg.Sweep.Cells(),
		Repetitions: cfg.Repetitions,
	}

	for _, c := range found {
		doc, docPath, paramsDir := base, cfg.ParamsPath, cfg.OutputDir
		if c.ParamsPath != "" {
			docPath, paramsDir = c.ParamsPath, filepath.Join(cfg.OutputDir, c.Name)
			// Without a sweep the override goes to the solver as is.
			if len(cfg.Sweep) > 0 {
				if doc, err = params.Load(c.ParamsPath); err != nil {
					return Plan{}, err
				}
			}
		}

		for _, cell := range plan.Cells {
			u := Unit{Case: c, Cell: cell, ParamsPath: docPath, WorkDir: filepath.Join(cfg.OutputDir, c.Name)}
			if len(cfg.Sweep) > 0 {
				u.WorkDir = filepath.Join(u.WorkDir, cell.Label())
				if u.ParamsPath, err = params.Materialize(doc, paramsDir, cell.Overrides()...); err != nil {
					return Plan{}, fmt.Errorf("materialize %s for %s: %w", cell.Display(), c.Name, err)
				}
			}
			plan.Units = append(plan.Units, u)
		}
	}

	h.logger.Debug("plan ready",
		zap.String("run_id", plan.RunID),
		zap.Int("cases", len(plan.Cases)),
		zap.Int("cells", len(plan.Cells)),
		zap.Int("trials", plan.TotalTrials()))
	return plan, nil
}

func (h *Harness) filter(found []cases.Case, path string) []cases.Case {
	if path == "" {
		return found
	}
	names, err := cases.LoadFilter(path)
	switch {
	case errors.Is(err, cases.ErrNoFilter):
		h.logger.Warn("no filter file found, running on all cases", zap.String("path", path))
		return found
	case err != nil:
		h.logger.Warn("could not read filter list, running on all cases", zap.Error(err))
		return found
	}
	return cases.ApplyFilter(found, names)
}

// Execute runs a prepared plan in case, cell, repetition order.
func (h *Harness) Execute(ctx context.Context, plan Plan) (SuiteResult, error) {
	started := h.now()
	if n, err := h.sinks.begin(plan); err != nil {
		// Sinks that already started still get to close their files.
		aborted := buildSuiteResult(plan, nil, started, h.now())
		aborted.Interrupted = true
		h.warnSink("finish reports", h.sinks[:n].End(aborted))
		return SuiteResult{}, fmt.Errorf("start reports: %w", err)
	}

	rows := make([]SummaryRow, 0, len(plan.Units))
	interrupted := false
	for _, u := range plan.Units {
		trials, complete := h.RunCell(ctx, plan.Config, u)
		if !complete {
			interrupted = true
			break
		}
		row := SummaryRow{Case: u.Case.Name, Cell: u.Cell, Aggregate: Reduce(trials)}
		rows = append(rows, row)
		h.warnSink("record cell", h.sinks.RecordCell(row))
	}

	res := buildSuiteResult(plan, rows, started, h.now())
	res.Interrupted = interrupted
	h.warnSink("finish reports", h.sinks.End(res))
	if interrupted {
		return res, fmt.Errorf("suite interrupted after %d of %d cells: %w", len(rows), len(plan.Units), context.Cause(ctx))
	}
	return res, nil
}

// RunCell runs cfg.Repetitions trials of the unit back to back. It reports false
// when ctx was cancelled before all of them ran; the partial trials are returned.
func (h *Harness) RunCell(ctx context.Context, cfg Config, u Unit) ([]Trial, bool) {
	repetitions := cfg.Repetitions
	if err := os.MkdirAll(u.WorkDir, 0o755); err != nil {
		h.logger.Warn("could not create working directory", zap.String("dir", u.WorkDir), zap.Error(err))
	}

	trials := make([]Trial, 0, repetitions)
	for i := 1; i <= repetitions; i++ {
		if ctx.Err() != nil {
			return trials, false
		}
		t := h.runTrial(ctx, cfg, u, i)
		trials = append(trials, t)
		h.warnSink("record trial", h.sinks.RecordTrial(t))
	}
	return trials, true
}

func (h *Harness) runTrial(ctx context.Context, cfg Config, u Unit, ordinal int) Trial {
	res := h.runner.Run(ctx, solver.Invocation{
		Executable: cfg.Executable,
		ParamsPath: u.ParamsPath,
		InputPath:  u.Case.InputPath,
		WorkDir:    u.WorkDir,
		Timeout:    cfg.Timeout,
	})
	t := Trial{
		Case:     u.Case.Name,
		Cell:     u.Cell,
		Ordinal:  ordinal,
		ExitCode: res.ExitCode,
		Outcome:  solver.Classify(res.ExitCode),
		Duration: res.Duration,
		TimedOut: res.TimedOut,
		Err:      res.Err,
		Stderr:   res.Stderr,
	}
	if t.Outcome == solver.Error {
		h.logger.Warn("solver run ended in error",
			zap.String("case", t.Case),
			zap.String("cell", u.Cell.Display()),
			zap.Int("run", ordinal),
			zap.Int("exit_code", res.ExitCode),
			zap.Bool("timed_out", res.TimedOut),
			zap.Error(res.Err))
		if len(res.Stderr) > 0 {
			h.logger.Debug("solver stderr", zap.String("case", t.Case), zap.ByteString("stderr", res.Stderr))
		}
	}
	return t
}

func (h *Harness) warnSink(op string, err error) {
	if err != nil {
		h.logger.Warn("report sink failed", zap.String("op", op), zap.Error(err))
	}
}

// normalize fills defaults, checks required fields and makes paths absolute so
// they stay valid inside the solver's working directory.
func normalize(cfg Config) (Config, error) {
	var missing []string
	for _, f := range []struct{ name, value string }{
		{"executable", cfg.Executable},
		{"cases path", cfg.CasesPath},
		{"params path", cfg.ParamsPath},
		{"output dir", cfg.OutputDir},
	} {
		if strings.TrimSpace(f.value) == "" {
			missing = append(missing, f.name)
		}
	}
	if len(missing) > 0 {
		return cfg, fmt.Errorf("missing %s", strings.Join(missing, ", "))
	}
	if cfg.Repetitions <= 0 {
		cfg.Repetitions = DefaultRepetitions
	}
	switch cfg.Stats {
	case "":
		cfg.Stats = StatsBasic
	case StatsBasic, StatsFull:
	default:
		return cfg, fmt.Errorf("unknown stats variant %q (want %s or %s)", cfg.Stats, StatsBasic, StatsFull)
	}
	if cfg.InputExt == "" {
		cfg.InputExt = cases.DefaultInputExt
	}
	if cfg.ParamsExt == "" {
		cfg.ParamsExt = cases.DefaultParamsExt
	}
	if err := cfg.Sweep.Validate(); err != nil {
		return cfg, err
	}

	// A bare command name is left to PATH lookup.
	if strings.ContainsRune(cfg.Executable, filepath.Separator) || strings.ContainsRune(cfg.Executable, '/') {
		if abs, err := filepath.Abs(cfg.Executable); err == nil {
			cfg.Executable = abs
		}
	}
	for _, p := range []*string{&cfg.CasesPath, &cfg.ParamsPath, &cfg.OutputDir, &cfg.FilterPath} {
		if *p == "" {
			continue
		}
		abs, err := filepath.Abs(*p)
		if err != nil {
			return cfg, fmt.Errorf("resolve %s: %w", *p, err)
		}
		*p = abs
	}
	return cfg, nil
}
