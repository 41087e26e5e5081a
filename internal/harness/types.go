// internal/harness/types.go
// Package: harness
package harness

import (
	"time"

	"github.com/mwiater/solverbench/internal/cases"
	"github.com/mwiater/solverbench/internal/solver"
)

// DefaultRepetitions is how many times each (case, cell) is run unless configured.
const DefaultRepetitions = 10

// StatsVariant selects which duration statistics the reports print.
type StatsVariant string

const (
	// StatsBasic reports mean, min and max.
	StatsBasic StatsVariant = "basic"
	// StatsFull adds median and quartiles.
	StatsFull StatsVariant = "full"
)

// Config configures the entire run.
type Config struct {
	// Solver executable, invoked as: <executable> <params> <input> result
	Executable string `json:"executable"`

	// Directory of input cases, or a single input file.
	CasesPath string `json:"cases_path"`

	// Default parameter document; cases may bring their own.
	ParamsPath string `json:"params_path"`

	// Where logs, CSV, charts and per-cell solver artifacts are written.
	OutputDir string `json:"output_dir"`

	// Optional list of case names to restrict the run to.
	FilterPath string `json:"filter_path,omitempty"`

	// Trials per (case, cell).
	Repetitions int `json:"repetitions"`

	// Parameter axes to sweep. Empty means a single default cell.
	Sweep Sweep `json:"sweep"`

	Stats  StatsVariant `json:"stats"`
	Charts bool         `json:"charts"`

	// Per-trial bound. Zero waits for the solver indefinitely.
	Timeout time.Duration `json:"timeout"`

	InputExt  string `json:"input_ext"`
	ParamsExt string `json:"params_ext"`

	// Keep solver stdout/stderr for every trial, not just failed ones.
	KeepOutput bool `json:"keep_output"`
}

// Unit is one (case, cell) pair ready to run: its parameter document has been
// materialized and its working directory decided.
type Unit struct {
	Case       cases.Case `json:"case"`
	Cell       Cell       `json:"cell"`
	ParamsPath string     `json:"params_path"`
	WorkDir    string     `json:"work_dir"`
}

// Plan is everything decided before the first trial runs.
type Plan struct {
	RunID       string       `json:"run_id"`
	Config      Config       `json:"config"`
	Cases       []cases.Case `json:"cases"`
	Cells       []Cell       `json:"cells"`
	Units       []Unit       `json:"units"`
	Repetitions int          `json:"repetitions"`
}

// TotalTrials is the number of solver invocations the plan will make.
func (p Plan) TotalTrials() int {
	return len(p.Units) * p.Repetitions
}

// Trial captures a single solver invocation.
type Trial struct {
	Case     string         `json:"case"`
	Cell     Cell           `json:"cell"`
	Ordinal  int            `json:"ordinal"` // 1-based within its cell
	ExitCode int            `json:"exit_code"`
	Outcome  solver.Outcome `json:"outcome"`
	Duration time.Duration  `json:"duration_ns"`
	TimedOut bool           `json:"timed_out,omitempty"`

	// Why the solver could not be run, if it could not.
	Err error `json:"-"`
	// Tail of stderr kept for Error outcomes.
	Stderr []byte `json:"-"`
}

// Counts tallies trials per outcome.
type Counts struct {
	Win   int `json:"win"`
	Loss  int `json:"loss"`
	Draw  int `json:"draw"`
	Error int `json:"error"`
}

// Aggregate is the reduction of all trials of one (case, cell). Durations are in
// seconds. Statistics over zero trials are NaN.
type Aggregate struct {
	Counts Counts `json:"counts"`

	Mean   float64 `json:"mean_s"`
	Std    float64 `json:"std_s"`
	Median float64 `json:"median_s"`
	Q1     float64 `json:"q1_s"`
	Q3     float64 `json:"q3_s"`
	Min    float64 `json:"min_s"`
	Max    float64 `json:"max_s"`

	// Per-trial durations in run order.
	Durations []float64 `json:"durations_s"`
}

// SummaryRow is one line of the whole-grid summary.
type SummaryRow struct {
	Case      string    `json:"case"`
	Cell      Cell      `json:"cell"`
	Aggregate Aggregate `json:"aggregate"`
}

// SuiteResult is the top-level artifact returned by Harness.Run.
type SuiteResult struct {
	RunID       string        `json:"run_id"`
	Config      Config        `json:"config"`
	Rows        []SummaryRow  `json:"rows"`
	Totals      Counts        `json:"totals"`
	StartedAt   time.Time     `json:"started_at"`
	FinishedAt  time.Time     `json:"finished_at"`
	Elapsed     time.Duration `json:"elapsed_ns"`
	Interrupted bool          `json:"interrupted,omitempty"`
}
