// Package metrics exposes a run's trial counters in Prometheus text format, written
// once the suite ends so a node_exporter textfile collector can pick them up.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/mwiater/solverbench/internal/harness"
	"github.com/mwiater/solverbench/internal/solver"
)

// FileName is the textfile written under the output directory.
const FileName = "metrics.prom"

// Recorder is a harness sink backed by its own registry, so several runs in one
// process never share counters.
type Recorder struct {
	path string
	reg  *prometheus.Registry

	// TrialsTotal counts finished trials by outcome (win, loss, draw, error).
	TrialsTotal *prometheus.CounterVec
	// TrialDuration is the wall-clock duration of every solver invocation.
	// Buckets span 10ms to ~20min, enough for a one-million-rollout search.
	TrialDuration prometheus.Histogram
	// CellsCompleted counts (case, cell) pairs whose repetitions all ran.
	CellsCompleted prometheus.Gauge
	// TrialsPlanned is the total the run will make if not interrupted.
	TrialsPlanned prometheus.Gauge
	// Interrupted is 1 when the run was cancelled before the last trial.
	Interrupted prometheus.Gauge
}

var _ harness.Sink = (*Recorder)(nil)

// NewRecorder returns a recorder that writes to path at the end of the run.
func NewRecorder(path string) *Recorder {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)
	return &Recorder{
		path: path,
		reg:  reg,
		TrialsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "solverbench_trials_total",
				Help: "Solver invocations by classified outcome.",
			},
			[]string{"outcome"},
		),
		TrialDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "solverbench_trial_duration_seconds",
			Help:    "Wall-clock duration of a single solver invocation.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 17),
		}),
		CellsCompleted: f.NewGauge(prometheus.GaugeOpts{
			Name: "solverbench_cells_completed",
			Help: "Number of (case, parameter cell) pairs fully run.",
		}),
		TrialsPlanned: f.NewGauge(prometheus.GaugeOpts{
			Name: "solverbench_trials_planned",
			Help: "Number of solver invocations the run was planned to make.",
		}),
		Interrupted: f.NewGauge(prometheus.GaugeOpts{
			Name: "solverbench_run_interrupted",
			Help: "1 if the run was interrupted before completing.",
		}),
	}
}

// Registry exposes the recorder's collectors, e.g. for an HTTP handler.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

func (r *Recorder) Begin(plan harness.Plan) error {
	// Every outcome series exists from the start, even at zero.
	for _, o := range solver.Outcomes() {
		r.TrialsTotal.WithLabelValues(o.String())
	}
	r.TrialsPlanned.Set(float64(plan.TotalTrials()))
	return nil
}

func (r *Recorder) RecordTrial(t harness.Trial) error {
	r.TrialsTotal.WithLabelValues(t.Outcome.String()).Inc()
	r.TrialDuration.Observe(t.Duration.Seconds())
	return nil
}

func (r *Recorder) RecordCell(harness.SummaryRow) error {
	r.CellsCompleted.Inc()
	return nil
}

// End writes the textfile.
func (r *Recorder) End(res harness.SuiteResult) error {
	if res.Interrupted {
		r.Interrupted.Set(1)
	}
	if err := prometheus.WriteToTextfile(r.path, r.reg); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	return nil
}
