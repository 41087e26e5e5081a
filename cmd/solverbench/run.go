// cmd/solverbench/run.go
package solverbench

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/k0kubun/pp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mwiater/solverbench/internal/cases"
	"github.com/mwiater/solverbench/internal/chart"
	"github.com/mwiater/solverbench/internal/cli"
	"github.com/mwiater/solverbench/internal/config"
	"github.com/mwiater/solverbench/internal/harness"
	"github.com/mwiater/solverbench/internal/logging"
	"github.com/mwiater/solverbench/internal/metrics"
	"github.com/mwiater/solverbench/internal/report"
	"github.com/mwiater/solverbench/internal/solver"
	"github.com/mwiater/solverbench/internal/store"
)

// LogFile receives the log output while the progress view owns the terminal.
const LogFile = "solverbench.log"

// runCmd represents the 'run' command.
var runCmd = &cobra.Command{
	Use:   "run <solver> <cases-dir-or-file> <params.json> <out-dir> [filter]",
	Short: "Run the benchmark suite",
	Long: `The 'run' command invokes the solver as "<solver> <params> <input> result" for every case,
every sweep cell and every repetition, then writes runs.log, summary.log, results_summary.csv,
durations.csv, manifest.json and the charts into the output directory. Ctrl+C stops the suite
after the current trial; the reports then hold the completed cells.`,
	Args: cobra.RangeArgs(4, 5),
	RunE: runSuite,
}

func init() {
	f := runCmd.Flags()
	f.IntP(config.KeyRepetitions, "n", harness.DefaultRepetitions, "trials per case and sweep cell")
	f.StringArray(config.KeySweep, nil, `sweep axis "key=v1,v2,..." (repeatable)`)
	f.String(config.KeySweepPreset, "", "named sweep, e.g. uct")
	f.String(config.KeyStats, string(harness.StatsBasic), "duration statistics: basic or full")
	f.Bool(config.KeyCharts, true, "render PNG charts after the run")
	f.Duration(config.KeyTimeout, 0, "per-trial timeout, 0 waits indefinitely")
	f.String(config.KeyInputExt, cases.DefaultInputExt, "extension of input cases")
	f.String(config.KeyParamsExt, cases.DefaultParamsExt, "extension of per-case parameter overrides")
	f.Bool(config.KeyKeepOutput, false, "keep solver output for every trial, not only failed ones")
	f.String(config.KeyDB, "", "record the run in this SQLite history database")
	f.Bool(config.KeyMetrics, false, "write "+metrics.FileName+" into the output directory")
	f.Bool(config.KeyTUI, false, "show a live progress view")
	rootCmd.AddCommand(runCmd)
}

func runSuite(cmd *cobra.Command, args []string) error {
	cmd.SilenceUsage = true

	settings, err := resolveSettings(cmd, args)
	if err != nil {
		return err
	}
	if debug {
		pp.Println(settings)
	}
	cfg := settings.Harness

	log := logger
	if settings.TUI {
		if err := os.MkdirAll(cfg.OutputDir, 0o755); err != nil {
			return fmt.Errorf("create output dir: %w", err)
		}
		if log, err = logging.New(verbose, filepath.Join(cfg.OutputDir, LogFile)); err != nil {
			return err
		}
		defer log.Sync()
	}

	sinks := []harness.Sink{report.NewWriter(cfg.OutputDir, log)}
	var tui *cli.TUI
	if settings.TUI {
		tui = cli.NewTUI()
		sinks = append(sinks, tui)
	} else {
		sinks = append(sinks, cli.NewConsole(cmd.OutOrStdout()))
	}
	if settings.DBPath != "" {
		st, err := store.Open(settings.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		sinks = append(sinks, st)
	}
	if settings.Metrics {
		sinks = append(sinks, metrics.NewRecorder(filepath.Join(cfg.OutputDir, metrics.FileName)))
	}

	h := harness.New(cfg, solver.ExecRunner{KeepOutput: cfg.KeepOutput}, log, sinks...)
	plan, err := h.Prepare()
	if err != nil {
		return err
	}
	if len(plan.Units) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "no cases to run in", cfg.CasesPath)
		return nil
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var res harness.SuiteResult
	if tui != nil {
		res, err = tui.Run(ctx, func(ctx context.Context) (harness.SuiteResult, error) {
			return h.Execute(ctx, plan)
		})
	} else {
		res, err = h.Execute(ctx, plan)
	}

	if plan.Config.Charts && len(res.Rows) > 0 {
		written, cerr := chart.RenderAll(plan.Config.OutputDir, res.Rows, plan.Config.Stats, log)
		if cerr != nil {
			log.Warn("some charts were not rendered", zap.Error(cerr))
		}
		log.Debug("charts rendered", zap.Strings("files", written))
	}
	return err
}

// resolveSettings layers flags over environment over the config file.
func resolveSettings(cmd *cobra.Command, args []string) (config.Settings, error) {
	v := config.New()
	if err := config.ReadFile(v, cfgFile); err != nil {
		return config.Settings{}, err
	}
	if err := config.BindFlags(v, cmd.Flags()); err != nil {
		return config.Settings{}, err
	}
	// Bound string arrays come back comma-split, which breaks "key=v1,v2".
	if cmd.Flags().Changed(config.KeySweep) {
		specs, err := cmd.Flags().GetStringArray(config.KeySweep)
		if err != nil {
			return config.Settings{}, err
		}
		v.Set(config.KeySweep, specs)
	}
	config.SetArgs(v, args)
	return config.Load(v)
}
