// cmd/solverbench/history.go
package solverbench

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/mwiater/solverbench/internal/config"
	"github.com/mwiater/solverbench/internal/harness"
	"github.com/mwiater/solverbench/internal/report"
	"github.com/mwiater/solverbench/internal/store"
)

// historyCmd lists runs recorded with --db, or the cells of one run.
var historyCmd = &cobra.Command{
	Use:   "history [run-id]",
	Short: "Show runs recorded in the history database",
	Long:  `The 'history' command lists the newest runs recorded with 'run --db'. Given a run id it prints that run's per-cell summary lines instead.`,
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		v := config.New()
		if err := config.ReadFile(v, cfgFile); err != nil {
			return err
		}
		if err := config.BindFlags(v, cmd.Flags()); err != nil {
			return err
		}
		path := v.GetString(config.KeyDB)
		if path == "" {
			return errors.New("no history database: pass --db or set db in the config file")
		}

		st, err := store.Open(path)
		if err != nil {
			return err
		}
		defer st.Close()

		out := cmd.OutOrStdout()
		if len(args) == 1 {
			rows, err := st.Cells(args[0])
			if err != nil {
				return err
			}
			if len(rows) == 0 {
				return fmt.Errorf("run %s has no recorded cells", args[0])
			}
			for _, row := range rows {
				fmt.Fprintln(out, report.CellLine(row, harness.StatsFull))
			}
			return nil
		}

		limit, _ := cmd.Flags().GetInt("limit")
		runs, err := st.Runs(limit)
		if err != nil {
			return err
		}
		for _, r := range runs {
			status := "finished"
			switch {
			case r.Interrupted:
				status = "interrupted"
			case r.FinishedAt.IsZero():
				status = "incomplete"
			}
			fmt.Fprintf(out, "%s  %s  %-11s  W=%d L=%d D=%d E=%d  n=%d  %s %s\n",
				r.ID, r.StartedAt.Local().Format(time.DateTime), status,
				r.Totals.Win, r.Totals.Loss, r.Totals.Draw, r.Totals.Error,
				r.Repetitions, r.Executable, r.CasesPath)
		}
		return nil
	},
}

func init() {
	historyCmd.Flags().String(config.KeyDB, "", "SQLite history database")
	historyCmd.Flags().IntP("limit", "n", 20, "number of runs to list")
	rootCmd.AddCommand(historyCmd)
}
