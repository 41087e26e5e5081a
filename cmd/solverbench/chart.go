// cmd/solverbench/chart.go
package solverbench

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/mwiater/solverbench/internal/chart"
	"github.com/mwiater/solverbench/internal/report"
)

// chartCmd re-renders the charts of a finished run from its summary CSV.
var chartCmd = &cobra.Command{
	Use:   "chart <out-dir>",
	Short: "Render charts from a run's results_summary.csv",
	Long:  `The 'chart' command reads results_summary.csv from an output directory written by 'run' and renders the PNG charts next to it. Use it after a run with --charts=false or to redraw an interrupted run.`,
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cmd.SilenceUsage = true
		dir := args[0]
		summary, err := report.ReadSummary(filepath.Join(dir, report.SummaryCSV))
		if err != nil {
			return err
		}
		written, err := chart.RenderAll(dir, summary.Rows, summary.Stats, logger)
		for _, path := range written {
			fmt.Fprintln(cmd.OutOrStdout(), path)
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(chartCmd)
}
