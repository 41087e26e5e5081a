// cmd/solverbench/root.go
package solverbench

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mwiater/solverbench/internal/logging"
)

var (
	cfgFile string
	verbose bool
	debug   bool

	logger = zap.NewNop()
)

// rootCmd is the base Cobra command for solverbench.
// All subcommands are attached to this root to form the complete CLI.
var rootCmd = &cobra.Command{
	Use:   "solverbench",
	Short: "Benchmark harness for an external game-tree solver",
	Long: `solverbench runs a solver executable over a set of input cases, optionally across a grid of
parameter values, classifies every run by its exit code and writes logs, CSV summaries and charts.`,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		l, err := logging.New(verbose)
		if err != nil {
			return err
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

// Execute runs the root Cobra command and all registered subcommands.
// It prints any returned error and exits the process with a non-zero
// status code on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./solverbench.yaml)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "print the resolved configuration before running")
}
