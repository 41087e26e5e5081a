// cmd/solverbench/list_cases.go
package solverbench

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/mwiater/solverbench/internal/cases"
)

// listCasesCmd implements 'list cases', a dry run of case discovery and filtering.
var listCasesCmd = &cobra.Command{
	Use:   "cases <dir-or-file> [filter]",
	Short: "List the cases a run would execute",
	Long:  `The 'cases' subcommand discovers input cases the same way 'run' does, applies the optional filter document and prints each case with its parameter override, if any.`,
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		inputExt, _ := cmd.Flags().GetString("input-ext")
		paramsExt, _ := cmd.Flags().GetString("params-ext")

		found, err := cases.Discover(args[0], inputExt, paramsExt)
		if err != nil {
			logger.Warn("case discovery found nothing", zap.Error(err))
		}
		if len(args) == 2 {
			names, err := cases.LoadFilter(args[1])
			switch {
			case errors.Is(err, cases.ErrNoFilter):
				logger.Warn("no filter file found, running on all cases", zap.String("path", args[1]))
			case err != nil:
				logger.Warn("could not read filter list, running on all cases", zap.Error(err))
			default:
				found = cases.ApplyFilter(found, names)
			}
		}

		out := cmd.OutOrStdout()
		if len(found) == 0 {
			fmt.Fprintln(out, "no cases")
			return nil
		}
		width := 0
		for _, c := range found {
			width = max(width, len(c.Name))
		}
		fmt.Fprintf(out, "%d cases:\n", len(found))
		for _, c := range found {
			override := "-"
			if c.ParamsPath != "" {
				override = c.ParamsPath
			}
			fmt.Fprintf(out, "  %s%s%s  %s\n", c.Name, strings.Repeat(" ", width-len(c.Name)+2), c.InputPath, override)
		}
		return nil
	},
}

func init() {
	listCasesCmd.Flags().String("input-ext", cases.DefaultInputExt, "extension of input cases")
	listCasesCmd.Flags().String("params-ext", cases.DefaultParamsExt, "extension of per-case parameter overrides")
	listCmd.AddCommand(listCasesCmd)
}
