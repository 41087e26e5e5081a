// cmd/solverbench/list.go
package solverbench

import (
	"github.com/spf13/cobra"
)

// listCmd only groups 'list cases' and 'list commands'.
var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Inspect cases and commands without running anything",
	Long:  `The 'list' command holds read-only subcommands: 'cases' shows what a run would execute and 'commands' prints the command tree.`,
}

func init() {
	rootCmd.AddCommand(listCmd)
}
