// cmd/solverbench/list_commands.go
package solverbench

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
)

var commandsCmd = &cobra.Command{
	Use:   "commands",
	Short: "Print the command tree with one-line descriptions",
	Long:  `The 'commands' subcommand prints every solverbench command, nested under its parent, followed by its short description in an aligned second column.`,
	Run: func(cmd *cobra.Command, args []string) {
		listAllCommands(cmd.OutOrStdout(), rootCmd)
	},
}

func init() {
	listCmd.AddCommand(commandsCmd)
}

// commandRow is one line of the tree: the full command path and its nesting depth.
type commandRow struct {
	path  string
	depth int
	short string
}

// listAllCommands prints the tree under root. Help and completion are left out.
func listAllCommands(out io.Writer, root *cobra.Command) {
	rows := walkCommands(root, 0, nil)

	width := 0
	for _, r := range rows {
		width = max(width, 2*r.depth+len(r.path))
	}

	fmt.Fprintln(out, "Commands and Subcommands:")
	for _, r := range rows {
		label := strings.Repeat("  ", r.depth) + r.path
		fmt.Fprintf(out, "  %-*s  %s\n", width, label, r.short)
	}
}

func walkCommands(cmd *cobra.Command, depth int, rows []commandRow) []commandRow {
	rows = append(rows, commandRow{path: cmd.CommandPath(), depth: depth, short: cmd.Short})
	for _, sub := range cmd.Commands() {
		if sub.IsAvailableCommand() {
			rows = walkCommands(sub, depth+1, rows)
		}
	}
	return rows
}
