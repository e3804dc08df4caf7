package cmd

import (
	"github.com/spf13/cobra"

	"mutflow.dev/pkg/mutflow/internal/domain"
	m "mutflow.dev/pkg/mutflow/internal/model"
)

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "view [ledger...]",
		Short: "Score one or more result ledgers",
		Long: `Load the given ledgers (default: the configured ledger) and print the
mutation score with per project, class, mutator, method and origin tables.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ledgers := []m.Path{configuredPath(ledgerKey)}
			if len(args) > 0 {
				ledgers = parsePaths(args)
			}

			return workflow.View(cmd.Context(), domain.ViewArgs{Ledgers: ledgers})
		},
	}
}

func init() {
	rootCmd.AddCommand(viewCmd)
}

func parsePaths(args []string) []m.Path {
	paths := make([]m.Path, 0, len(args))
	for _, arg := range args {
		paths = append(paths, m.Path(arg))
	}

	return paths
}
