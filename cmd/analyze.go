package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mutflow.dev/pkg/mutflow/internal/domain"
)

// analyzeCmd represents the analyze command.
var analyzeCmd = newAnalyzeCmd()

func newAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze {pit|major}",
		Short: "Run an external mutation tool and import its report",
		Long: `Run PIT (through Maven) or Major (through defects4j mutation) on every
project, map the tool's statuses onto mutflow verdicts and append them to
the ledger. Raw reports are kept under the reports directory.`,
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{domain.ToolPIT, domain.ToolMajor},
		RunE: func(cmd *cobra.Command, args []string) error {
			defer flushMetrics()

			return workflow.Analyze(cmd.Context(), domain.AnalyzeArgs{
				ProjectsFile:  configuredPath(projectsKey),
				Tool:          args[0],
				Ledger:        configuredPath(ledgerKey),
				ReportsDir:    configuredPath(reportsDirKey),
				WorkspaceRoot: configuredPath(workspaceRootKey),
				Parallel:      viper.GetInt(parallelKey),
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
