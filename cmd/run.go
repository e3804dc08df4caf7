package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mutflow.dev/pkg/mutflow/internal/domain"
)

var runSourceFlag string

// runCmd represents the run command.
var runCmd = newRunCmd()

const runLongDescription = `Evaluate mutants against every project of the projects CSV.

Mutants come from one of three sources:
  - llm     prompt the configured model(s) for each source file
  - file    replay mutants saved by "mutflow generate"
  - major   resolve the mutants.log Major wrote for the project

Each mutant is applied to a clean working copy, the project is compiled and
tested, and one verdict row is appended to the ledger.`

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Apply mutants one at a time and record verdicts",
		Long:  runLongDescription,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			source, err := parseSourceKind(runSourceFlag)
			if err != nil {
				return err
			}

			defer flushMetrics()

			return workflow.Run(cmd.Context(), domain.RunArgs{
				ProjectsFile:  configuredPath(projectsKey),
				Source:        source,
				Models:        viper.GetStringSlice(llmModelsKey),
				MutantsDir:    configuredPath(mutantsDirKey),
				MajorDir:      configuredPath(majorDirKey),
				Ledger:        configuredPath(ledgerKey),
				WorkspaceRoot: configuredPath(workspaceRootKey),
				Parallel:      viper.GetInt(parallelKey),
			})
		},
	}

	cmd.Flags().StringVarP(&runSourceFlag, sourceFlagName, "s", string(domain.SourceLLM), "mutant source (llm|file|major)")

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func parseSourceKind(value string) (domain.SourceKind, error) {
	switch kind := domain.SourceKind(value); kind {
	case domain.SourceLLM, domain.SourceFile, domain.SourceMajor:
		return kind, nil
	default:
		return "", fmt.Errorf("unknown mutant source %q (want llm, file or major)", value)
	}
}
