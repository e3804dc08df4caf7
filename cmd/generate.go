package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"mutflow.dev/pkg/mutflow/internal/domain"
)

// generateCmd represents the generate command.
var generateCmd = newGenerateCmd()

func newGenerateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "generate",
		Short: "Prompt the model(s) for mutants and save them without testing",
		Long: `Check out and compile every project, prompt each configured model for
mutants and save them under <mutants-dir>/<project>_<bug>/<model>.yaml.
The files can be evaluated later with "mutflow run --source file".`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			defer flushMetrics()

			return workflow.Generate(cmd.Context(), domain.GenerateArgs{
				ProjectsFile:  configuredPath(projectsKey),
				Models:        viper.GetStringSlice(llmModelsKey),
				MutantsDir:    configuredPath(mutantsDirKey),
				WorkspaceRoot: configuredPath(workspaceRootKey),
				Parallel:      viper.GetInt(parallelKey),
			})
		},
	}
}

func init() {
	rootCmd.AddCommand(generateCmd)
}
