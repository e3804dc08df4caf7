package cmd

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var initForceFlag bool

// initCmd represents the init command.
var initCmd = newInitCmd()

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the current settings to mutflow.yaml",
		Long: `Create mutflow.yaml in the working directory from the current settings
(defaults, environment and flags), covering workspace, timeouts, LLM provider,
tool binaries and logging. Provider keys are better kept in .env.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			target := filepath.Join(configFolderPath, configFileName)

			write := viper.SafeWriteConfigAs
			if initForceFlag {
				write = viper.WriteConfigAs
			}

			if err := write(target); err != nil {
				return fmt.Errorf("write %s: %w", target, err)
			}

			cmd.Printf("wrote %s\n", target)

			return nil
		},
	}

	cmd.Flags().BoolVarP(&initForceFlag, "force", "f", false, "overwrite an existing mutflow.yaml")

	return cmd
}

func init() {
	rootCmd.AddCommand(initCmd)
}
