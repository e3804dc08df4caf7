package cmd

import (
	"runtime/debug"

	"github.com/spf13/cobra"
)

// vcsSettings are the build settings printed after the version, when stamped.
var vcsSettings = []string{"vcs.revision", "vcs.time", "vcs.modified"}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version information",
		Long:  "Displays the mutflow build version, the Go version and the VCS stamp of the binary.",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			info, ok := debug.ReadBuildInfo()
			if !ok {
				cmd.Println("version: unknown")
				return
			}

			printBuildInfo(cmd, info)
		},
	}
}

func printBuildInfo(cmd *cobra.Command, info *debug.BuildInfo) {
	version := info.Main.Version
	if version == "" {
		version = "(devel)"
	}

	cmd.Printf("mutflow\t%s\n", version)
	cmd.Printf("go\t%s\n", info.GoVersion)

	for _, setting := range info.Settings {
		for _, key := range vcsSettings {
			if setting.Key == key {
				cmd.Printf("%s\t%s\n", key, setting.Value)
			}
		}
	}
}

// versionCmd represents the version command.
var versionCmd = newVersionCmd()

func init() {
	rootCmd.AddCommand(versionCmd)
}
