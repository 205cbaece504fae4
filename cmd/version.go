package cmd

import (
	"runtime/debug"

	"github.com/spf13/cobra"

	"qtsync.dev/pkg/qtsync/internal/adapter"
)

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Show the version information",
		Long:  "Displays the qtsync build version, the qTest API version it publishes to and the Go version used to build it.",
		Run: func(cmd *cobra.Command, _ []string) {
			version := "unknown"
			goVersion := "unknown"

			if info, ok := debug.ReadBuildInfo(); ok {
				goVersion = info.GoVersion

				if info.Main.Version != "" {
					version = info.Main.Version
				}
			}

			cmd.Println("qtsync version\t", version)
			cmd.Println("qtest api\t", adapter.APIVersion)
			cmd.Println("go version\t", goVersion)
		},
	}
}

// versionCmd represents the version command.
var versionCmd = newVersionCmd()

func init() {
	rootCmd.AddCommand(versionCmd)
}
