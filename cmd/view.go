package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"qtsync.dev/pkg/qtsync/internal/domain"
)

// viewCmd represents the view command.
var viewCmd = newViewCmd()

func newViewCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "view",
		Short: "View the summary of the latest sync",
		Long:  "View which test cases the latest sync published, read from the output directory.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			return workflow.View(cmd.Context(), domain.ViewArgs{Reports: viper.GetString(outputFlagName)})
		},
	}

	return cmd
}

func init() {
	rootCmd.AddCommand(viewCmd)
}
