package cmd

import (
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"qtsync.dev/pkg/qtsync/internal/adapter"
	"qtsync.dev/pkg/qtsync/internal/domain"
)

// replayCmd represents the replay command.
var replayCmd = newReplayCmd()

func newReplayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "replay <journal>",
		Short: "Publish the results of a previously journaled run",
		Long: `Replay the events recorded by 'qtsync run' and publish them again, for
example after qTest was unreachable during the original run.`,
		Args:         cobra.ExactArgs(1),
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := loadConfig()

			_, err := workflow.Sync(cmd.Context(), domain.SyncArgs{
				Config:  &cfg,
				Source:  adapter.NewJournalEventSource(args[0]),
				Reports: viper.GetString(outputFlagName),
			})

			return err
		},
	}
}

func init() {
	rootCmd.AddCommand(replayCmd)
}
