package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"qtsync.dev/pkg/qtsync/internal/adapter"
	"qtsync.dev/pkg/qtsync/internal/domain"
)

const runLongDescription = `Run a test runner and publish its results to qTest.

The runner must write one JSON lifecycle event per line to stdout; any other
output is passed through unchanged. Events can also be read from a file, or
from stdin with --events -.

Examples:
  qtsync run -- npx mocha --reporter qtsync-events
  qtsync run --events results.jsonl
  my-runner | qtsync run --events -

qtsync exits with the runner's exit code. Publishing problems are reported as
warnings and never change it.`

var errNoEventSource = errors.New("either --events or a runner command is required")

var runEventsFlag string
var runJournalFlag string

// runCmd represents the run command.
var runCmd = newRunCmd()

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "run [--events file|-] [-- runner command...]",
		Short:        "Run tests and publish their results",
		Long:         runLongDescription,
		SilenceUsage: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			source, closeSource, err := openEventSource(cmd, runEventsFlag, args)
			if err != nil {
				return err
			}
			defer closeSource()

			cfg := loadConfig()
			reportsPath := viper.GetString(outputFlagName)

			_, err = workflow.Sync(cmd.Context(), domain.SyncArgs{
				Config:  &cfg,
				Source:  source,
				Reports: reportsPath,
				Journal: journalPath(reportsPath, runJournalFlag),
			})

			return err
		},
	}

	configureRunFlags(cmd)

	return cmd
}

func init() {
	rootCmd.AddCommand(runCmd)
}

func configureRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&runEventsFlag, eventsFlagName, "e", "", "read events from a file, or - for stdin, instead of running a command")
	cmd.Flags().StringVar(&runJournalFlag, journalFlagName, "", "event journal path (default <output>/"+defaultJournalName+")")
}

func openEventSource(cmd *cobra.Command, events string, command []string) (adapter.EventSource, func(), error) {
	noop := func() {}

	switch {
	case events != "" && len(command) > 0:
		return nil, noop, errors.New("--events cannot be combined with a runner command")
	case len(command) > 0:
		return adapter.NewCommandEventSource(command, "", cmd.OutOrStdout(), cmd.ErrOrStderr()), noop, nil
	case events == "-":
		return adapter.NewReaderEventSource(cmd.InOrStdin()), noop, nil
	case events != "":
		file, err := os.Open(events)
		if err != nil {
			return nil, noop, fmt.Errorf("open events: %w", err)
		}

		return adapter.NewReaderEventSource(file), closer(file), nil
	}

	return nil, noop, errNoEventSource
}

func closer(c io.Closer) func() {
	return func() {
		_ = c.Close()
	}
}
