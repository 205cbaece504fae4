// Package cmd provides the root command and CLI setup for qtsync.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"os/exec"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"qtsync.dev/pkg/qtsync/internal/adapter"
	"qtsync.dev/pkg/qtsync/internal/controller"
	"qtsync.dev/pkg/qtsync/internal/domain"
	m "qtsync.dev/pkg/qtsync/internal/model"
)

// signalExitBase is added to a signal number to form the shell's exit status.
const signalExitBase = 128

var reportStore adapter.ReportStore
var workflow domain.Workflow

// reportsOutputDirFlag is a root-level flag shared by commands that read/write summaries.
var reportsOutputDirFlag string

var configFileFlag string
var verboseFlag bool

func init() {
	reportStore = adapter.NewReportStore()
	workflow = domain.NewWorkflow(reportStore, newQTestClient, newConsoleUI)
}

func newQTestClient(cfg *m.Config) adapter.QTestClient {
	return adapter.NewHTTPQTestClient(cfg)
}

func newConsoleUI(cfg *m.Config) controller.UI {
	return controller.NewSimpleUI(rootCmd,
		controller.WithEventLog(cfg.EnableLogs),
		controller.WithWarnings(!cfg.HideWarning),
	)
}

const rootLongDescription = `qtsync publishes test runner results to qTest.

It consumes the runner's lifecycle events, associates every test tagged with
@qTest[<test case id>] with a test run in a qTest test suite, and posts one
execution log per test case once the run has ended.

Credentials and the destination suite are read from qtsync.yaml, QTSYNC_*
environment variables (QTEST_SUITE_ID and QTEST_BUILD_URL are also honored)
or flags. Missing settings disable publishing but never fail the test run.`

// rootCmd represents the base command when called without any subcommands.
var rootCmd = newRootCmd()

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "qtsync",
		Short: "Sync test runner results to qTest",
		Long:  rootLongDescription,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := readConfig(configFileFlag); err != nil {
				return err
			}

			configureLogger(viper.GetString(logFilenameKey), viper.GetBool(logVerboseKey))

			return nil
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			return cmd.Help()
		},
	}

	configureRootFlags(cmd)

	return cmd
}

func configureRootFlags(cmd *cobra.Command) {
	cmd.PersistentFlags().
		StringVarP(
			&reportsOutputDirFlag, outputFlagName, "o",
			defaultReportsDir,
			"output directory for sync summaries and the event journal",
		)
	bindFlagToConfig(cmd.PersistentFlags().Lookup(outputFlagName), outputFlagName)

	cmd.PersistentFlags().StringVar(&configFileFlag, configFlagName, "", "config file (default ./"+configFileName+")")

	cmd.PersistentFlags().BoolVarP(&verboseFlag, verboseFlagName, "v", defaultLogVerbose, "write debug logs")
	bindFlagToConfig(cmd.PersistentFlags().Lookup(verboseFlagName), logVerboseKey)
}

// bindFlagToConfig wires a Cobra flag to a Viper key so config/env values feed the flag.
func bindFlagToConfig(flag *pflag.Flag, key string) {
	if flag == nil {
		cobra.CheckErr(fmt.Errorf("flag for config key %q not found", key))
		return
	}

	cobra.CheckErr(viper.BindPFlag(key, flag))
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). A runner that exits non-zero makes qtsync exit
// with the same code.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

func exitCode(err error) int {
	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		if code := exitErr.ExitCode(); code > 0 {
			return code
		}

		if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
			return signalExitBase + int(status.Signal())
		}
	}

	if errors.Is(err, domain.ErrInterrupted) {
		return signalExitBase + int(syscall.SIGINT)
	}

	return 1
}
