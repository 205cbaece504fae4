package cmd

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qtsync.dev/pkg/qtsync/internal/domain"
)

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "qtsync", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.Equal(t, rootLongDescription, cmd.Long)
	assert.NotNil(t, cmd.PersistentFlags().Lookup(outputFlagName))
	assert.NotNil(t, cmd.PersistentFlags().Lookup(configFlagName))
	assert.NotNil(t, cmd.PersistentFlags().ShorthandLookup("v"))
}

func TestRootCmd_HelpOutput(t *testing.T) {
	cmd, _ := newTestRootCmd(t, newVersionCmd())
	output := &bytes.Buffer{}
	cmd.SetOut(output)

	cmd.SetArgs([]string{})
	require.NoError(t, cmd.Execute())

	assert.Contains(t, output.String(), "Usage:")
	assert.Contains(t, output.String(), "@qTest[<test case id>]")
}

func TestRootCmd_SubcommandsRegistered(t *testing.T) {
	names := map[string]bool{}
	for _, sub := range rootCmd.Commands() {
		names[sub.Name()] = true
	}

	for _, want := range []string{"run", "replay", "view", "init", "version"} {
		assert.True(t, names[want], want)
	}
}

func TestInit(t *testing.T) {
	assert.NotNil(t, reportStore)
	assert.NotNil(t, workflow)
}

func TestExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}

	exitErr := exec.Command("sh", "-c", "exit 3").Run()
	require.Error(t, exitErr)

	killedErr := exec.Command("sh", "-c", "kill -TERM $$").Run()
	require.Error(t, killedErr)

	tests := []struct {
		name string
		err  error
		want int
	}{
		{"plain error", errors.New("boom"), 1},
		{"runner exit", exitErr, 3},
		{"wrapped runner exit", fmt.Errorf("runner %q: %w", "sh", exitErr), 3},
		{"runner killed by signal", killedErr, 143},
		{"interrupted sync", domain.ErrInterrupted, 130},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestExecute(t *testing.T) {
	originalRootCmd := rootCmd
	defer func() { rootCmd = originalRootCmd }()

	mockCmd := &cobra.Command{
		Use: "test",
		RunE: func(_ *cobra.Command, _ []string) error {
			return nil
		},
	}
	mockCmd.SetOut(&bytes.Buffer{})
	mockCmd.SetErr(&bytes.Buffer{})
	mockCmd.SetArgs([]string{})

	rootCmd = mockCmd

	Execute()
}

func TestExecute_ProcessLevel_RunnerExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires sh")
	}

	if os.Getenv("TEST_EXECUTE_SUBPROCESS") == "1" {
		rootCmd.SetArgs([]string{"run", "--", "sh", "-c", "echo runner output; exit 3"})
		Execute()

		return
	}

	dir := t.TempDir()

	cmd := exec.Command(os.Args[0], "-test.run=TestExecute_ProcessLevel_RunnerExitCode")
	cmd.Env = append(os.Environ(),
		"TEST_EXECUTE_SUBPROCESS=1",
		"QTSYNC_OUTPUT="+dir,
		"QTSYNC_LOG_FILENAME="+filepath.Join(dir, "qtsync.log"),
		"QTSYNC_HIDE_WARNING=true",
	)
	output, err := cmd.CombinedOutput()

	var exitErr *exec.ExitError
	require.ErrorAs(t, err, &exitErr, "output: %s", output)
	assert.Equal(t, 3, exitErr.ExitCode())
	assert.Contains(t, string(output), "runner output")

	assert.FileExists(t, filepath.Join(dir, "events.gob"))
}
