package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	domainmocks "qtsync.dev/pkg/qtsync/internal/domain/mocks"
)

// newTestRootCmd builds a root command with sub and a mocked workflow. Logs go
// to a temporary file.
func newTestRootCmd(t *testing.T, sub *cobra.Command) (*cobra.Command, *domainmocks.MockWorkflow) {
	t.Helper()

	mockWorkflow := domainmocks.NewMockWorkflow(t)

	originalWorkflow := workflow
	workflow = mockWorkflow

	t.Cleanup(func() { workflow = originalWorkflow })

	viper.Set(logFilenameKey, filepath.Join(t.TempDir(), "qtsync.log"))

	cmd := newRootCmd()
	cmd.AddCommand(sub)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	return cmd, mockWorkflow
}
