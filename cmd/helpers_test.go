package cmd

import (
	"bytes"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"

	domainmocks "mutflow.dev/pkg/mutflow/internal/domain/mocks"
)

// newTestRootCmd returns a root command with subs attached and a mock workflow
// installed for the duration of the test.
func newTestRootCmd(t *testing.T, subs ...*cobra.Command) (*cobra.Command, *domainmocks.MockWorkflow) {
	t.Helper()
	t.Setenv("MUTFLOW_LOG_FILENAME", filepath.Join(t.TempDir(), "mutflow.log"))

	mockWorkflow := domainmocks.NewMockWorkflow(t)

	originalWorkflow := workflow
	workflow = mockWorkflow

	t.Cleanup(func() { workflow = originalWorkflow })

	cmd := newRootCmd()
	cmd.AddCommand(subs...)
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})

	return cmd, mockWorkflow
}
