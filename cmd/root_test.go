package cmd

import (
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mutflow.dev/pkg/mutflow/internal/adapter"
	m "mutflow.dev/pkg/mutflow/internal/model"
)

func TestParsePaths(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want []m.Path
	}{
		{"empty", []string{}, []m.Path{}},
		{"single", []string{"ledger.csv"}, []m.Path{m.Path("ledger.csv")}},
		{
			"multiple",
			[]string{"llm.csv", "pit.csv", "major.csv"},
			[]m.Path{m.Path("llm.csv"), m.Path("pit.csv"), m.Path("major.csv")},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parsePaths(tt.args)
			require.Len(t, got, len(tt.want))
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRootCmd(t *testing.T) {
	cmd := newRootCmd()
	assert.Equal(t, "mutflow", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.Equal(t, rootLongDescription, cmd.Long)

	for _, name := range []string{
		projectsFlagName, workspaceFlagName, resetFlagName, parallelFlagName, ledgerFlagName,
		mutantsDirFlagName, reportsDirFlagName, majorDirFlagName, modelFlagName,
		focusTestsFlagName, testTimeoutFlagName, verboseFlagName,
	} {
		assert.NotNil(t, cmd.PersistentFlags().Lookup(name), name)
	}
}

func TestRootCmd_HelpOutput(t *testing.T) {
	cmd, _ := newTestRootCmd(t)
	output := &bytes.Buffer{}
	cmd.SetOut(output)

	cmd.SetArgs([]string{})
	err := cmd.Execute()

	require.NoError(t, err)
	assert.Contains(t, output.String(), "Usage:")
	assert.Contains(t, output.String(), "Defects4J")
}

func TestRootCmd_SubcommandsRegistered(t *testing.T) {
	for _, name := range []string{"run", "generate", "analyze", "view", "init", "version"} {
		sub, _, err := rootCmd.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, sub.Name())
	}
}

func TestNewWorkflow(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})

	wf, mt, err := newWorkflow(cmd)
	require.NoError(t, err)
	assert.NotNil(t, wf)
	assert.NotNil(t, mt)
}

func TestNewWorkflow_InvalidResetStrategy(t *testing.T) {
	t.Setenv("MUTFLOW_WORKSPACE_RESET", "rsync")

	_, _, err := newWorkflow(newRootCmd())
	require.Error(t, err)
}

func TestSetup_BuildsWorkflowOnce(t *testing.T) {
	t.Setenv("MUTFLOW_LOG_FILENAME", filepath.Join(t.TempDir(), "mutflow.log"))

	originalWorkflow, originalMetrics := workflow, metrics
	t.Cleanup(func() { workflow, metrics = originalWorkflow, originalMetrics })

	workflow, metrics = nil, nil

	cmd := newRootCmd()
	cmd.SetOut(&bytes.Buffer{})

	require.NoError(t, setup(cmd))
	require.NotNil(t, workflow)
	require.NotNil(t, metrics)

	built := workflow
	require.NoError(t, setup(cmd))
	assert.Same(t, built, workflow)
}

func TestFlushMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mutflow.prom")
	t.Setenv("MUTFLOW_METRICS_TEXTFILE", path)

	originalMetrics := metrics
	t.Cleanup(func() { metrics = originalMetrics })

	metrics = adapter.NewMetrics()
	metrics.ObserveVerdict("killed", "llm")

	flushMetrics()

	content, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(content), "killed")
}

func TestFlushMetrics_Disabled(t *testing.T) {
	originalMetrics := metrics
	t.Cleanup(func() { metrics = originalMetrics })

	metrics = nil

	assert.NotPanics(t, flushMetrics)
	assert.Empty(t, viper.GetString(metricsTextfileKey))
}

func TestExecute(t *testing.T) {
	originalRootCmd := rootCmd
	defer func() { rootCmd = originalRootCmd }()

	mockCmd := &cobra.Command{
		Use: "test",
		RunE: func(cmd *cobra.Command, args []string) error {
			return nil
		},
	}
	mockCmd.SetOut(&bytes.Buffer{})
	mockCmd.SetErr(&bytes.Buffer{})
	mockCmd.SetArgs([]string{})

	rootCmd = mockCmd

	Execute()
}

func TestExecute_ProcessLevel_Failure(t *testing.T) {
	if os.Getenv("TEST_EXECUTE_SUBPROCESS_FAIL") == "1" {
		originalRootCmd := rootCmd
		mockCmd := &cobra.Command{
			Use: "test",
			RunE: func(cmd *cobra.Command, args []string) error {
				fmt.Fprintln(os.Stderr, "error occurred")
				return fmt.Errorf("command failed")
			},
		}
		mockCmd.SetOut(os.Stdout)
		mockCmd.SetErr(os.Stderr)
		mockCmd.SetArgs([]string{})
		rootCmd = mockCmd
		defer func() { rootCmd = originalRootCmd }()

		Execute()
		return
	}

	cmd := exec.Command(os.Args[0], "-test.run=TestExecute_ProcessLevel_Failure")
	cmd.Env = append(os.Environ(), "TEST_EXECUTE_SUBPROCESS_FAIL=1")
	output, err := cmd.CombinedOutput()

	require.Error(t, err)

	if exitErr, ok := err.(*exec.ExitError); ok {
		assert.Equal(t, 1, exitErr.ExitCode())
	} else {
		assert.Fail(t, "expected exec.ExitError", "got %T", err)
	}

	assert.Contains(t, string(output), "error occurred")
}
