package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mutflow.dev/pkg/mutflow/internal/domain"
	m "mutflow.dev/pkg/mutflow/internal/model"
)

func TestRunCmd_Defaults(t *testing.T) {
	cmd, mockWorkflow := newTestRootCmd(t, newRunCmd())

	mockWorkflow.On("Run", mock.Anything, mock.MatchedBy(func(args domain.RunArgs) bool {
		return args.Source == domain.SourceLLM &&
			args.ProjectsFile == m.Path(defaultProjectsFile) &&
			args.Ledger == m.Path(defaultLedger) &&
			args.MutantsDir == m.Path(defaultMutantsDir) &&
			args.MajorDir == m.Path(defaultMajorDir) &&
			args.Parallel == defaultParallel &&
			len(args.Models) == 1 && args.Models[0] == defaultLLMModel
	})).Return(nil)

	cmd.SetArgs([]string{"run"})
	require.NoError(t, cmd.Execute())

	mockWorkflow.AssertExpectations(t)
}

func TestRunCmd_Flags(t *testing.T) {
	cmd, mockWorkflow := newTestRootCmd(t, newRunCmd())

	mockWorkflow.On("Run", mock.Anything, mock.MatchedBy(func(args domain.RunArgs) bool {
		return args.Source == domain.SourceMajor &&
			args.Parallel == 4 &&
			args.ProjectsFile == m.Path("d4j.csv") &&
			args.Ledger == m.Path("out/ledger.csv") &&
			args.WorkspaceRoot == m.Path("/scratch") &&
			args.MajorDir == m.Path("logs")
	})).Return(nil)

	cmd.SetArgs([]string{
		"run", "--source", "major", "-p", "4", "--projects", "d4j.csv",
		"--ledger", "out/ledger.csv", "--workspace", "/scratch", "--major-dir", "logs",
	})
	require.NoError(t, cmd.Execute())

	mockWorkflow.AssertExpectations(t)
}

func TestRunCmd_MultipleModels(t *testing.T) {
	cmd, mockWorkflow := newTestRootCmd(t, newRunCmd())

	mockWorkflow.On("Run", mock.Anything, mock.MatchedBy(func(args domain.RunArgs) bool {
		return assert.ObjectsAreEqual([]string{"openai/gpt-4o-mini", "google/gemini-2.5-flash"}, args.Models)
	})).Return(nil)

	cmd.SetArgs([]string{"run", "-m", "openai/gpt-4o-mini", "-m", "google/gemini-2.5-flash"})
	require.NoError(t, cmd.Execute())

	mockWorkflow.AssertExpectations(t)
}

func TestRunCmd_FileSource(t *testing.T) {
	cmd, mockWorkflow := newTestRootCmd(t, newRunCmd())

	mockWorkflow.On("Run", mock.Anything, mock.MatchedBy(func(args domain.RunArgs) bool {
		return args.Source == domain.SourceFile && args.MutantsDir == m.Path("saved")
	})).Return(nil)

	cmd.SetArgs([]string{"run", "-s", "file", "--mutants-dir", "saved"})
	require.NoError(t, cmd.Execute())

	mockWorkflow.AssertExpectations(t)
}

func TestRunCmd_UnknownSource(t *testing.T) {
	cmd, _ := newTestRootCmd(t, newRunCmd())

	cmd.SetArgs([]string{"run", "--source", "pit"})
	err := cmd.Execute()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mutant source")
}

func TestRunCmd_PropagatesWorkflowError(t *testing.T) {
	cmd, mockWorkflow := newTestRootCmd(t, newRunCmd())

	mockWorkflow.On("Run", mock.Anything, mock.Anything).Return(domain.ErrBaselineBroken)

	cmd.SetArgs([]string{"run"})
	require.ErrorIs(t, cmd.Execute(), domain.ErrBaselineBroken)
}

func TestRunCmd_RejectsPositionalArgs(t *testing.T) {
	cmd, _ := newTestRootCmd(t, newRunCmd())

	cmd.SetArgs([]string{"run", "./src"})
	require.Error(t, cmd.Execute())
}

func TestParseSourceKind(t *testing.T) {
	tests := []struct {
		value   string
		want    domain.SourceKind
		wantErr bool
	}{
		{"llm", domain.SourceLLM, false},
		{"file", domain.SourceFile, false},
		{"major", domain.SourceMajor, false},
		{"", "", true},
		{"LLM", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.value, func(t *testing.T) {
			got, err := parseSourceKind(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNewRunCmd(t *testing.T) {
	cmd := newRunCmd()

	assert.Equal(t, "run", cmd.Use)
	assert.NotEmpty(t, cmd.Short)
	assert.Equal(t, runLongDescription, cmd.Long)
	assert.NotNil(t, cmd.Flags().Lookup(sourceFlagName))
}
