package cmd

import (
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mutflow.dev/pkg/mutflow/internal/domain"
	m "mutflow.dev/pkg/mutflow/internal/model"
)

func TestGenerateCmd_PassesConfiguration(t *testing.T) {
	cmd, mockWorkflow := newTestRootCmd(t, newGenerateCmd())

	mockWorkflow.On("Generate", mock.Anything, mock.MatchedBy(func(args domain.GenerateArgs) bool {
		return args.MutantsDir == m.Path("generated") &&
			args.Parallel == 2 &&
			len(args.Models) == 1 && args.Models[0] == "openai/gpt-4o-mini"
	})).Return(nil)

	cmd.SetArgs([]string{"generate", "--mutants-dir", "generated", "-p", "2", "-m", "openai/gpt-4o-mini"})
	require.NoError(t, cmd.Execute())

	mockWorkflow.AssertExpectations(t)
}

func TestGenerateCmd_RejectsPositionalArgs(t *testing.T) {
	cmd, _ := newTestRootCmd(t, newGenerateCmd())

	cmd.SetArgs([]string{"generate", "Lang"})
	require.Error(t, cmd.Execute())
}
