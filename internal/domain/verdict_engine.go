package domain

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"mutflow.dev/pkg/mutflow/internal/adapter"
	m "mutflow.dev/pkg/mutflow/internal/model"
)

// VerdictEngine classifies the mutant currently applied to a workspace.
type VerdictEngine interface {
	Evaluate(ctx context.Context, mutant m.Mutant, ws Workspace) (m.Verdict, error)
}

type verdictEngine struct {
	focusTests bool
}

// NewVerdictEngine constructs a VerdictEngine. With focusTests set only the
// target class's <Class>Test is run, otherwise the full suite.
func NewVerdictEngine(focusTests bool) VerdictEngine {
	return &verdictEngine{focusTests: focusTests}
}

// Evaluate compiles and tests ws. Errors are returned only for infrastructure
// failures; every outcome of the mutant itself is a verdict.
func (v *verdictEngine) Evaluate(ctx context.Context, mutant m.Mutant, ws Workspace) (m.Verdict, error) {
	start := time.Now()
	verdict := m.Verdict{MutantID: mutant.ID}

	if err := ws.Compile(ctx); err != nil {
		if !isCompileFailure(err) {
			return m.Verdict{}, fmt.Errorf("compile mutant %s: %w", mutant.ID, err)
		}

		verdict.Status = m.BuildFailed
		verdict.Duration = time.Since(start)

		return verdict, nil
	}

	outcome, err := ws.RunTests(ctx, v.focus(mutant))
	if err != nil {
		return m.Verdict{}, fmt.Errorf("test mutant %s: %w", mutant.ID, err)
	}

	verdict.Duration = time.Since(start)

	switch {
	case outcome.Status == adapter.TestsTimedOut:
		verdict.Status = m.Timeout
	case len(outcome.FailingTests) > 0:
		verdict.Status = m.Killed
		verdict.Evidence = outcome.FailingTests
	case outcome.Status == adapter.TestsFailed:
		verdict.Status = m.Killed
		verdict.Evidence = []string{outcome.ArtifactHead}
	default:
		verdict.Status = m.Survived

		if outcome.ExitCode != 0 {
			verdict.Evidence = []string{fmt.Sprintf("exit status %d", outcome.ExitCode)}
		}
	}

	slog.Debug("Mutant evaluated", "mutant", mutant.ID, "status", verdict.Status, "exitCode", outcome.ExitCode, "duration", verdict.Duration)

	return verdict, nil
}

func (v *verdictEngine) focus(mutant m.Mutant) string {
	if !v.focusTests {
		return ""
	}

	return mutant.Target.QualifiedName() + "Test"
}
