// Package controller provides output adapters for displaying mutation run progress and results.
package controller

import (
	"context"

	m "mutflow.dev/pkg/mutflow/internal/model"
)

// StartMode defines the mode of operation for the UI.
type StartMode int

// Available StartMode values.
const (
	ModeRun StartMode = iota
	ModeGenerate
	ModeView
)

// StartOption is a functional option for Start method.
type StartOption func(*StartConfig)

// StartConfig holds configuration for starting the UI.
type StartConfig struct {
	mode StartMode
}

// WithRunMode sets the UI to mutant evaluation mode.
func WithRunMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeRun
	}
}

// WithGenerateMode sets the UI to mutant generation mode.
func WithGenerateMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeGenerate
	}
}

// WithViewMode sets the UI to report viewing mode.
func WithViewMode() StartOption {
	return func(c *StartConfig) {
		c.mode = ModeView
	}
}

func applyStartOptions(options []StartOption) StartConfig {
	cfg := StartConfig{mode: ModeRun}
	for _, opt := range options {
		opt(&cfg)
	}

	return cfg
}

// UI defines how workflows report progress and results.
// Implementations can use different output methods (simple text, TUI, etc).
type UI interface {
	Start(ctx context.Context, options ...StartOption) error
	Close(ctx context.Context)
	Wait(ctx context.Context) // Wait for UI to finish (user closes it)
	DisplayConcurrencyInfo(ctx context.Context, workers int, units int)
	DisplayUnitStarted(ctx context.Context, project m.Project, source string, worker int)
	DisplayVerdict(ctx context.Context, row m.LedgerRow, mutant m.Mutant)
	DisplayUnitFinished(ctx context.Context, summary m.UnitSummary)
	DisplayMutants(ctx context.Context, project m.Project, model string, mutants []m.Mutant)
	DisplayScore(ctx context.Context, report m.ScoreReport)
}
