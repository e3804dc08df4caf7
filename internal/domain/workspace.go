package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"mutflow.dev/pkg/mutflow/internal/adapter"
	m "mutflow.dev/pkg/mutflow/internal/model"
)

// ResetStrategy selects how a workspace is brought back to its baseline.
type ResetStrategy string

const (
	// ResetCheckout re-runs the checkout tool on every reset.
	ResetCheckout ResetStrategy = "checkout"
	// ResetSnapshot checks out once into a pristine sibling directory and copies it on reset.
	ResetSnapshot ResetStrategy = "snapshot"

	pristineSuffix = ".pristine"
)

// ParseResetStrategy validates a configured reset strategy. Empty means checkout.
func ParseResetStrategy(value string) (ResetStrategy, error) {
	switch ResetStrategy(value) {
	case "", ResetCheckout:
		return ResetCheckout, nil
	case ResetSnapshot:
		return ResetSnapshot, nil
	default:
		return "", fmt.Errorf("unknown reset strategy %q", value)
	}
}

// WorkspaceConfig holds the knobs shared by every workspace of a run.
type WorkspaceConfig struct {
	Strategy        ResetStrategy
	CheckoutTimeout time.Duration
	CompileTimeout  time.Duration
	TestTimeout     time.Duration
}

// TestOutcome is the result of one bounded test run in a workspace.
type TestOutcome struct {
	Status       adapter.TestStatus
	FailingTests []string
	ArtifactHead string
	ExitCode     int
}

// Workspace is one on-disk working copy of a project version. It is owned by a
// single coordinator and never shared.
type Workspace interface {
	// Dir is the working copy directory.
	Dir() m.Path
	// Project is the project version the workspace holds.
	Project() m.Project
	// Reset destroys the working copy and recreates it from the baseline.
	Reset(ctx context.Context) error
	// Compile builds the working copy.
	Compile(ctx context.Context) error
	// RunTests runs the tests (only focus when non-empty) with the configured bound.
	RunTests(ctx context.Context, focus string) (TestOutcome, error)
	// SourceRoot locates the Java source root inside the working copy.
	SourceRoot(ctx context.Context) (m.Path, error)
}

type workspace struct {
	project m.Project
	dir     m.Path
	config  WorkspaceConfig
	build   adapter.BuildToolAdapter
	fs      adapter.SourceFSAdapter
}

// NewWorkspace creates a workspace for project rooted at dir. Nothing touches
// the disk until Reset.
func NewWorkspace(
	project m.Project,
	dir m.Path,
	config WorkspaceConfig,
	build adapter.BuildToolAdapter,
	fs adapter.SourceFSAdapter,
) Workspace {
	if config.Strategy == "" {
		config.Strategy = ResetCheckout
	}

	return &workspace{
		project: project,
		dir:     dir,
		config:  config,
		build:   build,
		fs:      fs,
	}
}

func (w *workspace) Dir() m.Path {
	return w.dir
}

func (w *workspace) Project() m.Project {
	return w.project
}

func (w *workspace) Reset(ctx context.Context) error {
	if err := w.fs.RemoveAll(ctx, w.dir); err != nil {
		return fmt.Errorf("remove workspace %s: %w", w.dir, err)
	}

	if w.config.Strategy == ResetSnapshot {
		return w.resetFromSnapshot(ctx)
	}

	slog.Debug("Checking out workspace", "project", w.project.Key(), "dir", w.dir)

	if err := w.build.Checkout(ctx, w.project, w.dir, w.config.CheckoutTimeout); err != nil {
		return fmt.Errorf("reset %s: %w", w.project.Key(), err)
	}

	return nil
}

func (w *workspace) resetFromSnapshot(ctx context.Context) error {
	pristine := w.dir + pristineSuffix

	if _, err := w.fs.FileInfo(ctx, pristine); err != nil {
		slog.Info("Creating pristine snapshot", "project", w.project.Key(), "dir", pristine)

		if err := w.build.Checkout(ctx, w.project, pristine, w.config.CheckoutTimeout); err != nil {
			_ = w.fs.RemoveAll(ctx, pristine)
			return fmt.Errorf("snapshot %s: %w", w.project.Key(), err)
		}
	}

	if err := w.fs.CopyDir(ctx, pristine, w.dir); err != nil {
		return fmt.Errorf("restore snapshot %s: %w", pristine, err)
	}

	return nil
}

func (w *workspace) Compile(ctx context.Context) error {
	return w.build.Compile(ctx, w.dir, w.config.CompileTimeout)
}

func (w *workspace) RunTests(ctx context.Context, focus string) (TestOutcome, error) {
	report, err := w.build.Test(ctx, w.dir, focus, w.config.TestTimeout)
	if err != nil {
		return TestOutcome{}, err
	}

	return TestOutcome{
		Status:       report.Status,
		FailingTests: report.FailingTests,
		ArtifactHead: report.ArtifactHead,
		ExitCode:     report.ExitCode,
	}, nil
}

func (w *workspace) SourceRoot(ctx context.Context) (m.Path, error) {
	root, err := w.fs.FindSourceRoot(ctx, w.dir)
	if err != nil {
		return "", fmt.Errorf("source root of %s: %w", w.dir, err)
	}

	return root, nil
}

// isCompileFailure tells a build tool rejection apart from an infrastructure error.
func isCompileFailure(err error) bool {
	return errors.Is(err, adapter.ErrCompileFailed)
}
