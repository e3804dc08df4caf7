package adapter

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	m "mutflow.dev/pkg/mutflow/internal/model"
)

const (
	// FailingTestsFile is the artifact Defects4J writes into the working directory
	// after a test run; it lists one "--- Class::method" header per failing test.
	FailingTestsFile = "failing_tests"

	defects4jBinary = "defects4j"
)

var (
	// ErrCheckoutFailed is returned when the checkout tool exits with a non-zero status.
	ErrCheckoutFailed = errors.New("checkout failed")
	// ErrCompileFailed is returned when the build tool exits with a non-zero status.
	ErrCompileFailed = errors.New("compile failed")
	// ErrMutationFailed is returned when the mutation backend exits with a non-zero status.
	ErrMutationFailed = errors.New("mutation analysis failed")
)

// TestStatus is the coarse outcome of a bounded test run.
type TestStatus int

const (
	// TestsPassed means the run finished and reported no failing tests.
	TestsPassed TestStatus = iota
	// TestsFailed means the failing_tests artifact had content.
	TestsFailed
	// TestsTimedOut means the run was killed after exceeding its bound.
	TestsTimedOut
)

// TestReport is the outcome of BuildToolAdapter.Test.
type TestReport struct {
	Status       TestStatus
	FailingTests []string
	// ArtifactHead is the first non-blank line of the failing_tests artifact.
	ArtifactHead string
	ExitCode     int
	Output       string
}

// BuildToolAdapter abstracts the Defects4J command line: checkout, compile,
// test and the Major mutation backend.
type BuildToolAdapter interface {
	// Checkout materialises project at its version into dir.
	Checkout(ctx context.Context, project m.Project, dir m.Path, timeout time.Duration) error
	// Compile builds the working copy in dir.
	Compile(ctx context.Context, dir m.Path, timeout time.Duration) error
	// Test runs the test suite (or only focus when non-empty) with a bounded timeout.
	Test(ctx context.Context, dir m.Path, focus string, timeout time.Duration) (TestReport, error)
	// Mutation runs Major on the classes listed in instrumentFile.
	Mutation(ctx context.Context, dir m.Path, instrumentFile m.Path) error
}

// LocalDefects4JAdapter drives the defects4j executable through a CommandRunner.
type LocalDefects4JAdapter struct {
	runner CommandRunner
	binary string
}

// NewLocalDefects4JAdapter constructs the adapter. An empty binary falls back to
// "defects4j" on PATH.
func NewLocalDefects4JAdapter(runner CommandRunner, binary string) *LocalDefects4JAdapter {
	if strings.TrimSpace(binary) == "" {
		binary = defects4jBinary
	}

	return &LocalDefects4JAdapter{runner: runner, binary: binary}
}

// Checkout runs `defects4j checkout -p ID -v <bug><version> -w dir`.
func (a *LocalDefects4JAdapter) Checkout(ctx context.Context, project m.Project, dir m.Path, timeout time.Duration) error {
	res, err := a.runner.Run(ctx, CommandSpec{
		Name:    a.binary,
		Args:    []string{"checkout", "-p", project.ID, "-v", project.VersionSpec(), "-w", string(dir)},
		Timeout: timeout,
	})
	if err != nil {
		return fmt.Errorf("checkout %s: %w", project.Key(), err)
	}

	if res.TimedOut || res.ExitCode != 0 {
		slog.Error("Checkout failed", "project", project.Key(), "exitCode", res.ExitCode, "timedOut", res.TimedOut, "stderr", res.Stderr)
		return fmt.Errorf("%w: %s exit %d", ErrCheckoutFailed, project.Key(), res.ExitCode)
	}

	return nil
}

// Compile runs `defects4j compile` inside dir.
func (a *LocalDefects4JAdapter) Compile(ctx context.Context, dir m.Path, timeout time.Duration) error {
	res, err := a.runner.Run(ctx, CommandSpec{
		Dir:     string(dir),
		Name:    a.binary,
		Args:    []string{"compile"},
		Timeout: timeout,
	})
	if err != nil {
		return fmt.Errorf("compile %s: %w", dir, err)
	}

	if res.TimedOut || res.ExitCode != 0 {
		slog.Debug("Compile failed", "dir", dir, "exitCode", res.ExitCode, "timedOut", res.TimedOut, "stderr", res.Stderr)
		return fmt.Errorf("%w: exit %d", ErrCompileFailed, res.ExitCode)
	}

	return nil
}

// Test runs `defects4j test [-t focus]` inside dir. A stale failing_tests artifact
// is removed first so that a previous run can never be attributed to this one.
func (a *LocalDefects4JAdapter) Test(ctx context.Context, dir m.Path, focus string, timeout time.Duration) (TestReport, error) {
	artifact := filepath.Join(string(dir), FailingTestsFile)
	if err := os.Remove(artifact); err != nil && !os.IsNotExist(err) {
		return TestReport{}, fmt.Errorf("remove stale %s: %w", artifact, err)
	}

	args := []string{"test"}
	if focus != "" {
		args = append(args, "-t", focus)
	}

	res, err := a.runner.Run(ctx, CommandSpec{
		Dir:     string(dir),
		Name:    a.binary,
		Args:    args,
		Timeout: timeout,
	})
	if err != nil {
		return TestReport{}, fmt.Errorf("test %s: %w", dir, err)
	}

	report := TestReport{ExitCode: res.ExitCode, Output: res.Output()}

	if res.TimedOut {
		report.Status = TestsTimedOut
		return report, nil
	}

	names, head, err := ReadFailingTests(m.Path(artifact))
	if err != nil {
		return TestReport{}, err
	}

	report.FailingTests = names
	report.ArtifactHead = head

	if head == "" {
		if res.ExitCode != 0 {
			slog.Warn("Defects4J test exited non-zero without failing tests", "dir", dir, "exitCode", res.ExitCode)
		}

		report.Status = TestsPassed

		return report, nil
	}

	report.Status = TestsFailed

	return report, nil
}

// Mutation runs `defects4j mutation -w dir -i instrumentFile`.
func (a *LocalDefects4JAdapter) Mutation(ctx context.Context, dir m.Path, instrumentFile m.Path) error {
	res, err := a.runner.Run(ctx, CommandSpec{
		Dir:  string(dir),
		Name: a.binary,
		Args: []string{"mutation", "-w", string(dir), "-i", string(instrumentFile)},
	})
	if err != nil {
		return fmt.Errorf("mutation %s: %w", dir, err)
	}

	if res.ExitCode != 0 {
		slog.Error("Defects4J mutation failed", "dir", dir, "exitCode", res.ExitCode, "stderr", res.Stderr)
		return fmt.Errorf("%w: exit %d", ErrMutationFailed, res.ExitCode)
	}

	return nil
}

// ReadFailingTests parses a failing_tests artifact. It returns the failing test
// names and the first non-blank line, which is empty when the artifact has no
// content. A missing file means no failures.
func ReadFailingTests(path m.Path) ([]string, string, error) {
	// #nosec G304 - artifact path is built from the workspace directory
	f, err := os.Open(string(path))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, "", nil
		}

		return nil, "", fmt.Errorf("open %s: %w", path, err)
	}

	defer func() { _ = f.Close() }()

	var names []string

	head := ""
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if head == "" {
			head = line
		}

		if name, ok := strings.CutPrefix(line, "--- "); ok {
			names = append(names, strings.TrimSpace(name))
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, "", fmt.Errorf("read %s: %w", path, err)
	}

	return names, head, nil
}
