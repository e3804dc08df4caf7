package adapter

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"
)

// waitDelay bounds how long Wait keeps draining pipes after the process group was killed.
const waitDelay = 5 * time.Second

// CommandSpec describes one external process invocation.
type CommandSpec struct {
	Dir     string
	Name    string
	Args    []string
	Env     []string
	Timeout time.Duration // zero means no bound
}

// CommandResult captures the observable outcome of a finished process.
type CommandResult struct {
	ExitCode int
	Stdout   string
	Stderr   string
	TimedOut bool
	Duration time.Duration
}

// Output returns stdout and stderr combined.
func (r CommandResult) Output() string {
	return r.Stdout + r.Stderr
}

// CommandRunner abstracts process execution for the external tools
// (checkout, build, test, mutation backends).
type CommandRunner interface {
	// Run executes the command and blocks until it exits or its timeout elapses.
	// A non-zero exit status is reported through CommandResult, not as an error;
	// an error means the process could not be run or ctx was cancelled.
	Run(ctx context.Context, spec CommandSpec) (CommandResult, error)
}

// LocalCommandRunner runs commands with os/exec.
type LocalCommandRunner struct {
	env []string
}

// NewLocalCommandRunner constructs a runner that appends env to the current
// process environment for every command.
func NewLocalCommandRunner(env ...string) *LocalCommandRunner {
	return &LocalCommandRunner{env: env}
}

// Run implements CommandRunner. On timeout the whole process group is killed so
// that build tools forking a JVM cannot outlive the call.
func (r *LocalCommandRunner) Run(ctx context.Context, spec CommandSpec) (CommandResult, error) {
	runCtx := ctx

	if spec.Timeout > 0 {
		var cancel context.CancelFunc

		runCtx, cancel = context.WithTimeout(ctx, spec.Timeout)
		defer cancel()
	}

	// #nosec G204 - commands come from mutflow's own tool configuration
	cmd := exec.CommandContext(runCtx, spec.Name, spec.Args...)
	cmd.Dir = spec.Dir
	cmd.Env = append(append(os.Environ(), r.env...), spec.Env...)
	cmd.WaitDelay = waitDelay
	configureProcessGroup(cmd)

	var stdout, stderr bytes.Buffer

	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	slog.Debug("Running command", "name", spec.Name, "args", spec.Args, "dir", spec.Dir, "timeout", spec.Timeout)

	start := time.Now()
	err := cmd.Run()

	result := CommandResult{
		Stdout:   stdout.String(),
		Stderr:   stderr.String(),
		Duration: time.Since(start),
	}

	if ctx.Err() != nil {
		return result, ctx.Err()
	}

	if errors.Is(runCtx.Err(), context.DeadlineExceeded) {
		slog.Warn("Command timed out", "name", spec.Name, "args", spec.Args, "timeout", spec.Timeout)

		result.TimedOut = true
		result.ExitCode = -1

		return result, nil
	}

	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}

		return result, fmt.Errorf("run %s: %w", spec.Name, err)
	}

	return result, nil
}
