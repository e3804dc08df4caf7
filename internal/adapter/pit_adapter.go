package adapter

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	m "mutflow.dev/pkg/mutflow/internal/model"
)

// ErrPITFailed is returned when the maven PIT goal exits with a non-zero status.
var ErrPITFailed = errors.New("pit mutation coverage failed")

const (
	mavenBinary = "mvn"
	pitGoal     = "org.pitest:pitest-maven:mutationCoverage"

	// PITReportDir is where PIT writes its reports, relative to the workspace.
	PITReportDir = "target/pit-reports"
)

// PITAdapter runs the coverage-driven PIT backend.
type PITAdapter interface {
	// MutationCoverage runs PIT against packagePath.* classes and tests in dir.
	MutationCoverage(ctx context.Context, dir m.Path, packagePath, testDir string) error
}

// LocalPITAdapter runs PIT through maven.
type LocalPITAdapter struct {
	runner CommandRunner
	maven  string
}

// NewLocalPITAdapter constructs the adapter. An empty maven falls back to "mvn".
func NewLocalPITAdapter(runner CommandRunner, maven string) *LocalPITAdapter {
	if strings.TrimSpace(maven) == "" {
		maven = mavenBinary
	}

	return &LocalPITAdapter{runner: runner, maven: maven}
}

// PITArgs builds the maven arguments for a PIT run.
func PITArgs(packagePath, testDir string) []string {
	args := []string{
		pitGoal,
		fmt.Sprintf("-DtargetClasses=%s.*", packagePath),
		fmt.Sprintf("-DtargetTests=%s.*Test", packagePath),
		"-DoutputFormats=CSV,XML",
		"-DexportLineCoverage=true",
		"-DtimestampedReports=false",
	}

	if testDir != "" {
		args = append(args,
			"-DtestClassesDirectory="+testDir,
			"-DadditionalClasspathElements="+testDir,
		)
	}

	return args
}

// MutationCoverage implements PITAdapter.
func (a *LocalPITAdapter) MutationCoverage(ctx context.Context, dir m.Path, packagePath, testDir string) error {
	res, err := a.runner.Run(ctx, CommandSpec{
		Dir:  string(dir),
		Name: a.maven,
		Args: PITArgs(packagePath, testDir),
	})
	if err != nil {
		return fmt.Errorf("pit %s: %w", dir, err)
	}

	if res.ExitCode != 0 {
		slog.Error("PIT failed", "dir", dir, "exitCode", res.ExitCode, "stderr", res.Stderr)
		return fmt.Errorf("%w: exit %d", ErrPITFailed, res.ExitCode)
	}

	slog.Info("PIT executed successfully", "dir", dir)

	return nil
}
