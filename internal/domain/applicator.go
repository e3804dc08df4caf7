package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"mutflow.dev/pkg/mutflow/internal/adapter"
	m "mutflow.dev/pkg/mutflow/internal/model"
)

// ErrNoMatchingLine is returned when no line of the target file equals the
// mutant's original line. The file is left untouched.
var ErrNoMatchingLine = errors.New("original line not found in target file")

// Applicator writes a single-line mutant into a workspace.
type Applicator interface {
	Apply(ctx context.Context, mutant m.Mutant, ws Workspace) error
	// Fingerprint returns the SHA-256 of the mutant's target file in ws.
	Fingerprint(ctx context.Context, mutant m.Mutant, ws Workspace) (string, error)
}

type applicator struct {
	fs adapter.SourceFSAdapter
}

// NewApplicator constructs an Applicator backed by fs.
func NewApplicator(fs adapter.SourceFSAdapter) Applicator {
	return &applicator{fs: fs}
}

func (a *applicator) Apply(ctx context.Context, mutant m.Mutant, ws Workspace) error {
	path, err := a.targetPath(ctx, mutant, ws)
	if err != nil {
		return err
	}

	content, err := a.fs.ReadFile(ctx, path)
	if err != nil {
		return fmt.Errorf("read target %s: %w", path, err)
	}

	mutated, err := ReplaceLine(string(content), mutant.OriginalLine, mutant.MutatedLine)
	if err != nil {
		slog.Debug("Mutant does not match target", "mutant", mutant.ID, "path", path)
		return fmt.Errorf("%s in %s: %w", mutant.ID, path, err)
	}

	info, err := a.fs.FileInfo(ctx, path)
	if err != nil {
		return fmt.Errorf("stat target %s: %w", path, err)
	}

	if err := a.fs.WriteFile(ctx, path, []byte(mutated), info.Mode().Perm()); err != nil {
		return fmt.Errorf("write target %s: %w", path, err)
	}

	return nil
}

func (a *applicator) Fingerprint(ctx context.Context, mutant m.Mutant, ws Workspace) (string, error) {
	path, err := a.targetPath(ctx, mutant, ws)
	if err != nil {
		return "", err
	}

	hash, err := a.fs.HashFile(ctx, path)
	if err != nil {
		return "", fmt.Errorf("hash target %s: %w", path, err)
	}

	return hash, nil
}

func (a *applicator) targetPath(ctx context.Context, mutant m.Mutant, ws Workspace) (m.Path, error) {
	if err := mutant.Target.Validate(); err != nil {
		return "", err
	}

	root, err := ws.SourceRoot(ctx)
	if err != nil {
		return "", err
	}

	return a.fs.JoinPath(string(root), mutant.Target.RelPath()), nil
}

// ReplaceLine swaps the first line of content whose trimmed text equals the
// trimmed original for mutated. Line endings are preserved, and so is the
// original indentation when mutated carries none.
func ReplaceLine(content, original, mutated string) (string, error) {
	want := strings.TrimSpace(original)
	if want == "" {
		return "", ErrNoMatchingLine
	}

	lines := strings.SplitAfter(content, "\n")

	for i, line := range lines {
		body, ending := splitLineEnding(line)
		if strings.TrimSpace(body) != want {
			continue
		}

		if mutated == strings.TrimLeft(mutated, " \t") {
			mutated = body[:len(body)-len(strings.TrimLeft(body, " \t"))] + mutated
		}

		lines[i] = mutated + ending

		return strings.Join(lines, ""), nil
	}

	return "", ErrNoMatchingLine
}

func splitLineEnding(line string) (string, string) {
	switch {
	case strings.HasSuffix(line, "\r\n"):
		return line[:len(line)-2], "\r\n"
	case strings.HasSuffix(line, "\n"):
		return line[:len(line)-1], "\n"
	default:
		return line, ""
	}
}
