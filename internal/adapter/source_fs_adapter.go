// Package adapter contains the infrastructure adapters mutflow drives: the
// filesystem, the external Java tools, LLM providers and report files.
package adapter

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	m "mutflow.dev/pkg/mutflow/internal/model"
)

// ErrSourceRootNotFound is returned when a workspace has none of the known
// Java source layouts.
var ErrSourceRootNotFound = errors.New("java source root not found")

// sourceRoots lists the Maven and legacy Defects4J layouts, in lookup order.
var sourceRoots = []string{
	filepath.Join("src", "main", "java"),
	filepath.Join("src", "java"),
	"source",
}

// testRoots lists the test layouts, in lookup order.
var testRoots = []string{
	filepath.Join("src", "test", "java"),
	filepath.Join("src", "test"),
	"tests",
	"test",
}

// SourceFSAdapter abstracts the filesystem operations the workflows rely on so
// the domain logic can be tested against temporary directories.
//
//nolint:interfacebloat // A richer interface keeps workflow logic decoupled from os/fs.
type SourceFSAdapter interface {
	// ReadFile loads a file from disk and returns its contents.
	ReadFile(ctx context.Context, path m.Path) ([]byte, error)

	// WriteFile writes content to a file with the given permissions.
	WriteFile(ctx context.Context, path m.Path, content []byte, perm os.FileMode) error

	// HashFile returns the SHA-256 fingerprint of the file at path.
	HashFile(ctx context.Context, path m.Path) (string, error)

	// FileInfo returns metadata for a path.
	FileInfo(ctx context.Context, path m.Path) (os.FileInfo, error)

	// MkdirAll creates a directory and its parents.
	MkdirAll(ctx context.Context, path m.Path) error

	// RemoveAll removes a directory and all its contents.
	RemoveAll(ctx context.Context, path m.Path) error

	// CopyDir recursively copies a directory tree.
	CopyDir(ctx context.Context, src, dst m.Path) error

	// FindSourceRoot returns the Java source root of a checked-out project.
	FindSourceRoot(ctx context.Context, workspace m.Path) (m.Path, error)

	// JavaFiles lists the .java files under root in lexical order.
	JavaFiles(ctx context.Context, root m.Path) ([]m.Path, error)

	// DetectTestFile finds <Class>Test.java for a source location, or "" when
	// the project has no such test.
	DetectTestFile(ctx context.Context, workspace m.Path, loc m.Location) (m.Path, error)

	// ClassNames lists the fully qualified names of the top-level classes
	// compiled under classesDir/<package path>, sorted.
	ClassNames(ctx context.Context, classesDir m.Path, packageName string) ([]string, error)

	// JoinPath joins path elements into a single path.
	JoinPath(elem ...string) m.Path
}

// LocalSourceFSAdapter implements SourceFSAdapter on the local disk.
type LocalSourceFSAdapter struct{}

// NewLocalSourceFSAdapter constructs a LocalSourceFSAdapter.
func NewLocalSourceFSAdapter() *LocalSourceFSAdapter {
	return &LocalSourceFSAdapter{}
}

// ReadFile loads file contents from disk.
func (a *LocalSourceFSAdapter) ReadFile(ctx context.Context, path m.Path) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// #nosec G304 - paths come from the workspace being mutated
	return os.ReadFile(string(path))
}

// WriteFile writes content to a file with the given permissions.
func (a *LocalSourceFSAdapter) WriteFile(ctx context.Context, path m.Path, content []byte, perm os.FileMode) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return os.WriteFile(string(path), content, perm)
}

// HashFile returns the SHA-256 hash of the file at the provided path.
func (a *LocalSourceFSAdapter) HashFile(ctx context.Context, path m.Path) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	// #nosec G304 - paths come from the workspace being mutated
	f, err := os.Open(string(path))
	if err != nil {
		return "", err
	}

	defer func() {
		_ = f.Close()
	}()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}

	return fmt.Sprintf("%x", h.Sum(nil)), nil
}

// FileInfo returns os.FileInfo metadata for the given path.
func (a *LocalSourceFSAdapter) FileInfo(ctx context.Context, path m.Path) (os.FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	return os.Stat(string(path))
}

// MkdirAll creates a directory and its parents.
func (a *LocalSourceFSAdapter) MkdirAll(ctx context.Context, path m.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return os.MkdirAll(string(path), 0o750)
}

// RemoveAll removes a directory and all its contents.
func (a *LocalSourceFSAdapter) RemoveAll(ctx context.Context, path m.Path) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	return os.RemoveAll(string(path))
}

// CopyDir recursively copies a directory tree, symlinks included as links.
func (a *LocalSourceFSAdapter) CopyDir(ctx context.Context, src, dst m.Path) error {
	return filepath.Walk(string(src), func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		relPath, err := filepath.Rel(string(src), path)
		if err != nil {
			return err
		}

		targetPath := filepath.Join(string(dst), relPath)

		switch {
		case info.IsDir():
			return os.MkdirAll(targetPath, info.Mode().Perm()|0o700)
		case info.Mode()&os.ModeSymlink != 0:
			link, err := os.Readlink(path)
			if err != nil {
				return err
			}

			return os.Symlink(link, targetPath)
		default:
			return a.copyFile(path, targetPath, info.Mode())
		}
	})
}

// copyFile copies a single file.
func (a *LocalSourceFSAdapter) copyFile(src, dst string, mode os.FileMode) error {
	// #nosec G304 - src is internal project file path, not user input
	sourceFile, err := os.Open(src)
	if err != nil {
		return err
	}

	defer func() { _ = sourceFile.Close() }()

	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return err
	}

	// #nosec G304 - dst is internal destination path, not user input
	destFile, err := os.Create(dst)
	if err != nil {
		return err
	}

	defer func() { _ = destFile.Close() }()

	if _, err := io.Copy(destFile, sourceFile); err != nil {
		return err
	}

	return os.Chmod(dst, mode)
}

// FindSourceRoot returns the first known source layout present in workspace.
func (a *LocalSourceFSAdapter) FindSourceRoot(ctx context.Context, workspace m.Path) (m.Path, error) {
	return findFirstDir(ctx, workspace, sourceRoots, ErrSourceRootNotFound)
}

// JavaFiles lists the .java files under root in lexical order.
func (a *LocalSourceFSAdapter) JavaFiles(ctx context.Context, root m.Path) ([]m.Path, error) {
	var files []m.Path

	err := filepath.WalkDir(string(root), func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		if d.IsDir() || filepath.Ext(path) != ".java" {
			return nil
		}

		files = append(files, m.Path(path))

		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(files, func(i, j int) bool { return files[i] < files[j] })

	return files, nil
}

// DetectTestFile looks for <Class>Test.java under the known test layouts.
func (a *LocalSourceFSAdapter) DetectTestFile(ctx context.Context, workspace m.Path, loc m.Location) (m.Path, error) {
	testLoc := m.Location{ModulePath: loc.ModulePath, ClassName: loc.ClassName + "Test"}

	for _, root := range testRoots {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		candidate := filepath.Join(string(workspace), root, filepath.FromSlash(testLoc.RelPath()))
		if _, err := os.Stat(candidate); err == nil {
			return m.Path(candidate), nil
		} else if !os.IsNotExist(err) {
			return "", err
		}
	}

	return "", nil
}

// ClassNames implements SourceFSAdapter. Inner classes and package-info are skipped.
func (a *LocalSourceFSAdapter) ClassNames(ctx context.Context, classesDir m.Path, packageName string) ([]string, error) {
	base := filepath.Join(string(classesDir), filepath.FromSlash(strings.ReplaceAll(packageName, ".", "/")))

	var names []string

	err := filepath.WalkDir(base, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		name := d.Name()
		if d.IsDir() || !strings.HasSuffix(name, ".class") || strings.Contains(name, "$") || strings.Contains(name, "package-info") {
			return nil
		}

		rel, err := filepath.Rel(base, path)
		if err != nil {
			return err
		}

		fqcn := strings.ReplaceAll(strings.TrimSuffix(filepath.ToSlash(rel), ".class"), "/", ".")
		if packageName != "" {
			fqcn = packageName + "." + fqcn
		}

		names = append(names, fqcn)

		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list classes under %s: %w", base, err)
	}

	sort.Strings(names)

	return names, nil
}

// JoinPath joins path elements into a single path.
func (a *LocalSourceFSAdapter) JoinPath(elem ...string) m.Path {
	return m.Path(filepath.Join(elem...))
}

func findFirstDir(ctx context.Context, base m.Path, candidates []string, notFound error) (m.Path, error) {
	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return "", err
		}

		dir := filepath.Join(string(base), candidate)

		info, err := os.Stat(dir)
		if err == nil && info.IsDir() {
			return m.Path(dir), nil
		}
	}

	return "", fmt.Errorf("%w in %s (tried %s)", notFound, base, strings.Join(candidates, ", "))
}
