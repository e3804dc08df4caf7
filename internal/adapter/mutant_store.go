package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	m "mutflow.dev/pkg/mutflow/internal/model"
)

// MutantStore saves and loads generated mutant batches.
type MutantStore interface {
	SaveMutants(ctx context.Context, path m.Path, file m.MutantFile) error
	LoadMutants(ctx context.Context, path m.Path) (m.MutantFile, error)
}

// YAMLMutantStore keeps one YAML document per batch.
type YAMLMutantStore struct{}

// NewYAMLMutantStore constructs a YAMLMutantStore.
func NewYAMLMutantStore() *YAMLMutantStore {
	return &YAMLMutantStore{}
}

// SaveMutants writes file to path, replacing any previous batch.
func (s *YAMLMutantStore) SaveMutants(ctx context.Context, path m.Path, file m.MutantFile) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if err := os.MkdirAll(filepath.Dir(string(path)), 0o750); err != nil {
		return fmt.Errorf("create mutants dir: %w", err)
	}

	data, err := yaml.Marshal(file)
	if err != nil {
		return fmt.Errorf("marshal mutants: %w", err)
	}

	if err := os.WriteFile(string(path), data, 0o600); err != nil {
		return fmt.Errorf("write mutants %s: %w", path, err)
	}

	slog.Info("Saved mutants", "path", path, "count", len(file.Mutants))

	return nil
}

// LoadMutants reads a batch written by SaveMutants.
func (s *YAMLMutantStore) LoadMutants(ctx context.Context, path m.Path) (m.MutantFile, error) {
	if err := ctx.Err(); err != nil {
		return m.MutantFile{}, err
	}

	// #nosec G304 - mutant file path comes from configuration or flags
	data, err := os.ReadFile(string(path))
	if err != nil {
		return m.MutantFile{}, fmt.Errorf("read mutants: %w", err)
	}

	var file m.MutantFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return m.MutantFile{}, fmt.Errorf("unmarshal mutants %s: %w", path, err)
	}

	return file, nil
}
