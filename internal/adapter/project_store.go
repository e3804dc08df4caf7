package adapter

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	m "mutflow.dev/pkg/mutflow/internal/model"
)

var projectColumns = []string{"project_id", "project_path", "bug_id", "fixed_version", "id_dir", "test_dir"}

// ReadProjects loads the projects CSV. Columns are matched by header name;
// test_dir and id_dir may be absent.
func ReadProjects(ctx context.Context, path m.Path) ([]m.Project, error) {
	// #nosec G304 - projects file comes from configuration
	f, err := os.Open(string(path))
	if err != nil {
		return nil, fmt.Errorf("open projects: %w", err)
	}

	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read projects header %s: %w", path, err)
	}

	index := map[string]int{}
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	for _, required := range projectColumns[:4] {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("projects %s: missing column %q", path, required)
		}
	}

	var projects []m.Project

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return projects, nil
		}

		if err != nil {
			return nil, fmt.Errorf("read projects %s: %w", path, err)
		}

		field := func(name string) string {
			i, ok := index[name]
			if !ok || i >= len(record) {
				return ""
			}

			return strings.TrimSpace(record[i])
		}

		if field("project_id") == "" {
			continue
		}

		projects = append(projects, m.Project{
			ID:          field("project_id"),
			PackagePath: field("project_path"),
			BugID:       field("bug_id"),
			Version:     field("fixed_version"),
			IDDir:       field("id_dir"),
			TestDir:     field("test_dir"),
		})
	}
}
