package adapter

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	m "mutflow.dev/pkg/mutflow/internal/model"
)

const (
	// MajorKillFile is the kill matrix Defects4J writes after `defects4j mutation`.
	MajorKillFile = "kill.csv"
	// MajorLogFile is Major's mutant log.
	MajorLogFile = "mutants.log"
	// MajorNoOp is how Major writes a deleted expression or statement.
	MajorNoOp = "<NO-OP>"

	majorTestMapFile = "testMap.csv"
	majorCovMapFile  = "covMap.csv"
	majorArrow       = "|==>"
)

// MajorLogEntry is one parsed line of mutants.log.
type MajorLogEntry struct {
	ID       string
	Mutator  string
	Class    string
	Method   string
	Line     int
	Original string
	Mutated  string
}

// ParseMajorLogLine parses `id:mutator:from:to:Class@method:line:orig |==> mutated`.
// Lines not starting with a digit are rejected.
func ParseMajorLogLine(line string) (MajorLogEntry, error) {
	line = strings.TrimSpace(line)
	if line == "" || line[0] < '0' || line[0] > '9' {
		return MajorLogEntry{}, fmt.Errorf("not a mutant line: %q", line)
	}

	parts := strings.SplitN(line, ":", 7)
	if len(parts) < 6 {
		return MajorLogEntry{}, fmt.Errorf("too few fields in %q", line)
	}

	entry := MajorLogEntry{ID: parts[0], Mutator: parts[1]}

	classMethod := strings.ReplaceAll(parts[4], "/", ".")
	if class, method, ok := strings.Cut(classMethod, "@"); ok {
		entry.Class = class
		entry.Method = method
	} else {
		entry.Class = classMethod
		entry.Method = "unknown"
	}

	if idx := strings.Index(entry.Method, "("); idx >= 0 {
		entry.Method = entry.Method[:idx]
	}

	lineNumber, err := strconv.Atoi(strings.TrimSpace(parts[5]))
	if err != nil {
		return MajorLogEntry{}, fmt.Errorf("bad line number in %q: %w", line, err)
	}

	entry.Line = lineNumber

	if len(parts) == 7 {
		if orig, mutated, ok := strings.Cut(parts[6], majorArrow); ok {
			entry.Original = strings.TrimSpace(orig)
			entry.Mutated = strings.TrimSpace(mutated)
		}
	}

	return entry, nil
}

// ReadMajorLog parses every mutant line of a mutants.log, in file order.
// Unparseable lines are logged and skipped.
func ReadMajorLog(ctx context.Context, path m.Path) ([]MajorLogEntry, error) {
	// #nosec G304 - log path is inside the workspace
	f, err := os.Open(string(path))
	if err != nil {
		return nil, fmt.Errorf("open major log: %w", err)
	}

	defer func() { _ = f.Close() }()

	var entries []MajorLogEntry

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" || text[0] < '0' || text[0] > '9' {
			continue
		}

		entry, err := ParseMajorLogLine(text)
		if err != nil {
			slog.Warn("Error parsing major log line", "path", path, "error", err)
			continue
		}

		entries = append(entries, entry)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read major log %s: %w", path, err)
	}

	return entries, nil
}

// ReadMajorKillMatrix returns mutant ID -> status code from kill.csv, in file order.
func ReadMajorKillMatrix(ctx context.Context, path m.Path) ([]string, map[string]string, error) {
	rows, err := readCSVRows(ctx, path)
	if err != nil {
		return nil, nil, err
	}

	var order []string

	statuses := map[string]string{}

	for _, row := range rows {
		fields := make([]string, 0, len(row))

		for _, field := range row {
			if field = strings.TrimSpace(field); field != "" {
				fields = append(fields, field)
			}
		}

		if len(fields) < 2 || fields[0][0] < '0' || fields[0][0] > '9' {
			continue
		}

		if _, seen := statuses[fields[0]]; !seen {
			order = append(order, fields[0])
		}

		statuses[fields[0]] = fields[1]
	}

	return order, statuses, nil
}

// ReadMajorCoverage joins testMap.csv and covMap.csv in dir into mutant ID -> test names.
// Missing files yield an empty map.
func ReadMajorCoverage(ctx context.Context, dir m.Path) (map[string][]string, error) {
	coverage := map[string][]string{}

	testRows, err := readCSVRows(ctx, m.Path(filepath.Join(string(dir), majorTestMapFile)))
	if errors.Is(err, os.ErrNotExist) {
		return coverage, nil
	}

	if err != nil {
		return nil, err
	}

	covRows, err := readCSVRows(ctx, m.Path(filepath.Join(string(dir), majorCovMapFile)))
	if errors.Is(err, os.ErrNotExist) {
		return coverage, nil
	}

	if err != nil {
		return nil, err
	}

	names := map[string]string{}

	for i, row := range testRows {
		if i == 0 || len(row) < 2 {
			continue
		}

		names[row[0]] = row[1]
	}

	for i, row := range covRows {
		if i == 0 || len(row) < 2 {
			continue
		}

		name, ok := names[row[0]]
		if !ok {
			name = row[0]
		}

		coverage[row[1]] = append(coverage[row[1]], name)
	}

	for id := range coverage {
		sort.Strings(coverage[id])
	}

	return coverage, nil
}

// ReadMajorReport joins kill.csv with mutants.log (and coverage maps when present)
// found in dir into tool records, in kill.csv order.
func ReadMajorReport(ctx context.Context, dir m.Path) ([]m.ToolRecord, error) {
	order, statuses, err := ReadMajorKillMatrix(ctx, m.Path(filepath.Join(string(dir), MajorKillFile)))
	if err != nil {
		return nil, err
	}

	info := map[string]MajorLogEntry{}

	entries, err := ReadMajorLog(ctx, m.Path(filepath.Join(string(dir), MajorLogFile)))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}

	for _, entry := range entries {
		info[entry.ID] = entry
	}

	coverage, err := ReadMajorCoverage(ctx, dir)
	if err != nil {
		return nil, err
	}

	records := make([]m.ToolRecord, 0, len(order))

	for _, id := range order {
		record := m.ToolRecord{ID: "major-" + id, StatusCode: statuses[id], Tests: coverage[id]}

		if entry, ok := info[id]; ok {
			record.Mutator = entry.Mutator
			record.Class = entry.Class
			record.Method = entry.Method
			record.Line = entry.Line
		}

		records = append(records, record)
	}

	return records, nil
}

func readCSVRows(ctx context.Context, path m.Path) ([][]string, error) {
	// #nosec G304 - report path is inside the workspace
	f, err := os.Open(string(path))
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}

	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	var rows [][]string

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return rows, nil
		}

		if err != nil {
			return nil, fmt.Errorf("read %s: %w", path, err)
		}

		rows = append(rows, row)
	}
}
