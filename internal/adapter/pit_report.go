package adapter

import (
	"context"
	"encoding/csv"
	"encoding/xml"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	m "mutflow.dev/pkg/mutflow/internal/model"
)

// pitCSVColumns is the fixed, header-less column order of PIT's mutations.csv.
var pitCSVColumns = []string{"File", "Class", "Mutator", "Method", "Line", "Status", "Test"}

// ReadPITCSV parses a PIT mutations.csv (or the PIT-style export of a Major run,
// which carries a header row). Records get sequential "pit-<n>" IDs.
func ReadPITCSV(ctx context.Context, path m.Path) ([]m.ToolRecord, error) {
	// #nosec G304 - report path comes from the workspace or the user
	f, err := os.Open(string(path))
	if err != nil {
		return nil, fmt.Errorf("open pit csv: %w", err)
	}

	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	var records []m.ToolRecord

	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read pit csv %s: %w", path, err)
		}

		if len(row) < len(pitCSVColumns)-1 {
			slog.Warn("Skipping short PIT row", "path", path, "row", row)
			continue
		}

		if row[0] == pitCSVColumns[0] {
			continue
		}

		line, _ := strconv.Atoi(strings.TrimSpace(row[4]))

		record := m.ToolRecord{
			ID:         fmt.Sprintf("pit-%d", len(records)+1),
			Class:      strings.TrimSpace(row[1]),
			Mutator:    shortMutator(row[2]),
			Method:     strings.TrimSpace(row[3]),
			Line:       line,
			StatusCode: strings.TrimSpace(row[5]),
		}

		if len(row) > 6 {
			record.Tests = splitTests(row[6])
		}

		records = append(records, record)
	}

	return records, nil
}

type pitXMLReport struct {
	Mutations []pitXMLMutation `xml:"mutation"`
}

type pitXMLMutation struct {
	Detected    bool   `xml:"detected,attr"`
	Status      string `xml:"status,attr"`
	SourceFile  string `xml:"sourceFile"`
	Class       string `xml:"mutatedClass"`
	Method      string `xml:"mutatedMethod"`
	Line        int    `xml:"lineNumber"`
	Mutator     string `xml:"mutator"`
	KillingTest string `xml:"killingTest"`
	Description string `xml:"description"`
}

// ReadPITXML parses a PIT mutations.xml report.
func ReadPITXML(ctx context.Context, path m.Path) ([]m.ToolRecord, error) {
	// #nosec G304 - report path comes from the workspace or the user
	data, err := os.ReadFile(string(path))
	if err != nil {
		return nil, fmt.Errorf("read pit xml: %w", err)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var report pitXMLReport
	if err := xml.Unmarshal(data, &report); err != nil {
		return nil, fmt.Errorf("decode pit xml %s: %w", path, err)
	}

	records := make([]m.ToolRecord, 0, len(report.Mutations))

	for i, mutation := range report.Mutations {
		records = append(records, m.ToolRecord{
			ID:         fmt.Sprintf("pit-%d", i+1),
			StatusCode: strings.TrimSpace(mutation.Status),
			Mutator:    shortMutator(mutation.Mutator),
			Class:      strings.TrimSpace(mutation.Class),
			Method:     strings.TrimSpace(mutation.Method),
			Line:       mutation.Line,
			Tests:      splitTests(mutation.KillingTest),
		})
	}

	return records, nil
}

// shortMutator drops the package of a PIT mutator class name.
func shortMutator(name string) string {
	name = strings.TrimSpace(name)
	if idx := strings.LastIndex(name, "."); idx >= 0 {
		return name[idx+1:]
	}

	return name
}

func splitTests(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "none" {
		return nil
	}

	var tests []string

	for _, test := range strings.Split(raw, "|") {
		if test = strings.TrimSpace(test); test != "" {
			tests = append(tests, test)
		}
	}

	return tests
}
