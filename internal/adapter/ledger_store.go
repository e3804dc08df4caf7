package adapter

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	m "mutflow.dev/pkg/mutflow/internal/model"
)

// LedgerColumns is the header written to new ledger files.
var LedgerColumns = []string{
	"project_id", "bug_id", "mutant_id", "class", "result",
	"origin", "mutator", "model", "method", "line", "evidence",
}

// legacyMutantColumn is accepted in place of mutant_id when loading older ledgers.
const legacyMutantColumn = "mutant_name"

const evidenceSeparator = ";"

// LedgerStore persists verdict rows. Rows are only ever appended.
type LedgerStore interface {
	Append(ctx context.Context, path m.Path, rows ...m.LedgerRow) error
	Load(ctx context.Context, path m.Path) ([]m.LedgerRow, error)
}

// CSVLedgerStore writes the ledger as CSV with a header row.
type CSVLedgerStore struct {
	mu sync.Mutex
}

// NewCSVLedgerStore constructs a CSVLedgerStore.
func NewCSVLedgerStore() *CSVLedgerStore {
	return &CSVLedgerStore{}
}

// Append writes rows at the end of the ledger, creating it with a header if needed.
func (s *CSVLedgerStore) Append(ctx context.Context, path m.Path, rows ...m.LedgerRow) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if len(rows) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(string(path)), 0o750); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}

	// #nosec G304 - ledger path comes from configuration
	f, err := os.OpenFile(string(path), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o600)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}

	defer func() {
		if err := f.Close(); err != nil {
			slog.Error("Failed to close ledger", "path", path, "error", err)
		}
	}()

	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("stat ledger: %w", err)
	}

	writer := csv.NewWriter(f)

	if info.Size() == 0 {
		if err := writer.Write(LedgerColumns); err != nil {
			return fmt.Errorf("write ledger header: %w", err)
		}
	}

	for _, row := range rows {
		if err := writer.Write(encodeLedgerRow(row)); err != nil {
			return fmt.Errorf("write ledger row %s: %w", row.MutantID, err)
		}
	}

	writer.Flush()

	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush ledger: %w", err)
	}

	slog.Debug("Appended ledger rows", "path", path, "count", len(rows))

	return nil
}

// Load reads every row of a ledger. Columns are matched by header name, so
// ledgers with only the first five columns load too.
func (s *CSVLedgerStore) Load(ctx context.Context, path m.Path) ([]m.LedgerRow, error) {
	// #nosec G304 - ledger path comes from configuration
	f, err := os.Open(string(path))
	if err != nil {
		return nil, fmt.Errorf("open ledger: %w", err)
	}

	defer func() { _ = f.Close() }()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}

	if err != nil {
		return nil, fmt.Errorf("read ledger header: %w", err)
	}

	index := map[string]int{}
	for i, name := range header {
		index[strings.TrimSpace(name)] = i
	}

	if _, ok := index["mutant_id"]; !ok {
		if legacy, ok := index[legacyMutantColumn]; ok {
			index["mutant_id"] = legacy
		}
	}

	for _, required := range []string{"project_id", "mutant_id", "result"} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("ledger %s: missing column %q", path, required)
		}
	}

	var rows []m.LedgerRow

	for lineNo := 2; ; lineNo++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return nil, fmt.Errorf("read ledger %s: %w", path, err)
		}

		row, err := decodeLedgerRow(record, index)
		if err != nil {
			slog.Warn("Skipping ledger row", "path", path, "line", lineNo, "error", err)
			continue
		}

		rows = append(rows, row)
	}

	return rows, nil
}

func encodeLedgerRow(row m.LedgerRow) []string {
	line := ""
	if row.Line > 0 {
		line = strconv.Itoa(row.Line)
	}

	return []string{
		row.ProjectID,
		row.BugID,
		row.MutantID,
		row.TargetClass,
		row.Status.String(),
		string(row.Origin),
		row.Mutator,
		row.Model,
		row.Method,
		line,
		strings.Join(row.Evidence, evidenceSeparator),
	}
}

func decodeLedgerRow(record []string, index map[string]int) (m.LedgerRow, error) {
	field := func(name string) string {
		i, ok := index[name]
		if !ok || i >= len(record) {
			return ""
		}

		return strings.TrimSpace(record[i])
	}

	status, err := m.ParseStatus(field("result"))
	if err != nil {
		return m.LedgerRow{}, err
	}

	row := m.LedgerRow{
		ProjectID:   field("project_id"),
		BugID:       field("bug_id"),
		MutantID:    field("mutant_id"),
		TargetClass: field("class"),
		Status:      status,
		Origin:      m.Origin(field("origin")),
		Mutator:     field("mutator"),
		Model:       field("model"),
		Method:      field("method"),
	}

	if raw := field("line"); raw != "" {
		line, err := strconv.Atoi(raw)
		if err != nil {
			return m.LedgerRow{}, fmt.Errorf("bad line %q: %w", raw, err)
		}

		row.Line = line
	}

	if raw := field("evidence"); raw != "" {
		row.Evidence = strings.Split(raw, evidenceSeparator)
	}

	return row, nil
}
