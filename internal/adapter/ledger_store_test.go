package adapter

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "mutflow.dev/pkg/mutflow/internal/model"
)

func TestCSVLedgerStore_AppendAndLoad(t *testing.T) {
	ctx := context.Background()
	store := NewCSVLedgerStore()
	path := m.Path(filepath.Join(t.TempDir(), "results", "ledger.csv"))

	first := m.LedgerRow{
		ProjectID:   "Lang",
		BugID:       "1",
		MutantID:    "major-1",
		TargetClass: "org.apache.commons.lang3.StringUtils",
		Status:      m.Killed,
		Origin:      m.OriginTool,
		Mutator:     "ROR",
		Method:      "isEmpty",
		Line:        217,
		Evidence:    []string{"StringUtilsTest::testA", "StringUtilsTest::testB"},
	}
	second := m.LedgerRow{
		ProjectID:   "Lang",
		BugID:       "1",
		MutantID:    "0b1c",
		TargetClass: "org.apache.commons.lang3.StringUtils",
		Status:      m.Survived,
		Origin:      m.OriginLLM,
		Model:       "openai/gpt-4o, mini",
	}

	require.NoError(t, store.Append(ctx, path, first))
	require.NoError(t, store.Append(ctx, path, second))
	require.NoError(t, store.Append(ctx, path))

	data, err := os.ReadFile(string(path))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, strings.Join(LedgerColumns, ","), lines[0])

	rows, err := store.Load(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []m.LedgerRow{first, second}, rows)
}

func TestCSVLedgerStore_LegacyLedger(t *testing.T) {
	path := filepath.Join(t.TempDir(), "results.csv")
	writeTestFile(t, path, "project_id,bug_id,mutant_name,class,result\n"+
		"Lang,1,StringUtils_Mutant_1,org.apache.commons.lang3.StringUtils,killed\n"+
		"Lang,1,StringUtils_Mutant_2,org.apache.commons.lang3.StringUtils,exploded\n"+
		"Lang,1,StringUtils_Mutant_3,org.apache.commons.lang3.StringUtils,survived\n")

	rows, err := NewCSVLedgerStore().Load(context.Background(), m.Path(path))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	assert.Equal(t, "StringUtils_Mutant_1", rows[0].MutantID)
	assert.Equal(t, m.Killed, rows[0].Status)
	assert.Equal(t, m.Survived, rows[1].Status)
}

func TestCSVLedgerStore_LoadErrors(t *testing.T) {
	store := NewCSVLedgerStore()
	dir := t.TempDir()

	_, err := store.Load(context.Background(), m.Path(filepath.Join(dir, "missing.csv")))
	require.Error(t, err)

	noResult := filepath.Join(dir, "bad.csv")
	writeTestFile(t, noResult, "project_id,mutant_id\nLang,1\n")

	_, err = store.Load(context.Background(), m.Path(noResult))
	require.ErrorContains(t, err, `missing column "result"`)

	empty := filepath.Join(dir, "empty.csv")
	writeTestFile(t, empty, "")

	rows, err := store.Load(context.Background(), m.Path(empty))
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestCSVLedgerStore_ConcurrentAppend(t *testing.T) {
	ctx := context.Background()
	store := NewCSVLedgerStore()
	path := m.Path(filepath.Join(t.TempDir(), "ledger.csv"))

	var wg sync.WaitGroup

	for worker := range 4 {
		wg.Add(1)

		go func() {
			defer wg.Done()

			for i := range 25 {
				row := m.LedgerRow{ProjectID: "Lang", MutantID: strings.Repeat("x", worker+1) + string(rune('a'+i%26)), Status: m.Killed}
				assert.NoError(t, store.Append(ctx, path, row))
			}
		}()
	}

	wg.Wait()

	rows, err := store.Load(ctx, path)
	require.NoError(t, err)
	assert.Len(t, rows, 100)
}
