package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "mutflow.dev/pkg/mutflow/internal/model"
	"mutflow.dev/pkg/mutflow/pkg"
)

type errSpill struct {
	err error
}

func (e errSpill) Each(func(m.LedgerRow) error) error { return e.err }

func scoreRows() []m.LedgerRow {
	row := func(class, mutator, method string, origin m.Origin, status m.Status) m.LedgerRow {
		return m.LedgerRow{
			ProjectID:   "Lang",
			BugID:       "1",
			TargetClass: class,
			Mutator:     mutator,
			Method:      method,
			Origin:      origin,
			Status:      status,
		}
	}

	return []m.LedgerRow{
		row("a.Foo", "AOR", "add", m.OriginTool, m.Killed),
		row("a.Foo", "AOR", "add", m.OriginTool, m.Survived),
		row("a.Foo", "ROR", "cmp", m.OriginTool, m.Timeout),
		row("a.Bar", "ROR", "", m.OriginTool, m.NoCoverage),
		row("a.Bar", "", "", m.OriginLLM, m.BuildFailed),
		row("a.Bar", "", "", m.OriginLLM, m.Invalid),
	}
}

func TestAggregateScores(t *testing.T) {
	report := AggregateScores(scoreRows())

	assert.Equal(t, 6, report.Overall.Total())
	assert.Equal(t, 3, report.Overall.Detected())
	assert.Equal(t, 4, report.Overall.Scored())
	assert.InDelta(t, 75.0, report.Score(), 0.001)

	classes := report.Groups[m.ByClass]
	require.Len(t, classes, 2)
	assert.Equal(t, "a.Bar", classes[0].Key)
	assert.InDelta(t, 100.0, classes[0].Tally.Score(), 0.001)
	assert.Equal(t, "a.Foo", classes[1].Key)
	assert.InDelta(t, 200.0/3, classes[1].Tally.Score(), 0.001)

	mutators := report.Groups[m.ByMutator]
	require.Len(t, mutators, 3)
	assert.Equal(t, []string{"AOR", "ROR", "unknown"}, []string{mutators[0].Key, mutators[1].Key, mutators[2].Key})
	assert.InDelta(t, 50.0, mutators[0].Tally.Score(), 0.001)
	assert.InDelta(t, 100.0, mutators[1].Tally.Score(), 0.001)

	methods := report.Groups[m.ByMethod]
	assert.Equal(t, "a.Foo.add", methods[0].Key)

	projects := report.Groups[m.ByProject]
	require.Len(t, projects, 1)
	assert.Equal(t, "Lang_1", projects[0].Key)

	origins := report.Groups[m.ByOrigin]
	require.Len(t, origins, 2)
	assert.Equal(t, "llm", origins[0].Key)
	assert.Equal(t, 2, origins[0].Tally.Total())
}

func TestAggregateScores_OrderIndependent(t *testing.T) {
	rows := scoreRows()

	reversed := make([]m.LedgerRow, len(rows))
	for i, row := range rows {
		reversed[len(rows)-1-i] = row
	}

	assert.Equal(t, AggregateScores(rows), AggregateScores(reversed))
}

func TestAggregateScores_Empty(t *testing.T) {
	report := AggregateScores(nil)

	assert.Zero(t, report.Score())
	assert.Empty(t, report.Groups[m.ByClass])
}

func TestAggregateScores_OnlyExcluded(t *testing.T) {
	report := AggregateScores([]m.LedgerRow{
		{TargetClass: "a.Foo", Status: m.NoCoverage},
		{TargetClass: "a.Foo", Status: m.Invalid},
	})

	assert.Zero(t, report.Score())
	assert.Equal(t, 2, report.Overall.Total())
}

func TestScoreFromSpill(t *testing.T) {
	spill, err := pkg.NewSpill[m.LedgerRow](t.TempDir())
	require.NoError(t, err)

	defer func() { _ = spill.Remove() }()

	require.NoError(t, spill.Append(scoreRows()...))

	report, err := scoreFromSpill(spill)
	require.NoError(t, err)
	assert.Equal(t, AggregateScores(scoreRows()), report)
}

func TestScoreFromSpill_ReadError(t *testing.T) {
	_, err := scoreFromSpill(errSpill{err: errors.New("corrupt spill")})
	require.EqualError(t, err, "corrupt spill")
}
