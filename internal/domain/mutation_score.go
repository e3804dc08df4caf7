package domain

import (
	"sort"

	m "mutflow.dev/pkg/mutflow/internal/model"
)

func dimensionKey(row m.LedgerRow, dim m.Dimension) string {
	var key string

	switch dim {
	case m.ByProject:
		key = row.ProjectID
		if row.BugID != "" {
			key += "_" + row.BugID
		}
	case m.ByClass:
		key = row.TargetClass
	case m.ByMutator:
		key = row.Mutator
	case m.ByMethod:
		key = row.Method
		if key != "" && row.TargetClass != "" {
			key = row.TargetClass + "." + key
		}
	case m.ByOrigin:
		key = string(row.Origin)
	}

	if key == "" {
		return "unknown"
	}

	return key
}

type scoreAggregator struct {
	overall m.Tally
	groups  map[m.Dimension]map[string]m.Tally
}

func newScoreAggregator() *scoreAggregator {
	groups := map[m.Dimension]map[string]m.Tally{}
	for _, dim := range m.Dimensions {
		groups[dim] = map[string]m.Tally{}
	}

	return &scoreAggregator{overall: m.Tally{}, groups: groups}
}

func (a *scoreAggregator) add(row m.LedgerRow) {
	a.overall.Add(row.Status)

	for _, dim := range m.Dimensions {
		key := dimensionKey(row, dim)

		tally, ok := a.groups[dim][key]
		if !ok {
			tally = m.Tally{}
			a.groups[dim][key] = tally
		}

		tally.Add(row.Status)
	}
}

func (a *scoreAggregator) report() m.ScoreReport {
	report := m.ScoreReport{Overall: a.overall, Groups: map[m.Dimension][]m.GroupScore{}}

	for dim, byKey := range a.groups {
		rows := make([]m.GroupScore, 0, len(byKey))
		for key, tally := range byKey {
			rows = append(rows, m.GroupScore{Key: key, Tally: tally})
		}

		sort.Slice(rows, func(i, j int) bool { return rows[i].Key < rows[j].Key })

		report.Groups[dim] = rows
	}

	return report
}

// AggregateScores builds a ScoreReport from ledger rows. The result does not
// depend on row order.
func AggregateScores(rows []m.LedgerRow) m.ScoreReport {
	agg := newScoreAggregator()
	for _, row := range rows {
		agg.add(row)
	}

	return agg.report()
}

// rowSource is the read side of the verdict spill.
type rowSource interface {
	Each(fn func(row m.LedgerRow) error) error
}

func scoreFromSpill(rows rowSource) (m.ScoreReport, error) {
	agg := newScoreAggregator()

	err := rows.Each(func(row m.LedgerRow) error {
		agg.add(row)
		return nil
	})
	if err != nil {
		return m.ScoreReport{}, err
	}

	return agg.report(), nil
}
