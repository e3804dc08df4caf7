package model

// Tally counts verdicts by status.
type Tally map[Status]int

// Add counts one verdict.
func (t Tally) Add(status Status) {
	t[status]++
}

// Detected is killed + build_failed + timeout.
func (t Tally) Detected() int {
	total := 0

	for status, count := range t {
		if status.Detected() {
			total += count
		}
	}

	return total
}

// Scored is the score denominator: detected + survived.
func (t Tally) Scored() int {
	total := 0

	for status, count := range t {
		if status.Scored() {
			total += count
		}
	}

	return total
}

// Total counts every recorded verdict, excluded ones included.
func (t Tally) Total() int {
	total := 0
	for _, count := range t {
		total += count
	}

	return total
}

// Score returns the mutation score in percent. no_coverage and invalid are
// excluded from both sides; an empty denominator scores 0.
func (t Tally) Score() float64 {
	scored := t.Scored()
	if scored == 0 {
		return 0
	}

	return float64(t.Detected()) / float64(scored) * 100
}

// Dimension names a grouping key of the score breakdown.
type Dimension string

// Available breakdown dimensions.
const (
	ByProject Dimension = "project"
	ByClass   Dimension = "class"
	ByMutator Dimension = "mutator"
	ByMethod  Dimension = "method"
	ByOrigin  Dimension = "origin"
)

// Dimensions lists the breakdowns in display order.
var Dimensions = []Dimension{ByProject, ByClass, ByMutator, ByMethod, ByOrigin}

// GroupScore is one row of a breakdown.
type GroupScore struct {
	Key   string
	Tally Tally
}

// ScoreReport is the overall tally plus one breakdown per dimension.
type ScoreReport struct {
	Overall Tally
	Groups  map[Dimension][]GroupScore
}

// Score is shorthand for the overall score.
func (r ScoreReport) Score() float64 {
	return r.Overall.Score()
}

// UnitSummary reports how one project/source unit of work ended.
type UnitSummary struct {
	Project Project
	Source  string
	State   string
	Applied int
	Skipped int
	Score   float64
	Err     error
}
