package domain

import (
	"cmp"
	"slices"
	"sync"
)

// memoryKey scopes remembered pairs to one source file of one unit.
type memoryKey struct {
	scope string
	file  string
}

// RunMemory remembers every (original, mutated) pair emitted during a run so a
// later generation request for the same file never repeats one. It is safe for
// concurrent use by the units of a run.
type RunMemory struct {
	mu    sync.Mutex
	pairs map[memoryKey]map[Candidate]struct{}
}

// NewRunMemory returns an empty RunMemory.
func NewRunMemory() *RunMemory {
	return &RunMemory{pairs: map[memoryKey]map[Candidate]struct{}{}}
}

// Remember records c for file within scope. It reports false when the pair was
// already known.
func (r *RunMemory) Remember(scope, file string, c Candidate) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := memoryKey{scope: scope, file: file}

	known, ok := r.pairs[key]
	if !ok {
		known = map[Candidate]struct{}{}
		r.pairs[key] = known
	}

	if _, dup := known[c]; dup {
		return false
	}

	known[c] = struct{}{}

	return true
}

// Pairs returns the pairs remembered for file within scope, sorted.
func (r *RunMemory) Pairs(scope, file string) []Candidate {
	r.mu.Lock()
	defer r.mu.Unlock()

	known := r.pairs[memoryKey{scope: scope, file: file}]
	out := make([]Candidate, 0, len(known))

	for c := range known {
		out = append(out, c)
	}

	slices.SortFunc(out, func(a, b Candidate) int {
		return cmp.Or(cmp.Compare(a.OriginalCode, b.OriginalCode), cmp.Compare(a.MutatedCode, b.MutatedCode))
	})

	return out
}
