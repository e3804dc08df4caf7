package model

import (
	"fmt"
	"strings"
	"time"
)

// Status is the canonical classification of one tested mutant.
type Status int

const (
	// Killed means at least one test failed with the mutant applied.
	Killed Status = iota
	// Survived means the test suite passed with the mutant applied.
	Survived
	// BuildFailed means the mutated workspace did not compile.
	BuildFailed
	// Timeout means the test run exceeded its bound and was terminated.
	Timeout
	// Invalid marks records that never reached testing.
	Invalid
	// NoCoverage marks imported tool records with no covering test.
	NoCoverage
)

var statusNames = map[Status]string{
	Killed:      "killed",
	Survived:    "survived",
	BuildFailed: "build_failed",
	Timeout:     "timeout",
	Invalid:     "invalid",
	NoCoverage:  "no_coverage",
}

// AllStatuses lists statuses in display order.
var AllStatuses = []Status{Killed, Survived, BuildFailed, Timeout, NoCoverage, Invalid}

func (s Status) String() string {
	if name, ok := statusNames[s]; ok {
		return name
	}

	return fmt.Sprintf("status(%d)", int(s))
}

// ParseStatus converts a canonical status name back to a Status.
func ParseStatus(value string) (Status, error) {
	value = strings.ToLower(strings.TrimSpace(value))
	for status, name := range statusNames {
		if name == value {
			return status, nil
		}
	}

	return Invalid, fmt.Errorf("unknown status %q", value)
}

// Detected reports whether the status counts as caught by the test suite.
func (s Status) Detected() bool {
	return s == Killed || s == BuildFailed || s == Timeout
}

// Scored reports whether the status takes part in the mutation score.
func (s Status) Scored() bool {
	return s == Killed || s == Survived || s == BuildFailed || s == Timeout
}

// MarshalYAML renders the status by name.
func (s Status) MarshalYAML() (interface{}, error) {
	return s.String(), nil
}

// UnmarshalYAML parses the status from its name.
func (s *Status) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var raw string
	if err := unmarshal(&raw); err != nil {
		return err
	}

	parsed, err := ParseStatus(raw)
	if err != nil {
		return err
	}

	*s = parsed

	return nil
}

// Verdict is the immutable outcome of testing one applied mutant.
type Verdict struct {
	MutantID string
	Status   Status
	Evidence []string
	Duration time.Duration
}

// LedgerRow is one line of the append-only results ledger.
type LedgerRow struct {
	ProjectID   string
	BugID       string
	MutantID    string
	TargetClass string
	Status      Status
	Origin      Origin
	Mutator     string
	Model       string
	Method      string
	Line        int
	Evidence    []string
}

// NewLedgerRow joins a mutant with its verdict for the given project.
func NewLedgerRow(project Project, mutant Mutant, verdict Verdict) LedgerRow {
	return LedgerRow{
		ProjectID:   project.ID,
		BugID:       project.BugID,
		MutantID:    mutant.ID,
		TargetClass: mutant.Target.QualifiedName(),
		Status:      verdict.Status,
		Origin:      mutant.Origin,
		Mutator:     mutant.Mutator,
		Model:       mutant.Model,
		Method:      mutant.Method,
		Line:        mutant.Line,
		Evidence:    verdict.Evidence,
	}
}
