package model

// ToolRecord is one mutant entry imported from an external mutation tool report.
type ToolRecord struct {
	ID         string
	StatusCode string
	Mutator    string
	Class      string
	Method     string
	Line       int
	Tests      []string
}

// StatusTable maps a tool's status vocabulary to canonical statuses.
type StatusTable map[string]Status

// Map returns the canonical status for code, or Invalid when the code is unknown.
func (t StatusTable) Map(code string) (Status, bool) {
	status, ok := t[code]
	if !ok {
		return Invalid, false
	}

	return status, true
}

// PITStatuses maps PIT report status codes.
var PITStatuses = StatusTable{
	"KILLED":       Killed,
	"SURVIVED":     Survived,
	"NO_COVERAGE":  NoCoverage,
	"TIMED_OUT":    Timeout,
	"NON_VIABLE":   BuildFailed,
	"MEMORY_ERROR": Killed,
	"RUN_ERROR":    Killed,
}

// MajorStatuses maps Defects4J/Major kill.csv status codes.
var MajorStatuses = StatusTable{
	"FAIL":  Killed,
	"LIVE":  Survived,
	"UNCOV": NoCoverage,
	"TIME":  Timeout,
	"EXC":   Killed,
}
