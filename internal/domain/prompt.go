package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

const mutatorCatalogue = `- AOR (Arithmetic Operator Replacement): +, -, *, /, %
- LOR (Logical Operator Replacement): &&, ||
- ROR (Relational Operator Replacement): <, <=, >, >=, ==, !=
- UOI (Unary Operator Insertion/Deletion): ++, --, !
- COI (Conditional Operator Inversion): invert conditions in if/loops
- PRV (Primitive Return Values): change return values of primitives
- SAI (Statement Removal/Replacement): modify or remove assignment/return statements
- LVR (Literal Value Replacement): replace numeric or boolean literals
- NPE (Null Pointer Injection): replace variables with null
- MTD (Method Call Replacement): replace a method call with another valid one`

// Candidate is one edit proposed by a model, before validation.
type Candidate struct {
	OriginalCode string `json:"original_code"`
	MutatedCode  string `json:"mutated_code"`
}

// PromptInput is what goes into one generation prompt.
type PromptInput struct {
	ClassSource string
	TestSource  string
	Previous    []Candidate
	Count       int
}

// BuildPrompt renders the generation prompt. With a test class the model is
// asked for mutants that the given tests would not detect.
func BuildPrompt(in PromptInput) string {
	count := in.Count
	if count <= 0 {
		count = 3
	}

	var b strings.Builder

	fmt.Fprintf(&b, "Generate exactly %d mutations of different lines in the following Java class for mutation testing.\n", count)
	b.WriteString("Use only the following mutators:\n")
	b.WriteString(mutatorCatalogue)
	b.WriteString("\n\nRULES:\n")
	b.WriteString("- Mutate exactly ONE line per mutation.\n")
	b.WriteString("- Do NOT modify class or method declarations.\n")
	b.WriteString("- Do NOT introduce new operators or control structures; only change existing ones.\n")
	b.WriteString("- The mutated line must differ from the original and must still compile.\n")
	b.WriteString("- Do not replace variables with function calls.\n")
	b.WriteString("- original_code must be copied verbatim from a single line of the class.\n")
	b.WriteString("- Output MUST be JSON objects, one per line:\n")
	b.WriteString(`  {"original_code": "<original_code>", "mutated_code": "<mutated_code>"}` + "\n")
	b.WriteString("- No commentary, no markdown, only JSON objects.\n")

	if in.TestSource != "" {
		b.WriteString("- Prefer mutations that the test class below would NOT detect.\n")
	}

	if len(in.Previous) > 0 {
		b.WriteString("\nDo NOT repeat any of these previous mutations:\n")

		for _, prev := range in.Previous {
			line, _ := json.Marshal(prev)
			b.Write(line)
			b.WriteString("\n")
		}
	}

	b.WriteString("\nOriginal Java class:\n")
	b.WriteString(in.ClassSource)

	if in.TestSource != "" {
		b.WriteString("\n\nTest class:\n")
		b.WriteString(in.TestSource)
	}

	b.WriteString("\n")

	return b.String()
}

// ParseCandidates extracts JSON-lines records from a model response. Lines that
// are not objects carrying both fields are dropped.
func ParseCandidates(response string) []Candidate {
	var out []Candidate

	for _, line := range strings.Split(response, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSuffix(line, ",")

		if !strings.HasPrefix(line, "{") {
			continue
		}

		var raw struct {
			OriginalCode *string `json:"original_code"`
			MutatedCode  *string `json:"mutated_code"`
		}

		if err := json.Unmarshal([]byte(line), &raw); err != nil {
			continue
		}

		if raw.OriginalCode == nil || raw.MutatedCode == nil {
			continue
		}

		out = append(out, Candidate{
			OriginalCode: strings.TrimSpace(*raw.OriginalCode),
			MutatedCode:  strings.TrimSpace(*raw.MutatedCode),
		})
	}

	return out
}

// ValidLines returns the set of trimmed, non-empty lines of src.
func ValidLines(src string) map[string]struct{} {
	lines := map[string]struct{}{}

	for _, line := range strings.Split(src, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			lines[line] = struct{}{}
		}
	}

	return lines
}
