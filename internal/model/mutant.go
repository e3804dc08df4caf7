package model

// Origin tells which generator produced a mutant.
type Origin string

const (
	// OriginTool marks mutants parsed from an external mutation tool's log.
	OriginTool Origin = "tool"
	// OriginLLM marks mutants proposed by a language model.
	OriginLLM Origin = "llm"
)

// Mutant is one single-line source edit. It is created by a mutant source,
// consumed once by the coordinator and never modified afterwards.
type Mutant struct {
	ID           string   `yaml:"id" validate:"required"`
	Name         string   `yaml:"name"`
	Target       Location `yaml:"target"`
	OriginalLine string   `yaml:"original_code" validate:"required"`
	MutatedLine  string   `yaml:"mutated_code"`
	Origin       Origin   `yaml:"origin" validate:"oneof=tool llm"`
	Mutator      string   `yaml:"mutator,omitempty"`
	Model        string   `yaml:"model,omitempty"`
	Method       string   `yaml:"method,omitempty"`
	Line         int      `yaml:"line,omitempty"`
}

// MutantFile is the on-disk form of a generated mutant batch.
type MutantFile struct {
	Project Project  `yaml:"project"`
	Model   string   `yaml:"model"`
	Mutants []Mutant `yaml:"mutants"`
}
