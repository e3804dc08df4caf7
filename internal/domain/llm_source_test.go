package domain_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"mutflow.dev/pkg/mutflow/internal/adapter"
	"mutflow.dev/pkg/mutflow/internal/adapter/mocks"
	"mutflow.dev/pkg/mutflow/internal/domain"
	m "mutflow.dev/pkg/mutflow/internal/model"
)

const calculatorResponse = `{"original_code": "return a + b;", "mutated_code": "return a - b;"}
Here are your mutations:
{"original_code": "return a * b;", "mutated_code": "return a / b;"}
{"original_code": "return value > 0;", "mutated_code": "return value > 0;"}
{"original_code": "return a + b;", "mutated_code": "return a - b;"},
{"mutated_code": "return 0;"}`

func prompting(class string, withPrevious bool) interface{} {
	return mock.MatchedBy(func(prompt string) bool {
		return strings.Contains(prompt, "public class "+class) &&
			strings.Contains(prompt, "Do NOT repeat") == withPrevious
	})
}

func collect(ch <-chan m.Mutant) []m.Mutant {
	var out []m.Mutant
	for mutant := range ch {
		out = append(out, mutant)
	}

	return out
}

func resetCalculator(t *testing.T) domain.Workspace {
	t.Helper()

	ws := newCalculatorWorkspace(t, newFakeDefects4J(t), domain.ResetCheckout)
	require.NoError(t, ws.Reset(context.Background()))

	return ws
}

func TestLLMSource_Stream(t *testing.T) {
	ws := resetCalculator(t)

	client := mocks.NewMockLLMClient(t)
	client.On("Name").Return("openrouter").Maybe()
	client.On("Complete", mock.Anything, prompting("Calculator", false)).Return(calculatorResponse, nil).Once()
	client.On("Complete", mock.Anything, prompting("Calculator", true)).Return(calculatorResponse, nil).Once()
	client.On("Complete", mock.Anything, prompting("Counter", false)).Return("", errors.New("429 too many requests")).Once()

	source := domain.NewLLMSource(client, passthroughJava{}, adapter.NewLocalSourceFSAdapter(), adapter.NewMetrics(),
		domain.LLMSourceConfig{Model: "gpt-test", Rounds: 3, PerRound: 5})

	mutants := collect(source.Stream(context.Background(), ws))
	require.Len(t, mutants, 1)

	target := m.Location{ModulePath: "org/example/calc", ClassName: "Calculator"}
	assert.Equal(t, m.Mutant{
		ID:           domain.MutantID(target, "return a + b;", "return a - b;"),
		Name:         "Calculator_Mutant_1",
		Target:       target,
		OriginalLine: "return a + b;",
		MutatedLine:  "return a - b;",
		Origin:       m.OriginLLM,
		Model:        "gpt-test",
	}, mutants[0])
	assert.Equal(t, "openrouter", source.Name())
}

func TestLLMSource_WithTests(t *testing.T) {
	ws := resetCalculator(t)

	var prompts []string

	client := mocks.NewMockLLMClient(t)
	client.On("Name").Return("gemini").Maybe()
	client.On("Complete", mock.Anything, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { prompts = append(prompts, args.String(1)) }).
		Return("", nil)

	source := domain.NewLLMSource(client, passthroughJava{}, adapter.NewLocalSourceFSAdapter(), nil,
		domain.LLMSourceConfig{Model: "gemini-pro", WithTests: true})

	assert.Empty(t, collect(source.Stream(context.Background(), ws)))
	require.Len(t, prompts, 2)

	assert.Contains(t, prompts[0], "public class Calculator")
	assert.Contains(t, prompts[0], "Test class:")
	assert.Contains(t, prompts[0], "public class CalculatorTest")
	assert.Contains(t, prompts[1], "public class Counter")
	assert.NotContains(t, prompts[1], "Test class:")
}

func TestLLMSource_StopsOnCancel(t *testing.T) {
	ws := resetCalculator(t)

	ctx, cancel := context.WithCancel(context.Background())

	client := mocks.NewMockLLMClient(t)
	client.On("Name").Return("openrouter").Maybe()
	client.On("Complete", mock.Anything, mock.Anything).
		Run(func(mock.Arguments) { cancel() }).
		Return("", context.Canceled).Once()

	source := domain.NewLLMSource(client, passthroughJava{}, adapter.NewLocalSourceFSAdapter(), nil,
		domain.LLMSourceConfig{Rounds: 2})

	assert.Empty(t, collect(source.Stream(ctx, ws)))
}

func TestLLMSource_RepeatedStreamEmitsNothingNew(t *testing.T) {
	ws := resetCalculator(t)

	client := mocks.NewMockLLMClient(t)
	client.On("Name").Return("openrouter").Maybe()
	client.On("Complete", mock.Anything, mock.Anything).Return(calculatorResponse, nil)

	source := domain.NewLLMSource(client, passthroughJava{}, adapter.NewLocalSourceFSAdapter(), nil,
		domain.LLMSourceConfig{Model: "gpt-test", Rounds: 2, PerRound: 5})

	first := collect(source.Stream(context.Background(), ws))
	require.Len(t, first, 1)
	assert.Equal(t, "return a - b;", first[0].MutatedLine)

	assert.Empty(t, collect(source.Stream(context.Background(), ws)))
}

func TestLLMSource_SharedRunMemory(t *testing.T) {
	ws := resetCalculator(t)
	memory := domain.NewRunMemory()

	var prompts []string

	client := mocks.NewMockLLMClient(t)
	client.On("Name").Return("openrouter").Maybe()
	client.On("Complete", mock.Anything, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { prompts = append(prompts, args.String(1)) }).
		Return(calculatorResponse, nil)

	newSource := func(model string) domain.MutantSource {
		return domain.NewLLMSource(client, passthroughJava{}, adapter.NewLocalSourceFSAdapter(), nil,
			domain.LLMSourceConfig{Model: model, PerRound: 5, Memory: memory})
	}

	require.Len(t, collect(newSource("gpt-test").Stream(context.Background(), ws)), 1)

	prompts = nil

	assert.Empty(t, collect(newSource("gpt-test").Stream(context.Background(), ws)))
	require.NotEmpty(t, prompts)
	assert.Contains(t, prompts[0], "Do NOT repeat")
	assert.Contains(t, prompts[0], `"mutated_code":"return a - b;"`)

	other := collect(newSource("other-model").Stream(context.Background(), ws))
	require.Len(t, other, 1)
	assert.Equal(t, "other-model", other[0].Model)
}

func TestLLMSource_SkipsMisplacedPackage(t *testing.T) {
	ws := resetCalculator(t)

	stray := filepath.Join(string(ws.Dir()), "src", "main", "java", "org", "example", "calc", "Stray.java")
	require.NoError(t, os.WriteFile(stray, []byte("package org.example.other;\n\npublic class Stray {\n    int f() {\n        return a + b;\n    }\n}\n"), 0o600))

	var prompts []string

	client := mocks.NewMockLLMClient(t)
	client.On("Name").Return("openrouter").Maybe()
	client.On("Complete", mock.Anything, mock.AnythingOfType("string")).
		Run(func(args mock.Arguments) { prompts = append(prompts, args.String(1)) }).
		Return("", nil)

	source := domain.NewLLMSource(client, passthroughJava{}, adapter.NewLocalSourceFSAdapter(), nil,
		domain.LLMSourceConfig{Model: "gpt-test"})

	assert.Empty(t, collect(source.Stream(context.Background(), ws)))
	require.Len(t, prompts, 2)

	for _, prompt := range prompts {
		assert.NotContains(t, prompt, "public class Stray")
	}
}

func TestRunMemory_Remember(t *testing.T) {
	memory := domain.NewRunMemory()
	pair := domain.Candidate{OriginalCode: "return a + b;", MutatedCode: "return a - b;"}

	assert.True(t, memory.Remember("Calc_1_f|gpt", "org/example/calc/Calculator.java", pair))
	assert.False(t, memory.Remember("Calc_1_f|gpt", "org/example/calc/Calculator.java", pair))
	assert.True(t, memory.Remember("Calc_1_f|gpt", "org/example/calc/Counter.java", pair))
	assert.True(t, memory.Remember("Calc_2_f|gpt", "org/example/calc/Calculator.java", pair))

	assert.Equal(t, []domain.Candidate{pair}, memory.Pairs("Calc_1_f|gpt", "org/example/calc/Calculator.java"))
	assert.Empty(t, memory.Pairs("Calc_1_f|other", "org/example/calc/Calculator.java"))
}

func TestMutantID_Deterministic(t *testing.T) {
	target := m.Location{ModulePath: "org/example", ClassName: "Foo"}

	first := domain.MutantID(target, "a;", "b;")
	assert.Equal(t, first, domain.MutantID(target, "a;", "b;"))
	assert.NotEqual(t, first, domain.MutantID(target, "a;", "c;"))
	assert.NotEqual(t, first, domain.MutantID(m.Location{ClassName: "Foo"}, "a;", "b;"))
	assert.Equal(t, "Foo_Mutant_7", domain.MutantName(target, 7))
}
