package domain_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"mutflow.dev/pkg/mutflow/internal/adapter"
	"mutflow.dev/pkg/mutflow/internal/domain"
	m "mutflow.dev/pkg/mutflow/internal/model"
)

const calculatorFixture = "../../examples/calculator"

var (
	calculatorProject = m.Project{ID: "Calc", PackagePath: "org.example.calc", BugID: "1", Version: "f", TestDir: "src/test/java"}
	danglingOperator  = regexp.MustCompile(`[^-+][-+*/]\s*;`)
)

// fakeDefects4J stands in for the defects4j CLI: checkout copies the fixture,
// compile rejects dangling operators and the "tests" check a few source lines.
type fakeDefects4J struct {
	fixture string
	fs      *adapter.LocalSourceFSAdapter

	mu             sync.Mutex
	checkouts      int
	compiles       int
	tests          []string
	failCheckoutAt int
	failCompile    bool
	mutationErr    error
}

func newFakeDefects4J(t *testing.T) *fakeDefects4J {
	t.Helper()

	return &fakeDefects4J{fixture: calculatorFixture, fs: adapter.NewLocalSourceFSAdapter()}
}

func (f *fakeDefects4J) Checkout(ctx context.Context, _ m.Project, dir m.Path, _ time.Duration) error {
	f.mu.Lock()
	f.checkouts++
	n := f.checkouts
	f.mu.Unlock()

	if f.failCheckoutAt > 0 && n >= f.failCheckoutAt {
		return fmt.Errorf("%w: injected", adapter.ErrCheckoutFailed)
	}

	return f.fs.CopyDir(ctx, m.Path(f.fixture), dir)
}

func (f *fakeDefects4J) Compile(_ context.Context, dir m.Path, _ time.Duration) error {
	f.mu.Lock()
	f.compiles++
	f.mu.Unlock()

	if f.failCompile {
		return fmt.Errorf("%w: injected", adapter.ErrCompileFailed)
	}

	for _, src := range f.sources(dir) {
		if danglingOperator.MatchString(src) {
			return fmt.Errorf("%w: exit 1", adapter.ErrCompileFailed)
		}
	}

	return f.writeClasses(dir)
}

// writeClasses drops an empty .class file per source file, plus an inner class
// and package-info, under target/classes.
func (f *fakeDefects4J) writeClasses(dir m.Path) error {
	sourceRoot := filepath.Join(string(dir), "src", "main", "java")
	classes := filepath.Join(string(dir), "target", "classes")

	return filepath.WalkDir(sourceRoot, func(path string, d os.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.HasSuffix(path, ".java") {
			return err
		}

		rel, err := filepath.Rel(sourceRoot, strings.TrimSuffix(path, ".java"))
		if err != nil {
			return err
		}

		target := filepath.Join(classes, rel)
		if err := os.MkdirAll(filepath.Dir(target), 0o750); err != nil {
			return err
		}

		for _, name := range []string{target + ".class", target + "$Inner.class", filepath.Join(filepath.Dir(target), "package-info.class")} {
			if err := os.WriteFile(name, nil, 0o600); err != nil {
				return err
			}
		}

		return nil
	})
}

func (f *fakeDefects4J) Test(_ context.Context, dir m.Path, focus string, _ time.Duration) (adapter.TestReport, error) {
	f.mu.Lock()
	f.tests = append(f.tests, focus)
	f.mu.Unlock()

	calc := f.read(dir, "org/example/calc/Calculator.java")

	if strings.Contains(calc, "while (true)") {
		return adapter.TestReport{Status: adapter.TestsTimedOut, ExitCode: -1}, nil
	}

	var failing []string

	if !strings.Contains(calc, "return a + b;") {
		failing = append(failing, "org.example.calc.CalculatorTest::testAdd")
	}

	if strings.Contains(calc, "System.exit(1);") {
		return adapter.TestReport{Status: adapter.TestsPassed, ExitCode: 1}, nil
	}

	if len(failing) > 0 {
		return adapter.TestReport{Status: adapter.TestsFailed, FailingTests: failing, ExitCode: 1}, nil
	}

	return adapter.TestReport{Status: adapter.TestsPassed}, nil
}

func (f *fakeDefects4J) Mutation(_ context.Context, dir m.Path, instrument m.Path) error {
	if f.mutationErr != nil {
		return f.mutationErr
	}

	if _, err := os.Stat(string(instrument)); err != nil {
		return err
	}

	kill := "MutantNo,[FAIL | TIME | EXC | LIVE | UNCOV]\n1,FAIL\n2,LIVE\n3,UNCOV\n4,WEIRD\n"
	if err := os.WriteFile(filepath.Join(string(dir), adapter.MajorKillFile), []byte(kill), 0o600); err != nil {
		return err
	}

	log, err := os.ReadFile(filepath.Join(f.fixture, adapter.MajorLogFile))
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(string(dir), adapter.MajorLogFile), log, 0o600)
}

func (f *fakeDefects4J) read(dir m.Path, rel string) string {
	data, err := os.ReadFile(filepath.Join(string(dir), "src", "main", "java", filepath.FromSlash(rel)))
	if err != nil {
		return ""
	}

	return string(data)
}

func (f *fakeDefects4J) sources(dir m.Path) []string {
	var out []string

	_ = filepath.WalkDir(filepath.Join(string(dir), "src", "main", "java"), func(path string, d os.DirEntry, err error) error {
		if err == nil && !d.IsDir() && strings.HasSuffix(path, ".java") {
			data, readErr := os.ReadFile(path)
			if readErr == nil {
				out = append(out, string(data))
			}
		}

		return nil
	})

	return out
}

func (f *fakeDefects4J) checkoutCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.checkouts
}

// passthroughJava skips comment stripping so domain tests do not need the parser.
type passthroughJava struct{}

func (passthroughJava) StripComments(_ context.Context, src []byte) ([]byte, error) {
	return src, nil
}

func (passthroughJava) PackageName(_ context.Context, src []byte) (string, error) {
	for _, line := range strings.Split(string(src), "\n") {
		if pkg, ok := strings.CutPrefix(strings.TrimSpace(line), "package "); ok {
			return strings.TrimSuffix(strings.TrimSpace(pkg), ";"), nil
		}
	}

	return "", nil
}

// memoryLedger collects rows in memory.
type memoryLedger struct {
	mu   sync.Mutex
	rows []m.LedgerRow
	err  error
}

func (l *memoryLedger) Append(_ context.Context, _ m.Path, rows ...m.LedgerRow) error {
	if l.err != nil {
		return l.err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.rows = append(l.rows, rows...)

	return nil
}

func (l *memoryLedger) Load(_ context.Context, _ m.Path) ([]m.LedgerRow, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	return append([]m.LedgerRow(nil), l.rows...), nil
}

func (l *memoryLedger) snapshot() []m.LedgerRow {
	rows, _ := l.Load(context.Background(), "")
	return rows
}

// sliceSource emits a fixed list of mutants.
type sliceSource []m.Mutant

func (s sliceSource) Name() string { return "slice" }

func (s sliceSource) Stream(ctx context.Context, _ domain.Workspace) <-chan m.Mutant {
	ch := make(chan m.Mutant)

	go func() {
		defer close(ch)

		for _, mutant := range s {
			select {
			case <-ctx.Done():
				return
			case ch <- mutant:
			}
		}
	}()

	return ch
}

func calculatorMutant(id, original, mutated string) m.Mutant {
	return m.Mutant{
		ID:           id,
		Name:         "Calculator_" + id,
		Target:       m.Location{ModulePath: "org/example/calc", ClassName: "Calculator"},
		OriginalLine: original,
		MutatedLine:  mutated,
		Origin:       m.OriginLLM,
		Model:        "test-model",
	}
}

// newCalculatorWorkspace returns a workspace over the calculator fixture in a
// fresh temporary directory.
func newCalculatorWorkspace(t *testing.T, build adapter.BuildToolAdapter, strategy domain.ResetStrategy) domain.Workspace {
	t.Helper()

	dir := m.Path(filepath.Join(t.TempDir(), "calc_1_f"))

	return domain.NewWorkspace(calculatorProject, dir, domain.WorkspaceConfig{Strategy: strategy}, build, adapter.NewLocalSourceFSAdapter())
}

func readWorkspaceClass(t *testing.T, ws domain.Workspace, rel string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(string(ws.Dir()), "src", "main", "java", filepath.FromSlash(rel)))
	require.NoError(t, err)

	return string(data)
}

func readFixture(t *testing.T, rel string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(calculatorFixture, "src", "main", "java", filepath.FromSlash(rel)))
	require.NoError(t, err)

	return string(data)
}
