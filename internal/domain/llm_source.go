package domain

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"mutflow.dev/pkg/mutflow/internal/adapter"
	m "mutflow.dev/pkg/mutflow/internal/model"
)

// LLMSourceConfig tunes prompting.
type LLMSourceConfig struct {
	// Model is recorded on every mutant.
	Model string
	// Rounds is the number of prompts per file. A round that yields nothing new
	// ends the file early.
	Rounds int
	// PerRound is the number of mutations asked for in each prompt.
	PerRound int
	// WithTests adds the class's test file to the prompt.
	WithTests bool
	// Memory holds the pairs already emitted in this run. Sources built
	// without one get a private memory.
	Memory *RunMemory
}

type llmSource struct {
	client  adapter.LLMClient
	java    adapter.JavaFileAdapter
	fs      adapter.SourceFSAdapter
	metrics *adapter.Metrics
	config  LLMSourceConfig
}

// classInput is a source file loaded from the baseline, ready to be prompted.
type classInput struct {
	scope   string
	target  m.Location
	path    m.Path
	cleaned string
	test    string
}

// NewLLMSource builds a source that asks client for mutants of every Java class.
func NewLLMSource(
	client adapter.LLMClient,
	java adapter.JavaFileAdapter,
	fs adapter.SourceFSAdapter,
	metrics *adapter.Metrics,
	config LLMSourceConfig,
) MutantSource {
	if config.Rounds <= 0 {
		config.Rounds = 1
	}

	if config.Memory == nil {
		config.Memory = NewRunMemory()
	}

	return &llmSource{client: client, java: java, fs: fs, metrics: metrics, config: config}
}

func (s *llmSource) Name() string {
	return s.client.Name()
}

func (s *llmSource) Stream(ctx context.Context, ws Workspace) <-chan m.Mutant {
	ch := make(chan m.Mutant, 1)

	go func() {
		defer close(ch)

		classes, err := s.loadClasses(ctx, ws)
		if err != nil {
			slog.Error("Failed to load classes", "project", ws.Project().Key(), "error", err)
			return
		}

		slog.Debug("Loaded classes for prompting", "project", ws.Project().Key(), "count", len(classes))

		for _, class := range classes {
			if ctx.Err() != nil {
				return
			}

			if !s.generate(ctx, class, ch) {
				return
			}
		}
	}()

	return ch
}

func (s *llmSource) loadClasses(ctx context.Context, ws Workspace) ([]classInput, error) {
	root, err := ws.SourceRoot(ctx)
	if err != nil {
		return nil, err
	}

	files, err := s.fs.JavaFiles(ctx, root)
	if err != nil {
		return nil, err
	}

	classes := make([]classInput, 0, len(files))
	scope := ws.Project().Key() + "|" + s.config.Model

	for _, file := range files {
		target, err := locationFor(root, file)
		if err != nil {
			slog.Warn("Skipping file outside a valid package path", "path", file, "error", err)
			continue
		}

		cleaned, err := s.readCleaned(ctx, file)
		if err != nil {
			slog.Error("Failed to read class", "path", file, "error", err)
			continue
		}

		declared, err := s.java.PackageName(ctx, []byte(cleaned))
		if err != nil {
			slog.Error("Failed to parse package", "path", file, "error", err)
			continue
		}

		if strings.ReplaceAll(declared, ".", "/") != target.ModulePath {
			slog.Warn("Skipping class whose package does not match its directory", "path", file, "package", declared, "dir", target.ModulePath)
			s.metrics.ObserveRejected("package_mismatch")

			continue
		}

		class := classInput{scope: scope, target: target, path: file, cleaned: cleaned}

		if s.config.WithTests {
			class.test = s.readTest(ctx, ws, target)
		}

		classes = append(classes, class)
	}

	return classes, nil
}

func (s *llmSource) readCleaned(ctx context.Context, path m.Path) (string, error) {
	src, err := s.fs.ReadFile(ctx, path)
	if err != nil {
		return "", err
	}

	cleaned, err := s.java.StripComments(ctx, src)
	if err != nil {
		return "", err
	}

	return string(cleaned), nil
}

func (s *llmSource) readTest(ctx context.Context, ws Workspace, target m.Location) string {
	testPath, err := s.fs.DetectTestFile(ctx, ws.Dir(), target)
	if err != nil || testPath == "" {
		slog.Debug("No test class found", "class", target.QualifiedName())
		return ""
	}

	test, err := s.readCleaned(ctx, testPath)
	if err != nil {
		slog.Warn("Failed to read test class", "path", testPath, "error", err)
		return ""
	}

	return test
}

// generate prompts for one class and emits every new, valid candidate.
// It returns false once ctx is cancelled.
func (s *llmSource) generate(ctx context.Context, class classInput, ch chan<- m.Mutant) bool {
	valid := ValidLines(class.cleaned)
	file := class.target.RelPath()
	previous := s.config.Memory.Pairs(class.scope, file)
	emitted := len(previous)

	for round := 1; round <= s.config.Rounds; round++ {
		prompt := BuildPrompt(PromptInput{
			ClassSource: class.cleaned,
			TestSource:  class.test,
			Previous:    previous,
			Count:       s.config.PerRound,
		})

		response, err := s.client.Complete(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return false
			}

			slog.Error("Model request failed", "client", s.client.Name(), "class", class.target.QualifiedName(), "round", round, "error", err)
			s.metrics.ObserveRequest(s.client.Name(), "error")

			return true
		}

		s.metrics.ObserveRequest(s.client.Name(), "ok")

		added := 0

		for _, candidate := range ParseCandidates(response) {
			reason := reject(candidate, valid)
			if reason == "" && !s.config.Memory.Remember(class.scope, file, candidate) {
				reason = "duplicate"
			}

			if reason != "" {
				slog.Debug("Rejected candidate", "class", class.target.QualifiedName(), "reason", reason, "original", candidate.OriginalCode)
				s.metrics.ObserveRejected(reason)

				continue
			}

			previous = append(previous, candidate)
			emitted++
			added++

			mutant := m.Mutant{
				ID:           MutantID(class.target, candidate.OriginalCode, candidate.MutatedCode),
				Name:         MutantName(class.target, emitted),
				Target:       class.target,
				OriginalLine: candidate.OriginalCode,
				MutatedLine:  candidate.MutatedCode,
				Origin:       m.OriginLLM,
				Model:        s.config.Model,
			}

			s.metrics.ObserveGenerated(string(m.OriginLLM))

			if !sendMutant(ctx, ch, mutant) {
				return false
			}
		}

		slog.Info("Generated mutants", "class", class.target.QualifiedName(), "round", round, "added", added)

		if added == 0 {
			break
		}
	}

	return true
}

func reject(c Candidate, valid map[string]struct{}) string {
	if _, ok := valid[c.OriginalCode]; !ok {
		return "unknown_line"
	}

	if c.MutatedCode == c.OriginalCode {
		return "unchanged"
	}

	return ""
}

// locationFor maps a file under root to its package path and class name.
func locationFor(root, file m.Path) (m.Location, error) {
	rel, err := filepath.Rel(string(root), string(file))
	if err != nil {
		return m.Location{}, err
	}

	rel = filepath.ToSlash(rel)
	dir, name := filepath.Split(rel)

	loc := m.Location{
		ModulePath: strings.TrimSuffix(dir, "/"),
		ClassName:  strings.TrimSuffix(name, ".java"),
	}

	if err := loc.Validate(); err != nil {
		return m.Location{}, err
	}

	return loc, nil
}
