package domain

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"mutflow.dev/pkg/mutflow/internal/adapter"
	m "mutflow.dev/pkg/mutflow/internal/model"
)

type toolSource struct {
	logPath m.Path
	fs      adapter.SourceFSAdapter
	metrics *adapter.Metrics
}

// NewToolSource replays the mutants of a Major mutants.log as single-line
// edits of the baseline sources.
func NewToolSource(logPath m.Path, fs adapter.SourceFSAdapter, metrics *adapter.Metrics) MutantSource {
	return &toolSource{logPath: logPath, fs: fs, metrics: metrics}
}

func (s *toolSource) Name() string {
	return "major"
}

func (s *toolSource) Stream(ctx context.Context, ws Workspace) <-chan m.Mutant {
	ch := make(chan m.Mutant, 1)

	go func() {
		defer close(ch)

		mutants, err := s.resolveAll(ctx, ws)
		if err != nil {
			slog.Error("Failed to resolve tool mutants", "log", s.logPath, "error", err)
			return
		}

		for _, mutant := range mutants {
			if !sendMutant(ctx, ch, mutant) {
				return
			}
		}
	}()

	return ch
}

// resolveAll reads the log and every referenced baseline file up front.
func (s *toolSource) resolveAll(ctx context.Context, ws Workspace) ([]m.Mutant, error) {
	entries, err := adapter.ReadMajorLog(ctx, s.logPath)
	if err != nil {
		return nil, err
	}

	root, err := ws.SourceRoot(ctx)
	if err != nil {
		return nil, err
	}

	files := map[string][]string{}
	missing := map[string]struct{}{}
	counts := map[string]int{}

	var mutants []m.Mutant

	for _, entry := range entries {
		target, err := m.NewLocation(entry.Class)
		if err != nil {
			slog.Warn("Skipping tool mutant with bad class", "id", entry.ID, "class", entry.Class, "error", err)
			s.metrics.ObserveRejected("bad_location")

			continue
		}

		if _, gone := missing[target.RelPath()]; gone {
			s.metrics.ObserveRejected("missing_file")
			continue
		}

		lines, ok := files[target.RelPath()]
		if !ok {
			content, err := s.fs.ReadFile(ctx, s.fs.JoinPath(string(root), target.RelPath()))
			if err != nil {
				slog.Warn("Skipping tool mutants with missing file", "id", entry.ID, "file", target.RelPath(), "error", err)
				s.metrics.ObserveRejected("missing_file")

				missing[target.RelPath()] = struct{}{}

				continue
			}

			lines = strings.Split(string(content), "\n")
			files[target.RelPath()] = lines
		}

		original, mutated, ok := ResolveToolEdit(lines, entry.Line, entry.Original, entry.Mutated)
		if !ok {
			slog.Debug("Skipping unresolvable tool mutant", "id", entry.ID, "class", entry.Class, "line", entry.Line)
			s.metrics.ObserveRejected("unresolved")

			continue
		}

		counts[target.RelPath()]++

		mutants = append(mutants, m.Mutant{
			ID:           "major-" + entry.ID,
			Name:         MutantName(target, counts[target.RelPath()]),
			Target:       target,
			OriginalLine: original,
			MutatedLine:  mutated,
			Origin:       m.OriginTool,
			Mutator:      entry.Mutator,
			Method:       entry.Method,
			Line:         entry.Line,
		})

		s.metrics.ObserveGenerated(string(m.OriginTool))
	}

	return mutants, nil
}

// ResolveToolEdit turns an expression-level edit at a 1-based line into a
// whole-line edit. The first occurrence of expr in the line is replaced; a
// whitespace-insensitive match is tried when the exact text is absent.
func ResolveToolEdit(lines []string, line int, expr, replacement string) (string, string, bool) {
	if line < 1 || line > len(lines) || strings.TrimSpace(expr) == "" {
		return "", "", false
	}

	if replacement == adapter.MajorNoOp {
		replacement = ""
	}

	original := strings.TrimRight(lines[line-1], "\r")
	if strings.TrimSpace(original) == "" {
		return "", "", false
	}

	var mutated string

	if idx := strings.Index(original, expr); idx >= 0 {
		mutated = original[:idx] + replacement + original[idx+len(expr):]
	} else {
		loc := looseExpression(expr).FindStringIndex(original)
		if loc == nil {
			return "", "", false
		}

		mutated = original[:loc[0]] + replacement + original[loc[1]:]
	}

	if strings.TrimSpace(mutated) == strings.TrimSpace(original) {
		return "", "", false
	}

	return strings.TrimSpace(original), strings.TrimSpace(mutated), true
}

func looseExpression(expr string) *regexp.Regexp {
	fields := strings.Fields(expr)
	for i, field := range fields {
		fields[i] = regexp.QuoteMeta(field)
	}

	return regexp.MustCompile(strings.Join(fields, `\s*`))
}
