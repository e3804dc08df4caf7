package controller

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/olekukonko/tablewriter"
	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/cobra"

	m "mutflow.dev/pkg/mutflow/internal/model"
)

// SimpleUI implements UI using cobra Command's output.
type SimpleUI struct {
	cmd *cobra.Command
	mu  sync.Mutex
}

// NewSimpleUI creates a new SimpleUI.
func NewSimpleUI(cmd *cobra.Command) *SimpleUI {
	return &SimpleUI{cmd: cmd}
}

// Start initializes the UI.
func (s *SimpleUI) Start(ctx context.Context, _ ...StartOption) error {
	return ctx.Err()
}

// Close finalizes the UI.
func (s *SimpleUI) Close(_ context.Context) {}

// Wait blocks until the UI is closed (no-op for SimpleUI).
func (s *SimpleUI) Wait(_ context.Context) {}

// DisplayConcurrencyInfo shows how the run is split across workers.
func (s *SimpleUI) DisplayConcurrencyInfo(ctx context.Context, workers int, units int) {
	if ctx.Err() != nil {
		return
	}

	s.printf("Processing %d unit(s) with %d worker(s)\n", units, workers)
}

// DisplayUnitStarted announces a project/source unit.
func (s *SimpleUI) DisplayUnitStarted(ctx context.Context, project m.Project, source string, worker int) {
	if ctx.Err() != nil {
		return
	}

	s.printf("[worker %d] %s (%s)\n", worker, project.Key(), source)
}

// DisplayVerdict prints one verdict, with a diff for mutants the tests missed.
func (s *SimpleUI) DisplayVerdict(ctx context.Context, row m.LedgerRow, mutant m.Mutant) {
	if ctx.Err() != nil {
		return
	}

	label := mutant.Name
	if label == "" {
		label = shortID(row.MutantID)
	}

	s.printf("  %-40s %s\n", label, row.Status)

	if row.Status == m.Survived {
		s.printf("%s", MutantDiff(mutant))
	}
}

// DisplayUnitFinished prints the outcome of a unit.
func (s *SimpleUI) DisplayUnitFinished(ctx context.Context, summary m.UnitSummary) {
	if ctx.Err() != nil {
		return
	}

	if summary.Err != nil {
		s.printf("%s (%s) %s: %v\n", summary.Project.Key(), summary.Source, summary.State, summary.Err)
	}

	s.printf("%s (%s): %d tested, %d skipped, score %.2f%%\n",
		summary.Project.Key(), summary.Source, summary.Applied, summary.Skipped, summary.Score)
}

// DisplayMutants lists freshly generated mutants.
func (s *SimpleUI) DisplayMutants(ctx context.Context, project m.Project, model string, mutants []m.Mutant) {
	if ctx.Err() != nil {
		return
	}

	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)
	table.SetHeader([]string{"Mutant", "Class", "Original", "Mutated"})
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoWrapText(false)

	for _, mutant := range mutants {
		table.Append([]string{mutant.Name, mutant.Target.QualifiedName(), mutant.OriginalLine, mutant.MutatedLine})
	}

	table.SetFooter([]string{fmt.Sprintf("%s %s", project.Key(), model), "", "", fmt.Sprintf("%d", len(mutants))})
	table.Render()

	s.printf("\n%s", buf.String())
}

// DisplayScore prints the overall score and one table per breakdown.
func (s *SimpleUI) DisplayScore(ctx context.Context, report m.ScoreReport) {
	if ctx.Err() != nil {
		return
	}

	s.printf("\n%s", RenderStatusTable("Overall", []m.GroupScore{{Key: "all", Tally: report.Overall}}))

	for _, dim := range m.Dimensions {
		rows := report.Groups[dim]
		if len(rows) <= 1 && dim != m.ByClass {
			continue
		}

		s.printf("\n%s", RenderStatusTable(strings.ToUpper(string(dim)), rows))
	}

	s.printf("\nMutation score: %.2f%%\n", report.Score())
}

// RenderStatusTable renders per-status counts and scores for rows.
func RenderStatusTable(title string, rows []m.GroupScore) string {
	var buf bytes.Buffer

	table := tablewriter.NewWriter(&buf)

	header := []string{title}
	for _, status := range m.AllStatuses {
		header = append(header, status.String())
	}

	header = append(header, "total", "score")

	table.SetHeader(header)
	table.SetBorder(false)
	table.SetCenterSeparator("")
	table.SetAutoFormatHeaders(false)

	for _, row := range rows {
		line := []string{row.Key}
		for _, status := range m.AllStatuses {
			line = append(line, fmt.Sprintf("%d", row.Tally[status]))
		}

		line = append(line, fmt.Sprintf("%d", row.Tally.Total()), fmt.Sprintf("%.2f%%", row.Tally.Score()))
		table.Append(line)
	}

	table.Render()

	return buf.String()
}

// MutantDiff renders the mutant as a unified diff of its target file line.
func MutantDiff(mutant m.Mutant) string {
	diff := difflib.UnifiedDiff{
		A:        []string{mutant.OriginalLine + "\n"},
		B:        []string{mutant.MutatedLine + "\n"},
		FromFile: mutant.Target.RelPath(),
		ToFile:   mutant.Target.RelPath(),
		Context:  0,
	}

	text, err := difflib.GetUnifiedDiffString(diff)
	if err != nil {
		return ""
	}

	return text
}

func (s *SimpleUI) printf(format string, args ...interface{}) {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, _ = fmt.Fprintf(s.cmd.OutOrStdout(), format, args...)
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}

	return id
}
