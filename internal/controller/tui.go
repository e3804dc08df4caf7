package controller

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	m "mutflow.dev/pkg/mutflow/internal/model"
)

const recentVerdicts = 8

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("12"))
	killedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	survivedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	faintStyle    = lipgloss.NewStyle().Faint(true)
)

// TUI implements UI using Bubble Tea for interactive display.
type TUI struct {
	output  io.Writer
	mu      sync.Mutex
	program *tea.Program
	done    chan struct{}
}

// NewTUI creates a new TUI.
func NewTUI(output io.Writer) *TUI {
	return &TUI{output: output}
}

type (
	concurrencyMsg struct{ workers, units int }
	unitStartedMsg struct {
		worker int
		label  string
	}
	verdictMsg struct {
		line   string
		status m.Status
	}
	unitFinishedMsg struct{ summary m.UnitSummary }
	mutantsMsg      struct {
		line  string
		count int
	}
	scoreMsg struct{ report m.ScoreReport }
)

// Start launches the Bubble Tea program in the background.
func (t *TUI) Start(ctx context.Context, options ...StartOption) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.program != nil {
		return nil
	}

	cfg := applyStartOptions(options)
	t.program = tea.NewProgram(newProgressModel(cfg.mode), tea.WithOutput(t.output))
	t.done = make(chan struct{})

	go func(program *tea.Program, done chan struct{}) {
		defer close(done)

		_, _ = program.Run()
	}(t.program, t.done)

	return nil
}

// Close stops the program and waits for it to restore the terminal.
func (t *TUI) Close(_ context.Context) {
	program, done := t.handle()
	if program == nil {
		return
	}

	program.Quit()
	<-done
}

// Wait blocks until the user quits the program.
func (t *TUI) Wait(ctx context.Context) {
	_, done := t.handle()
	if done == nil {
		return
	}

	select {
	case <-ctx.Done():
	case <-done:
	}
}

func (t *TUI) handle() (*tea.Program, chan struct{}) {
	t.mu.Lock()
	defer t.mu.Unlock()

	return t.program, t.done
}

func (t *TUI) send(msg tea.Msg) {
	if program, _ := t.handle(); program != nil {
		program.Send(msg)
	}
}

// DisplayConcurrencyInfo implements UI.
func (t *TUI) DisplayConcurrencyInfo(_ context.Context, workers int, units int) {
	t.send(concurrencyMsg{workers: workers, units: units})
}

// DisplayUnitStarted implements UI.
func (t *TUI) DisplayUnitStarted(_ context.Context, project m.Project, source string, worker int) {
	t.send(unitStartedMsg{worker: worker, label: fmt.Sprintf("%s (%s)", project.Key(), source)})
}

// DisplayVerdict implements UI.
func (t *TUI) DisplayVerdict(_ context.Context, row m.LedgerRow, mutant m.Mutant) {
	label := mutant.Name
	if label == "" {
		label = shortID(row.MutantID)
	}

	t.send(verdictMsg{line: fmt.Sprintf("%s %s", row.ProjectID+"_"+row.BugID, label), status: row.Status})
}

// DisplayUnitFinished implements UI.
func (t *TUI) DisplayUnitFinished(_ context.Context, summary m.UnitSummary) {
	t.send(unitFinishedMsg{summary: summary})
}

// DisplayMutants implements UI.
func (t *TUI) DisplayMutants(_ context.Context, project m.Project, model string, mutants []m.Mutant) {
	t.send(mutantsMsg{line: fmt.Sprintf("%s %s", project.Key(), model), count: len(mutants)})
}

// DisplayScore implements UI.
func (t *TUI) DisplayScore(_ context.Context, report m.ScoreReport) {
	t.send(scoreMsg{report: report})
}

type progressModel struct {
	mode     StartMode
	spinner  spinner.Model
	workers  int
	units    int
	finished int
	running  map[int]string
	tally    m.Tally
	recent   []string
	done     []string
	report   *m.ScoreReport
	quitting bool
}

func newProgressModel(mode StartMode) progressModel {
	spin := spinner.New()
	spin.Spinner = spinner.Dot

	return progressModel{
		mode:    mode,
		spinner: spin,
		running: map[int]string{},
		tally:   m.Tally{},
	}
}

func (pm progressModel) Init() tea.Cmd {
	return pm.spinner.Tick
}

func (pm progressModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "esc", "ctrl+c":
			pm.quitting = true
			return pm, tea.Quit
		}
	case concurrencyMsg:
		pm.workers, pm.units = msg.workers, msg.units
	case unitStartedMsg:
		pm.running[msg.worker] = msg.label
	case verdictMsg:
		pm.tally.Add(msg.status)
		pm.recent = append(pm.recent, fmt.Sprintf("%s  %s", styleStatus(msg.status), msg.line))

		if len(pm.recent) > recentVerdicts {
			pm.recent = pm.recent[len(pm.recent)-recentVerdicts:]
		}
	case unitFinishedMsg:
		pm.finished++

		for worker, label := range pm.running {
			if strings.HasPrefix(label, msg.summary.Project.Key()+" ") {
				delete(pm.running, worker)
				break
			}
		}

		line := fmt.Sprintf("%s (%s) %d tested, %d skipped, %.2f%%",
			msg.summary.Project.Key(), msg.summary.Source, msg.summary.Applied, msg.summary.Skipped, msg.summary.Score)
		if msg.summary.Err != nil {
			line += survivedStyle.Render(" " + msg.summary.State)
		}

		pm.done = append(pm.done, line)
	case mutantsMsg:
		pm.finished++
		pm.done = append(pm.done, fmt.Sprintf("%s: %d mutant(s)", msg.line, msg.count))
	case scoreMsg:
		report := msg.report
		pm.report = &report
	case spinner.TickMsg:
		var cmd tea.Cmd

		pm.spinner, cmd = pm.spinner.Update(msg)

		return pm, cmd
	}

	return pm, nil
}

func (pm progressModel) View() string {
	if pm.quitting {
		return ""
	}

	var b strings.Builder

	b.WriteString(titleStyle.Render("mutflow"))
	b.WriteString("\n\n")

	if pm.report != nil {
		b.WriteString(RenderStatusTable("Overall", []m.GroupScore{{Key: "all", Tally: pm.report.Overall}}))
		fmt.Fprintf(&b, "\nMutation score: %.2f%%\n\n", pm.report.Score())
		b.WriteString(faintStyle.Render("press q to quit"))
		b.WriteString("\n")

		return b.String()
	}

	fmt.Fprintf(&b, "%s %d/%d unit(s), %d worker(s)\n", pm.spinner.View(), pm.finished, pm.units, pm.workers)

	workers := make([]int, 0, len(pm.running))
	for worker := range pm.running {
		workers = append(workers, worker)
	}

	sort.Ints(workers)

	for _, worker := range workers {
		fmt.Fprintf(&b, "  worker %d: %s\n", worker, pm.running[worker])
	}

	if pm.mode == ModeRun {
		fmt.Fprintf(&b, "\n  %s %d  %s %d  build_failed %d  timeout %d  score %.2f%%\n",
			killedStyle.Render("killed"), pm.tally[m.Killed],
			survivedStyle.Render("survived"), pm.tally[m.Survived],
			pm.tally[m.BuildFailed], pm.tally[m.Timeout], pm.tally.Score())
	}

	if len(pm.recent) > 0 {
		b.WriteString("\n")

		for _, line := range pm.recent {
			b.WriteString("  " + line + "\n")
		}
	}

	if len(pm.done) > 0 {
		b.WriteString("\n")

		for _, line := range pm.done {
			b.WriteString(faintStyle.Render("  "+line) + "\n")
		}
	}

	return b.String()
}

func styleStatus(status m.Status) string {
	switch status {
	case m.Killed, m.BuildFailed, m.Timeout:
		return killedStyle.Render(fmt.Sprintf("%-12s", status))
	case m.Survived:
		return survivedStyle.Render(fmt.Sprintf("%-12s", status))
	default:
		return faintStyle.Render(fmt.Sprintf("%-12s", status))
	}
}
