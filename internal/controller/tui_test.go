package controller

import (
	"context"
	"errors"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	m "mutflow.dev/pkg/mutflow/internal/model"
)

func update(t *testing.T, pm progressModel, msg tea.Msg) progressModel {
	t.Helper()

	next, _ := pm.Update(msg)

	updated, ok := next.(progressModel)
	require.True(t, ok)

	return updated
}

func TestProgressModel_TracksUnits(t *testing.T) {
	pm := newProgressModel(ModeRun)

	pm = update(t, pm, concurrencyMsg{workers: 2, units: 3})
	pm = update(t, pm, unitStartedMsg{worker: 1, label: "Calc_1 (llm)"})

	view := pm.View()
	assert.Contains(t, view, "0/3 unit(s), 2 worker(s)")
	assert.Contains(t, view, "worker 1: Calc_1 (llm)")

	pm = update(t, pm, verdictMsg{line: "Calc_1 add", status: m.Killed})
	pm = update(t, pm, verdictMsg{line: "Calc_1 sub", status: m.Survived})
	pm = update(t, pm, unitFinishedMsg{summary: m.UnitSummary{Project: calcProject, Source: "llm", Applied: 2, Score: 50}})

	view = pm.View()
	assert.Contains(t, view, "1/3 unit(s)")
	assert.NotContains(t, view, "worker 1:")
	assert.Contains(t, view, "Calc_1 add")
	assert.Contains(t, view, "score 50.00%")
	assert.Contains(t, view, "Calc_1 (llm) 2 tested, 0 skipped, 50.00%")
}

func TestProgressModel_KeepsRecentVerdicts(t *testing.T) {
	pm := newProgressModel(ModeRun)

	for i := 0; i < recentVerdicts+3; i++ {
		pm = update(t, pm, verdictMsg{line: "mutant", status: m.Killed})
	}

	assert.Len(t, pm.recent, recentVerdicts)
	assert.Equal(t, recentVerdicts+3, pm.tally[m.Killed])
}

func TestProgressModel_AbandonedUnit(t *testing.T) {
	pm := newProgressModel(ModeRun)

	pm = update(t, pm, unitFinishedMsg{summary: m.UnitSummary{
		Project: calcProject, Source: "major", State: "abandoned", Err: errors.New("restore failed"),
	}})

	require.Len(t, pm.done, 1)
	assert.Contains(t, pm.done[0], "abandoned")
}

func TestProgressModel_GenerateMode(t *testing.T) {
	pm := newProgressModel(ModeGenerate)

	pm = update(t, pm, concurrencyMsg{workers: 1, units: 1})
	pm = update(t, pm, mutantsMsg{line: "Calc_1 openai/gpt-test", count: 4})

	view := pm.View()
	assert.NotContains(t, view, "build_failed")
	assert.Contains(t, view, "Calc_1 openai/gpt-test: 4 mutant(s)")
}

func TestProgressModel_ScoreView(t *testing.T) {
	pm := newProgressModel(ModeView)

	pm = update(t, pm, scoreMsg{report: m.ScoreReport{Overall: m.Tally{m.Killed: 1, m.Survived: 3}}})

	view := pm.View()
	assert.Contains(t, view, "Mutation score: 25.00%")
	assert.Contains(t, view, "press q to quit")
}

func TestProgressModel_Quit(t *testing.T) {
	pm := newProgressModel(ModeRun)

	next, cmd := pm.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune("q")})
	require.NotNil(t, cmd)

	quitted, ok := next.(progressModel)
	require.True(t, ok)
	assert.True(t, quitted.quitting)
	assert.Empty(t, quitted.View())
}

func TestTUI_NotStarted(t *testing.T) {
	var out strings.Builder

	tui := NewTUI(&out)

	tui.DisplayConcurrencyInfo(context.Background(), 1, 1)
	tui.Wait(context.Background())
	tui.Close(context.Background())

	assert.Empty(t, out.String())
}
