package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"mutflow.dev/pkg/mutflow/internal/adapter"
	"mutflow.dev/pkg/mutflow/internal/controller"
	m "mutflow.dev/pkg/mutflow/internal/model"
	"mutflow.dev/pkg/mutflow/pkg"
)

// SourceKind selects where the run workflow takes its mutants from.
type SourceKind string

// Supported mutant sources.
const (
	SourceLLM   SourceKind = "llm"
	SourceFile  SourceKind = "file"
	SourceMajor SourceKind = "major"
)

// Tool names accepted by Analyze.
const (
	ToolPIT   = "pit"
	ToolMajor = "major"
)

const instrumentClassesFile = "instrument_classes"

// classDirs lists the compiled-classes layouts of Defects4J projects, in lookup order.
var classDirs = []string{
	filepath.Join("target", "classes"),
	filepath.Join("build", "classes"),
	"build",
}

// ClientFactory builds the model client for a model name.
type ClientFactory func(model string) (adapter.LLMClient, error)

// RunArgs contains the arguments of the run workflow.
type RunArgs struct {
	ProjectsFile  m.Path
	Source        SourceKind
	Models        []string
	MutantsDir    m.Path
	MajorDir      m.Path
	Ledger        m.Path
	WorkspaceRoot m.Path
	Parallel      int
}

// GenerateArgs contains the arguments of the generate workflow.
type GenerateArgs struct {
	ProjectsFile  m.Path
	Models        []string
	MutantsDir    m.Path
	WorkspaceRoot m.Path
	Parallel      int
}

// AnalyzeArgs contains the arguments of the analyze workflow.
type AnalyzeArgs struct {
	ProjectsFile  m.Path
	Tool          string
	Ledger        m.Path
	ReportsDir    m.Path
	WorkspaceRoot m.Path
	Parallel      int
}

// ViewArgs contains the arguments of the view workflow.
type ViewArgs struct {
	Ledgers []m.Path
}

// Workflow defines the mutflow entry points.
type Workflow interface {
	Run(ctx context.Context, args RunArgs) error
	Generate(ctx context.Context, args GenerateArgs) error
	Analyze(ctx context.Context, args AnalyzeArgs) error
	View(ctx context.Context, args ViewArgs) error
}

// WorkflowDeps bundles the collaborators of a Workflow.
type WorkflowDeps struct {
	FS        adapter.SourceFSAdapter
	Build     adapter.BuildToolAdapter
	PIT       adapter.PITAdapter
	Java      adapter.JavaFileAdapter
	Ledger    adapter.LedgerStore
	Mutants   adapter.MutantStore
	UI        controller.UI
	Metrics   *adapter.Metrics
	Clients   ClientFactory
	Workspace WorkspaceConfig
	LLM       LLMSourceConfig
	Focus     bool
	SpillDir  string
}

type workflow struct {
	WorkflowDeps
	Coordinator
}

// NewWorkflow creates a Workflow wired with deps.
func NewWorkflow(deps WorkflowDeps) Workflow {
	return &workflow{
		WorkflowDeps: deps,
		Coordinator:  NewCoordinator(NewApplicator(deps.FS), NewVerdictEngine(deps.Focus), deps.Metrics),
	}
}

// unit is one project paired with one model (empty for tool work).
type unit struct {
	project m.Project
	model   string
}

func (u unit) label() string {
	if u.model == "" {
		return u.project.Key()
	}

	return u.project.Key() + " " + u.model
}

func (w *workflow) Run(ctx context.Context, args RunArgs) error {
	units, err := w.planUnits(ctx, args.ProjectsFile, args.Models, args.Source != SourceMajor)
	if err != nil {
		return err
	}

	if err := w.UI.Start(ctx, controller.WithRunMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}

	defer w.UI.Close(ctx)

	rows, err := pkg.NewSpill[m.LedgerRow](w.SpillDir)
	if err != nil {
		return fmt.Errorf("create verdict spill: %w", err)
	}

	defer func() {
		if err := rows.Remove(); err != nil {
			slog.Warn("Failed to remove verdict spill", "path", rows.Path(), "error", err)
		}
	}()

	record := func(ctx context.Context, row m.LedgerRow, mutant m.Mutant) error {
		if err := w.Ledger.Append(ctx, args.Ledger, row); err != nil {
			return err
		}

		if err := rows.Append(row); err != nil {
			return err
		}

		w.UI.DisplayVerdict(ctx, row, mutant)

		return nil
	}

	parallel := normalizeParallel(args.Parallel)
	w.UI.DisplayConcurrencyInfo(ctx, parallel, len(units))

	memory := NewRunMemory()

	runErr := w.forEachUnit(ctx, units, parallel, func(ctx context.Context, slot int, u unit) error {
		source, err := w.sourceFor(args, u, memory)
		if err != nil {
			return err
		}

		ws := w.newWorkspace(args.WorkspaceRoot, slot, u.project)
		w.UI.DisplayUnitStarted(ctx, u.project, source.Name(), slot)

		result := w.Coordinator.Run(ctx, ws, source, record)
		w.UI.DisplayUnitFinished(ctx, summarize(result))

		slog.Info("Unit finished", "unit", u.label(), "state", result.State, "applied", result.Applied, "skipped", result.Skipped, "score", result.Score)

		if result.Err != nil {
			return fmt.Errorf("%s: %w", u.label(), result.Err)
		}

		return nil
	})

	report, err := scoreFromSpill(rows)
	if err != nil {
		return errors.Join(runErr, fmt.Errorf("score verdicts: %w", err))
	}

	w.UI.DisplayScore(ctx, report)
	w.UI.Wait(ctx)

	return runErr
}

func (w *workflow) sourceFor(args RunArgs, u unit, memory *RunMemory) (MutantSource, error) {
	switch args.Source {
	case SourceFile:
		return NewFileSource(w.Mutants, MutantsPath(args.MutantsDir, u.project, u.model), w.Metrics), nil
	case SourceMajor:
		logPath := m.Path(filepath.Join(string(args.MajorDir), u.project.Key(), adapter.MajorLogFile))
		return NewToolSource(logPath, w.FS, w.Metrics), nil
	case SourceLLM, "":
		return w.llmSource(u.model, memory)
	default:
		return nil, fmt.Errorf("unknown mutant source %q", args.Source)
	}
}

func (w *workflow) llmSource(model string, memory *RunMemory) (MutantSource, error) {
	if w.Clients == nil {
		return nil, errors.New("no model client configured")
	}

	client, err := w.Clients(model)
	if err != nil {
		return nil, fmt.Errorf("model client %s: %w", model, err)
	}

	cfg := w.LLM
	cfg.Model = model
	cfg.Memory = memory

	return NewLLMSource(client, w.Java, w.FS, w.Metrics, cfg), nil
}

func (w *workflow) Generate(ctx context.Context, args GenerateArgs) error {
	units, err := w.planUnits(ctx, args.ProjectsFile, args.Models, true)
	if err != nil {
		return err
	}

	if err := w.UI.Start(ctx, controller.WithGenerateMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}

	defer w.UI.Close(ctx)

	parallel := normalizeParallel(args.Parallel)
	w.UI.DisplayConcurrencyInfo(ctx, parallel, len(units))

	memory := NewRunMemory()

	err = w.forEachUnit(ctx, units, parallel, func(ctx context.Context, slot int, u unit) error {
		source, err := w.llmSource(u.model, memory)
		if err != nil {
			return err
		}

		ws := w.newWorkspace(args.WorkspaceRoot, slot, u.project)
		w.UI.DisplayUnitStarted(ctx, u.project, source.Name(), slot)

		if err := prepareBaseline(ctx, ws); err != nil {
			return fmt.Errorf("%s: %w", u.label(), err)
		}

		var mutants []m.Mutant
		for mutant := range source.Stream(ctx, ws) {
			mutants = append(mutants, mutant)
		}

		if err := ctx.Err(); err != nil {
			return err
		}

		path := MutantsPath(args.MutantsDir, u.project, u.model)
		if err := w.Mutants.SaveMutants(ctx, path, m.MutantFile{Project: u.project, Model: u.model, Mutants: mutants}); err != nil {
			return fmt.Errorf("%s: %w", u.label(), err)
		}

		w.UI.DisplayMutants(ctx, u.project, u.model, mutants)

		return nil
	})

	w.UI.Wait(ctx)

	return err
}

func (w *workflow) Analyze(ctx context.Context, args AnalyzeArgs) error {
	var table m.StatusTable

	switch args.Tool {
	case ToolPIT:
		table = m.PITStatuses
	case ToolMajor:
		table = m.MajorStatuses
	default:
		return fmt.Errorf("unknown analysis tool %q", args.Tool)
	}

	units, err := w.planUnits(ctx, args.ProjectsFile, nil, false)
	if err != nil {
		return err
	}

	if err := w.UI.Start(ctx, controller.WithRunMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}

	defer w.UI.Close(ctx)

	var (
		mu  sync.Mutex
		all []m.LedgerRow
	)

	parallel := normalizeParallel(args.Parallel)
	w.UI.DisplayConcurrencyInfo(ctx, parallel, len(units))

	runErr := w.forEachUnit(ctx, units, parallel, func(ctx context.Context, slot int, u unit) error {
		ws := w.newWorkspace(args.WorkspaceRoot, slot, u.project)
		w.UI.DisplayUnitStarted(ctx, u.project, args.Tool, slot)

		if err := prepareBaseline(ctx, ws); err != nil {
			return fmt.Errorf("%s: %w", u.label(), err)
		}

		records, err := w.runTool(ctx, args, ws)
		if err != nil {
			return fmt.Errorf("%s: %w", u.label(), err)
		}

		rows := ImportToolRecords(u.project, records, table)

		if err := w.Ledger.Append(ctx, args.Ledger, rows...); err != nil {
			return fmt.Errorf("%s: %w", u.label(), err)
		}

		tally := m.Tally{}
		for _, row := range rows {
			tally.Add(row.Status)
			w.Metrics.ObserveVerdict(row.Status.String(), string(row.Origin))
		}

		mu.Lock()
		all = append(all, rows...)
		mu.Unlock()

		w.UI.DisplayUnitFinished(ctx, m.UnitSummary{
			Project: u.project,
			Source:  args.Tool,
			State:   StateDone.String(),
			Applied: len(rows),
			Score:   tally.Score(),
		})

		return nil
	})

	w.UI.DisplayScore(ctx, AggregateScores(all))
	w.UI.Wait(ctx)

	return runErr
}

func (w *workflow) runTool(ctx context.Context, args AnalyzeArgs, ws Workspace) ([]m.ToolRecord, error) {
	project := ws.Project()
	reportDir := filepath.Join(string(args.ReportsDir), args.Tool, project.Key())

	if args.Tool == ToolPIT {
		if err := w.PIT.MutationCoverage(ctx, ws.Dir(), project.PackagePath, project.TestDir); err != nil {
			return nil, err
		}

		pitDir := filepath.Join(string(ws.Dir()), filepath.FromSlash(adapter.PITReportDir))
		w.keepReports(ctx, pitDir, reportDir, "mutations.xml", "mutations.csv")

		records, err := adapter.ReadPITXML(ctx, m.Path(filepath.Join(pitDir, "mutations.xml")))
		if err == nil {
			return records, nil
		}

		slog.Warn("Falling back to PIT CSV report", "project", project.Key(), "error", err)

		return adapter.ReadPITCSV(ctx, m.Path(filepath.Join(pitDir, "mutations.csv")))
	}

	instrument, err := w.writeInstrumentClasses(ctx, ws)
	if err != nil {
		return nil, err
	}

	if err := w.Build.Mutation(ctx, ws.Dir(), instrument); err != nil {
		return nil, err
	}

	w.keepReports(ctx, string(ws.Dir()), reportDir, adapter.MajorKillFile, adapter.MajorLogFile, "testMap.csv", "covMap.csv")

	return adapter.ReadMajorReport(ctx, ws.Dir())
}

// writeInstrumentClasses lists the project's compiled top-level classes for Major.
func (w *workflow) writeInstrumentClasses(ctx context.Context, ws Workspace) (m.Path, error) {
	project := ws.Project()

	for _, dir := range classDirs {
		classes := w.FS.JoinPath(string(ws.Dir()), dir)
		if _, err := w.FS.FileInfo(ctx, classes); err != nil {
			continue
		}

		names, err := w.FS.ClassNames(ctx, classes, project.PackagePath)
		if err != nil || len(names) == 0 {
			continue
		}

		path := w.FS.JoinPath(string(ws.Dir()), instrumentClassesFile)
		if err := w.FS.WriteFile(ctx, path, []byte(strings.Join(names, "\n")+"\n"), 0o600); err != nil {
			return "", fmt.Errorf("write %s: %w", instrumentClassesFile, err)
		}

		slog.Debug("Wrote instrument classes", "project", project.Key(), "count", len(names))

		return path, nil
	}

	return "", fmt.Errorf("no compiled classes for package %s in %s", project.PackagePath, ws.Dir())
}

// keepReports copies tool reports out of the workspace before it is reset.
func (w *workflow) keepReports(ctx context.Context, from, to string, names ...string) {
	if err := w.FS.MkdirAll(ctx, m.Path(to)); err != nil {
		slog.Warn("Failed to create reports dir", "dir", to, "error", err)
		return
	}

	for _, name := range names {
		content, err := w.FS.ReadFile(ctx, w.FS.JoinPath(from, name))
		if err != nil {
			continue
		}

		if err := w.FS.WriteFile(ctx, w.FS.JoinPath(to, name), content, 0o600); err != nil {
			slog.Warn("Failed to keep report", "file", name, "error", err)
		}
	}
}

// ImportToolRecords maps tool report records into ledger rows. Unknown status
// codes become invalid rows, which the score ignores.
func ImportToolRecords(project m.Project, records []m.ToolRecord, table m.StatusTable) []m.LedgerRow {
	rows := make([]m.LedgerRow, 0, len(records))

	for _, record := range records {
		status, ok := table.Map(record.StatusCode)
		if !ok {
			slog.Warn("Unknown tool status", "project", project.Key(), "mutant", record.ID, "status", record.StatusCode)
		}

		row := m.LedgerRow{
			ProjectID:   project.ID,
			BugID:       project.BugID,
			MutantID:    record.ID,
			TargetClass: record.Class,
			Status:      status,
			Origin:      m.OriginTool,
			Mutator:     record.Mutator,
			Method:      record.Method,
			Line:        record.Line,
		}

		if status == m.Killed {
			row.Evidence = record.Tests
		}

		rows = append(rows, row)
	}

	return rows
}

func (w *workflow) View(ctx context.Context, args ViewArgs) error {
	if len(args.Ledgers) == 0 {
		return errors.New("no ledger given")
	}

	var rows []m.LedgerRow

	for _, path := range args.Ledgers {
		loaded, err := w.Ledger.Load(ctx, path)
		if err != nil {
			return fmt.Errorf("load ledger %s: %w", path, err)
		}

		rows = append(rows, loaded...)
	}

	if err := w.UI.Start(ctx, controller.WithViewMode()); err != nil {
		slog.Error("Failed to start workflow UI", "error", err)
		return err
	}

	w.UI.DisplayScore(ctx, AggregateScores(rows))
	w.UI.Wait(ctx)
	w.UI.Close(ctx)

	return nil
}

func (w *workflow) newWorkspace(root m.Path, slot int, project m.Project) Workspace {
	return NewWorkspace(project, WorkspaceDir(root, slot, project), w.Workspace, w.Build, w.FS)
}

// planUnits loads and validates the projects and pairs each with every model.
func (w *workflow) planUnits(ctx context.Context, projectsFile m.Path, models []string, perModel bool) ([]unit, error) {
	projects, err := LoadProjects(ctx, projectsFile)
	if err != nil {
		return nil, err
	}

	if perModel && len(models) == 0 {
		return nil, errors.New("no model configured")
	}

	var units []unit

	for _, project := range projects {
		if !perModel {
			units = append(units, unit{project: project})
			continue
		}

		for _, model := range models {
			units = append(units, unit{project: project, model: model})
		}
	}

	return units, nil
}

// forEachUnit runs fn over units with at most parallel workers. Every worker
// owns a numbered slot, and with it a private workspace directory. A failing
// unit does not stop the others; all errors are returned joined.
func (w *workflow) forEachUnit(
	ctx context.Context,
	units []unit,
	parallel int,
	fn func(ctx context.Context, slot int, u unit) error,
) error {
	slots := make(chan int, parallel)
	for i := range parallel {
		slots <- i
	}

	var (
		group errgroup.Group
		mu    sync.Mutex
		errs  []error
	)

	group.SetLimit(parallel)

	for _, current := range units {
		if ctx.Err() != nil {
			break
		}

		group.Go(func() error {
			slot := <-slots
			defer func() { slots <- slot }()

			if err := fn(ctx, slot, current); err != nil {
				slog.Error("Unit failed", "unit", current.label(), "error", err)

				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}

			return nil
		})
	}

	_ = group.Wait()

	if err := ctx.Err(); err != nil {
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

// LoadProjects reads the projects CSV and drops rows that fail validation.
func LoadProjects(ctx context.Context, path m.Path) ([]m.Project, error) {
	projects, err := adapter.ReadProjects(ctx, path)
	if err != nil {
		return nil, err
	}

	valid := projects[:0]

	for _, project := range projects {
		if err := validate.Struct(project); err != nil {
			slog.Warn("Skipping invalid project", "project", project.Key(), "error", err)
			continue
		}

		valid = append(valid, project)
	}

	if len(valid) == 0 {
		return nil, fmt.Errorf("no valid projects in %s", path)
	}

	return valid, nil
}

// WorkspaceDir is the working copy of project for the worker owning slot.
func WorkspaceDir(root m.Path, slot int, project m.Project) m.Path {
	name := fmt.Sprintf("%s_%s_%s", strings.ToLower(project.ID), project.BugID, project.Version)
	return m.Path(filepath.Join(string(root), "worker-"+strconv.Itoa(slot), name))
}

// MutantsPath is where the generate workflow stores a project's mutants for model.
func MutantsPath(dir m.Path, project m.Project, model string) m.Path {
	name := strings.NewReplacer("/", "_", ":", "_", " ", "_").Replace(model)
	if name == "" {
		name = "mutants"
	}

	return m.Path(filepath.Join(string(dir), project.Key(), name+".yaml"))
}

func normalizeParallel(parallel int) int {
	if parallel <= 0 {
		return 1
	}

	return parallel
}

func summarize(result CoordinatorResult) m.UnitSummary {
	return m.UnitSummary{
		Project: result.Project,
		Source:  result.Source,
		State:   result.State.String(),
		Applied: result.Applied,
		Skipped: result.Skipped,
		Score:   result.Score,
		Err:     result.Err,
	}
}
