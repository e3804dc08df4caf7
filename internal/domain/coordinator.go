package domain

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"mutflow.dev/pkg/mutflow/internal/adapter"
	m "mutflow.dev/pkg/mutflow/internal/model"
)

var (
	// ErrBaselineBroken is returned when the unmutated workspace cannot be
	// checked out or compiled.
	ErrBaselineBroken = errors.New("baseline is broken")
	// ErrRestoreFailed is returned when the workspace could not be reset after a
	// mutant; the remaining mutants of the unit are abandoned.
	ErrRestoreFailed = errors.New("baseline restore failed")
	// ErrBaselineDrift is returned when a restored target file does not hash to
	// its pre-mutation fingerprint.
	ErrBaselineDrift = errors.New("target file differs from baseline")
)

// CoordinatorState is the lifecycle state of one unit of work.
type CoordinatorState int

// Lifecycle states.
const (
	StateIdle CoordinatorState = iota
	StateBaselineReady
	StateMutantApplied
	StateVerdictRecorded
	StateBaselineRestored
	StateDone
	StateAbandoned
)

func (s CoordinatorState) String() string {
	switch s {
	case StateIdle:
		return "IDLE"
	case StateBaselineReady:
		return "BASELINE_READY"
	case StateMutantApplied:
		return "MUTANT_APPLIED"
	case StateVerdictRecorded:
		return "VERDICT_RECORDED"
	case StateBaselineRestored:
		return "BASELINE_RESTORED"
	case StateDone:
		return "DONE"
	case StateAbandoned:
		return "ABANDONED"
	default:
		return fmt.Sprintf("STATE(%d)", int(s))
	}
}

// CoordinatorResult summarises one unit of work.
type CoordinatorResult struct {
	Project  m.Project
	Source   string
	State    CoordinatorState
	Applied  int
	Skipped  int
	Verdicts []m.Verdict
	Score    float64
	Err      error
}

// RecordFunc receives every ledger row in evaluation order.
type RecordFunc func(ctx context.Context, row m.LedgerRow, mutant m.Mutant) error

// Coordinator drives the baseline, apply, verdict, restore cycle over one
// workspace. It owns the workspace for the duration of Run.
type Coordinator interface {
	Run(ctx context.Context, ws Workspace, source MutantSource, record RecordFunc) CoordinatorResult
}

type coordinator struct {
	applicator Applicator
	engine     VerdictEngine
	metrics    *adapter.Metrics
}

// NewCoordinator constructs a Coordinator.
func NewCoordinator(applicator Applicator, engine VerdictEngine, metrics *adapter.Metrics) Coordinator {
	return &coordinator{applicator: applicator, engine: engine, metrics: metrics}
}

// Run prepares the baseline, then evaluates every mutant of source in order.
// Mutants are processed strictly one at a time and the baseline is restored
// after every verdict. Cancellation is honoured between mutants only.
func (c *coordinator) Run(ctx context.Context, ws Workspace, source MutantSource, record RecordFunc) CoordinatorResult {
	project := ws.Project()
	result := CoordinatorResult{Project: project, Source: source.Name(), State: StateIdle}

	if err := prepareBaseline(ctx, ws); err != nil {
		slog.Error("Baseline not ready", "project", project.Key(), "error", err)

		result.State = StateAbandoned
		result.Err = err

		return result
	}

	result.State = StateBaselineReady

	// A cancelled stream must not leave its producer blocked on send.
	streamCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	tally := m.Tally{}

	for mutant := range source.Stream(streamCtx, ws) {
		if ctx.Err() != nil {
			result.Err = ctx.Err()
			break
		}

		state, verdict, err := c.step(context.WithoutCancel(ctx), ws, mutant, record)
		result.State = state

		if state == StateBaselineReady && err != nil {
			result.Skipped++
			c.metrics.ObserveSkipped()

			if errors.Is(err, ErrNoMatchingLine) || errors.Is(err, m.ErrInvalidLocation) {
				slog.Info("Mutant skipped", "project", project.Key(), "mutant", mutant.ID, "reason", err)
			} else {
				slog.Error("Mutant could not be applied", "project", project.Key(), "mutant", mutant.ID, "error", err)
			}

			continue
		}

		if err != nil {
			result.Err = err
		}

		if verdict != nil {
			result.Applied++
			result.Verdicts = append(result.Verdicts, *verdict)
			tally.Add(verdict.Status)
		}

		if state == StateAbandoned {
			slog.Error("Abandoning remaining mutants", "project", project.Key(), "error", err)
			break
		}
	}

	result.Score = tally.Score()

	if result.State != StateAbandoned {
		result.State = StateDone
	}

	return result
}

// prepareBaseline resets ws and compiles the unmutated sources.
func prepareBaseline(ctx context.Context, ws Workspace) error {
	if err := ws.Reset(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrBaselineBroken, err)
	}

	if err := ws.Compile(ctx); err != nil {
		return fmt.Errorf("%w: %w", ErrBaselineBroken, err)
	}

	return nil
}

// step applies, evaluates and records one mutant, restoring the baseline on
// every exit path once the file was touched. A failed apply leaves the file
// untouched and the state at BASELINE_READY. The restored target must hash to
// its fingerprint from before the apply.
func (c *coordinator) step(
	ctx context.Context,
	ws Workspace,
	mutant m.Mutant,
	record RecordFunc,
) (state CoordinatorState, verdict *m.Verdict, err error) {
	baseline, err := c.applicator.Fingerprint(ctx, mutant, ws)
	if err != nil {
		return StateBaselineReady, nil, err
	}

	if err := c.applicator.Apply(ctx, mutant, ws); err != nil {
		return StateBaselineReady, nil, err
	}

	state = StateMutantApplied

	defer func() {
		recovered := recover()

		if restoreErr := c.restore(ctx, ws, mutant, baseline); restoreErr != nil {
			state = StateAbandoned
			err = errors.Join(err, fmt.Errorf("%w: %w", ErrRestoreFailed, restoreErr))
		} else if state != StateAbandoned {
			state = StateBaselineRestored
		}

		if recovered != nil {
			panic(recovered)
		}
	}()

	evaluated, err := c.engine.Evaluate(ctx, mutant, ws)
	if err != nil {
		return StateAbandoned, nil, err
	}

	c.metrics.ObserveVerdict(evaluated.Status.String(), string(mutant.Origin))

	if record != nil {
		if err := record(ctx, m.NewLedgerRow(ws.Project(), mutant, evaluated), mutant); err != nil {
			return StateAbandoned, &evaluated, fmt.Errorf("record verdict %s: %w", mutant.ID, err)
		}
	}

	return StateVerdictRecorded, &evaluated, nil
}

// restore resets ws and checks the mutated file is back to baseline.
func (c *coordinator) restore(ctx context.Context, ws Workspace, mutant m.Mutant, baseline string) error {
	if err := ws.Reset(ctx); err != nil {
		return err
	}

	restored, err := c.applicator.Fingerprint(ctx, mutant, ws)
	if err != nil {
		return err
	}

	if restored != baseline {
		slog.Error("Restored target differs from baseline", "project", ws.Project().Key(), "mutant", mutant.ID, "want", baseline, "got", restored)
		return fmt.Errorf("%w: %s", ErrBaselineDrift, mutant.Target.RelPath())
	}

	return nil
}
