package cop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/Sumatoshi-tech/nodecop/pkg/observability"
	"github.com/Sumatoshi-tech/nodecop/pkg/syntax"
)

// tracerName is the default OTel tracer name for the runner.
const tracerName = "nodecop"

// Budget errors reported on a unit's Report.
var (
	// ErrNodeBudgetExceeded is reported for a unit larger than the runner's node budget.
	ErrNodeBudgetExceeded = errors.New("node budget exceeded")
	// ErrTimeBudgetExceeded is reported for a unit whose evaluation outlived its time budget.
	ErrTimeBudgetExceeded = errors.New("time budget exceeded")
)

// Unit is one named tree to evaluate, e.g. one source file.
type Unit struct {
	Tree *syntax.Node
	Name string
}

// Report is the outcome of evaluating one unit.
type Report struct {
	// Err is set when the unit was skipped or abandoned; Offenses is then empty.
	Err      error
	Unit     string
	Offenses []Offense
	Failures []error
	Stats    Stats
	Duration time.Duration
}

// Runner evaluates a fixed rule set over many units on parallel workers.
type Runner struct {
	// Tracer is the OTel tracer for run and unit spans.
	// When nil, falls back to otel.Tracer("nodecop").
	Tracer trace.Tracer

	// Logger receives per-unit failures and the run summary.
	// When nil, slog.Default() is used.
	Logger *slog.Logger

	Rules []*Rule

	// Workers bounds concurrent evaluations. Zero or negative means one.
	Workers int

	// Timeout is the per-unit time budget. Zero disables it.
	Timeout time.Duration

	// MaxNodes is the per-unit node budget. Zero disables it.
	MaxNodes int

	// DetectCycles enables cycle detection for every evaluation.
	DetectCycles bool
}

// NewRunner creates a Runner with a single worker and no budgets.
func NewRunner(rules ...*Rule) *Runner {
	return &Runner{Rules: rules, Workers: 1}
}

func (runner *Runner) tracer() trace.Tracer {
	if runner.Tracer != nil {
		return runner.Tracer
	}

	return otel.Tracer(tracerName)
}

func (runner *Runner) logger() *slog.Logger {
	if runner.Logger != nil {
		return runner.Logger
	}

	return slog.Default()
}

// Run evaluates units and returns one report per unit, in input order.
// Unit failures are reported per unit and never abort the run.
func (runner *Runner) Run(ctx context.Context, units []Unit) []Report {
	ctx, span := runner.tracer().Start(ctx, observability.RunSpanName,
		trace.WithAttributes(
			attribute.Int("nodecop.units", len(units)),
			attribute.Int("nodecop.rules", len(runner.Rules)),
		))
	defer span.End()

	start := time.Now()
	reports := make([]Report, len(units))

	var group errgroup.Group

	group.SetLimit(max(runner.Workers, 1))

	for idx, unit := range units {
		group.Go(func() error {
			reports[idx] = runner.evaluateUnit(ctx, unit)

			return nil
		})
	}

	_ = group.Wait()

	offenses, failed := 0, 0

	for _, report := range reports {
		offenses += len(report.Offenses)

		if report.Err != nil {
			failed++
		}
	}

	span.SetAttributes(
		attribute.Int("nodecop.offenses", offenses),
		attribute.Int("nodecop.units.failed", failed),
	)

	runner.logger().DebugContext(ctx, "run finished",
		"units", len(units),
		"offenses", offenses,
		"failed", failed,
		"duration", time.Since(start),
	)

	return reports
}

type outcome struct {
	result *Result
	err    error
}

func (runner *Runner) evaluateUnit(ctx context.Context, unit Unit) Report {
	ctx, span := runner.tracer().Start(ctx, observability.UnitSpanName,
		trace.WithAttributes(attribute.String("nodecop.unit", unit.Name)))
	defer span.End()

	ctx = observability.WithLogAttrs(ctx, slog.String("unit", unit.Name))

	start := time.Now()
	report := runner.guardedEvaluate(ctx, unit)
	report.Duration = time.Since(start)

	if report.Err != nil {
		span.RecordError(report.Err)
		span.SetStatus(codes.Error, "unit failed")
		runner.logger().WarnContext(ctx, "unit skipped", "error", report.Err)

		return report
	}

	span.SetAttributes(
		attribute.Int("nodecop.nodes", report.Stats.Visited),
		attribute.Int("nodecop.offenses", len(report.Offenses)),
	)

	for _, failure := range report.Failures {
		runner.logger().WarnContext(ctx, "match handler failed", "error", failure)
	}

	return report
}

// guardedEvaluate applies the node and time budgets around one evaluation.
// A timed-out evaluation is abandoned: it stops at its next context check
// and its result is discarded.
func (runner *Runner) guardedEvaluate(ctx context.Context, unit Unit) Report {
	report := Report{Unit: unit.Name}

	if runner.MaxNodes > 0 {
		count := syntax.CountAtMost(unit.Tree, runner.MaxNodes)
		if count > runner.MaxNodes {
			report.Err = fmt.Errorf("%w: %s has more than %d nodes", ErrNodeBudgetExceeded, unit.Name, runner.MaxNodes)

			return report
		}
	}

	unitCtx := ctx

	if runner.Timeout > 0 {
		var cancel context.CancelFunc

		unitCtx, cancel = context.WithTimeout(ctx, runner.Timeout)
		defer cancel()
	}

	opts := []EvalOption{WithFile(unit.Name), WithContext(unitCtx)}
	if runner.DetectCycles {
		opts = append(opts, WithCycleDetection())
	}

	done := make(chan outcome, 1)

	go func() {
		result, err := EvaluateAll(runner.Rules, unit.Tree, opts...)
		done <- outcome{result: result, err: err}
	}()

	var out outcome

	select {
	case out = <-done:
	case <-unitCtx.Done():
		report.Err = fmt.Errorf("%w: %s: %w", ErrTimeBudgetExceeded, unit.Name, context.Cause(unitCtx))

		return report
	}

	if out.err != nil {
		if errors.Is(out.err, context.DeadlineExceeded) || errors.Is(out.err, context.Canceled) {
			report.Err = fmt.Errorf("%w: %s: %w", ErrTimeBudgetExceeded, unit.Name, out.err)
		} else {
			report.Err = fmt.Errorf("%s: %w", unit.Name, out.err)
		}

		return report
	}

	report.Offenses = out.result.Offenses
	report.Failures = out.result.Failures
	report.Stats = out.result.Stats

	return report
}

// Offenses flattens the offenses of reports, keeping report order.
func Offenses(reports []Report) []Offense {
	var all []Offense

	for _, report := range reports {
		all = append(all, report.Offenses...)
	}

	return all
}

// Failure reasons reported by Summarize.
const (
	ReasonNodeBudget = "node_budget"
	ReasonTimeBudget = "time_budget"
	ReasonCycle      = "cycle"
	ReasonOnMatch    = "on_match"
	ReasonOther      = "other"
)

// Summary aggregates the reports of one run.
type Summary struct {
	OffensesByCop    map[string]int64
	FailuresByReason map[string]int64
	Durations        []time.Duration
	Units            int64
	Nodes            int64
	Offenses         int64
	Skipped          int64
}

// Summarize aggregates reports. Skipped units and handler failures are
// counted under their FailureReason.
func Summarize(reports []Report) Summary {
	summary := Summary{
		OffensesByCop:    make(map[string]int64),
		FailuresByReason: make(map[string]int64),
		Durations:        make([]time.Duration, 0, len(reports)),
		Units:            int64(len(reports)),
	}

	for _, report := range reports {
		summary.Nodes += int64(report.Stats.Visited)
		summary.Offenses += int64(len(report.Offenses))
		summary.Durations = append(summary.Durations, report.Duration)

		if report.Err != nil {
			summary.Skipped++
			summary.FailuresByReason[FailureReason(report.Err)]++
		}

		for _, failure := range report.Failures {
			summary.FailuresByReason[FailureReason(failure)]++
		}

		for _, offense := range report.Offenses {
			summary.OffensesByCop[offense.RuleID]++
		}
	}

	return summary
}

// FailureReason classifies a unit or handler failure.
func FailureReason(err error) string {
	switch {
	case errors.Is(err, ErrNodeBudgetExceeded):
		return ReasonNodeBudget
	case errors.Is(err, ErrTimeBudgetExceeded):
		return ReasonTimeBudget
	case errors.Is(err, ErrCycleDetected):
		return ReasonCycle
	case errors.Is(err, ErrOnMatchFailed):
		return ReasonOnMatch
	default:
		return ReasonOther
	}
}
