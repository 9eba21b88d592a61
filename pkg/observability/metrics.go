package observability

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	metricRequestsTotal    = "nodecop.requests.total"
	metricRequestDuration  = "nodecop.request.duration.seconds"
	metricErrorsTotal      = "nodecop.errors.total"
	metricInflightRequests = "nodecop.inflight.requests"

	metricUnitsTotal     = "nodecop.units.total"
	metricOffensesTotal  = "nodecop.offenses.total"
	metricFailuresTotal  = "nodecop.failures.total"
	metricUnitDuration   = "nodecop.unit.duration.seconds"
	metricNodesEvaluated = "nodecop.nodes.total"

	attrOp     = "op"
	attrStatus = "status"
	attrCop    = "cop"
	attrReason = "reason"

	// StatusOK marks a successful request.
	StatusOK = "ok"
	// StatusError marks a failed request.
	StatusError = "error"
)

// durationBucketBoundaries covers 1ms to 60s: single trees evaluate in
// milliseconds, whole batches in seconds.
var durationBucketBoundaries = []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60}

// REDMetrics holds the OTel instruments for Rate, Error, Duration metrics
// of CLI commands and MCP tool calls.
type REDMetrics struct {
	requestsTotal    metric.Int64Counter
	requestDuration  metric.Float64Histogram
	errorsTotal      metric.Int64Counter
	inflightRequests metric.Int64UpDownCounter
}

// NewREDMetrics creates RED metric instruments from the given meter.
func NewREDMetrics(mt metric.Meter) (*REDMetrics, error) {
	b := newMetricBuilder(mt)

	rm := &REDMetrics{
		requestsTotal:    b.counter(metricRequestsTotal, "Total number of requests", "{request}"),
		requestDuration:  b.histogram(metricRequestDuration, "Request duration in seconds", "s", durationBucketBoundaries...),
		errorsTotal:      b.counter(metricErrorsTotal, "Total number of errors", "{error}"),
		inflightRequests: b.upDownCounter(metricInflightRequests, "Number of in-flight requests", "{request}"),
	}

	if b.err != nil {
		return nil, b.err
	}

	return rm, nil
}

// RecordRequest records a completed request with its operation, status, and duration.
func (rm *REDMetrics) RecordRequest(ctx context.Context, op, status string, duration time.Duration) {
	attrs := metric.WithAttributes(
		attribute.String(attrOp, op),
		attribute.String(attrStatus, status),
	)

	rm.requestsTotal.Add(ctx, 1, attrs)
	rm.requestDuration.Record(ctx, duration.Seconds(), attrs)

	if status == StatusError {
		rm.errorsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String(attrOp, op),
		))
	}
}

// TrackInflight increments the in-flight gauge and returns a function to decrement it.
func (rm *REDMetrics) TrackInflight(ctx context.Context, op string) func() {
	attrs := metric.WithAttributes(attribute.String(attrOp, op))
	rm.inflightRequests.Add(ctx, 1, attrs)

	return func() {
		rm.inflightRequests.Add(ctx, -1, attrs)
	}
}

// CopMetrics holds OTel instruments for evaluation runs.
type CopMetrics struct {
	unitsTotal    metric.Int64Counter
	offensesTotal metric.Int64Counter
	failuresTotal metric.Int64Counter
	nodesTotal    metric.Int64Counter
	unitDuration  metric.Float64Histogram
}

// RunStats holds the statistics of one evaluation run, decoupled from
// engine types.
type RunStats struct {
	// OffensesByCop counts offenses per cop identifier.
	OffensesByCop map[string]int64
	// FailuresByReason counts skipped units and handler failures per reason.
	FailuresByReason map[string]int64
	UnitDurations    []time.Duration
	Units            int64
	Nodes            int64
}

// NewCopMetrics creates evaluation metric instruments from the given meter.
func NewCopMetrics(mt metric.Meter) (*CopMetrics, error) {
	b := newMetricBuilder(mt)

	cm := &CopMetrics{
		unitsTotal:    b.counter(metricUnitsTotal, "Total units evaluated", "{unit}"),
		offensesTotal: b.counter(metricOffensesTotal, "Offenses reported by cop", "{offense}"),
		failuresTotal: b.counter(metricFailuresTotal, "Budget, traversal and handler failures by reason", "{failure}"),
		nodesTotal:    b.counter(metricNodesEvaluated, "Total syntax nodes visited", "{node}"),
		unitDuration:  b.histogram(metricUnitDuration, "Per-unit evaluation duration in seconds", "s", durationBucketBoundaries...),
	}

	if b.err != nil {
		return nil, b.err
	}

	return cm, nil
}

// RecordRun records statistics for a completed run.
// Safe to call on a nil receiver (no-op).
func (cm *CopMetrics) RecordRun(ctx context.Context, stats RunStats) {
	if cm == nil {
		return
	}

	cm.unitsTotal.Add(ctx, stats.Units)
	cm.nodesTotal.Add(ctx, stats.Nodes)

	for copID, count := range stats.OffensesByCop {
		cm.offensesTotal.Add(ctx, count, metric.WithAttributes(attribute.String(attrCop, copID)))
	}

	for reason, count := range stats.FailuresByReason {
		cm.failuresTotal.Add(ctx, count, metric.WithAttributes(attribute.String(attrReason, reason)))
	}

	for _, d := range stats.UnitDurations {
		cm.unitDuration.Record(ctx, d.Seconds())
	}
}

// metricBuilder accumulates OTel instrument creation errors,
// enabling batch construction with a single error check.
type metricBuilder struct {
	meter metric.Meter
	err   error
}

func newMetricBuilder(mt metric.Meter) *metricBuilder {
	return &metricBuilder{meter: mt}
}

func (b *metricBuilder) counter(name, desc, unit string) metric.Int64Counter {
	c, err := b.meter.Int64Counter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

func (b *metricBuilder) histogram(name, desc, unit string, bounds ...float64) metric.Float64Histogram {
	opts := []metric.Float64HistogramOption{
		metric.WithDescription(desc),
		metric.WithUnit(unit),
	}

	if len(bounds) > 0 {
		opts = append(opts, metric.WithExplicitBucketBoundaries(bounds...))
	}

	h, err := b.meter.Float64Histogram(name, opts...)
	b.setErr(name, err)

	return h
}

func (b *metricBuilder) upDownCounter(name, desc, unit string) metric.Int64UpDownCounter {
	c, err := b.meter.Int64UpDownCounter(name, metric.WithDescription(desc), metric.WithUnit(unit))
	b.setErr(name, err)

	return c
}

// setErr records the first instrument creation error.
func (b *metricBuilder) setErr(name string, err error) {
	if err != nil && b.err == nil {
		b.err = fmt.Errorf("create %s: %w", name, err)
	}
}
