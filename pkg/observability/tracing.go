package observability

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Span names opened by the evaluation runner.
const (
	RunSpanName  = "nodecop.run"
	UnitSpanName = "nodecop.unit"
)

// exportedPrefixes are the attribute namespaces allowed out of the process.
var exportedPrefixes = []string{"nodecop.", "mcp.", "error.", "exception."}

// redactedKeys never leave the process: tokens and trees carry source text.
var redactedKeys = map[attribute.Key]bool{
	"nodecop.token": true,
	"nodecop.tree":  true,
}

func exported(key attribute.Key) bool {
	if redactedKeys[key] {
		return false
	}

	return key == "error" || slices.ContainsFunc(exportedPrefixes, func(prefix string) bool {
		return strings.HasPrefix(string(key), prefix)
	})
}

// NewRedactingExporter wraps next so that exported spans keep only
// attributes in the nodecop, mcp, error and exception namespaces. Dropped
// keys are logged at debug level when logger is non-nil.
func NewRedactingExporter(next sdktrace.SpanExporter, logger *slog.Logger) sdktrace.SpanExporter {
	return &redactingExporter{next: next, logger: logger}
}

type redactingExporter struct {
	next   sdktrace.SpanExporter
	logger *slog.Logger
}

func (e *redactingExporter) ExportSpans(ctx context.Context, spans []sdktrace.ReadOnlySpan) error {
	redacted := make([]sdktrace.ReadOnlySpan, 0, len(spans))

	for _, span := range spans {
		redacted = append(redacted, redactedSpan{ReadOnlySpan: span, attrs: e.redact(ctx, span)})
	}

	err := e.next.ExportSpans(ctx, redacted)
	if err != nil {
		return fmt.Errorf("export spans: %w", err)
	}

	return nil
}

func (e *redactingExporter) Shutdown(ctx context.Context) error {
	err := e.next.Shutdown(ctx)
	if err != nil {
		return fmt.Errorf("span exporter shutdown: %w", err)
	}

	return nil
}

func (e *redactingExporter) redact(ctx context.Context, span sdktrace.ReadOnlySpan) []attribute.KeyValue {
	all := span.Attributes()
	kept := make([]attribute.KeyValue, 0, len(all))

	for _, kv := range all {
		if exported(kv.Key) {
			kept = append(kept, kv)

			continue
		}

		if e.logger != nil {
			e.logger.DebugContext(ctx, "span attribute redacted", "span", span.Name(), "key", string(kv.Key))
		}
	}

	return kept
}

type redactedSpan struct {
	sdktrace.ReadOnlySpan

	attrs []attribute.KeyValue
}

func (s redactedSpan) Attributes() []attribute.KeyValue {
	return s.attrs
}

// NewSampler returns the sampler of exported traces. Root spans are kept at
// ratio (every trace when ratio is zero) and children follow their parent.
// Unit spans are dropped unless keepUnits is set, so a run over thousands of
// files still exports one span.
func NewSampler(ratio float64, keepUnits bool) sdktrace.Sampler {
	root := sdktrace.AlwaysSample()
	if ratio > 0 {
		root = sdktrace.TraceIDRatioBased(ratio)
	}

	sampler := sdktrace.ParentBased(root)
	if keepUnits {
		return sampler
	}

	return unitDropSampler{next: sampler}
}

type unitDropSampler struct {
	next sdktrace.Sampler
}

func (s unitDropSampler) ShouldSample(params sdktrace.SamplingParameters) sdktrace.SamplingResult {
	if params.Name != UnitSpanName {
		return s.next.ShouldSample(params)
	}

	return sdktrace.SamplingResult{
		Decision:   sdktrace.Drop,
		Tracestate: trace.SpanContextFromContext(params.ParentContext).TraceState(),
	}
}

func (s unitDropSampler) Description() string {
	return "DropUnitSpans{" + s.next.Description() + "}"
}
