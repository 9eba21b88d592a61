package observability

import (
	"context"
	"log/slog"
	"slices"

	"go.opentelemetry.io/otel/trace"
)

type logAttrsKey struct{}

// WithLogAttrs returns a context whose log records carry attrs after those
// already attached to ctx. The runner attaches the unit name this way.
func WithLogAttrs(ctx context.Context, attrs ...slog.Attr) context.Context {
	return context.WithValue(ctx, logAttrsKey{}, append(slices.Clip(logAttrs(ctx)), attrs...))
}

func logAttrs(ctx context.Context) []slog.Attr {
	attrs, _ := ctx.Value(logAttrsKey{}).([]slog.Attr)

	return attrs
}

// NewLogHandler wraps inner so that every record names the service and
// carries the trace_id and span_id of its context along with the
// attributes attached by WithLogAttrs.
func NewLogHandler(inner slog.Handler, svc Service) slog.Handler {
	attrs := []slog.Attr{
		slog.String("service", svc.Name),
		slog.String("mode", string(svc.Mode)),
	}

	if svc.Version != "" {
		attrs = append(attrs, slog.String("version", svc.Version))
	}

	if svc.Environment != "" {
		attrs = append(attrs, slog.String("env", svc.Environment))
	}

	return contextHandler{Handler: inner.WithAttrs(attrs)}
}

type contextHandler struct {
	slog.Handler
}

func (h contextHandler) Handle(ctx context.Context, record slog.Record) error {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		record.AddAttrs(
			slog.String("trace_id", sc.TraceID().String()),
			slog.String("span_id", sc.SpanID().String()),
		)
	}

	record.AddAttrs(logAttrs(ctx)...)

	return h.Handler.Handle(ctx, record) //nolint:wrapcheck // handler chain.
}

func (h contextHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return contextHandler{Handler: h.Handler.WithAttrs(attrs)}
}

func (h contextHandler) WithGroup(name string) slog.Handler {
	return contextHandler{Handler: h.Handler.WithGroup(name)}
}
