package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/exporters/otlp/otlptrace/otlptracegrpc"
	"go.opentelemetry.io/otel/metric"
	noopmetric "go.opentelemetry.io/otel/metric/noop"
	"go.opentelemetry.io/otel/propagation"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
	nooptrace "go.opentelemetry.io/otel/trace/noop"
)

// instrumentationName names the tracer and the meter handed out by Init.
const instrumentationName = "nodecop"

// Providers holds the initialized observability providers.
type Providers struct {
	Tracer trace.Tracer
	Meter  metric.Meter
	Logger *slog.Logger

	// Shutdown flushes pending telemetry and writes the metrics file. Only
	// the first call does any work; later calls return its error.
	Shutdown func(ctx context.Context) error
}

// closer releases one provider on shutdown.
type closer func(ctx context.Context) error

// Init installs the tracer and meter providers described by cfg as the
// OTel globals and returns them with a logger writing to logOut.
func Init(cfg Config, logOut io.Writer) (Providers, error) {
	ctx := context.Background()
	logger := slog.New(NewLogHandler(newSlogHandler(cfg, logOut), cfg.Service))

	res, err := newResource(ctx, cfg.Service)
	if err != nil {
		return Providers{}, err
	}

	tracerProvider, closeTraces, err := newTracerProvider(ctx, cfg.Export, res, logger)
	if err != nil {
		return Providers{}, err
	}

	meterProvider, closeMetrics, err := newMeterProvider(ctx, cfg.Export, res)
	if err != nil {
		return Providers{}, errors.Join(err, closeTraces(ctx))
	}

	otel.SetTracerProvider(tracerProvider)
	otel.SetMeterProvider(meterProvider)
	otel.SetTextMapPropagator(propagation.NewCompositeTextMapPropagator(propagation.TraceContext{}, propagation.Baggage{}))

	timeout := cfg.ShutdownTimeout
	if timeout <= 0 {
		timeout = defaultShutdownTimeout
	}

	var (
		once        sync.Once
		shutdownErr error
	)

	shutdown := func(ctx context.Context) error {
		once.Do(func() {
			ctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()

			// Metrics first: the textfile is gathered while spans still flush.
			shutdownErr = errors.Join(closeMetrics(ctx), closeTraces(ctx))
		})

		return shutdownErr
	}

	return Providers{
		Tracer:   tracerProvider.Tracer(instrumentationName),
		Meter:    meterProvider.Meter(instrumentationName),
		Logger:   logger,
		Shutdown: shutdown,
	}, nil
}

func newSlogHandler(cfg Config, out io.Writer) slog.Handler {
	opts := &slog.HandlerOptions{Level: cfg.LogLevel}

	if cfg.LogJSON {
		return slog.NewJSONHandler(out, opts)
	}

	return slog.NewTextHandler(out, opts)
}

func newResource(ctx context.Context, svc Service) (*resource.Resource, error) {
	attrs := []attribute.KeyValue{semconv.ServiceName(svc.Name)}

	if svc.Version != "" {
		attrs = append(attrs, semconv.ServiceVersion(svc.Version))
	}

	if svc.Environment != "" {
		attrs = append(attrs, semconv.DeploymentEnvironment(svc.Environment))
	}

	if svc.Mode != "" {
		attrs = append(attrs, attribute.String("app.mode", string(svc.Mode)))
	}

	res, err := resource.New(ctx, resource.WithTelemetrySDK(), resource.WithAttributes(attrs...))
	if err != nil {
		return nil, fmt.Errorf("build otel resource: %w", err)
	}

	return res, nil
}

func noopCloser(context.Context) error { return nil }

// newTracerProvider exports spans over OTLP, redacted and sampled, or
// returns a no-op provider when no endpoint is configured.
func newTracerProvider(
	ctx context.Context, export Export, res *resource.Resource, logger *slog.Logger,
) (trace.TracerProvider, closer, error) {
	if export.OTLPEndpoint == "" {
		return nooptrace.NewTracerProvider(), noopCloser, nil
	}

	opts := []otlptracegrpc.Option{otlptracegrpc.WithEndpoint(export.OTLPEndpoint)}

	if export.OTLPInsecure {
		opts = append(opts, otlptracegrpc.WithInsecure())
	}

	if len(export.OTLPHeaders) > 0 {
		opts = append(opts, otlptracegrpc.WithHeaders(export.OTLPHeaders))
	}

	exporter, err := otlptracegrpc.New(ctx, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("create trace exporter: %w", err)
	}

	provider := sdktrace.NewTracerProvider(
		sdktrace.WithBatcher(NewRedactingExporter(exporter, logger)),
		sdktrace.WithSampler(NewSampler(export.SampleRatio, export.UnitSpans)),
		sdktrace.WithResource(res),
	)

	return provider, provider.Shutdown, nil
}

// newMeterProvider attaches one reader per configured destination: a
// periodic OTLP exporter and a Prometheus registry dumped to MetricsFile
// on close.
func newMeterProvider(ctx context.Context, export Export, res *resource.Resource) (metric.MeterProvider, closer, error) {
	opts := []sdkmetric.Option{sdkmetric.WithResource(res)}

	var registry *prometheus.Registry

	if export.MetricsFile != "" {
		reader, reg, err := newPrometheusReader()
		if err != nil {
			return nil, nil, err
		}

		registry = reg
		opts = append(opts, sdkmetric.WithReader(reader))
	}

	if export.OTLPEndpoint != "" {
		grpcOpts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(export.OTLPEndpoint)}

		if export.OTLPInsecure {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithInsecure())
		}

		if len(export.OTLPHeaders) > 0 {
			grpcOpts = append(grpcOpts, otlpmetricgrpc.WithHeaders(export.OTLPHeaders))
		}

		exporter, err := otlpmetricgrpc.New(ctx, grpcOpts...)
		if err != nil {
			return nil, nil, fmt.Errorf("create metric exporter: %w", err)
		}

		opts = append(opts, sdkmetric.WithReader(sdkmetric.NewPeriodicReader(exporter)))
	}

	if registry == nil && export.OTLPEndpoint == "" {
		return noopmetric.NewMeterProvider(), noopCloser, nil
	}

	provider := sdkmetric.NewMeterProvider(opts...)

	closeProvider := func(ctx context.Context) error {
		var writeErr error

		if registry != nil {
			writeErr = WriteTextfile(export.MetricsFile, registry)
		}

		return errors.Join(writeErr, provider.Shutdown(ctx))
	}

	return provider, closeProvider, nil
}
