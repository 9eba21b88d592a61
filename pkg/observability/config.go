// Package observability provides OpenTelemetry-based tracing, metrics, and
// structured logging for the nodecop CLI and MCP server.
package observability

import (
	"log/slog"
	"strings"
	"time"
)

// AppMode identifies the application execution mode.
type AppMode string

const (
	// ModeCLI is the CLI command execution mode.
	ModeCLI AppMode = "cli"
	// ModeMCP is the MCP stdio server mode.
	ModeMCP AppMode = "mcp"
)

const (
	defaultServiceName     = "nodecop"
	defaultShutdownTimeout = 5 * time.Second
)

// Service identifies the running binary on every log record, span and
// metric series.
type Service struct {
	Name    string
	Version string
	// Environment is exported as deployment.environment, e.g. "ci".
	Environment string
	Mode        AppMode
}

// Export selects where telemetry leaves the process. The zero value
// exports nothing and Init then installs no-op providers.
type Export struct {
	// OTLPEndpoint is a gRPC collector address such as "localhost:4317".
	OTLPEndpoint string
	OTLPHeaders  map[string]string
	OTLPInsecure bool

	// MetricsFile receives a Prometheus textfile snapshot on shutdown.
	MetricsFile string

	// SampleRatio samples root spans by trace ID. Zero keeps every trace.
	SampleRatio float64

	// UnitSpans keeps one span per evaluated unit. Off, a run exports
	// only its run span however many units it checks.
	UnitSpans bool
}

// Config holds all observability configuration.
type Config struct {
	Service Service
	Export  Export

	LogLevel slog.Level
	LogJSON  bool

	// ShutdownTimeout bounds the final flush. Zero uses five seconds.
	ShutdownTimeout time.Duration
}

// DefaultConfig returns the configuration of a plain CLI run: text logs at
// info level and no export.
func DefaultConfig() Config {
	return Config{
		Service:         Service{Name: defaultServiceName, Mode: ModeCLI},
		LogLevel:        slog.LevelInfo,
		ShutdownTimeout: defaultShutdownTimeout,
	}
}

// ParseHeaders parses OTLP headers written as "key=value,key=value".
// Pairs without "=" are skipped; nil is returned when nothing remains.
func ParseHeaders(raw string) map[string]string {
	var headers map[string]string

	for pair := range strings.SplitSeq(raw, ",") {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			continue
		}

		if headers == nil {
			headers = make(map[string]string)
		}

		headers[strings.TrimSpace(key)] = strings.TrimSpace(value)
	}

	return headers
}
