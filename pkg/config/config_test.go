package config_test

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/nodecop/pkg/config"
	"github.com/Sumatoshi-tech/nodecop/pkg/cop"
	"github.com/Sumatoshi-tech/nodecop/pkg/cop/threadsafety"
	"github.com/Sumatoshi-tech/nodecop/pkg/observability"
	"github.com/Sumatoshi-tech/nodecop/pkg/pattern"
	"github.com/Sumatoshi-tech/nodecop/pkg/syntax"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "nodecop.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""))
	require.NoError(t, err)

	assert.Equal(t, config.DefaultRunnerWorkers, cfg.Runner.Workers)
	assert.Equal(t, config.DefaultRunnerTimeout, cfg.Runner.Timeout)
	assert.Equal(t, config.DefaultRunnerMaxNodes, cfg.Runner.MaxNodes)
	assert.False(t, cfg.Runner.DetectCycles)
	assert.Equal(t, config.DefaultInputMaxSize, cfg.Input.MaxSize)
	assert.True(t, cfg.Input.ValidateSchema)
	assert.Equal(t, config.FormatText, cfg.Output.Format)
	assert.True(t, cfg.Output.Color)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Empty(t, cfg.Telemetry.OTLPEndpoint)

	size, err := cfg.Input.MaxSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(64_000_000), size)
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `
runner:
  workers: 2
  timeout: 250ms
  max_nodes: 5000
  detect_cycles: true
input:
  max_size: 1MiB
  validate_schema: false
output:
  format: table
  color: false
logging:
  level: debug
  format: json
telemetry:
  otlp_endpoint: localhost:4317
  otlp_headers: "x-team=lint"
  metrics_file: /tmp/nodecop.prom
  environment: ci
  sample_ratio: 0.25
cops:
  ThreadSafety/DirChdir:
    severity: error
`)

	cfg, err := config.LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 2, cfg.Runner.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Runner.Timeout)
	assert.Equal(t, 5000, cfg.Runner.MaxNodes)
	assert.True(t, cfg.Runner.DetectCycles)
	assert.False(t, cfg.Input.ValidateSchema)
	assert.Equal(t, config.FormatTable, cfg.Output.Format)
	assert.False(t, cfg.Output.Color)

	size, err := cfg.Input.MaxSizeBytes()
	require.NoError(t, err)
	assert.Equal(t, uint64(1<<20), size)

	assert.Equal(t, "error", cfg.Cop("ThreadSafety/DirChdir").Severity)

	obsCfg, err := cfg.Observability(observability.ModeMCP, "1.0.0")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelDebug, obsCfg.LogLevel)
	assert.True(t, obsCfg.LogJSON)
	assert.Equal(t, "localhost:4317", obsCfg.Export.OTLPEndpoint)
	assert.Equal(t, map[string]string{"x-team": "lint"}, obsCfg.Export.OTLPHeaders)
	assert.Equal(t, "/tmp/nodecop.prom", obsCfg.Export.MetricsFile)
	assert.Equal(t, "ci", obsCfg.Service.Environment)
	assert.InDelta(t, 0.25, obsCfg.Export.SampleRatio, 1e-9)
	assert.Equal(t, observability.ModeMCP, obsCfg.Service.Mode)
	assert.Equal(t, "1.0.0", obsCfg.Service.Version)

	runner := cfg.NewRunner(threadsafety.Cops())
	assert.Equal(t, 2, runner.Workers)
	assert.Equal(t, 250*time.Millisecond, runner.Timeout)
	assert.Equal(t, 5000, runner.MaxNodes)
	assert.True(t, runner.DetectCycles)
}

func TestLoadConfig_EnvOverride(t *testing.T) {
	t.Setenv("NODECOP_RUNNER_WORKERS", "16")
	t.Setenv("NODECOP_OUTPUT_FORMAT", "json")

	cfg, err := config.LoadConfig(writeConfig(t, "runner:\n  workers: 2\n"))
	require.NoError(t, err)

	assert.Equal(t, 16, cfg.Runner.Workers)
	assert.Equal(t, config.FormatJSON, cfg.Output.Format)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_Invalid(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		content string
		wantErr error
	}{
		{"zero workers", "runner:\n  workers: 0\n", config.ErrInvalidWorkers},
		{"negative timeout", "runner:\n  timeout: -1s\n", config.ErrInvalidTimeout},
		{"negative max nodes", "runner:\n  max_nodes: -1\n", config.ErrInvalidMaxNodes},
		{"bad size", "input:\n  max_size: lots\n", config.ErrInvalidMaxSize},
		{"bad format", "output:\n  format: xml\n", config.ErrInvalidFormat},
		{"bad level", "logging:\n  level: loud\n", config.ErrInvalidLogLevel},
		{"bad log format", "logging:\n  format: logfmt\n", config.ErrInvalidLogFormat},
		{"bad severity", "cops:\n  ThreadSafety/DirChdir:\n    severity: fatal\n", cop.ErrUnknownSeverity},
		{"sample ratio above one", "telemetry:\n  sample_ratio: 1.5\n", config.ErrInvalidSampling},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tt.content))
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func testRule(id string) *cop.Rule {
	return cop.MustNew(cop.Definition{
		ID:      id,
		Pattern: pattern.ExactNode(syntax.TypeSend, pattern.Rest()),
		Message: "send",
	})
}

func TestSelectCops(t *testing.T) {
	t.Parallel()

	first := testRule("Test/First")
	second := testRule("Test/Second")
	available := []*cop.Rule{first, second}

	cfg, err := config.LoadConfig(writeConfig(t, `
cops:
  Test/First:
    enabled: false
  Test/Second:
    severity: info
`))
	require.NoError(t, err)

	selected, err := cfg.SelectCops(available, nil)
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "Test/Second", selected[0].ID())
	assert.Equal(t, cop.SeverityInfo, selected[0].Severity())

	selected, err = cfg.SelectCops(available, []string{"test/first"})
	require.NoError(t, err)
	require.Len(t, selected, 1)
	assert.Equal(t, "Test/First", selected[0].ID())

	_, err = cfg.SelectCops(available, []string{"Test/Missing"})
	require.ErrorIs(t, err, config.ErrUnknownCop)
	assert.NotContains(t, err.Error(), "did you mean")

	_, err = cfg.SelectCops(available, []string{"Test/Secnod"})
	require.ErrorIs(t, err, config.ErrUnknownCop)
	assert.Contains(t, err.Error(), "did you mean Test/Second?")
}

func TestSelectCops_UnknownConfigKey(t *testing.T) {
	t.Parallel()

	available := []*cop.Rule{testRule("Test/First"), testRule("Test/Second")}

	cfg, err := config.LoadConfig(writeConfig(t, `
cops:
  Test/Secnod:
    enabled: false
`))
	require.NoError(t, err)

	_, err = cfg.SelectCops(available, nil)
	require.ErrorIs(t, err, config.ErrUnknownCop)
	assert.Contains(t, err.Error(), "did you mean Test/Second?")

	_, err = cfg.SelectCops(available, []string{"Test/First"})
	require.ErrorIs(t, err, config.ErrUnknownCop)
}
