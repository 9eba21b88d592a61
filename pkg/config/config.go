// Package config provides configuration loading and validation for nodecop.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/viper"

	"github.com/Sumatoshi-tech/nodecop/pkg/cop"
	"github.com/Sumatoshi-tech/nodecop/pkg/observability"
	"github.com/Sumatoshi-tech/nodecop/pkg/suggest"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers   = errors.New("runner workers must be positive")
	ErrInvalidTimeout   = errors.New("runner timeout must not be negative")
	ErrInvalidMaxNodes  = errors.New("runner max nodes must not be negative")
	ErrInvalidMaxSize   = errors.New("invalid input max size")
	ErrInvalidFormat    = errors.New("invalid output format")
	ErrInvalidLogLevel  = errors.New("invalid logging level")
	ErrInvalidLogFormat = errors.New("invalid logging format")
	ErrUnknownCop       = errors.New("unknown cop")
	ErrInvalidSampling  = errors.New("telemetry sample ratio must be within [0, 1]")
)

// Output formats.
const (
	FormatText  = "text"
	FormatJSON  = "json"
	FormatTable = "table"
)

// EnvPrefix prefixes environment overrides, e.g. NODECOP_RUNNER_WORKERS.
const EnvPrefix = "NODECOP"

var (
	outputFormats = []string{FormatText, FormatJSON, FormatTable}
	logFormats    = []string{"text", "json"}
)

// Config holds all configuration for nodecop.
type Config struct {
	Cops      map[string]CopConfig `mapstructure:"cops"`
	Telemetry TelemetryConfig      `mapstructure:"telemetry"`
	Logging   LoggingConfig        `mapstructure:"logging"`
	Output    OutputConfig         `mapstructure:"output"`
	Input     InputConfig          `mapstructure:"input"`
	Runner    RunnerConfig         `mapstructure:"runner"`
}

// RunnerConfig holds batch evaluation settings.
type RunnerConfig struct {
	Timeout      time.Duration `mapstructure:"timeout"`
	Workers      int           `mapstructure:"workers"`
	MaxNodes     int           `mapstructure:"max_nodes"`
	DetectCycles bool          `mapstructure:"detect_cycles"`
}

// InputConfig holds tree document settings.
type InputConfig struct {
	// MaxSize is a human-readable byte size, e.g. "64MB". Empty or "0" disables the limit.
	MaxSize        string `mapstructure:"max_size"`
	ValidateSchema bool   `mapstructure:"validate_schema"`
}

// OutputConfig holds report rendering settings.
type OutputConfig struct {
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

// LoggingConfig holds logging-specific configuration.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string `mapstructure:"otlp_headers"`
	MetricsFile  string `mapstructure:"metrics_file"`
	// Environment is exported as deployment.environment, e.g. "ci".
	Environment string `mapstructure:"environment"`
	// SampleRatio samples root spans; zero samples all of them.
	SampleRatio  float64 `mapstructure:"sample_ratio"`
	OTLPInsecure bool    `mapstructure:"otlp_insecure"`
}

// CopConfig holds per-cop overrides.
type CopConfig struct {
	// Enabled defaults to true when unset.
	Enabled  *bool  `mapstructure:"enabled"`
	Severity string `mapstructure:"severity"`
}

// LoadConfig loads configuration from file and environment variables.
// An empty configPath searches for .nodecop.yaml in the working directory
// and in ./config; a missing file there is not an error.
func LoadConfig(configPath string) (*Config, error) {
	viperCfg := viper.New()

	setDefaults(viperCfg)

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(".nodecop")
		viperCfg.SetConfigType("yaml")
		viperCfg.AddConfigPath(".")
		viperCfg.AddConfigPath("./config")
	}

	viperCfg.SetEnvPrefix(EnvPrefix)
	viperCfg.AutomaticEnv()
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFoundErr viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFoundErr) {
			return nil, fmt.Errorf("failed to read config file: %w", readErr)
		}
	}

	var config Config

	unmarshalErr := viperCfg.Unmarshal(&config)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", unmarshalErr)
	}

	validateErr := validateConfig(&config)
	if validateErr != nil {
		return nil, fmt.Errorf("invalid configuration: %w", validateErr)
	}

	return &config, nil
}

// setDefaults sets default configuration values.
func setDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("runner.workers", DefaultRunnerWorkers)
	viperCfg.SetDefault("runner.timeout", DefaultRunnerTimeout)
	viperCfg.SetDefault("runner.max_nodes", DefaultRunnerMaxNodes)
	viperCfg.SetDefault("runner.detect_cycles", DefaultRunnerDetectCycles)

	viperCfg.SetDefault("input.max_size", DefaultInputMaxSize)
	viperCfg.SetDefault("input.validate_schema", DefaultInputValidateSchema)

	viperCfg.SetDefault("output.format", DefaultOutputFormat)
	viperCfg.SetDefault("output.color", DefaultOutputColor)

	viperCfg.SetDefault("logging.level", DefaultLoggingLevel)
	viperCfg.SetDefault("logging.format", DefaultLoggingFormat)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.metrics_file", "")
	viperCfg.SetDefault("telemetry.environment", "")
	viperCfg.SetDefault("telemetry.sample_ratio", 0.0)
}

// validateConfig validates the configuration.
func validateConfig(config *Config) error {
	if config.Runner.Workers <= 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, config.Runner.Workers)
	}

	if config.Runner.Timeout < 0 {
		return fmt.Errorf("%w: %s", ErrInvalidTimeout, config.Runner.Timeout)
	}

	if config.Runner.MaxNodes < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidMaxNodes, config.Runner.MaxNodes)
	}

	_, sizeErr := config.Input.MaxSizeBytes()
	if sizeErr != nil {
		return sizeErr
	}

	if !slices.Contains(outputFormats, config.Output.Format) {
		return fmt.Errorf("%w: %q (want one of %v)", ErrInvalidFormat, config.Output.Format, outputFormats)
	}

	_, levelErr := config.Logging.SlogLevel()
	if levelErr != nil {
		return levelErr
	}

	if !slices.Contains(logFormats, config.Logging.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidLogFormat, config.Logging.Format)
	}

	if config.Telemetry.SampleRatio < 0 || config.Telemetry.SampleRatio > 1 {
		return fmt.Errorf("%w: %g", ErrInvalidSampling, config.Telemetry.SampleRatio)
	}

	for id, copCfg := range config.Cops {
		if copCfg.Severity == "" {
			continue
		}

		_, severityErr := cop.ParseSeverity(copCfg.Severity)
		if severityErr != nil {
			return fmt.Errorf("cops.%s: %w", id, severityErr)
		}
	}

	return nil
}

// MaxSizeBytes parses MaxSize. Zero means no limit.
func (input InputConfig) MaxSizeBytes() (uint64, error) {
	if input.MaxSize == "" {
		return 0, nil
	}

	size, err := humanize.ParseBytes(input.MaxSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %q: %w", ErrInvalidMaxSize, input.MaxSize, err)
	}

	return size, nil
}

// SlogLevel parses Level.
func (logging LoggingConfig) SlogLevel() (slog.Level, error) {
	var level slog.Level

	err := level.UnmarshalText([]byte(logging.Level))
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrInvalidLogLevel, logging.Level)
	}

	return level, nil
}

// Cop returns the overrides for the cop with the given identifier. Cop
// identifiers are matched case-insensitively, as configuration keys are.
func (config *Config) Cop(id string) CopConfig {
	if copCfg, ok := config.Cops[id]; ok {
		return copCfg
	}

	for key, copCfg := range config.Cops {
		if strings.EqualFold(key, id) {
			return copCfg
		}
	}

	return CopConfig{}
}

// SelectCops applies per-cop overrides to available and returns the enabled
// rules in their original order. When only is non-empty, exactly the named
// cops are returned, enabled or not. A name in only or a cops key of the
// configuration that matches no cop is ErrUnknownCop.
func (config *Config) SelectCops(available []*cop.Rule, only []string) ([]*cop.Rule, error) {
	for _, key := range slices.Sorted(maps.Keys(config.Cops)) {
		if !slices.ContainsFunc(available, func(rule *cop.Rule) bool { return strings.EqualFold(rule.ID(), key) }) {
			return nil, fmt.Errorf("cops.%s: %w", key, UnknownCopError(key, available))
		}
	}

	for _, name := range only {
		if !slices.ContainsFunc(available, func(rule *cop.Rule) bool { return strings.EqualFold(rule.ID(), name) }) {
			return nil, UnknownCopError(name, available)
		}
	}

	selected := make([]*cop.Rule, 0, len(available))

	for _, rule := range available {
		copCfg := config.Cop(rule.ID())

		if len(only) > 0 {
			if !slices.ContainsFunc(only, func(name string) bool { return strings.EqualFold(rule.ID(), name) }) {
				continue
			}
		} else if copCfg.Enabled != nil && !*copCfg.Enabled {
			continue
		}

		if copCfg.Severity != "" {
			severity, err := cop.ParseSeverity(copCfg.Severity)
			if err != nil {
				return nil, fmt.Errorf("cops.%s: %w", rule.ID(), err)
			}

			rule = rule.WithSeverity(severity)
		}

		selected = append(selected, rule)
	}

	return selected, nil
}

// UnknownCopError returns ErrUnknownCop for name, suggesting the closest
// available cop when one is near.
func UnknownCopError(name string, available []*cop.Rule) error {
	ids := make([]string, 0, len(available))
	for _, rule := range available {
		ids = append(ids, rule.ID())
	}

	if closest, ok := suggest.Closest(name, ids); ok {
		return fmt.Errorf("%w: %s (did you mean %s?)", ErrUnknownCop, name, closest)
	}

	return fmt.Errorf("%w: %s", ErrUnknownCop, name)
}

// Observability converts the logging and telemetry sections into an
// observability configuration for the given mode.
func (config *Config) Observability(mode observability.AppMode, version string) (observability.Config, error) {
	level, err := config.Logging.SlogLevel()
	if err != nil {
		return observability.Config{}, err
	}

	obsCfg := observability.DefaultConfig()
	obsCfg.Service.Mode = mode
	obsCfg.Service.Version = version
	obsCfg.Service.Environment = config.Telemetry.Environment
	obsCfg.LogLevel = level
	obsCfg.LogJSON = config.Logging.Format == "json"
	obsCfg.Export = observability.Export{
		OTLPEndpoint: config.Telemetry.OTLPEndpoint,
		OTLPHeaders:  observability.ParseHeaders(config.Telemetry.OTLPHeaders),
		OTLPInsecure: config.Telemetry.OTLPInsecure,
		MetricsFile:  config.Telemetry.MetricsFile,
		SampleRatio:  config.Telemetry.SampleRatio,
	}

	return obsCfg, nil
}

// NewRunner builds a runner for rules from the runner section.
func (config *Config) NewRunner(rules []*cop.Rule) *cop.Runner {
	runner := cop.NewRunner(rules...)
	runner.Workers = config.Runner.Workers
	runner.Timeout = config.Runner.Timeout
	runner.MaxNodes = config.Runner.MaxNodes
	runner.DetectCycles = config.Runner.DetectCycles

	return runner
}
