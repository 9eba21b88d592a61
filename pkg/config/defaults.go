package config

import "time"

// Runner default values.
const (
	DefaultRunnerWorkers      = 4
	DefaultRunnerTimeout      = 10 * time.Second
	DefaultRunnerMaxNodes     = 1_000_000
	DefaultRunnerDetectCycles = false
)

// Input default values.
const (
	DefaultInputMaxSize        = "64MB"
	DefaultInputValidateSchema = true
)

// Output default values.
const (
	DefaultOutputFormat = FormatText
	DefaultOutputColor  = true
)

// Logging default values.
const (
	DefaultLoggingLevel  = "info"
	DefaultLoggingFormat = "text"
)
