// Package config provides unified configuration loading for the evaluator:
// defaults, then YAML file, then environment variable overrides.
//
// Usage:
//
//	cfg, err := config.NewLoader().
//	    WithConfigPath("config.yaml").
//	    WithEnvPrefix("AIBTC").
//	    Load()
package config

import (
	"fmt"
	"strings"
	"time"
)

// Config is the complete evaluator configuration.
type Config struct {
	// Engine bounds each orchestration run.
	Engine EngineConfig `yaml:"engine" env:"ENGINE"`

	// Evaluation tunes score aggregation.
	Evaluation EvaluationConfig `yaml:"evaluation" env:"EVALUATION"`

	// Log configures zap output.
	Log LogConfig `yaml:"log" env:"LOG"`

	// Metrics configures the Prometheus collector.
	Metrics MetricsConfig `yaml:"metrics" env:"METRICS"`

	// Telemetry configures the OTel SDK.
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// EngineConfig bounds a single evaluation run.
type EngineConfig struct {
	// MaxRouterCalls caps supervisor invocations per run.
	MaxRouterCalls int `yaml:"max_router_calls" env:"MAX_ROUTER_CALLS"`
	// MaxStepCalls caps invocations of any single step per run.
	MaxStepCalls int `yaml:"max_step_calls" env:"MAX_STEP_CALLS"`
	// StepTimeout bounds one step execution.
	StepTimeout time.Duration `yaml:"step_timeout" env:"STEP_TIMEOUT"`
	// RunTimeout bounds the whole run.
	RunTimeout time.Duration `yaml:"run_timeout" env:"RUN_TIMEOUT"`
}

// EvaluationConfig tunes the reasoning aggregation pass.
type EvaluationConfig struct {
	// Score weights; they should sum to 1.
	CoreWeight       float64 `yaml:"core_weight" env:"CORE_WEIGHT"`
	HistoricalWeight float64 `yaml:"historical_weight" env:"HISTORICAL_WEIGHT"`
	FinancialWeight  float64 `yaml:"financial_weight" env:"FINANCIAL_WEIGHT"`
	SocialWeight     float64 `yaml:"social_weight" env:"SOCIAL_WEIGHT"`
	// ApproveThreshold is the minimum weighted score for approval.
	ApproveThreshold int `yaml:"approve_threshold" env:"APPROVE_THRESHOLD"`
	// VetoFlags reject a proposal outright when raised by any analysis.
	VetoFlags []string `yaml:"veto_flags" env:"VETO_FLAGS"`
	// AnalyzerRPS rate-limits analyzer calls; 0 disables the limiter.
	AnalyzerRPS float64 `yaml:"analyzer_rps" env:"ANALYZER_RPS"`
	// AnalyzerBurst is the limiter burst size.
	AnalyzerBurst int `yaml:"analyzer_burst" env:"ANALYZER_BURST"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level: debug, info, warn, error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json, console.
	Format string `yaml:"format" env:"FORMAT"`
	// OutputPaths for zap.
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// MetricsConfig configures the Prometheus collector and listener.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled" env:"ENABLED"`
	// Namespace prefixes all metric names.
	Namespace string `yaml:"namespace" env:"NAMESPACE"`
	// Addr serves /metrics when non-empty, e.g. ":9090".
	Addr string `yaml:"addr" env:"ADDR"`
}

// TelemetryConfig configures OTel export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// Validate checks configuration consistency.
func (c *Config) Validate() error {
	var errs []string

	if c.Engine.MaxRouterCalls <= 0 {
		errs = append(errs, "engine.max_router_calls must be positive")
	}
	if c.Engine.MaxStepCalls <= 0 {
		errs = append(errs, "engine.max_step_calls must be positive")
	}
	if c.Engine.StepTimeout <= 0 {
		errs = append(errs, "engine.step_timeout must be positive")
	}

	sum := c.Evaluation.CoreWeight + c.Evaluation.HistoricalWeight +
		c.Evaluation.FinancialWeight + c.Evaluation.SocialWeight
	if sum < 0.99 || sum > 1.01 {
		errs = append(errs, fmt.Sprintf("evaluation weights must sum to 1, got %.2f", sum))
	}
	if c.Evaluation.ApproveThreshold < 0 || c.Evaluation.ApproveThreshold > 100 {
		errs = append(errs, "evaluation.approve_threshold must be between 0 and 100")
	}

	switch c.Log.Level {
	case "", "debug", "info", "warn", "error":
	default:
		errs = append(errs, "log.level must be one of debug, info, warn, error")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
