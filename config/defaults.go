package config

import "time"

// DefaultConfig returns the built-in defaults. They match a local run with no
// external collectors.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxRouterCalls: 50,
			MaxStepCalls:   5,
			StepTimeout:    30 * time.Second,
			RunTimeout:     5 * time.Minute,
		},
		Evaluation: EvaluationConfig{
			CoreWeight:       0.40,
			HistoricalWeight: 0.20,
			FinancialWeight:  0.25,
			SocialWeight:     0.15,
			ApproveThreshold: 60,
			VetoFlags:        []string{"possible_duplicate", "high_outflow"},
			AnalyzerRPS:      0,
			AnalyzerBurst:    1,
		},
		Log: LogConfig{
			Level:       "info",
			Format:      "json",
			OutputPaths: []string{"stdout"},
		},
		Metrics: MetricsConfig{
			Enabled:   true,
			Namespace: "aibtc",
		},
		Telemetry: TelemetryConfig{
			Enabled:      false,
			OTLPEndpoint: "localhost:4317",
			ServiceName:  "proposal-evaluator",
			SampleRate:   1.0,
		},
	}
}
