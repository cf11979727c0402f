// Command evaluator runs DAO proposal evaluations from the command line.
//
// Usage:
//
//	evaluator evaluate --proposal proposal.json          # evaluate one proposal
//	evaluator evaluate --config config.yaml --proposal p.json
//	evaluator version                                    # show version info
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/aibtcdev/aibtcdev-backend-sub002/config"
	"github.com/aibtcdev/aibtcdev-backend-sub002/evaluation"
	"github.com/aibtcdev/aibtcdev-backend-sub002/internal/metrics"
	"github.com/aibtcdev/aibtcdev-backend-sub002/internal/telemetry"
	"github.com/aibtcdev/aibtcdev-backend-sub002/workflow"
)

var (
	Version   = "dev"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "evaluate":
		runEvaluate(os.Args[2:])
	case "version":
		printVersion()
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runEvaluate(args []string) {
	fs := flag.NewFlagSet("evaluate", flag.ExitOnError)
	configPath := fs.String("config", "", "Path to config file")
	proposalPath := fs.String("proposal", "", "Path to proposal JSON file (use - for stdin)")
	fs.Parse(args)

	if *proposalPath == "" {
		fmt.Fprintln(os.Stderr, "evaluate requires --proposal")
		fs.Usage()
		os.Exit(1)
	}

	loader := config.NewLoader()
	if *configPath != "" {
		loader = loader.WithConfigPath(*configPath)
	}

	cfg, err := loader.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger := initLogger(cfg.Log)
	defer logger.Sync()

	logger.Info("Starting proposal evaluator",
		zap.String("version", Version),
		zap.String("build_time", BuildTime),
		zap.String("git_commit", GitCommit),
	)

	otelProviders, err := telemetry.Init(cfg.Telemetry, logger)
	if err != nil {
		logger.Warn("failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := otelProviders.Shutdown(ctx); err != nil {
			logger.Warn("telemetry shutdown failed", zap.Error(err))
		}
	}()

	var execOpts []workflow.ExecutorOption
	if cfg.Metrics.Enabled {
		collector := metrics.NewCollector(cfg.Metrics.Namespace, logger)
		execOpts = append(execOpts, workflow.WithObserver(collector))
		if cfg.Metrics.Addr != "" {
			go serveMetrics(cfg.Metrics.Addr, logger)
		}
	}

	proposal, err := readProposal(*proposalPath)
	if err != nil {
		logger.Fatal("Failed to read proposal", zap.Error(err))
	}

	var analyzer evaluation.Analyzer = evaluation.NewHeuristicAnalyzer()
	if cfg.Evaluation.AnalyzerRPS > 0 {
		analyzer = evaluation.NewRateLimitedAnalyzer(analyzer, cfg.Evaluation.AnalyzerRPS, cfg.Evaluation.AnalyzerBurst)
	}

	evalCfg := evaluation.Config{
		CoreWeight:       cfg.Evaluation.CoreWeight,
		HistoricalWeight: cfg.Evaluation.HistoricalWeight,
		FinancialWeight:  cfg.Evaluation.FinancialWeight,
		SocialWeight:     cfg.Evaluation.SocialWeight,
		ApproveThreshold: cfg.Evaluation.ApproveThreshold,
		VetoFlags:        cfg.Evaluation.VetoFlags,
		Limits: workflow.Limits{
			MaxRouterCalls: cfg.Engine.MaxRouterCalls,
			MaxStepCalls:   cfg.Engine.MaxStepCalls,
			StepTimeout:    cfg.Engine.StepTimeout,
			RunTimeout:     cfg.Engine.RunTimeout,
		},
	}

	evaluator, err := evaluation.NewEvaluator(analyzer, evalCfg, logger, execOpts)
	if err != nil {
		logger.Fatal("Failed to build evaluator", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Engine.RunTimeout)
	defer cancel()

	decision, run, err := evaluator.Evaluate(ctx, proposal)
	if err != nil {
		logger.Fatal("Evaluation failed", zap.Error(err))
	}

	report := struct {
		ProposalID string               `json:"proposal_id"`
		Decision   evaluation.Decision  `json:"decision"`
		Halted     bool                 `json:"halted,omitempty"`
		HaltReason string               `json:"halt_reason,omitempty"`
		StepErrors []workflow.StepError `json:"step_errors,omitempty"`
	}{
		ProposalID: proposal.ID,
		Decision:   decision,
		Halted:     run.Halted,
		HaltReason: run.HaltReason,
		StepErrors: run.State.StepErrors(),
	}

	out, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		logger.Fatal("Failed to encode result", zap.Error(err))
	}
	fmt.Println(string(out))
}

func readProposal(path string) (evaluation.Proposal, error) {
	var p evaluation.Proposal

	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(os.Stdin)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return p, fmt.Errorf("read proposal: %w", err)
	}

	if err := json.Unmarshal(data, &p); err != nil {
		return p, fmt.Errorf("parse proposal: %w", err)
	}
	if p.ID == "" {
		return p, fmt.Errorf("proposal is missing an id")
	}
	return p, nil
}

func serveMetrics(addr string, logger *zap.Logger) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	logger.Info("Serving metrics", zap.String("addr", addr))
	if err := http.ListenAndServe(addr, mux); err != nil {
		logger.Warn("Metrics server stopped", zap.Error(err))
	}
}

func printVersion() {
	fmt.Printf("evaluator %s\n", Version)
	fmt.Printf("  Build Time: %s\n", BuildTime)
	fmt.Printf("  Git Commit: %s\n", GitCommit)
}

func printUsage() {
	fmt.Println(`evaluator - DAO proposal evaluation engine

Usage:
  evaluator <command> [options]

Commands:
  evaluate  Evaluate a proposal and print the decision
  version   Show version information
  help      Show this help message

Options for 'evaluate':
  --config <path>     Path to configuration file (YAML)
  --proposal <path>   Path to proposal JSON file (use - for stdin)

Examples:
  evaluator evaluate --proposal proposal.json
  evaluator evaluate --config /etc/evaluator/config.yaml --proposal -
  evaluator version`)
}

func initLogger(cfg config.LogConfig) *zap.Logger {
	var level zapcore.Level
	switch cfg.Level {
	case "debug":
		level = zapcore.DebugLevel
	case "info":
		level = zapcore.InfoLevel
	case "warn":
		level = zapcore.WarnLevel
	case "error":
		level = zapcore.ErrorLevel
	default:
		level = zapcore.InfoLevel
	}

	var encoderConfig zapcore.EncoderConfig
	if cfg.Format == "console" {
		encoderConfig = zap.NewDevelopmentEncoderConfig()
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
	} else {
		encoderConfig = zap.NewProductionEncoderConfig()
		encoderConfig.TimeKey = "timestamp"
		encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	}

	encoding := "json"
	if cfg.Format == "console" {
		encoding = "console"
	}

	zapConfig := zap.Config{
		Level:            zap.NewAtomicLevelAt(level),
		Development:      cfg.Format == "console",
		Encoding:         encoding,
		EncoderConfig:    encoderConfig,
		OutputPaths:      cfg.OutputPaths,
		ErrorOutputPaths: []string{"stderr"},
	}

	logger, err := zapConfig.Build(
		zap.AddCaller(),
		zap.AddStacktrace(zapcore.ErrorLevel),
	)
	if err != nil {
		logger, _ = zap.NewProduction()
	}

	return logger
}
