package evaluation

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/aibtcdev/aibtcdev-backend-sub002/workflow"
)

// WorkflowName identifies the evaluation workflow in logs and metrics.
const WorkflowName = "proposal_evaluation"

// Config tunes the aggregation pass and run limits.
type Config struct {
	// Weights applied to the four analysis scores; they should sum to 1.
	CoreWeight       float64
	HistoricalWeight float64
	FinancialWeight  float64
	SocialWeight     float64
	// ApproveThreshold is the minimum weighted final score for approval.
	ApproveThreshold int
	// VetoFlags reject the proposal outright when present in the flags slot,
	// regardless of score.
	VetoFlags []string
	// Limits bounds each run; zero fields use workflow defaults.
	Limits workflow.Limits
}

// DefaultConfig returns the default evaluation configuration.
func DefaultConfig() Config {
	return Config{
		CoreWeight:       0.40,
		HistoricalWeight: 0.20,
		FinancialWeight:  0.25,
		SocialWeight:     0.15,
		ApproveThreshold: 60,
		VetoFlags:        []string{"possible_duplicate", "high_outflow"},
		Limits:           workflow.DefaultLimits(),
	}
}

// Evaluator wires the orchestration engine to the proposal-evaluation
// workflow: four scoring analyses plus the final reasoning pass, routed by
// the Supervisor.
type Evaluator struct {
	def      *workflow.Definition
	exec     *workflow.Executor
	analyzer Analyzer
	tokens   TokenCounter
	cfg      Config
	logger   *zap.Logger
}

// Option configures an Evaluator.
type Option func(*Evaluator)

// WithTokenCounter overrides the default tiktoken-based counter.
func WithTokenCounter(tc TokenCounter) Option {
	return func(ev *Evaluator) {
		if tc != nil {
			ev.tokens = tc
		}
	}
}

// NewEvaluator builds the evaluation workflow definition around the given
// analyzer. Construction fails only on definition mistakes.
func NewEvaluator(analyzer Analyzer, cfg Config, logger *zap.Logger, execOpts []workflow.ExecutorOption, opts ...Option) (*Evaluator, error) {
	if analyzer == nil {
		return nil, fmt.Errorf("analyzer must not be nil")
	}

	ev := &Evaluator{
		analyzer: analyzer,
		tokens:   NewTokenCounter(),
		cfg:      cfg,
		logger:   logger.With(zap.String("component", "evaluator")),
	}
	for _, opt := range opts {
		opt(ev)
	}

	b := workflow.NewDefinition(WorkflowName)
	registerSlots(b)
	b.RegisterStep(StepCore, SlotCoreScore, ev.analysisHandler(StepCore, AnalysisCore)).
		RegisterStep(StepHistorical, SlotHistoricalScore, ev.analysisHandler(StepHistorical, AnalysisHistorical)).
		RegisterStep(StepFinancial, SlotFinancialScore, ev.analysisHandler(StepFinancial, AnalysisFinancial)).
		RegisterStep(StepSocial, SlotSocialScore, ev.analysisHandler(StepSocial, AnalysisSocial)).
		RegisterStep(StepReasoning, SlotFinalDecision, ev.reasoningHandler(), workflow.WithStepKind("aggregation")).
		WithRouter(NewSupervisor()).
		WithLimits(cfg.Limits)

	def, err := b.Build()
	if err != nil {
		return nil, err
	}
	ev.def = def
	ev.exec = workflow.NewExecutor(def, logger, execOpts...)
	return ev, nil
}

// analysisHandler adapts one Analyzer call to a workflow step. Analyzer
// failures propagate to the executor's fail-open wrapper, which records them
// and defaults the score slot.
func (ev *Evaluator) analysisHandler(stepName string, kind AnalysisKind) workflow.Handler {
	return func(ctx context.Context, snap workflow.Snapshot) (workflow.Update, error) {
		p := proposalFromSnapshot(snap)

		score, err := ev.analyzer.Analyze(ctx, kind, p)
		if err != nil {
			return nil, fmt.Errorf("%s analysis: %w", kind, err)
		}

		usage := TokenUsage{PromptTokens: ev.tokens.Count(p.Content)}
		usage.CompletionTokens = ev.tokens.Count(score.Summary)
		usage.TotalTokens = usage.PromptTokens + usage.CompletionTokens

		update := workflow.Update{
			analysisSlots[stepName]: score,
			SlotTokenUsage:          map[string]any{stepName: usage},
		}
		if len(score.Flags) > 0 {
			flags := make([]string, len(score.Flags))
			for i, f := range score.Flags {
				flags[i] = string(kind) + ":" + f
			}
			update[workflow.SlotFlags] = flags
		}
		return update, nil
	}
}

// reasoningHandler is the final aggregation pass: weighted score, veto-flag
// check, confidence from captured failures.
func (ev *Evaluator) reasoningHandler() workflow.Handler {
	return func(ctx context.Context, snap workflow.Snapshot) (workflow.Update, error) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		core, _ := scoreAt(snap, SlotCoreScore)
		historical, _ := scoreAt(snap, SlotHistoricalScore)
		financial, _ := scoreAt(snap, SlotFinancialScore)
		social, _ := scoreAt(snap, SlotSocialScore)

		final := int(ev.cfg.CoreWeight*float64(core.Score) +
			ev.cfg.HistoricalWeight*float64(historical.Score) +
			ev.cfg.FinancialWeight*float64(financial.Score) +
			ev.cfg.SocialWeight*float64(social.Score))

		veto := ""
		for _, flag := range snap.Flags() {
			for _, v := range ev.cfg.VetoFlags {
				if strings.HasSuffix(flag, ":"+v) || flag == v {
					veto = flag
					break
				}
			}
			if veto != "" {
				break
			}
		}

		failed := 0
		for _, se := range snap.StepErrors() {
			if _, isAnalysis := analysisSlots[se.Step]; isAnalysis {
				failed++
			}
		}
		confidence := 1 - float64(failed)/float64(len(analysisSlots))

		decision := Decision{
			FinalScore: final,
			Confidence: confidence,
		}
		switch {
		case veto != "":
			decision.Approve = false
			decision.Reasoning = fmt.Sprintf("rejected: veto flag %s raised (weighted score %d)", veto, final)
		case final >= ev.cfg.ApproveThreshold:
			decision.Approve = true
			decision.Reasoning = fmt.Sprintf("approved: weighted score %d meets threshold %d", final, ev.cfg.ApproveThreshold)
		default:
			decision.Approve = false
			decision.Reasoning = fmt.Sprintf("rejected: weighted score %d below threshold %d", final, ev.cfg.ApproveThreshold)
		}

		summaries := strings.Join([]string{core.Summary, historical.Summary, financial.Summary, social.Summary}, " ")
		usage := TokenUsage{PromptTokens: ev.tokens.Count(summaries)}
		usage.TotalTokens = usage.PromptTokens

		return workflow.Update{
			SlotFinalDecision: decision,
			SlotTokenUsage:    map[string]any{StepReasoning: usage},
		}, nil
	}
}

// Evaluate runs the full evaluation for one proposal. It returns the final
// decision alongside the raw run result; only configuration errors fail the
// call.
func (ev *Evaluator) Evaluate(ctx context.Context, p Proposal) (Decision, *workflow.Result, error) {
	result, err := ev.exec.Run(ctx, proposalInputs(p))
	if err != nil {
		return Decision{}, nil, err
	}

	v, _ := result.State.Get(SlotFinalDecision)
	decision, ok := v.(Decision)
	if !ok {
		// The halt guard ended the run before the reasoning pass; fall back
		// to the documented fail-open default.
		decision = defaultDecision()
	}

	ev.logger.Info("proposal evaluated",
		zap.String("proposal_id", p.ID),
		zap.String("dao_id", p.DAOID),
		zap.Bool("approve", decision.Approve),
		zap.Int("final_score", decision.FinalScore),
		zap.Bool("halted", result.Halted),
	)
	return decision, result, nil
}

// EvaluateBatch evaluates proposals concurrently with at most limit runs in
// flight. Results are returned in input order.
func (ev *Evaluator) EvaluateBatch(ctx context.Context, proposals []Proposal, limit int) ([]Decision, error) {
	if limit <= 0 {
		limit = 4
	}
	decisions := make([]Decision, len(proposals))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(limit)
	for i, p := range proposals {
		g.Go(func() error {
			d, _, err := ev.Evaluate(gctx, p)
			if err != nil {
				return fmt.Errorf("proposal %s: %w", p.ID, err)
			}
			decisions[i] = d
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return decisions, nil
}
