package evaluation

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/time/rate"
)

// AnalysisKind identifies one scoring analysis.
type AnalysisKind string

const (
	AnalysisCore       AnalysisKind = "core"
	AnalysisHistorical AnalysisKind = "historical"
	AnalysisFinancial  AnalysisKind = "financial"
	AnalysisSocial     AnalysisKind = "social"
)

// Analyzer produces one analysis score for a proposal. Implementations wrap
// whatever produces the scores (model calls, heuristics, external services);
// that content is outside the orchestration engine's scope. Implementations
// must be safe for concurrent use: independent analyses run in parallel.
type Analyzer interface {
	Analyze(ctx context.Context, kind AnalysisKind, p Proposal) (Score, error)
}

// AnalyzerFunc adapts a plain function to the Analyzer interface.
type AnalyzerFunc func(ctx context.Context, kind AnalysisKind, p Proposal) (Score, error)

// Analyze implements Analyzer.
func (f AnalyzerFunc) Analyze(ctx context.Context, kind AnalysisKind, p Proposal) (Score, error) {
	return f(ctx, kind, p)
}

// HeuristicAnalyzer is a deterministic, dependency-free Analyzer used as the
// default and in tests. It scores proposals from text features only.
type HeuristicAnalyzer struct {
	// HighOutflowThreshold marks requested amounts above it as high risk.
	HighOutflowThreshold float64
	// DuplicateSimilarity is the word-overlap ratio above which a past
	// proposal counts as a duplicate.
	DuplicateSimilarity float64
}

// NewHeuristicAnalyzer returns a HeuristicAnalyzer with default thresholds.
func NewHeuristicAnalyzer() *HeuristicAnalyzer {
	return &HeuristicAnalyzer{
		HighOutflowThreshold: 10000,
		DuplicateSimilarity:  0.8,
	}
}

// Analyze implements Analyzer.
func (a *HeuristicAnalyzer) Analyze(ctx context.Context, kind AnalysisKind, p Proposal) (Score, error) {
	if err := ctx.Err(); err != nil {
		return Score{}, err
	}
	switch kind {
	case AnalysisCore:
		return a.scoreCore(p), nil
	case AnalysisHistorical:
		return a.scoreHistorical(p), nil
	case AnalysisFinancial:
		return a.scoreFinancial(p), nil
	case AnalysisSocial:
		return a.scoreSocial(p), nil
	default:
		return Score{}, fmt.Errorf("unknown analysis kind %q", kind)
	}
}

// scoreCore measures mission alignment as the share of mission vocabulary
// that appears in the proposal body.
func (a *HeuristicAnalyzer) scoreCore(p Proposal) Score {
	mission := wordSet(p.Mission)
	if len(mission) == 0 {
		return Score{Score: 50, Flags: []string{"no_mission"}, Summary: "no mission statement to align against"}
	}
	body := wordSet(p.Title + " " + p.Content)
	hits := 0
	for w := range mission {
		if _, ok := body[w]; ok {
			hits++
		}
	}
	score := hits * 100 / len(mission)
	s := Score{Score: score, Summary: fmt.Sprintf("%d/%d mission terms present", hits, len(mission))}
	if score < 25 {
		s.Flags = append(s.Flags, "low_mission_alignment")
	}
	return s
}

// scoreHistorical checks the proposal against past proposals for near
// duplicates; a close match scores low.
func (a *HeuristicAnalyzer) scoreHistorical(p Proposal) Score {
	body := wordSet(p.Content)
	best := 0.0
	for _, past := range p.PastProposals {
		if sim := jaccard(body, wordSet(past)); sim > best {
			best = sim
		}
	}
	s := Score{
		Score:   int((1 - best) * 100),
		Summary: fmt.Sprintf("max similarity to past proposals %.2f", best),
	}
	if best >= a.DuplicateSimilarity {
		s.Flags = append(s.Flags, "possible_duplicate")
	}
	return s
}

// scoreFinancial rates treasury risk from the requested amount.
func (a *HeuristicAnalyzer) scoreFinancial(p Proposal) Score {
	if p.Amount <= 0 {
		return Score{Score: 90, Summary: "no treasury outflow requested"}
	}
	ratio := p.Amount / a.HighOutflowThreshold
	if ratio >= 1 {
		return Score{
			Score:   10,
			Flags:   []string{"high_outflow"},
			Summary: fmt.Sprintf("requested amount %.0f exceeds outflow threshold", p.Amount),
		}
	}
	return Score{
		Score:   90 - int(ratio*80),
		Summary: fmt.Sprintf("requested amount %.0f within outflow threshold", p.Amount),
	}
}

var positiveTerms = []string{
	"community", "grow", "benefit", "open", "public", "together", "members",
	"education", "support", "transparent",
}

var negativeTerms = []string{
	"exclusive", "private", "insider", "urgent", "guaranteed", "risk-free",
}

// scoreSocial estimates community impact from positive and negative term
// counts.
func (a *HeuristicAnalyzer) scoreSocial(p Proposal) Score {
	body := strings.ToLower(p.Title + " " + p.Content)
	pos, neg := 0, 0
	for _, t := range positiveTerms {
		pos += strings.Count(body, t)
	}
	for _, t := range negativeTerms {
		neg += strings.Count(body, t)
	}
	score := 50 + pos*10 - neg*15
	if score > 100 {
		score = 100
	}
	if score < 0 {
		score = 0
	}
	s := Score{Score: score, Summary: fmt.Sprintf("%d positive, %d negative signals", pos, neg)}
	if neg > pos {
		s.Flags = append(s.Flags, "negative_social_signals")
	}
	return s
}

func wordSet(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, w := range strings.Fields(strings.ToLower(text)) {
		w = strings.Trim(w, ".,;:!?()[]\"'")
		if len(w) < 4 {
			continue
		}
		out[w] = struct{}{}
	}
	return out
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	inter := 0
	for w := range a {
		if _, ok := b[w]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	return float64(inter) / float64(union)
}

// RateLimitedAnalyzer throttles an Analyzer, typically one backed by a model
// API. The limiter is shared across concurrent analyses.
type RateLimitedAnalyzer struct {
	inner   Analyzer
	limiter *rate.Limiter
}

// NewRateLimitedAnalyzer wraps inner with a token-bucket limiter.
func NewRateLimitedAnalyzer(inner Analyzer, rps float64, burst int) *RateLimitedAnalyzer {
	return &RateLimitedAnalyzer{
		inner:   inner,
		limiter: rate.NewLimiter(rate.Limit(rps), burst),
	}
}

// Analyze waits for limiter capacity, then delegates.
func (a *RateLimitedAnalyzer) Analyze(ctx context.Context, kind AnalysisKind, p Proposal) (Score, error) {
	if err := a.limiter.Wait(ctx); err != nil {
		return Score{}, fmt.Errorf("rate limit wait: %w", err)
	}
	return a.inner.Analyze(ctx, kind, p)
}
