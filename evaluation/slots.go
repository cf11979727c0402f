package evaluation

import (
	"github.com/aibtcdev/aibtcdev-backend-sub002/workflow"
)

// Immutable input slots (PassThrough).
const (
	SlotProposalID      = "proposal_id"
	SlotProposalTitle   = "proposal_title"
	SlotProposalContent = "proposal_content"
	SlotProposalAmount  = "proposal_amount"
	SlotDAOID           = "dao_id"
	SlotDAOMission      = "dao_mission"
	SlotPastProposals   = "past_proposals"
)

// Analysis output slots (SetOnce; each analysis runs exactly once per run).
const (
	SlotCoreScore       = "core_score"
	SlotHistoricalScore = "historical_score"
	SlotFinancialScore  = "financial_score"
	SlotSocialScore     = "social_score"
	SlotFinalDecision   = "final_decision"
)

// Bookkeeping slots.
const (
	// SlotTokenUsage accumulates per-step token accounting (MergeShallow,
	// keyed by step name).
	SlotTokenUsage = "token_usage"
	// SlotHalt is the one-way halt-requested flag (LogicalOr).
	SlotHalt = "halt"
	// SlotSupervisorRounds counts supervisor invocations (Sum), bumped by the
	// supervisor itself through Decision updates.
	SlotSupervisorRounds = "supervisor_invocations"
)

// Step names.
const (
	StepCore       = "core_evaluation"
	StepHistorical = "historical_evaluation"
	StepFinancial  = "financial_evaluation"
	StepSocial     = "social_evaluation"
	StepReasoning  = "reasoning"
)

// analysisSlots maps each scoring step to its primary output slot.
var analysisSlots = map[string]string{
	StepCore:       SlotCoreScore,
	StepHistorical: SlotHistoricalScore,
	StepFinancial:  SlotFinancialScore,
	StepSocial:     SlotSocialScore,
}

// defaultScore is the safe value injected when an analysis fails or is
// force-defaulted by the halt guard: neutral-low, flagged as unavailable.
func defaultScore() Score {
	return Score{
		Score:   0,
		Flags:   []string{"analysis_unavailable"},
		Summary: "analysis unavailable, defaulted",
	}
}

// defaultDecision is the fail-open verdict when the reasoning pass itself
// never produces one: reject, with zero confidence.
func defaultDecision() Decision {
	return Decision{
		Approve:    false,
		FinalScore: 0,
		Confidence: 0,
		Reasoning:  "evaluation incomplete, defaulting to reject",
	}
}

// registerSlots declares the evaluation state shape on the builder.
func registerSlots(b *workflow.Builder) {
	b.RegisterSlot(SlotProposalID, workflow.PassThrough).
		RegisterSlot(SlotProposalTitle, workflow.PassThrough).
		RegisterSlot(SlotProposalContent, workflow.PassThrough).
		RegisterSlot(SlotProposalAmount, workflow.PassThrough).
		RegisterSlot(SlotDAOID, workflow.PassThrough).
		RegisterSlot(SlotDAOMission, workflow.PassThrough).
		RegisterSlot(SlotPastProposals, workflow.PassThrough).
		RegisterSlot(SlotCoreScore, workflow.SetOnce, workflow.WithDefault(defaultScore())).
		RegisterSlot(SlotHistoricalScore, workflow.SetOnce, workflow.WithDefault(defaultScore())).
		RegisterSlot(SlotFinancialScore, workflow.SetOnce, workflow.WithDefault(defaultScore())).
		RegisterSlot(SlotSocialScore, workflow.SetOnce, workflow.WithDefault(defaultScore())).
		RegisterSlot(SlotFinalDecision, workflow.SetOnce, workflow.WithDefault(defaultDecision())).
		RegisterSlot(SlotTokenUsage, workflow.MergeShallow).
		RegisterSlot(SlotHalt, workflow.LogicalOr).
		RegisterSlot(SlotSupervisorRounds, workflow.Sum)
}

// proposalInputs maps a proposal onto the immutable input slots.
func proposalInputs(p Proposal) map[string]any {
	return map[string]any{
		SlotProposalID:      p.ID,
		SlotProposalTitle:   p.Title,
		SlotProposalContent: p.Content,
		SlotProposalAmount:  p.Amount,
		SlotDAOID:           p.DAOID,
		SlotDAOMission:      p.Mission,
		SlotPastProposals:   p.PastProposals,
	}
}

// proposalFromSnapshot reconstructs the proposal from the input slots.
func proposalFromSnapshot(snap workflow.Snapshot) Proposal {
	return Proposal{
		ID:            snap.GetString(SlotProposalID),
		Title:         snap.GetString(SlotProposalTitle),
		Content:       snap.GetString(SlotProposalContent),
		Amount:        snap.GetFloat(SlotProposalAmount),
		DAOID:         snap.GetString(SlotDAOID),
		Mission:       snap.GetString(SlotDAOMission),
		PastProposals: snap.GetStrings(SlotPastProposals),
	}
}

// scoreAt returns the Score stored in a slot, if populated.
func scoreAt(snap workflow.Snapshot, slot string) (Score, bool) {
	v, ok := snap.Get(slot)
	if !ok {
		return Score{}, false
	}
	s, ok := v.(Score)
	return s, ok
}
