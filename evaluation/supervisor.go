package evaluation

import (
	"github.com/aibtcdev/aibtcdev-backend-sub002/workflow"
)

// Supervisor is the routing ladder for proposal evaluation: a priority list
// of presence checks over the analysis slots. It is a pure function of the
// snapshot; its only side effect, bumping the supervisor invocation counter,
// goes through the Sum reducer via Decision updates.
type Supervisor struct{}

// NewSupervisor creates the evaluation router.
func NewSupervisor() *Supervisor {
	return &Supervisor{}
}

// Route implements workflow.Router.
//
// Ladder: halt requested → terminal; core score absent → core evaluation;
// any secondary score absent → parallel fan-out of the missing analyses
// (they are independent and write disjoint SetOnce slots); final decision
// absent → reasoning aggregator; otherwise terminal.
func (s *Supervisor) Route(snap workflow.Snapshot) workflow.Decision {
	bump := workflow.Update{SlotSupervisorRounds: 1}

	if snap.GetBool(SlotHalt) {
		return workflow.Terminal()
	}

	if !snap.Has(SlotCoreScore) {
		return workflow.RunStep(StepCore).WithUpdates(bump)
	}

	missing := make([]string, 0, 3)
	for _, step := range []string{StepHistorical, StepFinancial, StepSocial} {
		if !snap.Has(analysisSlots[step]) {
			missing = append(missing, step)
		}
	}
	if len(missing) > 0 {
		if len(missing) == 1 {
			return workflow.RunStep(missing[0]).WithUpdates(bump)
		}
		return workflow.RunParallel(missing...).WithUpdates(bump)
	}

	if !snap.Has(SlotFinalDecision) {
		return workflow.RunStep(StepReasoning).WithUpdates(bump)
	}

	return workflow.Terminal()
}
