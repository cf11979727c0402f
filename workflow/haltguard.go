package workflow

import "fmt"

// haltGuard bounds total work for one run. It never raises: on a cap breach
// it either self-heals by injecting a slot default through the standard
// reducers, or forces termination, always recording a flag.
type haltGuard struct {
	limits      Limits
	routerCalls int
	stepCalls   map[string]int
}

func newHaltGuard(limits Limits) *haltGuard {
	return &haltGuard{
		limits:    limits,
		stepCalls: make(map[string]int),
	}
}

func (g *haltGuard) noteRouterCall() {
	g.routerCalls++
}

func (g *haltGuard) noteStepCall(name string) {
	g.stepCalls[name]++
}

// routerExhausted reports whether the router invocation budget is spent.
// This is the guard against runaway oscillation, e.g. a router repeatedly
// requesting the same unmet step.
func (g *haltGuard) routerExhausted() bool {
	return g.routerCalls >= g.limits.MaxRouterCalls
}

// stepExhausted reports whether an individual step's invocation budget is
// spent.
func (g *haltGuard) stepExhausted(name string) bool {
	return g.stepCalls[name] >= g.limits.MaxStepCalls
}

// healAction is the guard's verdict for a step over its invocation budget.
type healAction int

const (
	// healDefault force-sets the slot default and lets the run continue.
	healDefault healAction = iota
	// healHalt forces termination with the best available state.
	healHalt
)

// assess decides between self-healing and forced termination for a step that
// exceeded its budget. A FailOpen slot with a declared default can be healed;
// anything else has no clear recovery path.
func (g *haltGuard) assess(step *StepDef, registry *ReducerRegistry) (healAction, SlotSpec) {
	spec, ok := registry.Slot(step.primarySlot)
	if !ok {
		return healHalt, SlotSpec{}
	}
	if spec.Recovery == FailOpen && spec.Default != nil {
		return healDefault, spec
	}
	return healHalt, spec
}

// healUpdate builds the reducer-disciplined update for a self-heal: the slot
// default plus a flag explaining the forced value.
func (g *haltGuard) healUpdate(step *StepDef, spec SlotSpec) Update {
	return Update{
		step.primarySlot: spec.Default,
		SlotFlags: []string{fmt.Sprintf(
			"halt guard: forced default into slot %s after %d invocations of step %s",
			step.primarySlot, g.stepCalls[step.name], step.name)},
	}
}

// haltFlag builds the flag recorded when the guard forces termination.
func (g *haltGuard) haltFlag(reason string) Update {
	return Update{SlotFlags: []string{"halt guard: " + reason}}
}

// counts returns a copy of the per-step invocation counters.
func (g *haltGuard) counts() map[string]int {
	out := make(map[string]int, len(g.stepCalls))
	for k, v := range g.stepCalls {
		out[k] = v
	}
	return out
}
