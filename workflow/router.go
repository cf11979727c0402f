package workflow

// Decision is the router's verdict for the next scheduling round: terminal,
// one step, or a set of steps to dispatch concurrently.
type Decision struct {
	steps    []string
	terminal bool
	updates  Update
}

// Terminal signals that the run is complete.
func Terminal() Decision {
	return Decision{terminal: true}
}

// RunStep selects a single step to dispatch next.
func RunStep(name string) Decision {
	return Decision{steps: []string{name}}
}

// RunParallel selects a set of steps to dispatch concurrently. The members
// must not conflict on a SetOnce slot; if they do, only the first write by
// completion order is kept.
func RunParallel(names ...string) Decision {
	return Decision{steps: names}
}

// WithUpdates attaches state updates applied through the reducers before the
// decision is acted on. This is how a router bumps its own invocation counter
// (via a Sum slot) without a hidden mutation.
func (d Decision) WithUpdates(u Update) Decision {
	d.updates = u
	return d
}

// IsTerminal reports whether the decision ends the run.
func (d Decision) IsTerminal() bool { return d.terminal }

// Steps returns the selected step names.
func (d Decision) Steps() []string { return d.steps }

// IsParallel reports whether the decision fans out more than one step.
func (d Decision) IsParallel() bool { return len(d.steps) > 1 }

// Router selects the next step(s) from the current state. Implementations
// must be pure functions of the snapshot; any bookkeeping they need goes
// through Decision.WithUpdates.
type Router interface {
	Route(snap Snapshot) Decision
}

// RouterFunc adapts a plain function to the Router interface.
type RouterFunc func(snap Snapshot) Decision

// Route implements Router.
func (f RouterFunc) Route(snap Snapshot) Decision {
	return f(snap)
}
