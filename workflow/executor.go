package workflow

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "github.com/aibtcdev/aibtcdev-backend-sub002/workflow"

// Observer receives execution telemetry from the executor. Implementations
// must be safe for concurrent use; see internal/metrics for the Prometheus
// implementation.
type Observer interface {
	RunStarted(workflow string)
	RunFinished(workflow, status string, d time.Duration)
	RouterDecision(workflow, kind string)
	StepFinished(workflow, step, status string, d time.Duration)
	SelfHealed(workflow, step string)
}

// noopObserver is used when no Observer is configured.
type noopObserver struct{}

func (noopObserver) RunStarted(string)                                {}
func (noopObserver) RunFinished(string, string, time.Duration)        {}
func (noopObserver) RouterDecision(string, string)                    {}
func (noopObserver) StepFinished(string, string, string, time.Duration) {}
func (noopObserver) SelfHealed(string, string)                        {}

// Result is the outcome of one run. Run either returns a Result whose state
// holds a decision (even if some steps failed and were defaulted) or a
// ConfigError for a misconfiguration; there is no silently-hung outcome.
type Result struct {
	RunID       string
	State       Snapshot
	Halted      bool
	HaltReason  string
	RouterCalls int
	StepCalls   map[string]int
	SlotWrites  map[string]int
	History     *RunHistory
	Duration    time.Duration
}

// Executor drives the scheduling loop: route, dispatch the chosen step(s),
// join, merge results through the reducers, re-route, until the router
// returns terminal or the halt guard trips. The executor is single-threaded
// with respect to state mutation: reducers are applied only after the join
// point, never while steps are still running.
type Executor struct {
	def    *Definition
	logger *zap.Logger
	obs    Observer
	tracer trace.Tracer
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithObserver attaches an execution telemetry sink.
func WithObserver(obs Observer) ExecutorOption {
	return func(e *Executor) {
		if obs != nil {
			e.obs = obs
		}
	}
}

// NewExecutor creates an executor for a built definition. The executor is
// stateless across runs and safe for concurrent Run calls.
func NewExecutor(def *Definition, logger *zap.Logger, opts ...ExecutorOption) *Executor {
	e := &Executor{
		def:    def,
		logger: logger.With(zap.String("component", "executor"), zap.String("workflow", def.name)),
		obs:    noopObserver{},
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// stepOutcome carries one step's proposed update back to the merge phase.
type stepOutcome struct {
	step     *StepDef
	update   Update
	err      error
	duration time.Duration
}

// Run executes the workflow against the given immutable inputs and returns
// the final state. Step failures and halt conditions never escape as errors;
// only configuration mistakes do.
func (e *Executor) Run(ctx context.Context, inputs map[string]any) (*Result, error) {
	state, err := newState(e.def.registry, inputs)
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	logger := e.logger.With(zap.String("run_id", runID))
	limits := e.def.limits

	if limits.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, limits.RunTimeout)
		defer cancel()
	}

	ctx, span := e.tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(
			attribute.String("workflow.name", e.def.name),
			attribute.String("workflow.run_id", runID),
		))
	defer span.End()

	guard := newHaltGuard(limits)
	hist := newRunHistory(runID, e.def.name)
	start := time.Now()
	e.obs.RunStarted(e.def.name)

	logger.Info("starting run", zap.Int("max_router_calls", limits.MaxRouterCalls))

	halted := false
	haltReason := ""

	for {
		// Routing. The router only ever sees fully merged state: the loop
		// re-enters routing strictly after the previous dispatch joined, so a
		// parallel set can never be re-dispatched while still in flight.
		if guard.routerExhausted() {
			haltReason = fmt.Sprintf("router invocation cap reached (%d)", limits.MaxRouterCalls)
			halted = true
			e.forceHalt(ctx, state, guard, haltReason, logger)
			break
		}
		if ctx.Err() != nil {
			haltReason = "run deadline exceeded"
			halted = true
			e.forceHalt(ctx, state, guard, haltReason, logger)
			break
		}
		guard.noteRouterCall()

		snap := state.snapshot()
		decision := e.def.router.Route(snap)
		e.obs.RouterDecision(e.def.name, decisionKind(decision))
		emitEvent(ctx, Event{Type: EventRouterDecision, Steps: decision.steps})

		if len(decision.updates) > 0 {
			if err := state.apply(decision.updates); err != nil {
				return nil, err
			}
		}

		if decision.IsTerminal() {
			logger.Info("router returned terminal", zap.Int("router_calls", guard.routerCalls))
			emitEvent(ctx, Event{Type: EventTerminal})
			break
		}

		steps, err := e.resolveSteps(decision)
		if err != nil {
			return nil, err
		}

		// Halt guard: per-step invocation budgets, checked before dispatch.
		runnable := make([]*StepDef, 0, len(steps))
		for _, step := range steps {
			if !guard.stepExhausted(step.name) {
				runnable = append(runnable, step)
				continue
			}
			action, spec := guard.assess(step, e.def.registry)
			if action == healDefault {
				logger.Warn("self-healing stuck step",
					zap.String("step", step.name),
					zap.String("slot", step.primarySlot),
				)
				if err := state.apply(guard.healUpdate(step, spec)); err != nil {
					return nil, err
				}
				e.obs.SelfHealed(e.def.name, step.name)
				emitEvent(ctx, Event{Type: EventSelfHeal, Step: step.name, Slot: step.primarySlot})
				continue
			}
			haltReason = fmt.Sprintf("step %s exceeded invocation cap (%d) with no recovery path",
				step.name, limits.MaxStepCalls)
			halted = true
			e.forceHalt(ctx, state, guard, haltReason, logger)
			break
		}
		if halted {
			break
		}
		if len(runnable) == 0 {
			// Everything in the decision was healed; re-route on the new state.
			continue
		}
		for _, step := range runnable {
			guard.noteStepCall(step.name)
		}

		// Dispatching: all members of a parallel set observe the identical
		// pre-dispatch snapshot and their results are merged as a batch only
		// once every member has returned.
		outcomes := e.dispatch(ctx, runnable, snap, hist, logger)

		// Merging, in completion order. SetOnce drops all but the first write
		// of the run, so concurrent writers to one slot are not an error.
		for _, out := range outcomes {
			if err := state.apply(out.update); err != nil {
				return nil, err
			}
		}
	}

	status := RunStatusCompleted
	if halted {
		status = RunStatusHalted
	}
	hist.finish(status)
	duration := time.Since(start)
	e.obs.RunFinished(e.def.name, string(status), duration)
	logger.Info("run finished",
		zap.String("status", string(status)),
		zap.Int("router_calls", guard.routerCalls),
		zap.Int("steps_executed", hist.StepCount()),
		zap.Duration("duration", duration),
	)

	return &Result{
		RunID:       runID,
		State:       state.snapshot(),
		Halted:      halted,
		HaltReason:  haltReason,
		RouterCalls: guard.routerCalls,
		StepCalls:   guard.counts(),
		SlotWrites:  state.slotWrites(),
		History:     hist,
		Duration:    duration,
	}, nil
}

// forceHalt records the halt flag through the standard reducers. Reducer
// application on the flags slot cannot fail here, but a failure would be a
// configuration bug already surfaced elsewhere, so it is only logged.
func (e *Executor) forceHalt(ctx context.Context, state *State, guard *haltGuard, reason string, logger *zap.Logger) {
	logger.Warn("halt guard forcing termination", zap.String("reason", reason))
	if err := state.apply(guard.haltFlag(reason)); err != nil {
		logger.Error("failed to record halt flag", zap.Error(err))
	}
	emitEvent(ctx, Event{Type: EventHalt})
}

// resolveSteps validates a non-terminal decision against the registered
// steps. An empty set or an unknown step name is a configuration error.
func (e *Executor) resolveSteps(decision Decision) ([]*StepDef, error) {
	if len(decision.steps) == 0 {
		return nil, newConfigError(ErrEmptyDecision, "router returned a non-terminal decision with no steps")
	}
	steps := make([]*StepDef, 0, len(decision.steps))
	for _, name := range decision.steps {
		step, ok := e.def.steps[name]
		if !ok {
			return nil, newConfigError(ErrStepUnknown, "router selected unknown step %s", name)
		}
		steps = append(steps, step)
	}
	return steps, nil
}

// dispatch runs the chosen step(s) and collects their outcomes in completion
// order. Partial completion of a parallel group is invisible to the caller.
func (e *Executor) dispatch(ctx context.Context, steps []*StepDef, snap Snapshot, hist *RunHistory, logger *zap.Logger) []stepOutcome {
	if len(steps) == 1 {
		return []stepOutcome{e.runStep(ctx, steps[0], snap, hist, logger)}
	}

	resultCh := make(chan stepOutcome, len(steps))
	var wg sync.WaitGroup

	for _, step := range steps {
		wg.Add(1)
		go func(s *StepDef) {
			defer wg.Done()
			resultCh <- e.runStep(ctx, s, snap, hist, logger)
		}(step)
	}

	go func() {
		wg.Wait()
		close(resultCh)
	}()

	outcomes := make([]stepOutcome, 0, len(steps))
	for out := range resultCh {
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// runStep executes one step under its timeout with the fail-open contract: a
// failure (error, panic, or timeout) is captured into the errors slot and the
// step's primary slot gets its registered default, so one crashed analysis
// degrades the decision but never stalls the pipeline.
func (e *Executor) runStep(ctx context.Context, step *StepDef, snap Snapshot, hist *RunHistory, logger *zap.Logger) stepOutcome {
	timeout := step.timeout
	if timeout <= 0 {
		timeout = e.def.limits.StepTimeout
	}
	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	stepCtx, span := e.tracer.Start(stepCtx, "workflow.step",
		trace.WithAttributes(attribute.String("workflow.step", step.name)))
	defer span.End()

	rec := hist.recordStart(step.name)
	emitEvent(ctx, Event{Type: EventStepStart, Step: step.name})
	start := time.Now()

	update, err := callHandler(stepCtx, step, snap)
	elapsed := time.Since(start)

	if err != nil {
		logger.Warn("step failed, continuing with default",
			zap.String("step", step.name),
			zap.Duration("duration", elapsed),
			zap.Error(err),
		)
		span.RecordError(err)
		update = Update{
			SlotErrors: []StepError{{Step: step.name, Message: err.Error(), Kind: step.kind}},
		}
		if spec, ok := e.def.registry.Slot(step.primarySlot); ok && spec.Default != nil {
			update[step.primarySlot] = spec.Default
		}
		hist.recordEnd(rec, RunStatusFailed, err)
		e.obs.StepFinished(e.def.name, step.name, string(RunStatusFailed), elapsed)
		emitEvent(ctx, Event{Type: EventStepError, Step: step.name, Error: err})
	} else {
		logger.Debug("step completed",
			zap.String("step", step.name),
			zap.Duration("duration", elapsed),
		)
		hist.recordEnd(rec, RunStatusCompleted, nil)
		e.obs.StepFinished(e.def.name, step.name, string(RunStatusCompleted), elapsed)
		emitEvent(ctx, Event{Type: EventStepComplete, Step: step.name})
	}

	return stepOutcome{step: step, update: update, err: err, duration: elapsed}
}

// callHandler invokes the handler on its own goroutine so a step that
// ignores ctx still cannot hold the scheduler past its timeout. Panics are
// converted to errors at this boundary.
func callHandler(ctx context.Context, step *StepDef, snap Snapshot) (Update, error) {
	type handlerResult struct {
		update Update
		err    error
	}
	ch := make(chan handlerResult, 1)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- handlerResult{err: fmt.Errorf("step %s panicked: %v", step.name, r)}
			}
		}()
		update, err := step.handler(ctx, snap)
		ch <- handlerResult{update: update, err: err}
	}()

	select {
	case res := <-ch:
		return res.update, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("step %s: %w", step.name, ctx.Err())
	}
}

func decisionKind(d Decision) string {
	switch {
	case d.terminal:
		return "terminal"
	case len(d.steps) > 1:
		return "parallel"
	default:
		return "step"
	}
}

func emitEvent(ctx context.Context, ev Event) {
	if emit, ok := eventEmitterFromContext(ctx); ok {
		emit(ev)
	}
}
