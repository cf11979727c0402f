package workflow

import (
	"time"
)

// Well-known slot names registered on every definition.
const (
	// SlotErrors collects captured step failures (AppendUnique of StepError).
	SlotErrors = "errors"
	// SlotFlags collects human-readable run diagnostics (AppendUnique of string).
	SlotFlags = "flags"
)

// Limits bounds a single run. Zero fields are replaced with defaults at
// build time.
type Limits struct {
	// MaxRouterCalls caps total router invocations per run.
	MaxRouterCalls int
	// MaxStepCalls caps invocations of any individual step per run.
	MaxStepCalls int
	// StepTimeout bounds a single step execution.
	StepTimeout time.Duration
	// RunTimeout bounds the whole run.
	RunTimeout time.Duration
}

// DefaultLimits returns the default run limits.
func DefaultLimits() Limits {
	return Limits{
		MaxRouterCalls: 50,
		MaxStepCalls:   5,
		StepTimeout:    30 * time.Second,
		RunTimeout:     5 * time.Minute,
	}
}

func (l Limits) normalized() Limits {
	def := DefaultLimits()
	if l.MaxRouterCalls <= 0 {
		l.MaxRouterCalls = def.MaxRouterCalls
	}
	if l.MaxStepCalls <= 0 {
		l.MaxStepCalls = def.MaxStepCalls
	}
	if l.StepTimeout <= 0 {
		l.StepTimeout = def.StepTimeout
	}
	if l.RunTimeout <= 0 {
		l.RunTimeout = def.RunTimeout
	}
	return l
}

// Definition bundles the registered steps, the router, the reducer registry,
// and the run limits. A Definition is immutable once built and safe to share
// across concurrent runs.
type Definition struct {
	name     string
	registry *ReducerRegistry
	steps    map[string]*StepDef
	router   Router
	limits   Limits
}

// Name returns the workflow name.
func (d *Definition) Name() string { return d.name }

// Limits returns the run limits.
func (d *Definition) Limits() Limits { return d.limits }

// Step returns a registered step by name.
func (d *Definition) Step(name string) (*StepDef, bool) {
	s, ok := d.steps[name]
	return s, ok
}

// Registry returns the reducer registry.
func (d *Definition) Registry() *ReducerRegistry { return d.registry }

// Builder assembles and validates a Definition. Configuration mistakes are
// collected and reported from Build, never at run time.
type Builder struct {
	name     string
	registry *ReducerRegistry
	steps    map[string]*StepDef
	router   Router
	limits   Limits
	errs     []error
}

// NewDefinition starts building a workflow definition.
func NewDefinition(name string) *Builder {
	return &Builder{
		name:     name,
		registry: NewReducerRegistry(),
		steps:    make(map[string]*StepDef),
		limits:   DefaultLimits(),
	}
}

// RegisterSlot declares a state slot under a merge policy.
func (b *Builder) RegisterSlot(name string, policy SlotPolicy, opts ...SlotOption) *Builder {
	if err := b.registry.RegisterSlot(name, policy, opts...); err != nil {
		b.errs = append(b.errs, err)
	}
	return b
}

// RegisterStep declares a capability with its primary output slot.
func (b *Builder) RegisterStep(name, primarySlot string, h Handler, opts ...StepOption) *Builder {
	if name == "" {
		b.errs = append(b.errs, newConfigError(ErrInvalidDefinition, "step name must not be empty"))
		return b
	}
	if h == nil {
		b.errs = append(b.errs, newConfigError(ErrInvalidDefinition, "step %s has no handler", name))
		return b
	}
	if _, exists := b.steps[name]; exists {
		b.errs = append(b.errs, newConfigError(ErrStepDuplicate, "step %s registered twice", name))
		return b
	}
	step := &StepDef{name: name, primarySlot: primarySlot, handler: h, kind: "analysis"}
	for _, opt := range opts {
		opt(step)
	}
	b.steps[name] = step
	return b
}

// WithRouter sets the supervisor routing function.
func (b *Builder) WithRouter(r Router) *Builder {
	b.router = r
	return b
}

// WithLimits sets the run limits.
func (b *Builder) WithLimits(l Limits) *Builder {
	b.limits = l
	return b
}

// Build validates the definition. The errors and flags slots are registered
// automatically when absent.
func (b *Builder) Build() (*Definition, error) {
	if len(b.errs) > 0 {
		return nil, b.errs[0]
	}
	if b.name == "" {
		return nil, newConfigError(ErrInvalidDefinition, "workflow name must not be empty")
	}
	if b.router == nil {
		return nil, newConfigError(ErrInvalidDefinition, "workflow %s has no router", b.name)
	}
	if len(b.steps) == 0 {
		return nil, newConfigError(ErrInvalidDefinition, "workflow %s has no steps", b.name)
	}

	if _, ok := b.registry.Slot(SlotErrors); !ok {
		if err := b.registry.RegisterSlot(SlotErrors, AppendUnique); err != nil {
			return nil, err
		}
	}
	if _, ok := b.registry.Slot(SlotFlags); !ok {
		if err := b.registry.RegisterSlot(SlotFlags, AppendUnique); err != nil {
			return nil, err
		}
	}

	for _, step := range b.steps {
		if step.primarySlot == "" {
			return nil, newConfigError(ErrInvalidDefinition, "step %s has no primary slot", step.name)
		}
		if _, ok := b.registry.Slot(step.primarySlot); !ok {
			return nil, newConfigError(ErrSlotUnregistered,
				"step %s: primary slot %s is not registered", step.name, step.primarySlot)
		}
	}

	return &Definition{
		name:     b.name,
		registry: b.registry,
		steps:    b.steps,
		router:   b.router,
		limits:   b.limits.normalized(),
	}, nil
}
