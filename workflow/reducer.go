package workflow

// SlotPolicy defines how updates to a slot are folded into existing state.
type SlotPolicy int

const (
	// SetOnce keeps the first non-nil write; later writes are silently dropped.
	SetOnce SlotPolicy = iota
	// AppendUnique unions new list entries into the existing list, de-duplicated.
	AppendUnique
	// MergeShallow merges new map keys over the existing map.
	MergeShallow
	// PassThrough marks the slot as immutable input; writes are ignored.
	PassThrough
	// LogicalOr ORs a boolean update into the slot.
	LogicalOr
	// Sum adds integer updates into the slot.
	Sum
)

func (p SlotPolicy) String() string {
	switch p {
	case SetOnce:
		return "set_once"
	case AppendUnique:
		return "append_unique"
	case MergeShallow:
		return "merge_shallow"
	case PassThrough:
		return "pass_through"
	case LogicalOr:
		return "logical_or"
	case Sum:
		return "sum"
	default:
		return "unknown"
	}
}

// SlotRecovery selects halt-guard behavior when a slot blocks progress.
type SlotRecovery int

const (
	// FailOpen lets the halt guard force the slot's default value and continue.
	FailOpen SlotRecovery = iota
	// FailClosed makes the halt guard stop the run instead of defaulting the slot.
	FailClosed
)

// SlotSpec describes a registered state slot.
type SlotSpec struct {
	Name     string
	Policy   SlotPolicy
	Default  any
	Recovery SlotRecovery
}

// SlotOption configures a slot at registration time.
type SlotOption func(*SlotSpec)

// WithDefault sets the value written into the slot when its producing step
// fails or when the halt guard self-heals a stuck run.
func WithDefault(v any) SlotOption {
	return func(s *SlotSpec) {
		s.Default = v
	}
}

// WithFailClosed makes the halt guard force termination rather than inject a
// default when this slot never gets populated.
func WithFailClosed() SlotOption {
	return func(s *SlotSpec) {
		s.Recovery = FailClosed
	}
}

// ReducerRegistry maps slot names to merge policies. Registration happens once
// at workflow-definition time; applying an update to an unregistered slot is a
// configuration error.
type ReducerRegistry struct {
	slots map[string]SlotSpec
}

// NewReducerRegistry creates an empty registry.
func NewReducerRegistry() *ReducerRegistry {
	return &ReducerRegistry{slots: make(map[string]SlotSpec)}
}

// RegisterSlot registers a slot under the given merge policy.
func (r *ReducerRegistry) RegisterSlot(name string, policy SlotPolicy, opts ...SlotOption) error {
	if name == "" {
		return newConfigError(ErrInvalidDefinition, "slot name must not be empty")
	}
	if policy < SetOnce || policy > Sum {
		return newConfigError(ErrInvalidDefinition, "slot %s: unknown policy %d", name, policy)
	}
	if _, exists := r.slots[name]; exists {
		return newConfigError(ErrSlotDuplicate, "slot %s registered twice", name)
	}
	spec := SlotSpec{Name: name, Policy: policy}
	for _, opt := range opts {
		opt(&spec)
	}
	r.slots[name] = spec
	return nil
}

// Slot returns the spec for a registered slot.
func (r *ReducerRegistry) Slot(name string) (SlotSpec, bool) {
	spec, ok := r.slots[name]
	return spec, ok
}

// Names returns the registered slot names.
func (r *ReducerRegistry) Names() []string {
	names := make([]string, 0, len(r.slots))
	for name := range r.slots {
		names = append(names, name)
	}
	return names
}

// apply folds update into current under the slot's policy. The third return
// reports whether the slot value actually changed.
func (r *ReducerRegistry) apply(slot string, current any, present bool, update any) (any, bool, error) {
	spec, ok := r.slots[slot]
	if !ok {
		return nil, false, newConfigError(ErrSlotUnregistered, "no reducer registered for slot %s", slot)
	}

	switch spec.Policy {
	case PassThrough:
		// Immutable input; the write is rejected, not an error.
		return current, false, nil

	case SetOnce:
		if present || update == nil {
			return current, false, nil
		}
		return update, true, nil

	case AppendUnique:
		return appendUnique(slot, current, update)

	case MergeShallow:
		return mergeShallow(slot, current, update)

	case LogicalOr:
		cur, _ := current.(bool)
		up, ok := update.(bool)
		if !ok {
			return nil, false, typeMismatch(slot, "bool", update)
		}
		return cur || up, !present || (up && !cur), nil

	case Sum:
		cur, _ := current.(int)
		up, ok := update.(int)
		if !ok {
			return nil, false, typeMismatch(slot, "int", update)
		}
		return cur + up, true, nil

	default:
		return nil, false, newConfigError(ErrInvalidDefinition, "slot %s: unknown policy %s", slot, spec.Policy)
	}
}

// appendUnique unions list updates into the existing list. The value shapes
// are a closed set: []string for flags/messages, []StepError for captured
// step failures. Anything else is a configuration error.
func appendUnique(slot string, current, update any) (any, bool, error) {
	switch up := update.(type) {
	case []string:
		cur, ok := current.([]string)
		if current != nil && !ok {
			return nil, false, typeMismatch(slot, "[]string", current)
		}
		merged, changed := unionStrings(cur, up)
		return merged, changed, nil

	case []StepError:
		cur, ok := current.([]StepError)
		if current != nil && !ok {
			return nil, false, typeMismatch(slot, "[]StepError", current)
		}
		merged, changed := unionStepErrors(cur, up)
		return merged, changed, nil

	default:
		return nil, false, typeMismatch(slot, "[]string or []StepError", update)
	}
}

func unionStrings(current, update []string) ([]string, bool) {
	seen := make(map[string]struct{}, len(current)+len(update))
	merged := make([]string, 0, len(current)+len(update))
	for _, v := range current {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		merged = append(merged, v)
	}
	changed := false
	for _, v := range update {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		merged = append(merged, v)
		changed = true
	}
	return merged, changed
}

func unionStepErrors(current, update []StepError) ([]StepError, bool) {
	seen := make(map[StepError]struct{}, len(current)+len(update))
	merged := make([]StepError, 0, len(current)+len(update))
	for _, v := range current {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		merged = append(merged, v)
	}
	changed := false
	for _, v := range update {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		merged = append(merged, v)
		changed = true
	}
	return merged, changed
}

func mergeShallow(slot string, current, update any) (any, bool, error) {
	up, ok := update.(map[string]any)
	if !ok {
		return nil, false, typeMismatch(slot, "map[string]any", update)
	}
	cur, ok := current.(map[string]any)
	if current != nil && !ok {
		return nil, false, typeMismatch(slot, "map[string]any", current)
	}
	merged := make(map[string]any, len(cur)+len(up))
	for k, v := range cur {
		merged[k] = v
	}
	for k, v := range up {
		merged[k] = v
	}
	return merged, len(up) > 0, nil
}

func typeMismatch(slot, want string, got any) error {
	return newConfigError(ErrTypeMismatch, "slot %s: expected %s, got %T", slot, want, got)
}
