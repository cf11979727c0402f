package workflow

// Update is the partial state update proposed by a step or router. Keys are
// slot names; values must match the shape expected by the slot's policy.
type Update map[string]any

// State is the shared state of one in-flight evaluation run. It is owned by
// the executor and mutated only through reducer application after a join
// point; steps and the router only ever see read-only snapshots.
type State struct {
	registry *ReducerRegistry
	values   map[string]any
	writes   map[string]int
}

// newState constructs run state with the immutable inputs populated and all
// other slots absent. Every input slot must be registered.
func newState(registry *ReducerRegistry, inputs map[string]any) (*State, error) {
	s := &State{
		registry: registry,
		values:   make(map[string]any, len(inputs)),
		writes:   make(map[string]int),
	}
	for name, v := range inputs {
		if _, ok := registry.Slot(name); !ok {
			return nil, newConfigError(ErrSlotUnregistered, "input slot %s is not registered", name)
		}
		s.values[name] = v
	}
	return s, nil
}

// apply folds a partial update into state through the reducer registry.
func (s *State) apply(u Update) error {
	for slot, update := range u {
		current, present := s.values[slot]
		next, wrote, err := s.registry.apply(slot, current, present, update)
		if err != nil {
			return err
		}
		if wrote {
			s.values[slot] = next
			s.writes[slot]++
		}
	}
	return nil
}

// snapshot returns an immutable view of the current state. List and map
// values are copied one level deep so concurrent steps cannot observe or
// interfere with later merges.
func (s *State) snapshot() Snapshot {
	values := make(map[string]any, len(s.values))
	for k, v := range s.values {
		values[k] = copyValue(v)
	}
	return Snapshot{values: values}
}

// slotWrites returns the per-slot write counts accumulated so far.
func (s *State) slotWrites() map[string]int {
	out := make(map[string]int, len(s.writes))
	for k, v := range s.writes {
		out[k] = v
	}
	return out
}

func copyValue(v any) any {
	switch tv := v.(type) {
	case []string:
		out := make([]string, len(tv))
		copy(out, tv)
		return out
	case []StepError:
		out := make([]StepError, len(tv))
		copy(out, tv)
		return out
	case map[string]any:
		out := make(map[string]any, len(tv))
		for k, mv := range tv {
			out[k] = mv
		}
		return out
	default:
		return v
	}
}

// Snapshot is a read-only view of run state handed to steps and the router.
type Snapshot struct {
	values map[string]any
}

// Get returns the raw slot value and whether the slot is populated.
func (sn Snapshot) Get(name string) (any, bool) {
	v, ok := sn.values[name]
	return v, ok
}

// Has reports whether the slot is populated.
func (sn Snapshot) Has(name string) bool {
	_, ok := sn.values[name]
	return ok
}

// GetString returns the slot value as a string, or "" when absent.
func (sn Snapshot) GetString(name string) string {
	v, _ := sn.values[name].(string)
	return v
}

// GetInt returns the slot value as an int, or 0 when absent.
func (sn Snapshot) GetInt(name string) int {
	v, _ := sn.values[name].(int)
	return v
}

// GetFloat returns the slot value as a float64, or 0 when absent.
func (sn Snapshot) GetFloat(name string) float64 {
	v, _ := sn.values[name].(float64)
	return v
}

// GetBool returns the slot value as a bool, or false when absent.
func (sn Snapshot) GetBool(name string) bool {
	v, _ := sn.values[name].(bool)
	return v
}

// GetStrings returns the slot value as a string slice, or nil when absent.
func (sn Snapshot) GetStrings(name string) []string {
	v, _ := sn.values[name].([]string)
	return v
}

// GetMap returns the slot value as a map, or nil when absent.
func (sn Snapshot) GetMap(name string) map[string]any {
	v, _ := sn.values[name].(map[string]any)
	return v
}

// StepErrors returns the captured step failures from the errors slot.
func (sn Snapshot) StepErrors() []StepError {
	v, _ := sn.values[SlotErrors].([]StepError)
	return v
}

// Flags returns the run diagnostics from the flags slot.
func (sn Snapshot) Flags() []string {
	v, _ := sn.values[SlotFlags].([]string)
	return v
}

// Values returns a copy of all populated slots.
func (sn Snapshot) Values() map[string]any {
	out := make(map[string]any, len(sn.values))
	for k, v := range sn.values {
		out[k] = copyValue(v)
	}
	return out
}
