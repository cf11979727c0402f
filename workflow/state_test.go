package workflow

import (
	"errors"
	"testing"
)

func testRegistry(t *testing.T) *ReducerRegistry {
	t.Helper()
	r := NewReducerRegistry()
	for _, reg := range []struct {
		name   string
		policy SlotPolicy
	}{
		{"proposal_id", PassThrough},
		{"score", SetOnce},
		{SlotFlags, AppendUnique},
		{SlotErrors, AppendUnique},
		{"usage", MergeShallow},
		{"rounds", Sum},
	} {
		if err := r.RegisterSlot(reg.name, reg.policy); err != nil {
			t.Fatalf("registering %s: %v", reg.name, err)
		}
	}
	return r
}

func TestNewState_UnregisteredInput(t *testing.T) {
	r := testRegistry(t)
	_, err := newState(r, map[string]any{"bogus": 1})
	var ce *ConfigError
	if !errors.As(err, &ce) || ce.Code != ErrSlotUnregistered {
		t.Errorf("expected SLOT_UNREGISTERED for unknown input slot, got %v", err)
	}
}

func TestState_ApplyCountsWrites(t *testing.T) {
	r := testRegistry(t)
	s, err := newState(r, map[string]any{"proposal_id": "p-1"})
	if err != nil {
		t.Fatalf("newState: %v", err)
	}

	updates := []Update{
		{"score": 80},
		{"score": 90}, // dropped by SetOnce
		{"rounds": 1},
		{"rounds": 1},
		{SlotFlags: []string{"a"}},
		{SlotFlags: []string{"a"}}, // all duplicates, not a write
	}
	for _, u := range updates {
		if err := s.apply(u); err != nil {
			t.Fatalf("apply(%v): %v", u, err)
		}
	}

	writes := s.slotWrites()
	if writes["score"] != 1 {
		t.Errorf("score writes: expected 1, got %d", writes["score"])
	}
	if writes["rounds"] != 2 {
		t.Errorf("rounds writes: expected 2, got %d", writes["rounds"])
	}
	if writes[SlotFlags] != 1 {
		t.Errorf("flags writes: expected 1, got %d", writes[SlotFlags])
	}

	snap := s.snapshot()
	if snap.GetInt("score") != 80 {
		t.Errorf("expected first score write to win, got %d", snap.GetInt("score"))
	}
	if snap.GetInt("rounds") != 2 {
		t.Errorf("expected rounds=2, got %d", snap.GetInt("rounds"))
	}
}

func TestSnapshot_IsolatedFromLaterMerges(t *testing.T) {
	r := testRegistry(t)
	s, err := newState(r, nil)
	if err != nil {
		t.Fatalf("newState: %v", err)
	}
	if err := s.apply(Update{SlotFlags: []string{"a"}, "usage": map[string]any{"core": 1}}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	snap := s.snapshot()

	if err := s.apply(Update{SlotFlags: []string{"b"}, "usage": map[string]any{"social": 2}}); err != nil {
		t.Fatalf("apply: %v", err)
	}

	if got := snap.Flags(); len(got) != 1 || got[0] != "a" {
		t.Errorf("snapshot must not observe later merges, got flags %v", got)
	}
	if m := snap.GetMap("usage"); len(m) != 1 {
		t.Errorf("snapshot must not observe later merges, got usage %v", m)
	}

	// Mutating what the snapshot hands out must not leak back into state.
	snap.Flags()[0] = "mutated"
	if got := s.snapshot().Flags(); got[0] != "a" {
		t.Errorf("state leaked a shared slice, got %v", got)
	}
}

func TestSnapshot_TypedGetters(t *testing.T) {
	r := testRegistry(t)
	s, err := newState(r, map[string]any{"proposal_id": "p-1"})
	if err != nil {
		t.Fatalf("newState: %v", err)
	}
	if err := s.apply(Update{"score": 70, SlotErrors: []StepError{{Step: "core", Message: "x", Kind: "analysis"}}}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	snap := s.snapshot()

	if snap.GetString("proposal_id") != "p-1" {
		t.Errorf("GetString: got %q", snap.GetString("proposal_id"))
	}
	if !snap.Has("score") || snap.GetInt("score") != 70 {
		t.Errorf("GetInt: got %d", snap.GetInt("score"))
	}
	if snap.Has("missing") || snap.GetInt("missing") != 0 {
		t.Error("absent slots should zero-value")
	}
	if errs := snap.StepErrors(); len(errs) != 1 || errs[0].Step != "core" {
		t.Errorf("StepErrors: got %v", errs)
	}
}
