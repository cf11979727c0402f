package workflow

import (
	"context"
	"time"
)

// Handler executes one unit of analysis work against a read-only snapshot and
// returns a proposed partial update. Handlers must honor ctx cancellation;
// long-running I/O is expected and is bounded by the step timeout.
type Handler func(ctx context.Context, snap Snapshot) (Update, error)

// StepError records a captured step failure in the errors slot.
type StepError struct {
	Step    string `json:"step"`
	Message string `json:"error_message"`
	Kind    string `json:"step_type"`
}

// StepDef is a registered capability: a named handler with exactly one
// primary output slot. Failures never escape the executor boundary; they are
// captured, recorded, and replaced with the primary slot's default value.
type StepDef struct {
	name        string
	primarySlot string
	handler     Handler
	kind        string
	timeout     time.Duration
}

// StepOption configures a step at registration time.
type StepOption func(*StepDef)

// WithStepKind sets the step_type recorded with captured failures.
func WithStepKind(kind string) StepOption {
	return func(s *StepDef) {
		s.kind = kind
	}
}

// WithStepTimeout overrides the definition-wide per-step timeout.
func WithStepTimeout(d time.Duration) StepOption {
	return func(s *StepDef) {
		s.timeout = d
	}
}

// Name returns the step name.
func (s *StepDef) Name() string { return s.name }

// PrimarySlot returns the step's primary output slot.
func (s *StepDef) PrimarySlot() string { return s.primarySlot }
