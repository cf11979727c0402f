package workflow

import "context"

// EventType defines the type of run stream event.
type EventType string

const (
	// EventRouterDecision is emitted after each router call.
	EventRouterDecision EventType = "router_decision"
	// EventStepStart is emitted before a step begins execution.
	EventStepStart EventType = "step_start"
	// EventStepComplete is emitted after a step finishes successfully.
	EventStepComplete EventType = "step_complete"
	// EventStepError is emitted when a step failure is captured.
	EventStepError EventType = "step_error"
	// EventSelfHeal is emitted when the halt guard forces a slot default.
	EventSelfHeal EventType = "self_heal"
	// EventHalt is emitted when the halt guard forces termination.
	EventHalt EventType = "halt"
	// EventTerminal is emitted when the router ends the run.
	EventTerminal EventType = "terminal"
)

// Event carries information about one run execution event.
type Event struct {
	Type  EventType `json:"type"`
	Step  string    `json:"step,omitempty"`
	Steps []string  `json:"steps,omitempty"`
	Slot  string    `json:"slot,omitempty"`
	Error error     `json:"-"`
}

// EventEmitter is a callback that receives run events.
type EventEmitter func(Event)

// eventEmitterKey is the context key for EventEmitter.
type eventEmitterKey struct{}

// WithEventEmitter stores an EventEmitter in the context; the executor emits
// run events to it for the duration of Run.
func WithEventEmitter(ctx context.Context, emitter EventEmitter) context.Context {
	if emitter == nil {
		return ctx
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, eventEmitterKey{}, emitter)
}

// eventEmitterFromContext retrieves the EventEmitter from context.
func eventEmitterFromContext(ctx context.Context) (EventEmitter, bool) {
	if ctx == nil {
		return nil, false
	}
	v := ctx.Value(eventEmitterKey{})
	if v == nil {
		return nil, false
	}
	emit, ok := v.(EventEmitter)
	return emit, ok && emit != nil
}
