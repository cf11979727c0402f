package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// ladderDef builds the canonical evaluation shape: one gating step, a
// parallel fan-out, then an aggregation step.
func ladderDef(t *testing.T, calls *map[string]*atomic.Int32, opts ...func(*Builder)) *Definition {
	t.Helper()

	counters := map[string]*atomic.Int32{
		"core": {}, "hist": {}, "fin": {}, "soc": {}, "reason": {},
	}
	*calls = counters

	scored := func(name string, score int) Handler {
		return func(ctx context.Context, snap Snapshot) (Update, error) {
			counters[name].Add(1)
			return Update{name + "_score": score}, nil
		}
	}

	router := RouterFunc(func(snap Snapshot) Decision {
		switch {
		case !snap.Has("core_score"):
			return RunStep("core")
		case !snap.Has("hist_score") || !snap.Has("fin_score") || !snap.Has("soc_score"):
			return RunParallel("hist", "fin", "soc")
		case !snap.Has("reason_score"):
			return RunStep("reason")
		default:
			return Terminal()
		}
	})

	b := NewDefinition("ladder").
		RegisterSlot("core_score", SetOnce).
		RegisterSlot("hist_score", SetOnce).
		RegisterSlot("fin_score", SetOnce).
		RegisterSlot("soc_score", SetOnce).
		RegisterSlot("reason_score", SetOnce).
		RegisterStep("core", "core_score", scored("core", 80)).
		RegisterStep("hist", "hist_score", scored("hist", 60)).
		RegisterStep("fin", "fin_score", scored("fin", 70)).
		RegisterStep("soc", "soc_score", scored("soc", 50)).
		RegisterStep("reason", "reason_score", scored("reason", 65)).
		WithRouter(router)
	for _, opt := range opts {
		opt(b)
	}

	def, err := b.Build()
	require.NoError(t, err)
	return def
}

func TestRun_SequentialThenParallelThenJoin(t *testing.T) {
	var calls map[string]*atomic.Int32
	def := ladderDef(t, &calls)
	exec := NewExecutor(def, zaptest.NewLogger(t))

	result, err := exec.Run(context.Background(), nil)
	require.NoError(t, err)
	require.NotNil(t, result)

	assert.False(t, result.Halted)
	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 4, result.RouterCalls, "core, fan-out, reason, terminal")

	for name, c := range calls {
		assert.Equal(t, int32(1), c.Load(), "step %s should run exactly once", name)
	}

	snap := result.State
	assert.Equal(t, 80, snap.GetInt("core_score"))
	assert.Equal(t, 60, snap.GetInt("hist_score"))
	assert.Equal(t, 70, snap.GetInt("fin_score"))
	assert.Equal(t, 50, snap.GetInt("soc_score"))
	assert.Equal(t, 65, snap.GetInt("reason_score"))
	assert.Empty(t, snap.StepErrors())
}

func TestRun_ParallelStepsSeePreDispatchSnapshot(t *testing.T) {
	var sawSibling atomic.Int32

	record := func(self, sibling string) Handler {
		return func(ctx context.Context, snap Snapshot) (Update, error) {
			if snap.Has(sibling) {
				sawSibling.Add(1)
			}
			return Update{self: true}, nil
		}
	}

	def, err := NewDefinition("iso").
		RegisterSlot("a_done", SetOnce).
		RegisterSlot("b_done", SetOnce).
		RegisterStep("a", "a_done", record("a_done", "b_done")).
		RegisterStep("b", "b_done", record("b_done", "a_done")).
		WithRouter(RouterFunc(func(snap Snapshot) Decision {
			if !snap.Has("a_done") || !snap.Has("b_done") {
				return RunParallel("a", "b")
			}
			return Terminal()
		})).
		Build()
	require.NoError(t, err)

	result, err := NewExecutor(def, zaptest.NewLogger(t)).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.False(t, result.Halted)
	assert.Zero(t, sawSibling.Load(), "parallel members must not observe each other's writes")
}

func TestRun_FailingStepGetsDefaultAndErrorEntry(t *testing.T) {
	def, err := NewDefinition("failopen").
		RegisterSlot("score", SetOnce, WithDefault(map[string]any{"score": 0, "flag": "unavailable"})).
		RegisterSlot("done", SetOnce).
		RegisterStep("broken", "score", func(ctx context.Context, snap Snapshot) (Update, error) {
			return nil, errors.New("upstream unavailable")
		}, WithStepKind("analysis")).
		RegisterStep("finish", "done", func(ctx context.Context, snap Snapshot) (Update, error) {
			return Update{"done": true}, nil
		}).
		WithRouter(RouterFunc(func(snap Snapshot) Decision {
			switch {
			case !snap.Has("score"):
				return RunStep("broken")
			case !snap.Has("done"):
				return RunStep("finish")
			default:
				return Terminal()
			}
		})).
		Build()
	require.NoError(t, err)

	result, err := NewExecutor(def, zaptest.NewLogger(t)).Run(context.Background(), nil)
	require.NoError(t, err, "step failures must not escape Run")

	assert.False(t, result.Halted)
	assert.True(t, result.State.GetBool("done"), "run must continue past the failed step")

	errs := result.State.StepErrors()
	require.Len(t, errs, 1)
	assert.Equal(t, "broken", errs[0].Step)
	assert.Equal(t, "upstream unavailable", errs[0].Message)
	assert.Equal(t, "analysis", errs[0].Kind)

	score, ok := result.State.Get("score")
	require.True(t, ok, "primary slot should hold its default")
	assert.Equal(t, map[string]any{"score": 0, "flag": "unavailable"}, score)
}

func TestRun_PanickingStepIsCaptured(t *testing.T) {
	def, err := NewDefinition("panics").
		RegisterSlot("score", SetOnce, WithDefault(0)).
		RegisterStep("boom", "score", func(ctx context.Context, snap Snapshot) (Update, error) {
			panic("nil dereference somewhere")
		}).
		WithRouter(RouterFunc(func(snap Snapshot) Decision {
			if !snap.Has("score") {
				return RunStep("boom")
			}
			return Terminal()
		})).
		Build()
	require.NoError(t, err)

	result, err := NewExecutor(def, zaptest.NewLogger(t)).Run(context.Background(), nil)
	require.NoError(t, err, "panics must be contained at the step boundary")

	errs := result.State.StepErrors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "panicked")
	assert.Equal(t, 0, result.State.GetInt("score"))
}

func TestRun_StepTimeout(t *testing.T) {
	def, err := NewDefinition("slow").
		RegisterSlot("score", SetOnce, WithDefault(0)).
		RegisterStep("laggard", "score", func(ctx context.Context, snap Snapshot) (Update, error) {
			select {
			case <-time.After(5 * time.Second):
				return Update{"score": 1}, nil
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}, WithStepTimeout(20*time.Millisecond)).
		WithRouter(RouterFunc(func(snap Snapshot) Decision {
			if !snap.Has("score") {
				return RunStep("laggard")
			}
			return Terminal()
		})).
		Build()
	require.NoError(t, err)

	start := time.Now()
	result, err := NewExecutor(def, zaptest.NewLogger(t)).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "timeout must cut the step short")

	errs := result.State.StepErrors()
	require.Len(t, errs, 1)
	assert.Contains(t, errs[0].Message, "deadline")
}

func TestRun_ParallelSetOnceConflictKeepsFirstWrite(t *testing.T) {
	writer := func(v int) Handler {
		return func(ctx context.Context, snap Snapshot) (Update, error) {
			return Update{"winner": v, fmt.Sprintf("done_%d", v): true}, nil
		}
	}

	def, err := NewDefinition("conflict").
		RegisterSlot("winner", SetOnce).
		RegisterSlot("done_1", SetOnce).
		RegisterSlot("done_2", SetOnce).
		RegisterStep("w1", "done_1", writer(1)).
		RegisterStep("w2", "done_2", writer(2)).
		WithRouter(RouterFunc(func(snap Snapshot) Decision {
			if !snap.Has("done_1") || !snap.Has("done_2") {
				return RunParallel("w1", "w2")
			}
			return Terminal()
		})).
		Build()
	require.NoError(t, err)

	result, err := NewExecutor(def, zaptest.NewLogger(t)).Run(context.Background(), nil)
	require.NoError(t, err, "a SetOnce conflict is not an error")

	v := result.State.GetInt("winner")
	assert.Contains(t, []int{1, 2}, v, "one of the competing writes must win")
	assert.Equal(t, 1, result.SlotWrites["winner"], "only the first write lands")
}

func TestRun_UnknownStepIsConfigError(t *testing.T) {
	def, err := NewDefinition("badrouter").
		RegisterSlot("score", SetOnce).
		RegisterStep("core", "score", noopHandler).
		WithRouter(RouterFunc(func(snap Snapshot) Decision {
			return RunStep("no_such_step")
		})).
		Build()
	require.NoError(t, err)

	_, err = NewExecutor(def, zaptest.NewLogger(t)).Run(context.Background(), nil)
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrStepUnknown, ce.Code)
}

func TestRun_EmptyDecisionIsConfigError(t *testing.T) {
	def, err := NewDefinition("empty").
		RegisterSlot("score", SetOnce).
		RegisterStep("core", "score", noopHandler).
		WithRouter(RouterFunc(func(snap Snapshot) Decision {
			return RunParallel()
		})).
		Build()
	require.NoError(t, err)

	_, err = NewExecutor(def, zaptest.NewLogger(t)).Run(context.Background(), nil)
	require.Error(t, err)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, ErrEmptyDecision, ce.Code)
}

func TestRun_RouterUpdatesGoThroughReducers(t *testing.T) {
	def, err := NewDefinition("bumps").
		RegisterSlot("rounds", Sum).
		RegisterSlot("score", SetOnce).
		RegisterStep("core", "score", func(ctx context.Context, snap Snapshot) (Update, error) {
			return Update{"score": 1}, nil
		}).
		WithRouter(RouterFunc(func(snap Snapshot) Decision {
			if !snap.Has("score") {
				return RunStep("core").WithUpdates(Update{"rounds": 1})
			}
			return Terminal().WithUpdates(Update{"rounds": 1})
		})).
		Build()
	require.NoError(t, err)

	result, err := NewExecutor(def, zaptest.NewLogger(t)).Run(context.Background(), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.State.GetInt("rounds"))
}

func TestRun_InputsAreImmutable(t *testing.T) {
	def, err := NewDefinition("inputs").
		RegisterSlot("proposal_id", PassThrough).
		RegisterSlot("score", SetOnce).
		RegisterStep("sneaky", "score", func(ctx context.Context, snap Snapshot) (Update, error) {
			return Update{"score": 1, "proposal_id": "overwritten"}, nil
		}).
		WithRouter(RouterFunc(func(snap Snapshot) Decision {
			if !snap.Has("score") {
				return RunStep("sneaky")
			}
			return Terminal()
		})).
		Build()
	require.NoError(t, err)

	result, err := NewExecutor(def, zaptest.NewLogger(t)).Run(context.Background(), map[string]any{"proposal_id": "p-1"})
	require.NoError(t, err)
	assert.Equal(t, "p-1", result.State.GetString("proposal_id"))
}

func TestRun_EmitsEvents(t *testing.T) {
	var calls map[string]*atomic.Int32
	def := ladderDef(t, &calls)
	exec := NewExecutor(def, zaptest.NewLogger(t))

	var mu sync.Mutex
	var events []Event
	ctx := WithEventEmitter(context.Background(), func(ev Event) {
		mu.Lock()
		defer mu.Unlock()
		events = append(events, ev)
	})

	_, err := exec.Run(ctx, nil)
	require.NoError(t, err)

	byType := map[EventType]int{}
	for _, ev := range events {
		byType[ev.Type]++
	}
	assert.Equal(t, 4, byType[EventRouterDecision])
	assert.Equal(t, 5, byType[EventStepStart])
	assert.Equal(t, 5, byType[EventStepComplete])
	assert.Equal(t, 1, byType[EventTerminal])
}

type recordingObserver struct {
	runStarted  atomic.Int32
	runFinished atomic.Int32
	decisions   atomic.Int32
	steps       atomic.Int32
	heals       atomic.Int32
}

func (o *recordingObserver) RunStarted(string)                                  { o.runStarted.Add(1) }
func (o *recordingObserver) RunFinished(string, string, time.Duration)          { o.runFinished.Add(1) }
func (o *recordingObserver) RouterDecision(string, string)                      { o.decisions.Add(1) }
func (o *recordingObserver) StepFinished(string, string, string, time.Duration) { o.steps.Add(1) }
func (o *recordingObserver) SelfHealed(string, string)                          { o.heals.Add(1) }

func TestRun_ObserverReceivesTelemetry(t *testing.T) {
	var calls map[string]*atomic.Int32
	def := ladderDef(t, &calls)

	obs := &recordingObserver{}
	exec := NewExecutor(def, zaptest.NewLogger(t), WithObserver(obs))

	_, err := exec.Run(context.Background(), nil)
	require.NoError(t, err)

	assert.Equal(t, int32(1), obs.runStarted.Load())
	assert.Equal(t, int32(1), obs.runFinished.Load())
	assert.Equal(t, int32(4), obs.decisions.Load())
	assert.Equal(t, int32(5), obs.steps.Load())
	assert.Zero(t, obs.heals.Load())
}

func TestRun_CancelledContextHalts(t *testing.T) {
	var calls map[string]*atomic.Int32
	def := ladderDef(t, &calls)
	exec := NewExecutor(def, zaptest.NewLogger(t))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	result, err := exec.Run(ctx, nil)
	require.NoError(t, err, "cancellation is a halt, not an error")
	assert.True(t, result.Halted)
	assert.Contains(t, result.HaltReason, "deadline")
	for _, c := range calls {
		assert.Zero(t, c.Load(), "no step should run after cancellation")
	}
}
