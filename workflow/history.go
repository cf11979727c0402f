package workflow

import (
	"sync"
	"time"
)

// RunStatus represents the status of a run or a step execution.
type RunStatus string

const (
	// RunStatusRunning indicates the execution is in progress.
	RunStatusRunning RunStatus = "running"
	// RunStatusCompleted indicates the execution completed.
	RunStatusCompleted RunStatus = "completed"
	// RunStatusFailed indicates the execution failed (captured step error).
	RunStatusFailed RunStatus = "failed"
	// RunStatusHalted indicates the halt guard forced termination.
	RunStatusHalted RunStatus = "halted"
)

// StepExecution records one step invocation within a run.
type StepExecution struct {
	Step      string        `json:"step"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Status    RunStatus     `json:"status"`
	Error     string        `json:"error,omitempty"`
}

// RunHistory records the complete execution path of one run.
type RunHistory struct {
	RunID     string           `json:"run_id"`
	Workflow  string           `json:"workflow"`
	StartTime time.Time        `json:"start_time"`
	EndTime   time.Time        `json:"end_time"`
	Duration  time.Duration    `json:"duration"`
	Status    RunStatus        `json:"status"`
	Steps     []*StepExecution `json:"steps"`

	mu sync.Mutex
}

func newRunHistory(runID, workflow string) *RunHistory {
	return &RunHistory{
		RunID:     runID,
		Workflow:  workflow,
		StartTime: time.Now(),
		Status:    RunStatusRunning,
		Steps:     make([]*StepExecution, 0),
	}
}

// recordStart appends a running step record and returns it for completion.
// Safe for concurrent use by parallel step goroutines.
func (h *RunHistory) recordStart(step string) *StepExecution {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec := &StepExecution{
		Step:      step,
		StartTime: time.Now(),
		Status:    RunStatusRunning,
	}
	h.Steps = append(h.Steps, rec)
	return rec
}

func (h *RunHistory) recordEnd(rec *StepExecution, status RunStatus, err error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	rec.EndTime = time.Now()
	rec.Duration = rec.EndTime.Sub(rec.StartTime)
	rec.Status = status
	if err != nil {
		rec.Error = err.Error()
	}
}

func (h *RunHistory) finish(status RunStatus) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.EndTime = time.Now()
	h.Duration = h.EndTime.Sub(h.StartTime)
	h.Status = status
}

// StepCount returns the number of recorded step executions.
func (h *RunHistory) StepCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.Steps)
}
