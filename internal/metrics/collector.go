package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Collector records orchestration metrics. It implements workflow.Observer
// and registers all vectors on the default registry via promauto.
type Collector struct {
	runsTotal       *prometheus.CounterVec
	runDuration     *prometheus.HistogramVec
	routerDecisions *prometheus.CounterVec
	stepsTotal      *prometheus.CounterVec
	stepDuration    *prometheus.HistogramVec
	selfHeals       *prometheus.CounterVec

	logger *zap.Logger
}

// NewCollector creates a collector under the given namespace.
func NewCollector(namespace string, logger *zap.Logger) *Collector {
	c := &Collector{
		logger: logger.With(zap.String("component", "metrics")),
	}

	c.runsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_runs_total",
			Help:      "Total number of workflow runs",
		},
		[]string{"workflow", "status"},
	)

	c.runDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_run_duration_seconds",
			Help:      "Workflow run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
		[]string{"workflow"},
	)

	c.routerDecisions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_router_decisions_total",
			Help:      "Total number of router decisions",
		},
		[]string{"workflow", "kind"}, // kind: step, parallel, terminal
	)

	c.stepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_steps_total",
			Help:      "Total number of step executions",
		},
		[]string{"workflow", "step", "status"},
	)

	c.stepDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "workflow_step_duration_seconds",
			Help:      "Step execution duration in seconds",
			Buckets:   []float64{0.01, 0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"workflow", "step"},
	)

	c.selfHeals = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "workflow_self_heals_total",
			Help:      "Total number of halt-guard self-heal events",
		},
		[]string{"workflow", "step"},
	)

	logger.Info("metrics collector initialized", zap.String("namespace", namespace))

	return c
}

// RunStarted implements workflow.Observer.
func (c *Collector) RunStarted(workflow string) {
	c.runsTotal.WithLabelValues(workflow, "started").Inc()
}

// RunFinished implements workflow.Observer.
func (c *Collector) RunFinished(workflow, status string, d time.Duration) {
	c.runsTotal.WithLabelValues(workflow, status).Inc()
	c.runDuration.WithLabelValues(workflow).Observe(d.Seconds())
}

// RouterDecision implements workflow.Observer.
func (c *Collector) RouterDecision(workflow, kind string) {
	c.routerDecisions.WithLabelValues(workflow, kind).Inc()
}

// StepFinished implements workflow.Observer.
func (c *Collector) StepFinished(workflow, step, status string, d time.Duration) {
	c.stepsTotal.WithLabelValues(workflow, step, status).Inc()
	c.stepDuration.WithLabelValues(workflow, step).Observe(d.Seconds())
}

// SelfHealed implements workflow.Observer.
func (c *Collector) SelfHealed(workflow, step string) {
	c.selfHeals.WithLabelValues(workflow, step).Inc()
}
