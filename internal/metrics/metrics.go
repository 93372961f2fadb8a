// Package metrics declares the Prometheus collectors of the runtime. They are
// registered on the default registry and served by the servant's /metrics
// endpoint.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Operations counts finished materializations by outcome
	// (computed, cached, failed) and target (local, remote).
	Operations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lazyflow",
		Name:      "operations_total",
		Help:      "Materialized operations by outcome and target",
	}, []string{"outcome", "target"})

	// OperationDuration observes the time spent executing an operation.
	OperationDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "lazyflow",
		Name:      "operation_duration_seconds",
		Help:      "Operation execution duration in seconds",
		Buckets:   prometheus.ExponentialBuckets(0.001, 2, 15), // 1ms to ~16s
	}, []string{"target"})

	// CacheLookups counts result cache lookups by result (hit, miss).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lazyflow",
		Name:      "cache_lookups_total",
		Help:      "Result cache lookups",
	}, []string{"result"})

	// WorkflowRuns counts workflow runs by outcome (succeeded, failed).
	WorkflowRuns = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lazyflow",
		Name:      "workflow_runs_total",
		Help:      "Workflow runs by outcome",
	}, []string{"outcome"})

	// RemoteCommands counts control commands sent to a servant.
	RemoteCommands = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lazyflow",
		Name:      "remote_commands_total",
		Help:      "Servant control commands by command and outcome",
	}, []string{"command", "outcome"})

	// ServantExecutions counts executions run by the servant by exit code class.
	ServantExecutions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "lazyflow",
		Subsystem: "servant",
		Name:      "executions_total",
		Help:      "Executions finished by the servant",
	}, []string{"outcome"})

	// ServantRunning is the number of executions currently in flight.
	ServantRunning = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "lazyflow",
		Subsystem: "servant",
		Name:      "executions_running",
		Help:      "Executions currently running on the servant",
	})
)

// Outcome labels.
const (
	OutcomeComputed  = "computed"
	OutcomeCached    = "cached"
	OutcomeFailed    = "failed"
	OutcomeSucceeded = "succeeded"
)

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
