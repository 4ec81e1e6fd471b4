// Package metrics holds the ambient Prometheus instrumentation exposed on
// the utility HTTP server's /metrics endpoint: indexing throughput,
// tool-call counts, and agent-loop step counts. It is additive
// observability and never gates a required operation.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "codecompass"

// Collector holds every metric CodeCompass records.
type Collector struct {
	IndexingRunsTotal    *prometheus.CounterVec
	IndexingRunDuration  prometheus.Histogram
	IndexingFilesIndexed prometheus.Counter
	IndexingCommitsIndexed prometheus.Counter

	ToolCallsTotal    *prometheus.CounterVec
	ToolCallDuration  *prometheus.HistogramVec

	AgentStepsTotal   prometheus.Counter
	AgentRunsTotal    *prometheus.CounterVec
}

// NewRegistry builds a fresh Prometheus registry together with a
// Collector registered against it, so the utility HTTP server's /metrics
// endpoint and every test that constructs its own Collector never collide
// with the global DefaultRegisterer.
func NewRegistry() (*prometheus.Registry, *Collector) {
	reg := prometheus.NewRegistry()
	return reg, New(reg)
}

// New creates and registers every metric against reg. Prefer NewRegistry
// in most callers; this is exposed directly for wiring into an existing
// registry (e.g. prometheus.DefaultRegisterer).
func New(reg prometheus.Registerer) *Collector {
	factory := promauto.With(reg)

	return &Collector{
		IndexingRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexing_runs_total",
			Help:      "Total indexing runs, by outcome (completed, failed).",
		}, []string{"outcome"}),
		IndexingRunDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "indexing_run_duration_seconds",
			Help:      "Duration of a complete indexing run.",
			Buckets:   prometheus.ExponentialBuckets(0.5, 2, 12),
		}),
		IndexingFilesIndexed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexing_files_indexed_total",
			Help:      "Total files processed across all indexing runs.",
		}),
		IndexingCommitsIndexed: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "indexing_commits_indexed_total",
			Help:      "Total commits processed across all indexing runs.",
		}),
		ToolCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Total tool dispatches, by tool name and outcome.",
		}, []string{"tool", "outcome"}),
		ToolCallDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of a tool dispatch.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"tool"}),
		AgentStepsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_steps_total",
			Help:      "Total reasoning/tool steps taken across all agent loop invocations.",
		}),
		AgentRunsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "agent_runs_total",
			Help:      "Total agent loop invocations, by termination reason.",
		}, []string{"termination"}),
	}
}

// ObserveToolCall records one tool dispatch's outcome and latency.
func (c *Collector) ObserveToolCall(tool string, err error, duration time.Duration) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	c.ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
	c.ToolCallDuration.WithLabelValues(tool).Observe(duration.Seconds())
}

// ObserveIndexingRun records one completed or failed indexing run.
func (c *Collector) ObserveIndexingRun(err error, duration time.Duration) {
	outcome := "completed"
	if err != nil {
		outcome = "failed"
	}
	c.IndexingRunsTotal.WithLabelValues(outcome).Inc()
	c.IndexingRunDuration.Observe(duration.Seconds())
}

// ObserveAgentRun records one agent loop invocation's termination reason
// and the number of steps it took.
func (c *Collector) ObserveAgentRun(termination string, steps int) {
	c.AgentRunsTotal.WithLabelValues(termination).Inc()
	c.AgentStepsTotal.Add(float64(steps))
}
