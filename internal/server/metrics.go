package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cyclesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cogserver",
		Name:      "cycles_total",
		Help:      "Cognitive cycles completed.",
	})

	cycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cogserver",
		Name:      "cycle_duration_seconds",
		Help:      "Wall time spent inside one cognitive cycle, excluding pacing.",
		Buckets:   []float64{.0005, .001, .005, .01, .025, .05, .1, .25, .5, 1, 5},
	})

	cycleOverruns = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "cogserver",
		Name:      "cycle_overruns_total",
		Help:      "Paced cycles that took longer than the configured cycle duration.",
	})

	requestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogserver",
		Name:      "requests_total",
		Help:      "Requests executed, by outcome.",
	}, []string{"outcome"})

	agentRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogserver",
		Name:      "agent_runs_total",
		Help:      "Mind agent runs, by agent and outcome.",
	}, []string{"agent", "outcome"})

	requestQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "cogserver",
		Name:      "request_queue_depth",
		Help:      "Requests waiting at the start of the last cycle.",
	})

	bulkOperations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogserver",
		Name:      "bulk_operations_total",
		Help:      "Bulk load and store operations, by name and outcome.",
	}, []string{"operation", "outcome"})
)
