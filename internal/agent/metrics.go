package agent

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestsTotal counts agent runs by task type and outcome.
	// Labels: task_type, status (ok, error, validation_error, unsupported)
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "verifyd",
			Subsystem: "agent",
			Name:      "requests_total",
			Help:      "Total number of agent runs by task type and outcome",
		},
		[]string{"task_type", "status"},
	)

	// RunDuration tracks end-to-end run latency per task type.
	RunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "verifyd",
			Subsystem: "agent",
			Name:      "run_duration_seconds",
			Help:      "Duration of agent runs in seconds",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"task_type"},
	)
)
