package chat

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	turnsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp_client",
			Name:      "turns_total",
			Help:      "Completed turns by outcome",
		},
		[]string{"outcome"},
	)

	turnDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcp_client",
			Name:      "turn_duration_seconds",
			Help:      "Turn duration from classification to the terminal event",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		},
		[]string{"outcome"},
	)

	toolRoundsPerTurn = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "mcp_client",
			Name:      "turn_tool_rounds",
			Help:      "Tool rounds used per turn",
			Buckets:   []float64{0, 1, 2, 3, 4, 5, 6, 8, 10},
		},
	)

	clarificationsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mcp_client",
			Name:      "clarifications_total",
			Help:      "Clarifying questions asked instead of running a turn",
		},
	)

	confirmationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp_client",
			Name:      "confirmations_total",
			Help:      "Destructive-call confirmations by result",
		},
		[]string{"result"},
	)

	duplicateQueriesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mcp_client",
			Name:      "duplicate_queries_total",
			Help:      "Messages matching a recent message of the same session",
		},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mcp_client",
			Name:      "sessions_active",
			Help:      "Sessions currently tracked by the orchestrator",
		},
	)

	turnsQueued = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "mcp_client",
			Name:      "turns_queued",
			Help:      "Turns waiting for an earlier turn of the same session",
		},
	)
)
