package gateway

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	toolCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp_client",
			Name:      "tool_calls_total",
			Help:      "Tool invocations by final outcome",
		},
		[]string{"tool", "outcome"},
	)

	toolCallDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcp_client",
			Name:      "tool_call_duration_seconds",
			Help:      "Duration of tool invocations including retries",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		},
		[]string{"tool"},
	)

	serverUp = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mcp_client",
			Name:      "tool_server_up",
			Help:      "Whether the tool server connected at startup",
		},
		[]string{"server"},
	)

	breakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "mcp_client",
			Name:      "tool_server_breaker_state",
			Help:      "Circuit breaker state per server (0 closed, 1 half-open, 2 open)",
		},
		[]string{"server"},
	)
)
