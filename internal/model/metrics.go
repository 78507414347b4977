package model

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	llmCallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp_client",
			Name:      "llm_calls_total",
			Help:      "Total LLM API calls",
		},
		[]string{"provider", "model", "status"},
	)

	llmDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "mcp_client",
			Name:      "llm_duration_seconds",
			Help:      "Duration of LLM API calls in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~50s
		},
		[]string{"provider", "model"},
	)

	modelRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp_client",
			Name:      "llm_retries_total",
			Help:      "LLM calls retried after a transient failure",
		},
		[]string{"provider"},
	)

	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp_client",
			Name:      "model_malformed_decisions_total",
			Help:      "Malformed model decisions by handling",
		},
		[]string{"result"}, // "malformed_retry", "model_error"
	)
)
