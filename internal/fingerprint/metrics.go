package fingerprint

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheLookupsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "mcp_client",
			Name:      "fingerprint_cache_lookups_total",
			Help:      "Fingerprint cache lookups by result",
		},
		[]string{"result"}, // "hit", "miss"
	)

	cacheStoresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mcp_client",
			Name:      "fingerprint_cache_stores_total",
			Help:      "Tool results stored in the fingerprint cache",
		},
	)

	cacheEvictionsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: "mcp_client",
			Name:      "fingerprint_cache_evictions_total",
			Help:      "Entries evicted because a session cache was full",
		},
	)
)
