package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits counts lookups served from Redis, by module.
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_cache_hits_total",
			Help: "Lookup responses served from the cache by module",
		},
		[]string{"module"},
	)

	// CacheMisses counts lookups that had to go to the remote API, by module.
	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_cache_misses_total",
			Help: "Lookup cache misses by module",
		},
		[]string{"module"},
	)

	// CacheBytes counts response bytes read from and written to the cache.
	CacheBytes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_cache_bytes_total",
			Help: "Response bytes moved through the lookup cache by module and direction",
		},
		[]string{"module", "direction"}, // "read", "write"
	)

	// CacheErrors counts failed cache operations.
	CacheErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lookup_cache_errors_total",
			Help: "Lookup cache operation errors by module and operation",
		},
		[]string{"module", "operation"}, // "lookup", "store", "evict"
	)
)
