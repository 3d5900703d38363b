// Package metrics exposes the Prometheus metrics of a reconcile run.
// All metrics are defined in their respective packages (client, cache,
// ratelimit, pagination, pipeline, alert) to maintain modularity and avoid
// circular dependencies.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry is the default Prometheus registry.
// All metrics are automatically registered via promauto in their respective packages.
var Registry = prometheus.DefaultRegisterer

// Handler serves the default gatherer in the Prometheus text format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// NewServer returns a server exposing /metrics and /health on addr.
func NewServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	return &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

// Metrics Documentation
//
// Request Metrics (pkg/client):
//   - lookup_requests_total{module, status} (Counter): Requests by module and HTTP status, "cached", "quota_refused" or "network_error"
//   - lookup_request_duration_seconds{module} (Histogram): Request duration by module
//   - lookup_errors_total{class} (Counter): Errors by class (client, rate_limit, credential, network)
//   - lookup_requests_in_flight{module} (Gauge): Requests holding a concurrency slot
//
// Pagination Metrics (pkg/pagination):
//   - lookup_pages_fetched_total (Counter): Follow-up pages fetched
//   - lookup_pages_truncated_total (Counter): Searches cut off at MaxPages
//
// Pipeline Metrics (pkg/pipeline, pkg/alert):
//   - lookup_entries_total{module, outcome} (Counter): Entries by outcome (matched, empty, invalid, no_match, failed, aborted)
//   - lookup_alerts_total{importance} (Counter): Diagnostics by importance
//
// Cache Metrics (pkg/cache):
//   - lookup_cache_hits_total{module} (Counter): Responses served from cache
//   - lookup_cache_misses_total{module} (Counter): Response cache misses
//   - lookup_cache_bytes_total{module, direction} (Counter): Response bytes read or written
//   - lookup_cache_errors_total{module, operation} (Counter): Cache operation errors
//
// Quota Metrics (pkg/ratelimit):
//   - lookup_quota_remaining{credential} (Gauge): Remaining requests per credential
//   - lookup_quota_blocks_total{credential} (Counter): Requests refused on an exhausted credential
//   - lookup_quota_low_total{credential} (Counter): Responses reporting a low quota
//
// Example Prometheus Queries:
//
//   # Cache Hit Rate
//   sum(rate(lookup_cache_hits_total[5m])) /
//   (sum(rate(lookup_cache_hits_total[5m])) + sum(rate(lookup_cache_misses_total[5m])))
//
//   # Credentials close to exhaustion
//   lookup_quota_remaining < 50
//
//   # Share of entries without a match
//   sum(rate(lookup_entries_total{outcome=~"empty|no_match"}[5m])) / sum(rate(lookup_entries_total[5m]))
//
//   # P95 Request Latency
//   histogram_quantile(0.95, rate(lookup_request_duration_seconds_bucket[5m]))
