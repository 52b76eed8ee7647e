package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	cacheRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_requests_total",
			Help: "Cache lookups by cache name and result (hit|miss).",
		},
		[]string{"cache", "result"},
	)

	rateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "advisory_rate_limit_triggered_total",
			Help: "Submissions rejected by the per-user rate limit.",
		},
	)
)

func init() { register(cacheRequestsTotal, rateLimitTriggeredTotal) }

func IncCacheRequest(cache, result string) {
	cacheRequestsTotal.WithLabelValues(norm(cache), norm(result)).Inc()
}

func IncRateLimitTriggered() { rateLimitTriggeredTotal.Inc() }
