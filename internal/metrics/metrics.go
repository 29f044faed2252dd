package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	httpRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arenda",
			Name:      "http_requests_total",
			Help:      "HTTP requests by endpoint.",
		},
		[]string{"endpoint"},
	)

	cacheHits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arenda",
			Name:      "cache_hits_total",
			Help:      "Listing cache hits by cache name.",
		},
		[]string{"cache"},
	)

	cacheMisses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arenda",
			Name:      "cache_misses_total",
			Help:      "Listing cache misses by cache name.",
		},
		[]string{"cache"},
	)

	orderCommits = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "arenda",
			Name:      "order_commits_total",
			Help:      "Order commit outcomes: committed, conflict, error.",
		},
		[]string{"outcome"},
	)

	loginLockouts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "arenda",
			Name:      "login_lockouts_total",
			Help:      "Login attempts rejected by the attempt throttle.",
		},
	)
)

// Register registers Prometheus metrics. Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(httpRequests, cacheHits, cacheMisses, orderCommits, loginLockouts)
	})
}

// IncHTTP increments the counter for an endpoint label.
func IncHTTP(endpoint string) {
	httpRequests.WithLabelValues(endpoint).Inc()
}

// IncCacheHit increments the hit counter for a cache name.
func IncCacheHit(cache string) {
	cacheHits.WithLabelValues(cache).Inc()
}

// IncCacheMiss increments the miss counter for a cache name.
func IncCacheMiss(cache string) {
	cacheMisses.WithLabelValues(cache).Inc()
}

// IncOrderCommit increments the commit counter for an outcome label.
func IncOrderCommit(outcome string) {
	orderCommits.WithLabelValues(outcome).Inc()
}

// IncLoginLockout increments the throttle rejection counter.
func IncLoginLockout() {
	loginLockouts.Inc()
}
