// Package metrics holds the Prometheus collectors shared by the HTTP layer
// and the upstream clients. Label values are bounded: route templates (or "unmatched"),
// provider names and a fixed set of outcomes.
package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// UnmatchedRoute labels requests that hit no registered route
const UnmatchedRoute = "unmatched"

// Upstream providers
const (
	ProviderOpenAI   = "openai"
	ProviderSupabase = "supabase"
	ProviderPostgres = "postgres"
	ProviderStripe   = "stripe"
)

// Upstream call outcomes
const (
	OutcomeOK          = "ok"
	OutcomeUnreachable = "unreachable"
	OutcomeRejected    = "rejected"
	OutcomeInvalid     = "invalid"
)

var (
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	upstreamCalls = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "upstream_requests_total",
			Help: "Outbound calls to third-party providers by outcome.",
		},
		[]string{"provider", "outcome"},
	)

	upstreamLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "upstream_request_duration_seconds",
			Help:    "Duration of outbound calls to third-party providers.",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"provider"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, upstreamCalls, upstreamLat)
}

// Middleware records request counts and latencies per registered route
func Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = UnmatchedRoute
		}
		method := c.Request.Method
		httpReqs.WithLabelValues(method, path, strconv.Itoa(c.Writer.Status())).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
	}
}

// ObserveUpstream records one outbound call
func ObserveUpstream(provider, outcome string, started time.Time) {
	upstreamCalls.WithLabelValues(provider, outcome).Inc()
	upstreamLat.WithLabelValues(provider).Observe(time.Since(started).Seconds())
}

// UpstreamCount returns the current counter value, used by tests
func UpstreamCount(provider, outcome string) prometheus.Counter {
	return upstreamCalls.WithLabelValues(provider, outcome)
}
