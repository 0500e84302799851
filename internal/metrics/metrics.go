package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "membergate_http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membergate_http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "membergate_http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// Logins counts login webhook outcomes: resolved, blocked, skipped, failed.
	Logins = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membergate_identity_logins_total",
			Help: "Login webhook invocations by outcome.",
		},
		[]string{"outcome"},
	)

	StripeEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membergate_stripe_events_total",
			Help: "Stripe webhook events by type and outcome.",
		},
		[]string{"type", "outcome"},
	)

	Checkouts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membergate_checkouts_total",
			Help: "Checkout session requests by outcome.",
		},
		[]string{"outcome"},
	)

	// Transitions counts account state writes: activate, deactivate, expire, timed_role.
	Transitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "membergate_account_transitions_total",
			Help: "Account activation state changes.",
		},
		[]string{"action"},
	)
)

var registerOnce sync.Once

// Init registers every collector in the default registry.
func Init() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			Logins, StripeEvents, Checkouts, Transitions,
		)
	})
}

func Handler() http.Handler {
	return promhttp.Handler()
}

// Instrument records latency per route template so path params stay out of labels.
func Instrument() gin.HandlerFunc {
	return func(c *gin.Context) {
		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		status := strconv.Itoa(c.Writer.Status())
		method := c.Request.Method
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	}
}
