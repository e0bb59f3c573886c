package metrics

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes prometheus instruments for the financial engine.
type Metrics struct {
	recomputeTotal    *prometheus.CounterVec
	recomputeFailures *prometheus.CounterVec
	recomputeDuration prometheus.Histogram
}

func New(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		recomputeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobledger_recompute_total",
			Help: "Snapshot recomputes by triggering ledger table.",
		}, []string{"table"}),
		recomputeFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobledger_recompute_failures_total",
			Help: "Failed snapshot recomputes by triggering ledger table.",
		}, []string{"table"}),
		recomputeDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "jobledger_recompute_duration_seconds",
			Help:    "Duration of a single-project snapshot recompute.",
			Buckets: prometheus.DefBuckets,
		}),
	}

	for _, c := range []prometheus.Collector{m.recomputeTotal, m.recomputeFailures, m.recomputeDuration} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return m, nil
}

func (m *Metrics) ObserveRecompute(table string, d time.Duration, err error) {
	if m == nil {
		return
	}
	m.recomputeTotal.WithLabelValues(table).Inc()
	m.recomputeDuration.Observe(d.Seconds())
	if err != nil {
		m.recomputeFailures.WithLabelValues(table).Inc()
	}
}

// HTTPMetrics instruments the gin engine.
type HTTPMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func NewHTTPMetrics(reg prometheus.Registerer) (*HTTPMetrics, error) {
	m := &HTTPMetrics{
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "jobledger_http_requests_total",
			Help: "HTTP requests by method, route and status.",
		}, []string{"method", "route", "status"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "jobledger_http_request_duration_seconds",
			Help:    "HTTP request latency by method and route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}

	for _, c := range []prometheus.Collector{m.requests, m.duration} {
		if err := reg.Register(c); err != nil {
			if _, ok := err.(prometheus.AlreadyRegisteredError); !ok {
				return nil, err
			}
		}
	}
	return m, nil
}

// GinMiddleware records request counts and latency per route.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		if m == nil {
			c.Next()
			return
		}
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}
