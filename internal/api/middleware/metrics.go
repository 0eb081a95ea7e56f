package middleware

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	httpRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "cogserver",
		Subsystem: "http",
		Name:      "requests_total",
		Help:      "HTTP requests, by method and status code.",
	}, []string{"method", "code"})

	httpDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "cogserver",
		Subsystem: "http",
		Name:      "request_duration_seconds",
		Help:      "HTTP request latency, including time spent waiting for the cognitive loop.",
		Buckets:   prometheus.DefBuckets,
	})
)

// MetricsCollector counts requests and errors for the JSON metrics endpoint
// and exports the same traffic to Prometheus.
type MetricsCollector struct {
	requestCount *atomic.Int64
	errorCount   *atomic.Int64
}

func NewMetricsCollector(requestCount, errorCount *atomic.Int64) *MetricsCollector {
	return &MetricsCollector{
		requestCount: requestCount,
		errorCount:   errorCount,
	}
}

func (mc *MetricsCollector) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mc.requestCount.Add(1)
		start := time.Now()

		rw := newResponseWriter(w)
		next.ServeHTTP(rw, r)

		// 4xx and 5xx
		if rw.statusCode >= 400 {
			mc.errorCount.Add(1)
		}
		httpRequests.WithLabelValues(r.Method, strconv.Itoa(rw.statusCode)).Inc()
		if !rw.hijacked {
			httpDuration.Observe(time.Since(start).Seconds())
		}
	})
}
