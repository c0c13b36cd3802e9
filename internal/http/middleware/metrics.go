// Package middleware contains shared Gin middleware used by the HTTP layer.
//
// This file exposes Prometheus instrumentation for HTTP traffic and for
// application errors. Labels stay bounded:
//
//   - method: HTTP verb
//   - path:   the registered Gin route, or the raw path when nothing matched
//   - status: numeric status code as a string
//   - kind:   the apperr.Kind name of an error written to a client
package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tbourn/go-backend-kit/internal/apperr"
)

var (
	// httpReqs counts finished requests per method, route and status.
	httpReqs = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	// httpLat records handler latency in seconds per method and route.
	// Status is left out to keep histogram cardinality low.
	httpLat = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	// httpInflight is the number of requests currently inside the chain.
	httpInflight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_inflight",
			Help: "Current number of in-flight HTTP requests.",
		},
	)

	// httpRespSize records body bytes written per method and route. Health
	// probes and error envelopes land in the first buckets; search result pages
	// in the KiB range.
	httpRespSize = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_response_size_bytes",
			Help: "Size of HTTP responses in bytes.",
			Buckets: []float64{
				200, 500, 1 << 10, 2 << 10, 5 << 10, // envelopes, small docs
				10 << 10, 25 << 10, 50 << 10, // result pages
				100 << 10, 250 << 10, 500 << 10, // large pages
				1 << 20, 2 << 20, 5 << 20, // up to the body limit and beyond
			},
		},
		[]string{"method", "path"},
	)

	// appErrors counts apperr envelopes written by Fail, Recovery and the
	// route fallback. The kind label is one of apperr.Kinds(), so it is bounded.
	appErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "app_errors_total",
			Help: "Application errors written to clients, by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(httpReqs, httpLat, httpInflight, httpRespSize, appErrors)
}

// Metrics returns a Gin middleware that instruments requests with Prometheus.
//
// Per request it increments http_requests_total, observes latency and
// response size, and holds http_requests_inflight up while the rest of the
// chain runs. Unmatched requests are labelled with their raw path, which is
// only bounded because the router answers them with a fixed 404.
//
//	r := gin.New()
//	r.Use(middleware.Metrics())
//	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		httpInflight.Inc()
		defer httpInflight.Dec()

		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}
		method := c.Request.Method
		status := strconv.Itoa(c.Writer.Status())

		httpReqs.WithLabelValues(method, path, status).Inc()
		httpLat.WithLabelValues(method, path).Observe(time.Since(start).Seconds())
		// Size is -1 for hijacked connections.
		if size := c.Writer.Size(); size >= 0 {
			httpRespSize.WithLabelValues(method, path).Observe(float64(size))
		}
	}
}

// ObserveError counts one error of kind k written to a client.
func ObserveError(k apperr.Kind) {
	appErrors.WithLabelValues(k.String()).Inc()
}
