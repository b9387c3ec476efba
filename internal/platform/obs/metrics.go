// Copyright (c) 2026 Kantan Labs. All rights reserved.

/*
Package obs provides Prometheus instrumentation for the HTTP surface.

It exposes request counters, latency histograms, and an in-flight gauge,
plus the /metrics scrape handler. Metrics are registered once at startup
via [Init] and collected by the [Instrument] middleware.
*/
package obs

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// # HTTP Metrics

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	authzDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "authz_decisions_total",
			Help: "Authorization guard decisions by outcome.",
		},
		[]string{"outcome"},
	)
)

// Init registers all collectors with the default Prometheus registry.
// Call exactly once during startup.
func Init() {
	prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration, authzDecisionsTotal)
}

// Handler returns the Prometheus scrape endpoint handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveAuthzDecision records an allow/deny outcome from the guard.
func ObserveAuthzDecision(outcome string) {
	authzDecisionsTotal.WithLabelValues(outcome).Inc()
}

// Instrument wraps a handler to measure request rate, latency, and in-flight count.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		httpInFlight.Inc()
		startTime := time.Now()

		recorder := &statusWriter{ResponseWriter: writer, code: http.StatusOK}
		next.ServeHTTP(recorder, request)

		duration := time.Since(startTime).Seconds()
		status := strconv.Itoa(recorder.code)

		// Raw paths would explode label cardinality on parameterized routes;
		// the IAM surface is shallow enough that the first two segments identify it.
		path := CanonicalPath(request.URL.Path)

		httpRequestDuration.WithLabelValues(request.Method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(request.Method, path, status).Inc()
		httpInFlight.Dec()
	})
}

// statusWriter captures the response status code for labeling.
type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
