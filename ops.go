package main

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type pinger interface {
	Ping(ctx context.Context) error
}

type opsMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

func newOpsMetrics(reg prometheus.Registerer) *opsMetrics {
	factory := promauto.With(reg)
	return &opsMetrics{
		requests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "accessd",
			Subsystem: "ops",
			Name:      "http_requests_total",
			Help:      "Total number of ops endpoint requests",
		}, []string{"handler", "status"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "accessd",
			Subsystem: "ops",
			Name:      "http_request_duration_seconds",
			Help:      "Ops endpoint request duration in seconds",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12),
		}, []string{"handler"}),
	}
}

// newOpsMux serves /metrics from reg and /healthz from a database ping
func newOpsMux(db pinger, reg *prometheus.Registry) *http.ServeMux {
	m := newOpsMetrics(reg)
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.instrument("metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}).ServeHTTP))
	mux.Handle("/healthz", m.instrument("healthz", func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()
		if err := db.Ping(ctx); err != nil {
			http.Error(w, "database unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	return mux
}

func (m *opsMetrics) instrument(handlerName string, handler http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		handler(wrapped, r)

		m.requests.WithLabelValues(handlerName, statusCodeClass(wrapped.statusCode)).Inc()
		m.duration.WithLabelValues(handlerName).Observe(time.Since(start).Seconds())
	}
}

// responseWriter captures the status code written by a handler
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func statusCodeClass(code int) string {
	switch {
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	case code >= 500:
		return "5xx"
	default:
		return "unknown"
	}
}
