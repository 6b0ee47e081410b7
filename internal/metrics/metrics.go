// Package metrics is the minimal internal observability surface named
// in spec §9's ambient-stack guidance: a handful of Prometheus
// collectors covering request volume/latency and reverse-proxy
// backend health, exposed over a plain promhttp handler rather than a
// full tracing/OTLP stack (explicitly out of this core's scope).
// Grounded on the teacher's metrics.go, which registers its own
// handful of caddyhttp-specific collectors against the default
// Prometheus registry the same way.
package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	RequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "ferron",
		Name:      "http_requests_total",
		Help:      "Total HTTP requests served, by status class.",
	}, []string{"status"})

	RequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "ferron",
		Name:      "http_request_duration_seconds",
		Help:      "Request handling latency from module dispatch to response write.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"status"})

	BackendUnhealthy = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "ferron",
		Name:      "reverseproxy_backend_unhealthy",
		Help:      "1 if a reverse-proxy backend is currently excluded from selection, else 0.",
	}, []string{"backend"})
)

// ObserveRequest records one completed request's status and latency
// (spec §9 ambient metrics), called once per request from the server
// handler after the response has been written.
func ObserveRequest(status int, start time.Time) {
	class := strconv.Itoa(status/100) + "xx"
	RequestsTotal.WithLabelValues(class).Inc()
	RequestDuration.WithLabelValues(class).Observe(time.Since(start).Seconds())
}

// SetBackendHealth records whether a reverse-proxy backend is currently
// excluded from load-balancing selection (spec §4.5 health tracking),
// called by the reverse-proxy engine after every health-state change.
func SetBackendHealth(backend string, unhealthy bool) {
	v := 0.0
	if unhealthy {
		v = 1.0
	}
	BackendUnhealthy.WithLabelValues(backend).Set(v)
}
