// Package observability exposes Prometheus metrics for address resolution
// and the HTTP API.
package observability

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "zoonoses"

// Metrics holds the Prometheus collectors of the service.
type Metrics struct {
	// Geocoding metrics.
	Resolutions      *prometheus.CounterVec   // labels: entry={primary,area,manual}, provider, outcome={success,failure}
	ProviderRequests *prometheus.CounterVec   // labels: provider, outcome={ok,error,circuit_open}
	ProviderDuration *prometheus.HistogramVec // labels: provider

	// HTTP metrics.
	HTTPRequests *prometheus.CounterVec // labels: method, route, status
}

func newMetrics() *Metrics {
	return &Metrics{
		Resolutions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_resolutions_total",
			Help:      "Address resolutions by entry point, winning provider and outcome.",
		}, []string{"entry", "provider", "outcome"}),
		ProviderRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "geocode_provider_requests_total",
			Help:      "Outbound geocoding requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		ProviderDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "geocode_provider_duration_seconds",
			Help:      "Outbound geocoding request duration in seconds.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"provider"}),
		HTTPRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "API requests by method, route pattern and status code.",
		}, []string{"method", "route", "status"}),
	}
}

// NewMetrics creates the collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := newMetrics()
	reg.MustRegister(m.Resolutions, m.ProviderRequests, m.ProviderDuration, m.HTTPRequests)
	return m
}

// NewMetricsForTesting creates Metrics on a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}

// ObserveProvider implements geocode.Recorder.
func (m *Metrics) ObserveProvider(provider, outcome string, elapsed time.Duration) {
	m.ProviderRequests.WithLabelValues(provider, outcome).Inc()
	m.ProviderDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// ObserveResolution implements geocode.Recorder.
func (m *Metrics) ObserveResolution(entry, provider, outcome string) {
	m.Resolutions.WithLabelValues(entry, provider, outcome).Inc()
}

// ObserveHTTP counts one served API request.
func (m *Metrics) ObserveHTTP(method, route string, status int) {
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
}
