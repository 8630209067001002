package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the prometheus instruments for the session service.
type Metrics struct {
	registry *prometheus.Registry

	SyncTotal           *prometheus.CounterVec
	ActivityTotal       *prometheus.CounterVec
	DeactivateTotal     *prometheus.CounterVec
	RateLimitDenials    *prometheus.CounterVec
	SessionVerifyTotal  *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// New creates a Metrics with its own registry so tests can construct
// several instances without duplicate-registration panics.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SyncTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plume",
			Subsystem: "session",
			Name:      "sync_total",
			Help:      "Session sync attempts by outcome (ok, pending, invalid, error).",
		}, []string{"outcome"}),

		ActivityTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plume",
			Subsystem: "session",
			Name:      "activity_updates_total",
			Help:      "Session activity updates by outcome (ok, missing, invalid, error).",
		}, []string{"outcome"}),

		DeactivateTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plume",
			Subsystem: "session",
			Name:      "deactivate_total",
			Help:      "Session deactivations by outcome (ok, not_found, invalid, error).",
		}, []string{"outcome"}),

		RateLimitDenials: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plume",
			Subsystem: "session",
			Name:      "rate_limit_denials_total",
			Help:      "Requests rejected by the rate limiter, per route profile.",
		}, []string{"profile"}),

		SessionVerifyTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plume",
			Subsystem: "session",
			Name:      "verify_total",
			Help:      "Session verifications by outcome (ok, invalid).",
		}, []string{"outcome"}),

		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "plume",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "HTTP request latency by route and status class.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "status"}),
	}
}

// Handler returns the /metrics scrape handler for this instance's registry.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
