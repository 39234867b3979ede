package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all application metrics
type Metrics struct {
	// HTTP surface
	RequestDuration *prometheus.HistogramVec
	RequestTotal    *prometheus.CounterVec

	// Upstream patient API
	UpstreamRequests *prometheus.CounterVec
	UpstreamLatency  *prometheus.HistogramVec

	// List view controller
	ListFetches       *prometheus.CounterVec
	ListFallbacks     *prometheus.CounterVec
	ListStaleDiscards prometheus.Counter

	// Sessions
	ActiveSessions prometheus.Gauge
	Logins         *prometheus.CounterVec

	// Audit pipeline
	AuditEventsPublished prometheus.Counter
	AuditEventsPersisted prometheus.Counter
	AuditEventsFailed    prometheus.Counter
}

// NewMetrics creates and registers all application metrics on reg. A nil
// reg registers on the default Prometheus registry.
func NewMetrics(namespace string, reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Metrics{
		RequestDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "path", "status"}),
		RequestTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "path", "status"}),

		UpstreamRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Total number of upstream patient API calls",
		}, []string{"method", "outcome"}),
		UpstreamLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Duration of upstream patient API calls",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		}, []string{"method"}),

		ListFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "list",
			Name:      "fetches_total",
			Help:      "Patient list fetches issued by view controllers",
		}, []string{"outcome"}),
		ListFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "list",
			Name:      "fallbacks_total",
			Help:      "Times the placeholder dataset replaced remote data",
		}, []string{"reason"}),
		ListStaleDiscards: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "list",
			Name:      "stale_discards_total",
			Help:      "Fetch completions discarded because a newer fetch was issued",
		}),

		ActiveSessions: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "active",
			Help:      "Dashboard logins minus sessions ended by logout or on expiry detection",
		}),
		Logins: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "session",
			Name:      "logins_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),

		AuditEventsPublished: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "events_published_total",
			Help:      "Audit events published to the broker",
		}),
		AuditEventsPersisted: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "events_persisted_total",
			Help:      "Audit events written to the database",
		}),
		AuditEventsFailed: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "audit",
			Name:      "events_failed_total",
			Help:      "Audit events that could not be published or persisted",
		}),
	}
}
