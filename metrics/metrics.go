package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	// BackendRequestDurationSeconds is the latency of calls to the reporting backend.
	BackendRequestDurationSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "eaiser",
		Subsystem: "client",
		Name:      "backend_request_duration_seconds",
		Help:      "Latency of backend calls, labeled by endpoint and result.",
		// Report generation is slow; keep the upper buckets wide.
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 60, 120},
	}, []string{"endpoint", "result"})

	// SubmissionsTotal counts issue submissions by outcome classification.
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eaiser",
		Subsystem: "wizard",
		Name:      "submissions_total",
		Help:      "Total number of issue submissions, labeled by result (ok, integrity, quality, generic).",
	}, []string{"result"})

	// DecisionsTotal counts accept/decline actions by result.
	DecisionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eaiser",
		Subsystem: "wizard",
		Name:      "decisions_total",
		Help:      "Total number of report decisions, labeled by action and result.",
	}, []string{"action", "result"})

	// AuthorityRequestsTotal counts authority fetches and notification sends.
	AuthorityRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eaiser",
		Subsystem: "authorities",
		Name:      "requests_total",
		Help:      "Total number of authority operations, labeled by operation (fetch, send) and result.",
	}, []string{"operation", "result"})

	// ImageRejectionsTotal counts rejected image acquisitions by reason.
	ImageRejectionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eaiser",
		Subsystem: "image",
		Name:      "rejections_total",
		Help:      "Total number of rejected images, labeled by reason (too_large, conversion, unsupported).",
	}, []string{"reason"})

	// GeocodeLookupsTotal counts provider lookups.
	GeocodeLookupsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eaiser",
		Subsystem: "location",
		Name:      "lookups_total",
		Help:      "Total number of geocoding lookups, labeled by provider, kind and result.",
	}, []string{"provider", "kind", "result"})

	// DashboardLoadsTotal counts issue list fetches; errors mean fallback data was shown.
	DashboardLoadsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "eaiser",
		Subsystem: "dashboard",
		Name:      "loads_total",
		Help:      "Total number of issue list fetches, labeled by result.",
	}, []string{"result"})

	// ActiveSessions is the number of live wizard sessions in the gateway.
	ActiveSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "eaiser",
		Subsystem: "gateway",
		Name:      "active_sessions",
		Help:      "Current number of wizard sessions held by the gateway.",
	})
)

// Register registers the collectors with the default Prometheus registry.
// Safe to call multiple times.
func Register() {
	once.Do(func() {
		prometheus.MustRegister(
			BackendRequestDurationSeconds,
			SubmissionsTotal,
			DecisionsTotal,
			AuthorityRequestsTotal,
			ImageRejectionsTotal,
			GeocodeLookupsTotal,
			DashboardLoadsTotal,
			ActiveSessions,
		)
	})
}

// ObserveBackend records the duration of a backend call started at start.
func ObserveBackend(endpoint string, start time.Time, err error) {
	BackendRequestDurationSeconds.WithLabelValues(endpoint, Result(err)).Observe(time.Since(start).Seconds())
}

// Result maps an error to the "ok"/"error" label.
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
