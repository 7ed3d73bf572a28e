// Package obsmetrics defines the Prometheus metrics the orchestrator and
// scheduler emit, grounded on couchcryptid-storm-data-etl-service's
// internal/observability/metrics.go (the same NewMetrics/NewMetricsForTesting
// split to avoid "already registered" panics across tests) and the
// teacher's internal/metrics/metrics.go naming conventions.
package obsmetrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every counter/histogram/gauge the ingestion pipeline emits.
type Metrics struct {
	RunsStarted   *prometheus.CounterVec // labels: model
	RunsCompleted *prometheus.CounterVec // labels: model
	RunsErrored   *prometheus.CounterVec // labels: model

	LeadHoursSkipped *prometheus.CounterVec // labels: model, reason

	FetchDuration *prometheus.HistogramVec // labels: model
	RunDuration   *prometheus.HistogramVec // labels: model

	ActiveRuns prometheus.Gauge

	AlertsSent         *prometheus.CounterVec // labels: outcome
	SchedulerCoalesced *prometheus.CounterVec // labels: model
}

// NewMetrics creates and registers every metric with the default registry.
func NewMetrics() *Metrics {
	m := newMetrics()
	prometheus.MustRegister(
		m.RunsStarted,
		m.RunsCompleted,
		m.RunsErrored,
		m.LeadHoursSkipped,
		m.FetchDuration,
		m.RunDuration,
		m.ActiveRuns,
		m.AlertsSent,
		m.SchedulerCoalesced,
	)
	return m
}

// NewMetricsForTesting builds Metrics without registering them, so multiple
// tests can construct their own instance without panicking on duplicate
// registration against the default registry.
func NewMetricsForTesting() *Metrics {
	return newMetrics()
}

func newMetrics() *Metrics {
	return &Metrics{
		RunsStarted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synopticspread",
			Name:      "runs_started_total",
			Help:      "Ingestion runs started, by model.",
		}, []string{"model"}),
		RunsCompleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synopticspread",
			Name:      "runs_completed_total",
			Help:      "Ingestion runs that reached the complete status, by model.",
		}, []string{"model"}),
		RunsErrored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synopticspread",
			Name:      "runs_errored_total",
			Help:      "Ingestion runs that reached the error status, by model.",
		}, []string{"model"}),
		LeadHoursSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synopticspread",
			Name:      "lead_hours_skipped_total",
			Help:      "Per-(lead hour, variable) processing failures skipped by the orchestrator, by model and failing stage.",
		}, []string{"model", "reason"}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "synopticspread",
			Name:      "fetch_duration_seconds",
			Help:      "Time to fetch and decode one model's lead hours.",
			Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
		}, []string{"model"}),
		RunDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "synopticspread",
			Name:      "run_duration_seconds",
			Help:      "Time from run creation to a terminal status.",
			Buckets:   []float64{5, 15, 30, 60, 120, 300, 600, 1800},
		}, []string{"model"}),
		ActiveRuns: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "synopticspread",
			Name:      "active_runs",
			Help:      "Runs currently in the pending status.",
		}),
		AlertsSent: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synopticspread",
			Name:      "alerts_sent_total",
			Help:      "Alert hook notifications, by outcome.",
		}, []string{"outcome"}),
		SchedulerCoalesced: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "synopticspread",
			Name:      "scheduler_coalesced_total",
			Help:      "Scheduled triggers skipped because a run was already in flight, by model.",
		}, []string{"model"}),
	}
}
