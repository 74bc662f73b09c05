package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	insightComputationsTotal *prometheus.CounterVec
	insightUnavailableTotal  *prometheus.CounterVec
	insightStaleTotal        prometheus.Counter
	insightComputeDuration   *prometheus.HistogramVec
	patientSelectionsTotal   prometheus.Counter
	dashboardSessionsActive  prometheus.Gauge

	insightOnce sync.Once
)

func initializeInsightMetrics() {
	insightOnce.Do(func() {
		insightComputationsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insight_computations_total",
				Help: "Insights accepted by a dashboard session, by classification",
			},
			[]string{"classification"},
		)

		insightUnavailableTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "insight_unavailable_total",
				Help: "Selections that ended without an insight, by reason",
			},
			[]string{"reason"},
		)

		insightStaleTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "insight_stale_results_total",
				Help: "Insight results discarded because the selection changed",
			},
		)

		insightComputeDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "insight_compute_duration_seconds",
				Help:    "Time spent in the risk model",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
			[]string{"model"},
		)

		patientSelectionsTotal = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "dashboard_patient_selections_total",
				Help: "Patient selections across all dashboard sessions",
			},
		)

		dashboardSessionsActive = prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "dashboard_sessions_active",
				Help: "Open dashboard sessions",
			},
		)

		GetInstance().registry.MustRegister(
			insightComputationsTotal,
			insightUnavailableTotal,
			insightStaleTotal,
			insightComputeDuration,
			patientSelectionsTotal,
			dashboardSessionsActive,
		)
	})
}

// RecordInsightComputation counts an accepted insight
func RecordInsightComputation(classification string) {
	if !BusinessEnabled() {
		return
	}
	initializeInsightMetrics()
	insightComputationsTotal.WithLabelValues(classification).Inc()
}

// RecordInsightUnavailable counts a selection that settled without an insight.
func RecordInsightUnavailable(reason string) {
	if !BusinessEnabled() {
		return
	}
	initializeInsightMetrics()
	insightUnavailableTotal.WithLabelValues(reason).Inc()
}

func RecordStaleInsight() {
	if !BusinessEnabled() {
		return
	}
	initializeInsightMetrics()
	insightStaleTotal.Inc()
}

// RecordInsightDuration observes the time model spent on one patient.
func RecordInsightDuration(model string, d time.Duration) {
	if !BusinessEnabled() {
		return
	}
	initializeInsightMetrics()
	insightComputeDuration.WithLabelValues(model).Observe(d.Seconds())
}

func RecordSelection() {
	if !BusinessEnabled() {
		return
	}
	initializeInsightMetrics()
	patientSelectionsTotal.Inc()
}

// SetActiveSessions sets the open session gauge
func SetActiveSessions(n int) {
	if !BusinessEnabled() {
		return
	}
	initializeInsightMetrics()
	dashboardSessionsActive.Set(float64(n))
}
