package metrics

import (
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	fhirIngestionDuration   *prometheus.HistogramVec
	fhirIngestionTotal      *prometheus.CounterVec
	fhirResourcesProcessed  *prometheus.CounterVec
	fhirPatientsStored      prometheus.Counter
	fhirPatientsFailed      *prometheus.CounterVec
	fhirHTTPRequestsTotal   *prometheus.CounterVec
	fhirHTTPRequestDuration *prometheus.HistogramVec

	fhirOnce sync.Once
)

// initializeFHIRMetrics creates and registers the ingestion metrics once
func initializeFHIRMetrics() {
	fhirOnce.Do(func() {
		fhirIngestionDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fhir_ingestion_duration_seconds",
				Help:    "Time spent ingesting patient records from the FHIR server",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"status"},
		)

		fhirIngestionTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fhir_ingestion_total",
				Help: "Total number of FHIR ingestion runs",
			},
			[]string{"status"},
		)

		fhirResourcesProcessed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fhir_resources_processed_total",
				Help: "Total number of FHIR resources mapped into patient records",
			},
			[]string{"resource"},
		)

		fhirPatientsStored = prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "fhir_patients_stored_total",
				Help: "Patient records written to the record store",
			},
		)

		fhirPatientsFailed = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fhir_patients_failed_total",
				Help: "Patient records that could not be fetched or stored",
			},
			[]string{"error_type"},
		)

		fhirHTTPRequestsTotal = prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "fhir_http_requests_total",
				Help: "Total number of HTTP requests to FHIR server",
			},
			[]string{"resource", "status_code"},
		)

		fhirHTTPRequestDuration = prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fhir_http_request_duration_seconds",
				Help:    "Time spent making HTTP requests to FHIR server",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"resource"},
		)

		GetInstance().registry.MustRegister(
			fhirIngestionDuration,
			fhirIngestionTotal,
			fhirResourcesProcessed,
			fhirPatientsStored,
			fhirPatientsFailed,
			fhirHTTPRequestsTotal,
			fhirHTTPRequestDuration,
		)
	})
}

// RecordIngestionRun records the outcome of a whole ingestion run
func RecordIngestionRun(startTime time.Time, status string, stored, failed int) {
	if !BusinessEnabled() {
		return
	}
	initializeFHIRMetrics()

	fhirIngestionDuration.WithLabelValues(status).Observe(time.Since(startTime).Seconds())
	fhirIngestionTotal.WithLabelValues(status).Inc()
	fhirPatientsStored.Add(float64(stored))
	if failed > 0 {
		fhirPatientsFailed.WithLabelValues("ingestion_error").Add(float64(failed))
	}
}

// RecordResourcesProcessed counts FHIR resources of one type mapped into records.
func RecordResourcesProcessed(resource string, count int) {
	if !BusinessEnabled() || count == 0 {
		return
	}
	initializeFHIRMetrics()
	fhirResourcesProcessed.WithLabelValues(resource).Add(float64(count))
}

// RecordFHIRRequest records metrics for one request to the FHIR server
func RecordFHIRRequest(resource string, startTime time.Time, statusCode int) {
	if !BusinessEnabled() {
		return
	}
	initializeFHIRMetrics()

	fhirHTTPRequestsTotal.WithLabelValues(resource, strconv.Itoa(statusCode)).Inc()
	fhirHTTPRequestDuration.WithLabelValues(resource).Observe(time.Since(startTime).Seconds())
}
