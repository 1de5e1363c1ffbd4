// PhishSync - Phishing Simulation Results Ingestion
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/phishsync

// Package metrics holds the Prometheus instrumentation for PhishSync.
// Everything registers on the default registry through promauto and is
// served by the operator HTTP surface at /metrics.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Row outcomes reported by the reconciler.
const (
	OutcomeInserted  = "inserted"
	OutcomeSkipped   = "skipped"
	OutcomeRejected  = "rejected"
	OutcomeMalformed = "malformed"
	OutcomeFailed    = "failed"
)

// Upstream request outcomes.
const (
	UpstreamOK        = "ok"
	UpstreamThrottled = "throttled"
	UpstreamFailed    = "failed"
)

var (
	// Record store
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phishsync_db_query_duration_seconds",
			Help:    "Duration of record store queries in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"operation", "table"},
	)

	DBQueryErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishsync_db_query_errors_total",
			Help: "Total number of record store query errors",
		},
		[]string{"operation", "table", "error_type"},
	)

	// Upstream API
	UpstreamRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishsync_upstream_requests_total",
			Help: "Total number of requests sent to the phishing simulation API",
		},
		[]string{"endpoint", "outcome"}, // outcome: ok, throttled, failed
	)

	UpstreamRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phishsync_upstream_request_duration_seconds",
			Help:    "Upstream API request latency in seconds",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"endpoint"},
	)

	ThrottleWaitSeconds = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "phishsync_throttle_wait_seconds_total",
			Help: "Total time spent waiting on upstream throttling signals",
		},
	)

	TenantsBlocked = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "phishsync_tenant_cooldowns_total",
			Help: "Number of times a tenant was placed in cooldown after exhausting retries",
		},
	)

	ActiveCooldowns = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "phishsync_tenant_cooldowns_active",
			Help: "Current number of tenants in cooldown",
		},
	)

	// Ingestion
	RowsProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishsync_rows_total",
			Help: "Rows seen by the reconciler by kind and outcome",
		},
		[]string{"kind", "outcome"},
	)

	ScenariosProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishsync_scenarios_total",
			Help: "Scenarios handled during runs by result",
		},
		[]string{"result"}, // downloaded, skipped, deferred, failed
	)

	RunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "phishsync_run_duration_seconds",
			Help:    "Duration of ingestion runs in seconds",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200, 3600},
		},
	)

	RunErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishsync_run_errors_total",
			Help: "Total number of ingestion runs that ended with a fatal error",
		},
		[]string{"error_type"},
	)

	RunLastSuccess = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "phishsync_run_last_success_timestamp",
			Help: "Unix timestamp of the last successful ingestion run",
		},
	)

	// Operator HTTP surface
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishsync_http_requests_total",
			Help: "Total number of operator HTTP requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "phishsync_http_request_duration_seconds",
			Help:    "Operator HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "endpoint"},
	)

	// Circuit breaker
	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phishsync_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	CircuitBreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishsync_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breaker",
		},
		[]string{"name", "result"}, // result: success, failure, rejected, ignored
	)

	CircuitBreakerConsecutiveFailures = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "phishsync_circuit_breaker_consecutive_failures",
			Help: "Current number of consecutive failures",
		},
		[]string{"name"},
	)

	CircuitBreakerTransitions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "phishsync_circuit_breaker_state_transitions_total",
			Help: "Total number of circuit breaker state transitions",
		},
		[]string{"name", "from_state", "to_state"},
	)
)

// RecordDBQuery records a record store query metric
func RecordDBQuery(operation, table string, duration time.Duration, err error) {
	DBQueryDuration.WithLabelValues(operation, table).Observe(duration.Seconds())
	if err != nil {
		errorType := err.Error()
		// Keep label cardinality bounded
		if len(errorType) > 50 {
			errorType = errorType[:50]
		}
		DBQueryErrors.WithLabelValues(operation, table, errorType).Inc()
	}
}

// RecordUpstreamRequest records one upstream API call.
func RecordUpstreamRequest(endpoint, outcome string, duration time.Duration) {
	UpstreamRequestsTotal.WithLabelValues(endpoint, outcome).Inc()
	UpstreamRequestDuration.WithLabelValues(endpoint).Observe(duration.Seconds())
}

// RecordThrottleWait adds time spent sleeping on a throttling signal.
func RecordThrottleWait(d time.Duration) {
	if d > 0 {
		ThrottleWaitSeconds.Add(d.Seconds())
	}
}

// RecordTenantBlocked counts a tenant entering cooldown and updates the active gauge.
func RecordTenantBlocked(active int) {
	TenantsBlocked.Inc()
	ActiveCooldowns.Set(float64(active))
}

// SetActiveCooldowns sets the active cooldown gauge.
func SetActiveCooldowns(active int) {
	ActiveCooldowns.Set(float64(active))
}

// RecordRows records per-outcome row counts for one reconciled file.
func RecordRows(kind string, inserted, skipped, rejected, malformed, failed int) {
	add := func(outcome string, n int) {
		if n > 0 {
			RowsProcessed.WithLabelValues(kind, outcome).Add(float64(n))
		}
	}
	add(OutcomeInserted, inserted)
	add(OutcomeSkipped, skipped)
	add(OutcomeRejected, rejected)
	add(OutcomeMalformed, malformed)
	add(OutcomeFailed, failed)
}

// RecordScenario counts a scenario by result.
func RecordScenario(result string) {
	ScenariosProcessed.WithLabelValues(result).Inc()
}

// RecordRun records a finished ingestion run. An empty errorType means success.
func RecordRun(duration time.Duration, errorType string) {
	RunDuration.Observe(duration.Seconds())
	if errorType != "" {
		RunErrors.WithLabelValues(errorType).Inc()
		return
	}
	RunLastSuccess.Set(float64(time.Now().Unix()))
}

// RecordAPIRequest records an operator HTTP request metric
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}
