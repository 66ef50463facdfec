package metrics

import (
	"time"

	"github.com/contactd/contactd/internal/observability"
)

// Submission pipeline metrics following Prometheus conventions
const (
	SubmissionsTotal    = "contact_submissions_total"
	DispatchTotal       = "contact_dispatch_total"
	DispatchDuration    = "contact_dispatch_duration_ms"
	RateLimitEntries    = "contact_ratelimit_entries"
	SearchRequestsTotal = "contact_search_requests_total"
	HealthCheckTotal    = "app_health_check_total"
	HealthCheckDuration = "app_health_check_duration_ms"
	ServerStartTime     = "app_server_start_time_seconds"
)

// Submission outcomes recorded under the "outcome" label.
const (
	OutcomeAccepted  = "accepted"
	OutcomeThrottled = "throttled"
	OutcomeRejected  = "rejected"
	OutcomeHoneypot  = "honeypot"
	OutcomeFailed    = "failed"
)

// RecordSubmission counts one pass through the contact pipeline.
func RecordSubmission(outcome string) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Counter(
		SubmissionsTotal,
		1,
		map[string]string{"outcome": outcome},
	)
}

// RecordDispatch records a dispatcher call and its latency.
func RecordDispatch(dispatcher string, delivered bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := "delivered"
	if !delivered {
		status = "failed"
	}

	_ = observability.TelemetrySystem.Counter(
		DispatchTotal,
		1,
		map[string]string{
			"dispatcher": dispatcher,
			"status":     status,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		DispatchDuration,
		duration,
		map[string]string{"dispatcher": dispatcher},
	)
}

// SetRateLimitEntries publishes the current size of the rate-limit table.
func SetRateLimitEntries(count int) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(RateLimitEntries, float64(count), nil)
}

// RecordSearch counts relayed search queries by result.
func RecordSearch(success bool) {
	if observability.TelemetrySystem == nil {
		return
	}
	status := "success"
	if !success {
		status = "failure"
	}
	_ = observability.TelemetrySystem.Counter(
		SearchRequestsTotal,
		1,
		map[string]string{"status": status},
	)
}

// RecordHealthCheck records a health check execution
func RecordHealthCheck(checkName string, healthy bool, duration time.Duration) {
	if observability.TelemetrySystem == nil {
		return
	}

	status := "healthy"
	if !healthy {
		status = "unhealthy"
	}

	_ = observability.TelemetrySystem.Counter(
		HealthCheckTotal,
		1,
		map[string]string{
			"check":  checkName,
			"status": status,
		},
	)
	_ = observability.TelemetrySystem.Histogram(
		HealthCheckDuration,
		duration,
		map[string]string{"check": checkName},
	)
}

// SetServerStartTime records the server start time (Unix timestamp)
func SetServerStartTime(timestamp int64) {
	if observability.TelemetrySystem == nil {
		return
	}
	_ = observability.TelemetrySystem.Gauge(ServerStartTime, float64(timestamp), nil)
}
