// Package metrics provides Prometheus metrics for observability.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// HTTPRequestsTotal counts total HTTP requests by method, path, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// HTTPRequestDuration measures request latency in seconds.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path"},
	)

	// DBQueryDuration measures database query latency.
	DBQueryDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "db_query_duration_seconds",
			Help:    "Database query duration in seconds",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
		[]string{"operation"},
	)

	// ActiveConnections tracks current active connections.
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_connections",
			Help: "Number of active connections",
		},
	)

	// FormSubmissionsTotal counts form submissions by form and outcome.
	FormSubmissionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_submissions_total",
			Help: "Total number of form submissions",
		},
		[]string{"form", "outcome"},
	)

	// FormRateLimitedTotal counts submissions rejected by a form limiter.
	FormRateLimitedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "form_rate_limited_total",
			Help: "Total number of form submissions rejected by the sliding window limiter",
		},
		[]string{"form"},
	)

	// RateLimitedTotal counts requests rejected by the per-IP guard.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limited_total",
			Help: "Total number of rate-limited requests",
		},
	)

	// BuildsStartedTotal counts simulated builds.
	BuildsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "builds_started_total",
			Help: "Total number of simulated builds started",
		},
	)

	// BuildsFinishedTotal counts simulated builds by outcome (done, cancelled).
	BuildsFinishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "builds_finished_total",
			Help: "Total number of simulated builds that ended",
		},
		[]string{"outcome"},
	)

	// ActiveBuilds tracks builds currently in progress.
	ActiveBuilds = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_builds",
			Help: "Number of simulated builds in progress",
		},
	)

	// NotificationsTotal counts relay deliveries by channel and status.
	NotificationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "notifications_total",
			Help: "Total number of relay notifications",
		},
		[]string{"channel", "status"},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordRequest records an HTTP request metric.
func RecordRequest(method, path string, status int, duration time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	HTTPRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// RecordDBQuery records a database query duration.
func RecordDBQuery(operation string, duration time.Duration) {
	DBQueryDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordFormSubmission records the outcome of a form submission.
func RecordFormSubmission(form, outcome string) {
	FormSubmissionsTotal.WithLabelValues(form, outcome).Inc()
}

// RecordFormRateLimited records a submission blocked by a form limiter.
func RecordFormRateLimited(form string) {
	FormRateLimitedTotal.WithLabelValues(form).Inc()
}

// RecordRateLimited records a rate-limited request.
func RecordRateLimited() {
	RateLimitedTotal.Inc()
}

// RecordBuildStarted records a new simulated build.
func RecordBuildStarted() {
	BuildsStartedTotal.Inc()
	ActiveBuilds.Inc()
}

// RecordBuildFinished records the end of a simulated build.
func RecordBuildFinished(outcome string) {
	BuildsFinishedTotal.WithLabelValues(outcome).Inc()
	ActiveBuilds.Dec()
}

// RecordNotification records a relay delivery attempt.
func RecordNotification(channel, status string) {
	NotificationsTotal.WithLabelValues(channel, status).Inc()
}
