package metrics

import (
	"regexp"
	"strconv"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// RequestDuration tracks HTTP request duration in seconds by method, path, status.
	RequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	// RequestTotal counts HTTP requests by method, path, status.
	RequestTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// ExecutorRuns counts executor invocations by outcome (ok, error, skipped).
	ExecutorRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedule_executor_runs_total",
			Help: "Total number of schedule executor runs by outcome",
		},
		[]string{"outcome"},
	)

	// ExecutorRunDuration tracks how long one executor run takes.
	ExecutorRunDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "schedule_executor_run_duration_seconds",
			Help:    "Duration of one schedule executor run in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	// SchedulesProcessed counts per-schedule outcomes within executor runs.
	SchedulesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schedules_processed_total",
			Help: "Total number of schedules processed by result (executed, failed)",
		},
		[]string{"result"},
	)

	// ProfilePushes counts SimpleMDM push calls by action and outcome.
	ProfilePushes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "profile_pushes_total",
			Help: "Total number of profile install/remove pushes by action and outcome",
		},
		[]string{"action", "outcome"},
	)

	// QuickAssignments counts quick-assignment transitions by status.
	QuickAssignments = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "quick_assignments_total",
			Help: "Total number of quick profile assignment transitions by status",
		},
		[]string{"status"},
	)
)

var (
	numericPathSegment = regexp.MustCompile(`/[0-9]+(/|$)`)
	initOnce           sync.Once
)

func init() {
	initOnce.Do(func() {
		prometheus.MustRegister(RequestDuration, RequestTotal,
			ExecutorRuns, ExecutorRunDuration, SchedulesProcessed,
			ProfilePushes, QuickAssignments)
	})
}

// NormalizePath reduces cardinality by replacing numeric path segments with {id}.
// E.g. /schedules/123 -> /schedules/{id}.
func NormalizePath(path string) string {
	return numericPathSegment.ReplaceAllString(path, "/{id}$1")
}

// RecordRequest records duration and count for an HTTP request. Call from middleware with method, path, statusCode, duration.
func RecordRequest(method, path string, statusCode int, durationSeconds float64) {
	path = NormalizePath(path)
	status := strconv.Itoa(statusCode)
	RequestDuration.WithLabelValues(method, path, status).Observe(durationSeconds)
	RequestTotal.WithLabelValues(method, path, status).Inc()
}

// RecordPush records one profile push call. action is install_profile or
// remove_profile; ok is whether the call landed 2xx.
func RecordPush(action string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	ProfilePushes.WithLabelValues(action, outcome).Inc()
}
