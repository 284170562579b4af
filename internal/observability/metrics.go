package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// DatabaseQueryLatency records database query latency by operation and table.
	DatabaseQueryLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "beacon_database_query_latency_seconds",
		Help:    "Database query latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"operation", "table"})

	// VotesCast counts vote requests by target type and outcome (created, flipped, unchanged).
	VotesCast = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_votes_cast_total",
		Help: "Total number of vote requests by target type and outcome",
	}, []string{"target", "outcome"})

	// ReportsFiled counts moderation reports by kind.
	ReportsFiled = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_reports_filed_total",
		Help: "Total number of moderation reports filed",
	}, []string{"kind"})

	// ReportsResolved counts report status transitions by resulting status.
	ReportsResolved = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_reports_status_changes_total",
		Help: "Total number of report status changes by new status",
	}, []string{"status"})

	// AuthzDenials counts authorization refusals by action.
	AuthzDenials = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_authz_denials_total",
		Help: "Total number of authorization denials by action",
	}, []string{"action"})

	// CacheLookups counts cache-aside lookups by cache name and result (hit, miss, error).
	CacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_cache_lookups_total",
		Help: "Cache lookups by cache and result",
	}, []string{"cache", "result"})

	// RetentionPurged counts rows removed by retention jobs.
	RetentionPurged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "beacon_retention_purged_total",
		Help: "Rows removed by scheduled retention jobs",
	}, []string{"job"})
)

// TrackQuery returns a function that records query latency when called (e.g. defer).
func TrackQuery(operation, table string) func() {
	start := time.Now()
	return func() {
		DatabaseQueryLatency.WithLabelValues(operation, table).Observe(time.Since(start).Seconds())
	}
}
