package services

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/iota-uz/roster-sync/modules/roster/domain/roster"
)

var (
	importRows = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster",
		Subsystem: "import",
		Name:      "rows_total",
		Help:      "Total number of processed import rows broken down by outcome.",
	}, []string{"outcome"})

	importRowDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "roster",
		Subsystem: "import",
		Name:      "row_duration_seconds",
		Help:      "Time spent processing a single import row.",
		Buckets:   prometheus.DefBuckets,
	})

	importJobs = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster",
		Subsystem: "import",
		Name:      "jobs_total",
		Help:      "Total number of import jobs broken down by result.",
	}, []string{"result"})

	importJobsInFlight = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "roster",
		Subsystem: "import",
		Name:      "jobs_in_flight",
		Help:      "Number of import jobs currently executing.",
	})

	orgCreates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster",
		Subsystem: "org",
		Name:      "creates_total",
		Help:      "Total number of organization create attempts broken down by result.",
	}, []string{"result"})

	storeCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "roster",
		Subsystem: "store",
		Name:      "calls_total",
		Help:      "Total number of remote store calls broken down by operation and result.",
	}, []string{"op", "result"})

	storeCallDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "roster",
		Subsystem: "store",
		Name:      "call_duration_seconds",
		Help:      "Latency of remote store calls by operation.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"op"})
)

func recordRow(outcome roster.Outcome, elapsed time.Duration) {
	importRows.WithLabelValues(string(outcome)).Inc()
	importRowDuration.Observe(elapsed.Seconds())
}

func recordJob(summary roster.JobSummary) {
	result := "finished"
	if summary.Cancelled {
		result = "cancelled"
	}
	importJobs.WithLabelValues(result).Inc()
}

func recordOrgCreate(result string) {
	orgCreates.WithLabelValues(result).Inc()
}

func recordStoreCall(op string, start time.Time, err error) {
	result := "ok"
	switch {
	case err == nil:
	case errors.Is(err, roster.ErrConflict):
		result = "conflict"
	case errors.Is(err, roster.ErrNotFound):
		result = "not_found"
	default:
		result = "error"
	}
	storeCalls.WithLabelValues(op, result).Inc()
	storeCallDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
