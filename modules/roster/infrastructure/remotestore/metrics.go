package remotestore

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	remoteRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "roster_remote_requests_total",
		Help: "HTTP requests sent to the roster store by method and status (0 = no response).",
	}, []string{"method", "status"})

	remoteRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "roster_remote_request_duration_seconds",
		Help:    "Latency of roster store HTTP requests.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	// 0 closed, 1 half-open, 2 open.
	breakerState = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "roster_remote_breaker_state",
		Help: "Circuit breaker state of the roster store client.",
	})
)

func recordRequest(method string, status int, err error, elapsed time.Duration) {
	label := strconv.Itoa(status)
	if status == 0 && err != nil {
		label = "error"
	}
	remoteRequests.WithLabelValues(method, label).Inc()
	remoteRequestDuration.WithLabelValues(method).Observe(elapsed.Seconds())
}
