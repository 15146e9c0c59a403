package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() { register(pollAttempts, pollOutcomes, pollWaitSeconds) }

var (
	pollAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "producer_poll_attempts_total",
			Help: "Poll requests sent to external producers.",
		},
		[]string{"producer"},
	)

	pollOutcomes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "producer_jobs_total",
			Help: "Polled jobs by final outcome.",
		},
		[]string{"producer", "outcome"}, // succeeded|failed|canceled|timeout|aborted
	)

	pollWaitSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "producer_job_wait_seconds",
			Help:    "Time from submission to a terminal state.",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 600, 1200},
		},
		[]string{"producer"},
	)
)

func IncPollAttempt(producer string) {
	pollAttempts.WithLabelValues(norm(producer)).Inc()
}

func ObservePollOutcome(producer, outcome string, waited time.Duration) {
	pollOutcomes.WithLabelValues(norm(producer), norm(outcome)).Inc()
	pollWaitSeconds.WithLabelValues(norm(producer)).Observe(waited.Seconds())
}
