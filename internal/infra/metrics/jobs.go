package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		jobsSubmittedTotal,
		jobsFinalizedTotal,
		jobDurationSeconds,
		dispatchFailuresTotal,
		jobsSweptTotal,
		modelLoops,
	)
}

var (
	jobsSubmittedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "advisory_jobs_submitted_total",
			Help: "Total number of advisory jobs accepted by the submitter.",
		},
	)

	jobsFinalizedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_jobs_finalized_total",
			Help: "Total number of advisory jobs that reached a terminal status.",
		},
		[]string{"status"}, // 'completed', 'failed'
	)

	jobDurationSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "advisory_job_duration_seconds",
			Help:    "Wall time from pickup to terminal write.",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 20, 40, 80, 160},
		},
		[]string{"status"},
	)

	dispatchFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "advisory_dispatch_failures_total",
			Help: "Jobs persisted as PROCESSING whose dispatch to a worker failed.",
		},
		[]string{"driver"}, // 'pool', 'nats'
	)

	jobsSweptTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "advisory_jobs_swept_total",
			Help: "Stale PROCESSING jobs marked FAILED by the sweeper.",
		},
	)

	modelLoops = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "advisory_model_loops",
			Help:    "Number of model invocations per job.",
			Buckets: []float64{1, 2, 3, 4, 5, 6},
		},
	)
)

func IncJobSubmitted() {
	jobsSubmittedTotal.Inc()
}

func ObserveJobFinalized(status string, d time.Duration) {
	jobsFinalizedTotal.WithLabelValues(norm(status)).Inc()
	jobDurationSeconds.WithLabelValues(norm(status)).Observe(d.Seconds())
}

func IncDispatchFailure(driver string) {
	dispatchFailuresTotal.WithLabelValues(norm(driver)).Inc()
}

func AddJobsSwept(n int) {
	jobsSweptTotal.Add(float64(n))
}

func ObserveModelLoops(n int) {
	modelLoops.Observe(float64(n))
}
