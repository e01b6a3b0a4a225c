package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	splitsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gutterbot",
			Name:      "splits_total",
			Help:      "Total split attempts by result (success, detection_failed, decode_failed, error)",
		},
		[]string{"result"},
	)

	splitDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "gutterbot",
			Name:      "split_duration_seconds",
			Help:      "Duration of a single image split including encode and write",
			Buckets:   prometheus.DefBuckets,
		},
	)

	windowRestarts = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gutterbot",
			Name:      "window_restarts_total",
			Help:      "Scan window restarts from the image center",
		},
	)

	toleranceReductions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gutterbot",
			Name:      "tolerance_reductions_total",
			Help:      "Tolerance reductions applied while scoring columns",
		},
	)

	jobsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "gutterbot",
			Name:      "jobs_total",
			Help:      "Queued split jobs by result (success, dlq, cancelled)",
		},
		[]string{"result"},
	)

	jobRetries = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "gutterbot",
			Name:      "job_retries_total",
			Help:      "Total number of job retries",
		},
	)

	queueDepth = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: "gutterbot",
			Name:      "queue_depth",
			Help:      "Queue depth gauges for stream, delayed and dlq",
		},
		[]string{"type"},
	)
)

var initOnce sync.Once

// Init registers collectors. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(splitsTotal, splitDuration, windowRestarts, toleranceReductions, jobsTotal, jobRetries, queueDepth)
	})
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

// ObserveSplit records one split attempt.
func ObserveSplit(result string, dur time.Duration, restarts, reductions int) {
	splitsTotal.WithLabelValues(result).Inc()
	splitDuration.Observe(dur.Seconds())
	if restarts > 0 {
		windowRestarts.Add(float64(restarts))
	}
	if reductions > 0 {
		toleranceReductions.Add(float64(reductions))
	}
}

func IncJob(result string) { jobsTotal.WithLabelValues(result).Inc() }
func IncRetry()            { jobRetries.Inc() }

func SetQueueDepth(kind string, v int64) { queueDepth.WithLabelValues(kind).Set(float64(v)) }
