package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "planner"

var (
	materializedUpdates = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "materializer",
		Name:      "updates_total",
		Help:      "Matched occurrences by upsert outcome (created, updated, unchanged, buffered, failed).",
	}, []string{"outcome"})
	materializerRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "materializer",
		Name:      "runs_total",
		Help:      "Materialization runs by result.",
	}, []string{"result"})
	recoveredPanics = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "materializer",
		Name:      "recovered_evaluations_total",
		Help:      "Activity/date evaluations that panicked and were treated as no match.",
	})
	missedUpdates = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sweeper",
		Name:      "missed_total",
		Help:      "Pending updates transitioned to missed.",
	})
	sweeperRuns = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sweeper",
		Name:      "runs_total",
		Help:      "Sweep runs by result.",
	}, []string{"result"})
	jobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "jobs",
		Name:      "duration_seconds",
		Help:      "Duration of dispatched jobs.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"job", "result"})
	bufferSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "buffer",
		Name:      "items",
		Help:      "Writes waiting in the local retry buffer.",
	})
)

func init() {
	prometheus.MustRegister(
		materializedUpdates,
		materializerRuns,
		recoveredPanics,
		missedUpdates,
		sweeperRuns,
		jobDuration,
		bufferSize,
	)
}

// MaterializeCounts mirrors the tallies of a materialization run.
type MaterializeCounts struct {
	Created   int
	Updated   int
	Unchanged int
	Buffered  int
	Failed    int
}

// RecordMaterialization accounts one run. Skipped runs only bump the run counter.
func RecordMaterialization(counts MaterializeCounts, skipped bool, err error) {
	switch {
	case skipped:
		materializerRuns.WithLabelValues("skipped").Inc()
		return
	case err != nil:
		materializerRuns.WithLabelValues("error").Inc()
	default:
		materializerRuns.WithLabelValues("ok").Inc()
	}
	materializedUpdates.WithLabelValues("created").Add(float64(counts.Created))
	materializedUpdates.WithLabelValues("updated").Add(float64(counts.Updated))
	materializedUpdates.WithLabelValues("unchanged").Add(float64(counts.Unchanged))
	materializedUpdates.WithLabelValues("buffered").Add(float64(counts.Buffered))
	materializedUpdates.WithLabelValues("failed").Add(float64(counts.Failed))
}

func RecordRecoveredPanic() {
	recoveredPanics.Inc()
}

// RecordSweep accounts one sweep run.
func RecordSweep(missed int, err error) {
	missedUpdates.Add(float64(missed))
	sweeperRuns.WithLabelValues(resultLabel(err)).Inc()
}

// ObserveJob records how long a dispatched job took.
func ObserveJob(job string, started time.Time, err error) {
	if started.IsZero() {
		return
	}
	jobDuration.WithLabelValues(job, resultLabel(err)).Observe(time.Since(started).Seconds())
}

func SetBufferSize(n int) {
	bufferSize.Set(float64(n))
}

func resultLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
