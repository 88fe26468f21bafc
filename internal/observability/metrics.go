package observability

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "stepcount"

// Publish outcomes used as the "outcome" label.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

var (
	sensorEventsCounter = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sensor",
		Name:      "events_total",
		Help:      "Number of step-counter events accepted by the screen.",
	})

	localInsertCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "local_inserts_total",
		Help:      "Local store insert attempts grouped by outcome.",
	}, []string{"outcome"})

	publishCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "publish_total",
		Help:      "Remote publish attempts grouped by target and outcome.",
	}, []string{"target", "outcome"})

	publishDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "publish_duration_seconds",
		Help:      "Time spent publishing a single step count to a remote target.",
		Buckets:   prometheus.ExponentialBuckets(0.005, 2, 12),
	}, []string{"target"})

	queueDepthGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "queue_depth",
		Help:      "Step counts waiting for a sync worker.",
	})

	lastSyncedGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "sync",
		Name:      "last_event_synced_timestamp_seconds",
		Help:      "Unix timestamp of the most recent step count processed by a sync worker.",
	})

	recordPersistGauge = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "persistence",
		Name:      "last_record_persisted_timestamp_seconds",
		Help:      "Unix timestamp of the most recent step count persisted to Postgres.",
	})
)

func init() {
	prometheus.MustRegister(
		sensorEventsCounter,
		localInsertCounter,
		publishCounter,
		publishDuration,
		queueDepthGauge,
		lastSyncedGauge,
		recordPersistGauge,
	)
}

// RecordSensorEvent counts a normalized step-counter event.
func RecordSensorEvent() {
	sensorEventsCounter.Inc()
}

// RecordLocalInsert counts a local store insert attempt.
func RecordLocalInsert(err error) {
	localInsertCounter.WithLabelValues(outcome(err)).Inc()
}

// RecordPublish counts a publish attempt to target and observes its latency.
func RecordPublish(target string, elapsed time.Duration, err error) {
	publishCounter.WithLabelValues(target, outcome(err)).Inc()
	publishDuration.WithLabelValues(target).Observe(elapsed.Seconds())
}

// SetQueueDepth reports the number of queued sync jobs.
func SetQueueDepth(n int) {
	queueDepthGauge.Set(float64(n))
}

// RecordEventSynced updates the sync watermark gauge.
func RecordEventSynced(ts time.Time) {
	if ts.IsZero() {
		return
	}
	lastSyncedGauge.Set(float64(ts.Unix()))
}

// RecordStepCountPersisted updates the server-side persistence watermark gauge.
func RecordStepCountPersisted(ts time.Time) {
	if ts.IsZero() {
		return
	}
	recordPersistGauge.Set(float64(ts.Unix()))
}

func outcome(err error) string {
	if err != nil {
		return OutcomeFailure
	}
	return OutcomeSuccess
}
