package outbox

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	recordedPublished = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "stepcount",
		Subsystem: "outbox",
		Name:      "recorded_events_published_total",
		Help:      "stepcount.recorded events written to the step count topic.",
	})

	recordedDeadLettered = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stepcount",
		Subsystem: "outbox",
		Name:      "recorded_events_dead_lettered_total",
		Help:      "stepcount.recorded events parked in outbox_dlq after a Kafka write failed, by topic.",
	}, []string{"topic"})

	dispatchDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "stepcount",
		Subsystem: "outbox",
		Name:      "dispatch_duration_seconds",
		Help:      "Time to claim, publish and mark one batch of recorded step counts.",
		Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(recordedPublished, recordedDeadLettered, dispatchDuration)
}

func observeDispatch(elapsed time.Duration) {
	dispatchDuration.Observe(elapsed.Seconds())
}
