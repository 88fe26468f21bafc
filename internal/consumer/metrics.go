package consumer

import "github.com/prometheus/client_golang/prometheus"

var (
	mirroredEvents = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stepcount",
		Subsystem: "mirror",
		Name:      "events_committed_total",
		Help:      "Step count events handled and committed by the Firebase mirror, by event type.",
	}, []string{"event_type"})

	mirrorFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stepcount",
		Subsystem: "mirror",
		Name:      "push_failures_total",
		Help:      "Step count events left uncommitted because the mirror could not push them, by event type.",
	}, []string{"event_type"})

	malformedRecords = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "stepcount",
		Subsystem: "mirror",
		Name:      "malformed_records_total",
		Help:      "Records on the step count topic skipped because they lacked an event type or valid JSON.",
	}, []string{"topic"})

	lastMirrored = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "stepcount",
		Subsystem: "mirror",
		Name:      "last_committed_event_timestamp_seconds",
		Help:      "Kafka timestamp of the newest step count event the mirror committed.",
	})
)

func init() {
	prometheus.MustRegister(mirroredEvents, mirrorFailures, malformedRecords, lastMirrored)
}

func recordProcessed(msg Message) {
	mirroredEvents.WithLabelValues(msg.EventType).Inc()
	if !msg.Timestamp.IsZero() {
		lastMirrored.Set(float64(msg.Timestamp.Unix()))
	}
}

func recordHandlerError(msg Message) {
	mirrorFailures.WithLabelValues(msg.EventType).Inc()
}

func recordDecodeError(topic string) {
	malformedRecords.WithLabelValues(topic).Inc()
}
