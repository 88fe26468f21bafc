// Package events defines the payloads published to the event stream.
package events

import "time"

// StepCountRecordedType is the outbox event type for StepCountRecorded.
const StepCountRecordedType = "stepcount.recorded"

// StepCountRecorded is emitted when the API accepts a step count.
type StepCountRecorded struct {
	ID         int64     `json:"id"`
	Count      int       `json:"count"`
	ReceivedAt time.Time `json:"received_at"`
}
