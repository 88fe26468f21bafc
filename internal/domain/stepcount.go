package domain

import "time"

// StepCount is a single cumulative step-counter sample.
//
// ID is assigned by whichever store persists the record; the local store and the
// remote API number their copies independently.
type StepCount struct {
	ID    int64
	Count int
}

// StepCountRecord is the server-side representation of a step count accepted by the API.
type StepCountRecord struct {
	ID         int64
	Count      int
	ReceivedAt time.Time
}

// Cursor marks a position in the id-ordered record list.
type Cursor struct {
	AfterID int64
}
