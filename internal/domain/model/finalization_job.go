package model

import (
	"time"
)

// FinalizationJob asks the worker to record ratings for every registrant of
// an ended contest. It travels through the Redis queue as JSON.
type FinalizationJob struct {
	ID          string    `json:"id"`
	ContestID   string    `json:"contest_id"`
	RequestedBy string    `json:"requested_by,omitempty"`
	Attempts    int       `json:"attempts"`
	EnqueuedAt  time.Time `json:"enqueued_at"`
}

type FinalizationSummary struct {
	ContestID string `json:"contest_id"`
	Processed int    `json:"processed"`
	Recorded  int    `json:"recorded"` // new entries; the rest already existed
	Failed    int    `json:"failed"`
}
