package model

import "time"

// ContestReport is a participant's final view of an ended contest. It holds
// no generation timestamp so that rebuilding it from the same data gives the
// same value.
type ContestReport struct {
	ContestID   string        `json:"contest_id"`
	ContestName string        `json:"contest_name"`
	StartTime   time.Time     `json:"start_time"`
	EndTime     time.Time     `json:"end_time"`
	Result      ContestResult `json:"result"`
	Rating      RatingSummary `json:"rating"`
}
