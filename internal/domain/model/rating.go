package model

import "time"

// RatingHistoryEntry is written once per (user, contest) and never updated.
type RatingHistoryEntry struct {
	ID                string    `json:"id"`
	UserID            string    `json:"user_id"`
	ContestID         string    `json:"contest_id"`
	Date              time.Time `json:"date"`
	OldRating         int       `json:"old_rating"`
	NewRating         int       `json:"new_rating"`
	RatingChange      int       `json:"rating_change"`
	Rank              int       `json:"rank"`
	TotalParticipants int       `json:"total_participants"`
}

type RatingSummary struct {
	Old    int `json:"old"`
	New    int `json:"new"`
	Change int `json:"change"`
}

func (e *RatingHistoryEntry) Summary() RatingSummary {
	return RatingSummary{Old: e.OldRating, New: e.NewRating, Change: e.RatingChange}
}
