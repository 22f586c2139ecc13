package model

import (
	"time"
)

type Contest struct {
	ID               string           `json:"id"`
	Slug             string           `json:"slug"`
	Name             string           `json:"name"`
	Description      string           `json:"description"`
	StartTime        time.Time        `json:"start_time"`
	EndTime          time.Time        `json:"end_time"`
	MaxParticipants  int              `json:"max_participants"` // 0 means unlimited
	IsPublic         bool             `json:"is_public"`
	CreatedByID      *string          `json:"created_by_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
	Problems         []ContestProblem `json:"problems,omitempty"`
	ParticipantCount int              `json:"participant_count"`
}

type ContestProblem struct {
	ProblemID string `json:"problem_id"`
	Marks     int    `json:"marks"`
	SortOrder int    `json:"sort_order"`
}

// MaxScore is the sum of marks over the contest's problems.
func (c *Contest) MaxScore() int {
	total := 0
	for _, p := range c.Problems {
		total += p.Marks
	}
	return total
}

// IsFull reports whether no further registrations fit.
func (c *Contest) IsFull() bool {
	return c.MaxParticipants > 0 && c.ParticipantCount >= c.MaxParticipants
}

type Registration struct {
	UserID       string    `json:"user_id"`
	ContestID    string    `json:"contest_id"`
	RegisteredAt time.Time `json:"registered_at"`
}
