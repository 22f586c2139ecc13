package model

import (
	"time"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

type User struct {
	ID             string    `json:"id"`
	Username       string    `json:"username"`
	Email          string    `json:"email"`
	HashedPassword string    `json:"-"` // Not exposed
	Role           string    `json:"role"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// RatingProfile is the public rating view of a user.
type RatingProfile struct {
	UserID          string `json:"user_id"`
	CurrentRating   int    `json:"current_rating"`
	MaxRating       int    `json:"max_rating"`
	ContestsRated   int    `json:"contests_rated"`
	LastRatingDelta int    `json:"last_rating_change"`
}
