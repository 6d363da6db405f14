package model

import (
	"time"

	"github.com/google/uuid"
)

const (
	MinRatingValue = 1
	MaxRatingValue = 5
)

// EventRating is one directional rating between two parties for one
// event. Immutable once written; unique per (event_id, rater_id,
// rated_id).
type EventRating struct {
	ID        uuid.UUID `json:"id" db:"id"`
	EventID   uuid.UUID `json:"event_id" db:"event_id"`
	RaterID   uuid.UUID `json:"rater_id" db:"rater_id"`
	RatedID   uuid.UUID `json:"rated_id" db:"rated_id"`
	Rating    int       `json:"rating" db:"rating"`
	Feedback  string    `json:"feedback,omitempty" db:"feedback"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// RatingSummary is the derived aggregate view of all ratings a user
// has ever received.
type RatingSummary struct {
	UserID             uuid.UUID   `json:"user_id"`
	AverageRating      float64     `json:"average_rating"`
	TotalRatings       int         `json:"total_ratings"`
	RatingDistribution map[int]int `json:"rating_distribution"`
}

// PendingRating describes one outstanding rating obligation surfaced
// to the UI: the event plus the counterpart still waiting to be rated.
type PendingRating struct {
	Event         *Event    `json:"event"`
	CounterpartID uuid.UUID `json:"counterpart_id"`
	RaterIsOrg    bool      `json:"rater_is_org"`
	ApplicationID uuid.UUID `json:"application_id"`
}
