package model

import (
	"time"

	"github.com/google/uuid"
)

type UserType string

const (
	UserTypeVolunteer    UserType = "volunteer"
	UserTypeOrganization UserType = "organization"
)

// User carries the rating aggregate maintained by the consensus
// engine. Profile and auth fields live outside this core.
type User struct {
	ID            uuid.UUID `json:"id" db:"id"`
	Type          UserType  `json:"type" db:"type"`
	DisplayName   string    `json:"display_name" db:"display_name"`
	Email         string    `json:"email" db:"email"`
	AverageRating float64   `json:"average_rating" db:"average_rating"`
	TotalRatings  int       `json:"total_ratings" db:"total_ratings"`
	CreatedAt     time.Time `json:"created_at" db:"created_at"`
	UpdatedAt     time.Time `json:"updated_at" db:"updated_at"`
}
