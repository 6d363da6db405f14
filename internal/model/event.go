package model

import (
	"time"

	"github.com/google/uuid"
)

type EventStatus string

const (
	EventStatusDraft      EventStatus = "draft"
	EventStatusPublished  EventStatus = "published"
	EventStatusInProgress EventStatus = "in_progress"
	EventStatusCompleted  EventStatus = "completed"
	EventStatusArchived   EventStatus = "archived"
)

type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "pending"
	ApplicationStatusAccepted  ApplicationStatus = "accepted"
	ApplicationStatusRejected  ApplicationStatus = "rejected"
	ApplicationStatusCompleted ApplicationStatus = "completed"
)

// RatingStatus tracks bilateral rating completion for one application.
// It only ever moves toward RatingStatusBothRated.
type RatingStatus string

const (
	RatingStatusPending           RatingStatus = "pending"
	RatingStatusVolunteerRated    RatingStatus = "volunteer_rated"
	RatingStatusOrganizationRated RatingStatus = "organization_rated"
	RatingStatusBothRated         RatingStatus = "both_rated"
)

type Event struct {
	ID             uuid.UUID   `json:"id" db:"id"`
	OrganizationID uuid.UUID   `json:"organization_id" db:"organization_id"`
	Title          string      `json:"title" db:"title"`
	Description    string      `json:"description,omitempty" db:"description"`
	StartTime      time.Time   `json:"start_time" db:"start_time"`
	EndTime        time.Time   `json:"end_time" db:"end_time"`
	Status         EventStatus `json:"status" db:"status"`
	ArchivedAt     *time.Time  `json:"archived_at,omitempty" db:"archived_at"`
	CreatedAt      time.Time   `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time   `json:"updated_at" db:"updated_at"`
}

// EventApplication is one volunteer's participation in one event.
// Unique per (event_id, volunteer_id).
type EventApplication struct {
	ID           uuid.UUID         `json:"id" db:"id"`
	EventID      uuid.UUID         `json:"event_id" db:"event_id"`
	VolunteerID  uuid.UUID         `json:"volunteer_id" db:"volunteer_id"`
	Status       ApplicationStatus `json:"status" db:"status"`
	RatingStatus RatingStatus      `json:"rating_status" db:"rating_status"`
	CreatedAt    time.Time         `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time         `json:"updated_at" db:"updated_at"`
}

// MergeRatingStatus joins the current rating status with a newly
// satisfied direction. The join never moves backward: both_rated
// absorbs everything, and the two single-sided states combine into
// both_rated.
func MergeRatingStatus(current RatingStatus, incoming RatingStatus) RatingStatus {
	if current == RatingStatusBothRated || incoming == RatingStatusBothRated {
		return RatingStatusBothRated
	}
	if current == RatingStatusPending {
		return incoming
	}
	if current == incoming {
		return current
	}
	return RatingStatusBothRated
}
