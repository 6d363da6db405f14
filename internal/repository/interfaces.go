package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/voluntree/engage-api/internal/model"
)

type EventRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.Event, error)
	// TransitionStatus performs a guarded status update: the row is
	// only touched when its current status equals from. Returns an
	// error when no row matched, which keeps sweeps idempotent.
	TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.EventStatus, archivedAt *time.Time) error
	ListCompletedEndedBefore(ctx context.Context, cutoff time.Time) ([]*model.Event, error)
	// ListArchivedWithPendingRatings returns archived events with at
	// least one application that has not reached both_rated.
	ListArchivedWithPendingRatings(ctx context.Context) ([]*model.Event, error)
	CountArchived(ctx context.Context) (int, error)
	CountArchivedSince(ctx context.Context, since time.Time) (int, error)
	CountPendingArchive(ctx context.Context, cutoff time.Time) (int, error)
}

type ApplicationRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.EventApplication, error)
	GetByEventAndVolunteer(ctx context.Context, eventID, volunteerID uuid.UUID) (*model.EventApplication, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*model.EventApplication, error)
	UpdateRatingStatus(ctx context.Context, id uuid.UUID, status model.RatingStatus) error
}

type RatingRepository interface {
	// Create persists a rating. The unique index on
	// (event_id, rater_id, rated_id) is the race backstop: a
	// violation surfaces as errors.ErrDuplicateRating.
	Create(ctx context.Context, rating *model.EventRating) error
	Exists(ctx context.Context, eventID, raterID, ratedID uuid.UUID) (bool, error)
	ListByRated(ctx context.Context, ratedID uuid.UUID) ([]*model.EventRating, error)
	// ListPendingForVolunteer returns completed participations on
	// completed or archived events where the volunteer has not yet
	// rated the organization.
	ListPendingForVolunteer(ctx context.Context, volunteerID uuid.UUID) ([]*model.PendingRating, error)
	// ListPendingForOrganization returns one entry per completed,
	// not-yet-organization-rated application across the org's events.
	ListPendingForOrganization(ctx context.Context, organizationID uuid.UUID) ([]*model.PendingRating, error)
}

type NotificationRepository interface {
	Create(ctx context.Context, notification *model.Notification) error
	Update(ctx context.Context, notification *model.Notification) error
	Get(ctx context.Context, id uuid.UUID) (*model.Notification, error)
	ListByRecipient(ctx context.Context, recipientID uuid.UUID, filter *model.NotificationFilter) ([]*model.Notification, error)
	UnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error)
	// ExpireStale bulk-transitions every non-terminal notification
	// past its expiry into expired and reports how many rows moved.
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
}

type TemplateRepository interface {
	// GetActiveByName returns the highest active version for the
	// name, or (nil, nil) when none exists.
	GetActiveByName(ctx context.Context, name string) (*model.NotificationTemplate, error)
}

type PreferencesRepository interface {
	// Get returns (nil, nil) when the user has no preferences record.
	Get(ctx context.Context, userID uuid.UUID) (*model.UserNotificationPreferences, error)
	Create(ctx context.Context, prefs *model.UserNotificationPreferences) error
}

type UserRepository interface {
	Get(ctx context.Context, id uuid.UUID) (*model.User, error)
	UpdateRatingAggregate(ctx context.Context, id uuid.UUID, average float64, total int) error
}
