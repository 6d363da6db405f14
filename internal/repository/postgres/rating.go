package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/voluntree/engage-api/internal/model"
	"github.com/voluntree/engage-api/internal/repository"
	apperrors "github.com/voluntree/engage-api/pkg/errors"
)

// lib/pq code for unique constraint violations
const pqUniqueViolation = "23505"

type ratingRepository struct {
	db *sqlx.DB
}

func NewRatingRepository(db *sqlx.DB) repository.RatingRepository {
	return &ratingRepository{db: db}
}

func (r *ratingRepository) Create(ctx context.Context, rating *model.EventRating) error {
	query := `
		INSERT INTO event_ratings (
			id, event_id, rater_id, rated_id, rating, feedback, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	rating.ID = uuid.New()
	rating.CreatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		rating.ID,
		rating.EventID,
		rating.RaterID,
		rating.RatedID,
		rating.Rating,
		rating.Feedback,
		rating.CreatedAt,
	)
	if err != nil {
		// The unique index on (event_id, rater_id, rated_id)
		// serializes two submissions racing for the same triple:
		// the loser lands here.
		if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == pqUniqueViolation {
			return apperrors.ErrDuplicateRating
		}
		return fmt.Errorf("failed to create rating: %w", err)
	}
	return nil
}

func (r *ratingRepository) Exists(ctx context.Context, eventID, raterID, ratedID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM event_ratings
			WHERE event_id = $1 AND rater_id = $2 AND rated_id = $3
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, eventID, raterID, ratedID); err != nil {
		return false, fmt.Errorf("failed to check rating existence: %w", err)
	}
	return exists, nil
}

func (r *ratingRepository) ListByRated(ctx context.Context, ratedID uuid.UUID) ([]*model.EventRating, error) {
	query := `
		SELECT id, event_id, rater_id, rated_id, rating, feedback, created_at
		FROM event_ratings
		WHERE rated_id = $1
		ORDER BY created_at ASC
	`
	var ratings []*model.EventRating
	if err := r.db.SelectContext(ctx, &ratings, query, ratedID); err != nil {
		return nil, fmt.Errorf("failed to list ratings: %w", err)
	}
	return ratings, nil
}

func (r *ratingRepository) ListPendingForVolunteer(ctx context.Context, volunteerID uuid.UUID) ([]*model.PendingRating, error) {
	query := `
		SELECT e.id, e.organization_id, e.title, e.description,
			   e.start_time, e.end_time, e.status, e.archived_at,
			   e.created_at, e.updated_at,
			   a.id AS application_id
		FROM event_applications a
		JOIN events e ON e.id = a.event_id
		WHERE a.volunteer_id = $1
		AND a.status = $2
		AND e.status IN ($3, $4)
		AND NOT EXISTS (
			SELECT 1 FROM event_ratings r
			WHERE r.event_id = e.id AND r.rater_id = $1
		)
		ORDER BY e.end_time DESC
	`
	rows, err := r.db.QueryxContext(ctx, query,
		volunteerID,
		model.ApplicationStatusCompleted,
		model.EventStatusCompleted,
		model.EventStatusArchived,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending volunteer ratings: %w", err)
	}
	defer rows.Close()

	var pending []*model.PendingRating
	for rows.Next() {
		var (
			event model.Event
			appID uuid.UUID
		)
		if err := rows.Scan(
			&event.ID, &event.OrganizationID, &event.Title, &event.Description,
			&event.StartTime, &event.EndTime, &event.Status, &event.ArchivedAt,
			&event.CreatedAt, &event.UpdatedAt,
			&appID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending rating: %w", err)
		}
		pending = append(pending, &model.PendingRating{
			Event:         &event,
			CounterpartID: event.OrganizationID,
			RaterIsOrg:    false,
			ApplicationID: appID,
		})
	}
	return pending, rows.Err()
}

func (r *ratingRepository) ListPendingForOrganization(ctx context.Context, organizationID uuid.UUID) ([]*model.PendingRating, error) {
	query := `
		SELECT e.id, e.organization_id, e.title, e.description,
			   e.start_time, e.end_time, e.status, e.archived_at,
			   e.created_at, e.updated_at,
			   a.id AS application_id, a.volunteer_id
		FROM event_applications a
		JOIN events e ON e.id = a.event_id
		WHERE e.organization_id = $1
		AND a.status = $2
		AND e.status IN ($3, $4)
		AND NOT EXISTS (
			SELECT 1 FROM event_ratings r
			WHERE r.event_id = e.id
			AND r.rater_id = $1
			AND r.rated_id = a.volunteer_id
		)
		ORDER BY e.end_time DESC
	`
	rows, err := r.db.QueryxContext(ctx, query,
		organizationID,
		model.ApplicationStatusCompleted,
		model.EventStatusCompleted,
		model.EventStatusArchived,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending organization ratings: %w", err)
	}
	defer rows.Close()

	var pending []*model.PendingRating
	for rows.Next() {
		var (
			event       model.Event
			appID       uuid.UUID
			volunteerID uuid.UUID
		)
		if err := rows.Scan(
			&event.ID, &event.OrganizationID, &event.Title, &event.Description,
			&event.StartTime, &event.EndTime, &event.Status, &event.ArchivedAt,
			&event.CreatedAt, &event.UpdatedAt,
			&appID, &volunteerID,
		); err != nil {
			return nil, fmt.Errorf("failed to scan pending rating: %w", err)
		}
		pending = append(pending, &model.PendingRating{
			Event:         &event,
			CounterpartID: volunteerID,
			RaterIsOrg:    true,
			ApplicationID: appID,
		})
	}
	return pending, rows.Err()
}
