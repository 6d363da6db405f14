package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/voluntree/engage-api/internal/model"
	"github.com/voluntree/engage-api/internal/repository"
)

type eventRepository struct {
	db *sqlx.DB
}

func NewEventRepository(db *sqlx.DB) repository.EventRepository {
	return &eventRepository{db: db}
}

const eventColumns = `
	id, organization_id, title, description, start_time, end_time,
	status, archived_at, created_at, updated_at
`

func (r *eventRepository) Get(ctx context.Context, id uuid.UUID) (*model.Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	var event model.Event
	if err := r.db.GetContext(ctx, &event, query, id); err != nil {
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return &event, nil
}

func (r *eventRepository) TransitionStatus(ctx context.Context, id uuid.UUID, from, to model.EventStatus, archivedAt *time.Time) error {
	query := `
		UPDATE events
		SET status = $1, archived_at = $2, updated_at = $3
		WHERE id = $4 AND status = $5
	`
	result, err := r.db.ExecContext(ctx, query, to, archivedAt, time.Now(), id, from)
	if err != nil {
		return fmt.Errorf("failed to transition event status: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("event %s is not in status %s", id, from)
	}

	return nil
}

func (r *eventRepository) ListCompletedEndedBefore(ctx context.Context, cutoff time.Time) ([]*model.Event, error) {
	query := `
		SELECT ` + eventColumns + `
		FROM events
		WHERE status = $1 AND end_time < $2
		ORDER BY end_time ASC
	`
	var events []*model.Event
	if err := r.db.SelectContext(ctx, &events, query, model.EventStatusCompleted, cutoff); err != nil {
		return nil, fmt.Errorf("failed to list completed events: %w", err)
	}
	return events, nil
}

func (r *eventRepository) ListArchivedWithPendingRatings(ctx context.Context) ([]*model.Event, error) {
	query := `
		SELECT DISTINCT e.id, e.organization_id, e.title, e.description,
			   e.start_time, e.end_time, e.status, e.archived_at,
			   e.created_at, e.updated_at
		FROM events e
		JOIN event_applications a ON a.event_id = e.id
		WHERE e.status = $1
		AND a.status = $2
		AND a.rating_status != $3
		ORDER BY e.archived_at ASC
	`
	var events []*model.Event
	err := r.db.SelectContext(ctx, &events, query,
		model.EventStatusArchived,
		model.ApplicationStatusCompleted,
		model.RatingStatusBothRated,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list archived events pending ratings: %w", err)
	}
	return events, nil
}

func (r *eventRepository) CountArchived(ctx context.Context) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM events WHERE status = $1`
	if err := r.db.GetContext(ctx, &count, query, model.EventStatusArchived); err != nil {
		return 0, fmt.Errorf("failed to count archived events: %w", err)
	}
	return count, nil
}

func (r *eventRepository) CountArchivedSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM events WHERE status = $1 AND archived_at >= $2`
	if err := r.db.GetContext(ctx, &count, query, model.EventStatusArchived, since); err != nil {
		return 0, fmt.Errorf("failed to count recently archived events: %w", err)
	}
	return count, nil
}

func (r *eventRepository) CountPendingArchive(ctx context.Context, cutoff time.Time) (int, error) {
	var count int
	query := `SELECT COUNT(*) FROM events WHERE status = $1 AND end_time < $2`
	if err := r.db.GetContext(ctx, &count, query, model.EventStatusCompleted, cutoff); err != nil {
		return 0, fmt.Errorf("failed to count events pending archive: %w", err)
	}
	return count, nil
}
