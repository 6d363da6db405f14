package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/voluntree/engage-api/internal/model"
	"github.com/voluntree/engage-api/internal/repository"
)

type applicationRepository struct {
	base
}

func NewApplicationRepository(db *sqlx.DB) repository.ApplicationRepository {
	return &applicationRepository{base{db: db}}
}

const applicationColumns = `
	id, event_id, volunteer_id, status, rating_status, created_at, updated_at
`

func (r *applicationRepository) Get(ctx context.Context, id uuid.UUID) (*model.EventApplication, error) {
	query := `SELECT ` + applicationColumns + ` FROM event_applications WHERE id = $1`

	var app model.EventApplication
	if err := r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return &app, nil
}

func (r *applicationRepository) GetByEventAndVolunteer(ctx context.Context, eventID, volunteerID uuid.UUID) (*model.EventApplication, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM event_applications
		WHERE event_id = $1 AND volunteer_id = $2
	`
	var app model.EventApplication
	if err := r.db.GetContext(ctx, &app, query, eventID, volunteerID); err != nil {
		return nil, fmt.Errorf("failed to get application: %w", err)
	}
	return &app, nil
}

func (r *applicationRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]*model.EventApplication, error) {
	query := `
		SELECT ` + applicationColumns + `
		FROM event_applications
		WHERE event_id = $1
		ORDER BY created_at ASC
	`
	var apps []*model.EventApplication
	if err := r.db.SelectContext(ctx, &apps, query, eventID); err != nil {
		return nil, fmt.Errorf("failed to list applications: %w", err)
	}
	return apps, nil
}

// UpdateRatingStatus merges the requested status into the stored one
// under a row lock. Two submissions racing on the same application
// both land their side; neither can regress the other's.
func (r *applicationRepository) UpdateRatingStatus(ctx context.Context, id uuid.UUID, status model.RatingStatus) error {
	return r.withTx(ctx, func(tx *sqlx.Tx) error {
		var current model.RatingStatus
		err := tx.GetContext(ctx, &current,
			`SELECT rating_status FROM event_applications WHERE id = $1 FOR UPDATE`, id)
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("application not found")
		}
		if err != nil {
			return fmt.Errorf("failed to lock application: %w", err)
		}

		merged := model.MergeRatingStatus(current, status)
		_, err = tx.ExecContext(ctx,
			`UPDATE event_applications SET rating_status = $1, updated_at = $2 WHERE id = $3`,
			merged, time.Now(), id)
		if err != nil {
			return fmt.Errorf("failed to update rating status: %w", err)
		}
		return nil
	})
}
