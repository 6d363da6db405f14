package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/voluntree/engage-api/internal/model"
	"github.com/voluntree/engage-api/internal/repository"
)

type preferencesRepository struct {
	db *sqlx.DB
}

func NewPreferencesRepository(db *sqlx.DB) repository.PreferencesRepository {
	return &preferencesRepository{db: db}
}

// Per-category toggles live in a jsonb column; the global toggles are
// flat columns.
type preferencesRow struct {
	UserID          uuid.UUID `db:"user_id"`
	GlobalEmail     bool      `db:"global_email"`
	GlobalPush      bool      `db:"global_push"`
	GlobalInApp     bool      `db:"global_in_app"`
	GlobalSMS       bool      `db:"global_sms"`
	Categories      []byte    `db:"categories"`
	Timezone        string    `db:"timezone"`
	DigestFrequency string    `db:"digest_frequency"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

func (r *preferencesRepository) Get(ctx context.Context, userID uuid.UUID) (*model.UserNotificationPreferences, error) {
	query := `
		SELECT user_id, global_email, global_push, global_in_app, global_sms,
			   categories, timezone, digest_frequency, created_at, updated_at
		FROM user_notification_preferences
		WHERE user_id = $1
	`
	var row preferencesRow
	if err := r.db.GetContext(ctx, &row, query, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get preferences: %w", err)
	}

	prefs := &model.UserNotificationPreferences{
		UserID: row.UserID,
		Global: model.ChannelToggles{
			Email: row.GlobalEmail,
			Push:  row.GlobalPush,
			InApp: row.GlobalInApp,
			SMS:   row.GlobalSMS,
		},
		Timezone:        row.Timezone,
		DigestFrequency: row.DigestFrequency,
		CreatedAt:       row.CreatedAt,
		UpdatedAt:       row.UpdatedAt,
	}
	if len(row.Categories) > 0 {
		if err := json.Unmarshal(row.Categories, &prefs.Categories); err != nil {
			return nil, fmt.Errorf("failed to decode category toggles: %w", err)
		}
	}
	return prefs, nil
}

func (r *preferencesRepository) Create(ctx context.Context, prefs *model.UserNotificationPreferences) error {
	categories, err := json.Marshal(prefs.Categories)
	if err != nil {
		return fmt.Errorf("failed to encode category toggles: %w", err)
	}

	now := time.Now()
	prefs.CreatedAt = now
	prefs.UpdatedAt = now

	query := `
		INSERT INTO user_notification_preferences (
			user_id, global_email, global_push, global_in_app, global_sms,
			categories, timezone, digest_frequency, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (user_id) DO NOTHING
	`
	_, err = r.db.ExecContext(ctx, query,
		prefs.UserID,
		prefs.Global.Email,
		prefs.Global.Push,
		prefs.Global.InApp,
		prefs.Global.SMS,
		categories,
		prefs.Timezone,
		prefs.DigestFrequency,
		prefs.CreatedAt,
		prefs.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create preferences: %w", err)
	}
	return nil
}
