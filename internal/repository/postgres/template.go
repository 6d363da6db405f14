package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/voluntree/engage-api/internal/model"
	"github.com/voluntree/engage-api/internal/repository"
)

type templateRepository struct {
	db *sqlx.DB
}

func NewTemplateRepository(db *sqlx.DB) repository.TemplateRepository {
	return &templateRepository{db: db}
}

func (r *templateRepository) GetActiveByName(ctx context.Context, name string) (*model.NotificationTemplate, error) {
	query := `
		SELECT id, name, version, active, category, subcategory,
			   title_pattern, message_pattern, action_pattern,
			   priority, expiry_days, created_at, updated_at
		FROM notification_templates
		WHERE name = $1 AND active = true
		ORDER BY version DESC
		LIMIT 1
	`
	var tmpl model.NotificationTemplate
	if err := r.db.GetContext(ctx, &tmpl, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get template: %w", err)
	}
	return &tmpl, nil
}
