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

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

const notificationColumns = `
	id, recipient_id, category, subcategory, title, message,
	action_text, action_url, priority, status, event_id, group_id,
	sent_at, delivered_at, read_at, clicked_at, expires_at,
	created_at, updated_at
`

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) error {
	query := `
		INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,
				$13, $14, $15, $16, $17, $18, $19)
	`
	_, err := r.db.ExecContext(ctx, query,
		n.ID, n.RecipientID, n.Category, n.Subcategory, n.Title, n.Message,
		n.ActionText, n.ActionURL, n.Priority, n.Status, n.EventID, n.GroupID,
		n.SentAt, n.DeliveredAt, n.ReadAt, n.ClickedAt, n.ExpiresAt,
		n.CreatedAt, n.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) Update(ctx context.Context, n *model.Notification) error {
	query := `
		UPDATE notifications
		SET status = $1, sent_at = $2, delivered_at = $3, read_at = $4,
			clicked_at = $5, updated_at = $6
		WHERE id = $7
	`
	n.UpdatedAt = time.Now()

	result, err := r.db.ExecContext(ctx, query,
		n.Status, n.SentAt, n.DeliveredAt, n.ReadAt, n.ClickedAt,
		n.UpdatedAt, n.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("notification not found")
	}

	return nil
}

func (r *notificationRepository) Get(ctx context.Context, id uuid.UUID) (*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE id = $1`

	var n model.Notification
	if err := r.db.GetContext(ctx, &n, query, id); err != nil {
		return nil, fmt.Errorf("failed to get notification: %w", err)
	}
	return &n, nil
}

func (r *notificationRepository) ListByRecipient(ctx context.Context, recipientID uuid.UUID, filter *model.NotificationFilter) ([]*model.Notification, error) {
	query := `SELECT ` + notificationColumns + ` FROM notifications WHERE recipient_id = $1`
	args := []interface{}{recipientID}
	argCount := 2

	if filter != nil {
		if filter.Status != "" {
			query += fmt.Sprintf(" AND status = $%d", argCount)
			args = append(args, filter.Status)
			argCount++
		}
		if filter.Category != "" {
			query += fmt.Sprintf(" AND category = $%d", argCount)
			args = append(args, filter.Category)
			argCount++
		}
	}

	query += " ORDER BY created_at DESC"

	limit, offset := 20, 0
	if filter != nil {
		if filter.Limit > 0 {
			limit = filter.Limit
		}
		if filter.Offset > 0 {
			offset = filter.Offset
		}
	}
	query += fmt.Sprintf(" LIMIT $%d OFFSET $%d", argCount, argCount+1)
	args = append(args, limit, offset)

	var notifications []*model.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}

func (r *notificationRepository) UnreadCount(ctx context.Context, recipientID uuid.UUID) (int, error) {
	query := `
		SELECT COUNT(*) FROM notifications
		WHERE recipient_id = $1 AND status IN ($2, $3, $4)
	`
	var count int
	err := r.db.GetContext(ctx, &count, query, recipientID,
		model.NotificationStatusPending,
		model.NotificationStatusSent,
		model.NotificationStatusDelivered,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count unread notifications: %w", err)
	}
	return count, nil
}

func (r *notificationRepository) ExpireStale(ctx context.Context, now time.Time) (int64, error) {
	query := `
		UPDATE notifications
		SET status = $1, updated_at = $2
		WHERE expires_at < $2
		AND status NOT IN ($1, $3, $4, $5)
	`
	result, err := r.db.ExecContext(ctx, query,
		model.NotificationStatusExpired,
		now,
		model.NotificationStatusRead,
		model.NotificationStatusActed,
		model.NotificationStatusArchived,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to expire notifications: %w", err)
	}
	return result.RowsAffected()
}
