package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/petmatch/clinic-api/internal/model"
	"github.com/petmatch/clinic-api/internal/repository"
)

type notificationRepository struct {
	db *sqlx.DB
}

func NewNotificationRepository(db *sqlx.DB) repository.NotificationRepository {
	return &notificationRepository{db: db}
}

func (r *notificationRepository) Create(ctx context.Context, notification *model.Notification) error {
	query := `
		INSERT INTO notifications (id, user_id, type, title, message, extra, is_read, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	notification.CreatedAt = time.Now()
	notification.UpdatedAt = time.Now()

	_, err := r.db.ExecContext(ctx, query,
		notification.ID,
		notification.UserID,
		notification.Type,
		notification.Title,
		notification.Message,
		notification.Extra,
		notification.IsRead,
		notification.CreatedAt,
		notification.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create notification: %w", err)
	}
	return nil
}

// ExistsByTypeAndTag checks for a notification of the given type carrying the
// invite token tag. This is the check half of the check-then-create
// idempotency guarantee.
func (r *notificationRepository) ExistsByTypeAndTag(ctx context.Context, userID uuid.UUID, typ, tokenTag string) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM notifications
			WHERE user_id = $1 AND type = $2 AND extra->>'invite_token' = $3
		)
	`
	var exists bool
	if err := r.db.GetContext(ctx, &exists, query, userID, typ, tokenTag); err != nil {
		return false, fmt.Errorf("failed to check notification existence: %w", err)
	}
	return exists, nil
}

func (r *notificationRepository) DeleteByTypeAndTag(ctx context.Context, userID uuid.UUID, typ, tokenTag string) error {
	query := `
		DELETE FROM notifications
		WHERE user_id = $1 AND type = $2 AND extra->>'invite_token' = $3
	`
	if _, err := r.db.ExecContext(ctx, query, userID, typ, tokenTag); err != nil {
		return fmt.Errorf("failed to delete notification: %w", err)
	}
	return nil
}

func (r *notificationRepository) ListForUser(ctx context.Context, userID uuid.UUID, unreadOnly bool) ([]*model.Notification, error) {
	query := `SELECT * FROM notifications WHERE user_id = $1 ORDER BY created_at DESC`
	if unreadOnly {
		query = `SELECT * FROM notifications WHERE user_id = $1 AND is_read = false ORDER BY created_at DESC`
	}
	var notifications []*model.Notification
	if err := r.db.SelectContext(ctx, &notifications, query, userID); err != nil {
		return nil, fmt.Errorf("failed to list notifications: %w", err)
	}
	return notifications, nil
}
