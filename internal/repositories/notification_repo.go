package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/farmgate/internal/database"
	"github.com/BradenHooton/farmgate/internal/models"
	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

const notificationTable = "notify.notification"

type NotificationRepository struct {
	pool *pgxpool.Pool
}

func NewNotificationRepository(db *database.DB) *NotificationRepository {
	return &NotificationRepository{pool: db.Pool}
}

func (r *NotificationRepository) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	stmt, args, err := psql.Insert(notificationTable).
		Columns("user_account_id", "channel", "message_type", "status").
		Values(n.AccountID, n.Channel, n.MessageType, n.Status).
		Suffix("RETURNING notification_id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build notification insert: %w", err)
	}

	created := *n
	if err := r.pool.QueryRow(ctx, stmt, args...).Scan(&created.ID); err != nil {
		return nil, fmt.Errorf("failed to create notification: %w", database.MapPostgresError(err))
	}
	return &created, nil
}

// UpdateStatus sets the delivery status; SENT also stamps sent_at.
func (r *NotificationRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	q := psql.Update(notificationTable).
		Set("status", status).
		Where(squirrel.Eq{"notification_id": id})
	if status == models.NotificationStatusSent {
		q = q.Set("sent_at", time.Now().UTC())
	}

	stmt, args, err := q.ToSql()
	if err != nil {
		return fmt.Errorf("failed to build notification update: %w", err)
	}

	tag, err := r.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to update notification: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
