package postgrest

import (
	"context"
	"net/url"
	"time"

	"github.com/BradenHooton/farmgate/internal/models"
)

// NotificationStore tracks OTP deliveries in notify.notification
type NotificationStore struct {
	client *Client
}

func NewNotificationStore(client *Client) *NotificationStore {
	return &NotificationStore{client: client}
}

func (s *NotificationStore) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	body := map[string]interface{}{
		"user_account_id": n.AccountID,
		"channel":         n.Channel,
		"message_type":    n.MessageType,
		"status":          n.Status,
	}

	var rows []struct {
		ID int64 `json:"notification_id"`
	}
	if err := s.client.Create(ctx, "notify", "notification", body, &rows); err != nil {
		return nil, err
	}

	created := *n
	if len(rows) > 0 {
		created.ID = rows[0].ID
	}
	return &created, nil
}

// UpdateStatus sets the delivery status; SENT also stamps sent_at.
func (s *NotificationStore) UpdateStatus(ctx context.Context, id int64, status string) error {
	body := map[string]interface{}{"status": status}
	if status == models.NotificationStatusSent {
		body["sent_at"] = formatTime(time.Now())
	}

	filter := url.Values{"notification_id": {eqInt(id)}, "select": {"notification_id"}}
	var rows []struct {
		ID int64 `json:"notification_id"`
	}
	if err := s.client.Update(ctx, "notify", "notification", filter, body, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return models.ErrNotFound
	}
	return nil
}
