package models

import "time"

// Notification channels, message types and delivery statuses
const (
	NotificationChannelEmail = "EMAIL"
	NotificationTypeOTP      = "OTP"

	NotificationStatusPending = "PENDING"
	NotificationStatusSent    = "SENT"
	NotificationStatusFailed  = "FAILED"
)

// Notification tracks delivery of an outbound message in notify.notification.
type Notification struct {
	ID          int64      `db:"notification_id"`
	AccountID   int64      `db:"user_account_id"`
	Channel     string     `db:"channel"`
	MessageType string     `db:"message_type"`
	Status      string     `db:"status"`
	SentAt      *time.Time `db:"sent_at"`
}
