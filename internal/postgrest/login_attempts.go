package postgrest

import (
	"context"

	"github.com/BradenHooton/farmgate/internal/models"
)

type loginAttemptRow struct {
	AccountID     *int64  `json:"user_account_id"`
	Identifier    string  `json:"login_identifier"`
	Status        string  `json:"status"`
	FailureReason *string `json:"failure_reason"`
	IPAddress     string  `json:"ip_address"`
	AttemptedAt   string  `json:"attempted_at"`
}

// LoginAttemptStore appends rows to auth.login_attempt
type LoginAttemptStore struct {
	client *Client
}

func NewLoginAttemptStore(client *Client) *LoginAttemptStore {
	return &LoginAttemptStore{client: client}
}

func (s *LoginAttemptStore) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	row := loginAttemptRow{
		AccountID:     attempt.AccountID,
		Identifier:    attempt.Identifier,
		Status:        attempt.Status,
		FailureReason: attempt.FailureReason,
		IPAddress:     attempt.IPAddress,
		AttemptedAt:   formatTime(attempt.AttemptedAt),
	}

	var created []struct {
		ID int64 `json:"login_attempt_id"`
	}
	if err := s.client.Create(ctx, "auth", "login_attempt", row, &created); err != nil {
		return err
	}
	if len(created) > 0 {
		attempt.ID = created[0].ID
	}
	return nil
}
