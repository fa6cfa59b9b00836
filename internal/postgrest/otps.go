package postgrest

import (
	"context"
	"net/url"
	"time"

	"github.com/BradenHooton/farmgate/internal/models"
)

const otpSelect = "otp_id,user_account_id,otp_code,purpose,expires_at,is_used,created_at"

type otpRow struct {
	ID        int64      `json:"otp_id"`
	AccountID int64      `json:"user_account_id"`
	CodeHash  string     `json:"otp_code"`
	Purpose   string     `json:"purpose"`
	ExpiresAt *timestamp `json:"expires_at"`
	IsUsed    *bool      `json:"is_used"`
	CreatedAt *timestamp `json:"created_at"`
}

func (r otpRow) toModel() *models.OTP {
	return &models.OTP{
		ID:        r.ID,
		AccountID: r.AccountID,
		CodeHash:  r.CodeHash,
		Purpose:   r.Purpose,
		ExpiresAt: r.ExpiresAt.value(),
		IsUsed:    r.IsUsed != nil && *r.IsUsed,
		CreatedAt: r.CreatedAt.value(),
	}
}

// OTPStore manages auth.otp rows
type OTPStore struct {
	client *Client
}

func NewOTPStore(client *Client) *OTPStore {
	return &OTPStore{client: client}
}

func (s *OTPStore) Create(ctx context.Context, otp *models.OTP) (*models.OTP, error) {
	body := map[string]interface{}{
		"user_account_id": otp.AccountID,
		"otp_code":        otp.CodeHash,
		"purpose":         otp.Purpose,
		"expires_at":      formatTime(otp.ExpiresAt),
		"is_used":         false,
	}

	var rows []otpRow
	if err := s.client.Create(ctx, "auth", "otp", body, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		created := *otp
		return &created, nil
	}
	return rows[0].toModel(), nil
}

// GetLatestUnused returns the most recently created unused OTP for the
// account and purpose, or ErrNotFound.
func (s *OTPStore) GetLatestUnused(ctx context.Context, accountID int64, purpose string) (*models.OTP, error) {
	query := url.Values{
		"select":          {otpSelect},
		"user_account_id": {eqInt(accountID)},
		"purpose":         {eq(purpose)},
		"is_used":         {"eq.false"},
		"order":           {"created_at.desc,otp_id.desc"},
		"limit":           {"1"},
	}

	var rows []otpRow
	if err := s.client.Get(ctx, "auth", "otp", query, &rows); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, models.ErrNotFound
	}
	return rows[0].toModel(), nil
}

// MarkUsed claims the OTP. The is_used filter lets only one caller flip a
// given row; an already used or missing OTP yields ErrNotFound.
func (s *OTPStore) MarkUsed(ctx context.Context, id int64) error {
	filter := url.Values{"otp_id": {eqInt(id)}, "is_used": {"eq.false"}, "select": {"otp_id"}}

	var rows []struct {
		ID int64 `json:"otp_id"`
	}
	if err := s.client.Update(ctx, "auth", "otp", filter, map[string]bool{"is_used": true}, &rows); err != nil {
		return err
	}
	if len(rows) == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteExpiredBefore removes OTPs whose expiry is earlier than cutoff
func (s *OTPStore) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	filter := url.Values{"expires_at": {lt(formatTime(cutoff))}, "select": {"otp_id"}}

	var rows []struct {
		ID int64 `json:"otp_id"`
	}
	if err := s.client.Delete(ctx, "auth", "otp", filter, &rows); err != nil {
		return 0, err
	}
	return int64(len(rows)), nil
}
