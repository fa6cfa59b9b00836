package postgrest

import (
	"context"
	"fmt"
)

// PasswordResetStore consumes an OTP and then replaces the password.
// PostgREST offers no transaction across two tables, so the OTP is claimed
// first: a failure afterwards burns the OTP but never leaves it reusable.
type PasswordResetStore struct {
	otps     *OTPStore
	accounts *AccountStore
}

func NewPasswordResetStore(client *Client) *PasswordResetStore {
	return &PasswordResetStore{otps: NewOTPStore(client), accounts: NewAccountStore(client)}
}

// ResetWithOTP returns models.ErrNotFound when the OTP was already claimed
func (s *PasswordResetStore) ResetWithOTP(ctx context.Context, otpID, accountID int64, passwordHash string) error {
	if err := s.otps.MarkUsed(ctx, otpID); err != nil {
		return err
	}
	if err := s.accounts.UpdatePassword(ctx, accountID, passwordHash); err != nil {
		return fmt.Errorf("otp %d claimed but password not updated: %w", otpID, err)
	}
	return nil
}
