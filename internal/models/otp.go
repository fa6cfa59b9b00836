package models

import "time"

// OTPPurposePasswordReset is the only purpose currently issued.
const OTPPurposePasswordReset = "PASSWORD_RESET"

// OTP is a hashed one-time code. The plaintext code is never stored.
type OTP struct {
	ID        int64     `db:"otp_id"`
	AccountID int64     `db:"user_account_id"`
	CodeHash  string    `db:"otp_code"`
	Purpose   string    `db:"purpose"`
	ExpiresAt time.Time `db:"expires_at"`
	IsUsed    bool      `db:"is_used"`
	CreatedAt time.Time `db:"created_at"`
}

// IsExpired reports whether now is strictly after the expiry instant.
func (o *OTP) IsExpired(now time.Time) bool {
	return now.After(o.ExpiresAt)
}
