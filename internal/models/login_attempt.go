package models

import "time"

// Login attempt outcomes
const (
	LoginStatusSuccess = "SUCCESS"
	LoginStatusFailed  = "FAILED"
)

// Failure reasons recorded on FAILED attempts
const (
	LoginFailureUserNotFound    = "User not found"
	LoginFailureInvalidPassword = "Invalid password"
	LoginFailureInactive        = "Account inactive"
	LoginFailureLocked          = "Account locked"
)

// LoginAttempt is an append-only record of a single sign-in attempt.
type LoginAttempt struct {
	ID            int64     `db:"login_attempt_id"`
	AccountID     *int64    `db:"user_account_id"`
	Identifier    string    `db:"login_identifier"`
	Status        string    `db:"status"`
	FailureReason *string   `db:"failure_reason"`
	IPAddress     string    `db:"ip_address"`
	AttemptedAt   time.Time `db:"attempted_at"`
}

// NewFailedAttempt builds a FAILED attempt with the given reason.
func NewFailedAttempt(accountID *int64, identifier, ip, reason string, at time.Time) *LoginAttempt {
	return &LoginAttempt{
		AccountID:     accountID,
		Identifier:    identifier,
		Status:        LoginStatusFailed,
		FailureReason: &reason,
		IPAddress:     ip,
		AttemptedAt:   at,
	}
}

// NewSuccessfulAttempt builds a SUCCESS attempt.
func NewSuccessfulAttempt(accountID int64, identifier, ip string, at time.Time) *LoginAttempt {
	return &LoginAttempt{
		AccountID:   &accountID,
		Identifier:  identifier,
		Status:      LoginStatusSuccess,
		IPAddress:   ip,
		AttemptedAt: at,
	}
}
