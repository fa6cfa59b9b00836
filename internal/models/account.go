package models

import (
	"time"
)

// Account statuses stored in auth.user_account.status
const (
	AccountStatusActive   = "ACTIVE"
	AccountStatusInactive = "INACTIVE"
)

// Account is a credential record in auth.user_account.
type Account struct {
	ID                  int64      `db:"user_account_id"`
	Email               string     `db:"email"`
	PhoneNumber         string     `db:"phone_number"`
	PasswordHash        string     `db:"password_hash"`
	Status              string     `db:"status"`
	FailedLoginAttempts int        `db:"failed_login_attempts"`
	LastLoginAt         *time.Time `db:"last_login_at"`
	FullName            string     `db:"full_name"`
	CreatedAt           time.Time  `db:"created_at"`
	UpdatedAt           *time.Time `db:"updated_at"`
}

// IsActive reports whether the account may sign in.
func (a *Account) IsActive() bool {
	return a.Status == AccountStatusActive
}

// IsLocked reports whether the failure counter has reached the lockout threshold.
func (a *Account) IsLocked(threshold int) bool {
	return threshold > 0 && a.FailedLoginAttempts >= threshold
}
