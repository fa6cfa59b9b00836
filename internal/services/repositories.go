package services

import (
	"context"
	"time"

	"github.com/BradenHooton/farmgate/internal/models"
)

// AccountRepository is implemented by repositories.AccountRepository and
// postgrest.AccountStore.
type AccountRepository interface {
	GetByIdentifier(ctx context.Context, identifier string) (*models.Account, error)
	GetByEmail(ctx context.Context, email string) (*models.Account, error)
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	IncrementFailedLogins(ctx context.Context, account *models.Account) (int, error)
	RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error
	ResetFailedLogins(ctx context.Context, id int64) error
}

type LoginAttemptRepository interface {
	Record(ctx context.Context, attempt *models.LoginAttempt) error
}

type OTPRepository interface {
	Create(ctx context.Context, otp *models.OTP) (*models.OTP, error)
	GetLatestUnused(ctx context.Context, accountID int64, purpose string) (*models.OTP, error)
}

// PasswordResetter claims an OTP and replaces the account password. An OTP
// that is already claimed yields models.ErrNotFound and the password is left
// untouched.
type PasswordResetter interface {
	ResetWithOTP(ctx context.Context, otpID, accountID int64, passwordHash string) error
}

type RBACRepository interface {
	GetRoleForAccount(ctx context.Context, accountID int64) (*models.Role, error)
	ListPermissionsForRole(ctx context.Context, roleID int64) ([]models.Permission, error)
}

type ProfileRepository interface {
	GetFullName(ctx context.Context, accountID int64) (string, error)
}

type AuditLogRepository interface {
	Create(ctx context.Context, entry *models.AuditEntry) error
}

type NotificationRepository interface {
	Create(ctx context.Context, n *models.Notification) (*models.Notification, error)
	UpdateStatus(ctx context.Context, id int64, status string) error
}

// ResetThrottle limits how often one account can request a reset OTP
type ResetThrottle interface {
	Allow(ctx context.Context, key string, window time.Duration) (bool, error)
}

// SecretHasher is satisfied by *pkgauth.Hasher
type SecretHasher interface {
	Hash(ctx context.Context, secret string) (string, error)
	Verify(ctx context.Context, secret, digest string) (bool, error)
}

// TokenIssuer is satisfied by *auth.TokenManager
type TokenIssuer interface {
	Issue(claims *models.SessionClaims) (string, time.Time, error)
}

// Store bundles one backend's repositories. main fills it from either the
// pgx repositories or the PostgREST stores.
type Store struct {
	Accounts      AccountRepository
	LoginAttempts LoginAttemptRepository
	OTPs          OTPRepository
	Resets        PasswordResetter
	RBAC          RBACRepository
	Profiles      ProfileRepository
	AuditLog      AuditLogRepository
	Notifications NotificationRepository
}
