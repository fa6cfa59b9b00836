package services

import (
	"context"
	"sync"
	"time"

	"github.com/BradenHooton/farmgate/internal/models"
)

// MockAccountRepository implements AccountRepository for testing
type MockAccountRepository struct {
	GetByIdentifierFunc       func(ctx context.Context, identifier string) (*models.Account, error)
	GetByEmailFunc            func(ctx context.Context, email string) (*models.Account, error)
	GetByIDFunc               func(ctx context.Context, id int64) (*models.Account, error)
	IncrementFailedLoginsFunc func(ctx context.Context, account *models.Account) (int, error)
	RecordSuccessfulLoginFunc func(ctx context.Context, id int64, at time.Time) error
	ResetFailedLoginsFunc     func(ctx context.Context, id int64) error
}

func (m *MockAccountRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	if m.GetByIdentifierFunc != nil {
		return m.GetByIdentifierFunc(ctx, identifier)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	if m.GetByEmailFunc != nil {
		return m.GetByEmailFunc(ctx, email)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockAccountRepository) IncrementFailedLogins(ctx context.Context, account *models.Account) (int, error) {
	if m.IncrementFailedLoginsFunc != nil {
		return m.IncrementFailedLoginsFunc(ctx, account)
	}
	account.FailedLoginAttempts++
	return account.FailedLoginAttempts, nil
}

func (m *MockAccountRepository) RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error {
	if m.RecordSuccessfulLoginFunc != nil {
		return m.RecordSuccessfulLoginFunc(ctx, id, at)
	}
	return nil
}

func (m *MockAccountRepository) ResetFailedLogins(ctx context.Context, id int64) error {
	if m.ResetFailedLoginsFunc != nil {
		return m.ResetFailedLoginsFunc(ctx, id)
	}
	return nil
}

// MockLoginAttemptRepository records every attempt it is given
type MockLoginAttemptRepository struct {
	RecordFunc func(ctx context.Context, attempt *models.LoginAttempt) error

	mu       sync.Mutex
	attempts []*models.LoginAttempt
}

func (m *MockLoginAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	m.mu.Lock()
	m.attempts = append(m.attempts, attempt)
	m.mu.Unlock()

	if m.RecordFunc != nil {
		return m.RecordFunc(ctx, attempt)
	}
	return nil
}

// Attempts returns the attempts recorded so far
func (m *MockLoginAttemptRepository) Attempts() []*models.LoginAttempt {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.LoginAttempt(nil), m.attempts...)
}

// MockOTPRepository implements OTPRepository for testing
type MockOTPRepository struct {
	CreateFunc          func(ctx context.Context, otp *models.OTP) (*models.OTP, error)
	GetLatestUnusedFunc func(ctx context.Context, accountID int64, purpose string) (*models.OTP, error)
}

func (m *MockOTPRepository) Create(ctx context.Context, otp *models.OTP) (*models.OTP, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, otp)
	}
	created := *otp
	created.ID = 1
	created.CreatedAt = time.Now()
	return &created, nil
}

func (m *MockOTPRepository) GetLatestUnused(ctx context.Context, accountID int64, purpose string) (*models.OTP, error) {
	if m.GetLatestUnusedFunc != nil {
		return m.GetLatestUnusedFunc(ctx, accountID, purpose)
	}
	return nil, models.ErrNotFound
}

// MockPasswordResetter implements PasswordResetter for testing
type MockPasswordResetter struct {
	ResetWithOTPFunc func(ctx context.Context, otpID, accountID int64, passwordHash string) error
}

func (m *MockPasswordResetter) ResetWithOTP(ctx context.Context, otpID, accountID int64, passwordHash string) error {
	if m.ResetWithOTPFunc != nil {
		return m.ResetWithOTPFunc(ctx, otpID, accountID, passwordHash)
	}
	return nil
}

// MockRBACRepository implements RBACRepository for testing
type MockRBACRepository struct {
	GetRoleForAccountFunc      func(ctx context.Context, accountID int64) (*models.Role, error)
	ListPermissionsForRoleFunc func(ctx context.Context, roleID int64) ([]models.Permission, error)
}

func (m *MockRBACRepository) GetRoleForAccount(ctx context.Context, accountID int64) (*models.Role, error) {
	if m.GetRoleForAccountFunc != nil {
		return m.GetRoleForAccountFunc(ctx, accountID)
	}
	return nil, models.ErrNotFound
}

func (m *MockRBACRepository) ListPermissionsForRole(ctx context.Context, roleID int64) ([]models.Permission, error) {
	if m.ListPermissionsForRoleFunc != nil {
		return m.ListPermissionsForRoleFunc(ctx, roleID)
	}
	return []models.Permission{}, nil
}

// MockProfileRepository implements ProfileRepository for testing
type MockProfileRepository struct {
	GetFullNameFunc func(ctx context.Context, accountID int64) (string, error)
}

func (m *MockProfileRepository) GetFullName(ctx context.Context, accountID int64) (string, error) {
	if m.GetFullNameFunc != nil {
		return m.GetFullNameFunc(ctx, accountID)
	}
	return "", models.ErrNotFound
}

// MockAuditLogRepository implements AuditLogRepository for testing
type MockAuditLogRepository struct {
	CreateFunc func(ctx context.Context, entry *models.AuditEntry) error
}

func (m *MockAuditLogRepository) Create(ctx context.Context, entry *models.AuditEntry) error {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, entry)
	}
	return nil
}

// MockNotificationRepository implements NotificationRepository for testing
type MockNotificationRepository struct {
	CreateFunc       func(ctx context.Context, n *models.Notification) (*models.Notification, error)
	UpdateStatusFunc func(ctx context.Context, id int64, status string) error
}

func (m *MockNotificationRepository) Create(ctx context.Context, n *models.Notification) (*models.Notification, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, n)
	}
	created := *n
	created.ID = 1
	return &created, nil
}

func (m *MockNotificationRepository) UpdateStatus(ctx context.Context, id int64, status string) error {
	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}
	return nil
}

// MockResetThrottle implements ResetThrottle for testing
type MockResetThrottle struct {
	AllowFunc func(ctx context.Context, key string, window time.Duration) (bool, error)
}

func (m *MockResetThrottle) Allow(ctx context.Context, key string, window time.Duration) (bool, error) {
	if m.AllowFunc != nil {
		return m.AllowFunc(ctx, key, window)
	}
	return true, nil
}

// MockTokenIssuer implements TokenIssuer for testing
type MockTokenIssuer struct {
	IssueFunc func(claims *models.SessionClaims) (string, time.Time, error)
}

func (m *MockTokenIssuer) Issue(claims *models.SessionClaims) (string, time.Time, error) {
	if m.IssueFunc != nil {
		return m.IssueFunc(claims)
	}
	return "test-token", time.Now().Add(time.Hour), nil
}

// MockMailer implements Mailer for testing
type MockMailer struct {
	SendOTPFunc func(ctx context.Context, to, code string) error
}

func (m *MockMailer) SendOTP(ctx context.Context, to, code string) error {
	if m.SendOTPFunc != nil {
		return m.SendOTPFunc(ctx, to, code)
	}
	return nil
}

// MockNotifier captures queued notifications
type MockNotifier struct {
	mu   sync.Mutex
	sent []OTPNotification
}

func (m *MockNotifier) Notify(ctx context.Context, n OTPNotification) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sent = append(m.sent, n)
}

func (m *MockNotifier) Sent() []OTPNotification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]OTPNotification(nil), m.sent...)
}

// MockAuditRecorder captures recorded audit entries
type MockAuditRecorder struct {
	mu      sync.Mutex
	entries []*models.AuditEntry
}

func (m *MockAuditRecorder) Record(ctx context.Context, entry *models.AuditEntry) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = append(m.entries, entry)
}

func (m *MockAuditRecorder) Entries() []*models.AuditEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*models.AuditEntry(nil), m.entries...)
}

// NewTestAccount returns an ACTIVE account with no failed logins
func NewTestAccount(id int64, email, passwordHash string) *models.Account {
	return &models.Account{
		ID:           id,
		Email:        email,
		PasswordHash: passwordHash,
		Status:       models.AccountStatusActive,
		CreatedAt:    time.Now(),
	}
}

// NewTestAccountWithStatus returns an account in the given status
func NewTestAccountWithStatus(id int64, email, passwordHash, status string) *models.Account {
	account := NewTestAccount(id, email, passwordHash)
	account.Status = status
	return account
}

// NewTestAccountLocked returns an account whose counter has reached threshold
func NewTestAccountLocked(id int64, email, passwordHash string, threshold int) *models.Account {
	account := NewTestAccount(id, email, passwordHash)
	account.FailedLoginAttempts = threshold
	return account
}

// NewTestOTP returns an unused reset OTP expiring after ttl
func NewTestOTP(id, accountID int64, codeHash string, ttl time.Duration) *models.OTP {
	now := time.Now()
	return &models.OTP{
		ID:        id,
		AccountID: accountID,
		CodeHash:  codeHash,
		Purpose:   models.OTPPurposePasswordReset,
		ExpiresAt: now.Add(ttl),
		CreatedAt: now,
	}
}
