package services

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/BradenHooton/farmgate/internal/auth"
	"github.com/BradenHooton/farmgate/internal/models"
	pkgauth "github.com/BradenHooton/farmgate/pkg/auth"
	pkglogger "github.com/BradenHooton/farmgate/pkg/logger"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

const testJWTSecret = "test-secret-32-characters-long!!"

// memoryCredentials is a stateful account and OTP store for workflow tests
type memoryCredentials struct {
	mu       sync.Mutex
	accounts map[int64]*models.Account
	otps     []*models.OTP
	nextOTP  int64
}

func newMemoryCredentials(accounts ...*models.Account) *memoryCredentials {
	m := &memoryCredentials{accounts: make(map[int64]*models.Account)}
	for _, a := range accounts {
		m.accounts[a.ID] = a
	}
	return m
}

func (m *memoryCredentials) find(match func(*models.Account) bool) (*models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ids := make([]int64, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		if a := m.accounts[id]; match(a) {
			copied := *a
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

func (m *memoryCredentials) account(id int64) models.Account {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.accounts[id]
}

func (m *memoryCredentials) GetByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool {
		return (a.Email != "" && a.Email == identifier) || (a.PhoneNumber != "" && a.PhoneNumber == identifier)
	})
}

func (m *memoryCredentials) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.Email != "" && a.Email == email })
}

func (m *memoryCredentials) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	return m.find(func(a *models.Account) bool { return a.ID == id })
}

func (m *memoryCredentials) IncrementFailedLogins(ctx context.Context, account *models.Account) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := m.accounts[account.ID]
	stored.FailedLoginAttempts++
	account.FailedLoginAttempts = stored.FailedLoginAttempts
	return stored.FailedLoginAttempts, nil
}

func (m *memoryCredentials) RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[id].FailedLoginAttempts = 0
	m.accounts[id].LastLoginAt = &at
	return nil
}

func (m *memoryCredentials) ResetFailedLogins(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[id]; !ok {
		return models.ErrNotFound
	}
	m.accounts[id].FailedLoginAttempts = 0
	return nil
}

func (m *memoryCredentials) Create(ctx context.Context, otp *models.OTP) (*models.OTP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextOTP++
	created := *otp
	created.ID = m.nextOTP
	created.CreatedAt = time.Now()
	m.otps = append(m.otps, &created)
	copied := created
	return &copied, nil
}

func (m *memoryCredentials) GetLatestUnused(ctx context.Context, accountID int64, purpose string) (*models.OTP, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := len(m.otps) - 1; i >= 0; i-- {
		o := m.otps[i]
		if o.AccountID == accountID && o.Purpose == purpose && !o.IsUsed {
			copied := *o
			return &copied, nil
		}
	}
	return nil, models.ErrNotFound
}

// ResetWithOTP claims the OTP and replaces the password under one lock
func (m *memoryCredentials) ResetWithOTP(ctx context.Context, otpID, accountID int64, passwordHash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.otps {
		if o.ID != otpID || o.IsUsed {
			continue
		}
		account, ok := m.accounts[accountID]
		if !ok {
			return models.ErrNotFound
		}
		o.IsUsed = true
		account.PasswordHash = passwordHash
		account.FailedLoginAttempts = 0
		return nil
	}
	return models.ErrNotFound
}

func (m *memoryCredentials) otpCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.otps)
}

func (m *memoryCredentials) otpByID(id int64) models.OTP {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.otps {
		if o.ID == id {
			return *o
		}
	}
	return models.OTP{}
}

type authFixture struct {
	service  *AuthService
	creds    *memoryCredentials
	attempts *MockLoginAttemptRepository
	profiles *MockProfileRepository
	rbac     *MockRBACRepository
	notifier *MockNotifier
	audit    *MockAuditRecorder
	throttle *MockResetThrottle
	tokens   *auth.TokenManager
	hasher   *pkgauth.Hasher
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newAuthFixture(t *testing.T, accounts ...*models.Account) *authFixture {
	t.Helper()

	pool := pkgauth.NewHashPool(2)
	hasher := pool.Hasher(bcrypt.MinCost)
	logger := discardLogger()

	f := &authFixture{
		creds:    newMemoryCredentials(accounts...),
		attempts: &MockLoginAttemptRepository{},
		profiles: &MockProfileRepository{},
		rbac:     &MockRBACRepository{},
		notifier: &MockNotifier{},
		audit:    &MockAuditRecorder{},
		throttle: &MockResetThrottle{},
		tokens:   auth.NewTokenManager(testJWTSecret, 24*time.Hour),
		hasher:   hasher,
	}

	f.service = NewAuthService(AuthDependencies{
		Store: Store{
			Accounts:      f.creds,
			LoginAttempts: f.attempts,
			OTPs:          f.creds,
			Resets:        f.creds,
			RBAC:          f.rbac,
			Profiles:      f.profiles,
		},
		Permissions:    NewPermissionService(f.rbac),
		PasswordHasher: hasher,
		OTPHasher:      hasher,
		Tokens:         f.tokens,
		Notifier:       f.notifier,
		Audit:          f.audit,
		Throttle:       f.throttle,
		AuditLogger:    pkglogger.NewAuditLogger(logger),
		Logger:         logger,
	}, AuthConfig{
		LockoutThreshold:    5,
		OTPTTL:              10 * time.Minute,
		ResetThrottleWindow: time.Minute,
	})

	return f
}

func (f *authFixture) hash(t *testing.T, secret string) string {
	t.Helper()
	digest, err := f.hasher.Hash(context.Background(), secret)
	require.NoError(t, err)
	return digest
}

// ============================================================================
// Login
// ============================================================================

func TestAuthService_Login_Success(t *testing.T) {
	f := newAuthFixture(t)
	account := NewTestAccount(1, "a@b.com", f.hash(t, "CorrectP@ss1"))
	account.FailedLoginAttempts = 3
	f.creds.accounts[1] = account

	f.rbac.GetRoleForAccountFunc = func(ctx context.Context, accountID int64) (*models.Role, error) {
		return &models.Role{ID: 4, Name: "Farm Manager"}, nil
	}
	f.rbac.ListPermissionsForRoleFunc = func(ctx context.Context, roleID int64) ([]models.Permission, error) {
		return []models.Permission{
			{ID: 1, Module: "goat", Action: "read"},
			{ID: 2, Module: "vaccination", Action: "read"},
			{ID: 3, Module: "goat", Action: "create"},
		}, nil
	}
	f.profiles.GetFullNameFunc = func(ctx context.Context, accountID int64) (string, error) {
		return "Ana Herder", nil
	}

	result, err := f.service.Login(context.Background(), "a@b.com", "CorrectP@ss1", "10.0.0.1")
	require.NoError(t, err)

	assert.Equal(t, int64(1), result.User.ID)
	assert.Equal(t, "a@b.com", result.User.Email)
	assert.Equal(t, "Ana Herder", result.User.FullName)
	assert.Equal(t, "Farm Manager", result.User.Role)
	assert.Equal(t, []models.ModulePermissions{
		{Module: "goat", Actions: []string{"read", "create"}},
		{Module: "vaccination", Actions: []string{"read"}},
	}, result.User.Permissions)

	claims, err := f.tokens.Verify(result.Token)
	require.NoError(t, err)
	assert.Equal(t, int64(1), claims.AccountID)
	assert.Equal(t, "a@b.com", claims.Email)
	require.NotNil(t, claims.RoleID)
	assert.Equal(t, int64(4), *claims.RoleID)
	assert.Equal(t, "Farm Manager", claims.RoleName)
	assert.Equal(t, result.User.Permissions, claims.Permissions)

	stored := f.creds.account(1)
	assert.Equal(t, 0, stored.FailedLoginAttempts)
	assert.NotNil(t, stored.LastLoginAt)

	attempts := f.attempts.Attempts()
	require.Len(t, attempts, 1)
	assert.Equal(t, models.LoginStatusSuccess, attempts[0].Status)
	require.NotNil(t, attempts[0].AccountID)
	assert.Equal(t, int64(1), *attempts[0].AccountID)
	assert.Equal(t, "10.0.0.1", attempts[0].IPAddress)
	assert.Nil(t, attempts[0].FailureReason)
}

func TestAuthService_Login_ByPhoneNumber(t *testing.T) {
	f := newAuthFixture(t)
	account := NewTestAccount(2, "", f.hash(t, "CorrectP@ss1"))
	account.PhoneNumber = "+639171234567"
	f.creds.accounts[2] = account

	result, err := f.service.Login(context.Background(), "+639171234567", "CorrectP@ss1", "10.0.0.1")
	require.NoError(t, err)

	// no profile, no email: the identifier is the display name
	assert.Equal(t, "+639171234567", result.User.FullName)
	assert.Equal(t, models.DefaultRoleName, result.User.Role)
	assert.NotNil(t, result.User.Permissions)
	assert.Empty(t, result.User.Permissions)
}

func TestAuthService_Login_FullNameFallsBackToEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "CorrectP@ss1"))

	result, err := f.service.Login(context.Background(), "a@b.com", "CorrectP@ss1", "")
	require.NoError(t, err)
	assert.Equal(t, "a@b.com", result.User.FullName)
}

func TestAuthService_Login_UnknownIdentifier(t *testing.T) {
	f := newAuthFixture(t)

	for _, identifier := range []string{"nobody@farm.test", "+630000000000"} {
		result, err := f.service.Login(context.Background(), identifier, "whatever", "10.0.0.2")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
		assert.Nil(t, result)
	}

	attempts := f.attempts.Attempts()
	require.Len(t, attempts, 2)
	for _, a := range attempts {
		assert.Nil(t, a.AccountID)
		assert.Equal(t, models.LoginStatusFailed, a.Status)
		require.NotNil(t, a.FailureReason)
		assert.Equal(t, models.LoginFailureUserNotFound, *a.FailureReason)
	}
}

func TestAuthService_Login_InactiveAccount(t *testing.T) {
	f := newAuthFixture(t)
	account := NewTestAccountWithStatus(1, "a@b.com", f.hash(t, "CorrectP@ss1"), models.AccountStatusInactive)
	account.FailedLoginAttempts = 2
	f.creds.accounts[1] = account

	for _, password := range []string{"CorrectP@ss1", "WrongP@ss1"} {
		_, err := f.service.Login(context.Background(), "a@b.com", password, "")
		assert.ErrorIs(t, err, models.ErrAccountInactive)
	}

	assert.Equal(t, 2, f.creds.account(1).FailedLoginAttempts)

	attempts := f.attempts.Attempts()
	require.Len(t, attempts, 2)
	require.NotNil(t, attempts[0].FailureReason)
	assert.Equal(t, models.LoginFailureInactive, *attempts[0].FailureReason)
}

func TestAuthService_Login_LockedAccountRejectsCorrectPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccountLocked(1, "a@b.com", f.hash(t, "CorrectP@ss1"), 5)

	_, err := f.service.Login(context.Background(), "a@b.com", "CorrectP@ss1", "")
	assert.ErrorIs(t, err, models.ErrAccountLocked)

	assert.Equal(t, 5, f.creds.account(1).FailedLoginAttempts)
	attempts := f.attempts.Attempts()
	require.Len(t, attempts, 1)
	require.NotNil(t, attempts[0].FailureReason)
	assert.Equal(t, models.LoginFailureLocked, *attempts[0].FailureReason)
}

func TestAuthService_Login_FiveFailuresLockTheAccount(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "CorrectP@ss1"))

	for i := 1; i <= 5; i++ {
		_, err := f.service.Login(context.Background(), "a@b.com", "WrongP@ss1", "")
		assert.ErrorIs(t, err, models.ErrInvalidCredentials)
		assert.Equal(t, i, f.creds.account(1).FailedLoginAttempts)
	}

	_, err := f.service.Login(context.Background(), "a@b.com", "CorrectP@ss1", "")
	assert.ErrorIs(t, err, models.ErrAccountLocked)

	_, err = f.service.Login(context.Background(), "a@b.com", "WrongP@ss1", "")
	assert.ErrorIs(t, err, models.ErrAccountLocked)
	assert.Equal(t, 5, f.creds.account(1).FailedLoginAttempts)

	attempts := f.attempts.Attempts()
	require.Len(t, attempts, 7)
	for _, a := range attempts[:5] {
		require.NotNil(t, a.FailureReason)
		assert.Equal(t, models.LoginFailureInvalidPassword, *a.FailureReason)
	}
}

func TestAuthService_Login_SuccessResetsCounter(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "CorrectP@ss1"))

	for i := 0; i < 4; i++ {
		_, _ = f.service.Login(context.Background(), "a@b.com", "WrongP@ss1", "")
	}
	_, err := f.service.Login(context.Background(), "a@b.com", "CorrectP@ss1", "")
	require.NoError(t, err)
	assert.Equal(t, 0, f.creds.account(1).FailedLoginAttempts)

	_, err = f.service.Login(context.Background(), "a@b.com", "WrongP@ss1", "")
	assert.ErrorIs(t, err, models.ErrInvalidCredentials)
	assert.Equal(t, 1, f.creds.account(1).FailedLoginAttempts)
}

func TestAuthService_Login_EmptyFields(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.Login(context.Background(), "  ", "secret", "")
	assert.ErrorIs(t, err, models.ErrBadRequest)

	_, err = f.service.Login(context.Background(), "a@b.com", "", "")
	assert.ErrorIs(t, err, models.ErrBadRequest)

	assert.Empty(t, f.attempts.Attempts())
}

func TestAuthService_Login_AttemptWriteFailureIsContained(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "CorrectP@ss1"))
	f.attempts.RecordFunc = func(ctx context.Context, attempt *models.LoginAttempt) error {
		return errors.New("connection reset")
	}

	result, err := f.service.Login(context.Background(), "a@b.com", "CorrectP@ss1", "")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
}

func TestAuthService_Login_StoreFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.service.accounts = &MockAccountRepository{
		GetByIdentifierFunc: func(ctx context.Context, identifier string) (*models.Account, error) {
			return nil, errors.New("connection refused")
		},
	}

	_, err := f.service.Login(context.Background(), "a@b.com", "CorrectP@ss1", "")
	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.Empty(t, f.attempts.Attempts())
}

func TestAuthService_Login_PermissionFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "CorrectP@ss1"))
	f.rbac.GetRoleForAccountFunc = func(ctx context.Context, accountID int64) (*models.Role, error) {
		return nil, errors.New("timeout")
	}

	_, err := f.service.Login(context.Background(), "a@b.com", "CorrectP@ss1", "")
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

func TestAuthService_Login_TokenFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "CorrectP@ss1"))
	f.service.tokens = &MockTokenIssuer{
		IssueFunc: func(claims *models.SessionClaims) (string, time.Time, error) {
			return "", time.Time{}, errors.New("signing failed")
		},
	}

	_, err := f.service.Login(context.Background(), "a@b.com", "CorrectP@ss1", "")
	assert.ErrorIs(t, err, models.ErrInternalServer)
}

// ============================================================================
// ForgotPassword
// ============================================================================

func TestAuthService_ForgotPassword_SameResultForUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "CorrectP@ss1"))
	f.service.generateOTP = func() (string, error) { return "482913", nil }

	errKnown := f.service.ForgotPassword(context.Background(), "a@b.com")
	errUnknown := f.service.ForgotPassword(context.Background(), "ghost@b.com")

	assert.NoError(t, errKnown)
	assert.NoError(t, errUnknown)
	assert.Equal(t, 1, f.creds.otpCount())

	otp, err := f.creds.GetLatestUnused(context.Background(), 1, models.OTPPurposePasswordReset)
	require.NoError(t, err)
	assert.NotEqual(t, "482913", otp.CodeHash)
	ok, err := f.hasher.Verify(context.Background(), "482913", otp.CodeHash)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now().Add(10*time.Minute), otp.ExpiresAt, 5*time.Second)
	assert.False(t, otp.IsUsed)

	sent := f.notifier.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, OTPNotification{AccountID: 1, Email: "a@b.com", Code: "482913"}, sent[0])
}

func TestAuthService_ForgotPassword_EmptyEmail(t *testing.T) {
	f := newAuthFixture(t)

	err := f.service.ForgotPassword(context.Background(), " ")
	assert.ErrorIs(t, err, models.ErrBadRequest)
}

func TestAuthService_ForgotPassword_Throttled(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "CorrectP@ss1"))

	var keys []string
	f.throttle.AllowFunc = func(ctx context.Context, key string, window time.Duration) (bool, error) {
		keys = append(keys, key)
		assert.Equal(t, time.Minute, window)
		return false, nil
	}

	err := f.service.ForgotPassword(context.Background(), "a@b.com")
	assert.NoError(t, err)
	assert.Equal(t, []string{"1"}, keys)
	assert.Equal(t, 0, f.creds.otpCount())
	assert.Empty(t, f.notifier.Sent())
}

func TestAuthService_ForgotPassword_ThrottleErrorFailsOpen(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "CorrectP@ss1"))
	f.throttle.AllowFunc = func(ctx context.Context, key string, window time.Duration) (bool, error) {
		return false, errors.New("redis down")
	}

	err := f.service.ForgotPassword(context.Background(), "a@b.com")
	assert.NoError(t, err)
	assert.Equal(t, 1, f.creds.otpCount())
}

func TestAuthService_ForgotPassword_PadsUnknownEmail(t *testing.T) {
	f := newAuthFixture(t)
	f.service.timing = auth.NewTimingDelay(auth.TimingConfig{MinDuration: 60 * time.Millisecond})

	start := time.Now()
	err := f.service.ForgotPassword(context.Background(), "ghost@b.com")
	assert.NoError(t, err)
	assert.GreaterOrEqual(t, time.Since(start), 60*time.Millisecond)
}

func TestAuthService_ForgotPassword_OTPStoreFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "CorrectP@ss1"))
	f.service.otps = &MockOTPRepository{
		CreateFunc: func(ctx context.Context, otp *models.OTP) (*models.OTP, error) {
			return nil, errors.New("insert failed")
		},
	}

	err := f.service.ForgotPassword(context.Background(), "a@b.com")
	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.Empty(t, f.notifier.Sent())
}

// ============================================================================
// ResetPassword
// ============================================================================

func TestAuthService_ResetPassword_OTPAcceptedOnce(t *testing.T) {
	f := newAuthFixture(t)
	account := NewTestAccount(1, "a@b.com", f.hash(t, "OldP@ssw0rd"))
	account.FailedLoginAttempts = 5
	f.creds.accounts[1] = account
	f.service.generateOTP = func() (string, error) { return "135790", nil }

	require.NoError(t, f.service.ForgotPassword(context.Background(), "a@b.com"))

	err := f.service.ResetPassword(context.Background(), "a@b.com", "135790", "NewValid1!")
	require.NoError(t, err)

	assert.True(t, f.creds.otpByID(1).IsUsed)
	stored := f.creds.account(1)
	assert.Equal(t, 0, stored.FailedLoginAttempts)
	ok, err := f.hasher.Verify(context.Background(), "NewValid1!", stored.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	entries := f.audit.Entries()
	require.Len(t, entries, 1)
	assert.Equal(t, models.AuditActionPasswordReset, entries[0].Action)
	assert.Equal(t, models.AuditEntityUserAccount, entries[0].EntityName)
	assert.Equal(t, "1", entries[0].EntityID)
	require.NotNil(t, entries[0].ActorID)
	assert.Equal(t, int64(1), *entries[0].ActorID)

	err = f.service.ResetPassword(context.Background(), "a@b.com", "135790", "Another1!")
	assert.ErrorIs(t, err, models.ErrInvalidOTP)

	_, err = f.service.Login(context.Background(), "a@b.com", "NewValid1!", "")
	assert.NoError(t, err)
}

func TestAuthService_ResetPassword_OnlyLatestOTPCounts(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "OldP@ssw0rd"))

	codes := []string{"111111", "222222"}
	f.service.generateOTP = func() (string, error) {
		code := codes[0]
		codes = codes[1:]
		return code, nil
	}
	require.NoError(t, f.service.ForgotPassword(context.Background(), "a@b.com"))
	require.NoError(t, f.service.ForgotPassword(context.Background(), "a@b.com"))

	err := f.service.ResetPassword(context.Background(), "a@b.com", "111111", "NewValid1!")
	assert.ErrorIs(t, err, models.ErrInvalidOTP)

	err = f.service.ResetPassword(context.Background(), "a@b.com", "222222", "NewValid1!")
	assert.NoError(t, err)
}

func TestAuthService_ResetPassword_WrongOTPLeavesPasswordUnchanged(t *testing.T) {
	f := newAuthFixture(t)
	original := f.hash(t, "OldP@ssw0rd")
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", original)
	f.creds.otps = append(f.creds.otps, NewTestOTP(1, 1, f.hash(t, "654321"), 10*time.Minute))

	err := f.service.ResetPassword(context.Background(), "a@b.com", "000000", "NewValid1!")
	assert.ErrorIs(t, err, models.ErrInvalidOTP)

	assert.Equal(t, original, f.creds.account(1).PasswordHash)
	assert.False(t, f.creds.otpByID(1).IsUsed)
	assert.Empty(t, f.audit.Entries())
}

func TestAuthService_ResetPassword_UnknownEmail(t *testing.T) {
	f := newAuthFixture(t)

	err := f.service.ResetPassword(context.Background(), "ghost@b.com", "123456", "NewValid1!")
	assert.ErrorIs(t, err, models.ErrInvalidOTP)
}

func TestAuthService_ResetPassword_NoOutstandingOTP(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "OldP@ssw0rd"))

	err := f.service.ResetPassword(context.Background(), "a@b.com", "123456", "NewValid1!")
	assert.ErrorIs(t, err, models.ErrInvalidOTP)
}

func TestAuthService_ResetPassword_ExpiredOTP(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "OldP@ssw0rd"))
	f.creds.otps = append(f.creds.otps, NewTestOTP(1, 1, f.hash(t, "123456"), -time.Minute))

	err := f.service.ResetPassword(context.Background(), "a@b.com", "123456", "NewValid1!")
	assert.ErrorIs(t, err, models.ErrOTPExpired)
	assert.False(t, f.creds.otpByID(1).IsUsed)
}

func TestAuthService_ResetPassword_ExpiryCheckedAfterCode(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "OldP@ssw0rd"))
	f.creds.otps = append(f.creds.otps, NewTestOTP(1, 1, f.hash(t, "123456"), -time.Minute))

	err := f.service.ResetPassword(context.Background(), "a@b.com", "999999", "NewValid1!")
	assert.ErrorIs(t, err, models.ErrInvalidOTP)
}

func TestAuthService_ResetPassword_WeakPassword(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "OldP@ssw0rd"))
	f.creds.otps = append(f.creds.otps, NewTestOTP(1, 1, f.hash(t, "123456"), 10*time.Minute))

	err := f.service.ResetPassword(context.Background(), "a@b.com", "123456", "NoSpecial123")

	var policyErr *pkgauth.PasswordValidationError
	require.ErrorAs(t, err, &policyErr)
	assert.Equal(t, pkgauth.PasswordPolicyMessage, policyErr.Error())
	assert.False(t, f.creds.otpByID(1).IsUsed)
}

func TestAuthService_ResetPassword_MissingFields(t *testing.T) {
	f := newAuthFixture(t)

	for _, args := range [][3]string{
		{"", "123456", "NewValid1!"},
		{"a@b.com", "", "NewValid1!"},
		{"a@b.com", "123456", ""},
	} {
		err := f.service.ResetPassword(context.Background(), args[0], args[1], args[2])
		assert.ErrorIs(t, err, models.ErrBadRequest)
	}
}

func TestAuthService_ResetPassword_StoreFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "OldP@ssw0rd"))
	f.creds.otps = append(f.creds.otps, NewTestOTP(7, 1, f.hash(t, "123456"), 10*time.Minute))
	f.service.resets = &MockPasswordResetter{
		ResetWithOTPFunc: func(ctx context.Context, otpID, accountID int64, passwordHash string) error {
			return errors.New("update failed")
		},
	}

	err := f.service.ResetPassword(context.Background(), "a@b.com", "123456", "NewValid1!")
	assert.ErrorIs(t, err, models.ErrInternalServer)
	assert.Empty(t, f.audit.Entries())
}

func TestAuthService_ResetPassword_OTPClaimedElsewhere(t *testing.T) {
	f := newAuthFixture(t)
	original := f.hash(t, "OldP@ssw0rd")
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", original)
	f.creds.otps = append(f.creds.otps, NewTestOTP(7, 1, f.hash(t, "123456"), 10*time.Minute))
	f.service.resets = &MockPasswordResetter{
		ResetWithOTPFunc: func(ctx context.Context, otpID, accountID int64, passwordHash string) error {
			assert.Equal(t, int64(7), otpID)
			assert.Equal(t, int64(1), accountID)
			return models.ErrNotFound
		},
	}

	err := f.service.ResetPassword(context.Background(), "a@b.com", "123456", "NewValid1!")
	assert.ErrorIs(t, err, models.ErrInvalidOTP)
	assert.Equal(t, original, f.creds.account(1).PasswordHash)
	assert.Empty(t, f.audit.Entries())
}

// slowVerifier holds every Verify open so concurrent resets overlap
type slowVerifier struct {
	SecretHasher
	delay time.Duration
}

func (v slowVerifier) Verify(ctx context.Context, secret, digest string) (bool, error) {
	time.Sleep(v.delay)
	return v.SecretHasher.Verify(ctx, secret, digest)
}

func TestAuthService_ResetPassword_ConcurrentResetsShareOneOTP(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "OldP@ssw0rd"))
	f.creds.otps = append(f.creds.otps, NewTestOTP(1, 1, f.hash(t, "123456"), 10*time.Minute))
	f.service.otpHasher = slowVerifier{SecretHasher: f.hasher, delay: 50 * time.Millisecond}

	passwords := []string{"FirstNew1!", "SecondNew1!"}
	results := make([]error, len(passwords))
	var wg sync.WaitGroup
	for i, password := range passwords {
		wg.Add(1)
		go func(i int, password string) {
			defer wg.Done()
			results[i] = f.service.ResetPassword(context.Background(), "a@b.com", "123456", password)
		}(i, password)
	}
	wg.Wait()

	var succeeded, rejected int
	for _, err := range results {
		switch {
		case err == nil:
			succeeded++
		case errors.Is(err, models.ErrInvalidOTP):
			rejected++
		default:
			t.Fatalf("unexpected reset error: %v", err)
		}
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, rejected)
	assert.Len(t, f.audit.Entries(), 1)
	assert.True(t, f.creds.otpByID(1).IsUsed)
}

func TestAuthService_OTPExpiryIgnoresClockZone(t *testing.T) {
	f := newAuthFixture(t)
	f.creds.accounts[1] = NewTestAccount(1, "a@b.com", f.hash(t, "OldP@ssw0rd"))
	f.service.generateOTP = func() (string, error) { return "246810", nil }

	kualaLumpur := time.FixedZone("MYT", 8*60*60)
	issued := time.Date(2026, 3, 2, 9, 0, 0, 0, kualaLumpur)
	f.service.now = func() time.Time { return issued }

	require.NoError(t, f.service.ForgotPassword(context.Background(), "a@b.com"))

	stored := f.creds.otpByID(1)
	assert.Equal(t, time.UTC, stored.ExpiresAt.Location())
	assert.True(t, stored.ExpiresAt.Equal(issued.Add(10*time.Minute)))

	f.service.now = func() time.Time { return issued.Add(9 * time.Minute).UTC() }
	require.NoError(t, f.service.ResetPassword(context.Background(), "a@b.com", "246810", "NewValid1!"))
}
