package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/BradenHooton/farmgate/internal/auth"
	"github.com/BradenHooton/farmgate/internal/metrics"
	"github.com/BradenHooton/farmgate/internal/models"
	pkgauth "github.com/BradenHooton/farmgate/pkg/auth"
	pkglogger "github.com/BradenHooton/farmgate/pkg/logger"
)

// PermissionResolver is satisfied by *PermissionService
type PermissionResolver interface {
	Resolve(ctx context.Context, accountID int64) (*models.Grant, error)
}

// AuthConfig holds the workflow tunables
type AuthConfig struct {
	LockoutThreshold    int
	OTPTTL              time.Duration
	ResetThrottleWindow time.Duration
}

// AuthDependencies are the collaborators injected into AuthService.
// Throttle, Timing, Metrics may be nil.
type AuthDependencies struct {
	Store          Store
	Permissions    PermissionResolver
	PasswordHasher SecretHasher
	OTPHasher      SecretHasher
	Tokens         TokenIssuer
	Notifier       Notifier
	Audit          AuditRecorder
	Throttle       ResetThrottle
	Timing         *auth.TimingDelay
	AuditLogger    *pkglogger.AuditLogger
	Logger         *slog.Logger
	Metrics        *metrics.Metrics
}

// AuthService handles the login and password recovery workflows
type AuthService struct {
	accounts    AccountRepository
	attempts    LoginAttemptRepository
	otps        OTPRepository
	resets      PasswordResetter
	profiles    ProfileRepository
	permissions PermissionResolver
	passwords   SecretHasher
	otpHasher   SecretHasher
	tokens      TokenIssuer
	notifier    Notifier
	audit       AuditRecorder
	throttle    ResetThrottle
	timing      *auth.TimingDelay
	auditLogger *pkglogger.AuditLogger
	logger      *slog.Logger
	metrics     *metrics.Metrics
	config      AuthConfig

	now         func() time.Time
	generateOTP func() (string, error)
}

func NewAuthService(deps AuthDependencies, config AuthConfig) *AuthService {
	if config.LockoutThreshold <= 0 {
		config.LockoutThreshold = 5
	}
	if config.OTPTTL <= 0 {
		config.OTPTTL = 10 * time.Minute
	}

	return &AuthService{
		accounts:    deps.Store.Accounts,
		attempts:    deps.Store.LoginAttempts,
		otps:        deps.Store.OTPs,
		resets:      deps.Store.Resets,
		profiles:    deps.Store.Profiles,
		permissions: deps.Permissions,
		passwords:   deps.PasswordHasher,
		otpHasher:   deps.OTPHasher,
		tokens:      deps.Tokens,
		notifier:    deps.Notifier,
		audit:       deps.Audit,
		throttle:    deps.Throttle,
		timing:      deps.Timing,
		auditLogger: deps.AuditLogger,
		logger:      deps.Logger,
		metrics:     deps.Metrics,
		config:      config,
		now:         func() time.Time { return time.Now().UTC() },
		generateOTP: pkgauth.GenerateOTP,
	}
}

// UserSummary is the user block of a login response
type UserSummary struct {
	ID          int64                      `json:"user_account_id"`
	Email       string                     `json:"email"`
	FullName    string                     `json:"full_name"`
	Role        string                     `json:"role"`
	Permissions []models.ModulePermissions `json:"permissions"`
}

// LoginResult is returned by a successful login
type LoginResult struct {
	Token     string      `json:"token"`
	ExpiresAt time.Time   `json:"expires_at"`
	User      UserSummary `json:"user"`
}

// Login authenticates identifier (email or phone number) and issues a
// session token. Every call leaves exactly one login_attempt row.
func (s *AuthService) Login(ctx context.Context, identifier, password, ipAddress string) (*LoginResult, error) {
	identifier = strings.TrimSpace(identifier)
	if identifier == "" || password == "" {
		return nil, models.ErrBadRequest
	}

	account, err := s.accounts.GetByIdentifier(ctx, identifier)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("login failed: invalid credentials")
			s.recordFailure(ctx, nil, identifier, ipAddress, models.LoginFailureUserNotFound)
			s.metrics.LoginResult("unknown_identifier")
			return nil, models.ErrInvalidCredentials
		}
		s.logger.Error("failed to look up account", slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	accountID := account.ID

	if !account.IsActive() {
		s.logger.Info("login blocked: account inactive",
			slog.Int64("user_account_id", accountID),
			slog.String("status", account.Status))
		s.recordFailure(ctx, &accountID, identifier, ipAddress, models.LoginFailureInactive)
		s.metrics.LoginResult("inactive")
		return nil, models.ErrAccountInactive
	}

	// Checked before the password so a locked account never reveals whether
	// the supplied password was right.
	if account.IsLocked(s.config.LockoutThreshold) {
		s.logger.Info("login blocked: account locked",
			slog.Int64("user_account_id", accountID),
			slog.Int("failed_login_attempts", account.FailedLoginAttempts))
		s.recordFailure(ctx, &accountID, identifier, ipAddress, models.LoginFailureLocked)
		s.metrics.LoginResult("locked")
		return nil, models.ErrAccountLocked
	}

	match, err := s.passwords.Verify(ctx, password, account.PasswordHash)
	if err != nil {
		s.logger.Error("failed to verify password", slog.Int64("user_account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	if !match {
		count, err := s.accounts.IncrementFailedLogins(ctx, account)
		if err != nil {
			s.logger.Error("failed to increment failed logins", slog.Int64("user_account_id", accountID), slog.Any("error", err))
			return nil, models.ErrInternalServer
		}
		s.logger.Info("login failed: invalid credentials",
			slog.Int64("user_account_id", accountID),
			slog.Int("failed_login_attempts", count))
		s.recordFailure(ctx, &accountID, identifier, ipAddress, models.LoginFailureInvalidPassword)
		s.metrics.LoginResult("invalid_password")
		return nil, models.ErrInvalidCredentials
	}

	now := s.now()
	if err := s.accounts.RecordSuccessfulLogin(ctx, accountID, now); err != nil {
		s.logger.Error("failed to record successful login", slog.Int64("user_account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	s.recordAttempt(ctx, models.NewSuccessfulAttempt(accountID, identifier, ipAddress, now))

	grant, err := s.permissions.Resolve(ctx, accountID)
	if err != nil {
		s.logger.Error("failed to resolve permissions", slog.Int64("user_account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	fullName, err := s.displayName(ctx, account, identifier)
	if err != nil {
		s.logger.Error("failed to load profile", slog.Int64("user_account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	token, expiresAt, err := s.tokens.Issue(&models.SessionClaims{
		AccountID:   accountID,
		Email:       account.Email,
		RoleID:      grant.RoleID,
		RoleName:    grant.RoleName,
		Permissions: grant.Permissions,
	})
	if err != nil {
		s.logger.Error("failed to issue session token", slog.Int64("user_account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	s.logger.Info("user logged in", slog.Int64("user_account_id", accountID))
	s.metrics.LoginResult("success")

	return &LoginResult{
		Token:     token,
		ExpiresAt: expiresAt,
		User: UserSummary{
			ID:          accountID,
			Email:       account.Email,
			FullName:    fullName,
			Role:        grant.RoleName,
			Permissions: grant.Permissions,
		},
	}, nil
}

// displayName prefers the profile's full name, then the account's own, then
// the email and finally the identifier used to sign in.
func (s *AuthService) displayName(ctx context.Context, account *models.Account, identifier string) (string, error) {
	name, err := s.profiles.GetFullName(ctx, account.ID)
	if err != nil && !errors.Is(err, models.ErrNotFound) {
		return "", err
	}

	for _, candidate := range []string{name, account.FullName, account.Email, identifier} {
		if strings.TrimSpace(candidate) != "" {
			return candidate, nil
		}
	}
	return identifier, nil
}

func (s *AuthService) recordFailure(ctx context.Context, accountID *int64, identifier, ipAddress, reason string) {
	s.recordAttempt(ctx, models.NewFailedAttempt(accountID, identifier, ipAddress, reason, s.now()))
}

// recordAttempt persists a login attempt. The write is best-effort: a
// failure is logged and counted but never changes the login outcome.
func (s *AuthService) recordAttempt(ctx context.Context, attempt *models.LoginAttempt) {
	event := pkglogger.AuditEvent{
		EventType:  "login_" + strings.ToLower(attempt.Status),
		Identifier: attempt.Identifier,
		IPAddress:  attempt.IPAddress,
		Success:    attempt.Status == models.LoginStatusSuccess,
	}
	if attempt.AccountID != nil {
		event.AccountID = strconv.FormatInt(*attempt.AccountID, 10)
	}
	if attempt.FailureReason != nil {
		event.FailureReason = *attempt.FailureReason
	}
	s.auditLogger.LogLoginAttempt(event)

	if err := s.attempts.Record(context.WithoutCancel(ctx), attempt); err != nil {
		s.logger.Error("failed to record login attempt",
			slog.String("status", attempt.Status),
			slog.Any("error", err))
		s.metrics.SideEffectFailed("login_attempt")
	}
}

// ForgotPassword issues a password reset OTP when email belongs to an
// account. The caller sees the same result either way and the call is
// padded to a minimum duration.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if email == "" {
		return models.ErrBadRequest
	}

	start := s.now()
	defer s.timing.WaitFrom(ctx, start)

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email")
			return nil
		}
		s.logger.Error("failed to look up account", slog.Any("error", err))
		return models.ErrInternalServer
	}

	if !s.allowReset(ctx, account.ID) {
		return nil
	}

	code, err := s.generateOTP()
	if err != nil {
		s.logger.Error("failed to generate otp", slog.Any("error", err))
		return models.ErrInternalServer
	}

	codeHash, err := s.otpHasher.Hash(ctx, code)
	if err != nil {
		s.logger.Error("failed to hash otp", slog.Int64("user_account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	_, err = s.otps.Create(ctx, &models.OTP{
		AccountID: account.ID,
		CodeHash:  codeHash,
		Purpose:   models.OTPPurposePasswordReset,
		ExpiresAt: s.now().UTC().Add(s.config.OTPTTL),
	})
	if err != nil {
		s.logger.Error("failed to store otp", slog.Int64("user_account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	s.metrics.OTPIssued()
	s.auditLogger.LogAccountAction("password_reset_requested", strconv.FormatInt(account.ID, 10), "", nil)
	s.notifier.Notify(ctx, OTPNotification{
		AccountID: account.ID,
		Email:     account.Email,
		Code:      code,
	})

	return nil
}

// allowReset applies the per-account throttle. Throttle errors fail open.
func (s *AuthService) allowReset(ctx context.Context, accountID int64) bool {
	if s.throttle == nil || s.config.ResetThrottleWindow <= 0 {
		return true
	}

	allowed, err := s.throttle.Allow(ctx, strconv.FormatInt(accountID, 10), s.config.ResetThrottleWindow)
	if err != nil {
		s.logger.Warn("reset throttle unavailable", slog.Int64("user_account_id", accountID), slog.Any("error", err))
		return true
	}
	if !allowed {
		s.logger.Info("password reset throttled", slog.Int64("user_account_id", accountID))
	}
	return allowed
}

// ResetPassword consumes the latest unused reset OTP for email and replaces
// the account's password.
func (s *AuthService) ResetPassword(ctx context.Context, email, code, newPassword string) error {
	email = strings.TrimSpace(email)
	code = strings.TrimSpace(code)
	if email == "" || code == "" || newPassword == "" {
		return models.ErrBadRequest
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.metrics.ResetResult("invalid_otp")
			return models.ErrInvalidOTP
		}
		s.logger.Error("failed to look up account", slog.Any("error", err))
		return models.ErrInternalServer
	}

	otp, err := s.otps.GetLatestUnused(ctx, account.ID, models.OTPPurposePasswordReset)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.metrics.ResetResult("invalid_otp")
			return models.ErrInvalidOTP
		}
		s.logger.Error("failed to load otp", slog.Int64("user_account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	match, err := s.otpHasher.Verify(ctx, code, otp.CodeHash)
	if err != nil {
		s.logger.Error("failed to verify otp", slog.Int64("user_account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}
	if !match {
		s.logger.Info("password reset rejected: otp mismatch", slog.Int64("user_account_id", account.ID))
		s.metrics.ResetResult("invalid_otp")
		return models.ErrInvalidOTP
	}

	if otp.IsExpired(s.now()) {
		s.logger.Info("password reset rejected: otp expired", slog.Int64("user_account_id", account.ID))
		s.metrics.ResetResult("expired_otp")
		return models.ErrOTPExpired
	}

	if err := pkgauth.ValidatePassword(newPassword); err != nil {
		s.metrics.ResetResult("weak_password")
		return err
	}

	passwordHash, err := s.passwords.Hash(ctx, newPassword)
	if err != nil {
		s.logger.Error("failed to hash password", slog.Int64("user_account_id", account.ID), slog.Any("error", err))
		return models.ErrInternalServer
	}

	if err := s.resets.ResetWithOTP(ctx, otp.ID, account.ID, passwordHash); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.logger.Info("password reset rejected: otp already consumed",
				slog.Int64("user_account_id", account.ID),
				slog.Int64("otp_id", otp.ID))
			s.metrics.ResetResult("invalid_otp")
			return models.ErrInvalidOTP
		}
		s.logger.Error("failed to reset password",
			slog.Int64("user_account_id", account.ID),
			slog.Int64("otp_id", otp.ID),
			slog.Any("error", err))
		return models.ErrInternalServer
	}

	actorID := account.ID
	s.audit.Record(ctx, &models.AuditEntry{
		ActorID:    &actorID,
		Action:     models.AuditActionPasswordReset,
		EntityName: models.AuditEntityUserAccount,
		EntityID:   strconv.FormatInt(account.ID, 10),
	})

	s.logger.Info("password reset", slog.Int64("user_account_id", account.ID))
	s.metrics.ResetResult("success")

	return nil
}
