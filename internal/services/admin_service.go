package services

import (
	"context"
	"errors"
	"log/slog"
	"strconv"

	"github.com/BradenHooton/farmgate/internal/models"
)

// AdminAccountRepository is the subset of AccountRepository methods needed by AdminService.
type AdminAccountRepository interface {
	GetByID(ctx context.Context, id int64) (*models.Account, error)
	ResetFailedLogins(ctx context.Context, id int64) error
}

// AdminService holds operator actions on accounts.
type AdminService struct {
	accounts AdminAccountRepository
	audit    AuditRecorder
	logger   *slog.Logger
}

func NewAdminService(accounts AdminAccountRepository, audit AuditRecorder, logger *slog.Logger) *AdminService {
	return &AdminService{
		accounts: accounts,
		audit:    audit,
		logger:   logger,
	}
}

// UnlockAccount clears the failed login counter, ending a lockout. It is
// audited with the counter before and after.
func (s *AdminService) UnlockAccount(ctx context.Context, actorID, accountID int64) (*models.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("unlock: failed to load account", slog.Int64("user_account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}

	previous := account.FailedLoginAttempts
	if err := s.accounts.ResetFailedLogins(ctx, accountID); err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return nil, models.ErrNotFound
		}
		s.logger.Error("unlock: failed to reset counter", slog.Int64("user_account_id", accountID), slog.Any("error", err))
		return nil, models.ErrInternalServer
	}
	account.FailedLoginAttempts = 0

	s.audit.Record(ctx, &models.AuditEntry{
		ActorID:    &actorID,
		Action:     models.AuditActionAccountUnlock,
		EntityName: models.AuditEntityUserAccount,
		EntityID:   strconv.FormatInt(accountID, 10),
		OldValue:   models.AuditSnapshot{"failed_login_attempts": previous},
		NewValue:   models.AuditSnapshot{"failed_login_attempts": 0},
	})

	s.logger.Info("account unlocked",
		slog.Int64("user_account_id", accountID),
		slog.Int64("actor_user_id", actorID),
		slog.Int("previous_failed_login_attempts", previous))

	return account, nil
}
