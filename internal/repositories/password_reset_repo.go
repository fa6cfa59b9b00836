package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/farmgate/internal/database"
	"github.com/jackc/pgx/v5"
)

// PasswordResetRepository consumes an OTP and replaces the password in one
// transaction.
type PasswordResetRepository struct {
	db *database.DB
}

func NewPasswordResetRepository(db *database.DB) *PasswordResetRepository {
	return &PasswordResetRepository{db: db}
}

// ResetWithOTP returns models.ErrNotFound when the OTP was already claimed,
// in which case the password is left as it was.
func (r *PasswordResetRepository) ResetWithOTP(ctx context.Context, otpID, accountID int64, passwordHash string) error {
	return r.db.WithTransaction(ctx, func(tx pgx.Tx) error {
		if err := claimOTP(ctx, tx, otpID); err != nil {
			return err
		}
		if err := updateAccount(ctx, tx, accountID, passwordValues(passwordHash)); err != nil {
			return fmt.Errorf("failed to reset password: %w", err)
		}
		return nil
	})
}
