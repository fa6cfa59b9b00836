package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/farmgate/internal/database"
	"github.com/BradenHooton/farmgate/internal/models"
	squirrel "github.com/Masterminds/squirrel"
)

const otpTable = "auth.otp"

type OTPRepository struct {
	pool querier
}

func NewOTPRepository(db *database.DB) *OTPRepository {
	return &OTPRepository{pool: db.Pool}
}

func (r *OTPRepository) Create(ctx context.Context, otp *models.OTP) (*models.OTP, error) {
	stmt, args, err := psql.Insert(otpTable).
		Columns("user_account_id", "otp_code", "purpose", "expires_at", "is_used").
		Values(otp.AccountID, otp.CodeHash, otp.Purpose, utc(otp.ExpiresAt), false).
		Suffix("RETURNING otp_id, created_at").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build otp insert: %w", err)
	}

	created := *otp
	created.IsUsed = false
	if err := r.pool.QueryRow(ctx, stmt, args...).Scan(&created.ID, &created.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create otp: %w", database.MapPostgresError(err))
	}
	return &created, nil
}

// GetLatestUnused returns the most recently created unused OTP for the
// account and purpose, or ErrNotFound.
func (r *OTPRepository) GetLatestUnused(ctx context.Context, accountID int64, purpose string) (*models.OTP, error) {
	stmt, args, err := psql.Select("otp_id", "user_account_id", "otp_code", "purpose", "expires_at", "is_used", "created_at").
		From(otpTable).
		Where(squirrel.Eq{"user_account_id": accountID, "purpose": purpose, "is_used": false}).
		OrderBy("created_at DESC", "otp_id DESC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build otp query: %w", err)
	}

	var otp models.OTP
	var isUsed *bool
	err = r.pool.QueryRow(ctx, stmt, args...).Scan(
		&otp.ID, &otp.AccountID, &otp.CodeHash, &otp.Purpose, &otp.ExpiresAt, &isUsed, &otp.CreatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}
	otp.IsUsed = isUsed != nil && *isUsed

	return &otp, nil
}

// claimOTP marks the OTP used. Only one caller can claim a given OTP; an
// already used or missing OTP yields ErrNotFound.
func claimOTP(ctx context.Context, q execer, id int64) error {
	stmt, args, err := psql.Update(otpTable).
		Set("is_used", true).
		Where(squirrel.Eq{"otp_id": id, "is_used": false}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build otp update: %w", err)
	}

	tag, err := q.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to mark otp used: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}

// DeleteExpiredBefore removes OTPs whose expiry is earlier than cutoff
func (r *OTPRepository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	stmt, args, err := psql.Delete(otpTable).
		Where(squirrel.Lt{"expires_at": utc(cutoff)}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build otp cleanup: %w", err)
	}

	tag, err := r.pool.Exec(ctx, stmt, args...)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired otps: %w", database.MapPostgresError(err))
	}
	return tag.RowsAffected(), nil
}
