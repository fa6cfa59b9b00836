package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/farmgate/internal/database"
	"github.com/BradenHooton/farmgate/internal/models"
	"github.com/jackc/pgx/v5/pgxpool"
)

// LoginAttemptRepository appends rows to auth.login_attempt
type LoginAttemptRepository struct {
	pool *pgxpool.Pool
}

func NewLoginAttemptRepository(db *database.DB) *LoginAttemptRepository {
	return &LoginAttemptRepository{pool: db.Pool}
}

// Record inserts the attempt and sets its generated id
func (r *LoginAttemptRepository) Record(ctx context.Context, attempt *models.LoginAttempt) error {
	stmt, args, err := psql.Insert("auth.login_attempt").
		Columns("user_account_id", "login_identifier", "status", "failure_reason", "ip_address", "attempted_at").
		Values(attempt.AccountID, attempt.Identifier, attempt.Status, attempt.FailureReason, attempt.IPAddress, utc(attempt.AttemptedAt)).
		Suffix("RETURNING login_attempt_id").
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build login attempt insert: %w", err)
	}

	if err := r.pool.QueryRow(ctx, stmt, args...).Scan(&attempt.ID); err != nil {
		return fmt.Errorf("failed to record login attempt: %w", database.MapPostgresError(err))
	}
	return nil
}
