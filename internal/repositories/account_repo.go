package repositories

import (
	"context"
	"fmt"
	"time"

	"github.com/BradenHooton/farmgate/internal/database"
	"github.com/BradenHooton/farmgate/internal/models"
	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

const accountTable = "auth.user_account"

var accountColumns = []string{
	"user_account_id", "email", "phone_number", "password_hash", "status",
	"failed_login_attempts", "last_login_at", "full_name", "created_at", "updated_at",
}

type AccountRepository struct {
	pool *pgxpool.Pool
}

func NewAccountRepository(db *database.DB) *AccountRepository {
	return &AccountRepository{pool: db.Pool}
}

// scanAccountRow handles the nullable columns of auth.user_account
func scanAccountRow(scanner rowScanner) (*models.Account, error) {
	var account models.Account
	var email, phone, fullName *string
	var failed *int
	var createdAt *time.Time

	err := scanner.Scan(
		&account.ID, &email, &phone, &account.PasswordHash, &account.Status,
		&failed, &account.LastLoginAt, &fullName, &createdAt, &account.UpdatedAt,
	)
	if err != nil {
		return nil, database.MapPostgresError(err)
	}

	account.Email = derefString(email)
	account.PhoneNumber = derefString(phone)
	account.FullName = derefString(fullName)
	if failed != nil {
		account.FailedLoginAttempts = *failed
	}
	if createdAt != nil {
		account.CreatedAt = *createdAt
	}

	return &account, nil
}

func (r *AccountRepository) getOne(ctx context.Context, where squirrel.Sqlizer) (*models.Account, error) {
	stmt, args, err := psql.Select(accountColumns...).
		From(accountTable).
		Where(where).
		OrderBy("user_account_id ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build account query: %w", err)
	}

	return scanAccountRow(r.pool.QueryRow(ctx, stmt, args...))
}

// GetByIdentifier matches the identifier against email or phone number
func (r *AccountRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.Account, error) {
	return r.getOne(ctx, squirrel.Or{
		squirrel.Eq{"email": identifier},
		squirrel.Eq{"phone_number": identifier},
	})
}

func (r *AccountRepository) GetByEmail(ctx context.Context, email string) (*models.Account, error) {
	return r.getOne(ctx, squirrel.Eq{"email": email})
}

func (r *AccountRepository) GetByID(ctx context.Context, id int64) (*models.Account, error) {
	return r.getOne(ctx, squirrel.Eq{"user_account_id": id})
}

// IncrementFailedLogins bumps the counter in a single statement and returns
// the stored value.
func (r *AccountRepository) IncrementFailedLogins(ctx context.Context, account *models.Account) (int, error) {
	stmt, args, err := psql.Update(accountTable).
		Set("failed_login_attempts", squirrel.Expr("COALESCE(failed_login_attempts, 0) + 1")).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"user_account_id": account.ID}).
		Suffix("RETURNING failed_login_attempts").
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build increment query: %w", err)
	}

	var count int
	if err := r.pool.QueryRow(ctx, stmt, args...).Scan(&count); err != nil {
		return 0, database.MapPostgresError(err)
	}

	account.FailedLoginAttempts = count
	return count, nil
}

func (r *AccountRepository) RecordSuccessfulLogin(ctx context.Context, id int64, at time.Time) error {
	return r.update(ctx, id, map[string]interface{}{
		"failed_login_attempts": 0,
		"last_login_at":         utc(at),
	})
}

// passwordValues replaces the hash and clears the failure counter
func passwordValues(passwordHash string) map[string]interface{} {
	return map[string]interface{}{
		"password_hash":         passwordHash,
		"failed_login_attempts": 0,
	}
}

func (r *AccountRepository) ResetFailedLogins(ctx context.Context, id int64) error {
	return r.update(ctx, id, map[string]interface{}{
		"failed_login_attempts": 0,
	})
}

func (r *AccountRepository) update(ctx context.Context, id int64, values map[string]interface{}) error {
	return updateAccount(ctx, r.pool, id, values)
}

func updateAccount(ctx context.Context, q execer, id int64, values map[string]interface{}) error {
	stmt, args, err := psql.Update(accountTable).
		SetMap(values).
		Set("updated_at", squirrel.Expr("now()")).
		Where(squirrel.Eq{"user_account_id": id}).
		ToSql()
	if err != nil {
		return fmt.Errorf("failed to build account update: %w", err)
	}

	tag, err := q.Exec(ctx, stmt, args...)
	if err != nil {
		return fmt.Errorf("failed to update account: %w", database.MapPostgresError(err))
	}
	if tag.RowsAffected() == 0 {
		return models.ErrNotFound
	}
	return nil
}
