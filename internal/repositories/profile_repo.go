package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/farmgate/internal/database"
	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

type ProfileRepository struct {
	pool *pgxpool.Pool
}

func NewProfileRepository(db *database.DB) *ProfileRepository {
	return &ProfileRepository{pool: db.Pool}
}

// GetFullName returns the profile's full name. A missing profile yields
// ErrNotFound; a profile without a name yields "".
func (r *ProfileRepository) GetFullName(ctx context.Context, accountID int64) (string, error) {
	stmt, args, err := psql.Select("full_name").
		From("core.user_profile").
		Where(squirrel.Eq{"user_account_id": accountID}).
		Limit(1).
		ToSql()
	if err != nil {
		return "", fmt.Errorf("failed to build profile query: %w", err)
	}

	var fullName *string
	if err := r.pool.QueryRow(ctx, stmt, args...).Scan(&fullName); err != nil {
		return "", database.MapPostgresError(err)
	}
	return derefString(fullName), nil
}
