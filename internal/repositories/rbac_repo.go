package repositories

import (
	"context"
	"fmt"

	"github.com/BradenHooton/farmgate/internal/database"
	"github.com/BradenHooton/farmgate/internal/models"
	squirrel "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5/pgxpool"
)

// RBACRepository reads role assignments and role permissions
type RBACRepository struct {
	pool *pgxpool.Pool
}

func NewRBACRepository(db *database.DB) *RBACRepository {
	return &RBACRepository{pool: db.Pool}
}

// GetRoleForAccount returns the account's earliest assigned role, or
// ErrNotFound when the account has none.
func (r *RBACRepository) GetRoleForAccount(ctx context.Context, accountID int64) (*models.Role, error) {
	stmt, args, err := psql.Select("ur.role_id", "r.role_name").
		From("rbac.user_role ur").
		LeftJoin("rbac.role r ON r.role_id = ur.role_id").
		Where(squirrel.Eq{"ur.user_account_id": accountID}).
		OrderBy("ur.assigned_at ASC", "ur.role_id ASC").
		Limit(1).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build role query: %w", err)
	}

	var role models.Role
	var name *string
	if err := r.pool.QueryRow(ctx, stmt, args...).Scan(&role.ID, &name); err != nil {
		return nil, database.MapPostgresError(err)
	}
	role.Name = derefString(name)

	return &role, nil
}

// ListPermissionsForRole returns the role's permissions ordered by permission id
func (r *RBACRepository) ListPermissionsForRole(ctx context.Context, roleID int64) ([]models.Permission, error) {
	stmt, args, err := psql.Select("p.permission_id", "p.module_name", "p.action").
		From("rbac.role_permission rp").
		Join("rbac.permission p ON p.permission_id = rp.permission_id").
		Where(squirrel.Eq{"rp.role_id": roleID}).
		OrderBy("p.permission_id ASC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build permission query: %w", err)
	}

	rows, err := r.pool.Query(ctx, stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list permissions: %w", err)
	}
	defer rows.Close()

	perms := make([]models.Permission, 0)
	for rows.Next() {
		var p models.Permission
		if err := rows.Scan(&p.ID, &p.Module, &p.Action); err != nil {
			return nil, fmt.Errorf("failed to scan permission: %w", err)
		}
		perms = append(perms, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}

	return perms, nil
}
