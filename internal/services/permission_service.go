package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/BradenHooton/farmgate/internal/models"
)

// PermissionService resolves an account's role into the grouped permission
// set embedded in session tokens.
type PermissionService struct {
	repo RBACRepository
}

func NewPermissionService(repo RBACRepository) *PermissionService {
	return &PermissionService{
		repo: repo,
	}
}

// Resolve returns the account's first role and its permissions. An account
// without a role gets DefaultRoleName and no permissions.
func (s *PermissionService) Resolve(ctx context.Context, accountID int64) (*models.Grant, error) {
	role, err := s.repo.GetRoleForAccount(ctx, accountID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return &models.Grant{
				RoleName:    models.DefaultRoleName,
				Permissions: []models.ModulePermissions{},
			}, nil
		}
		return nil, fmt.Errorf("failed to resolve role: %w", err)
	}

	perms, err := s.repo.ListPermissionsForRole(ctx, role.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to list role permissions: %w", err)
	}

	roleID := role.ID
	return &models.Grant{
		RoleID:      &roleID,
		RoleName:    role.Name,
		Permissions: GroupPermissions(perms),
	}, nil
}

// GroupPermissions folds (module, action) pairs into one entry per module.
// Modules keep the order in which they first appear and so do the actions
// within a module. Duplicates are dropped. Tokens are compared by value
// downstream, so this order is part of the contract.
func GroupPermissions(perms []models.Permission) []models.ModulePermissions {
	grouped := make([]models.ModulePermissions, 0, len(perms))
	index := make(map[string]int, len(perms))
	seen := make(map[[2]string]struct{}, len(perms))

	for _, p := range perms {
		key := [2]string{p.Module, p.Action}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		i, ok := index[p.Module]
		if !ok {
			i = len(grouped)
			index[p.Module] = i
			grouped = append(grouped, models.ModulePermissions{Module: p.Module, Actions: []string{}})
		}
		grouped[i].Actions = append(grouped[i].Actions, p.Action)
	}

	return grouped
}
