package postgrest

import (
	"context"
	"net/url"

	"github.com/BradenHooton/farmgate/internal/models"
)

// RBACStore resolves roles and permissions through the rbac schema
type RBACStore struct {
	client *Client
}

func NewRBACStore(client *Client) *RBACStore {
	return &RBACStore{client: client}
}

// GetRoleForAccount returns the account's earliest assigned role, or
// ErrNotFound when the account has none. A dangling role id yields a role
// with an empty name.
func (s *RBACStore) GetRoleForAccount(ctx context.Context, accountID int64) (*models.Role, error) {
	var assignments []struct {
		RoleID int64 `json:"role_id"`
	}
	query := url.Values{
		"select":          {"role_id"},
		"user_account_id": {eqInt(accountID)},
		"order":           {"assigned_at.asc,role_id.asc"},
		"limit":           {"1"},
	}
	if err := s.client.Get(ctx, "rbac", "user_role", query, &assignments); err != nil {
		return nil, err
	}
	if len(assignments) == 0 {
		return nil, models.ErrNotFound
	}

	role := &models.Role{ID: assignments[0].RoleID}

	var roles []struct {
		Name string `json:"role_name"`
	}
	query = url.Values{
		"select":  {"role_name"},
		"role_id": {eqInt(role.ID)},
	}
	if err := s.client.Get(ctx, "rbac", "role", query, &roles); err != nil {
		return nil, err
	}
	if len(roles) > 0 {
		role.Name = roles[0].Name
	}

	return role, nil
}

// ListPermissionsForRole returns the role's permissions ordered by permission id
func (s *RBACStore) ListPermissionsForRole(ctx context.Context, roleID int64) ([]models.Permission, error) {
	var links []struct {
		PermissionID int64 `json:"permission_id"`
	}
	query := url.Values{
		"select":  {"permission_id"},
		"role_id": {eqInt(roleID)},
	}
	if err := s.client.Get(ctx, "rbac", "role_permission", query, &links); err != nil {
		return nil, err
	}

	perms := make([]models.Permission, 0, len(links))
	if len(links) == 0 {
		return perms, nil
	}

	ids := make([]int64, len(links))
	for i, l := range links {
		ids[i] = l.PermissionID
	}

	var rows []struct {
		ID     int64  `json:"permission_id"`
		Module string `json:"module_name"`
		Action string `json:"action"`
	}
	query = url.Values{
		"select":        {"permission_id,module_name,action"},
		"permission_id": {inInts(ids)},
		"order":         {"permission_id.asc"},
	}
	if err := s.client.Get(ctx, "rbac", "permission", query, &rows); err != nil {
		return nil, err
	}

	for _, r := range rows {
		perms = append(perms, models.Permission{ID: r.ID, Module: r.Module, Action: r.Action})
	}
	return perms, nil
}
