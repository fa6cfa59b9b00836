package models

// DefaultRoleName is reported for accounts without a role assignment.
const DefaultRoleName = "User"

type Role struct {
	ID   int64  `db:"role_id"`
	Name string `db:"role_name"`
}

// Permission is a single (module, action) grant.
type Permission struct {
	ID     int64  `db:"permission_id"`
	Module string `db:"module_name"`
	Action string `db:"action"`
}

// ModulePermissions groups the actions granted on one module.
type ModulePermissions struct {
	Module  string   `json:"module"`
	Actions []string `json:"actions"`
}

// Grant is the resolved role and permission set for an account.
type Grant struct {
	RoleID      *int64
	RoleName    string
	Permissions []ModulePermissions
}

// HasPermission reports whether action is listed under module.
func HasPermission(perms []ModulePermissions, module, action string) bool {
	for _, p := range perms {
		if p.Module != module {
			continue
		}
		for _, a := range p.Actions {
			if a == action {
				return true
			}
		}
	}
	return false
}
