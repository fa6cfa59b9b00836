package models

import "github.com/golang-jwt/jwt/v5"

// SessionClaims is the payload of a signed session token.
type SessionClaims struct {
	AccountID   int64               `json:"user_account_id"`
	Email       string              `json:"email"`
	RoleID      *int64              `json:"role_id"`
	RoleName    string              `json:"role_name"`
	Permissions []ModulePermissions `json:"permissions"`
	jwt.RegisteredClaims
}
