package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/BradenHooton/farmgate/internal/auth"
	"github.com/BradenHooton/farmgate/internal/models"
	"github.com/BradenHooton/farmgate/internal/services"
	pkgauth "github.com/BradenHooton/farmgate/pkg/auth"
	pkghttp "github.com/BradenHooton/farmgate/pkg/http"
)

// Client-facing messages. Kept identical across branches that must not be
// distinguishable.
const (
	msgInvalidCredentials = "Invalid credentials"
	msgAccountInactive    = "Account is inactive. Please contact admin."
	msgAccountLocked      = "Account locked. Contact admin."
	msgForgotPassword     = "If email exists, OTP has been sent"
	msgInvalidOTP         = "Invalid or expired OTP"
	msgOTPExpired         = "OTP has expired"
	msgResetSuccess       = "Password reset successful. You can now login."
	msgInternalError      = "Internal server error"
)

// maxBodyBytes caps JSON request bodies
const maxBodyBytes = 1 << 16

// AuthServiceInterface defines the interface for auth business logic
type AuthServiceInterface interface {
	Login(ctx context.Context, identifier, password, ipAddress string) (*services.LoginResult, error)
	ForgotPassword(ctx context.Context, email string) error
	ResetPassword(ctx context.Context, email, otp, newPassword string) error
}

// AuthHandler handles authentication-related HTTP requests
type AuthHandler struct {
	service  AuthServiceInterface
	ipConfig *pkghttp.IPConfig
}

func NewAuthHandler(service AuthServiceInterface, ipConfig *pkghttp.IPConfig) *AuthHandler {
	return &AuthHandler{
		service:  service,
		ipConfig: ipConfig,
	}
}

// Request DTOs

// LoginRequest accepts an email address or a phone number as identifier
type LoginRequest struct {
	Identifier string `json:"identifier" validate:"required,max=255"`
	Password   string `json:"password" validate:"required"`
}

type ForgotPasswordRequest struct {
	Email string `json:"email" validate:"required,max=255"`
}

type ResetPasswordRequest struct {
	Email       string `json:"email" validate:"required,max=255"`
	OTP         string `json:"otp" validate:"required"`
	NewPassword string `json:"new_password" validate:"required"`
}

// SessionResponse describes the caller's verified token
type SessionResponse struct {
	AccountID   int64                      `json:"user_account_id"`
	Email       string                     `json:"email"`
	RoleID      *int64                     `json:"role_id"`
	RoleName    string                     `json:"role_name"`
	Permissions []models.ModulePermissions `json:"permissions"`
	ExpiresAt   *time.Time                 `json:"expires_at,omitempty"`
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	return json.NewDecoder(r.Body).Decode(dst)
}

// Login handles POST /auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest

	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	req.Identifier = strings.TrimSpace(req.Identifier)
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "bad_request", "Identifier and password are required", err.Error())
		return
	}

	ipAddress := pkghttp.ExtractClientIP(r, h.ipConfig)

	result, err := h.service.Login(r.Context(), req.Identifier, req.Password, ipAddress)
	if err != nil {
		switch {
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Identifier and password are required")
		case errors.Is(err, models.ErrInvalidCredentials):
			pkghttp.WriteUnauthorized(w, msgInvalidCredentials)
		case errors.Is(err, models.ErrAccountInactive):
			pkghttp.WriteForbidden(w, msgAccountInactive)
		case errors.Is(err, models.ErrAccountLocked):
			pkghttp.WriteLocked(w, msgAccountLocked)
		default:
			pkghttp.WriteInternalError(w, msgInternalError)
		}
		return
	}

	pkghttp.WriteJSON(w, http.StatusOK, result)
}

// ForgotPassword handles POST /auth/forgot-password. The success body is
// the same whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) {
	var req ForgotPasswordRequest

	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, "Email is required")
		return
	}

	if err := h.service.ForgotPassword(r.Context(), req.Email); err != nil {
		if errors.Is(err, models.ErrBadRequest) {
			pkghttp.WriteBadRequest(w, "Email is required")
			return
		}
		pkghttp.WriteInternalError(w, msgInternalError)
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, msgForgotPassword)
}

// ResetPassword handles POST /auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var req ResetPasswordRequest

	if err := decodeJSON(w, r, &req); err != nil {
		pkghttp.WriteBadRequest(w, "Invalid request body")
		return
	}

	req.Email = strings.TrimSpace(req.Email)
	req.OTP = strings.TrimSpace(req.OTP)
	if err := ValidateRequest(req); err != nil {
		pkghttp.WriteBadRequest(w, "Email, OTP, and new password are required")
		return
	}

	err := h.service.ResetPassword(r.Context(), req.Email, req.OTP, req.NewPassword)
	if err != nil {
		var policyErr *pkgauth.PasswordValidationError
		switch {
		case errors.As(err, &policyErr):
			pkghttp.WriteErrorWithDetails(w, http.StatusBadRequest, "bad_request", policyErr.Error(), strings.Join(policyErr.Errors, "; "))
		case errors.Is(err, models.ErrBadRequest):
			pkghttp.WriteBadRequest(w, "Email, OTP, and new password are required")
		case errors.Is(err, models.ErrOTPExpired):
			pkghttp.WriteBadRequest(w, msgOTPExpired)
		case errors.Is(err, models.ErrInvalidOTP):
			pkghttp.WriteBadRequest(w, msgInvalidOTP)
		default:
			pkghttp.WriteInternalError(w, msgInternalError)
		}
		return
	}

	pkghttp.WriteMessage(w, http.StatusOK, msgResetSuccess)
}

// Me handles GET /auth/me and echoes the verified session claims
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims := auth.GetClaimsFromContext(r.Context())
	if claims == nil {
		pkghttp.WriteUnauthorized(w, "Unauthorized")
		return
	}

	resp := SessionResponse{
		AccountID:   claims.AccountID,
		Email:       claims.Email,
		RoleID:      claims.RoleID,
		RoleName:    claims.RoleName,
		Permissions: claims.Permissions,
	}
	if resp.Permissions == nil {
		resp.Permissions = []models.ModulePermissions{}
	}
	if claims.ExpiresAt != nil {
		expiresAt := claims.ExpiresAt.Time
		resp.ExpiresAt = &expiresAt
	}

	pkghttp.WriteJSON(w, http.StatusOK, resp)
}
