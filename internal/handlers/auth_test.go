package handlers_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/BradenHooton/farmgate/internal/handlers"
	"github.com/BradenHooton/farmgate/internal/models"
	"github.com/BradenHooton/farmgate/internal/services"
	pkgauth "github.com/BradenHooton/farmgate/pkg/auth"
	pkghttp "github.com/BradenHooton/farmgate/pkg/http"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogin_Success(t *testing.T) {
	expiresAt := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	var gotIdentifier, gotIP string

	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, identifier, password, ipAddress string) (*services.LoginResult, error) {
			gotIdentifier = identifier
			gotIP = ipAddress
			return &services.LoginResult{
				Token:     "signed.token.value",
				ExpiresAt: expiresAt,
				User: services.UserSummary{
					ID:       7,
					Email:    "manager@farm.test",
					FullName: "Jane Herder",
					Role:     "Farm Manager",
					Permissions: []models.ModulePermissions{
						{Module: "goat", Actions: []string{"read", "update"}},
					},
				},
			}, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
		Identifier: "  manager@farm.test ",
		Password:   "Secret#123",
	})
	req.RemoteAddr = "203.0.113.9:5000"

	w := httptest.NewRecorder()
	handler.Login(w, req)

	var resp services.LoginResult
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "signed.token.value", resp.Token)
	assert.True(t, expiresAt.Equal(resp.ExpiresAt))
	assert.Equal(t, int64(7), resp.User.ID)
	assert.Equal(t, "Jane Herder", resp.User.FullName)
	assert.Equal(t, "Farm Manager", resp.User.Role)
	require.Len(t, resp.User.Permissions, 1)
	assert.Equal(t, "goat", resp.User.Permissions[0].Module)

	assert.Equal(t, "manager@farm.test", gotIdentifier)
	assert.Equal(t, "203.0.113.9", gotIP)
}

func TestLogin_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"bad request", models.ErrBadRequest, http.StatusBadRequest, "bad_request", "Identifier and password are required"},
		{"invalid credentials", models.ErrInvalidCredentials, http.StatusUnauthorized, "unauthorized", "Invalid credentials"},
		{"inactive", models.ErrAccountInactive, http.StatusForbidden, "forbidden", "Account is inactive. Please contact admin."},
		{"locked", models.ErrAccountLocked, http.StatusLocked, "account_locked", "Account locked. Contact admin."},
		{"internal", models.ErrInternalServer, http.StatusInternalServerError, "internal_error", "Internal server error"},
		{"unexpected", errors.New("boom"), http.StatusInternalServerError, "internal_error", "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAuth := &handlers.MockAuthService{
				LoginFunc: func(ctx context.Context, identifier, password, ipAddress string) (*services.LoginResult, error) {
					return nil, tt.err
				},
			}

			handler := handlers.NewAuthHandler(mockAuth, nil)
			req := handlers.NewTestRequest(t, "POST", "/auth/login", handlers.LoginRequest{
				Identifier: "manager@farm.test",
				Password:   "whatever",
			})

			w := httptest.NewRecorder()
			handler.Login(w, req)

			handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode, tt.wantMsg)
		})
	}
}

func TestLogin_MissingFields(t *testing.T) {
	called := false
	mockAuth := &handlers.MockAuthService{
		LoginFunc: func(ctx context.Context, identifier, password, ipAddress string) (*services.LoginResult, error) {
			called = true
			return nil, nil
		},
	}

	handler := handlers.NewAuthHandler(mockAuth, nil)

	for _, body := range []handlers.LoginRequest{
		{Identifier: "", Password: "x"},
		{Identifier: "   ", Password: "x"},
		{Identifier: "manager@farm.test", Password: ""},
	} {
		req := handlers.NewTestRequest(t, "POST", "/auth/login", body)
		w := httptest.NewRecorder()
		handler.Login(w, req)

		assert.Equal(t, http.StatusBadRequest, w.Code)
	}
	assert.False(t, called, "service should not be reached for incomplete input")
}

func TestLogin_InvalidJSON(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil)
	req := httptest.NewRequest("POST", "/auth/login", strings.NewReader("{not json"))

	w := httptest.NewRecorder()
	handler.Login(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request", "Invalid request body")
}

func TestLogin_OversizedBody(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil)
	body := `{"identifier":"a","password":"` + strings.Repeat("x", 1<<17) + `"}`
	req := httptest.NewRequest("POST", "/auth/login", strings.NewReader(body))

	w := httptest.NewRecorder()
	handler.Login(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestForgotPassword_SameResponseForKnownAndUnknownEmail(t *testing.T) {
	registered := map[string]bool{"manager@farm.test": true}
	var sent []string

	mockAuth := &handlers.MockAuthService{
		ForgotPasswordFunc: func(ctx context.Context, email string) error {
			if registered[email] {
				sent = append(sent, email)
			}
			return nil
		},
	}
	handler := handlers.NewAuthHandler(mockAuth, nil)

	bodies := make([]string, 0, 2)
	for _, email := range []string{"manager@farm.test", "nobody@farm.test"} {
		req := handlers.NewTestRequest(t, "POST", "/auth/forgot-password", handlers.ForgotPasswordRequest{Email: email})
		w := httptest.NewRecorder()
		handler.ForgotPassword(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		bodies = append(bodies, w.Body.String())
	}

	assert.Equal(t, bodies[0], bodies[1])
	assert.Equal(t, []string{"manager@farm.test"}, sent)

	var resp pkghttp.MessageResponse
	require.NoError(t, json.Unmarshal([]byte(bodies[0]), &resp))
	assert.Equal(t, "If email exists, OTP has been sent", resp.Message)
}

func TestForgotPassword_MissingEmail(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/forgot-password", handlers.ForgotPasswordRequest{Email: " "})

	w := httptest.NewRecorder()
	handler.ForgotPassword(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request", "Email is required")
}

func TestForgotPassword_InternalError(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		ForgotPasswordFunc: func(ctx context.Context, email string) error {
			return models.ErrInternalServer
		},
	}
	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/forgot-password", handlers.ForgotPasswordRequest{Email: "manager@farm.test"})

	w := httptest.NewRecorder()
	handler.ForgotPassword(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusInternalServerError, "internal_error", "Internal server error")
}

func TestResetPassword_Success(t *testing.T) {
	var gotEmail, gotOTP, gotPassword string
	mockAuth := &handlers.MockAuthService{
		ResetPasswordFunc: func(ctx context.Context, email, otp, newPassword string) error {
			gotEmail, gotOTP, gotPassword = email, otp, newPassword
			return nil
		},
	}
	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/reset-password", handlers.ResetPasswordRequest{
		Email:       "manager@farm.test",
		OTP:         " 123456 ",
		NewPassword: "NewPass#2024",
	})

	w := httptest.NewRecorder()
	handler.ResetPassword(w, req)

	var resp pkghttp.MessageResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, "Password reset successful. You can now login.", resp.Message)
	assert.Equal(t, "manager@farm.test", gotEmail)
	assert.Equal(t, "123456", gotOTP)
	assert.Equal(t, "NewPass#2024", gotPassword)
}

func TestResetPassword_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
		wantMsg    string
	}{
		{"invalid otp", models.ErrInvalidOTP, http.StatusBadRequest, "bad_request", "Invalid or expired OTP"},
		{"expired otp", models.ErrOTPExpired, http.StatusBadRequest, "bad_request", "OTP has expired"},
		{"bad request", models.ErrBadRequest, http.StatusBadRequest, "bad_request", "Email, OTP, and new password are required"},
		{"internal", models.ErrInternalServer, http.StatusInternalServerError, "internal_error", "Internal server error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockAuth := &handlers.MockAuthService{
				ResetPasswordFunc: func(ctx context.Context, email, otp, newPassword string) error {
					return tt.err
				},
			}
			handler := handlers.NewAuthHandler(mockAuth, nil)
			req := handlers.NewTestRequest(t, "POST", "/auth/reset-password", handlers.ResetPasswordRequest{
				Email:       "manager@farm.test",
				OTP:         "123456",
				NewPassword: "NewPass#2024",
			})

			w := httptest.NewRecorder()
			handler.ResetPassword(w, req)

			handlers.AssertErrorResponse(t, w, tt.wantStatus, tt.wantCode, tt.wantMsg)
		})
	}
}

func TestResetPassword_WeakPasswordIncludesDetails(t *testing.T) {
	mockAuth := &handlers.MockAuthService{
		ResetPasswordFunc: func(ctx context.Context, email, otp, newPassword string) error {
			return pkgauth.ValidatePassword(newPassword)
		},
	}
	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/reset-password", handlers.ResetPasswordRequest{
		Email:       "manager@farm.test",
		OTP:         "123456",
		NewPassword: "short",
	})

	w := httptest.NewRecorder()
	handler.ResetPassword(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request", pkgauth.PasswordPolicyMessage)

	var resp pkghttp.ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Details)
}

func TestResetPassword_MissingFields(t *testing.T) {
	called := false
	mockAuth := &handlers.MockAuthService{
		ResetPasswordFunc: func(ctx context.Context, email, otp, newPassword string) error {
			called = true
			return nil
		},
	}
	handler := handlers.NewAuthHandler(mockAuth, nil)
	req := handlers.NewTestRequest(t, "POST", "/auth/reset-password", handlers.ResetPasswordRequest{
		Email: "manager@farm.test",
		OTP:   "123456",
	})

	w := httptest.NewRecorder()
	handler.ResetPassword(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusBadRequest, "bad_request", "Email, OTP, and new password are required")
	assert.False(t, called)
}

func TestMe_ReturnsClaims(t *testing.T) {
	roleID := int64(2)
	expiresAt := time.Now().Add(time.Hour).Truncate(time.Second)
	claims := &models.SessionClaims{
		AccountID: 7,
		Email:     "manager@farm.test",
		RoleID:    &roleID,
		RoleName:  "Farm Manager",
		Permissions: []models.ModulePermissions{
			{Module: "goat", Actions: []string{"read"}},
		},
		RegisteredClaims: jwt.RegisteredClaims{ExpiresAt: jwt.NewNumericDate(expiresAt)},
	}

	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil)
	req := handlers.WithClaimsContext(httptest.NewRequest("GET", "/auth/me", nil), claims)

	w := httptest.NewRecorder()
	handler.Me(w, req)

	var resp handlers.SessionResponse
	handlers.AssertJSONResponse(t, w, http.StatusOK, &resp)
	assert.Equal(t, int64(7), resp.AccountID)
	assert.Equal(t, "Farm Manager", resp.RoleName)
	require.NotNil(t, resp.RoleID)
	assert.Equal(t, int64(2), *resp.RoleID)
	require.NotNil(t, resp.ExpiresAt)
	assert.True(t, expiresAt.Equal(*resp.ExpiresAt))
	assert.Len(t, resp.Permissions, 1)
}

func TestMe_WithoutClaims(t *testing.T) {
	handler := handlers.NewAuthHandler(&handlers.MockAuthService{}, nil)
	req := httptest.NewRequest("GET", "/auth/me", nil)

	w := httptest.NewRecorder()
	handler.Me(w, req)

	handlers.AssertErrorResponse(t, w, http.StatusUnauthorized, "unauthorized", "Unauthorized")
}
