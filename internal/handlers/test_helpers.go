package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/BradenHooton/farmgate/internal/auth"
	"github.com/BradenHooton/farmgate/internal/models"
	"github.com/BradenHooton/farmgate/internal/services"
	pkghttp "github.com/BradenHooton/farmgate/pkg/http"
	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
)

// NewTestRequest creates an HTTP request with JSON body for testing
func NewTestRequest(t *testing.T, method, url string, body interface{}) *http.Request {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatalf("failed to encode request body: %v", err)
		}
	}
	req := httptest.NewRequest(method, url, &buf)
	req.Header.Set("Content-Type", "application/json")
	return req
}

// WithClaimsContext stores session claims on the request the way
// auth.AuthMiddleware does
func WithClaimsContext(req *http.Request, claims *models.SessionClaims) *http.Request {
	ctx := context.WithValue(req.Context(), auth.ClaimsContextKey, claims)
	return req.WithContext(ctx)
}

// AssertJSONResponse checks that response has correct status and decodes JSON body
func AssertJSONResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, target interface{}) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"), "Content-Type should be application/json")

	if target != nil {
		err := json.Unmarshal(w.Body.Bytes(), target)
		assert.NoError(t, err, "Failed to decode response JSON")
	}
}

// AssertErrorResponse checks the status, error code and message of an error body
func AssertErrorResponse(t *testing.T, w *httptest.ResponseRecorder, expectedStatus int, expectedError, expectedMessage string) {
	assert.Equal(t, expectedStatus, w.Code, "Response status mismatch")

	var resp pkghttp.ErrorResponse
	err := json.Unmarshal(w.Body.Bytes(), &resp)
	assert.NoError(t, err, "Failed to decode error response")
	assert.Equal(t, expectedError, resp.Error, "Error code mismatch")
	if expectedMessage != "" {
		assert.Equal(t, expectedMessage, resp.Message, "Error message mismatch")
	} else {
		assert.NotEmpty(t, resp.Message, "Error message should not be empty")
	}
}

// MockAuthService implements AuthServiceInterface for testing
type MockAuthService struct {
	LoginFunc          func(ctx context.Context, identifier, password, ipAddress string) (*services.LoginResult, error)
	ForgotPasswordFunc func(ctx context.Context, email string) error
	ResetPasswordFunc  func(ctx context.Context, email, otp, newPassword string) error
}

func (m *MockAuthService) Login(ctx context.Context, identifier, password, ipAddress string) (*services.LoginResult, error) {
	if m.LoginFunc == nil {
		return nil, models.ErrInvalidCredentials
	}
	return m.LoginFunc(ctx, identifier, password, ipAddress)
}

func (m *MockAuthService) ForgotPassword(ctx context.Context, email string) error {
	if m.ForgotPasswordFunc == nil {
		return nil
	}
	return m.ForgotPasswordFunc(ctx, email)
}

func (m *MockAuthService) ResetPassword(ctx context.Context, email, otp, newPassword string) error {
	if m.ResetPasswordFunc == nil {
		return models.ErrInvalidOTP
	}
	return m.ResetPasswordFunc(ctx, email, otp, newPassword)
}

// MockAdminService implements AdminServiceInterface for testing
type MockAdminService struct {
	UnlockAccountFunc func(ctx context.Context, actorID, accountID int64) (*models.Account, error)
}

func (m *MockAdminService) UnlockAccount(ctx context.Context, actorID, accountID int64) (*models.Account, error) {
	if m.UnlockAccountFunc == nil {
		return nil, models.ErrNotFound
	}
	return m.UnlockAccountFunc(ctx, actorID, accountID)
}

// MockHealthChecker implements HealthChecker for testing
type MockHealthChecker struct {
	HealthCheckFunc func(ctx context.Context) error
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	if m.HealthCheckFunc == nil {
		return nil
	}
	return m.HealthCheckFunc(ctx)
}

// WithChiRouteContext adds chi URL parameters to request context for testing
//
// Example usage:
//
//	req := httptest.NewRequest("POST", "/admin/accounts/12/unlock", nil)
//	req = WithChiRouteContext(req, map[string]string{"id": "12"})
func WithChiRouteContext(r *http.Request, params map[string]string) *http.Request {
	rctx := chi.NewRouteContext()
	for key, value := range params {
		rctx.URLParams.Add(key, value)
	}
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}
