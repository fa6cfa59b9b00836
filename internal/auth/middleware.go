package auth

import (
	"context"
	"net/http"
	"strings"

	"github.com/BradenHooton/farmgate/internal/models"
	pkghttp "github.com/BradenHooton/farmgate/pkg/http"
)

type contextKey string

// ClaimsContextKey stores the verified session claims on the request context
const ClaimsContextKey contextKey = "session_claims"

// TokenVerifier is satisfied by *TokenManager
type TokenVerifier interface {
	Verify(tokenString string) (*models.SessionClaims, error)
}

// AuthMiddleware requires a valid Bearer session token and stores its claims
// on the request context.
func AuthMiddleware(verifier TokenVerifier) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if authHeader == "" {
				pkghttp.WriteUnauthorized(w, "No token provided")
				return
			}

			parts := strings.SplitN(authHeader, " ", 2)
			if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
				pkghttp.WriteUnauthorized(w, "Invalid authorization header format")
				return
			}

			claims, err := verifier.Verify(strings.TrimSpace(parts[1]))
			if err != nil {
				pkghttp.WriteUnauthorized(w, "Invalid or expired token")
				return
			}

			ctx := context.WithValue(r.Context(), ClaimsContextKey, claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequirePermission allows the request only when the token grants action on
// module. Must run after AuthMiddleware. Permissions come from the token, so
// changes apply from the next login.
func RequirePermission(module, action string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			claims := GetClaimsFromContext(r.Context())
			if claims == nil {
				pkghttp.WriteUnauthorized(w, "Unauthorized")
				return
			}

			if !models.HasPermission(claims.Permissions, module, action) {
				pkghttp.WriteForbidden(w, "Forbidden: requires "+module+":"+action)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// GetClaimsFromContext returns the session claims, or nil outside AuthMiddleware
func GetClaimsFromContext(ctx context.Context) *models.SessionClaims {
	claims, ok := ctx.Value(ClaimsContextKey).(*models.SessionClaims)
	if !ok {
		return nil
	}
	return claims
}
