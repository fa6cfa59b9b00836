package middleware

import (
	"net/http"
	"time"

	pkghttp "github.com/BradenHooton/farmgate/pkg/http"
	"github.com/go-chi/httprate"
)

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerMinute int
	// IPConfig decides when forwarding headers are trusted. Nil keys by RemoteAddr.
	IPConfig *pkghttp.IPConfig
}

// DefaultAuthRateLimit returns default rate limit config for auth endpoints (20 requests per minute)
func DefaultAuthRateLimit() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerMinute: 20,
	}
}

// RateLimitByIP creates a middleware that rate limits requests by client IP
func RateLimitByIP(config RateLimitConfig) func(next http.Handler) http.Handler {
	if config.RequestsPerMinute <= 0 {
		config.RequestsPerMinute = DefaultAuthRateLimit().RequestsPerMinute
	}

	return httprate.Limit(
		config.RequestsPerMinute,
		1*time.Minute,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			return pkghttp.ExtractClientIP(r, config.IPConfig), nil
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			pkghttp.WriteTooManyRequests(w, "Too many requests. Please try again later.")
		}),
	)
}
