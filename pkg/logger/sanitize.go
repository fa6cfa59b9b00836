package logger

import (
	"log/slog"
	"strings"
)

// SanitizedEmail masks an email address for logging (e.g., "u***@e***.com")
func SanitizedEmail(email string) string {
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return "[invalid-email]"
	}

	username := parts[0]
	domain := parts[1]

	if len(username) > 1 {
		username = string(username[0]) + strings.Repeat("*", len(username)-1)
	}

	// Keep only the TLD
	domainParts := strings.Split(domain, ".")
	if len(domainParts) > 1 {
		for i := 0; i < len(domainParts)-1; i++ {
			domainParts[i] = strings.Repeat("*", len(domainParts[i]))
		}
		domain = strings.Join(domainParts, ".")
	}

	return username + "@" + domain
}

// SanitizedIdentifier masks a login identifier, which may be an email
// address or a phone number. Phone numbers keep their last two digits.
func SanitizedIdentifier(identifier string) string {
	if strings.Contains(identifier, "@") {
		return SanitizedEmail(identifier)
	}
	if len(identifier) <= 2 {
		return strings.Repeat("*", len(identifier))
	}
	return strings.Repeat("*", len(identifier)-2) + identifier[len(identifier)-2:]
}

// RedactedAttr returns the real value only in development
func RedactedAttr(key, value, env string) slog.Attr {
	if env != "development" {
		return slog.String(key, "[REDACTED]")
	}
	return slog.String(key, value)
}

var sensitiveParams = []string{
	"password",
	"token",
	"secret",
	"otp",
	"email",
	"identifier",
	"phone",
	"auth",
}

// SanitizeQueryString reports whether rawQuery mentions a sensitive
// parameter, in which case the whole query string should be redacted
func SanitizeQueryString(rawQuery string) bool {
	query := strings.ToLower(rawQuery)
	for _, param := range sensitiveParams {
		if strings.Contains(query, param) {
			return true
		}
	}
	return false
}
