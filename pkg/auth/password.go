package auth

import (
	"fmt"
	"unicode"
	"unicode/utf8"
)

const (
	MinPasswordLen = 8
	// bcrypt ignores input past 72 bytes; x/crypto refuses to hash it.
	MaxPasswordBytes = 72
)

// PasswordPolicyMessage is returned to clients when a new password is rejected.
const PasswordPolicyMessage = "Password must be at least 8 characters with uppercase, lowercase, number, and special character (any symbol)"

// PasswordValidationError lists every rule a candidate password broke.
type PasswordValidationError struct {
	Errors []string
}

func (e *PasswordValidationError) Error() string {
	return PasswordPolicyMessage
}

// ValidatePassword enforces the reset password policy: at least 8 characters
// with a lowercase letter, an uppercase letter, a digit and a symbol. A symbol
// is any character outside [A-Za-z0-9] that is not whitespace.
func ValidatePassword(password string) error {
	errors := make([]string, 0)

	if utf8.RuneCountInString(password) < MinPasswordLen {
		errors = append(errors, fmt.Sprintf("must be at least %d characters", MinPasswordLen))
	}
	if len(password) > MaxPasswordBytes {
		errors = append(errors, fmt.Sprintf("must be at most %d bytes", MaxPasswordBytes))
	}

	hasUpper := false
	hasLower := false
	hasDigit := false
	hasSpecial := false

	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case !unicode.IsSpace(r):
			hasSpecial = true
		}
	}

	if !hasUpper {
		errors = append(errors, "must contain at least one uppercase letter")
	}
	if !hasLower {
		errors = append(errors, "must contain at least one lowercase letter")
	}
	if !hasDigit {
		errors = append(errors, "must contain at least one digit")
	}
	if !hasSpecial {
		errors = append(errors, "must contain at least one special character")
	}

	if len(errors) > 0 {
		return &PasswordValidationError{Errors: errors}
	}

	return nil
}
