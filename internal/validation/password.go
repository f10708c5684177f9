package validation

import (
	"errors"
	"regexp"
	"strings"
)

var emailRegex = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// ValidatePassword enforces the account password length policy.
func ValidatePassword(password string) error {
	if len(password) < 6 {
		return errors.New("Password must be at least 6 characters")
	}
	if len(password) > 128 {
		return errors.New("Password cannot be more than 128 characters")
	}
	if strings.TrimSpace(password) == "" {
		return errors.New("Password cannot be blank")
	}
	return nil
}

// ValidateEmail checks basic email format
func ValidateEmail(email string) error {
	if len(email) > 254 {
		return errors.New("Invalid email address")
	}
	if !emailRegex.MatchString(email) {
		return errors.New("Invalid email address")
	}
	return nil
}

// NormalizeEmail lowercases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
