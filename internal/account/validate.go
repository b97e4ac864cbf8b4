package account

import (
	"net/mail"
	"strings"
)

const minPasswordLength = 8

const (
	msgEmailRequired    = "Email is required"
	msgEmailInvalid     = "Enter a valid email address"
	msgUsernameRequired = "Username is required"
	msgPasswordRequired = "Password is required"
	msgPasswordTooShort = "Password must be at least 8 characters"
)

// normalizeEmail lowercases the trimmed address. Comparison and persistence
// both operate on the normalized form.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validEmailShape accepts only a bare address, not the "Name <addr>" form
// net/mail also parses.
func validEmailShape(email string) bool {
	parsed, err := mail.ParseAddress(email)
	if err != nil {
		return false
	}
	return parsed.Address == email
}

// validateUserInfo checks both fields in one pass so a submission with an
// empty username and a malformed email reports both problems together. The
// returned map is empty, never nil, so callers can accumulate further field
// errors before deciding.
func validateUserInfo(email string, username string) (string, string, map[string]string) {
	fieldErrors := make(map[string]string)

	trimmedUsername := strings.TrimSpace(username)
	if trimmedUsername == "" {
		fieldErrors["username"] = msgUsernameRequired
	}

	normalizedEmail := normalizeEmail(email)
	if normalizedEmail == "" {
		fieldErrors["email"] = msgEmailRequired
	} else if !validEmailShape(normalizedEmail) {
		fieldErrors["email"] = msgEmailInvalid
	}

	return normalizedEmail, trimmedUsername, fieldErrors
}

func validatePassword(password string, fieldErrors map[string]string) {
	if password == "" {
		fieldErrors["password"] = msgPasswordRequired
		return
	}
	if len(password) < minPasswordLength {
		fieldErrors["password"] = msgPasswordTooShort
	}
}
