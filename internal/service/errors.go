package service

import (
	"errors"
	"fmt"
)

// Sentinel errors returned by the session service. Handlers translate these
// into the platform error body; anything not listed here is a server fault.
var (
	// ErrInvalidCredentials is deliberately shared between "no such user"
	// and "wrong password" so responses cannot be used to enumerate
	// accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccountDisabled rejects authentication for deactivated accounts.
	ErrAccountDisabled = errors.New("account disabled")

	// ErrEmailExists signals a duplicate registration.
	ErrEmailExists = errors.New("email already registered")

	// ErrInvalidRefresh covers refresh tokens that fail verification, have
	// no persisted record, or were revoked without a successor.
	ErrInvalidRefresh = errors.New("invalid refresh token")

	// ErrReuseDetected signals that an already-rotated refresh token was
	// presented again. All of the user's sessions are revoked when this
	// is returned.
	ErrReuseDetected = errors.New("refresh token reuse detected")

	// ErrUserNotFound signals a valid token whose subject no longer exists.
	ErrUserNotFound = errors.New("user not found")

	// ErrInvalidResetToken rejects expired or malformed password reset
	// tokens.
	ErrInvalidResetToken = errors.New("invalid reset token")
)

// ValidationError reports the first input rule a request violated.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}
