// Package httpx defines the platform-wide error body returned by every
// endpoint and middleware. Clients switch on the `error` code; the message
// is for humans only and may change without notice.
package httpx

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Error codes understood by the SPA client.
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeInvalidCreds    = "INVALID_CREDENTIALS"
	CodeAccountDisabled = "ACCOUNT_DISABLED"
	CodeEmailExists     = "EMAIL_EXISTS"
	CodeTokenMissing    = "AUTH_TOKEN_MISSING"
	CodeTokenInvalid    = "AUTH_TOKEN_INVALID"
	CodeTokenExpired    = "AUTH_TOKEN_EXPIRED"
	CodeUserNotFound    = "USER_NOT_FOUND"
	CodeForbidden       = "INSUFFICIENT_PERMISSIONS"
	CodeInvalidRefresh  = "INVALID_REFRESH_TOKEN"
	CodeReuseDetected   = "TOKEN_REUSE_DETECTED"
	CodeTooManyRequests = "TOO_MANY_REQUESTS"
	CodeInternal        = "INTERNAL_ERROR"
)

// ErrorBody is the JSON shape of every error response.
type ErrorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Status    int    `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Fail writes the platform error body with the given status and code.
func Fail(c echo.Context, status int, code, message string) error {
	return c.JSON(status, ErrorBody{
		Error:     code,
		Message:   message,
		Status:    status,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// Internal is the catch-all for unexpected server-side failures. The
// underlying error is logged by the caller, never sent to the client.
func Internal(c echo.Context) error {
	return Fail(c, http.StatusInternalServerError, CodeInternal, "internal server error")
}
