package middleware // declare the middleware package; contains reusable HTTP middleware functions

import (
    "context"  // request-scoped context passed to the user loader
    "errors"   // errors.Is checks against the token sentinels
    "net/http" // HTTP status codes for responses
    "strings"  // string utilities for prefix checking and trimming

    "github.com/labstack/echo/v4" // Echo framework used for defining middleware and handlers

    "github.com/skillwise/auth/internal/httpx"
    "github.com/skillwise/auth/internal/model"
    "github.com/skillwise/auth/internal/repository"
    "github.com/skillwise/auth/internal/utils"
)

// UserLoader resolves a token subject to a live user record. The session
// service's user store satisfies this; tests substitute a fake.
type UserLoader interface {
    GetByID(ctx context.Context, id uint64) (model.User, error)
}

// Authenticate returns an Echo middleware that validates a Bearer access
// token, loads the acting user, and injects the resolved identity into the
// request context under "user_id" (uint64), "email" and "role" (strings).
// Every failure path is closed: a missing header, a malformed or expired
// token, and a subject whose account has since been deleted each produce a
// distinct 401 code so the client knows whether to refresh or re-login.
func Authenticate(issuer *utils.Issuer, users UserLoader) echo.MiddlewareFunc {
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            // A valid header starts with "Bearer " followed by the JWT.
            auth := c.Request().Header.Get("Authorization")
            if !strings.HasPrefix(auth, "Bearer ") {
                return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeTokenMissing, "authentication required")
            }
            raw := strings.TrimPrefix(auth, "Bearer ")

            claims, err := issuer.Verify(utils.KindAccess, raw)
            if err != nil {
                // Expired is reported separately so the SPA can try the
                // refresh endpoint instead of dropping to the login page.
                if errors.Is(err, utils.ErrTokenExpired) {
                    return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeTokenExpired, "access token expired")
                }
                return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeTokenInvalid, "access token invalid")
            }

            // A token can outlive its account; confirm the subject still
            // exists before letting the request through.
            u, err := users.GetByID(c.Request().Context(), claims.UserID)
            if err != nil {
                if errors.Is(err, repository.ErrNotFound) {
                    return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeUserNotFound, "user not found")
                }
                return httpx.Internal(c)
            }
            if !u.IsActive {
                return httpx.Fail(c, http.StatusForbidden, httpx.CodeAccountDisabled, "account disabled")
            }

            // The role comes from the live record, not the claim, so a
            // role change takes effect without waiting for token expiry.
            c.Set("user_id", u.ID)
            c.Set("email", u.Email)
            c.Set("role", u.Role)
            return next(c)
        }
    }
}

// RequireRole returns a middleware function that enforces that the
// authenticated user has one of the specified roles. It assumes a previous
// middleware has stored the role in the context under "role"; requests
// with a missing or unlisted role are rejected with 403.
func RequireRole(roles ...string) echo.MiddlewareFunc {
    // Build a set of allowed roles for constant-time lookups.
    allowed := make(map[string]bool, len(roles))
    for _, r := range roles {
        allowed[r] = true
    }
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            v := c.Get("role")
            role, ok := v.(string)
            if !ok || !allowed[role] {
                return httpx.Fail(c, http.StatusForbidden, httpx.CodeForbidden, "insufficient permissions")
            }
            return next(c)
        }
    }
}

// CurrentUserID returns the authenticated user's id from the context, or 0
// when the request is unauthenticated.
func CurrentUserID(c echo.Context) uint64 {
    if v, ok := c.Get("user_id").(uint64); ok {
        return v
    }
    return 0
}
