package handler

import (
    "context"  // provides context with cancellation for service calls
    "errors"   // errors.Is / errors.As against the service sentinels
    "net/http" // HTTP status codes and cookie primitives
    "time"     // timeouts for service calls and cookie expiries

    "github.com/labstack/echo/v4" // Echo framework for HTTP routing

    "github.com/skillwise/auth/internal/httpx"
    "github.com/skillwise/auth/internal/model"
    "github.com/skillwise/auth/internal/service"
)

// refreshCookieName is the HTTP-only cookie carrying the refresh token.
// Scoped to /v1/auth so no other endpoint ever sees it.
const refreshCookieName = "refresh_token"

const refreshCookiePath = "/v1/auth"

// AuthHandler bundles dependencies for the auth endpoints.
type AuthHandler struct {
    Svc          *service.Auth
    CookieSecure bool // Secure flag on the refresh cookie; off only in dev
}

func NewAuthHandler(svc *service.Auth, cookieSecure bool) *AuthHandler {
    return &AuthHandler{Svc: svc, CookieSecure: cookieSecure}
}

// ----- DTOs -----

type registerReq struct {
    Email     string `json:"email"`
    Password  string `json:"password"`
    FirstName string `json:"first_name"`
    LastName  string `json:"last_name"`
}
type loginReq struct {
    Email    string `json:"email"`
    Password string `json:"password"`
}
type forgotReq struct {
    Email string `json:"email"`
}
type resetReq struct {
    Token    string `json:"token"`
    Password string `json:"password"`
}

type userPart struct {
    ID        uint64 `json:"id"`
    Email     string `json:"email"`
    FirstName string `json:"first_name"`
    LastName  string `json:"last_name"`
    Role      string `json:"role"`
}
type sessionResp struct {
    User        userPart  `json:"user"`
    AccessToken string    `json:"access_token"`
    ExpiresAt   time.Time `json:"expires_at"`
}

func publicUser(u model.User) userPart {
    return userPart{ID: u.ID, Email: u.Email, FirstName: u.FirstName, LastName: u.LastName, Role: u.Role}
}

// Register: create the credential record and start the first session.
// The access token travels in the body, the refresh token only as cookie.
func (h *AuthHandler) Register(c echo.Context) error {
    var req registerReq
    if err := c.Bind(&req); err != nil {
        return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, "invalid request body")
    }

    ctx, cancel := reqContext(c)
    defer cancel()

    sess, err := h.Svc.Register(ctx, service.RegisterInput{
        Email:     req.Email,
        Password:  req.Password,
        FirstName: req.FirstName,
        LastName:  req.LastName,
    })
    if err != nil {
        return h.fail(c, err)
    }
    h.setRefreshCookie(c, sess.Refresh.Token, sess.Refresh.Exp)
    return c.JSON(http.StatusCreated, sessionResp{
        User:        publicUser(sess.User),
        AccessToken: sess.Access.Token,
        ExpiresAt:   sess.Access.Exp,
    })
}

// Login: verify credentials and return a fresh pair.
func (h *AuthHandler) Login(c echo.Context) error {
    var req loginReq
    if err := c.Bind(&req); err != nil {
        return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, "invalid request body")
    }
    if req.Email == "" || req.Password == "" {
        return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, "email and password are required")
    }

    ctx, cancel := reqContext(c)
    defer cancel()

    sess, err := h.Svc.Login(ctx, req.Email, req.Password)
    if err != nil {
        return h.fail(c, err)
    }
    h.setRefreshCookie(c, sess.Refresh.Token, sess.Refresh.Exp)
    return c.JSON(http.StatusOK, sessionResp{
        User:        publicUser(sess.User),
        AccessToken: sess.Access.Token,
        ExpiresAt:   sess.Access.Exp,
    })
}

// Refresh: rotate the refresh token presented in the cookie. Reuse and
// invalidity both clear the cookie so the SPA falls back to the login page.
func (h *AuthHandler) Refresh(c echo.Context) error {
    ck, err := c.Cookie(refreshCookieName)
    if err != nil || ck.Value == "" {
        return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeInvalidRefresh, "refresh token required")
    }

    ctx, cancel := reqContext(c)
    defer cancel()

    sess, err := h.Svc.Refresh(ctx, ck.Value)
    if err != nil {
        h.clearRefreshCookie(c)
        return h.fail(c, err)
    }
    h.setRefreshCookie(c, sess.Refresh.Token, sess.Refresh.Exp)
    return c.JSON(http.StatusOK, sessionResp{
        User:        publicUser(sess.User),
        AccessToken: sess.Access.Token,
        ExpiresAt:   sess.Access.Exp,
    })
}

// Logout: revoke the presented refresh token server-side and clear the
// cookie. Always 200 so a half-expired session can still log out cleanly.
func (h *AuthHandler) Logout(c echo.Context) error {
    ctx, cancel := reqContext(c)
    defer cancel()

    if ck, err := c.Cookie(refreshCookieName); err == nil && ck.Value != "" {
        if err := h.Svc.Logout(ctx, ck.Value); err != nil {
            c.Logger().Warnf("logout: revoke failed: %v", err)
        }
    }
    h.clearRefreshCookie(c)
    return c.JSON(http.StatusOK, echo.Map{"message": "logged out"})
}

// ForgotPassword: issue a reset token for the mailer worker. The response
// is identical whether or not the email is registered.
func (h *AuthHandler) ForgotPassword(c echo.Context) error {
    var req forgotReq
    if err := c.Bind(&req); err != nil || req.Email == "" {
        return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, "email is required")
    }

    ctx, cancel := reqContext(c)
    defer cancel()

    if err := h.Svc.ForgotPassword(ctx, req.Email); err != nil {
        c.Logger().Errorf("forgot-password: %v", err)
        return httpx.Internal(c)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "if the address is registered, a reset link has been sent"})
}

// ResetPassword: consume a reset token and set the new password.
func (h *AuthHandler) ResetPassword(c echo.Context) error {
    var req resetReq
    if err := c.Bind(&req); err != nil || req.Token == "" {
        return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, "token is required")
    }

    ctx, cancel := reqContext(c)
    defer cancel()

    if err := h.Svc.ResetPassword(ctx, req.Token, req.Password); err != nil {
        return h.fail(c, err)
    }
    return c.JSON(http.StatusOK, echo.Map{"message": "password updated"})
}

// PasswordPolicy: public endpoint the SPA reads to render password hints.
// Sits behind the Redis response cache.
func (h *AuthHandler) PasswordPolicy(c echo.Context) error {
    return c.JSON(http.StatusOK, service.DefaultPasswordPolicy)
}

// setRefreshCookie attaches the rotated refresh token. SameSite=Strict and
// HttpOnly keep it out of scripts and cross-site requests.
func (h *AuthHandler) setRefreshCookie(c echo.Context, token string, exp time.Time) {
    c.SetCookie(&http.Cookie{
        Name:     refreshCookieName,
        Value:    token,
        Path:     refreshCookiePath,
        Expires:  exp,
        HttpOnly: true,
        Secure:   h.CookieSecure,
        SameSite: http.SameSiteStrictMode,
    })
}

func (h *AuthHandler) clearRefreshCookie(c echo.Context) {
    c.SetCookie(&http.Cookie{
        Name:     refreshCookieName,
        Value:    "",
        Path:     refreshCookiePath,
        MaxAge:   -1,
        HttpOnly: true,
        Secure:   h.CookieSecure,
        SameSite: http.SameSiteStrictMode,
    })
}

// fail maps service sentinels onto the platform error contract.
func (h *AuthHandler) fail(c echo.Context, err error) error {
    var verr *service.ValidationError
    switch {
    case errors.As(err, &verr):
        return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, verr.Message)
    case errors.Is(err, service.ErrEmailExists):
        return httpx.Fail(c, http.StatusConflict, httpx.CodeEmailExists, "email already registered")
    case errors.Is(err, service.ErrInvalidCredentials):
        return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeInvalidCreds, "invalid email or password")
    case errors.Is(err, service.ErrAccountDisabled):
        return httpx.Fail(c, http.StatusForbidden, httpx.CodeAccountDisabled, "account disabled")
    case errors.Is(err, service.ErrReuseDetected):
        return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeReuseDetected, "refresh token reuse detected; all sessions revoked")
    case errors.Is(err, service.ErrInvalidRefresh):
        return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeInvalidRefresh, "invalid refresh token")
    case errors.Is(err, service.ErrInvalidResetToken):
        return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeTokenInvalid, "invalid or expired reset token")
    case errors.Is(err, service.ErrUserNotFound):
        return httpx.Fail(c, http.StatusUnauthorized, httpx.CodeUserNotFound, "user not found")
    default:
        c.Logger().Errorf("auth: %v", err)
        return httpx.Internal(c)
    }
}

// reqContext bounds the duration of downstream calls for one request.
func reqContext(c echo.Context) (context.Context, context.CancelFunc) {
    return context.WithTimeout(c.Request().Context(), 5*time.Second)
}
