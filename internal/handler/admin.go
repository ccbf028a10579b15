package handler

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/skillwise/auth/internal/httpx"
)

type setActiveReq struct {
	Active *bool `json:"active"`
}

type adminUserPart struct {
	userPart
	IsActive bool `json:"is_active"`
}

// ListUsers returns every account. Route-guarded to the ADMIN role.
func (h *AuthHandler) ListUsers(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()

	users, err := h.Svc.ListUsers(ctx)
	if err != nil {
		c.Logger().Errorf("admin: list users: %v", err)
		return httpx.Internal(c)
	}
	out := make([]adminUserPart, 0, len(users))
	for _, u := range users {
		out = append(out, adminUserPart{userPart: publicUser(u), IsActive: u.IsActive})
	}
	return c.JSON(http.StatusOK, echo.Map{"users": out})
}

// SetUserActive flips an account's active flag. Deactivation also revokes
// the account's refresh tokens, so it takes effect within one access-token
// lifetime.
func (h *AuthHandler) SetUserActive(c echo.Context) error {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, "invalid user id")
	}
	var req setActiveReq
	if err := c.Bind(&req); err != nil || req.Active == nil {
		return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, "active flag is required")
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Svc.SetUserActive(ctx, id, *req.Active); err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"message": "updated"})
}
