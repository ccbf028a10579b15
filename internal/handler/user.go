package handler

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/skillwise/auth/internal/httpx"
	"github.com/skillwise/auth/internal/middleware"
	"github.com/skillwise/auth/internal/model"
)

type profilePatchReq struct {
	FirstName *string `json:"first_name"`
	LastName  *string `json:"last_name"`
}
type changePasswordReq struct {
	CurrentPassword string `json:"current_password"`
	NewPassword     string `json:"new_password"`
}

type statsPart struct {
	Points              uint64 `json:"points"`
	ChallengesCompleted uint32 `json:"challenges_completed"`
	SubmissionsCount    uint32 `json:"submissions_count"`
	CurrentStreak       uint32 `json:"current_streak"`
}

type meResp struct {
	User      userPart  `json:"user"`
	Stats     statsPart `json:"stats"`
	CreatedAt time.Time `json:"created_at"`
}

// Me returns the authenticated user's projection and aggregate stats.
func (h *AuthHandler) Me(c echo.Context) error {
	ctx, cancel := reqContext(c)
	defer cancel()

	u, st, err := h.Svc.Me(ctx, middleware.CurrentUserID(c))
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, meResp{
		User: publicUser(u),
		Stats: statsPart{
			Points:              st.Points,
			ChallengesCompleted: st.ChallengesCompleted,
			SubmissionsCount:    st.SubmissionsCount,
			CurrentStreak:       st.CurrentStreak,
		},
		CreatedAt: u.CreatedAt,
	})
}

// UpdateMe applies a partial profile update. Absent fields stay untouched;
// only the name columns are reachable from the request body.
func (h *AuthHandler) UpdateMe(c echo.Context) error {
	var req profilePatchReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, "invalid request body")
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	u, err := h.Svc.UpdateProfile(ctx, middleware.CurrentUserID(c), model.ProfilePatch{
		FirstName: req.FirstName,
		LastName:  req.LastName,
	})
	if err != nil {
		return h.fail(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"user": publicUser(u)})
}

// ChangePassword verifies the current password before accepting the new
// one. All refresh tokens are revoked, so other devices must log in again.
func (h *AuthHandler) ChangePassword(c echo.Context) error {
	var req changePasswordReq
	if err := c.Bind(&req); err != nil {
		return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, "invalid request body")
	}
	if req.CurrentPassword == "" || req.NewPassword == "" {
		return httpx.Fail(c, http.StatusBadRequest, httpx.CodeValidation, "current and new password are required")
	}

	ctx, cancel := reqContext(c)
	defer cancel()

	if err := h.Svc.ChangePassword(ctx, middleware.CurrentUserID(c), req.CurrentPassword, req.NewPassword); err != nil {
		return h.fail(c, err)
	}
	h.clearRefreshCookie(c)
	return c.JSON(http.StatusOK, echo.Map{"message": "password changed"})
}
