package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing
	"github.com/redis/go-redis/v9"

	"github.com/skillwise/auth/internal/config"
	"github.com/skillwise/auth/internal/handler"    // import the handlers that implement the endpoint logic
	"github.com/skillwise/auth/internal/middleware" // import middleware for authentication and role enforcement
	"github.com/skillwise/auth/internal/model"
	"github.com/skillwise/auth/internal/utils"
)

// RegisterRoutes registers routes that do not require authentication on the
// provided Echo instance.  Currently it exposes only a health check.
func RegisterRoutes(e *echo.Echo) {
	// The /healthz endpoint is used by load balancers and monitoring
	// systems to verify that the service is up and running.
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the authentication surface and its middleware.
// Unauthenticated session operations live under /v1/auth behind the Redis
// token bucket; protected endpoints live under /v1 behind the bearer-token
// middleware.  The rdb client may be nil, in which case rate limiting and
// response caching silently disable themselves.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, issuer *utils.Issuer, users middleware.UserLoader, rdb *redis.Client) {
	// The token bucket fronts every credential-bearing endpoint to slow
	// down brute-force and credential-stuffing attempts.
	limiter := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	// Session lifecycle: register, login, refresh (rotation), logout and
	// the password-reset pair.  None of these require an access token; the
	// refresh and logout endpoints read the HTTP-only cookie instead.
	g := e.Group("/v1/auth", limiter)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)
	g.POST("/logout", a.Logout)
	g.POST("/forgot-password", a.ForgotPassword)
	g.POST("/reset-password", a.ResetPassword)

	// The password policy is public, static per install, and read by the
	// SPA on every registration form render, so it sits behind the Redis
	// response cache.
	g.GET("/password-policy", a.PasswordPolicy, middleware.NewRedisCache(config.LoadCacheConfig(), rdb))

	// Routes under /v1 require a valid access token.  The middleware
	// verifies the bearer token, loads the user, and stores the identity
	// in the request context for handlers to read.
	auth := e.Group("/v1")
	auth.Use(middleware.Authenticate(issuer, users))
	auth.GET("/me", a.Me)
	auth.PATCH("/me", a.UpdateMe)
	auth.POST("/me/password", a.ChangePassword)

	// Administrative account management is additionally restricted to the
	// ADMIN role.
	admin := auth.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	admin.GET("/users", a.ListUsers)
	admin.PATCH("/users/:id/active", a.SetUserActive)
}
