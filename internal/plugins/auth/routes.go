package auth

import (
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smart-asd/portal/internal/middleware"
)

// RegisterRoutes sets up all auth-related routes on the given Echo instance.
// Access control is not applied here: the global Gate decides which of
// these paths need a session.
//
// Credential and passcode endpoints are rate-limited per IP to slow
// brute-force and credential stuffing: 10 per minute for login, 5 for
// register, 10 for the code endpoints.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	api := e.Group("/api/auth")

	api.POST("/login", h.Login, middleware.RateLimit(10, time.Minute))
	api.POST("/register", h.Register, middleware.RateLimit(5, time.Minute))

	// Code-spending endpoints share one budget.
	codes := middleware.RateLimit(10, time.Minute)
	api.POST("/verify-email", h.VerifyEmail, codes)
	api.POST("/reset-password", h.ResetPassword, codes)

	// As do the code-sending ones.
	mails := middleware.RateLimit(5, time.Minute)
	api.POST("/resend-code", h.ResendCode, mails)
	api.POST("/forgot-password", h.ForgotPassword, mails)

	api.POST("/logout", h.Logout)
	api.GET("/me", h.Me)

	// Dashboards sit behind the gate's role rules.
	e.GET(LandingPath, h.Dashboard)
	for _, rule := range DefaultRoleRules {
		e.GET(rule.Prefix+"/dashboard", h.RoleDashboard)
	}
}
