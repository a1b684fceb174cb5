package auth

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smart-asd/portal/internal/apperror"
)

// sessionCookieName is the HTTP cookie used to store the session token.
const sessionCookieName = "session"

// Handler handles HTTP requests for authentication. Handlers are thin:
// bind request, call service, return response. No business logic lives here.
type Handler struct {
	service AuthService

	// sessionTTL sets the cookie lifetime; it matches the codec's TTL.
	sessionTTL time.Duration

	// secureCookies forces the Secure flag regardless of the request scheme.
	secureCookies bool
}

// NewHandler creates a new auth handler.
func NewHandler(service AuthService, sessionTTL time.Duration, secureCookies bool) *Handler {
	return &Handler{service: service, sessionTTL: sessionTTL, secureCookies: secureCookies}
}

// messageResponse is the body of every successful auth POST.
type messageResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	RedirectURL string `json:"redirectUrl,omitempty"`
	UserID      string `json:"userId,omitempty"`
}

// sessionUser is the public view of a session returned by /api/auth/me.
type sessionUser struct {
	ID       string `json:"id"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	FullName string `json:"fullName"`
}

// Login authenticates and sets the session cookie (POST /api/auth/login).
func (h *Handler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	token, user, err := h.service.Login(c.Request().Context(), LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return err
	}

	h.setSessionCookie(c, token)

	return c.JSON(http.StatusOK, messageResponse{
		Success:     true,
		Message:     "Login successful",
		RedirectURL: LandingPathFor(user.Role),
	})
}

// Register creates an account pending email verification
// (POST /api/auth/register).
func (h *Handler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	result, err := h.service.Register(c.Request().Context(), RegisterInput{
		Role:         req.Role,
		FullName:     req.FullName,
		Email:        req.Email,
		Password:     req.Password,
		Phone:        req.Phone,
		DOB:          req.DOB,
		GuardianName: req.GuardianName,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusCreated, messageResponse{
		Success: true,
		Message: "Registration successful. Please check your email for verification code.",
		UserID:  result.UserID,
	})
}

// VerifyEmail spends a registration code (POST /api/auth/verify-email).
func (h *Handler) VerifyEmail(c echo.Context) error {
	var req VerifyEmailRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	if err := h.service.VerifyEmail(c.Request().Context(), req.Email, req.OTP); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageResponse{
		Success:     true,
		Message:     "Email verified successfully. You can now sign in.",
		RedirectURL: LoginPath,
	})
}

// ResendCode issues a fresh registration code (POST /api/auth/resend-code).
func (h *Handler) ResendCode(c echo.Context) error {
	var req EmailRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	if err := h.service.ResendVerification(c.Request().Context(), req.Email); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageResponse{
		Success: true,
		Message: "If the account is awaiting verification, a new code has been sent.",
	})
}

// ForgotPassword starts a password reset (POST /api/auth/forgot-password).
// The response is the same whether or not the account exists.
func (h *Handler) ForgotPassword(c echo.Context) error {
	var req EmailRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	if err := h.service.RequestPasswordReset(c.Request().Context(), req.Email); err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageResponse{
		Success: true,
		Message: "If an account exists with this email, you will receive a password reset code.",
	})
}

// ResetPassword completes a password reset (POST /api/auth/reset-password).
func (h *Handler) ResetPassword(c echo.Context) error {
	var req ResetPasswordRequest
	if err := c.Bind(&req); err != nil {
		return apperror.NewBadRequest("invalid request")
	}

	err := h.service.ResetPassword(c.Request().Context(), ResetPasswordInput{
		Email:       req.Email,
		Code:        req.OTP,
		NewPassword: req.NewPassword,
	})
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, messageResponse{
		Success:     true,
		Message:     "Password reset successful. You can now sign in.",
		RedirectURL: LoginPath,
	})
}

// Logout clears the session cookie (POST /api/auth/logout). It succeeds
// with or without a session.
func (h *Handler) Logout(c echo.Context) error {
	h.service.Logout(c.Request().Context(), GetSession(c))
	clearSessionCookie(c)

	return c.JSON(http.StatusOK, messageResponse{
		Success:     true,
		Message:     "Logged out",
		RedirectURL: LoginPath,
	})
}

// Me returns the current session's identity (GET /api/auth/me).
func (h *Handler) Me(c echo.Context) error {
	session := GetSession(c)
	if session == nil {
		return c.JSON(http.StatusUnauthorized, map[string]any{"user": nil})
	}

	return c.JSON(http.StatusOK, map[string]any{
		"user": sessionUser{
			ID:       session.UserID,
			Email:    session.Email,
			Role:     session.Role,
			FullName: session.FullName,
		},
	})
}

// Dashboard sends the user to their role's landing page (GET /dashboard).
func (h *Handler) Dashboard(c echo.Context) error {
	session := GetSession(c)
	if session == nil {
		return c.Redirect(http.StatusSeeOther, LoginPath)
	}
	return c.Redirect(http.StatusSeeOther, LandingPathFor(session.Role))
}

// RoleDashboard serves a role area's landing payload
// (GET /<role>/dashboard). The gate has already checked the role.
func (h *Handler) RoleDashboard(c echo.Context) error {
	session := GetSession(c)
	if session == nil {
		return apperror.NewUnauthorized("authentication required")
	}

	return c.JSON(http.StatusOK, map[string]any{
		"role": session.Role,
		"user": sessionUser{
			ID:       session.UserID,
			Email:    session.Email,
			Role:     session.Role,
			FullName: session.FullName,
		},
		"expiresAt": session.ExpiresAt,
	})
}

// --- Cookie helpers ---

// getSessionToken reads the session token from the cookie.
func getSessionToken(c echo.Context) string {
	cookie, err := c.Cookie(sessionCookieName)
	if err != nil || cookie.Value == "" {
		return ""
	}
	return cookie.Value
}

// setSessionCookie sets the session cookie on the response. The cookie is
// HttpOnly (JS can't read it), Secure in production or behind TLS, and
// SameSite=Lax. It lives exactly as long as the token inside it.
func (h *Handler) setSessionCookie(c echo.Context, token string) {
	req := c.Request()
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies || req.TLS != nil || req.Header.Get("X-Forwarded-Proto") == "https",
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(h.sessionTTL.Seconds()),
	})
}

// clearSessionCookie removes the session cookie by setting MaxAge to -1.
func clearSessionCookie(c echo.Context) {
	c.SetCookie(&http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}
