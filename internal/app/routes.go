package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smart-asd/portal/internal/plugins/audit"
	"github.com/smart-asd/portal/internal/plugins/auth"
	"github.com/smart-asd/portal/internal/plugins/smtp"
)

// healthTimeout bounds the dependency pings behind /healthz.
const healthTimeout = 2 * time.Second

// RegisterRoutes builds the plugins, installs the auth gate and registers
// every route. This is the single place where all routes are aggregated.
func (a *App) RegisterRoutes() error {
	e := a.Echo
	cfg := a.Config

	// --- Plugins ---

	mail, err := smtp.NewSMTPService(smtp.SettingsFromConfig(cfg.SMTP))
	if err != nil {
		return fmt.Errorf("configuring smtp: %w", err)
	}

	auditSvc := audit.NewAuditService(audit.NewAuditRepository(a.DB))

	codec, err := auth.NewSessionCodec(cfg.Auth.SecretKey, cfg.Auth.SessionTTL)
	if err != nil {
		return fmt.Errorf("creating session codec: %w", err)
	}

	var store auth.ChallengeStore
	if cfg.OTP.Store == "redis" {
		if a.Redis == nil {
			return fmt.Errorf("OTP_STORE=redis but no redis client")
		}
		store = auth.NewRedisChallengeStore(a.Redis)
	} else {
		store = auth.NewMemoryChallengeStore()
	}

	otp, err := auth.NewOTPManager(store, cfg.Auth.SecretKey, auth.OTPOptions{
		TTL:         cfg.OTP.TTL,
		MaxAttempts: cfg.OTP.MaxAttempts,
	}, a.Metrics)
	if err != nil {
		return fmt.Errorf("creating otp manager: %w", err)
	}

	authSvc := auth.NewAuthService(auth.ServiceDeps{
		Repo:     auth.NewUserRepository(a.DB),
		Hasher:   auth.NewPasswordHasher(cfg.Auth.BcryptCost),
		OTP:      otp,
		Codec:    codec,
		Notifier: auth.NewMailNotifier(mail, cfg.OTP.TTL, cfg.IsDevelopment()),
		Audit:    auditSvc,
		Metrics:  a.Metrics,
	})

	// --- Gate ---
	// Every request, routed or not, passes the access policy first.
	e.Use(auth.Gate(auth.DefaultAccessPolicy(), codec, a.Metrics))

	// --- Public Routes (no auth required) ---

	e.GET("/", func(c echo.Context) error {
		if auth.GetSession(c) != nil {
			return c.Redirect(http.StatusSeeOther, auth.LandingPath)
		}
		return c.JSON(http.StatusOK, map[string]string{"service": "smart-asd portal"})
	})

	e.GET("/healthz", a.healthz)

	// --- Plugin Routes ---

	auth.RegisterRoutes(e, auth.NewHandler(authSvc, cfg.Auth.SessionTTL, cfg.IsProduction()))
	audit.RegisterRoutes(e, audit.NewHandler(auditSvc))

	return nil
}

// healthz reports whether MariaDB and (when used) Redis answer a ping.
func (a *App) healthz(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), healthTimeout)
	defer cancel()

	status := map[string]string{"status": "ok", "database": "ok"}
	code := http.StatusOK

	if err := a.DB.PingContext(ctx); err != nil {
		status["database"] = "unreachable"
		status["status"] = "degraded"
		code = http.StatusServiceUnavailable
	}
	if a.Redis != nil {
		status["redis"] = "ok"
		if err := a.Redis.Ping(ctx).Err(); err != nil {
			status["redis"] = "unreachable"
			status["status"] = "degraded"
			code = http.StatusServiceUnavailable
		}
	}

	return c.JSON(code, status)
}
