package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestLoginAttempt_CountsByOutcome(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.LoginAttempt("success")
	c.LoginAttempt("invalid_credentials")
	c.LoginAttempt("invalid_credentials")

	if got := testutil.ToFloat64(c.loginAttempts.WithLabelValues("invalid_credentials")); got != 2 {
		t.Errorf("invalid_credentials = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.loginAttempts.WithLabelValues("success")); got != 1 {
		t.Errorf("success = %v, want 1", got)
	}
}

func TestOTPCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.OTPGenerated("registration")
	c.OTPVerified("registration", "otp_mismatch")
	c.OTPVerified("registration", "success")

	if got := testutil.ToFloat64(c.otpGenerated.WithLabelValues("registration")); got != 1 {
		t.Errorf("otp_generated = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.otpVerified.WithLabelValues("registration", "otp_mismatch")); got != 1 {
		t.Errorf("otp_mismatch = %v, want 1", got)
	}
}

func TestAccessDenied_CountsByReason(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.AccessDenied("forbidden")

	if got := testutil.ToFloat64(c.accessDenied.WithLabelValues("forbidden")); got != 1 {
		t.Errorf("forbidden = %v, want 1", got)
	}
}

func TestMiddleware_RecordsStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	e := echo.New()
	e.Use(c.Middleware())
	e.GET("/ok", func(ctx echo.Context) error { return ctx.NoContent(http.StatusNoContent) })
	e.GET("/missing", func(ctx echo.Context) error { return echo.NewHTTPError(http.StatusNotFound) })

	for _, path := range []string{"/ok", "/ok", "/missing"} {
		rec := httptest.NewRecorder()
		e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	}

	if got := testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "204")); got != 2 {
		t.Errorf("GET 204 = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.httpRequests.WithLabelValues("GET", "404")); got != 1 {
		t.Errorf("GET 404 = %v, want 1", got)
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.LoginAttempt("success")

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	resp := w.Result()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	body, _ := io.ReadAll(resp.Body)
	if !strings.Contains(string(body), "portal_login_attempts_total") {
		t.Error("response should contain portal_login_attempts_total")
	}
}
