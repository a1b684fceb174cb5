package app

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/smart-asd/portal/internal/apperror"
	"github.com/smart-asd/portal/internal/config"
)

func testConfig() *config.Config {
	return &config.Config{
		Env:     "development",
		Port:    8080,
		BaseURL: "http://localhost:8080",
		Auth: config.AuthConfig{
			SecretKey:  "test-secret-key",
			SessionTTL: time.Hour,
			BcryptCost: 4,
		},
		OTP: config.OTPConfig{
			TTL:         10 * time.Minute,
			MaxAttempts: 5,
			Store:       "memory",
		},
		HTTP: config.HTTPConfig{
			TrustedProxies: []string{"127.0.0.1/8"},
		},
	}
}

func serve(e *echo.Echo, req *http.Request) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func TestErrorHandler_APIGetsJSON(t *testing.T) {
	a := New(testConfig(), nil, nil)
	a.Echo.GET("/api/thing", func(c echo.Context) error {
		return apperror.NewFieldValidation("email", "Valid email is required")
	})

	rec := serve(a.Echo, httptest.NewRequest(http.MethodGet, "/api/thing", nil))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d", rec.Code)
	}

	var body errorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decoding body: %v", err)
	}
	if body.Type != apperror.TypeValidation || body.Field != "email" || body.Message != "Valid email is required" {
		t.Errorf("unexpected body: %+v", body)
	}
}

func TestErrorHandler_BrowserUnauthorizedRedirects(t *testing.T) {
	a := New(testConfig(), nil, nil)
	a.Echo.GET("/page", func(c echo.Context) error {
		return apperror.NewUnauthorized("authentication required")
	})

	rec := serve(a.Echo, httptest.NewRequest(http.MethodGet, "/page", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("expected 303 to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	req := httptest.NewRequest(http.MethodGet, "/page", nil)
	req.Header.Set("HX-Request", "true")
	rec = serve(a.Echo, req)
	if rec.Code != http.StatusNoContent || rec.Header().Get("HX-Redirect") != "/login" {
		t.Errorf("expected HX-Redirect to /login, got %d %v", rec.Code, rec.Header())
	}
}

func TestErrorHandler_InternalErrorsStayGeneric(t *testing.T) {
	a := New(testConfig(), nil, nil)
	a.Echo.GET("/page", func(c echo.Context) error {
		panic("secret table name")
	})

	rec := serve(a.Echo, httptest.NewRequest(http.MethodGet, "/page", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rec.Code)
	}
	if strings.Contains(rec.Body.String(), "secret table name") {
		t.Error("expected panic detail to stay out of the response")
	}
	if !strings.Contains(rec.Header().Get("Content-Type"), "text/html") {
		t.Errorf("expected HTML error page, got %q", rec.Header().Get("Content-Type"))
	}
}

func TestRegisterRoutes_GateAndValidation(t *testing.T) {
	a := New(testConfig(), nil, nil)
	if err := a.RegisterRoutes(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// Protected page without a session.
	rec := serve(a.Echo, httptest.NewRequest(http.MethodGet, "/patient/dashboard", nil))
	if rec.Code != http.StatusSeeOther || rec.Header().Get("Location") != "/login" {
		t.Errorf("expected 303 to /login, got %d %q", rec.Code, rec.Header().Get("Location"))
	}

	// Session lookup without a session.
	rec = serve(a.Echo, httptest.NewRequest(http.MethodGet, "/api/auth/me", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rec.Code)
	}

	// Public API reaches the service, which rejects the input before any I/O.
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(`{"email":"nope","password":"x"}`))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec = serve(a.Echo, req)
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
	if !strings.Contains(rec.Body.String(), `"field":"email"`) {
		t.Errorf("expected field in body, got %s", rec.Body.String())
	}
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("expected request ID header")
	}
	if rec.Header().Get("Cache-Control") != "no-store" {
		t.Error("expected no-store on API responses")
	}
}

func TestRegisterRoutes_RedisStoreNeedsClient(t *testing.T) {
	cfg := testConfig()
	cfg.OTP.Store = "redis"
	a := New(cfg, nil, nil)
	if err := a.RegisterRoutes(); err == nil {
		t.Error("expected error without a redis client")
	}
}
