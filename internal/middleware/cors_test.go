package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/labstack/echo/v4"
)

func newCORSEcho(cfg CORSConfig) *echo.Echo {
	e := echo.New()
	e.Use(CORS(cfg))
	e.Any("/api/auth/me", func(c echo.Context) error { return c.NoContent(http.StatusOK) })
	return e
}

func TestCORS_AllowedOriginPreflight(t *testing.T) {
	e := newCORSEcho(CORSConfig{AllowedOrigins: []string{"https://research.smart-asd.org/"}, AllowCredentials: true})

	req := httptest.NewRequest(http.MethodOptions, "/api/auth/me", nil)
	req.Header.Set("Origin", "https://research.smart-asd.org")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rec.Code)
	}
	h := rec.Header()
	if h.Get("Access-Control-Allow-Origin") != "https://research.smart-asd.org" {
		t.Errorf("unexpected allow-origin %q", h.Get("Access-Control-Allow-Origin"))
	}
	if h.Get("Access-Control-Allow-Credentials") != "true" {
		t.Error("expected credentials allowed")
	}
	if h.Get("Access-Control-Allow-Methods") != "GET, POST, OPTIONS" {
		t.Errorf("unexpected methods %q", h.Get("Access-Control-Allow-Methods"))
	}
}

func TestCORS_UnknownOriginAndWildcard(t *testing.T) {
	e := newCORSEcho(CORSConfig{AllowedOrigins: []string{"*"}, AllowCredentials: true})

	req := httptest.NewRequest(http.MethodGet, "/api/auth/me", nil)
	req.Header.Set("Origin", "https://evil.example")
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected request to pass through, got %d", rec.Code)
	}
	if rec.Header().Get("Access-Control-Allow-Origin") != "" {
		t.Error("expected no CORS headers for an unlisted origin")
	}
}
