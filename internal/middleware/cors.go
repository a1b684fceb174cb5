package middleware

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// CORSConfig holds configuration for the CORS middleware.
type CORSConfig struct {
	// AllowedOrigins lists origins permitted to call the API, e.g.
	// "https://research.smart-asd.org". An empty list allows none.
	AllowedOrigins []string

	// AllowCredentials lets the browser send the session cookie along.
	AllowCredentials bool
}

// CORS returns middleware that answers cross-origin requests from the
// configured origins. Same-origin traffic (no Origin header) is untouched.
func CORS(cfg CORSConfig) echo.MiddlewareFunc {
	originSet := make(map[string]bool, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o == "*" {
			slog.Warn("CORS wildcard origin ignored; list explicit origins instead")
			continue
		}
		originSet[strings.TrimRight(o, "/")] = true
	}

	allowMethods := strings.Join([]string{
		http.MethodGet,
		http.MethodPost,
		http.MethodOptions,
	}, ", ")
	allowHeaders := strings.Join([]string{
		"Content-Type",
		"X-Requested-With",
		"HX-Request",
		"HX-Current-URL",
	}, ", ")

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			origin := req.Header.Get("Origin")
			if origin == "" || !originSet[origin] {
				return next(c)
			}

			h := c.Response().Header()
			h.Set("Access-Control-Allow-Origin", origin)
			h.Add("Vary", "Origin")
			if cfg.AllowCredentials {
				h.Set("Access-Control-Allow-Credentials", "true")
			}

			if req.Method == http.MethodOptions {
				h.Set("Access-Control-Allow-Methods", allowMethods)
				h.Set("Access-Control-Allow-Headers", allowHeaders)
				h.Set("Access-Control-Max-Age", "3600")
				return c.NoContent(http.StatusNoContent)
			}

			h.Set("Access-Control-Expose-Headers", "HX-Redirect, Retry-After")
			return next(c)
		}
	}
}
