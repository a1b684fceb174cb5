package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/labstack/echo/v4"
)

// OriginCheck returns middleware that refuses state-changing requests whose
// Origin (or, failing that, Referer) names a host other than this server or
// one of trustedOrigins. Requests carrying neither header (non-browser
// clients) are let through.
func OriginCheck(trustedOrigins []string) echo.MiddlewareFunc {
	trusted := make(map[string]bool, len(trustedOrigins))
	for _, o := range trustedOrigins {
		if u, err := url.Parse(strings.TrimSpace(o)); err == nil && u.Host != "" {
			trusted[strings.ToLower(u.Host)] = true
		}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			req := c.Request()
			if isSafeMethod(req.Method) {
				return next(c)
			}

			source := req.Header.Get("Origin")
			if source == "" || source == "null" {
				source = req.Header.Get("Referer")
			}
			if source == "" {
				return next(c)
			}

			u, err := url.Parse(source)
			if err != nil || u.Host == "" {
				return echo.NewHTTPError(http.StatusForbidden, "invalid request origin")
			}

			host := strings.ToLower(u.Host)
			if host == strings.ToLower(req.Host) || trusted[host] {
				return next(c)
			}
			return echo.NewHTTPError(http.StatusForbidden, "cross-site request refused")
		}
	}
}

// isSafeMethod returns true for HTTP methods that should not change state.
func isSafeMethod(method string) bool {
	return method == http.MethodGet ||
		method == http.MethodHead ||
		method == http.MethodOptions
}
