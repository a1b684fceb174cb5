package auth

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// Context keys for storing session data in Echo context. Other plugins
// use these keys (via the exported getter functions below) to access
// the authenticated user's information.
const (
	contextKeySession = "auth_session"
	contextKeyUserID  = "auth_user_id"
)

// Gate returns the global request gate. It decodes the session cookie,
// evaluates the access policy for the request path and either passes the
// request on (with the claims in context) or turns it away:
//   - browsers get a 303 to the decision's redirect target,
//   - HTMX requests get an HX-Redirect header,
//   - /api requests get a JSON 401 (no session) or 403 (wrong role).
//
// A cookie that fails to decode is cleared so the browser stops sending it.
func Gate(policy *AccessPolicy, codec SessionCodec, metrics MetricsRecorder) echo.MiddlewareFunc {
	if metrics == nil {
		metrics = NopMetrics{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			var session *SessionClaims
			if token := getSessionToken(c); token != "" {
				session = codec.Decode(token)
				if session == nil {
					clearSessionCookie(c)
				}
			}

			if session != nil {
				c.Set(contextKeySession, session)
				c.Set(contextKeyUserID, session.UserID)
			}

			decision := policy.Evaluate(c.Request().URL.Path, session)
			if decision.Allowed {
				return next(c)
			}

			metrics.AccessDenied(decision.Reason)
			return deny(c, decision)
		}
	}
}

// deny writes the response for a refused request.
func deny(c echo.Context, decision AccessDecision) error {
	if isAPIRequest(c) {
		if decision.Reason == ReasonForbidden {
			return c.JSON(http.StatusForbidden, map[string]string{
				"error":   "forbidden",
				"message": "insufficient permissions",
			})
		}
		return c.JSON(http.StatusUnauthorized, map[string]string{
			"error":   "unauthorized",
			"message": "authentication required",
		})
	}

	if isHTMXRequest(c) {
		c.Response().Header().Set("HX-Redirect", decision.RedirectTo)
		return c.NoContent(http.StatusNoContent)
	}

	return c.Redirect(http.StatusSeeOther, decision.RedirectTo)
}

// --- Exported getters for other plugins ---

// GetSession retrieves the authenticated session from the Echo context.
// Returns nil if the request carried no valid session.
func GetSession(c echo.Context) *SessionClaims {
	session, ok := c.Get(contextKeySession).(*SessionClaims)
	if !ok {
		return nil
	}
	return session
}

// GetUserID retrieves the authenticated user's ID from the Echo context.
// Returns empty string if the request is not authenticated.
func GetUserID(c echo.Context) string {
	id, ok := c.Get(contextKeyUserID).(string)
	if !ok {
		return ""
	}
	return id
}

// --- Helpers ---

// isAPIRequest returns true if the request targets the /api/ path.
func isAPIRequest(c echo.Context) bool {
	path := c.Request().URL.Path
	return path == "/api" || strings.HasPrefix(path, "/api/")
}

// isHTMXRequest returns true if the request was made by HTMX.
func isHTMXRequest(c echo.Context) bool {
	return c.Request().Header.Get("HX-Request") == "true"
}
