package audit

import (
	"github.com/labstack/echo/v4"
)

// RegisterRoutes sets up the audit routes. They live under /admin, so the
// global gate only admits ADMIN sessions.
func RegisterRoutes(e *echo.Echo, h *Handler) {
	e.GET("/admin/audit", h.List)
}
