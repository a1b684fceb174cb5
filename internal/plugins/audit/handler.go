package audit

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
)

// Handler handles HTTP requests for the audit log. Handlers are thin:
// bind request, call service, render response. No business logic lives here.
type Handler struct {
	service AuditService
}

// NewHandler creates a new audit handler.
func NewHandler(service AuditService) *Handler {
	return &Handler{service: service}
}

// eventPage is the JSON body of the listing endpoint.
type eventPage struct {
	Events  []Event `json:"events"`
	Total   int     `json:"total"`
	Page    int     `json:"page"`
	PerPage int     `json:"perPage"`
}

// List returns a page of audit events (GET /admin/audit?page=&action=).
func (h *Handler) List(c echo.Context) error {
	page, _ := strconv.Atoi(c.QueryParam("page"))
	if page < 1 {
		page = 1
	}

	events, total, err := h.service.ListEvents(c.Request().Context(), c.QueryParam("action"), page)
	if err != nil {
		return err
	}
	if events == nil {
		events = []Event{}
	}

	return c.JSON(http.StatusOK, eventPage{
		Events:  events,
		Total:   total,
		Page:    page,
		PerPage: perPage,
	})
}
