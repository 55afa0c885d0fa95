package audit

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/aficare/medilink/internal/platform/auth"
	"github.com/aficare/medilink/pkg/pagination"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

// RegisterRoutes mounts the audit trail endpoint. Admin only.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	api.GET("/audit-log", h.List, auth.RequireRole("admin"))
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)

	q := Query{
		MediLinkID: c.QueryParam("medilink_id"),
		UserID:     c.QueryParam("user_id"),
		Action:     c.QueryParam("action"),
	}
	if since := c.QueryParam("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be RFC 3339")
		}
		q.Since = t
	}

	items, total, err := h.store.Find(c.Request().Context(), q, pg.Limit, pg.Offset)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}
