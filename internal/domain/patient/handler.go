package patient

import (
	"errors"
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/aficare/medilink/internal/platform/auth"
	"github.com/aficare/medilink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("clinician", "patient"))
	readGroup.GET("/patients/:medilink_id", h.Get)

	writeGroup := api.Group("", auth.RequireRole("clinician"))
	writeGroup.GET("/patients", h.List)
	writeGroup.POST("/patients", h.Register)
	writeGroup.PUT("/patients/:medilink_id", h.Update)
	writeGroup.PUT("/patients/:medilink_id/history", h.UpdateHistory)
	writeGroup.DELETE("/patients/:medilink_id", h.Delete)
}

// serviceError maps service failures onto HTTP statuses. Validation errors
// are the client's fault; anything else is a server error.
func serviceError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Register(c echo.Context) error {
	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if err := h.svc.Register(c.Request().Context(), &p); err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusCreated, p)
}

func (h *Handler) Get(c echo.Context) error {
	mid := c.Param("medilink_id")
	if !auth.CanAccessRecord(c.Request().Context(), mid) {
		return echo.NewHTTPError(http.StatusForbidden, "record belongs to another patient")
	}
	p, err := h.svc.GetByMediLinkID(c.Request().Context(), mid)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) List(c echo.Context) error {
	pg := pagination.FromContext(c)

	params := map[string]string{}
	for _, key := range []string{"medilink_id", "name", "phone"} {
		if v := c.QueryParam(key); v != "" {
			params[key] = v
		}
	}

	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Update(c echo.Context) error {
	existing, err := h.svc.GetByMediLinkID(c.Request().Context(), c.Param("medilink_id"))
	if err != nil {
		return serviceError(err)
	}

	var p Patient
	if err := c.Bind(&p); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	p.ID = existing.ID
	p.MediLinkID = existing.MediLinkID

	if err := h.svc.Update(c.Request().Context(), &p); err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) UpdateHistory(c echo.Context) error {
	var hist History
	if err := c.Bind(&hist); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	p, err := h.svc.UpdateHistory(c.Request().Context(), c.Param("medilink_id"), hist)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, p)
}

func (h *Handler) Delete(c echo.Context) error {
	p, err := h.svc.GetByMediLinkID(c.Request().Context(), c.Param("medilink_id"))
	if err != nil {
		return serviceError(err)
	}
	if err := h.svc.Delete(c.Request().Context(), p); err != nil {
		return serviceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
