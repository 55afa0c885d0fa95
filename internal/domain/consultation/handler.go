package consultation

import (
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
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
	readGroup.GET("/consultations/:id", h.Get)
	readGroup.GET("/patients/:medilink_id/consultations", h.ListByPatient)

	clinicianGroup := api.Group("", auth.RequireRole("clinician"))
	clinicianGroup.GET("/consultations", h.Search)
	clinicianGroup.POST("/consultations", h.Create)
	clinicianGroup.PUT("/consultations/:id/note", h.UpdateNote)
	clinicianGroup.DELETE("/consultations/:id", h.Delete)
}

// serviceError maps service failures onto HTTP statuses. Validation errors
// are the client's fault; anything else is a server error.
func serviceError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "consultation not found")
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Create(c echo.Context) error {
	var cons Consultation
	if err := c.Bind(&cons); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	cons.CreatedBy = auth.UserIDFromContext(c.Request().Context())

	if err := h.svc.Create(c.Request().Context(), &cons); err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusCreated, cons)
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid consultation id")
	}
	cons, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return serviceError(err)
	}
	if !auth.CanAccessRecord(c.Request().Context(), cons.MediLinkID) {
		return echo.NewHTTPError(http.StatusForbidden, "record belongs to another patient")
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) ListByPatient(c echo.Context) error {
	mid := c.Param("medilink_id")
	if !auth.CanAccessRecord(c.Request().Context(), mid) {
		return echo.NewHTTPError(http.StatusForbidden, "record belongs to another patient")
	}
	pg := pagination.FromContext(c)
	items, total, err := h.svc.ListByPatient(c.Request().Context(), mid, pg.Limit, pg.Offset)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) Search(c echo.Context) error {
	pg := pagination.FromContext(c)

	params := SearchParams{
		MediLinkID:  c.QueryParam("medilink_id"),
		TriageLevel: TriageLevel(c.QueryParam("triage_level")),
	}
	if since := c.QueryParam("since"); since != "" {
		t, err := time.Parse(time.RFC3339, since)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "since must be RFC 3339")
		}
		params.Since = t
	}

	items, total, err := h.svc.Search(c.Request().Context(), params, pg.Limit, pg.Offset)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, pagination.NewResponse(items, total, pg.Limit, pg.Offset))
}

func (h *Handler) UpdateNote(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid consultation id")
	}

	var body struct {
		Note string `json:"note"`
	}
	if err := c.Bind(&body); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	cons, err := h.svc.UpdateNote(c.Request().Context(), id, body.Note)
	if err != nil {
		return serviceError(err)
	}
	return c.JSON(http.StatusOK, cons)
}

func (h *Handler) Delete(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid consultation id")
	}
	if err := h.svc.Delete(c.Request().Context(), id); err != nil {
		return serviceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}
