package access

import (
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/aficare/medilink/internal/platform/auth"
	"github.com/aficare/medilink/internal/platform/qrtoken"
	"github.com/aficare/medilink/pkg/pagination"
)

type Handler struct {
	svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc}
}

// RegisterRoutes mounts the authenticated grant-management endpoints.
func (h *Handler) RegisterRoutes(api *echo.Group) {
	readGroup := api.Group("", auth.RequireRole("clinician", "patient"))
	readGroup.GET("/access-grants/:id", h.Get)
	readGroup.GET("/access-grants/:id/qr.png", h.QRImage)
	readGroup.GET("/patients/:medilink_id/access-grants", h.ListByPatient)

	writeGroup := api.Group("", auth.RequireRole("clinician", "patient"))
	writeGroup.POST("/access-grants", h.Grant)
	writeGroup.DELETE("/access-grants/:id", h.Revoke)
}

// serviceError maps service failures onto HTTP statuses. Validation errors
// are the client's fault; anything else is a server error.
func serviceError(err error) error {
	switch {
	case errors.Is(err, ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "access grant not found")
	case errors.Is(err, ErrPatientNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "patient not found")
	case errors.Is(err, ErrInvalid):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
}

func (h *Handler) Grant(c echo.Context) error {
	var req GrantRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	if !auth.CanAccessRecord(c.Request().Context(), req.MediLinkID) {
		return echo.NewHTTPError(http.StatusForbidden, "record belongs to another patient")
	}

	createdBy := auth.UserIDFromContext(c.Request().Context())
	g, token, err := h.svc.Grant(c.Request().Context(), req, createdBy)
	if err != nil {
		return serviceError(err)
	}

	return c.JSON(http.StatusCreated, map[string]interface{}{
		"grant":  g,
		"token":  token,
		"qr_url": "/api/v1/access-grants/" + g.ID.String() + "/qr.png",
	})
}

func (h *Handler) Get(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid grant id")
	}
	g, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return serviceError(err)
	}
	if !auth.CanAccessRecord(c.Request().Context(), g.MediLinkID) {
		return echo.NewHTTPError(http.StatusForbidden, "record belongs to another patient")
	}
	return c.JSON(http.StatusOK, g)
}

// QRImage re-mints the grant's token and streams it as a QR PNG.
func (h *Handler) QRImage(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid grant id")
	}
	g, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return serviceError(err)
	}
	if !auth.CanAccessRecord(c.Request().Context(), g.MediLinkID) {
		return echo.NewHTTPError(http.StatusForbidden, "record belongs to another patient")
	}

	token, err := h.svc.Token(g)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	png, err := qrtoken.Image(token, qrtoken.DefaultImageSize)
	if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	return c.Blob(http.StatusOK, "image/png", png)
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

func (h *Handler) Revoke(c echo.Context) error {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid grant id")
	}
	g, err := h.svc.Get(c.Request().Context(), id)
	if err != nil {
		return serviceError(err)
	}
	if !auth.CanAccessRecord(c.Request().Context(), g.MediLinkID) {
		return echo.NewHTTPError(http.StatusForbidden, "record belongs to another patient")
	}
	if err := h.svc.Revoke(c.Request().Context(), g.ID); err != nil {
		return serviceError(err)
	}
	return c.NoContent(http.StatusNoContent)
}

func (h *Handler) Redeem(c echo.Context) error {
	record, err := h.svc.Redeem(c.Request().Context(), c.Param("token"))
	if err != nil {
		switch {
		case errors.Is(err, ErrInvalidToken):
			return echo.NewHTTPError(http.StatusBadRequest, "invalid share token")
		case errors.Is(err, ErrGrantGone):
			return echo.NewHTTPError(http.StatusGone, "access grant expired or revoked")
		case errors.Is(err, ErrPatientNotFound):
			return echo.NewHTTPError(http.StatusNotFound, "patient record no longer exists")
		default:
			return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
		}
	}
	return c.JSON(http.StatusOK, record)
}
