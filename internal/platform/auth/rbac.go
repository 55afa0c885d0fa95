package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
)

// RequireRole returns middleware that checks if the user has at least one of
// the specified roles. The admin role always passes.
func RequireRole(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			userRoles := RolesFromContext(c.Request().Context())
			for _, required := range roles {
				for _, has := range userRoles {
					if has == required || has == "admin" {
						return next(c)
					}
				}
			}
			return echo.NewHTTPError(http.StatusForbidden,
				fmt.Sprintf("required role: %s", strings.Join(roles, " or ")))
		}
	}
}

// CanAccessRecord reports whether the caller may touch the record keyed by
// medilinkID. Clinician and admin tokens reach any record; a token whose
// only role is patient reaches only the record named in its medilink_id
// claim.
func CanAccessRecord(ctx context.Context, medilinkID string) bool {
	patientOnly := false
	for _, r := range RolesFromContext(ctx) {
		switch r {
		case "clinician", "admin":
			return true
		case "patient":
			patientOnly = true
		}
	}
	if !patientOnly {
		return true
	}
	own := MediLinkIDFromContext(ctx)
	return own != "" && own == medilinkID
}
