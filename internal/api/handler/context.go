package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/farmledger/access-codes/internal/core/domain"
)

// managerIdentity extracts the claims injected by the Auth middleware and
// returns the identity recorded as a code's issuer. Presence of the role
// proves the middleware ran; the RBAC middleware has already checked it.
func managerIdentity(c echo.Context) (string, error) {
	role, _ := c.Get("role").(string)
	if role == "" {
		return "", echo.NewHTTPError(http.StatusUnauthorized, "missing authentication claims")
	}
	if domain.Role(role) != domain.RoleManager {
		return "", domain.ErrForbidden
	}

	if email, _ := c.Get("email").(string); email != "" {
		return email, nil
	}
	if sub, _ := c.Get("sub").(string); sub != "" {
		return sub, nil
	}
	return "", echo.NewHTTPError(http.StatusUnauthorized, "token missing subject")
}
