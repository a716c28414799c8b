package middleware

import (
	"github.com/labstack/echo/v4"

	"github.com/farmledger/access-codes/internal/core/domain"
)

// RBAC admits requests whose role claim is one of allowedRoles and fails the
// rest with domain.ErrForbidden.
func RBAC(allowedRoles ...domain.Role) echo.MiddlewareFunc {
	allowed := make(map[domain.Role]struct{}, len(allowedRoles))
	for _, r := range allowedRoles {
		allowed[r] = struct{}{}
	}

	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			role, _ := c.Get("role").(string)
			if _, ok := allowed[domain.Role(role)]; !ok {
				return domain.ErrForbidden
			}
			return next(c)
		}
	}
}
