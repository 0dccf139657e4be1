package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"
)

// tenantMiddleware rejects tokens that do not name a tenant.
func tenantMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(ctx echo.Context) error {
		claims, err := getContextClaims(ctx)
		if err != nil {
			return errors.Wrap(err, "getting context claims")
		}
		if claims.TenantID == "" {
			return errHttpForbidden
		}
		return next(ctx)
	}
}

// staffMiddleware lets through the holders of any of roles, StaffRoles when none are given.
func staffMiddleware(roles ...string) echo.MiddlewareFunc {
	if len(roles) == 0 {
		roles = StaffRoles
	}
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			if contextHasAnyRole(ctx, roles) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}
