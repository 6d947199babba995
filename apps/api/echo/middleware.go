package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/tukerin/backend/core/user"
)

// managementMiddleware lets through tokens whose subject still has management access.
func managementMiddleware(svc *user.Service) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if claims.IsManagement && svc.HasManagementAccess(ctx.Request().Context(), claims.Subject) {
				return next(ctx)
			}
			return errManagementOnly
		}
	}
}
