package echoapi

import (
	"github.com/labstack/echo/v4"
	"github.com/pkg/errors"

	"github.com/trezcool/agape/core/user"
)

// roleMiddleware lets through staff members having any of roles. Owners pass every check.
func roleMiddleware(roles ...string) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(ctx echo.Context) error {
			claims, err := getContextClaims(ctx)
			if err != nil {
				return errors.Wrap(err, "getting context claims")
			}
			if user.HasAnyRole(claims.Roles, roles...) {
				return next(ctx)
			}
			return errHttpForbidden
		}
	}
}

var (
	ownerOnly      = roleMiddleware(user.RoleOwner)
	financeOnly    = roleMiddleware(user.RoleFinance)
	secretaryOnly  = roleMiddleware(user.RoleSecretary)
	gradeKeepers   = roleMiddleware(user.RoleTeacher, user.RoleSecretary)
	anyStaffMember = roleMiddleware(user.AllRoles...)
)
