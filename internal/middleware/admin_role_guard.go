package middleware

import (
	"bookstore/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// AuthJWTの後ろに置く。ADMINだけ通す
func AdminRoleGuard() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident, ok := IdentityFrom(c)
			if !ok || ident.Role == "" {
				return unauthorized(c)
			}
			if model.Role(ident.Role) != model.RoleAdmin {
				return forbidden(c, "admin only")
			}
			return next(c)
		}
	}
}
