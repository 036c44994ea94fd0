package middleware

import (
	"context"

	"bookstore/internal/domain/model"

	"github.com/labstack/echo/v4"
)

// ガードに必要なのはIDでの取得だけ
type userLookup interface {
	FindByID(ctx context.Context, userID int64) (*model.User, error)
}

// 強制ログアウト(token_version++)や停止済みユーザーのトークンを弾く
func TokenVersionGuard(users userLookup) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			ident, ok := IdentityFrom(c)
			if !ok || ident.TokenVersion < 0 {
				return unauthorized(c)
			}

			user, err := users.FindByID(c.Request().Context(), ident.UserID)
			if err != nil || user == nil || !user.IsActive {
				return unauthorized(c)
			}
			if user.TokenVersion != ident.TokenVersion {
				return unauthorized(c)
			}

			return next(c)
		}
	}
}
