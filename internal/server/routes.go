package server

import (
	"bookstore/internal/config"
	"bookstore/internal/handler"
	"bookstore/internal/repository"

	"github.com/labstack/echo/v4"
)

type Handlers struct {
	Auth         *handler.AuthHandler
	Product      *handler.ProductHandler
	AdminProduct *handler.AdminProductHandler
	AdminUser    *handler.AdminUserHandler
	Cart         *handler.CartHandler
	Wishlist     *handler.WishlistHandler
	Chat         *handler.ChatHandler
}

// 認証が要るグループはJWT + token_versionを通す
func RegisterRoutes(e *echo.Echo, h Handlers, cfg config.Config, userRepo repository.UserRepository) {
	h.Auth.RegisterRoutes(e, cfg, userRepo)
	h.Product.RegisterRoutes(e)
	h.AdminProduct.RegisterRoutes(e, cfg, userRepo)
	h.AdminUser.RegisterRoutes(e)
	h.Cart.RegisterRoutes(e, cfg, userRepo)
	h.Wishlist.RegisterRoutes(e, cfg, userRepo)
	h.Chat.RegisterRoutes(e, cfg, userRepo)
}
