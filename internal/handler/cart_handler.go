package handler

import (
	"net/http"

	"bookstore/internal/config"
	"bookstore/internal/middleware"
	"bookstore/internal/repository"
	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /cartのHTTP
type CartHandler struct {
	uc *usecase.CartUsecase
}

// DI
func NewCartHandler(uc *usecase.CartUsecase) *CartHandler {
	return &CartHandler{uc: uc}
}

// quantityは省略時1
type AddCartRequest struct {
	ProductID      int64  `json:"productId"`
	Quantity       *int64 `json:"quantity"`
	ExpiryDuration string `json:"expiryDuration"`
}

type UpdateCartItemRequest struct {
	Quantity       *int64 `json:"quantity"`
	ExpiryDuration string `json:"expiryDuration"`
}

// /cart, /cart/:productId を登録
func (h *CartHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/cart")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.GET("", h.getCart)
	g.POST("", h.addToCart)
	g.DELETE("", h.clearCart)
	g.PATCH("/:productId", h.patchItem)
	g.DELETE("/:productId", h.deleteItem)
}

func (h *CartHandler) getCart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	out, err := h.uc.GetCart(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}

	if out.IsEmpty() {
		return success(c, http.StatusOK, "Cart is empty", out)
	}
	return success(c, http.StatusOK, "", out)
}

func (h *CartHandler) addToCart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	var req AddCartRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	if req.ProductID <= 0 {
		return fail(c, http.StatusBadRequest, "invalid product id")
	}

	qty := int64(1)
	if req.Quantity != nil {
		qty = *req.Quantity
	}

	out, err := h.uc.AddToCart(c.Request().Context(), userID, usecase.AddCartInput{
		ProductID:      req.ProductID,
		Quantity:       qty,
		ExpiryDuration: req.ExpiryDuration,
	})
	if err != nil {
		return writeError(c, err)
	}

	return success(c, http.StatusOK, "Item added to cart successfully", out)
}

func (h *CartHandler) patchItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	productID, ok := parseIDParam(c, "productId")
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid product id")
	}

	var req UpdateCartItemRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}
	//quantityは必須
	if req.Quantity == nil {
		return fail(c, http.StatusBadRequest, "Quantity must be at least 1")
	}

	out, err := h.uc.UpdateCartItem(c.Request().Context(), userID, productID, usecase.UpdateCartItemInput{
		Quantity:       *req.Quantity,
		ExpiryDuration: req.ExpiryDuration,
	})
	if err != nil {
		return writeError(c, err)
	}

	return success(c, http.StatusOK, "Cart item updated successfully", out)
}

func (h *CartHandler) deleteItem(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	productID, ok := parseIDParam(c, "productId")
	if !ok {
		return fail(c, http.StatusBadRequest, "invalid product id")
	}

	out, err := h.uc.RemoveCartItem(c.Request().Context(), userID, productID)
	if err != nil {
		return writeError(c, err)
	}

	return success(c, http.StatusOK, "Item removed from cart successfully", out)
}

func (h *CartHandler) clearCart(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	out, err := h.uc.ClearCart(c.Request().Context(), userID)
	if err != nil {
		return writeError(c, err)
	}

	return success(c, http.StatusOK, "Cart cleared successfully", out)
}
