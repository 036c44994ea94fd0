package usecase

import (
	"errors"
	"fmt"
	"net/http"
)

// HTTPError はhandlerでそのままステータスとメッセージに変換される
type HTTPError struct {
	Status  int
	Message string
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("%d: %s", e.Status, e.Message)
}

func NewHTTPError(status int, message string) error {
	return &HTTPError{
		Status:  status,
		Message: message,
	}
}

func AsHTTPError(err error) (*HTTPError, bool) {
	var he *HTTPError
	ok := errors.As(err, &he)
	return he, ok
}

// よく使うもの
var (
	errUnauthorized     = NewHTTPError(http.StatusUnauthorized, "unauthorized")
	errDB               = NewHTTPError(http.StatusInternalServerError, "db error")
	errInvalidProductID = NewHTTPError(http.StatusBadRequest, "invalid product id")
	errProductNotFound  = NewHTTPError(http.StatusNotFound, "Product not found")
	errCartNotFound     = NewHTTPError(http.StatusNotFound, "Cart not found")
	errItemNotFound     = NewHTTPError(http.StatusNotFound, "Item not found in cart")
	errInvalidQuantity  = NewHTTPError(http.StatusBadRequest, "Quantity must be at least 1")
	errInvalidExpiry    = NewHTTPError(http.StatusBadRequest, "invalid expiryDuration")
	errOutOfStock       = NewHTTPError(http.StatusBadRequest, "Out of stock")
	errCartConflict     = NewHTTPError(http.StatusConflict, "cart changed concurrently, retry")
	errInvariant        = NewHTTPError(http.StatusInternalServerError, "inventory invariant violated")
)
