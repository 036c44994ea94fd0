package handler

import (
	"errors"
	"net/http"
	"strconv"

	"bookstore/internal/middleware"
	"bookstore/internal/usecase"
	"bookstore/internal/validator"

	"github.com/labstack/echo/v4"
)

// 成功時の共通レスポンス
type SuccessResponse struct {
	Status  string      `json:"status"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// 4xxはfail、5xxはerror
type ErrorResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}

func success(c echo.Context, code int, message string, data interface{}) error {
	return c.JSON(code, SuccessResponse{Status: "success", Message: message, Data: data})
}

func fail(c echo.Context, code int, message string) error {
	status := "fail"
	if code >= http.StatusInternalServerError {
		status = "error"
	}
	return c.JSON(code, ErrorResponse{Status: status, Message: message})
}

func writeError(c echo.Context, err error) error {
	if err == nil {
		return nil
	}
	if he, ok := usecase.AsHTTPError(err); ok {
		return fail(c, he.Status, he.Message)
	}

	//auth系はsentinel errorで返ってくる
	var fe *validator.FieldError
	switch {
	case errors.As(err, &fe):
		return fail(c, http.StatusBadRequest, fe.Error())
	case errors.Is(err, validator.ErrInvalidInput), errors.Is(err, usecase.ErrValidation):
		return fail(c, http.StatusBadRequest, "validation error")
	case errors.Is(err, validator.ErrEmailAlreadyUsed), errors.Is(err, usecase.ErrConflict):
		return fail(c, http.StatusConflict, "email already used")
	case errors.Is(err, usecase.ErrUnauthorized):
		return fail(c, http.StatusUnauthorized, "unauthorized")
	case errors.Is(err, usecase.ErrForbidden):
		return fail(c, http.StatusForbidden, "forbidden")
	}

	//500
	return fail(c, http.StatusInternalServerError, "internal error")
}

// middleware.AuthJWTが入れたuser_id
func getUserIDFromContext(c echo.Context) (int64, bool) {
	ident, ok := middleware.IdentityFrom(c)
	return ident.UserID, ok
}

func parseIDParam(c echo.Context, name string) (int64, bool) {
	id, err := strconv.ParseInt(c.Param(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
