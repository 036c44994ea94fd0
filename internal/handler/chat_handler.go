package handler

import (
	"net/http"

	"bookstore/internal/config"
	"bookstore/internal/middleware"
	"bookstore/internal/repository"
	"bookstore/internal/usecase"

	"github.com/labstack/echo/v4"
)

// /ai/chat のHTTP
type ChatHandler struct {
	uc *usecase.ChatUsecase
}

func NewChatHandler(uc *usecase.ChatUsecase) *ChatHandler {
	return &ChatHandler{uc: uc}
}

type ChatRequest struct {
	SessionID string `json:"sessionId"`
	Message   string `json:"message"`
}

func (h *ChatHandler) RegisterRoutes(e *echo.Echo, cfg config.Config, userRepo repository.UserRepository) {
	g := e.Group("/ai/chat")
	g.Use(middleware.AuthJWT(cfg))
	g.Use(middleware.TokenVersionGuard(userRepo))

	g.POST("", h.send)
	g.GET("/:sessionId", h.history)
	g.DELETE("/:sessionId", h.reset)
}

func (h *ChatHandler) send(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	var req ChatRequest
	if err := c.Bind(&req); err != nil {
		return fail(c, http.StatusBadRequest, "invalid body")
	}

	out, err := h.uc.Send(c.Request().Context(), userID, usecase.ChatSendInput{
		SessionID: req.SessionID,
		Message:   req.Message,
	})
	if err != nil {
		return writeError(c, err)
	}

	return success(c, http.StatusOK, "", out)
}

func (h *ChatHandler) history(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	msgs, err := h.uc.History(c.Request().Context(), userID, c.Param("sessionId"))
	if err != nil {
		return writeError(c, err)
	}

	return success(c, http.StatusOK, "", msgs)
}

func (h *ChatHandler) reset(c echo.Context) error {
	userID, ok := getUserIDFromContext(c)
	if !ok {
		return fail(c, http.StatusUnauthorized, "unauthorized")
	}

	if err := h.uc.Reset(c.Request().Context(), userID, c.Param("sessionId")); err != nil {
		return writeError(c, err)
	}

	return success(c, http.StatusOK, "session cleared", nil)
}
