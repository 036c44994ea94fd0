package usecase

import (
	"context"
	"net/http"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"github.com/google/uuid"
)

const maxChatMessageLen = 2000

var sessionIDRe = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// 返答を作る外部の相手
type Assistant interface {
	Reply(ctx context.Context, history []model.ChatMessage, message string) (string, error)
}

type ChatUsecase struct {
	sessions  repo.ChatSessionStore
	assistant Assistant
	now       func() time.Time
}

func NewChatUsecase(sessions repo.ChatSessionStore, assistant Assistant) *ChatUsecase {
	return &ChatUsecase{sessions: sessions, assistant: assistant, now: time.Now}
}

type ChatSendInput struct {
	SessionID string
	Message   string
}

type ChatReplyOutput struct {
	SessionID string              `json:"sessionId"`
	Reply     string              `json:"reply"`
	History   []model.ChatMessage `json:"history"`
}

// セッションIDが無ければ新しく発行する
func (u *ChatUsecase) Send(ctx context.Context, userID int64, in ChatSendInput) (ChatReplyOutput, error) {
	if userID <= 0 {
		return ChatReplyOutput{}, errUnauthorized
	}
	msg := strings.TrimSpace(in.Message)
	if msg == "" {
		return ChatReplyOutput{}, NewHTTPError(http.StatusBadRequest, "message required")
	}
	if utf8.RuneCountInString(msg) > maxChatMessageLen {
		return ChatReplyOutput{}, NewHTTPError(http.StatusBadRequest, "message too long")
	}

	sessionID := strings.TrimSpace(in.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	if !sessionIDRe.MatchString(sessionID) {
		return ChatReplyOutput{}, NewHTTPError(http.StatusBadRequest, "invalid session id")
	}

	history, err := u.sessions.History(ctx, userID, sessionID)
	if err != nil {
		return ChatReplyOutput{}, NewHTTPError(http.StatusInternalServerError, "session store error")
	}

	reply, err := u.assistant.Reply(ctx, history, msg)
	if err != nil {
		return ChatReplyOutput{}, NewHTTPError(http.StatusBadGateway, "Failed to generate AI response")
	}

	now := u.now().UTC()
	turn := []model.ChatMessage{
		{Role: model.ChatRoleUser, Content: msg, CreatedAt: now},
		{Role: model.ChatRoleAssistant, Content: reply, CreatedAt: now},
	}
	if err := u.sessions.Append(ctx, userID, sessionID, turn...); err != nil {
		return ChatReplyOutput{}, NewHTTPError(http.StatusInternalServerError, "session store error")
	}

	return ChatReplyOutput{
		SessionID: sessionID,
		Reply:     reply,
		History:   append(history, turn...),
	}, nil
}

func (u *ChatUsecase) History(ctx context.Context, userID int64, sessionID string) ([]model.ChatMessage, error) {
	if userID <= 0 {
		return nil, errUnauthorized
	}
	if !sessionIDRe.MatchString(sessionID) {
		return nil, NewHTTPError(http.StatusBadRequest, "invalid session id")
	}

	msgs, err := u.sessions.History(ctx, userID, sessionID)
	if err != nil {
		return nil, NewHTTPError(http.StatusInternalServerError, "session store error")
	}
	return msgs, nil
}

func (u *ChatUsecase) Reset(ctx context.Context, userID int64, sessionID string) error {
	if userID <= 0 {
		return errUnauthorized
	}
	if !sessionIDRe.MatchString(sessionID) {
		return NewHTTPError(http.StatusBadRequest, "invalid session id")
	}

	if err := u.sessions.Delete(ctx, userID, sessionID); err != nil {
		return NewHTTPError(http.StatusInternalServerError, "session store error")
	}
	return nil
}
