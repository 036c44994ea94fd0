package repository

import (
	"context"

	"bookstore/internal/domain/model"
)

// 会話履歴の保存先（外部キャッシュ）
// (userID, sessionID) ごとに履歴を持ち、容量超過はLRUで捨てる
type ChatSessionStore interface {
	Append(ctx context.Context, userID int64, sessionID string, msgs ...model.ChatMessage) error
	History(ctx context.Context, userID int64, sessionID string) ([]model.ChatMessage, error)
	Delete(ctx context.Context, userID int64, sessionID string) error
}
