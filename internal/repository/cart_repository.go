package repository

import (
	"context"
	"time"

	"bookstore/internal/domain/model"
)

type CartRepository interface {
	// 行ロック付きで取得。無ければ作成
	GetOrCreateForUpdate(ctx context.Context, userID int64) (model.Cart, error)
	// 行ロック付きで取得。無ければ ErrNotFound
	FindForUpdate(ctx context.Context, userID int64) (model.Cart, error)
	FindByUserID(ctx context.Context, userID int64) (model.Cart, error)
	// 合計だけ保存（計算済みの値を渡す）
	SaveTotals(ctx context.Context, cart model.Cart) error
	// 期限切れエントリを持つカートのユーザー
	ListUserIDsWithExpired(ctx context.Context, now time.Time, afterUserID int64, limit int) ([]int64, error)
}
