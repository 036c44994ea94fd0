package repository

import (
	"context"

	"bookstore/internal/domain/model"
)

// 明細と予約エントリの永続化
type CartItemRepository interface {
	// 明細とエントリをまとめて取得（product_id順）
	ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error)
	Create(ctx context.Context, item model.CartItem) (model.CartItem, error)
	UpdateQuantity(ctx context.Context, item model.CartItem) error
	DeleteByID(ctx context.Context, cartItemID int64) error
	DeleteByCartID(ctx context.Context, cartID int64) error

	CreateEntries(ctx context.Context, entries []model.CartItemEntry) ([]model.CartItemEntry, error)
	DeleteEntries(ctx context.Context, entryIDs []int64) error
}
