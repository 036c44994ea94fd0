package repository

import (
	"context"
	"errors"

	"bookstore/internal/domain/model"
)

// 同じ商品が既に入っている
var ErrAlreadyExists = errors.New("already exists")

type WishlistRepository interface {
	Add(ctx context.Context, userID int64, productID int64) error
	ListByUserID(ctx context.Context, userID int64) ([]model.WishlistItem, error)
	Remove(ctx context.Context, userID int64, productID int64) error
}
