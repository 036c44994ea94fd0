package usecase

import (
	"context"
	"errors"
	"net/http"
	"time"

	repo "bookstore/internal/repository"

	"github.com/shopspring/decimal"
)

// お気に入り。在庫には触らない
type WishlistUsecase struct {
	wishlist    repo.WishlistRepository
	productRepo repo.ProductRepository
}

func NewWishlistUsecase(wishlist repo.WishlistRepository, productRepo repo.ProductRepository) *WishlistUsecase {
	return &WishlistUsecase{wishlist: wishlist, productRepo: productRepo}
}

type WishlistItemOutput struct {
	ProductID int64           `json:"productId"`
	Title     string          `json:"title"`
	Author    string          `json:"author"`
	Image     string          `json:"image"`
	Price     decimal.Decimal `json:"price"`
	Available bool            `json:"available"`
	AddedAt   time.Time       `json:"addedAt"`
}

func (u *WishlistUsecase) Add(ctx context.Context, userID int64, productID int64) ([]WishlistItemOutput, error) {
	if userID <= 0 {
		return nil, errUnauthorized
	}
	if productID <= 0 {
		return nil, errInvalidProductID
	}

	p, err := u.productRepo.FindByID(ctx, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, errProductNotFound
	}
	if err != nil {
		return nil, errDB
	}
	if !p.IsActive {
		return nil, errProductNotFound
	}

	err = u.wishlist.Add(ctx, userID, productID)
	if errors.Is(err, repo.ErrAlreadyExists) {
		return nil, NewHTTPError(http.StatusBadRequest, "Product already in wishlist")
	}
	if err != nil {
		return nil, errDB
	}

	return u.List(ctx, userID)
}

// 追加順。削除済みの商品も available=false で返す
func (u *WishlistUsecase) List(ctx context.Context, userID int64) ([]WishlistItemOutput, error) {
	if userID <= 0 {
		return nil, errUnauthorized
	}

	items, err := u.wishlist.ListByUserID(ctx, userID)
	if err != nil {
		return nil, errDB
	}

	ids := make([]int64, 0, len(items))
	for _, it := range items {
		ids = append(ids, it.ProductID)
	}
	products, err := u.productRepo.FindByIDs(ctx, ids)
	if err != nil {
		return nil, errDB
	}

	out := make([]WishlistItemOutput, 0, len(items))
	for _, it := range items {
		p, ok := products[it.ProductID]
		if !ok {
			continue
		}
		out = append(out, WishlistItemOutput{
			ProductID: p.ID,
			Title:     p.Title,
			Author:    p.Author,
			Image:     p.ImageCover,
			Price:     p.Price,
			Available: p.IsActive && !p.DeletedAt.Valid && p.Stock > 0,
			AddedAt:   it.CreatedAt,
		})
	}
	return out, nil
}

func (u *WishlistUsecase) Remove(ctx context.Context, userID int64, productID int64) ([]WishlistItemOutput, error) {
	if userID <= 0 {
		return nil, errUnauthorized
	}
	if productID <= 0 {
		return nil, errInvalidProductID
	}

	err := u.wishlist.Remove(ctx, userID, productID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, NewHTTPError(http.StatusNotFound, "Item not found in wishlist")
	}
	if err != nil {
		return nil, errDB
	}

	return u.List(ctx, userID)
}
