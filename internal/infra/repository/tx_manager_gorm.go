package repository

import (
	"context"

	repo "bookstore/internal/repository"

	"gorm.io/gorm"
)

type txReposGorm struct {
	carts     repo.CartRepository
	cartItems repo.CartItemRepository
	inventory repo.InventoryRepository
	products  repo.ProductRepository
}

func (r *txReposGorm) Carts() repo.CartRepository          { return r.carts }
func (r *txReposGorm) CartItems() repo.CartItemRepository  { return r.cartItems }
func (r *txReposGorm) Inventory() repo.InventoryRepository { return r.inventory }
func (r *txReposGorm) Products() repo.ProductRepository    { return r.products }

type TxManagerGorm struct {
	db *gorm.DB
}

func NewTxManagerGorm(db *gorm.DB) *TxManagerGorm {
	return &TxManagerGorm{db: db}
}

func (tm *TxManagerGorm) WithinTx(ctx context.Context, fn func(r repo.TxRepos) error) error {
	return tm.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		//repoはtxを持ったDBで作り直す
		cartRepo := NewCartGormRepository(tx)
		r := &txReposGorm{
			carts:     cartRepo,
			cartItems: cartRepo,
			inventory: NewInventoryGormRepository(tx),
			products:  NewProductGormRepository(tx),
		}
		return fn(r)
	})
}

var (
	_ repo.CartRepository      = (*CartGormRepository)(nil)
	_ repo.CartItemRepository  = (*CartGormRepository)(nil)
	_ repo.InventoryRepository = (*InventoryGormRepository)(nil)
	_ repo.ProductRepository   = (*ProductGormRepository)(nil)
	_ repo.WishlistRepository  = (*WishlistGormRepository)(nil)
	_ repo.TransactionManager  = (*TxManagerGorm)(nil)
)
