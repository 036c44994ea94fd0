package repository

import (
	"context"
	"errors"
	"time"

	"bookstore/internal/domain/model"
	repo "bookstore/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// carts / cart_items / cart_item_entries をまとめて扱う
type CartGormRepository struct {
	db *gorm.DB
}

// DI
func NewCartGormRepository(db *gorm.DB) *CartGormRepository {
	return &CartGormRepository{db: db}
}

// ユーザーのカートを行ロック付きで取得し、無ければ作成
// Tx内で呼ぶこと
func (r *CartGormRepository) GetOrCreateForUpdate(ctx context.Context, userID int64) (model.Cart, error) {
	// 同時作成は一意制約で片方だけ入る
	newCart := model.Cart{UserID: userID, TotalPrice: decimal.Zero}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "user_id"}}, DoNothing: true}).
		Create(&newCart).Error
	if err != nil {
		return model.Cart{}, err
	}

	return r.FindForUpdate(ctx, userID)
}

// ユーザーのカートを行ロック付きで取得
func (r *CartGormRepository) FindForUpdate(ctx context.Context, userID int64) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&cart).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// ユーザーのカートを取得
func (r *CartGormRepository) FindByUserID(ctx context.Context, userID int64) (model.Cart, error) {
	var cart model.Cart

	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&cart).Error

	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Cart{}, repo.ErrNotFound
	}
	if err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

// 計算済みの合計を保存
func (r *CartGormRepository) SaveTotals(ctx context.Context, cart model.Cart) error {
	res := r.db.WithContext(ctx).
		Model(&model.Cart{}).
		Where("id = ?", cart.ID).
		Updates(map[string]interface{}{
			"total_price":    cart.TotalPrice,
			"total_quantity": cart.TotalQuantity,
			"updated_at":     time.Now(),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 期限切れエントリを持つカートのユーザーIDを返す
func (r *CartGormRepository) ListUserIDsWithExpired(ctx context.Context, now time.Time, afterUserID int64, limit int) ([]int64, error) {
	var ids []int64

	err := r.db.WithContext(ctx).
		Model(&model.CartItemEntry{}).
		Joins("JOIN carts ON carts.id = cart_item_entries.cart_id").
		Where("cart_item_entries.expires_at <= ?", now).
		Where("carts.user_id > ?", afterUserID).
		Distinct().
		Order("carts.user_id asc").
		Limit(limit).
		Pluck("carts.user_id", &ids).Error

	if err != nil {
		return []int64{}, err
	}
	return ids, nil
}

// カート明細を一覧取得。エントリも詰める
func (r *CartGormRepository) ListByCartID(ctx context.Context, cartID int64) ([]model.CartItem, error) {
	var items []model.CartItem

	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("product_id asc").
		Find(&items).Error; err != nil {
		return []model.CartItem{}, err
	}

	var entries []model.CartItemEntry
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Order("id asc").
		Find(&entries).Error; err != nil {
		return []model.CartItem{}, err
	}

	byItem := make(map[int64][]model.CartItemEntry, len(items))
	for _, e := range entries {
		byItem[e.CartItemID] = append(byItem[e.CartItemID], e)
	}
	for i := range items {
		items[i].Entries = byItem[items[i].ID]
	}

	return items, nil
}

// 明細を新規作成（エントリは別で作る）
func (r *CartGormRepository) Create(ctx context.Context, item model.CartItem) (model.CartItem, error) {
	entries := item.Entries
	item.Entries = nil

	if err := r.db.WithContext(ctx).Create(&item).Error; err != nil {
		return model.CartItem{}, err
	}

	item.Entries = entries
	return item, nil
}

// 明細の数量と小計を更新
func (r *CartGormRepository) UpdateQuantity(ctx context.Context, item model.CartItem) error {
	res := r.db.WithContext(ctx).
		Model(&model.CartItem{}).
		Where("id = ?", item.ID).
		Updates(map[string]interface{}{
			"quantity":   item.Quantity,
			"sub_total":  item.SubTotal,
			"updated_at": time.Now(),
		})

	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 明細を削除（エントリも消す）
func (r *CartGormRepository) DeleteByID(ctx context.Context, cartItemID int64) error {
	if err := r.db.WithContext(ctx).
		Where("cart_item_id = ?", cartItemID).
		Delete(&model.CartItemEntry{}).Error; err != nil {
		return err
	}

	res := r.db.WithContext(ctx).Delete(&model.CartItem{}, cartItemID)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repo.ErrNotFound
	}
	return nil
}

// 指定カートの明細を全削除
func (r *CartGormRepository) DeleteByCartID(ctx context.Context, cartID int64) error {
	if err := r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&model.CartItemEntry{}).Error; err != nil {
		return err
	}

	return r.db.WithContext(ctx).
		Where("cart_id = ?", cartID).
		Delete(&model.CartItem{}).Error
}

// 1文で書き込む/消すエントリの数
const entryBatchSize = 500

// エントリをまとめて作成。IDが埋まったものを返す
func (r *CartGormRepository) CreateEntries(ctx context.Context, entries []model.CartItemEntry) ([]model.CartItemEntry, error) {
	if len(entries) == 0 {
		return entries, nil
	}
	//バインド変数の上限（sqlite 32766 / postgres 65535）を超えないよう分割
	if err := r.db.WithContext(ctx).CreateInBatches(&entries, entryBatchSize).Error; err != nil {
		return nil, err
	}
	return entries, nil
}

// エントリを削除。件数が合わなければ競合
func (r *CartGormRepository) DeleteEntries(ctx context.Context, entryIDs []int64) error {
	if len(entryIDs) == 0 {
		return nil
	}

	var deleted int64
	for start := 0; start < len(entryIDs); start += entryBatchSize {
		end := min(start+entryBatchSize, len(entryIDs))
		res := r.db.WithContext(ctx).
			Where("id IN ?", entryIDs[start:end]).
			Delete(&model.CartItemEntry{})
		if res.Error != nil {
			return res.Error
		}
		deleted += res.RowsAffected
	}

	if deleted != int64(len(entryIDs)) {
		return repo.ErrConflict
	}
	return nil
}
