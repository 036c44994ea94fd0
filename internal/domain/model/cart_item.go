package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// カートの明細（1商品1行）
// Quantity == len(Entries) を常に保つ
type CartItem struct {
	ID                int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID            int64           `gorm:"not null;uniqueIndex:idx_cart_items_cart_product" json:"cartId"`
	ProductID         int64           `gorm:"not null;uniqueIndex:idx_cart_items_cart_product;index" json:"productId"`
	Quantity          int64           `gorm:"not null" json:"quantity"`
	UnitPriceSnapshot decimal.Decimal `gorm:"type:numeric(12,2);not null;column:unit_price_snapshot" json:"price"`
	SubTotal          decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"subTotal"`
	Entries           []CartItemEntry `gorm:"-" json:"itemEntries"`
	CreatedAt         time.Time       `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt         time.Time       `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}

// 予約1単位。作成後は削除以外で変更しない
type CartItemEntry struct {
	ID         int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	CartID     int64     `gorm:"not null;index" json:"-"`
	CartItemID int64     `gorm:"not null;index" json:"-"`
	ProductID  int64     `gorm:"not null;index" json:"productId"`
	AddedAt    time.Time `gorm:"not null" json:"addedAt"`
	ExpiresAt  time.Time `gorm:"not null;index" json:"expiresAt"`
}
