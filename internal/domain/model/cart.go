package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// 1ユーザーにつきカートは1つ
// 合計は保存前に必ず明細から計算し直す
type Cart struct {
	ID            int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID        int64           `gorm:"not null;uniqueIndex" json:"userId"`
	TotalPrice    decimal.Decimal `gorm:"type:numeric(14,2);not null;default:0" json:"totalPrice"`
	TotalQuantity int64           `gorm:"not null;default:0" json:"totalQuantity"`
	Items         []CartItem      `gorm:"-" json:"cartItems"`
	CreatedAt     time.Time       `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt     time.Time       `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}

// ProductIDで明細を探す
func (c *Cart) Line(productID int64) (*CartItem, bool) {
	for i := range c.Items {
		if c.Items[i].ProductID == productID {
			return &c.Items[i], true
		}
	}
	return nil, false
}
