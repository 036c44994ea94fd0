package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// 商品（本）。Stockは「新しく予約できる数」
type Product struct {
	ID          int64           `gorm:"primaryKey;autoIncrement" json:"id"`
	Title       string          `gorm:"type:varchar(255);not null" json:"title"`
	Author      string          `gorm:"type:varchar(255)" json:"author"`
	Description string          `gorm:"type:text" json:"description"`
	ImageCover  string          `gorm:"type:varchar(512)" json:"imageCover"`
	Price       decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"price"`
	Stock       int64           `gorm:"not null;default:0;check:chk_products_stock,stock >= 0" json:"stock"`
	IsActive    bool            `gorm:"not null;default:false" json:"isActive"`
	CreatedAt   time.Time       `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time       `gorm:"not null;autoUpdateTime" json:"updatedAt"`
	DeletedAt   gorm.DeletedAt  `gorm:"index" json:"-"`
}
