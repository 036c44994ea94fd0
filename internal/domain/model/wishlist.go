package model

import "time"

// ほしい物リスト。在庫には触らない
type WishlistItem struct {
	ID        int64     `gorm:"primaryKey;autoIncrement" json:"id"`
	UserID    int64     `gorm:"not null;uniqueIndex:idx_wishlist_user_product" json:"userId"`
	ProductID int64     `gorm:"not null;uniqueIndex:idx_wishlist_user_product" json:"productId"`
	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
}
