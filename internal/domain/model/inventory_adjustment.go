package model

import "time"

// 在庫変動の理由
type AdjustmentReason string

const (
	AdjustmentReasonReserve AdjustmentReason = "CART_RESERVE"
	AdjustmentReasonRelease AdjustmentReason = "CART_RELEASE"
	AdjustmentReasonExpire  AdjustmentReason = "CART_EXPIRE"
	AdjustmentReasonClear   AdjustmentReason = "CART_CLEAR"
	AdjustmentReasonAdmin   AdjustmentReason = "ADMIN_SET"
)

// 在庫調整の履歴（在庫台帳の仕訳）
// Deltaはproducts.stockに対する増減
type InventoryAdjustment struct {
	ID          int64            `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID   int64            `gorm:"not null;index" json:"productId"`
	ActorUserID int64            `gorm:"not null;index" json:"actorUserId"`
	Delta       int64            `gorm:"not null" json:"delta"`
	Reason      AdjustmentReason `gorm:"type:varchar(32);not null;index" json:"reason"`
	Note        string           `gorm:"type:varchar(255)" json:"note"`
	CreatedAt   time.Time        `gorm:"not null;autoCreateTime" json:"createdAt"`
}
