package model

import (
	"time"

	"github.com/google/uuid"
)

type ReservationEventType string

const (
	EventReserved ReservationEventType = "cart.reserved"
	EventReleased ReservationEventType = "cart.released"
	EventExpired  ReservationEventType = "cart.expired"
	EventCleared  ReservationEventType = "cart.cleared"
)

// 在庫1商品ぶんの予約の動き（コミット後に外へ流す）
type ReservationEvent struct {
	ID         string               `json:"id"`
	Type       ReservationEventType `json:"type"`
	UserID     int64                `json:"userId"`
	ProductID  int64                `json:"productId"`
	Quantity   int64                `json:"quantity"`
	OccurredAt time.Time            `json:"occurredAt"`
}

func NewReservationEvent(t ReservationEventType, userID, productID, qty int64, at time.Time) ReservationEvent {
	return ReservationEvent{
		ID:         uuid.NewString(),
		Type:       t,
		UserID:     userID,
		ProductID:  productID,
		Quantity:   qty,
		OccurredAt: at.UTC(),
	}
}
