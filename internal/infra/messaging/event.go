// Package messaging は予約の増減イベントを外へ流す。
package messaging

import (
	"context"

	"bookstore/internal/domain/model"
)

// コミット後に呼ぶ。失敗しても予約は取り消さない
type Publisher interface {
	Publish(ctx context.Context, events ...model.ReservationEvent) error
	Close() error
}
