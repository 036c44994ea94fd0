// Package reservation はカート明細の予約エントリ計算をまとめる。
// DBには触らない純粋な関数だけを置く。
package reservation

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"bookstore/internal/domain/model"

	"github.com/shopspring/decimal"
)

// Quantity と len(Entries) がずれている
var ErrLineMismatch = errors.New("cart line quantity does not match entries")

// qty個のエントリを追加する。追加分を返す
func Reserve(line *model.CartItem, qty int64, now time.Time, ttl time.Duration) []model.CartItemEntry {
	if qty <= 0 {
		return nil
	}

	added := make([]model.CartItemEntry, 0, qty)
	for i := int64(0); i < qty; i++ {
		added = append(added, model.CartItemEntry{
			CartID:     line.CartID,
			CartItemID: line.ID,
			ProductID:  line.ProductID,
			AddedAt:    now,
			ExpiresAt:  now.Add(ttl),
		})
	}

	line.Entries = append(line.Entries, added...)
	line.Quantity = int64(len(line.Entries))
	return added
}

// 期限が近い順にn個外す。期限が同じなら新しく追加した方から外す
func Release(line *model.CartItem, n int64) []model.CartItemEntry {
	if n <= 0 || len(line.Entries) == 0 {
		return nil
	}
	if n > int64(len(line.Entries)) {
		n = int64(len(line.Entries))
	}

	order := make([]int, len(line.Entries))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		ea, eb := line.Entries[order[a]], line.Entries[order[b]]
		if !ea.ExpiresAt.Equal(eb.ExpiresAt) {
			return ea.ExpiresAt.Before(eb.ExpiresAt)
		}
		if !ea.AddedAt.Equal(eb.AddedAt) {
			return ea.AddedAt.After(eb.AddedAt)
		}
		return order[a] > order[b]
	})

	drop := make(map[int]bool, n)
	for _, idx := range order[:n] {
		drop[idx] = true
	}

	removed := make([]model.CartItemEntry, 0, n)
	kept := make([]model.CartItemEntry, 0, len(line.Entries)-int(n))
	for i, e := range line.Entries {
		if drop[i] {
			removed = append(removed, e)
			continue
		}
		kept = append(kept, e)
	}

	line.Entries = kept
	line.Quantity = int64(len(kept))
	return removed
}

// ExpiresAt <= now のエントリを外して返す
func Sweep(line *model.CartItem, now time.Time) []model.CartItemEntry {
	var expired []model.CartItemEntry
	valid := line.Entries[:0:0]

	for _, e := range line.Entries {
		if e.ExpiresAt.After(now) {
			valid = append(valid, e)
			continue
		}
		expired = append(expired, e)
	}
	if len(expired) == 0 {
		return nil
	}

	line.Entries = valid
	line.Quantity = int64(len(valid))
	return expired
}

// 数量0の明細をカートから外して返す
func DropEmpty(cart *model.Cart) []model.CartItem {
	var dropped []model.CartItem
	kept := cart.Items[:0:0]

	for _, it := range cart.Items {
		if it.Quantity <= 0 {
			dropped = append(dropped, it)
			continue
		}
		kept = append(kept, it)
	}

	cart.Items = kept
	return dropped
}

// 明細の小計とカートの合計を毎回ゼロから計算し直す
func Recalculate(cart *model.Cart) {
	total := decimal.Zero
	var qty int64

	for i := range cart.Items {
		it := &cart.Items[i]
		it.SubTotal = it.UnitPriceSnapshot.Mul(decimal.NewFromInt(it.Quantity))
		total = total.Add(it.SubTotal)
		qty += it.Quantity
	}

	cart.TotalPrice = total
	cart.TotalQuantity = qty
}

// 全明細で Quantity == len(Entries) を確認する
func Check(cart model.Cart) error {
	for _, it := range cart.Items {
		if it.Quantity != int64(len(it.Entries)) {
			return fmt.Errorf("%w: product=%d quantity=%d entries=%d",
				ErrLineMismatch, it.ProductID, it.Quantity, len(it.Entries))
		}
	}
	return nil
}
