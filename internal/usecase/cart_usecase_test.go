package usecase_test

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"bookstore/internal/domain/model"
	infrarepo "bookstore/internal/infra/repository"
	"bookstore/internal/testutil"
	"bookstore/internal/usecase"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []model.ReservationEvent
	err    error
}

func (p *recordingPublisher) Publish(ctx context.Context, events ...model.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, events...)
	return p.err
}

func (p *recordingPublisher) Types() []model.ReservationEventType {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]model.ReservationEventType, 0, len(p.events))
	for _, ev := range p.events {
		out = append(out, ev.Type)
	}
	return out
}

type cartFixture struct {
	db    *gorm.DB
	uc    *usecase.CartUsecase
	clock *fakeClock
	pub   *recordingPublisher
}

func newCartFixture(t *testing.T) cartFixture {
	t.Helper()

	gdb := testutil.NewDB(t)
	clock := &fakeClock{now: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)}
	pub := &recordingPublisher{}

	uc := usecase.NewCartUsecase(infrarepo.NewTxManagerGorm(gdb), pub, nil, usecase.CartConfig{
		DefaultTTL: 48 * time.Hour,
		MaxTTL:     7 * 24 * time.Hour,
	})
	uc.SetClock(clock)

	return cartFixture{db: gdb, uc: uc, clock: clock, pub: pub}
}

func requireStatus(t *testing.T, err error, status int) {
	t.Helper()
	require.Error(t, err)
	he, ok := usecase.AsHTTPError(err)
	require.True(t, ok, "expected HTTPError, got %v", err)
	assert.Equal(t, status, he.Status)
}

// 初期在庫 == 現在庫 + 全カートの予約数
func assertConserved(t *testing.T, gdb *gorm.DB, productID int64, initial int64) {
	t.Helper()
	assert.Equal(t, initial, testutil.Stock(t, gdb, productID)+testutil.Reserved(t, gdb, productID))

	var lineQty int64
	require.NoError(t, gdb.Model(&model.CartItem{}).
		Where("product_id = ?", productID).
		Select("COALESCE(SUM(quantity), 0)").Scan(&lineQty).Error)
	assert.Equal(t, testutil.Reserved(t, gdb, productID), lineQty)
}

func TestCart_AddReservesStock(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, "Dune", "12.50", 5)

	out, err := f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 3})
	require.NoError(t, err)

	assert.Equal(t, int64(2), testutil.Stock(t, f.db, p.ID))
	require.Len(t, out.CartItems, 1)
	line := out.CartItems[0]
	assert.Equal(t, int64(3), line.Quantity)
	assert.Len(t, line.ItemEntries, 3)
	assert.Equal(t, "Dune", line.Title)
	assert.Equal(t, "author of Dune", line.Author)
	assert.True(t, decimal.RequireFromString("37.50").Equal(line.SubTotal))
	assert.True(t, decimal.RequireFromString("37.50").Equal(out.TotalPrice))
	assert.Equal(t, int64(3), out.TotalQuantity)

	for _, e := range line.ItemEntries {
		assert.True(t, e.ExpiresAt.Equal(f.clock.Now().Add(48*time.Hour)))
	}
	assert.Equal(t, []model.ReservationEventType{model.EventReserved}, f.pub.Types())
	assertConserved(t, f.db, p.ID, 5)
}

func TestCart_AddSameProductAppendsEntries(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, "Emma", "4.00", 10)

	_, err := f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 2, ExpiryDuration: "1h"})
	require.NoError(t, err)

	// 2回目は価格が変わっていても最初の価格のまま
	require.NoError(t, f.db.Model(&model.Product{}).Where("id = ?", p.ID).
		Update("price", decimal.RequireFromString("9.00")).Error)
	f.clock.Advance(10 * time.Minute)

	out, err := f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 1, ExpiryDuration: "30m"})
	require.NoError(t, err)

	require.Len(t, out.CartItems, 1)
	assert.Equal(t, int64(3), out.CartItems[0].Quantity)
	assert.Len(t, out.CartItems[0].ItemEntries, 3)
	assert.True(t, decimal.RequireFromString("4.00").Equal(out.CartItems[0].Price))
	assert.True(t, decimal.RequireFromString("12.00").Equal(out.TotalPrice))
	assert.Equal(t, int64(7), testutil.Stock(t, f.db, p.ID))
	assertConserved(t, f.db, p.ID, 10)
}

func TestCart_AddOutOfStockLeavesStateUntouched(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, "Ulysses", "20.00", 2)

	_, err := f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 3})
	requireStatus(t, err, http.StatusBadRequest)

	assert.Equal(t, int64(2), testutil.Stock(t, f.db, p.ID))
	var lines int64
	require.NoError(t, f.db.Model(&model.CartItem{}).Count(&lines).Error)
	assert.Zero(t, lines)
	assert.Empty(t, f.pub.Types())
}

func TestCart_AddValidation(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, "Beloved", "8.00", 5)
	hidden := testutil.SeedProduct(t, f.db, "Draft", "8.00", 5)
	require.NoError(t, f.db.Model(&model.Product{}).Where("id = ?", hidden.ID).Update("is_active", false).Error)

	tests := []struct {
		name   string
		userID int64
		in     usecase.AddCartInput
		status int
	}{
		{"no user", 0, usecase.AddCartInput{ProductID: p.ID, Quantity: 1}, http.StatusUnauthorized},
		{"missing product id", 1, usecase.AddCartInput{Quantity: 1}, http.StatusBadRequest},
		{"zero quantity", 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 0}, http.StatusBadRequest},
		{"unknown product", 1, usecase.AddCartInput{ProductID: 9999, Quantity: 1}, http.StatusNotFound},
		{"inactive product", 1, usecase.AddCartInput{ProductID: hidden.ID, Quantity: 1}, http.StatusNotFound},
		{"bad duration", 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 1, ExpiryDuration: "two days"}, http.StatusBadRequest},
		{"negative duration", 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 1, ExpiryDuration: "-1h"}, http.StatusBadRequest},
		{"duration above max", 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 1, ExpiryDuration: "200h"}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.uc.AddToCart(ctx, tt.userID, tt.in)
			requireStatus(t, err, tt.status)
		})
	}
	assert.Equal(t, int64(5), testutil.Stock(t, f.db, p.ID))
}

func TestCart_UpdateDecreaseReleasesSoonestExpiry(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, "Middlemarch", "6.00", 5)

	_, err := f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 1, ExpiryDuration: "72h"})
	require.NoError(t, err)
	_, err = f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 2, ExpiryDuration: "1h"})
	require.NoError(t, err)
	longest := f.clock.Now().Add(72 * time.Hour)

	out, err := f.uc.UpdateCartItem(ctx, 1, p.ID, usecase.UpdateCartItemInput{Quantity: 1})
	require.NoError(t, err)

	assert.Equal(t, int64(4), testutil.Stock(t, f.db, p.ID))
	require.Len(t, out.CartItems, 1)
	line := out.CartItems[0]
	assert.Equal(t, int64(1), line.Quantity)
	require.Len(t, line.ItemEntries, 1)
	assert.True(t, line.ItemEntries[0].ExpiresAt.Equal(longest))
	assert.True(t, decimal.RequireFromString("6.00").Equal(line.SubTotal))
	assertConserved(t, f.db, p.ID, 5)
}

func TestCart_UpdateIncreaseAndNoop(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, "Persuasion", "3.30", 4)

	_, err := f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	out, err := f.uc.UpdateCartItem(ctx, 1, p.ID, usecase.UpdateCartItemInput{Quantity: 3, ExpiryDuration: "2h"})
	require.NoError(t, err)
	assert.Equal(t, int64(3), out.TotalQuantity)
	assert.Equal(t, int64(1), testutil.Stock(t, f.db, p.ID))

	// 在庫を超える増加は失敗し、何も変わらない
	_, err = f.uc.UpdateCartItem(ctx, 1, p.ID, usecase.UpdateCartItemInput{Quantity: 5})
	requireStatus(t, err, http.StatusBadRequest)
	assert.Equal(t, int64(1), testutil.Stock(t, f.db, p.ID))

	same, err := f.uc.UpdateCartItem(ctx, 1, p.ID, usecase.UpdateCartItemInput{Quantity: 3})
	require.NoError(t, err)
	assert.Equal(t, out.TotalQuantity, same.TotalQuantity)
	assert.True(t, out.TotalPrice.Equal(same.TotalPrice))
	assertConserved(t, f.db, p.ID, 4)
}

func TestCart_UpdateErrors(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, "Walden", "5.00", 4)
	other := testutil.SeedProduct(t, f.db, "Howl", "5.00", 4)

	_, err := f.uc.UpdateCartItem(ctx, 1, p.ID, usecase.UpdateCartItemInput{Quantity: 1})
	requireStatus(t, err, http.StatusNotFound)

	_, err = f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	_, err = f.uc.UpdateCartItem(ctx, 1, other.ID, usecase.UpdateCartItemInput{Quantity: 1})
	requireStatus(t, err, http.StatusNotFound)

	_, err = f.uc.UpdateCartItem(ctx, 1, p.ID, usecase.UpdateCartItemInput{Quantity: 0})
	requireStatus(t, err, http.StatusBadRequest)
}

func TestCart_GetSweepsExpiredEntriesOnce(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, "Hamlet", "10.00", 5)

	_, err := f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 1, ExpiryDuration: "1h"})
	require.NoError(t, err)
	f.clock.Advance(90 * time.Minute)
	_, err = f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	require.Equal(t, int64(3), testutil.Stock(t, f.db, p.ID))

	// 1件目は1時間前に切れている
	f.clock.Advance(90 * time.Minute)

	first, err := f.uc.GetCart(ctx, 1)
	require.NoError(t, err)
	require.Len(t, first.CartItems, 1)
	assert.Equal(t, int64(1), first.CartItems[0].Quantity)
	require.Len(t, first.CartItems[0].ItemEntries, 1)
	assert.True(t, first.CartItems[0].ItemEntries[0].ExpiresAt.After(f.clock.Now()))
	assert.Equal(t, int64(4), testutil.Stock(t, f.db, p.ID))

	second, err := f.uc.GetCart(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, first.TotalQuantity, second.TotalQuantity)
	assert.True(t, first.TotalPrice.Equal(second.TotalPrice))
	assert.Equal(t, int64(4), testutil.Stock(t, f.db, p.ID))

	assert.Equal(t, []model.ReservationEventType{
		model.EventReserved, model.EventReserved, model.EventExpired,
	}, f.pub.Types())
	assertConserved(t, f.db, p.ID, 5)
}

func TestCart_GetDropsFullyExpiredLine(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	a := testutil.SeedProduct(t, f.db, "Ivanhoe", "1.00", 3)
	b := testutil.SeedProduct(t, f.db, "Kim", "2.00", 3)

	_, err := f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: a.ID, Quantity: 2, ExpiryDuration: "1h"})
	require.NoError(t, err)
	_, err = f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: b.ID, Quantity: 1, ExpiryDuration: "3h"})
	require.NoError(t, err)

	// 期限ちょうどは切れ扱い
	f.clock.Advance(time.Hour)

	out, err := f.uc.GetCart(ctx, 1)
	require.NoError(t, err)
	require.Len(t, out.CartItems, 1)
	assert.Equal(t, b.ID, out.CartItems[0].ProductID)
	assert.True(t, decimal.RequireFromString("2.00").Equal(out.TotalPrice))
	assert.Equal(t, int64(3), testutil.Stock(t, f.db, a.ID))

	var lines int64
	require.NoError(t, f.db.Model(&model.CartItem{}).Where("product_id = ?", a.ID).Count(&lines).Error)
	assert.Zero(t, lines)
}

func TestCart_GetWithoutCartDoesNotCreateOne(t *testing.T) {
	f := newCartFixture(t)

	out, err := f.uc.GetCart(context.Background(), 42)
	require.NoError(t, err)
	assert.True(t, out.IsEmpty())
	assert.True(t, out.TotalPrice.IsZero())

	var carts int64
	require.NoError(t, f.db.Model(&model.Cart{}).Count(&carts).Error)
	assert.Zero(t, carts)
}

func TestCart_RemoveReturnsLineQuantity(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, "Candide", "2.50", 6)
	keep := testutil.SeedProduct(t, f.db, "Zadig", "1.25", 6)

	_, err := f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 4})
	require.NoError(t, err)
	_, err = f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: keep.ID, Quantity: 2})
	require.NoError(t, err)

	out, err := f.uc.RemoveCartItem(ctx, 1, p.ID)
	require.NoError(t, err)

	assert.Equal(t, int64(6), testutil.Stock(t, f.db, p.ID))
	require.Len(t, out.CartItems, 1)
	assert.Equal(t, keep.ID, out.CartItems[0].ProductID)
	assert.True(t, decimal.RequireFromString("2.50").Equal(out.TotalPrice))
	assert.Equal(t, int64(2), out.TotalQuantity)
	assert.Zero(t, testutil.Reserved(t, f.db, p.ID))

	_, err = f.uc.RemoveCartItem(ctx, 1, p.ID)
	requireStatus(t, err, http.StatusNotFound)
	_, err = f.uc.RemoveCartItem(ctx, 2, p.ID)
	requireStatus(t, err, http.StatusNotFound)
}

func TestCart_RemoveCreditsSoftDeletedProduct(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, "Lost", "9.99", 3)

	_, err := f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 2})
	require.NoError(t, err)
	require.NoError(t, f.db.Delete(&model.Product{}, p.ID).Error)

	out, err := f.uc.GetCart(ctx, 1)
	require.NoError(t, err)
	require.Len(t, out.CartItems, 1)
	assert.Equal(t, "Lost", out.CartItems[0].Title)

	_, err = f.uc.RemoveCartItem(ctx, 1, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(3), testutil.Stock(t, f.db, p.ID))
}

func TestCart_ClearRestoresEverythingAndKeepsCart(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	a := testutil.SeedProduct(t, f.db, "Beowulf", "3.00", 5)
	b := testutil.SeedProduct(t, f.db, "Njals saga", "4.00", 5)

	_, err := f.uc.ClearCart(ctx, 1)
	requireStatus(t, err, http.StatusNotFound)

	_, err = f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: a.ID, Quantity: 2})
	require.NoError(t, err)
	_, err = f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: b.ID, Quantity: 3})
	require.NoError(t, err)

	out, err := f.uc.ClearCart(ctx, 1)
	require.NoError(t, err)
	assert.True(t, out.IsEmpty())
	assert.Equal(t, int64(0), out.TotalQuantity)

	assert.Equal(t, int64(5), testutil.Stock(t, f.db, a.ID))
	assert.Equal(t, int64(5), testutil.Stock(t, f.db, b.ID))

	var cart model.Cart
	require.NoError(t, f.db.Where("user_id = ?", 1).First(&cart).Error)
	assert.True(t, cart.TotalPrice.IsZero())
	assert.Zero(t, cart.TotalQuantity)

	// 空のカートへのクリアはエラーにしない
	_, err = f.uc.ClearCart(ctx, 1)
	require.NoError(t, err)
}

func TestCart_ConcurrentAddsOnLastUnit(t *testing.T) {
	f := newCartFixture(t)
	p := testutil.SeedProduct(t, f.db, "Last copy", "15.00", 1)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = f.uc.AddToCart(context.Background(), int64(i+1), usecase.AddCartInput{ProductID: p.ID, Quantity: 1})
		}(i)
	}
	wg.Wait()

	var ok, outOfStock int
	for _, err := range errs {
		if err == nil {
			ok++
			continue
		}
		he, isHTTP := usecase.AsHTTPError(err)
		if isHTTP && he.Status == http.StatusBadRequest {
			outOfStock++
		}
	}
	assert.Equal(t, 1, ok)
	assert.Equal(t, 1, outOfStock)
	assert.Equal(t, int64(0), testutil.Stock(t, f.db, p.ID))
	assertConserved(t, f.db, p.ID, 1)
}

func TestCart_AdjustmentsJournalEveryMovement(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, "Ledger", "1.00", 10)

	_, err := f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 4, ExpiryDuration: "1h"})
	require.NoError(t, err)
	_, err = f.uc.UpdateCartItem(ctx, 1, p.ID, usecase.UpdateCartItemInput{Quantity: 3})
	require.NoError(t, err)
	f.clock.Advance(2 * time.Hour)
	_, err = f.uc.GetCart(ctx, 1)
	require.NoError(t, err)

	adjs, err := infrarepo.NewInventoryGormRepository(f.db).ListAdjustments(ctx, p.ID)
	require.NoError(t, err)

	var sum int64
	reasons := make([]model.AdjustmentReason, 0, len(adjs))
	for _, a := range adjs {
		sum += a.Delta
		reasons = append(reasons, a.Reason)
	}
	assert.Equal(t, []model.AdjustmentReason{
		model.AdjustmentReasonReserve, model.AdjustmentReasonRelease, model.AdjustmentReasonExpire,
	}, reasons)
	assert.Equal(t, testutil.Stock(t, f.db, p.ID)-10, sum)
}

func TestCart_PublishFailureDoesNotFailOperation(t *testing.T) {
	f := newCartFixture(t)
	f.pub.err = errors.New("broker down")
	p := testutil.SeedProduct(t, f.db, "Offline", "1.00", 2)

	_, err := f.uc.AddToCart(context.Background(), 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)
	assert.Equal(t, int64(1), testutil.Stock(t, f.db, p.ID))
}

func TestCart_SweepExpiredAcrossCarts(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, "Abandoned", "2.00", 10)

	_, err := f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 2, ExpiryDuration: "1h"})
	require.NoError(t, err)
	_, err = f.uc.AddToCart(ctx, 2, usecase.AddCartInput{ProductID: p.ID, Quantity: 3, ExpiryDuration: "1h"})
	require.NoError(t, err)
	_, err = f.uc.AddToCart(ctx, 3, usecase.AddCartInput{ProductID: p.ID, Quantity: 1, ExpiryDuration: "5h"})
	require.NoError(t, err)

	f.clock.Advance(2 * time.Hour)

	res, err := f.uc.SweepExpired(ctx, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, usecase.SweepResult{Carts: 2, Units: 5, Scanned: 2, LastUserID: 2}, res)
	assert.Equal(t, int64(9), testutil.Stock(t, f.db, p.ID))

	again, err := f.uc.SweepExpired(ctx, 0, 100)
	require.NoError(t, err)
	assert.Equal(t, usecase.SweepResult{}, again)
	assertConserved(t, f.db, p.ID, 10)

	_, err = f.uc.SweepExpired(ctx, 0, 0)
	requireStatus(t, err, http.StatusBadRequest)
}

func TestCart_LargeQuantityRoundTrip(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, "Bulk", "1.00", 8000)

	out, err := f.uc.AddToCart(ctx, 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 7000})
	require.NoError(t, err)
	assert.Equal(t, int64(7000), out.TotalQuantity)
	assert.Equal(t, int64(1000), testutil.Stock(t, f.db, p.ID))
	assert.Equal(t, int64(7000), testutil.Reserved(t, f.db, p.ID))

	out, err = f.uc.UpdateCartItem(ctx, 1, p.ID, usecase.UpdateCartItemInput{Quantity: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(50), out.TotalQuantity)
	assert.Equal(t, int64(7950), testutil.Stock(t, f.db, p.ID))
	assertConserved(t, f.db, p.ID, 8000)

	_, err = f.uc.RemoveCartItem(ctx, 1, p.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(8000), testutil.Stock(t, f.db, p.ID))
	assert.Equal(t, int64(0), testutil.Reserved(t, f.db, p.ID))
}

type blockingPublisher struct {
	calls chan struct{}
}

// ctxが切れるまで返らない
func (p *blockingPublisher) Publish(ctx context.Context, events ...model.ReservationEvent) error {
	p.calls <- struct{}{}
	<-ctx.Done()
	return ctx.Err()
}

func TestCart_SlowPublisherDoesNotHoldRequest(t *testing.T) {
	gdb := testutil.NewDB(t)
	pub := &blockingPublisher{calls: make(chan struct{}, 4)}
	uc := usecase.NewCartUsecase(infrarepo.NewTxManagerGorm(gdb), pub, nil, usecase.CartConfig{
		DefaultTTL:     time.Hour,
		MaxTTL:         time.Hour,
		PublishTimeout: 50 * time.Millisecond,
	})
	p := testutil.SeedProduct(t, gdb, "Slow", "3.00", 2)

	start := time.Now()
	_, err := uc.AddToCart(context.Background(), 1, usecase.AddCartInput{ProductID: p.ID, Quantity: 1})
	require.NoError(t, err)

	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, pub.calls, 1)
	assert.Equal(t, int64(1), testutil.Stock(t, gdb, p.ID))
}

func TestCart_SweepExpiredResumesAfterCursor(t *testing.T) {
	f := newCartFixture(t)
	ctx := context.Background()
	p := testutil.SeedProduct(t, f.db, "Paged", "2.00", 10)

	for _, userID := range []int64{1, 2, 3} {
		_, err := f.uc.AddToCart(ctx, userID, usecase.AddCartInput{ProductID: p.ID, Quantity: 1, ExpiryDuration: "1h"})
		require.NoError(t, err)
	}
	f.clock.Advance(2 * time.Hour)

	first, err := f.uc.SweepExpired(ctx, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Scanned)
	assert.Equal(t, int64(2), first.LastUserID)

	second, err := f.uc.SweepExpired(ctx, first.LastUserID, 2)
	require.NoError(t, err)
	assert.Equal(t, usecase.SweepResult{Carts: 1, Units: 1, Scanned: 1, LastUserID: 3}, second)
	assert.Equal(t, int64(10), testutil.Stock(t, f.db, p.ID))
}
