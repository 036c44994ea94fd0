package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"time"

	"bookstore/internal/domain/model"
	"bookstore/internal/domain/reservation"
	repo "bookstore/internal/repository"

	"github.com/shopspring/decimal"
)

// 現在時刻（テストで差し替える）
type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// 予約イベントの送り先
type EventPublisher interface {
	Publish(ctx context.Context, events ...model.ReservationEvent) error
}

type CartConfig struct {
	DefaultTTL     time.Duration // expiryDuration省略時
	MaxTTL         time.Duration
	PublishTimeout time.Duration // コミット後のイベント送信を待つ上限
}

const defaultPublishTimeout = 2 * time.Second

// CartUsecase は /cart の業務ロジック（在庫の予約と期限切れの回収）。
// 1操作 = 1トランザクション。カート行をロックしてから在庫を動かす。
type CartUsecase struct {
	tx     repo.TransactionManager
	events EventPublisher
	logger *slog.Logger
	clock  Clock
	cfg    CartConfig
}

func NewCartUsecase(tx repo.TransactionManager, events EventPublisher, logger *slog.Logger, cfg CartConfig) *CartUsecase {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.DefaultTTL <= 0 {
		cfg.DefaultTTL = 48 * time.Hour
	}
	if cfg.MaxTTL < cfg.DefaultTTL {
		cfg.MaxTTL = cfg.DefaultTTL
	}
	if cfg.PublishTimeout <= 0 {
		cfg.PublishTimeout = defaultPublishTimeout
	}
	return &CartUsecase{
		tx:     tx,
		events: events,
		logger: logger,
		clock:  ClockFunc(time.Now),
		cfg:    cfg,
	}
}

func (u *CartUsecase) SetClock(c Clock) {
	u.clock = c
}

type AddCartInput struct {
	ProductID      int64
	Quantity       int64
	ExpiryDuration string // "30m", "48h"。空ならデフォルト
}

type UpdateCartItemInput struct {
	Quantity       int64
	ExpiryDuration string
}

type CartEntryOutput struct {
	ProductID int64     `json:"productId"`
	AddedAt   time.Time `json:"addedAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// 表示用に商品情報を平らにした明細
type CartItemOutput struct {
	ProductID   int64             `json:"productId"`
	Title       string            `json:"title"`
	Author      string            `json:"author"`
	Image       string            `json:"image"`
	Price       decimal.Decimal   `json:"price"`
	Quantity    int64             `json:"quantity"`
	SubTotal    decimal.Decimal   `json:"subTotal"`
	ItemEntries []CartEntryOutput `json:"itemEntries"`
}

type CartOutput struct {
	CartItems     []CartItemOutput `json:"cartItems"`
	TotalPrice    decimal.Decimal  `json:"totalPrice"`
	TotalQuantity int64            `json:"totalQuantity"`
}

func (o CartOutput) IsEmpty() bool {
	return len(o.CartItems) == 0
}

func emptyCart() CartOutput {
	return CartOutput{CartItems: []CartItemOutput{}, TotalPrice: decimal.Zero}
}

type SweepResult struct {
	Carts int   `json:"carts"`
	Units int64 `json:"units"`
	// 次のバッチはLastUserIDより後から。Scanned < limit なら最後まで見た
	Scanned    int   `json:"-"`
	LastUserID int64 `json:"-"`
}

// AddToCart は在庫を減らしてカートにエントリを追加する。
func (u *CartUsecase) AddToCart(ctx context.Context, userID int64, in AddCartInput) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, errUnauthorized
	}
	if in.ProductID <= 0 {
		return CartOutput{}, errInvalidProductID
	}
	if in.Quantity < 1 {
		return CartOutput{}, errInvalidQuantity
	}
	ttl, err := u.resolveTTL(in.ExpiryDuration)
	if err != nil {
		return CartOutput{}, err
	}

	now := u.clock.Now().UTC()
	var out CartOutput
	var events []model.ReservationEvent

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().GetOrCreateForUpdate(ctx, userID)
		if err != nil {
			return u.dbError(ctx, "lock cart", err)
		}
		if err := u.loadLines(ctx, r, &cart); err != nil {
			return err
		}

		//公開中の商品のみ
		p, err := r.Products().FindByID(ctx, in.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return errProductNotFound
		}
		if err != nil {
			return u.dbError(ctx, "find product", err)
		}
		if !p.IsActive {
			return errProductNotFound
		}

		if err := u.debit(ctx, r, userID, p.ID, in.Quantity); err != nil {
			return err
		}

		line, ok := cart.Line(p.ID)
		if !ok {
			// 価格は最初に追加した時点のもの
			created, err := r.CartItems().Create(ctx, model.CartItem{
				CartID:            cart.ID,
				ProductID:         p.ID,
				Quantity:          in.Quantity,
				UnitPriceSnapshot: p.Price,
				SubTotal:          p.Price.Mul(decimal.NewFromInt(in.Quantity)),
			})
			if err != nil {
				return u.dbError(ctx, "create cart item", err)
			}
			created.Quantity = 0
			cart.Items = append(cart.Items, created)
			sortLines(cart.Items)
			line, _ = cart.Line(p.ID)
		}

		if err := u.reserve(ctx, r, line, in.Quantity, now, ttl); err != nil {
			return err
		}
		if err := u.persist(ctx, r, &cart); err != nil {
			return err
		}
		events = append(events, model.NewReservationEvent(model.EventReserved, userID, p.ID, in.Quantity, now))

		out, err = u.snapshot(ctx, r, cart)
		return err
	})
	if err != nil {
		return CartOutput{}, err
	}

	u.publish(ctx, events)
	return out, nil
}

// GetCart は期限切れを回収してからカートを返す。
// カートが無ければ作らずに空を返す。
func (u *CartUsecase) GetCart(ctx context.Context, userID int64) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, errUnauthorized
	}

	now := u.clock.Now().UTC()
	out := emptyCart()
	var events []model.ReservationEvent

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := r.Carts().FindForUpdate(ctx, userID)
		if errors.Is(err, repo.ErrNotFound) {
			return nil
		}
		if err != nil {
			return u.dbError(ctx, "lock cart", err)
		}
		if err := u.loadLines(ctx, r, &cart); err != nil {
			return err
		}

		expired, err := u.sweep(ctx, r, &cart, now)
		if err != nil {
			return err
		}
		// 変化が無ければ読んだまま返す
		if len(expired) > 0 {
			if err := u.persist(ctx, r, &cart); err != nil {
				return err
			}
			events = expired
		}

		out, err = u.snapshot(ctx, r, cart)
		return err
	})
	if err != nil {
		return CartOutput{}, err
	}

	u.publish(ctx, events)
	return out, nil
}

// UpdateCartItem は明細の数量を newQuantity に合わせる。
// 増やす分は在庫から取り、減らす分は期限が近いエントリから戻す。
func (u *CartUsecase) UpdateCartItem(ctx context.Context, userID int64, productID int64, in UpdateCartItemInput) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, errUnauthorized
	}
	if productID <= 0 {
		return CartOutput{}, errInvalidProductID
	}
	if in.Quantity < 1 {
		return CartOutput{}, errInvalidQuantity
	}
	ttl, err := u.resolveTTL(in.ExpiryDuration)
	if err != nil {
		return CartOutput{}, err
	}

	now := u.clock.Now().UTC()
	var out CartOutput
	var events []model.ReservationEvent

	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := u.lockExisting(ctx, r, userID)
		if err != nil {
			return err
		}

		line, ok := cart.Line(productID)
		if !ok {
			return errItemNotFound
		}

		diff := in.Quantity - line.Quantity
		switch {
		case diff > 0:
			p, err := r.Products().FindByID(ctx, productID)
			if errors.Is(err, repo.ErrNotFound) {
				return errProductNotFound
			}
			if err != nil {
				return u.dbError(ctx, "find product", err)
			}
			if !p.IsActive {
				return errProductNotFound
			}
			if err := u.debit(ctx, r, userID, productID, diff); err != nil {
				return err
			}
			if err := u.reserve(ctx, r, line, diff, now, ttl); err != nil {
				return err
			}
			events = append(events, model.NewReservationEvent(model.EventReserved, userID, productID, diff, now))

		case diff < 0:
			removed := reservation.Release(line, -diff)
			if err := r.CartItems().DeleteEntries(ctx, entryIDs(removed)); err != nil {
				return u.repoError(ctx, "delete entries", err)
			}
			if err := u.credit(ctx, r, userID, productID, -diff, model.AdjustmentReasonRelease); err != nil {
				return err
			}
			events = append(events, model.NewReservationEvent(model.EventReleased, userID, productID, -diff, now))

		default:
			out, err = u.snapshot(ctx, r, cart)
			return err
		}

		if err := u.persist(ctx, r, &cart); err != nil {
			return err
		}
		out, err = u.snapshot(ctx, r, cart)
		return err
	})
	if err != nil {
		return CartOutput{}, err
	}

	u.publish(ctx, events)
	return out, nil
}

// RemoveCartItem は明細の数量ぶんを在庫に戻して明細を消す。
func (u *CartUsecase) RemoveCartItem(ctx context.Context, userID int64, productID int64) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, errUnauthorized
	}
	if productID <= 0 {
		return CartOutput{}, errInvalidProductID
	}

	now := u.clock.Now().UTC()
	var out CartOutput
	var events []model.ReservationEvent

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := u.lockExisting(ctx, r, userID)
		if err != nil {
			return err
		}

		line, ok := cart.Line(productID)
		if !ok {
			return errItemNotFound
		}

		qty := line.Quantity
		if err := u.credit(ctx, r, userID, productID, qty, model.AdjustmentReasonRelease); err != nil {
			return err
		}
		// 数量0の明細はpersistでエントリごと消える
		line.Entries = nil
		line.Quantity = 0

		if err := u.persist(ctx, r, &cart); err != nil {
			return err
		}
		events = append(events, model.NewReservationEvent(model.EventReleased, userID, productID, qty, now))

		out, err = u.snapshot(ctx, r, cart)
		return err
	})
	if err != nil {
		return CartOutput{}, err
	}

	u.publish(ctx, events)
	return out, nil
}

// ClearCart は全明細を在庫に戻して空にする。カート自体は残す。
func (u *CartUsecase) ClearCart(ctx context.Context, userID int64) (CartOutput, error) {
	if userID <= 0 {
		return CartOutput{}, errUnauthorized
	}

	now := u.clock.Now().UTC()
	var events []model.ReservationEvent

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		cart, err := u.lockExisting(ctx, r, userID)
		if err != nil {
			return err
		}

		// 明細はproduct_id順
		for _, line := range cart.Items {
			if line.Quantity == 0 {
				continue
			}
			if err := u.credit(ctx, r, userID, line.ProductID, line.Quantity, model.AdjustmentReasonClear); err != nil {
				return err
			}
			events = append(events, model.NewReservationEvent(model.EventCleared, userID, line.ProductID, line.Quantity, now))
		}

		if err := r.CartItems().DeleteByCartID(ctx, cart.ID); err != nil {
			return u.dbError(ctx, "clear cart items", err)
		}
		cart.Items = nil
		reservation.Recalculate(&cart)
		if err := r.Carts().SaveTotals(ctx, cart); err != nil {
			return u.dbError(ctx, "save cart totals", err)
		}
		return nil
	})
	if err != nil {
		return CartOutput{}, err
	}

	u.publish(ctx, events)
	return emptyCart(), nil
}

// SweepExpired は afterUserID より後のユーザーで期限切れエントリを持つカートを
// 最大limit件回収する。定期実行とCLIから呼ぶ。1カート1トランザクション。
func (u *CartUsecase) SweepExpired(ctx context.Context, afterUserID int64, limit int) (SweepResult, error) {
	if limit < 1 {
		return SweepResult{}, NewHTTPError(http.StatusBadRequest, "limit must be >= 1")
	}

	now := u.clock.Now().UTC()
	var userIDs []int64
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		ids, err := r.Carts().ListUserIDsWithExpired(ctx, now, afterUserID, limit)
		if err != nil {
			return u.dbError(ctx, "list expired carts", err)
		}
		userIDs = ids
		return nil
	})
	if err != nil {
		return SweepResult{}, err
	}

	res := SweepResult{Scanned: len(userIDs), LastUserID: afterUserID}
	if len(userIDs) > 0 {
		res.LastUserID = userIDs[len(userIDs)-1]
	}
	var errs []error
	for _, userID := range userIDs {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}

		var events []model.ReservationEvent
		err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
			cart, err := r.Carts().FindForUpdate(ctx, userID)
			if errors.Is(err, repo.ErrNotFound) {
				return nil
			}
			if err != nil {
				return u.dbError(ctx, "lock cart", err)
			}
			if err := u.loadLines(ctx, r, &cart); err != nil {
				return err
			}
			expired, err := u.sweep(ctx, r, &cart, now)
			if err != nil || len(expired) == 0 {
				return err
			}
			events = expired
			return u.persist(ctx, r, &cart)
		})
		if err != nil {
			u.logger.ErrorContext(ctx, "sweep cart failed", "user_id", userID, "err", err)
			errs = append(errs, err)
			continue
		}
		if len(events) == 0 {
			continue
		}

		res.Carts++
		for _, ev := range events {
			res.Units += ev.Quantity
		}
		u.publish(ctx, events)
	}

	return res, errors.Join(errs...)
}

func (u *CartUsecase) resolveTTL(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return u.cfg.DefaultTTL, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil || d <= 0 || d > u.cfg.MaxTTL {
		return 0, errInvalidExpiry
	}
	return d, nil
}

// 既存カートを行ロックして明細まで読む
func (u *CartUsecase) lockExisting(ctx context.Context, r repo.TxRepos, userID int64) (model.Cart, error) {
	cart, err := r.Carts().FindForUpdate(ctx, userID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Cart{}, errCartNotFound
	}
	if err != nil {
		return model.Cart{}, u.dbError(ctx, "lock cart", err)
	}
	if err := u.loadLines(ctx, r, &cart); err != nil {
		return model.Cart{}, err
	}
	return cart, nil
}

func (u *CartUsecase) loadLines(ctx context.Context, r repo.TxRepos, cart *model.Cart) error {
	items, err := r.CartItems().ListByCartID(ctx, cart.ID)
	if err != nil {
		return u.dbError(ctx, "list cart items", err)
	}
	cart.Items = items

	if err := reservation.Check(*cart); err != nil {
		u.logger.ErrorContext(ctx, "stored cart is inconsistent", "cart_id", cart.ID, "err", err)
		return errInvariant
	}
	return nil
}

// エントリを作ってIDを詰め直す
func (u *CartUsecase) reserve(ctx context.Context, r repo.TxRepos, line *model.CartItem, qty int64, now time.Time, ttl time.Duration) error {
	added := reservation.Reserve(line, qty, now, ttl)
	saved, err := r.CartItems().CreateEntries(ctx, added)
	if err != nil {
		return u.dbError(ctx, "create entries", err)
	}
	copy(line.Entries[len(line.Entries)-len(saved):], saved)
	return nil
}

// 期限切れを外して在庫に戻す。明細はproduct_id順なので商品の更新順も揃う
func (u *CartUsecase) sweep(ctx context.Context, r repo.TxRepos, cart *model.Cart, now time.Time) ([]model.ReservationEvent, error) {
	var events []model.ReservationEvent

	for i := range cart.Items {
		line := &cart.Items[i]
		expired := reservation.Sweep(line, now)
		if len(expired) == 0 {
			continue
		}

		if err := r.CartItems().DeleteEntries(ctx, entryIDs(expired)); err != nil {
			return nil, u.repoError(ctx, "delete expired entries", err)
		}
		n := int64(len(expired))
		if err := u.credit(ctx, r, cart.UserID, line.ProductID, n, model.AdjustmentReasonExpire); err != nil {
			return nil, err
		}
		events = append(events, model.NewReservationEvent(model.EventExpired, cart.UserID, line.ProductID, n, now))
	}
	return events, nil
}

// 在庫を減らす。足りなければOutOfStock
func (u *CartUsecase) debit(ctx context.Context, r repo.TxRepos, userID, productID, qty int64) error {
	ok, err := r.Inventory().DecreaseStockIfEnough(ctx, productID, qty)
	if err != nil {
		return u.dbError(ctx, "decrease stock", err)
	}
	if !ok {
		return errOutOfStock
	}
	return u.journal(ctx, r, userID, productID, -qty, model.AdjustmentReasonReserve)
}

// 在庫を戻す。戻した後にマイナスなら不整合として失敗させる
func (u *CartUsecase) credit(ctx context.Context, r repo.TxRepos, userID, productID, qty int64, reason model.AdjustmentReason) error {
	if qty <= 0 {
		return nil
	}
	stock, err := r.Inventory().IncreaseStock(ctx, productID, qty)
	if err != nil {
		return u.dbError(ctx, "increase stock", err)
	}
	if stock < 0 {
		u.logger.ErrorContext(ctx, "negative stock observed",
			"product_id", productID, "stock", stock, "user_id", userID, "reason", reason)
		return errInvariant
	}
	return u.journal(ctx, r, userID, productID, qty, reason)
}

func (u *CartUsecase) journal(ctx context.Context, r repo.TxRepos, userID, productID, delta int64, reason model.AdjustmentReason) error {
	err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
		ProductID:   productID,
		ActorUserID: userID,
		Delta:       delta,
		Reason:      reason,
	})
	if err != nil {
		return u.dbError(ctx, "create adjustment", err)
	}
	return nil
}

// 空の明細を消して合計を計算し直し、保存する
func (u *CartUsecase) persist(ctx context.Context, r repo.TxRepos, cart *model.Cart) error {
	for _, dropped := range reservation.DropEmpty(cart) {
		if err := r.CartItems().DeleteByID(ctx, dropped.ID); err != nil {
			return u.dbError(ctx, "delete cart item", err)
		}
	}

	reservation.Recalculate(cart)
	if err := reservation.Check(*cart); err != nil {
		u.logger.ErrorContext(ctx, "cart invariant violated", "cart_id", cart.ID, "err", err)
		return errInvariant
	}

	for _, line := range cart.Items {
		if err := r.CartItems().UpdateQuantity(ctx, line); err != nil {
			return u.dbError(ctx, "update cart item", err)
		}
	}
	if err := r.Carts().SaveTotals(ctx, *cart); err != nil {
		return u.dbError(ctx, "save cart totals", err)
	}
	return nil
}

// 商品の表示情報を付けて返す（削除済み商品も表示する）
func (u *CartUsecase) snapshot(ctx context.Context, r repo.TxRepos, cart model.Cart) (CartOutput, error) {
	ids := make([]int64, 0, len(cart.Items))
	for _, line := range cart.Items {
		ids = append(ids, line.ProductID)
	}
	products, err := r.Products().FindByIDs(ctx, ids)
	if err != nil {
		return CartOutput{}, u.dbError(ctx, "find products", err)
	}

	out := CartOutput{
		CartItems:     make([]CartItemOutput, 0, len(cart.Items)),
		TotalPrice:    cart.TotalPrice,
		TotalQuantity: cart.TotalQuantity,
	}
	for _, line := range cart.Items {
		p := products[line.ProductID]
		entries := make([]CartEntryOutput, 0, len(line.Entries))
		for _, e := range line.Entries {
			entries = append(entries, CartEntryOutput{
				ProductID: e.ProductID,
				AddedAt:   e.AddedAt,
				ExpiresAt: e.ExpiresAt,
			})
		}
		out.CartItems = append(out.CartItems, CartItemOutput{
			ProductID:   line.ProductID,
			Title:       p.Title,
			Author:      p.Author,
			Image:       p.ImageCover,
			Price:       line.UnitPriceSnapshot,
			Quantity:    line.Quantity,
			SubTotal:    line.SubTotal,
			ItemEntries: entries,
		})
	}
	return out, nil
}

func (u *CartUsecase) publish(ctx context.Context, events []model.ReservationEvent) {
	if u.events == nil || len(events) == 0 {
		return
	}
	//コミット済みなので失敗してもログだけ。待つのはPublishTimeoutまで
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), u.cfg.PublishTimeout)
	defer cancel()
	if err := u.events.Publish(pctx, events...); err != nil {
		u.logger.WarnContext(ctx, "publish reservation events failed", "count", len(events), "err", err)
	}
}

func (u *CartUsecase) dbError(ctx context.Context, op string, err error) error {
	u.logger.ErrorContext(ctx, "cart db error", "op", op, "err", err)
	return errDB
}

// 件数ずれは同時更新とみなす
func (u *CartUsecase) repoError(ctx context.Context, op string, err error) error {
	if errors.Is(err, repo.ErrConflict) {
		return errCartConflict
	}
	return u.dbError(ctx, op, err)
}

func entryIDs(entries []model.CartItemEntry) []int64 {
	ids := make([]int64, 0, len(entries))
	for _, e := range entries {
		ids = append(ids, e.ID)
	}
	return ids
}

func sortLines(items []model.CartItem) {
	sort.Slice(items, func(i, j int) bool {
		return items[i].ProductID < items[j].ProductID
	})
}
