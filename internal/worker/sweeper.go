// Package worker は放置されたカートの予約を定期的に回収する。
package worker

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"bookstore/internal/usecase"
)

type ExpirySweeper interface {
	SweepExpired(ctx context.Context, afterUserID int64, limit int) (usecase.SweepResult, error)
}

type Sweeper struct {
	cart     ExpirySweeper
	interval time.Duration
	batch    int
	logger   *slog.Logger
}

func NewSweeper(cart ExpirySweeper, interval time.Duration, batch int, logger *slog.Logger) *Sweeper {
	if logger == nil {
		logger = slog.Default()
	}
	if batch < 1 {
		batch = 100
	}
	return &Sweeper{cart: cart, interval: interval, batch: batch, logger: logger}
}

// Run はctxが終わるまでintervalごとに回収する。interval<=0なら何もしない
func (s *Sweeper) Run(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	s.logger.Info("cart sweeper started", "interval", s.interval, "batch", s.batch)
	for {
		select {
		case <-ctx.Done():
			s.logger.Info("cart sweeper stopped")
			return
		case <-ticker.C:
			//失敗はRunOnce内でログ済み。次のtickでまた拾う
			_, _ = s.RunOnce(ctx)
		}
	}
}

// ユーザーID順に全カートを1周する。失敗したカートは飛ばして次へ進み、
// 最後にまとめてエラーを返す
func (s *Sweeper) RunOnce(ctx context.Context) (usecase.SweepResult, error) {
	var (
		total usecase.SweepResult
		after int64
		errs  []error
	)
	for {
		res, err := s.cart.SweepExpired(ctx, after, s.batch)
		total.Carts += res.Carts
		total.Units += res.Units
		if err != nil {
			s.logger.Error("cart sweep failed", "after_user_id", after, "err", err)
			errs = append(errs, err)
		}
		if res.Scanned < s.batch || res.LastUserID <= after || ctx.Err() != nil {
			break
		}
		after = res.LastUserID
	}

	if total.Carts > 0 {
		s.logger.Info("expired reservations released", "carts", total.Carts, "units", total.Units)
	}
	return total, errors.Join(errs...)
}
