package messaging

import (
	"context"
	"log/slog"

	"bookstore/internal/domain/model"
)

// ブローカーが無い環境用。ログに出すだけ
type LogPublisher struct {
	logger *slog.Logger
}

func NewLogPublisher(logger *slog.Logger) *LogPublisher {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogPublisher{logger: logger}
}

func (p *LogPublisher) Publish(ctx context.Context, events ...model.ReservationEvent) error {
	for _, ev := range events {
		p.logger.InfoContext(ctx, "reservation event",
			"id", ev.ID,
			"type", ev.Type,
			"user_id", ev.UserID,
			"product_id", ev.ProductID,
			"quantity", ev.Quantity,
		)
	}
	return nil
}

func (p *LogPublisher) Close() error { return nil }

// 設定に応じて選ぶ
func New(brokers []string, topic string, logger *slog.Logger) Publisher {
	if len(brokers) == 0 {
		return NewLogPublisher(logger)
	}
	return NewKafkaPublisher(brokers, topic)
}
