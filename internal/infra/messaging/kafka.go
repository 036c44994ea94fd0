package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"bookstore/internal/domain/model"

	kafkaGo "github.com/segmentio/kafka-go"
)

type KafkaPublisher struct {
	w *kafkaGo.Writer
}

// 同じ商品のイベントは同じパーティションに入れる
func NewKafkaPublisher(brokers []string, topic string) *KafkaPublisher {
	return &KafkaPublisher{
		w: &kafkaGo.Writer{
			Addr:                   kafkaGo.TCP(brokers...),
			Topic:                  topic,
			Balancer:               &kafkaGo.Hash{},
			AllowAutoTopicCreation: true,
			// 1件ずつ送るのでバッチを待たない
			BatchTimeout: 10 * time.Millisecond,
			MaxAttempts:  3,
			WriteTimeout: 2 * time.Second,
			RequiredAcks: kafkaGo.RequireOne,
		},
	}
}

func (p *KafkaPublisher) Publish(ctx context.Context, events ...model.ReservationEvent) error {
	if len(events) == 0 {
		return nil
	}
	msgs, err := toMessages(events)
	if err != nil {
		return err
	}
	if err := p.w.WriteMessages(ctx, msgs...); err != nil {
		return fmt.Errorf("kafka write: %w", err)
	}
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.w.Close()
}

func toMessages(events []model.ReservationEvent) ([]kafkaGo.Message, error) {
	msgs := make([]kafkaGo.Message, 0, len(events))
	for _, ev := range events {
		payload, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal event: %w", err)
		}
		msgs = append(msgs, kafkaGo.Message{
			Key:   []byte(strconv.FormatInt(ev.ProductID, 10)),
			Value: payload,
			Headers: []kafkaGo.Header{
				{Key: "type", Value: []byte(ev.Type)},
			},
		})
	}
	return msgs, nil
}
