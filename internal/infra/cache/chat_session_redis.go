// Package cache はRedisに置くデータを扱う。
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"bookstore/internal/domain/model"

	"github.com/redis/go-redis/v9"
)

const (
	sessionKeyPrefix = "chat:session:"
	sessionIndexKey  = "chat:sessions" // member=userID:sessionID, score=最終アクセス
)

type ChatSessionConfig struct {
	TTL          time.Duration // 最終アクセスからの有効期限
	HistoryLimit int           // 1セッションで残すメッセージ数
	MaxSessions  int           // 全体のセッション数上限
}

// 会話履歴をRedisに保存する
// 上限を超えたら最後に使われたのが最も古いセッションから消す（LRU）
type ChatSessionRedisStore struct {
	rdb *redis.Client
	cfg ChatSessionConfig
	now func() time.Time
}

func NewChatSessionRedisStore(rdb *redis.Client, cfg ChatSessionConfig) *ChatSessionRedisStore {
	if cfg.TTL <= 0 {
		cfg.TTL = 24 * time.Hour
	}
	if cfg.HistoryLimit < 1 {
		cfg.HistoryLimit = 20
	}
	if cfg.MaxSessions < 1 {
		cfg.MaxSessions = 100
	}
	return &ChatSessionRedisStore{rdb: rdb, cfg: cfg, now: time.Now}
}

func member(userID int64, sessionID string) string {
	return fmt.Sprintf("%d:%s", userID, sessionID)
}

func sessionKey(m string) string {
	return sessionKeyPrefix + m
}

func (s *ChatSessionRedisStore) Append(ctx context.Context, userID int64, sessionID string, msgs ...model.ChatMessage) error {
	if len(msgs) == 0 {
		return nil
	}

	values := make([]interface{}, 0, len(msgs))
	for _, m := range msgs {
		b, err := json.Marshal(m)
		if err != nil {
			return fmt.Errorf("marshal chat message: %w", err)
		}
		values = append(values, b)
	}

	mem := member(userID, sessionID)
	key := sessionKey(mem)
	limit := int64(s.cfg.HistoryLimit)

	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.RPush(ctx, key, values...)
		p.LTrim(ctx, key, -limit, -1)
		p.Expire(ctx, key, s.cfg.TTL)
		p.ZAdd(ctx, sessionIndexKey, redis.Z{Score: s.score(), Member: mem})
		return nil
	})
	if err != nil {
		return fmt.Errorf("append chat history: %w", err)
	}

	return s.evict(ctx)
}

func (s *ChatSessionRedisStore) History(ctx context.Context, userID int64, sessionID string) ([]model.ChatMessage, error) {
	mem := member(userID, sessionID)
	key := sessionKey(mem)

	raw, err := s.rdb.LRange(ctx, key, 0, -1).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("read chat history: %w", err)
	}
	if len(raw) == 0 {
		// TTLで消えたものは索引からも外す
		if err := s.rdb.ZRem(ctx, sessionIndexKey, mem).Err(); err != nil {
			return nil, fmt.Errorf("drop expired chat session: %w", err)
		}
		return []model.ChatMessage{}, nil
	}

	out := make([]model.ChatMessage, 0, len(raw))
	for _, r := range raw {
		var m model.ChatMessage
		if err := json.Unmarshal([]byte(r), &m); err != nil {
			return nil, fmt.Errorf("decode chat message: %w", err)
		}
		out = append(out, m)
	}

	// 読んだら最終アクセスを更新
	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Expire(ctx, key, s.cfg.TTL)
		p.ZAdd(ctx, sessionIndexKey, redis.Z{Score: s.score(), Member: mem})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("touch chat session: %w", err)
	}
	return out, nil
}

func (s *ChatSessionRedisStore) Delete(ctx context.Context, userID int64, sessionID string) error {
	mem := member(userID, sessionID)
	_, err := s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, sessionKey(mem))
		p.ZRem(ctx, sessionIndexKey, mem)
		return nil
	})
	if err != nil {
		return fmt.Errorf("delete chat session: %w", err)
	}
	return nil
}

// 上限を超えた分を古い順に消す
func (s *ChatSessionRedisStore) evict(ctx context.Context) error {
	n, err := s.rdb.ZCard(ctx, sessionIndexKey).Result()
	if err != nil {
		return fmt.Errorf("count chat sessions: %w", err)
	}
	over := n - int64(s.cfg.MaxSessions)
	if over <= 0 {
		return nil
	}

	victims, err := s.rdb.ZRange(ctx, sessionIndexKey, 0, over-1).Result()
	if err != nil {
		return fmt.Errorf("list chat sessions: %w", err)
	}

	keys := make([]string, 0, len(victims))
	members := make([]interface{}, 0, len(victims))
	for _, v := range victims {
		keys = append(keys, sessionKey(v))
		members = append(members, v)
	}

	_, err = s.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, keys...)
		p.ZRem(ctx, sessionIndexKey, members...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("evict chat sessions: %w", err)
	}
	return nil
}

func (s *ChatSessionRedisStore) score() float64 {
	return float64(s.now().UnixMicro())
}

// 現在のセッション数
func (s *ChatSessionRedisStore) Count(ctx context.Context) (int64, error) {
	return s.rdb.ZCard(ctx, sessionIndexKey).Result()
}
