package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	defaultKeyPrefix = "mcp-client:session"
	DefaultRedisTTL  = 30 * time.Minute
)

// RedisStore keeps each session as a bounded Redis list of JSON exchanges.
type RedisStore struct {
	client goredis.UniversalClient
	prefix string
	ttl    time.Duration
	now    func() time.Time
}

// NewRedisStore returns a store using client. ttl is refreshed on every append.
func NewRedisStore(client goredis.UniversalClient, prefix string, ttl time.Duration) *RedisStore {
	if prefix == "" {
		prefix = defaultKeyPrefix
	}
	if ttl <= 0 {
		ttl = DefaultRedisTTL
	}
	return &RedisStore{client: client, prefix: prefix, ttl: ttl, now: time.Now}
}

func (s *RedisStore) listKey(sessionID string) string {
	return fmt.Sprintf("%s:%s:exchanges", s.prefix, sessionID)
}

func (s *RedisStore) metaKey(sessionID string) string {
	return fmt.Sprintf("%s:%s:meta", s.prefix, sessionID)
}

func (s *RedisStore) Context(ctx context.Context, sessionID string) ([]Exchange, error) {
	if err := validateSession(sessionID); err != nil {
		return nil, err
	}
	raw, err := s.client.LRange(ctx, s.listKey(sessionID), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("read session %s: %w", sessionID, err)
	}
	out := make([]Exchange, 0, len(raw))
	for _, item := range raw {
		var ex Exchange
		if err := json.Unmarshal([]byte(item), &ex); err != nil {
			return nil, fmt.Errorf("decode exchange: %w", err)
		}
		out = append(out, ex)
	}
	return out, nil
}

func (s *RedisStore) Append(ctx context.Context, sessionID string, exchange Exchange) error {
	if err := validateSession(sessionID); err != nil {
		return err
	}
	now := s.now().UTC()
	if exchange.Timestamp.IsZero() {
		exchange.Timestamp = now
	}
	data, err := json.Marshal(exchange)
	if err != nil {
		return fmt.Errorf("encode exchange: %w", err)
	}
	list := s.listKey(sessionID)
	meta := s.metaKey(sessionID)
	stamp := now.Format(time.RFC3339Nano)
	_, err = s.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.RPush(ctx, list, data)
		pipe.LTrim(ctx, list, -MaxExchanges, -1)
		pipe.Expire(ctx, list, s.ttl)
		pipe.HSetNX(ctx, meta, "created", stamp)
		pipe.HSet(ctx, meta, "updated", stamp)
		pipe.Expire(ctx, meta, s.ttl)
		return nil
	})
	if err != nil {
		return fmt.Errorf("append session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.listKey(sessionID), s.metaKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear session %s: %w", sessionID, err)
	}
	return nil
}

func (s *RedisStore) Stats(ctx context.Context, sessionID string) (Stats, error) {
	stats := Stats{MaxExchanges: MaxExchanges}
	n, err := s.client.LLen(ctx, s.listKey(sessionID)).Result()
	if err != nil {
		return stats, fmt.Errorf("stat session %s: %w", sessionID, err)
	}
	stats.ExchangesStored = int(n)
	meta, err := s.client.HGetAll(ctx, s.metaKey(sessionID)).Result()
	if err != nil {
		return stats, fmt.Errorf("stat session %s: %w", sessionID, err)
	}
	stats.CreatedAt, _ = time.Parse(time.RFC3339Nano, meta["created"])
	stats.UpdatedAt, _ = time.Parse(time.RFC3339Nano, meta["updated"])
	return stats, nil
}
