package pending

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/zhouzirui/ticket-assistant/backend/internal/model/chat"
	"github.com/zhouzirui/ticket-assistant/backend/internal/ports"
)

const defaultPrefix = "assistant:pending"

// RedisStore keeps pending navigations as JSON blobs keyed by session.
// Keys are "{prefix}:{sessionID}".
type RedisStore struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// RedisStoreConfig configures the Redis store.
type RedisStoreConfig struct {
	Prefix string        // key prefix, default "assistant:pending"
	TTL    time.Duration // 0 = no expiry
}

// NewRedisStore creates a store on an existing client.
func NewRedisStore(client redis.UniversalClient, cfg RedisStoreConfig) *RedisStore {
	if cfg.Prefix == "" {
		cfg.Prefix = defaultPrefix
	}
	return &RedisStore{client: client, prefix: cfg.Prefix, ttl: cfg.TTL}
}

func (s *RedisStore) key(sessionID string) string {
	return fmt.Sprintf("%s:%s", s.prefix, sessionID)
}

func (s *RedisStore) Set(ctx context.Context, sessionID string, nav chat.NavigatePayload) error {
	blob, err := json.Marshal(nav)
	if err != nil {
		return fmt.Errorf("encode pending navigation: %w", err)
	}
	if err := s.client.Set(ctx, s.key(sessionID), blob, s.ttl).Err(); err != nil {
		return fmt.Errorf("store pending navigation: %w", err)
	}
	return nil
}

func (s *RedisStore) Get(ctx context.Context, sessionID string) (chat.NavigatePayload, bool, error) {
	return s.decode(s.client.Get(ctx, s.key(sessionID)).Bytes())
}

// Consume reads and deletes the slot in one round trip.
func (s *RedisStore) Consume(ctx context.Context, sessionID string) (chat.NavigatePayload, bool, error) {
	return s.decode(s.client.GetDel(ctx, s.key(sessionID)).Bytes())
}

func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("clear pending navigation: %w", err)
	}
	return nil
}

func (s *RedisStore) decode(blob []byte, err error) (chat.NavigatePayload, bool, error) {
	if errors.Is(err, redis.Nil) {
		return chat.NavigatePayload{}, false, nil
	}
	if err != nil {
		return chat.NavigatePayload{}, false, fmt.Errorf("read pending navigation: %w", err)
	}

	var nav chat.NavigatePayload
	if err := json.Unmarshal(blob, &nav); err != nil {
		return chat.NavigatePayload{}, false, fmt.Errorf("decode pending navigation: %w", err)
	}
	return nav, true, nil
}

// Close releases the underlying client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}

var _ ports.PendingStore = (*RedisStore)(nil)
