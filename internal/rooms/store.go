package rooms

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

const roomKeyPrefix = "room:"

// Store is the persistence contract for room identities. Rooms have no
// attributes beyond existence.
type Store interface {
	Create(ctx context.Context, roomID string) error
	Exists(ctx context.Context, roomID string) (bool, error)
	Ready(ctx context.Context) bool
}

// RedisStore keeps room identities as plain existence keys in Redis.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a store from a redis:// URL. The connection is not
// verified here; call Ping before serving traffic.
func NewRedisStore(url string) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	return &RedisStore{client: redis.NewClient(opts)}, nil
}

// Ping verifies connectivity to Redis.
func (s *RedisStore) Ping(ctx context.Context) error {
	if err := s.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("ping redis: %w", err)
	}
	return nil
}

// Create records a room id. Existing rooms are overwritten, which is
// harmless: the value carries no state.
func (s *RedisStore) Create(ctx context.Context, roomID string) error {
	return s.client.Set(ctx, roomKeyPrefix+roomID, "active", 0).Err()
}

// Exists reports whether a room id has been created.
func (s *RedisStore) Exists(ctx context.Context, roomID string) (bool, error) {
	n, err := s.client.Exists(ctx, roomKeyPrefix+roomID).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// Ready reports whether Redis is currently reachable.
func (s *RedisStore) Ready(ctx context.Context) bool {
	return s.client.Ping(ctx).Err() == nil
}

// Close releases the underlying Redis client.
func (s *RedisStore) Close() error {
	return s.client.Close()
}
