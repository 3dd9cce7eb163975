package state

import (
	"context"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store holds ephemeral shared state, such as the last rendered snapshot,
// so restarted or sibling consumers can pick up last-known-good data.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Close() error
}

type noopStore struct{}

// NewNoopStore returns a store that discards everything; used when no
// Redis address is configured.
func NewNoopStore() Store { return &noopStore{} }

func (n *noopStore) Get(ctx context.Context, key string) ([]byte, error)     { return nil, nil }
func (n *noopStore) Set(ctx context.Context, key string, value []byte) error { return nil }
func (n *noopStore) Close() error                                            { return nil }

type redisStore struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisStore connects to Redis at addr and verifies the connection.
// Values expire after ttl so a dead dashboard never serves ancient state.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (Store, error) {
	client := redis.NewClient(&redis.Options{
		Addr:       addr,
		MaxRetries: 3,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, err
	}
	return &redisStore{client: client, ttl: ttl}, nil
}

func (r *redisStore) Get(ctx context.Context, key string) ([]byte, error) {
	data, err := r.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	return data, err
}

func (r *redisStore) Set(ctx context.Context, key string, value []byte) error {
	return r.client.Set(ctx, key, value, r.ttl).Err()
}

func (r *redisStore) Close() error {
	return r.client.Close()
}
