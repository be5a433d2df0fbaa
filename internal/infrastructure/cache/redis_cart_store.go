package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/storefront/internal/domain/cart"
	"github.com/redis/go-redis/v9"
)

const defaultKeyPrefix = "storefront:"

// RedisConfig holds Redis connection configuration
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// RedisCartStore is a PersistenceStore backed by Redis. One key per scope,
// no TTL.
type RedisCartStore struct {
	client    redis.UniversalClient
	keyPrefix string
}

// NewRedisCartStore connects to Redis and verifies the connection
func NewRedisCartStore(cfg RedisConfig, keyPrefix string) (*RedisCartStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisCartStoreWithClient(client, keyPrefix), nil
}

// NewRedisCartStoreWithClient creates a store with an existing Redis client
func NewRedisCartStoreWithClient(client redis.UniversalClient, keyPrefix string) *RedisCartStore {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RedisCartStore{client: client, keyPrefix: keyPrefix}
}

func (s *RedisCartStore) key(scope cart.Scope) string {
	return s.keyPrefix + scope.StorageKey()
}

// Write overwrites the scope's document
func (s *RedisCartStore) Write(ctx context.Context, scope cart.Scope, lines []cart.Line) error {
	data, err := cart.EncodeDocument(lines)
	if err != nil {
		return err
	}
	if err := s.client.Set(ctx, s.key(scope), data, 0).Err(); err != nil {
		return fmt.Errorf("failed to write cart %s: %w", scope.StorageKey(), err)
	}
	return nil
}

// Read returns the scope's cart or cart.ErrCartNotFound
func (s *RedisCartStore) Read(ctx context.Context, scope cart.Scope) ([]cart.Line, error) {
	data, err := s.client.Get(ctx, s.key(scope)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, cart.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read cart %s: %w", scope.StorageKey(), err)
	}
	return cart.DecodeDocument(data)
}

// Delete removes the scope's record
func (s *RedisCartStore) Delete(ctx context.Context, scope cart.Scope) error {
	if err := s.client.Del(ctx, s.key(scope)).Err(); err != nil {
		return fmt.Errorf("failed to delete cart %s: %w", scope.StorageKey(), err)
	}
	return nil
}

// Close releases the Redis connection
func (s *RedisCartStore) Close() error {
	return s.client.Close()
}
