package cache

import (
	"fmt"

	"github.com/erp/storefront/internal/domain/cart"
	"github.com/erp/storefront/internal/infrastructure/config"
	"go.uber.org/zap"
)

// CartStoreFactory creates the cache-backed PersistenceStores
type CartStoreFactory struct {
	redisConfig           config.RedisConfig
	keyPrefix             string
	logger                *zap.Logger
	allowInMemoryFallback bool
}

// CartStoreFactoryOption is a functional option for configuring the factory
type CartStoreFactoryOption func(*CartStoreFactory)

// WithLogger sets the logger for the factory
func WithLogger(logger *zap.Logger) CartStoreFactoryOption {
	return func(f *CartStoreFactory) {
		f.logger = logger
	}
}

// WithInMemoryFallback controls whether to fall back to the memory store when
// Redis is unavailable
func WithInMemoryFallback(allow bool) CartStoreFactoryOption {
	return func(f *CartStoreFactory) {
		f.allowInMemoryFallback = allow
	}
}

// WithKeyPrefix sets the Redis key prefix
func WithKeyPrefix(prefix string) CartStoreFactoryOption {
	return func(f *CartStoreFactory) {
		f.keyPrefix = prefix
	}
}

// NewCartStoreFactory creates a new factory
func NewCartStoreFactory(cfg config.RedisConfig, opts ...CartStoreFactoryOption) *CartStoreFactory {
	f := &CartStoreFactory{
		redisConfig: cfg,
		keyPrefix:   defaultKeyPrefix,
		logger:      zap.NewNop(),
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// CreateRedisStore connects a Redis-backed store
func (f *CartStoreFactory) CreateRedisStore() (*RedisCartStore, error) {
	store, err := NewRedisCartStore(RedisConfig{
		Host:     f.redisConfig.Host,
		Port:     f.redisConfig.Port,
		Password: f.redisConfig.Password,
		DB:       f.redisConfig.DB,
	}, f.keyPrefix)
	if err != nil {
		return nil, fmt.Errorf("failed to create Redis cart store: %w", err)
	}
	return store, nil
}

// CreateMemoryStore creates a process-local store
func (f *CartStoreFactory) CreateMemoryStore() *MemoryCartStore {
	return NewMemoryCartStore()
}

// Create returns the store for driver: "memory" or "redis". A Redis failure
// falls back to memory when allowed.
func (f *CartStoreFactory) Create(driver string) (cart.PersistenceStore, error) {
	switch driver {
	case config.StorageMemory:
		return f.CreateMemoryStore(), nil
	case config.StorageRedis:
	default:
		return nil, fmt.Errorf("cache: unsupported storage driver %q", driver)
	}

	store, err := f.CreateRedisStore()
	if err == nil {
		f.logger.Info("using Redis cart store", zap.String("addr", f.redisConfig.Addr()))
		return store, nil
	}
	if !f.allowInMemoryFallback {
		return nil, err
	}

	f.logger.Warn("Redis unavailable, falling back to in-memory cart store. "+
		"Carts will not survive a restart.",
		zap.Error(err),
	)
	return f.CreateMemoryStore(), nil
}
