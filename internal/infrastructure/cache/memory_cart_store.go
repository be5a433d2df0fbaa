package cache

import (
	"context"

	"github.com/erp/storefront/internal/domain/cart"
	gocache "github.com/patrickmn/go-cache"
)

// MemoryCartStore is a process-local PersistenceStore. Records never expire.
// It does not survive restarts and is meant for tests, the offline CLI and
// as the fallback when Redis is unreachable.
type MemoryCartStore struct {
	items *gocache.Cache
}

// NewMemoryCartStore creates an empty store
func NewMemoryCartStore() *MemoryCartStore {
	return &MemoryCartStore{items: gocache.New(gocache.NoExpiration, 0)}
}

// Write stores the encoded document, replacing any previous one
func (s *MemoryCartStore) Write(_ context.Context, scope cart.Scope, lines []cart.Line) error {
	data, err := cart.EncodeDocument(lines)
	if err != nil {
		return err
	}
	s.items.Set(scope.StorageKey(), data, gocache.NoExpiration)
	return nil
}

// Read returns the scope's cart or cart.ErrCartNotFound
func (s *MemoryCartStore) Read(_ context.Context, scope cart.Scope) ([]cart.Line, error) {
	v, ok := s.items.Get(scope.StorageKey())
	if !ok {
		return nil, cart.ErrCartNotFound
	}
	return cart.DecodeDocument(v.([]byte))
}

// Delete removes the scope's record
func (s *MemoryCartStore) Delete(_ context.Context, scope cart.Scope) error {
	s.items.Delete(scope.StorageKey())
	return nil
}

// Len returns the number of stored records
func (s *MemoryCartStore) Len() int {
	return s.items.ItemCount()
}
