package cart

import (
	"context"
	"sync"
	"time"

	"github.com/erp/storefront/internal/domain/shared/valueobject"
	"github.com/google/uuid"
)

// Store is the in-memory source of truth for the active session's cart.
//
// Mutations are atomic with respect to each other. Each mutation that changes
// the cart appends a persist intent to the outbox while still holding the
// lock, so intents are queued in mutation order, and then drains the outbox
// synchronously. With no Drainer installed, intents stay queued.
type Store struct {
	mu       sync.RWMutex
	scope    Scope
	lines    []Line
	currency valueobject.Currency
	resolver *StockResolver
	outbox   *Outbox
	now      func() time.Time

	drainMu sync.Mutex
	drainer Drainer
	held    map[Scope]bool
}

// StoreOption configures a Store
type StoreOption func(*Store)

// WithCurrency sets the currency totals are computed in
func WithCurrency(c valueobject.Currency) StoreOption {
	return func(s *Store) {
		if c != "" {
			s.currency = c
		}
	}
}

// WithCatalog resolves stock and variant data from the given catalog
func WithCatalog(c Catalog) StoreOption {
	return func(s *Store) {
		s.resolver = NewStockResolver(c)
	}
}

// WithDrainer installs the outbox drainer
func WithDrainer(d Drainer) StoreOption {
	return func(s *Store) {
		s.drainer = d
	}
}

// WithClock overrides the intent timestamp source
func WithClock(now func() time.Time) StoreOption {
	return func(s *Store) {
		s.now = now
	}
}

// NewStore creates an empty cart for scope
func NewStore(scope Scope, opts ...StoreOption) *Store {
	s := &Store{
		scope:    scope,
		lines:    []Line{},
		currency: valueobject.DefaultCurrency,
		resolver: NewStockResolver(nil),
		outbox:   NewOutbox(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetDrainer replaces the outbox drainer
func (s *Store) SetDrainer(d Drainer) {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()
	s.drainer = d
}

// Outbox exposes the pending intents
func (s *Store) Outbox() *Outbox {
	return s.outbox
}

// Scope returns the scope the cart currently belongs to
func (s *Store) Scope() Scope {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.scope
}

// Currency returns the currency totals are computed in
func (s *Store) Currency() valueobject.Currency {
	return s.currency
}

// Add puts a line into the cart. An existing line with the same key has its
// quantity incremented; a new line is appended. Either way the quantity is
// clamped to the known stock ceiling. Invalid input is ignored and Add
// reports false: an empty product ID, a negative quantity, a missing or
// unknown variant for a product sold per variant, or a new line with no
// stock left.
func (s *Store) Add(in LineInput) bool {
	key := in.Key()
	in.ProductID, in.VariantID = key.ProductID, key.VariantID
	if in.ProductID == "" || in.Quantity < 0 {
		return false
	}
	if in.Quantity == 0 {
		in.Quantity = 1
	}
	if !s.resolver.Accepts(in) {
		return false
	}
	in = s.resolver.Describe(in)
	ceiling := s.resolver.Resolve(in)

	s.mu.Lock()
	if i := IndexOf(s.lines, key); i >= 0 {
		line := &s.lines[i]
		if ceiling != nil {
			line.MaxAvailable = ceiling
		}
		line.Quantity = clamp(addQuantity(line.Quantity, in.Quantity), line.MaxAvailable)
	} else {
		qty := clamp(in.Quantity, ceiling)
		if qty == 0 {
			s.mu.Unlock()
			return false
		}
		s.lines = append(s.lines, Line{
			ProductID:    in.ProductID,
			VariantID:    in.VariantID,
			Quantity:     qty,
			UnitPrice:    in.UnitPrice,
			ListPrice:    in.ListPrice,
			MaxAvailable: ceiling,
			Name:         in.Name,
			Color:        in.Color,
			Size:         in.Size,
		})
	}
	s.recordLocked()
	s.mu.Unlock()

	s.Drain(context.Background())
	return true
}

// Remove deletes the line matching key. It reports false when there was none.
// It panics with ErrInvalidKey on a key without a product.
func (s *Store) Remove(key Key) bool {
	key.mustBeValid()
	s.mu.Lock()
	if !s.removeLocked(key) {
		s.mu.Unlock()
		return false
	}
	s.recordLocked()
	s.mu.Unlock()

	s.Drain(context.Background())
	return true
}

// SetQuantity sets the quantity of the line matching key, clamped to its
// stock ceiling. A quantity of zero or less removes the line. It reports
// false when no line matches.
func (s *Store) SetQuantity(key Key, quantity int) bool {
	key.mustBeValid()
	if quantity <= 0 {
		return s.Remove(key)
	}

	s.mu.Lock()
	i := IndexOf(s.lines, key)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	s.lines[i].Quantity = clamp(quantity, s.lines[i].MaxAvailable)
	s.recordLocked()
	s.mu.Unlock()

	s.Drain(context.Background())
	return true
}

// UpdateStock records a new stock ceiling for the line matching key and
// clamps its quantity. A nil ceiling marks stock as unknown. The line is kept
// even when clamped to zero so the shopper can see it went out of stock.
func (s *Store) UpdateStock(key Key, maxAvailable *int) bool {
	key.mustBeValid()
	s.mu.Lock()
	i := IndexOf(s.lines, key)
	if i < 0 {
		s.mu.Unlock()
		return false
	}
	line := &s.lines[i]
	line.MaxAvailable = nil
	if maxAvailable != nil {
		line.MaxAvailable = nonNegative(*maxAvailable)
	}
	line.Quantity = clamp(line.Quantity, line.MaxAvailable)
	s.recordLocked()
	s.mu.Unlock()

	s.Drain(context.Background())
	return true
}

// Clear empties the cart. An empty document is always persisted, even when
// the cart was already empty.
func (s *Store) Clear() {
	s.mu.Lock()
	s.lines = []Line{}
	s.recordLocked()
	s.mu.Unlock()

	s.Drain(context.Background())
}

// Load replaces the cart with lines under scope without recording an
// intent. It is the hydration entry point.
func (s *Store) Load(scope Scope, lines []Line) {
	normalized := Normalize(lines)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scope = scope
	s.lines = normalized
}

// Reconcile folds remote lines into the cart with local lines winning, and
// persists the result. It does nothing and reports false if the cart no
// longer belongs to scope.
func (s *Store) Reconcile(scope Scope, remote []Line) ([]Line, bool) {
	merged, ok := s.Fold(scope, remote)
	if ok {
		s.Drain(context.Background())
	}
	return merged, ok
}

// Fold is Reconcile without the drain: the merged snapshot is queued and
// the caller decides when to drain it.
func (s *Store) Fold(scope Scope, remote []Line) ([]Line, bool) {
	remote = Normalize(remote)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.scope != scope {
		return nil, false
	}
	s.lines = Merge(s.lines, remote)
	s.recordLocked()
	return cloneLines(s.lines), true
}

// Hold keeps scope's intents queued instead of draining them, until Release
// or Discard.
func (s *Store) Hold(scope Scope) {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()
	if s.held == nil {
		s.held = make(map[Scope]bool, 1)
	}
	s.held[scope] = true
}

// Release lets scope's queued intents drain on the next Drain
func (s *Store) Release(scope Scope) {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()
	delete(s.held, scope)
}

// Discard drops scope's queued intents and releases it. It returns the
// number of intents dropped.
func (s *Store) Discard(scope Scope) int {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()
	delete(s.held, scope)
	return s.outbox.Discard(scope)
}

// IsHeld reports whether scope's intents are being held back
func (s *Store) IsHeld(scope Scope) bool {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()
	return s.held[scope]
}

// Drain hands pending intents to the drainer. Concurrent calls are
// serialized so intents are drained in the order they were recorded.
// Intents for held scopes stay queued.
func (s *Store) Drain(ctx context.Context) {
	s.drainMu.Lock()
	defer s.drainMu.Unlock()
	if s.drainer == nil {
		return
	}
	intents := s.outbox.TakeExcept(s.held)
	if len(intents) == 0 {
		return
	}
	s.drainer.Drain(ctx, intents)
}

// Lines returns a copy of the cart in insertion order
func (s *Store) Lines() []Line {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return cloneLines(s.lines)
}

// Line returns a copy of the line matching key
func (s *Store) Line(key Key) (Line, bool) {
	key.mustBeValid()
	s.mu.RLock()
	defer s.mu.RUnlock()
	i := IndexOf(s.lines, key)
	if i < 0 {
		return Line{}, false
	}
	return s.lines[i].Clone(), true
}

// Contains reports whether a line matches key
func (s *Store) Contains(key Key) bool {
	key.mustBeValid()
	s.mu.RLock()
	defer s.mu.RUnlock()
	return IndexOf(s.lines, key) >= 0
}

// Len returns the number of distinct lines
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.lines)
}

// IsEmpty reports whether the cart has no lines
func (s *Store) IsEmpty() bool {
	return s.Len() == 0
}

// ItemCount returns the sum of all line quantities
func (s *Store) ItemCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return ItemCount(s.lines)
}

// Total returns the cart total rounded to the currency's minor unit
func (s *Store) Total() valueobject.Money {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Total(s.lines, s.currency)
}

func (s *Store) removeLocked(key Key) bool {
	i := IndexOf(s.lines, key)
	if i < 0 {
		return false
	}
	s.lines = append(s.lines[:i:i], s.lines[i+1:]...)
	return true
}

func (s *Store) recordLocked() {
	s.outbox.Append(Intent{
		ID:        uuid.New(),
		Kind:      IntentPersist,
		Scope:     s.scope,
		Lines:     cloneLines(s.lines),
		CreatedAt: s.now(),
	})
}

func cloneLines(lines []Line) []Line {
	out := make([]Line, len(lines))
	for i, l := range lines {
		out[i] = l.Clone()
	}
	return out
}
