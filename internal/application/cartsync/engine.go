package cartsync

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/erp/storefront/internal/domain/cart"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	defaultFetchTimeout   = 5 * time.Second
	defaultPushTimeout    = 5 * time.Second
	defaultPersistTimeout = 2 * time.Second
)

// State is the engine's position in the sync lifecycle
type State int

const (
	StateUninitialized State = iota
	StateHydrating
	StateHydrated
	StateMigrating
	StateMigrated
)

func (s State) String() string {
	switch s {
	case StateUninitialized:
		return "uninitialized"
	case StateHydrating:
		return "hydrating"
	case StateHydrated:
		return "hydrated"
	case StateMigrating:
		return "migrating"
	case StateMigrated:
		return "migrated"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// SyncState is the engine's view of the current scope. It is reset entirely
// whenever the scope changes.
type SyncState struct {
	Hydrated bool
	Migrated bool
	Scope    cart.Scope
}

// Option configures an Engine
type Option func(*Engine)

// WithLogger sets the engine logger
func WithLogger(logger *zap.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithMetrics sets the metrics sink
func WithMetrics(m Metrics) Option {
	return func(e *Engine) {
		if m != nil {
			e.metrics = m
		}
	}
}

// WithFetchTimeout bounds the server cart read during migration
func WithFetchTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.fetchTimeout = d
		}
	}
}

// WithPushTimeout bounds the merged cart push after migration
func WithPushTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.pushTimeout = d
		}
	}
}

// WithPersistTimeout bounds each PersistenceStore write
func WithPersistTimeout(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.persistTimeout = d
		}
	}
}

// Engine keeps a cart.Store in step with its PersistenceStore partition and,
// for authenticated users, with the server cart.
//
// The active scope is always supplied by the caller, through NewEngine and
// SetScope. Hydration runs synchronously. Migration of a guest cart into a
// user cart runs on a background goroutine and happens at most once per
// transition into a user scope.
//
// When hydration cannot read the scope's record, writes to that partition
// are held back until a later read succeeds, so a transient read failure
// never overwrites the saved cart.
type Engine struct {
	store   *cart.Store
	persist cart.PersistenceStore
	gateway cart.Gateway

	logger         *zap.Logger
	metrics        Metrics
	fetchTimeout   time.Duration
	pushTimeout    time.Duration
	persistTimeout time.Duration

	hydrations singleflight.Group
	wg         sync.WaitGroup

	mu          sync.Mutex
	state       State
	current     SyncState
	generation  uint64
	guestSource bool
	unread      bool
}

// NewEngine creates an engine for scope. It installs a PersistDrainer on the
// store so every mutation is mirrored to persist. gateway may be nil, in
// which case the engine works offline.
func NewEngine(store *cart.Store, persist cart.PersistenceStore, gateway cart.Gateway, scope cart.Scope, opts ...Option) *Engine {
	e := &Engine{
		store:          store,
		persist:        persist,
		gateway:        gateway,
		logger:         zap.NewNop(),
		metrics:        noopMetrics{},
		fetchTimeout:   defaultFetchTimeout,
		pushTimeout:    defaultPushTimeout,
		persistTimeout: defaultPersistTimeout,
		state:          StateUninitialized,
		current:        SyncState{Scope: scope},
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.Named("cartsync")
	store.SetDrainer(NewPersistDrainer(persist, e.logger, e.metrics, e.persistTimeout))
	return e
}

// Store returns the cart the engine drives
func (e *Engine) Store() *cart.Store {
	return e.store
}

// State returns the current lifecycle state
func (e *Engine) State() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// SyncState returns a copy of the current sync state
func (e *Engine) SyncState() SyncState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.current
}

// Start hydrates the initial scope and starts migration for a user scope
func (e *Engine) Start(ctx context.Context) {
	e.mu.Lock()
	gen := e.generation
	scope := e.current.Scope
	e.mu.Unlock()

	e.activate(ctx, scope, gen)
}

// SetScope reacts to an identity change. Repeated notifications for the
// current scope are ignored. A real change resets the sync state, hydrates
// the new scope and, for a user, starts migration.
func (e *Engine) SetScope(ctx context.Context, scope cart.Scope) {
	e.mu.Lock()
	if e.current.Scope == scope && e.state != StateUninitialized {
		e.mu.Unlock()
		return
	}
	prev, unread := e.current.Scope, e.unread
	e.generation++
	gen := e.generation
	e.current = SyncState{Scope: scope}
	e.state = StateUninitialized
	e.guestSource = false
	e.unread = false
	e.mu.Unlock()

	if unread {
		e.abandon(ctx, prev)
	}
	e.logger.Info("cart scope changed", zap.String("scope", scope.String()))
	e.activate(ctx, scope, gen)
}

func (e *Engine) activate(ctx context.Context, scope cart.Scope, gen uint64) {
	e.hydrate(ctx, scope, gen)
	if scope.IsUser() {
		e.startMigration(ctx, scope, gen)
	}
}

// Hydrate loads the current scope's record into the store. It returns
// immediately if the scope is already hydrated.
func (e *Engine) Hydrate(ctx context.Context) {
	e.mu.Lock()
	gen := e.generation
	scope := e.current.Scope
	e.mu.Unlock()

	e.hydrate(ctx, scope, gen)
}

func (e *Engine) hydrate(ctx context.Context, scope cart.Scope, gen uint64) {
	key := fmt.Sprintf("%s#%d", scope.StorageKey(), gen)
	_, _, _ = e.hydrations.Do(key, func() (any, error) {
		e.mu.Lock()
		if e.generation != gen || e.current.Hydrated {
			e.mu.Unlock()
			return nil, nil
		}
		e.state = StateHydrating
		e.mu.Unlock()

		lines, source := e.readForHydration(ctx, scope)

		e.mu.Lock()
		defer e.mu.Unlock()
		if e.generation != gen {
			return nil, nil
		}
		if source == SourceUnavailable {
			e.unread = true
			e.store.Hold(scope)
		} else {
			e.store.Discard(scope)
		}
		e.store.Load(scope, lines)
		e.current.Hydrated = true
		e.guestSource = source == SourceGuest
		e.state = StateHydrated

		e.logger.Debug("cart hydrated",
			zap.String("scope", scope.String()),
			zap.String("source", source),
			zap.Int("lines", len(lines)),
		)
		e.metrics.RecordHydration(ctx, source)
		return nil, nil
	})
}

// readForHydration reads the scope's record. A user without a record falls
// back to the guest record, which is left in place until migration has
// durably written the user record.
func (e *Engine) readForHydration(ctx context.Context, scope cart.Scope) ([]cart.Line, string) {
	lines, err := e.persist.Read(ctx, scope)
	switch {
	case err == nil:
		return lines, SourceScope
	case !errors.Is(err, cart.ErrCartNotFound):
		e.logger.Warn("cart persistence read failed",
			zap.String("scope", scope.String()),
			zap.Error(err),
		)
		e.metrics.RecordPersistFailure(ctx, "read")
		return nil, SourceUnavailable
	}

	if scope.IsGuest() {
		return nil, SourceEmpty
	}
	guest, err := e.persist.Read(ctx, cart.GuestScope)
	switch {
	case err == nil:
		return guest, SourceGuest
	case errors.Is(err, cart.ErrCartNotFound):
		return nil, SourceEmpty
	default:
		e.logger.Warn("guest cart read failed",
			zap.String("scope", scope.String()),
			zap.Error(err),
		)
		e.metrics.RecordPersistFailure(ctx, "read")
		return nil, SourceUnavailable
	}
}

func (e *Engine) startMigration(ctx context.Context, scope cart.Scope, gen uint64) {
	e.mu.Lock()
	if e.generation != gen || !e.current.Hydrated || e.current.Migrated || e.state == StateMigrating {
		e.mu.Unlock()
		return
	}
	e.state = StateMigrating
	e.mu.Unlock()

	// Migration is not cancellable once started.
	ctx = context.WithoutCancel(ctx)
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		e.migrate(ctx, scope, gen)
	}()
}

func (e *Engine) migrate(ctx context.Context, scope cart.Scope, gen uint64) {
	start := time.Now()
	e.reread(ctx, scope, gen)
	remote, online := e.fetch(ctx, scope)

	e.mu.Lock()
	if e.generation != gen {
		e.mu.Unlock()
		e.logger.Debug("discarding migration for previous scope", zap.String("scope", scope.String()))
		e.metrics.RecordMigration(ctx, OutcomeStale, time.Since(start))
		return
	}
	merged, ok := e.store.Fold(scope, remote)
	if !ok {
		e.state = StateHydrated
		e.mu.Unlock()
		e.metrics.RecordMigration(ctx, OutcomeStale, time.Since(start))
		return
	}
	e.current.Migrated = true
	e.state = StateMigrated
	guestSource := e.guestSource
	e.mu.Unlock()

	e.store.Drain(ctx)

	if guestSource {
		e.retireGuestRecord(ctx, scope)
	}

	outcome := OutcomeMerged
	if !online {
		outcome = OutcomeOffline
	}
	e.logger.Info("cart migrated",
		zap.String("scope", scope.String()),
		zap.Bool("from_guest", guestSource),
		zap.Int("remote_lines", len(remote)),
		zap.Int("lines", len(merged)),
		zap.String("outcome", outcome),
	)
	e.metrics.RecordMigration(ctx, outcome, time.Since(start))

	e.mu.Lock()
	if e.generation == gen {
		e.state = StateHydrated
	}
	e.mu.Unlock()

	e.push(ctx, scope, merged)
}

// reread retries the read of a partition whose hydration read failed. On
// success the saved lines are folded under the session's lines and writes
// to the partition resume.
func (e *Engine) reread(ctx context.Context, scope cart.Scope, gen uint64) {
	e.mu.Lock()
	if e.generation != gen || !e.unread {
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	source, ok := e.recoverRecord(ctx, scope)
	if !ok {
		return
	}
	e.mu.Lock()
	if e.generation == gen {
		e.unread = false
		if source == SourceGuest {
			e.guestSource = true
		}
	}
	e.mu.Unlock()

	e.logger.Info("cart record recovered",
		zap.String("scope", scope.String()),
		zap.String("source", source),
	)
	e.metrics.RecordHydration(ctx, source)
}

func (e *Engine) recoverRecord(ctx context.Context, scope cart.Scope) (string, bool) {
	lines, source := e.readForHydration(ctx, scope)
	if source == SourceUnavailable {
		return source, false
	}
	if _, ok := e.store.Fold(scope, lines); !ok {
		return source, false
	}
	e.store.Release(scope)
	e.store.Drain(ctx)
	return source, true
}

// abandon settles a held partition the session is leaving: one more read is
// tried, and if it still fails the unsaved changes are dropped rather than
// written over the record.
func (e *Engine) abandon(ctx context.Context, scope cart.Scope) {
	if _, ok := e.recoverRecord(ctx, scope); ok {
		return
	}
	if n := e.store.Discard(scope); n > 0 {
		e.logger.Warn("dropping unsaved cart changes, saved cart unreadable",
			zap.String("scope", scope.String()),
			zap.Int("intents", n),
		)
	}
}

// fetch reads the server cart. Any failure counts as an empty server cart.
func (e *Engine) fetch(ctx context.Context, scope cart.Scope) ([]cart.Line, bool) {
	if e.gateway == nil {
		return nil, false
	}
	fetchCtx, cancel := context.WithTimeout(ctx, e.fetchTimeout)
	defer cancel()

	lines, err := e.gateway.Fetch(fetchCtx, scope)
	if err != nil {
		e.logger.Warn("server cart unavailable, continuing with local cart",
			zap.String("scope", scope.String()),
			zap.Error(err),
		)
		e.metrics.RecordGatewayFailure(ctx, "fetch")
		return nil, false
	}
	return lines, true
}

// retireGuestRecord deletes the guest record once the user record is
// readable, so a failed write never loses the guest's lines.
func (e *Engine) retireGuestRecord(ctx context.Context, scope cart.Scope) {
	if _, err := e.persist.Read(ctx, scope); err != nil {
		e.logger.Warn("keeping guest cart, user cart not durable",
			zap.String("scope", scope.String()),
			zap.Error(err),
		)
		e.metrics.RecordPersistFailure(ctx, "verify")
		return
	}
	if err := e.persist.Delete(ctx, cart.GuestScope); err != nil {
		e.logger.Warn("guest cart delete failed", zap.Error(err))
		e.metrics.RecordPersistFailure(ctx, "delete")
	}
}

func (e *Engine) push(ctx context.Context, scope cart.Scope, lines []cart.Line) {
	if e.gateway == nil || len(lines) == 0 {
		return
	}
	pushCtx, cancel := context.WithTimeout(ctx, e.pushTimeout)
	defer cancel()

	if err := e.gateway.Merge(pushCtx, scope, lines); err != nil {
		e.logger.Warn("server cart merge failed",
			zap.String("scope", scope.String()),
			zap.Error(err),
		)
		e.metrics.RecordGatewayFailure(ctx, "merge")
	}
}

// Wait blocks until in-flight migrations have finished
func (e *Engine) Wait() {
	e.wg.Wait()
}

// Teardown flushes pending persistence and, for a user with a non-empty
// cart, hands the cart to the gateway's beacon. A held partition gets one
// more bounded read first. It never waits on the gateway and never panics.
func (e *Engine) Teardown() {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Warn("cart teardown recovered from panic", zap.Any("panic", r))
		}
	}()

	e.mu.Lock()
	gen, current := e.generation, e.current.Scope
	e.mu.Unlock()
	readCtx, cancel := context.WithTimeout(context.Background(), e.persistTimeout)
	e.reread(readCtx, current, gen)
	cancel()

	e.store.Drain(context.Background())
	if e.store.IsHeld(current) {
		e.logger.Warn("cart changes not saved, saved cart unreadable", zap.String("scope", current.String()))
	}

	scope := e.store.Scope()
	if e.gateway == nil || !scope.IsUser() {
		return
	}
	lines := e.store.Lines()
	if len(lines) == 0 {
		return
	}
	e.gateway.Beacon(scope, lines)
	e.metrics.RecordBeacon(context.Background(), len(lines))
}
