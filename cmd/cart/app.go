package main

import (
	"context"
	"fmt"
	"time"

	"github.com/erp/storefront/internal/application/cartsync"
	"github.com/erp/storefront/internal/domain/cart"
	"github.com/erp/storefront/internal/domain/shared/valueobject"
	"github.com/erp/storefront/internal/infrastructure/cache"
	"github.com/erp/storefront/internal/infrastructure/catalog"
	"github.com/erp/storefront/internal/infrastructure/config"
	"github.com/erp/storefront/internal/infrastructure/gateway"
	"github.com/erp/storefront/internal/infrastructure/logger"
	"github.com/erp/storefront/internal/infrastructure/persistence"
	"github.com/erp/storefront/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// app is one CLI invocation's cart session
type app struct {
	cfg     *config.Config
	log     *zap.Logger
	session session
	engine  *cartsync.Engine
	gateway *gateway.HTTPGateway
	closers []func()
}

func openApp(ctx context.Context, cfg *config.Config, log *zap.Logger) (*app, error) {
	a := &app{cfg: cfg}
	ok := false
	defer func() {
		if !ok {
			a.runClosers()
		}
	}()

	sess, err := loadSession(cfg.Session.Path)
	if err != nil {
		return nil, err
	}
	a.session = sess

	providers, err := a.openTelemetry(ctx, log)
	if err != nil {
		return nil, err
	}
	ctx, a.log = logger.WithScope(ctx, providers.Bridge(log, log.Level()), sess.scope().String())

	currency, err := valueobject.ParseCurrency(cfg.App.Currency)
	if err != nil {
		return nil, fmt.Errorf("app.currency: %w", err)
	}
	storeOpts := []cart.StoreOption{cart.WithCurrency(currency)}
	if cfg.Catalog.Path != "" {
		snap, err := catalog.LoadFile(cfg.Catalog.Path)
		if err != nil {
			return nil, err
		}
		a.log.Debug("catalog loaded", zap.Int("products", snap.Len()))
		storeOpts = append(storeOpts, cart.WithCatalog(snap))
	}

	persist, err := a.openStorage()
	if err != nil {
		return nil, err
	}

	var gw cart.Gateway
	if cfg.Gateway.BaseURL != "" {
		a.gateway, err = gateway.NewHTTPGateway(gateway.Config{
			BaseURL:       cfg.Gateway.BaseURL,
			Timeout:       cfg.Gateway.Timeout,
			BeaconTimeout: cfg.Gateway.BeaconTimeout,
		}, gateway.TokenFunc(a.token), gateway.WithLogger(a.log))
		if err != nil {
			return nil, fmt.Errorf("gateway: %w", err)
		}
		gw = a.gateway
	}

	engineOpts := []cartsync.Option{
		cartsync.WithLogger(a.log),
		cartsync.WithFetchTimeout(cfg.Gateway.Timeout),
		cartsync.WithPushTimeout(cfg.Gateway.Timeout),
		cartsync.WithPersistTimeout(cfg.Storage.WriteTimeout),
	}
	if meter := providers.Meter("cart"); meter != nil {
		m, err := telemetry.NewCartMetrics(meter)
		if err != nil {
			return nil, err
		}
		engineOpts = append(engineOpts, cartsync.WithMetrics(m))
	}

	scope := sess.scope()
	a.engine = cartsync.NewEngine(cart.NewStore(scope, storeOpts...), persist, gw, scope, engineOpts...)
	a.engine.Start(ctx)
	ok = true
	return a, nil
}

func (a *app) openStorage() (cart.PersistenceStore, error) {
	if a.cfg.Storage.Driver == config.StorageSQLite {
		db, err := persistence.OpenSQLite(a.cfg.Storage.SQLitePath, a.log)
		if err != nil {
			return nil, err
		}
		a.closers = append(a.closers, func() { _ = db.Close() })
		return persistence.NewSQLiteCartStore(db.DB), nil
	}

	store, err := cache.NewCartStoreFactory(a.cfg.Redis,
		cache.WithLogger(a.log),
		cache.WithInMemoryFallback(a.cfg.Storage.FallbackToMem),
		cache.WithKeyPrefix(a.cfg.Storage.KeyPrefix),
	).Create(a.cfg.Storage.Driver)
	if err != nil {
		return nil, err
	}
	if rs, ok := store.(*cache.RedisCartStore); ok {
		a.closers = append(a.closers, func() { _ = rs.Close() })
	}
	return store, nil
}

// openTelemetry starts the exporters first so their shutdown runs last
func (a *app) openTelemetry(ctx context.Context, log *zap.Logger) (*telemetry.Providers, error) {
	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           a.cfg.Telemetry.Enabled,
		CollectorEndpoint: a.cfg.Telemetry.CollectorEndpoint,
		ServiceName:       a.cfg.Telemetry.ServiceName,
		ExportInterval:    a.cfg.Telemetry.ExportInterval,
		Insecure:          a.cfg.Telemetry.Insecure,
		Traces:            a.cfg.Telemetry.Traces,
		SamplingRatio:     a.cfg.Telemetry.SamplingRatio,
		Logs:              a.cfg.Telemetry.Logs,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("telemetry: %w", err)
	}
	a.closers = append(a.closers, func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = providers.Shutdown(shutdownCtx)
	})
	return providers, nil
}

// token prefers the configured static token, then the session's token for
// the session's own user
func (a *app) token(scope cart.Scope) (string, error) {
	if a.cfg.Gateway.Token != "" {
		return a.cfg.Gateway.Token, nil
	}
	if a.session.Token == "" || a.session.User != scope.UserID() {
		return "", gateway.ErrNoToken
	}
	return a.session.Token, nil
}

// setSession persists the new identity and moves the engine to its scope
func (a *app) setSession(ctx context.Context, s session) error {
	if err := s.save(a.cfg.Session.Path); err != nil {
		return err
	}
	a.session = s
	a.engine.SetScope(ctx, s.scope())
	return nil
}

// close runs the teardown flush and waits at most the beacon timeout for
// the beacon to leave
func (a *app) close() {
	a.engine.Wait()
	a.engine.Teardown()
	if a.gateway != nil {
		ctx, cancel := context.WithTimeout(context.Background(), a.cfg.Gateway.BeaconTimeout)
		if !a.gateway.Flush(ctx) {
			a.log.Warn("cart beacon still in flight at exit")
		}
		cancel()
	}
	a.runClosers()
}

func (a *app) runClosers() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		a.closers[i]()
	}
	a.closers = nil
}
