// Command cartd serves the authoritative per-user cart over HTTP.
//
//	@title						Cart Service API
//	@version					1.0.0
//	@description				Authoritative per-user cart for the storefront.
//	@BasePath					/api/v1
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer access token
package main

import (
	"context"
	"errors"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/erp/storefront/internal/application/servercart"
	"github.com/erp/storefront/internal/infrastructure/auth"
	"github.com/erp/storefront/internal/infrastructure/config"
	"github.com/erp/storefront/internal/infrastructure/logger"
	"github.com/erp/storefront/internal/infrastructure/migration"
	"github.com/erp/storefront/internal/infrastructure/persistence"
	"github.com/erp/storefront/internal/infrastructure/telemetry"
	"github.com/erp/storefront/internal/interfaces/http/handler"
	"github.com/erp/storefront/internal/interfaces/http/middleware"
	"github.com/erp/storefront/internal/interfaces/http/router"
	"github.com/erp/storefront/migrations"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const version = "1.0.0"

func main() {
	var (
		configPath  string
		autoMigrate bool
	)
	flag.StringVar(&configPath, "config", "", "Path to config file (default: ./config.toml)")
	flag.BoolVar(&autoMigrate, "migrate", false, "Apply embedded migrations before serving")
	flag.Parse()

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: "2006-01-02T15:04:05.000Z07:00",
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		logger.Sync(log)
	}()

	log.Info("Starting cart service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		ExportInterval:    cfg.Telemetry.ExportInterval,
		Insecure:          cfg.Telemetry.Insecure,
		Traces:            cfg.Telemetry.Traces,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		Logs:              cfg.Telemetry.Logs,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Warn("Telemetry shutdown failed", zap.Error(err))
		}
	}()
	log = providers.Bridge(log, log.Level())

	db, err := persistence.NewDatabaseWithLogger(&cfg.Database, log, logger.MapGormLogLevel(cfg.Log.Level))
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if autoMigrate {
		if err := migrateUp(db, log); err != nil {
			log.Fatal("Migration failed", zap.Error(err))
		}
	}

	meter := providers.Meter("cartd")
	if meter != nil {
		dbMetrics, err := telemetry.NewDBMetrics(meter, telemetry.DBMetricsConfig{
			SlowQueryThreshold: cfg.Telemetry.SlowQuery,
		}, log)
		if err != nil {
			log.Fatal("Failed to create database metrics", zap.Error(err))
		}
		if err := dbMetrics.Register(ctx, db.DB); err != nil {
			log.Fatal("Failed to register database metrics", zap.Error(err))
		}
		defer dbMetrics.Stop()
	}
	if providers.Tracing() {
		if err := telemetry.RegisterDBTracing(db.DB, telemetry.DBTracingConfig{
			DBName:             cfg.Database.DBName,
			SlowQueryThreshold: cfg.Telemetry.SlowQuery,
		}, log); err != nil {
			log.Fatal("Failed to register database tracing", zap.Error(err))
		}
	}

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	engine := router.NewEngine(router.EngineConfig{
		Logger: log,
		Meter:  meter,
		Tracing: middleware.TracingConfig{
			Enabled:     providers.Tracing(),
			ServiceName: cfg.Telemetry.ServiceName,
		},
		CORS: middleware.CORSConfig{
			AllowOrigins:     cfg.HTTP.CORSAllowOrigins,
			AllowMethods:     []string{"GET", "POST", "OPTIONS"},
			AllowHeaders:     []string{"Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		},
		MaxBodySize: cfg.HTTP.MaxBodySize,
	})

	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, db, log)
	systemHandler.RegisterHealthRoutes(engine)
	if cfg.HTTP.SwaggerEnabled {
		router.RegisterSwagger(engine)
		log.Info("API docs served at /swagger/index.html")
	}

	jwtService := auth.NewJWTService(cfg.JWT)
	cartService := servercart.NewService(persistence.NewGormServerCartRepository(db.DB), log)

	jwtConfig := middleware.DefaultJWTConfig(jwtService)
	jwtConfig.SkipPaths = []string{"/api/v1/system/info"}
	jwtConfig.Logger = log

	router.NewRouter(engine, router.WithAPIVersion("v1")).
		Use(middleware.JWTAuthMiddlewareWithConfig(jwtConfig)).
		Register(systemHandler).
		Register(handler.NewCartHandler(cartService)).
		Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			log.Error("Server failed", zap.Error(err))
			os.Exit(1)
		}
	case <-ctx.Done():
	}
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}
	log.Info("Server exited gracefully")
}

func migrateUp(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	// Not closed: closing the migrator closes the shared *sql.DB
	m, err := migration.NewEmbedded(sqlDB, migrations.FS, log)
	if err != nil {
		return err
	}
	return m.Up()
}
