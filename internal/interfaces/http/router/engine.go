package router

import (
	"github.com/erp/storefront/internal/infrastructure/logger"
	"github.com/erp/storefront/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// EngineConfig configures the global middleware stack
type EngineConfig struct {
	Logger      *zap.Logger
	Meter       metric.Meter // nil disables HTTP metrics
	Tracing     middleware.TracingConfig
	CORS        middleware.CORSConfig
	MaxBodySize int64 // 0 disables the limit
}

// NewEngine returns a gin engine with the middleware stack applied in order:
// request ID, panic recovery, request span, request logging, security
// headers, CORS, HTTP metrics and body size limit.
func NewEngine(cfg EngineConfig) *gin.Engine {
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	middleware.SetupValidator()

	engine := gin.New()
	engine.Use(middleware.RequestID())
	engine.Use(logger.Recovery(log))
	if cfg.Tracing.Enabled {
		engine.Use(middleware.Tracing(cfg.Tracing), middleware.SpanAttributes())
	}
	engine.Use(logger.GinMiddleware(log))
	engine.Use(middleware.Secure())
	engine.Use(middleware.CORSWithConfig(cfg.CORS))
	engine.Use(middleware.HTTPMetrics(cfg.Meter))
	if cfg.MaxBodySize > 0 {
		engine.Use(middleware.BodyLimit(cfg.MaxBodySize))
	}
	return engine
}
