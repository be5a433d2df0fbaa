package telemetry

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig configures database spans
type DBTracingConfig struct {
	DBName             string               // Reported as db.name
	SlowQueryThreshold time.Duration        // Spans slower than this carry db.slow_query; default 200ms
	TracerProvider     trace.TracerProvider // nil uses the global provider
}

type spanStartKey struct{}

type gormRegister interface {
	Register(name string, fn func(*gorm.DB)) error
}

// RegisterDBTracing installs the otelgorm plugin on db and flags slow
// statements on their spans. Query variables are never recorded.
func RegisterDBTracing(db *gorm.DB, cfg DBTracingConfig, logger *zap.Logger) error {
	if cfg.SlowQueryThreshold == 0 {
		cfg.SlowQueryThreshold = 200 * time.Millisecond
	}

	opts := []otelgorm.Option{
		otelgorm.WithoutQueryVariables(),
		otelgorm.WithoutMetrics(),
	}
	if cfg.DBName != "" {
		opts = append(opts, otelgorm.WithDBName(cfg.DBName))
	}
	if cfg.TracerProvider != nil {
		opts = append(opts, otelgorm.WithTracerProvider(cfg.TracerProvider))
	}
	if err := db.Use(otelgorm.NewPlugin(opts...)); err != nil {
		return err
	}

	before := func(tx *gorm.DB) {
		if tx.Statement.Context != nil {
			tx.Statement.Context = context.WithValue(tx.Statement.Context, spanStartKey{}, time.Now())
		}
	}
	after := func(tx *gorm.DB) {
		if tx.Statement.Context == nil {
			return
		}
		start, ok := tx.Statement.Context.Value(spanStartKey{}).(time.Time)
		if !ok {
			return
		}
		elapsed := time.Since(start)
		if elapsed < cfg.SlowQueryThreshold {
			return
		}
		span := trace.SpanFromContext(tx.Statement.Context)
		if span.IsRecording() {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.duration_ms", elapsed.Milliseconds()),
			)
		}
	}

	cb := db.Callback()
	// otelgorm ends its span in otel:after:<op>, so the slow flag runs ahead of it
	hooks := []struct {
		callback gormRegister
		hook     func(*gorm.DB)
		name     string
	}{
		{cb.Create().Before("gorm:create"), before, "before_create"},
		{cb.Create().After("gorm:create").Before("otel:after:create"), after, "after_create"},
		{cb.Query().Before("gorm:query"), before, "before_query"},
		{cb.Query().After("gorm:query").Before("otel:after:select"), after, "after_query"},
		{cb.Update().Before("gorm:update"), before, "before_update"},
		{cb.Update().After("gorm:update").Before("otel:after:update"), after, "after_update"},
		{cb.Delete().Before("gorm:delete"), before, "before_delete"},
		{cb.Delete().After("gorm:delete").Before("otel:after:delete"), after, "after_delete"},
		{cb.Row().Before("gorm:row"), before, "before_row"},
		{cb.Row().After("gorm:row").Before("otel:after:row"), after, "after_row"},
		{cb.Raw().Before("gorm:raw"), before, "before_raw"},
		{cb.Raw().After("gorm:raw").Before("otel:after:raw"), after, "after_raw"},
	}
	for _, h := range hooks {
		if err := h.callback.Register("otel_slow_query:"+h.name, h.hook); err != nil {
			return err
		}
	}

	logger.Info("Database tracing enabled",
		zap.String("db_name", cfg.DBName),
		zap.Duration("slow_query_threshold", cfg.SlowQueryThreshold),
	)
	return nil
}
