package cartsync

import (
	"context"
	"time"
)

// Hydration sources reported to Metrics
const (
	SourceScope       = "scope"
	SourceGuest       = "guest"
	SourceEmpty       = "empty"
	SourceUnavailable = "unavailable"
)

// Migration outcomes reported to Metrics
const (
	OutcomeMerged  = "merged"
	OutcomeOffline = "offline"
	OutcomeStale   = "stale"
)

// Metrics receives the engine's operational signals
type Metrics interface {
	RecordHydration(ctx context.Context, source string)
	RecordMigration(ctx context.Context, outcome string, duration time.Duration)
	RecordGatewayFailure(ctx context.Context, operation string)
	RecordPersistFailure(ctx context.Context, operation string)
	RecordBeacon(ctx context.Context, lines int)
}

type noopMetrics struct{}

func (noopMetrics) RecordHydration(context.Context, string)                {}
func (noopMetrics) RecordMigration(context.Context, string, time.Duration) {}
func (noopMetrics) RecordGatewayFailure(context.Context, string)           {}
func (noopMetrics) RecordPersistFailure(context.Context, string)           {}
func (noopMetrics) RecordBeacon(context.Context, int)                      {}
