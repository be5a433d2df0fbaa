package telemetry

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel/metric"
)

// ErrMeterNil is returned when a metrics set is created without a meter
var ErrMeterNil = errors.New("telemetry: meter cannot be nil")

// CartMetrics records the sync engine's operational signals. It satisfies
// cartsync.Metrics.
type CartMetrics struct {
	hydrations        *Counter
	migrations        *Counter
	migrationDuration *Histogram
	gatewayFailures   *Counter
	persistFailures   *Counter
	beacons           *Counter
	beaconLines       *Counter
}

// NewCartMetrics creates the cart instruments on meter
func NewCartMetrics(meter metric.Meter) (*CartMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	var (
		m   CartMetrics
		err error
	)
	if m.hydrations, err = NewCounter(meter, "cart_hydration_total",
		"Cart hydrations by source", "{hydration}"); err != nil {
		return nil, err
	}
	if m.migrations, err = NewCounter(meter, "cart_migration_total",
		"Guest to user cart migrations by outcome", "{migration}"); err != nil {
		return nil, err
	}
	if m.migrationDuration, err = NewHistogram(meter, HistogramOpts{
		Name:        "cart_migration_duration_seconds",
		Description: "Time from migration start to merged cart applied",
		Unit:        "s",
		Boundaries:  NetworkDurationBuckets,
	}); err != nil {
		return nil, err
	}
	if m.gatewayFailures, err = NewCounter(meter, "cart_gateway_failure_total",
		"Failed round trips to the cart service", "{failure}"); err != nil {
		return nil, err
	}
	if m.persistFailures, err = NewCounter(meter, "cart_persist_failure_total",
		"Swallowed local persistence failures", "{failure}"); err != nil {
		return nil, err
	}
	if m.beacons, err = NewCounter(meter, "cart_beacon_total",
		"Teardown beacons issued", "{beacon}"); err != nil {
		return nil, err
	}
	if m.beaconLines, err = NewCounter(meter, "cart_beacon_lines_total",
		"Cart lines carried by teardown beacons", "{line}"); err != nil {
		return nil, err
	}
	return &m, nil
}

// RecordHydration counts a hydration by where the cart came from
func (m *CartMetrics) RecordHydration(ctx context.Context, source string) {
	m.hydrations.Inc(ctx, AttrSource.String(source))
}

// RecordMigration counts a migration and its latency
func (m *CartMetrics) RecordMigration(ctx context.Context, outcome string, duration time.Duration) {
	m.migrations.Inc(ctx, AttrOutcome.String(outcome))
	m.migrationDuration.RecordDuration(ctx, duration, AttrOutcome.String(outcome))
}

// RecordGatewayFailure counts a failed fetch or merge
func (m *CartMetrics) RecordGatewayFailure(ctx context.Context, operation string) {
	m.gatewayFailures.Inc(ctx, AttrOperation.String(operation))
}

// RecordPersistFailure counts a swallowed persistence error
func (m *CartMetrics) RecordPersistFailure(ctx context.Context, operation string) {
	m.persistFailures.Inc(ctx, AttrOperation.String(operation))
}

// RecordBeacon counts a teardown beacon and the lines it carried
func (m *CartMetrics) RecordBeacon(ctx context.Context, lines int) {
	m.beacons.Inc(ctx)
	m.beaconLines.Add(ctx, int64(lines))
}
