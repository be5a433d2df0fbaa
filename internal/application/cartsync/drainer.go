package cartsync

import (
	"context"
	"time"

	"github.com/erp/storefront/internal/domain/cart"
	"go.uber.org/zap"
)

// PersistDrainer applies persist intents to a PersistenceStore. Write
// failures are logged and swallowed; the in-memory cart stays authoritative.
type PersistDrainer struct {
	persist cart.PersistenceStore
	logger  *zap.Logger
	metrics Metrics
	timeout time.Duration
}

// NewPersistDrainer creates a drainer writing through persist
func NewPersistDrainer(persist cart.PersistenceStore, logger *zap.Logger, metrics Metrics, timeout time.Duration) *PersistDrainer {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = noopMetrics{}
	}
	if timeout <= 0 {
		timeout = defaultPersistTimeout
	}
	return &PersistDrainer{persist: persist, logger: logger, metrics: metrics, timeout: timeout}
}

// Drain writes each scope's snapshots in order. A snapshot superseded by a
// later one for the same scope in the same batch is skipped.
func (d *PersistDrainer) Drain(ctx context.Context, intents []cart.Intent) {
	last := make(map[cart.Scope]int, 1)
	for i, in := range intents {
		if in.Kind == cart.IntentPersist {
			last[in.Scope] = i
		}
	}

	for i, in := range intents {
		if in.Kind != cart.IntentPersist || last[in.Scope] != i {
			continue
		}
		writeCtx, cancel := context.WithTimeout(ctx, d.timeout)
		err := d.persist.Write(writeCtx, in.Scope, in.Lines)
		cancel()
		if err != nil {
			d.logger.Warn("cart persistence write failed",
				zap.String("scope", in.Scope.String()),
				zap.String("intent_id", in.ID.String()),
				zap.Int("lines", len(in.Lines)),
				zap.Error(err),
			)
			d.metrics.RecordPersistFailure(ctx, "write")
		}
	}
}
