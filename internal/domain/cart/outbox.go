package cart

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// IntentKind is the type of side effect a mutation requests
type IntentKind string

const (
	// IntentPersist asks for the scope's document to be overwritten with Lines
	IntentPersist IntentKind = "persist"
)

// Intent is a side effect recorded by a Store mutation. Lines is a full
// snapshot, so applying intents out of order still leaves a valid document.
type Intent struct {
	ID        uuid.UUID
	Kind      IntentKind
	Scope     Scope
	Lines     []Line
	CreatedAt time.Time
}

// Drainer performs the side effects of drained intents, in order.
// Implementations must absorb their own failures.
type Drainer interface {
	Drain(ctx context.Context, intents []Intent)
}

// DrainerFunc adapts a function to Drainer
type DrainerFunc func(ctx context.Context, intents []Intent)

// Drain implements Drainer
func (f DrainerFunc) Drain(ctx context.Context, intents []Intent) {
	f(ctx, intents)
}

// Outbox is an ordered queue of pending intents
type Outbox struct {
	mu      sync.Mutex
	pending []Intent
}

// NewOutbox creates an empty outbox
func NewOutbox() *Outbox {
	return &Outbox{}
}

// Append enqueues an intent
func (o *Outbox) Append(intent Intent) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pending = append(o.pending, intent)
}

// Take removes and returns every pending intent
func (o *Outbox) Take() []Intent {
	o.mu.Lock()
	defer o.mu.Unlock()
	taken := o.pending
	o.pending = nil
	return taken
}

// TakeExcept removes and returns the pending intents whose scope is not in
// held. Held intents stay queued in order.
func (o *Outbox) TakeExcept(held map[Scope]bool) []Intent {
	if len(held) == 0 {
		return o.Take()
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	var taken, kept []Intent
	for _, in := range o.pending {
		if held[in.Scope] {
			kept = append(kept, in)
		} else {
			taken = append(taken, in)
		}
	}
	o.pending = kept
	return taken
}

// Discard drops the pending intents for scope
func (o *Outbox) Discard(scope Scope) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	kept := o.pending[:0]
	for _, in := range o.pending {
		if in.Scope != scope {
			kept = append(kept, in)
		}
	}
	dropped := len(o.pending) - len(kept)
	clear(o.pending[len(kept):])
	o.pending = kept
	return dropped
}

// Pending returns a copy of the pending intents without removing them
func (o *Outbox) Pending() []Intent {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Intent, len(o.pending))
	copy(out, o.pending)
	return out
}

// Len returns the number of pending intents
func (o *Outbox) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.pending)
}
