package cart

import "context"

// PersistenceStore is the durable client-local cache, one partition per scope.
// It never falls back across scopes; a missing record is ErrCartNotFound.
type PersistenceStore interface {
	Write(ctx context.Context, scope Scope, lines []Line) error
	Read(ctx context.Context, scope Scope) ([]Line, error)
	Delete(ctx context.Context, scope Scope) error
}

// Gateway is the remote authoritative cart
type Gateway interface {
	// Fetch returns the server cart of a user scope
	Fetch(ctx context.Context, scope Scope) ([]Line, error)
	// Merge pushes lines into the server cart
	Merge(ctx context.Context, scope Scope, lines []Line) error
	// Beacon sends lines without waiting for a reply. It must not block or panic.
	Beacon(scope Scope, lines []Line)
}

// ServerCartRepository stores the authoritative per-user cart on the server
type ServerCartRepository interface {
	// Load returns the user's lines in order; an unknown user has an empty cart
	Load(ctx context.Context, userID string) ([]Line, error)
	// Save replaces all of the user's lines
	Save(ctx context.Context, userID string, lines []Line) error
}
