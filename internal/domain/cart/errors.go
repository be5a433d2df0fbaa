package cart

import "github.com/erp/storefront/internal/domain/shared"

// Cart domain errors
var (
	// ErrCartNotFound is returned by a PersistenceStore when a scope has no record
	ErrCartNotFound = shared.NewDomainError("CART_NOT_FOUND", "No cart stored for scope")
	// ErrInvalidKey marks a malformed CartKey. It is raised as a panic because
	// only a programming error can produce one.
	ErrInvalidKey = shared.NewDomainError("INVALID_CART_KEY", "Cart key requires a product ID")
	// ErrInvalidDocument is returned when a stored cart cannot be decoded
	ErrInvalidDocument = shared.NewDomainError("INVALID_CART_DOCUMENT", "Stored cart document is malformed")
)
