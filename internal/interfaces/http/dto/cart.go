package dto

import "github.com/erp/storefront/internal/domain/cart"

// MaxMergeLines bounds a single merge batch
const MaxMergeLines = 500

// CartResponse is the body of GET /cart and POST /cart/merge. It is sent
// without the Response envelope since clients read the cart field directly.
type CartResponse struct {
	Cart []cart.Line `json:"cart"`
}

// NewCartResponse never encodes a nil cart as null
func NewCartResponse(lines []cart.Line) CartResponse {
	if lines == nil {
		lines = []cart.Line{}
	}
	return CartResponse{Cart: lines}
}

// MergeRequest is the body of POST /cart/merge. Interactive clients send
// cartToAdd; the teardown beacon sends the whole cart under cart.
type MergeRequest struct {
	CartToAdd []cart.Line `json:"cartToAdd" binding:"omitempty,max=500"`
	Cart      []cart.Line `json:"cart" binding:"omitempty,max=500"`
}

// Lines returns the batch to merge. It reports false unless exactly one of
// the two fields was present.
func (r MergeRequest) Lines() ([]cart.Line, bool) {
	switch {
	case r.CartToAdd != nil && r.Cart == nil:
		return r.CartToAdd, true
	case r.Cart != nil && r.CartToAdd == nil:
		return r.Cart, true
	default:
		return nil, false
	}
}
