package cart

import (
	"encoding/json"

	"github.com/shopspring/decimal"
)

// Line is one purchasable unit in the cart: a product/variant with its
// quantity and the price snapshot taken when it was added.
type Line struct {
	ProductID string
	VariantID string
	Quantity  int
	UnitPrice decimal.Decimal
	ListPrice decimal.NullDecimal
	// MaxAvailable is the last known stock ceiling; nil means unknown and
	// the quantity is never clamped.
	MaxAvailable *int

	// Display fields cached at add time
	Name  string
	Color string
	Size  string
}

// LineInput is the argument of Store.Add
type LineInput struct {
	ProductID string
	VariantID string
	// Quantity is the requested increment. Zero means one.
	Quantity     int
	UnitPrice    decimal.Decimal
	ListPrice    decimal.NullDecimal
	MaxAvailable *int
	Name         string
	Color        string
	Size         string
}

// Key returns the line's identity
func (l Line) Key() Key {
	return Key{ProductID: l.ProductID, VariantID: l.VariantID}
}

// Key returns the identity of the line the input would create or update
func (in LineInput) Key() Key {
	return KeyOf(in.ProductID, in.VariantID)
}

// Subtotal returns UnitPrice * Quantity, unrounded
func (l Line) Subtotal() decimal.Decimal {
	return l.UnitPrice.Mul(decimal.NewFromInt(int64(l.Quantity)))
}

// Clone returns a copy that shares no memory with l
func (l Line) Clone() Line {
	l.MaxAvailable = copyInt(l.MaxAvailable)
	return l
}

// Clamped reports whether the quantity has reached the known ceiling
func (l Line) Clamped() bool {
	return l.MaxAvailable != nil && l.Quantity >= *l.MaxAvailable
}

type lineJSON struct {
	ProductID    string              `json:"productId"`
	VariantID    *string             `json:"variantId"`
	Quantity     int                 `json:"quantity"`
	UnitPrice    decimal.Decimal     `json:"unitPrice"`
	ListPrice    decimal.NullDecimal `json:"listPrice"`
	MaxAvailable *int                `json:"maxAvailable"`
	Name         string              `json:"name,omitempty"`
	Color        string              `json:"color,omitempty"`
	Size         string              `json:"size,omitempty"`
}

// MarshalJSON encodes the line in the storage/wire shape. An empty variant
// is written as null.
func (l Line) MarshalJSON() ([]byte, error) {
	v := lineJSON{
		ProductID:    l.ProductID,
		Quantity:     l.Quantity,
		UnitPrice:    l.UnitPrice,
		ListPrice:    l.ListPrice,
		MaxAvailable: l.MaxAvailable,
		Name:         l.Name,
		Color:        l.Color,
		Size:         l.Size,
	}
	if l.VariantID != "" {
		variant := l.VariantID
		v.VariantID = &variant
	}
	return json.Marshal(v)
}

// UnmarshalJSON implements json.Unmarshaler
func (l *Line) UnmarshalJSON(data []byte) error {
	var v lineJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*l = Line{
		ProductID:    v.ProductID,
		Quantity:     v.Quantity,
		UnitPrice:    v.UnitPrice,
		ListPrice:    v.ListPrice,
		MaxAvailable: v.MaxAvailable,
		Name:         v.Name,
		Color:        v.Color,
		Size:         v.Size,
	}
	if v.VariantID != nil {
		l.VariantID = *v.VariantID
	}
	return nil
}

func copyInt(p *int) *int {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

// IntPtr is a convenience for building a known stock ceiling
func IntPtr(v int) *int {
	return &v
}
