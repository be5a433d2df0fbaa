package cart

import "strings"

// Key identifies a cart line: a product plus an optional variant.
// The empty VariantID is the "no variant" value.
type Key struct {
	ProductID string
	VariantID string
}

// KeyOf builds a Key. Surrounding whitespace is not significant.
func KeyOf(productID, variantID string) Key {
	return Key{
		ProductID: strings.TrimSpace(productID),
		VariantID: strings.TrimSpace(variantID),
	}
}

// MustKey builds a Key and panics with ErrInvalidKey if productID is empty
func MustKey(productID, variantID string) Key {
	k := KeyOf(productID, variantID)
	k.mustBeValid()
	return k
}

// Matches is the single definition of "same line": strict equality on
// product and variant.
func (k Key) Matches(other Key) bool {
	return k.ProductID == other.ProductID && k.VariantID == other.VariantID
}

// IsValid reports whether the key names a product
func (k Key) IsValid() bool {
	return k.ProductID != ""
}

// HasVariant reports whether the key addresses a specific variant
func (k Key) HasVariant() bool {
	return k.VariantID != ""
}

func (k Key) String() string {
	if k.VariantID == "" {
		return k.ProductID
	}
	return k.ProductID + "/" + k.VariantID
}

func (k Key) mustBeValid() {
	if !k.IsValid() {
		panic(ErrInvalidKey)
	}
}

// ParseKey parses the "product" or "product/variant" form produced by String
func ParseKey(s string) (Key, error) {
	product, variant, _ := strings.Cut(s, "/")
	k := KeyOf(product, variant)
	if !k.IsValid() {
		return Key{}, ErrInvalidKey
	}
	return k, nil
}
