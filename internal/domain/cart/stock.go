package cart

import (
	"math"

	"github.com/shopspring/decimal"
)

// Variant is a color/size combination of a product
type Variant struct {
	ID    string
	Color string
	Size  string
	// Quantity is the variant's remaining stock; nil when unknown
	Quantity *int
}

// Product is the slice of catalog data the cart needs
type Product struct {
	ID        string
	Name      string
	Price     decimal.Decimal
	ListPrice decimal.NullDecimal
	// HasVariants is set when the product is sold per variant even if the
	// variant list was not loaded.
	HasVariants bool
	Variants    []Variant
	// TotalStock is the aggregate stock across variants; nil when unknown
	TotalStock *int
}

// RequiresVariant reports whether a variant must be chosen to buy the product
func (p *Product) RequiresVariant() bool {
	return p.HasVariants || len(p.Variants) > 0
}

// Variant looks up a variant by ID
func (p *Product) Variant(id string) (*Variant, bool) {
	for i := range p.Variants {
		if p.Variants[i].ID == id {
			return &p.Variants[i], true
		}
	}
	return nil, false
}

// Catalog is the stock collaborator. A missing product means "no information".
type Catalog interface {
	Product(id string) (*Product, bool)
}

// StockResolver determines the maximum purchasable quantity of a line.
type StockResolver struct {
	catalog Catalog
}

// NewStockResolver creates a resolver. A nil catalog resolves only explicit ceilings.
func NewStockResolver(catalog Catalog) *StockResolver {
	return &StockResolver{catalog: catalog}
}

// Resolve returns the stock ceiling for the input, highest precedence first:
// the explicit MaxAvailable, the matching variant's quantity, the product's
// aggregate stock. It returns nil when nothing is known, which callers must
// treat as "do not clamp". The result never aliases caller or catalog memory.
func (r *StockResolver) Resolve(in LineInput) *int {
	if in.MaxAvailable != nil {
		return nonNegative(*in.MaxAvailable)
	}
	product, ok := r.product(in.ProductID)
	if !ok {
		return nil
	}
	if in.VariantID != "" {
		if v, ok := product.Variant(in.VariantID); ok && v.Quantity != nil {
			return nonNegative(*v.Quantity)
		}
	}
	if product.TotalStock != nil {
		return nonNegative(*product.TotalStock)
	}
	return nil
}

// Accepts applies add-time validation against the catalog. Unknown products
// are accepted as-is.
func (r *StockResolver) Accepts(in LineInput) bool {
	product, ok := r.product(in.ProductID)
	if !ok || !product.RequiresVariant() {
		return true
	}
	if in.VariantID == "" {
		return false
	}
	if len(product.Variants) == 0 {
		return true
	}
	_, known := product.Variant(in.VariantID)
	return known
}

// Describe fills price and display fields the caller left empty from the
// catalog snapshot.
func (r *StockResolver) Describe(in LineInput) LineInput {
	product, ok := r.product(in.ProductID)
	if !ok {
		return in
	}
	if in.Name == "" {
		in.Name = product.Name
	}
	if in.UnitPrice.IsZero() {
		in.UnitPrice = product.Price
	}
	if !in.ListPrice.Valid {
		in.ListPrice = product.ListPrice
	}
	if v, ok := product.Variant(in.VariantID); ok {
		if in.Color == "" {
			in.Color = v.Color
		}
		if in.Size == "" {
			in.Size = v.Size
		}
	}
	return in
}

func (r *StockResolver) product(id string) (*Product, bool) {
	if r == nil || r.catalog == nil {
		return nil, false
	}
	return r.catalog.Product(id)
}

func nonNegative(v int) *int {
	if v < 0 {
		v = 0
	}
	return &v
}

// clamp limits q to [0, ceiling]; a nil ceiling leaves q unbounded above.
func clamp(q int, ceiling *int) int {
	if q < 0 {
		q = 0
	}
	if ceiling != nil && q > *ceiling {
		q = *ceiling
	}
	return q
}

// addQuantity sums two non-negative quantities, saturating at math.MaxInt
func addQuantity(a, b int) int {
	if b > math.MaxInt-a {
		return math.MaxInt
	}
	return a + b
}
