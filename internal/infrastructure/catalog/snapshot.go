// Package catalog loads the stock collaborator from a YAML catalog snapshot.
package catalog

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/erp/storefront/internal/domain/cart"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// Errors returned by the catalog package
var (
	ErrInvalidCatalog  = errors.New("catalog: invalid snapshot")
	ErrCatalogNotFound = errors.New("catalog: snapshot file not found")
)

type fileVariant struct {
	ID       string `yaml:"id"`
	Color    string `yaml:"color,omitempty"`
	Size     string `yaml:"size,omitempty"`
	Quantity *int   `yaml:"quantity,omitempty"`
}

type fileProduct struct {
	ID          string        `yaml:"id"`
	Name        string        `yaml:"name"`
	Price       string        `yaml:"price"`
	ListPrice   string        `yaml:"listPrice,omitempty"`
	HasVariants bool          `yaml:"hasVariants,omitempty"`
	TotalStock  *int          `yaml:"totalStock,omitempty"`
	Variants    []fileVariant `yaml:"variants,omitempty"`
}

type file struct {
	Products []fileProduct `yaml:"products"`
}

// Snapshot is an immutable in-memory catalog. It implements cart.Catalog.
type Snapshot struct {
	products map[string]cart.Product
	order    []string
}

// LoadFile reads a snapshot from a YAML file
func LoadFile(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrCatalogNotFound, path)
		}
		return nil, fmt.Errorf("reading catalog file: %w", err)
	}
	return Parse(data)
}

// Parse reads a snapshot from YAML bytes
func Parse(data []byte) (*Snapshot, error) {
	var f file
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	s := &Snapshot{products: make(map[string]cart.Product, len(f.Products))}
	for i, fp := range f.Products {
		p, err := fp.toProduct()
		if err != nil {
			return nil, fmt.Errorf("%w: products[%d]: %v", ErrInvalidCatalog, i, err)
		}
		if _, dup := s.products[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate product %q", ErrInvalidCatalog, p.ID)
		}
		s.products[p.ID] = p
		s.order = append(s.order, p.ID)
	}
	return s, nil
}

// Product implements cart.Catalog. The returned product is a copy.
func (s *Snapshot) Product(id string) (*cart.Product, bool) {
	p, ok := s.products[id]
	if !ok {
		return nil, false
	}
	out := p
	out.Variants = append([]cart.Variant(nil), p.Variants...)
	return &out, true
}

// Products returns every product in file order
func (s *Snapshot) Products() []cart.Product {
	out := make([]cart.Product, 0, len(s.order))
	for _, id := range s.order {
		p, _ := s.Product(id)
		out = append(out, *p)
	}
	return out
}

// Len returns the number of products
func (s *Snapshot) Len() int {
	return len(s.products)
}

func (fp fileProduct) toProduct() (cart.Product, error) {
	id := strings.TrimSpace(fp.ID)
	if id == "" {
		return cart.Product{}, errors.New("id is required")
	}
	price, err := parsePrice(fp.Price)
	if err != nil {
		return cart.Product{}, fmt.Errorf("price: %w", err)
	}
	p := cart.Product{
		ID:          id,
		Name:        fp.Name,
		Price:       price,
		HasVariants: fp.HasVariants,
		TotalStock:  fp.TotalStock,
	}
	if fp.ListPrice != "" {
		lp, err := parsePrice(fp.ListPrice)
		if err != nil {
			return cart.Product{}, fmt.Errorf("listPrice: %w", err)
		}
		p.ListPrice = decimal.NewNullDecimal(lp)
	}

	seen := make(map[string]struct{}, len(fp.Variants))
	for _, fv := range fp.Variants {
		vid := strings.TrimSpace(fv.ID)
		if vid == "" {
			return cart.Product{}, errors.New("variant id is required")
		}
		if _, dup := seen[vid]; dup {
			return cart.Product{}, fmt.Errorf("duplicate variant %q", vid)
		}
		seen[vid] = struct{}{}
		p.Variants = append(p.Variants, cart.Variant{
			ID:       vid,
			Color:    fv.Color,
			Size:     fv.Size,
			Quantity: fv.Quantity,
		})
	}
	return p, nil
}

func parsePrice(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, err
	}
	if d.IsNegative() {
		return decimal.Zero, errors.New("must not be negative")
	}
	return d, nil
}
