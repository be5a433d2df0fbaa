package models

import (
	"time"

	"github.com/erp/storefront/internal/domain/cart"
	"github.com/shopspring/decimal"
)

// CartLineModel is one row of a user's authoritative server cart
type CartLineModel struct {
	ID           string              `gorm:"type:varchar(36);primaryKey"`
	UserID       string              `gorm:"type:varchar(64);not null;uniqueIndex:idx_cart_lines_key,priority:1;index"`
	ProductID    string              `gorm:"type:varchar(64);not null;uniqueIndex:idx_cart_lines_key,priority:2"`
	VariantID    string              `gorm:"type:varchar(64);not null;default:'';uniqueIndex:idx_cart_lines_key,priority:3"`
	Position     int                 `gorm:"not null;default:0"`
	Quantity     int                 `gorm:"not null"`
	UnitPrice    decimal.Decimal     `gorm:"type:decimal(18,4);not null"`
	ListPrice    decimal.NullDecimal `gorm:"type:decimal(18,4)"`
	MaxAvailable *int
	Name         string `gorm:"type:varchar(255)"`
	Color        string `gorm:"type:varchar(64)"`
	Size         string `gorm:"type:varchar(64)"`
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// TableName returns the table name for GORM
func (CartLineModel) TableName() string {
	return "cart_lines"
}

// ToDomain converts the model to a cart line
func (m *CartLineModel) ToDomain() cart.Line {
	return cart.Line{
		ProductID:    m.ProductID,
		VariantID:    m.VariantID,
		Quantity:     m.Quantity,
		UnitPrice:    m.UnitPrice,
		ListPrice:    m.ListPrice,
		MaxAvailable: m.MaxAvailable,
		Name:         m.Name,
		Color:        m.Color,
		Size:         m.Size,
	}
}

// CartLineModelFromDomain builds the row for the line at position
func CartLineModelFromDomain(id, userID string, position int, l cart.Line) *CartLineModel {
	return &CartLineModel{
		ID:           id,
		UserID:       userID,
		ProductID:    l.ProductID,
		VariantID:    l.VariantID,
		Position:     position,
		Quantity:     l.Quantity,
		UnitPrice:    l.UnitPrice,
		ListPrice:    l.ListPrice,
		MaxAvailable: l.MaxAvailable,
		Name:         l.Name,
		Color:        l.Color,
		Size:         l.Size,
	}
}

// LocalCartModel is one scope's cart document in the client-local SQLite cache
type LocalCartModel struct {
	StorageKey string `gorm:"type:varchar(128);primaryKey"`
	Payload    []byte `gorm:"not null"`
	UpdatedAt  time.Time
}

// TableName returns the table name for GORM
func (LocalCartModel) TableName() string {
	return "local_carts"
}
