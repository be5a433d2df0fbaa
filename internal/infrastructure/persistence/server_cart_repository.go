package persistence

import (
	"context"
	"fmt"

	"github.com/erp/storefront/internal/domain/cart"
	"github.com/erp/storefront/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormServerCartRepository implements cart.ServerCartRepository using GORM
type GormServerCartRepository struct {
	db *gorm.DB
}

// NewGormServerCartRepository creates a new GormServerCartRepository
func NewGormServerCartRepository(db *gorm.DB) *GormServerCartRepository {
	return &GormServerCartRepository{db: db}
}

// Load returns the user's lines ordered by position
func (r *GormServerCartRepository) Load(ctx context.Context, userID string) ([]cart.Line, error) {
	var rows []models.CartLineModel
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("position ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("load server cart: %w", err)
	}
	lines := make([]cart.Line, len(rows))
	for i := range rows {
		lines[i] = rows[i].ToDomain()
	}
	return lines, nil
}

// Save replaces every line of the user's cart in one transaction
func (r *GormServerCartRepository) Save(ctx context.Context, userID string, lines []cart.Line) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&models.CartLineModel{}).Error; err != nil {
			return fmt.Errorf("clear server cart: %w", err)
		}
		if len(lines) == 0 {
			return nil
		}
		rows := make([]*models.CartLineModel, len(lines))
		for i, l := range lines {
			rows[i] = models.CartLineModelFromDomain(uuid.NewString(), userID, i, l)
		}
		if err := tx.CreateInBatches(rows, 100).Error; err != nil {
			return fmt.Errorf("save server cart: %w", err)
		}
		return nil
	})
}
