package persistence

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/erp/storefront/internal/domain/cart"
	"github.com/erp/storefront/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// SQLiteCartStore keeps one cart document per scope in a local SQLite file.
// It is the default durable client cache.
type SQLiteCartStore struct {
	db *gorm.DB
}

// NewSQLiteCartStore creates a store over a database opened with OpenSQLite
func NewSQLiteCartStore(db *gorm.DB) *SQLiteCartStore {
	return &SQLiteCartStore{db: db}
}

// Write replaces the scope's document
func (s *SQLiteCartStore) Write(ctx context.Context, scope cart.Scope, lines []cart.Line) error {
	payload, err := cart.EncodeDocument(lines)
	if err != nil {
		return err
	}
	row := models.LocalCartModel{
		StorageKey: scope.StorageKey(),
		Payload:    payload,
		UpdatedAt:  time.Now(),
	}
	err = s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "storage_key"}},
		DoUpdates: clause.AssignmentColumns([]string{"payload", "updated_at"}),
	}).Create(&row).Error
	if err != nil {
		return fmt.Errorf("write cart %s: %w", scope.StorageKey(), err)
	}
	return nil
}

// Read returns the scope's lines, or ErrCartNotFound
func (s *SQLiteCartStore) Read(ctx context.Context, scope cart.Scope) ([]cart.Line, error) {
	var row models.LocalCartModel
	err := s.db.WithContext(ctx).
		Where("storage_key = ?", scope.StorageKey()).
		First(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, cart.ErrCartNotFound
		}
		return nil, fmt.Errorf("read cart %s: %w", scope.StorageKey(), err)
	}
	return cart.DecodeDocument(row.Payload)
}

// Delete removes the scope's document. Deleting a missing record is not an error.
func (s *SQLiteCartStore) Delete(ctx context.Context, scope cart.Scope) error {
	err := s.db.WithContext(ctx).
		Where("storage_key = ?", scope.StorageKey()).
		Delete(&models.LocalCartModel{}).Error
	if err != nil {
		return fmt.Errorf("delete cart %s: %w", scope.StorageKey(), err)
	}
	return nil
}
