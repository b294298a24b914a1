package content

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// Repository stores content entities.
type Repository interface {
	// FindByLogicalKey returns nil, nil when no entity exists.
	FindByLogicalKey(ctx context.Context, bundle, logicalKey string) (*Entity, error)
	// Create reports false when another writer created the same logical key first.
	Create(ctx context.Context, e *Entity) (bool, error)
	Update(ctx context.Context, e *Entity) error
}

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a content repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

// Migrate creates or updates the content table.
func Migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&Entity{}); err != nil {
		return fmt.Errorf("failed to migrate content store: %w", err)
	}
	return nil
}

func (r *gormRepository) FindByLogicalKey(ctx context.Context, bundle, logicalKey string) (*Entity, error) {
	var e Entity
	err := r.db.WithContext(ctx).
		Where("bundle = ? AND logical_key = ?", bundle, logicalKey).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &e, nil
}

func (r *gormRepository) Create(ctx context.Context, e *Entity) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{
			{Name: "bundle"},
			{Name: "logical_key"},
		},
		DoNothing: true,
	}).Create(e)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) Update(ctx context.Context, e *Entity) error {
	if e.ID == 0 {
		return fmt.Errorf("cannot update content entity without id")
	}
	return r.db.WithContext(ctx).
		Model(e).
		Select("uuid", "title", "url", "fields", "content_hash", "provider_id", "user_id", "revision_log", "updated_at").
		Updates(e).Error
}
