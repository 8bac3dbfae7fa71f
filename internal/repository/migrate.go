package repository

import (
	"context"

	"gorm.io/gorm"
)

// Migrate creates or updates every table.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(AllModels()...)
}
