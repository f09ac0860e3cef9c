package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/intelliod/ems/internal/domain"
)

// Models lists every table owned by the service, in dependency order.
func Models() []any {
	return []any{
		&domain.User{},
		&domain.Invitation{},
		&domain.Profile{},
		&domain.Document{},
		&domain.Onboarding{},
		&domain.AuditLog{},
	}
}

// Migrate creates or updates the schema.
func Migrate(ctx context.Context, db *gorm.DB) error {
	if err := db.WithContext(ctx).AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
