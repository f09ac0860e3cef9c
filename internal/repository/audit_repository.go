package repository

import (
	"context"
	"fmt"

	"gorm.io/gorm"

	"github.com/intelliod/ems/internal/domain"
)

// AuditRepository appends to the audit_logs table
type AuditRepository struct {
	db *gorm.DB
}

// NewAuditRepository creates a new audit repository
func NewAuditRepository(db *gorm.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// Append inserts an audit entry
func (r *AuditRepository) Append(ctx context.Context, entry *domain.AuditLog) error {
	if err := conn(ctx, r.db).Create(entry).Error; err != nil {
		return fmt.Errorf("failed to append audit log: %w", mapDatabaseError(err, nil))
	}
	return nil
}

// ListByEntityID returns the history of one record, oldest first
func (r *AuditRepository) ListByEntityID(ctx context.Context, entityID string) ([]domain.AuditLog, error) {
	var entries []domain.AuditLog
	err := conn(ctx, r.db).
		Where("entity_id = ?", entityID).
		Order("created_at ASC").
		Find(&entries).Error
	if err != nil {
		return nil, mapDatabaseError(err, nil)
	}
	return entries, nil
}

func (r *AuditRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	if err := conn(ctx, r.db).Model(&domain.AuditLog{}).Count(&n).Error; err != nil {
		return 0, mapDatabaseError(err, nil)
	}
	return n, nil
}
