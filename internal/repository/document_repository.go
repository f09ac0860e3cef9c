package repository

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/intelliod/ems/internal/domain"
)

// DocumentRepository implements domain.DocumentRepository using gorm
type DocumentRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewDocumentRepository creates a new document repository
func NewDocumentRepository(db *gorm.DB, logger *slog.Logger) *DocumentRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &DocumentRepository{db: db, logger: logger}
}

// Create stores document metadata
func (r *DocumentRepository) Create(ctx context.Context, doc *domain.Document) error {
	if err := conn(ctx, r.db).Create(doc).Error; err != nil {
		return fmt.Errorf("failed to create document: %w", mapDatabaseError(err, nil))
	}
	return nil
}

// ListByUser returns a user's documents, newest first
func (r *DocumentRepository) ListByUser(ctx context.Context, userID string) ([]domain.Document, error) {
	var docs []domain.Document
	err := conn(ctx, r.db).
		Where("user_id = ?", userID).
		Order("uploaded_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, mapDatabaseError(err, nil)
	}
	return docs, nil
}

// CountByUserAndType counts a user's documents of one type
func (r *DocumentRepository) CountByUserAndType(ctx context.Context, userID string, docType domain.DocumentType) (int64, error) {
	var count int64
	err := conn(ctx, r.db).Model(&domain.Document{}).
		Where("user_id = ? AND type = ?", userID, docType).
		Count(&count).Error
	if err != nil {
		return 0, mapDatabaseError(err, nil)
	}
	return count, nil
}

// GetByFilePath finds the metadata of a stored file
func (r *DocumentRepository) GetByFilePath(ctx context.Context, filePath string) (*domain.Document, error) {
	var doc domain.Document
	if err := conn(ctx, r.db).First(&doc, "file_path = ?", filePath).Error; err != nil {
		return nil, mapDatabaseError(err, nil)
	}
	return &doc, nil
}
