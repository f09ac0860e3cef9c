package repository

import (
	"context"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/intelliod/ems/internal/domain"
)

// ProfileRepository implements domain.ProfileRepository using gorm
type ProfileRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewProfileRepository creates a new profile repository
func NewProfileRepository(db *gorm.DB, logger *slog.Logger) *ProfileRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileRepository{db: db, logger: logger}
}

// Create inserts a profile; the employee id is generated on insert when empty
func (r *ProfileRepository) Create(ctx context.Context, profile *domain.Profile) error {
	if err := conn(ctx, r.db).Create(profile).Error; err != nil {
		return fmt.Errorf("failed to create profile: %w", mapDatabaseError(err, nil))
	}
	return nil
}

// GetByUserID retrieves the profile owned by userID
func (r *ProfileRepository) GetByUserID(ctx context.Context, userID string) (*domain.Profile, error) {
	var profile domain.Profile
	if err := conn(ctx, r.db).First(&profile, "user_id = ?", userID).Error; err != nil {
		return nil, mapDatabaseError(err, nil)
	}
	return &profile, nil
}

// Save writes every column of an existing profile
func (r *ProfileRepository) Save(ctx context.Context, profile *domain.Profile) error {
	if err := conn(ctx, r.db).Save(profile).Error; err != nil {
		r.logger.Error("failed to save profile",
			slog.String("user_id", profile.UserID),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to save profile: %w", mapDatabaseError(err, nil))
	}
	return nil
}
