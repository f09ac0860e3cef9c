package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/intelliod/ems/internal/domain"
)

// OnboardingRepository implements domain.OnboardingRepository using gorm.
// Status changes are conditional updates on the current status, so two
// concurrent reviewers cannot both succeed.
type OnboardingRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewOnboardingRepository creates a new onboarding repository
func NewOnboardingRepository(db *gorm.DB, logger *slog.Logger) *OnboardingRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &OnboardingRepository{db: db, logger: logger}
}

// Create inserts an onboarding record
func (r *OnboardingRepository) Create(ctx context.Context, ob *domain.Onboarding) error {
	if err := conn(ctx, r.db).Create(ob).Error; err != nil {
		return fmt.Errorf("failed to create onboarding: %w", mapDatabaseError(err, nil))
	}
	return nil
}

// GetByID retrieves an onboarding by ID
func (r *OnboardingRepository) GetByID(ctx context.Context, id string) (*domain.Onboarding, error) {
	var ob domain.Onboarding
	if err := conn(ctx, r.db).First(&ob, "id = ?", id).Error; err != nil {
		return nil, mapDatabaseError(err, nil)
	}
	return &ob, nil
}

// GetByUserID retrieves the onboarding owned by userID
func (r *OnboardingRepository) GetByUserID(ctx context.Context, userID string) (*domain.Onboarding, error) {
	var ob domain.Onboarding
	if err := conn(ctx, r.db).First(&ob, "user_id = ?", userID).Error; err != nil {
		return nil, mapDatabaseError(err, nil)
	}
	return &ob, nil
}

// Submit moves the record to SUBMITTED and clears any previous review
func (r *OnboardingRepository) Submit(ctx context.Context, id string, from []domain.OnboardingStatus, at time.Time) (bool, error) {
	res := conn(ctx, r.db).Model(&domain.Onboarding{}).
		Where("id = ? AND status IN ?", id, from).
		Updates(map[string]any{
			"status":           domain.OnboardingSubmitted,
			"submitted_at":     at,
			"rejected_at":      nil,
			"rejection_reason": "",
			"reviewed_by_id":   nil,
			"notes":            "",
		})
	if res.Error != nil {
		return false, mapDatabaseError(res.Error, nil)
	}
	return res.RowsAffected == 1, nil
}

// Review applies an approval or rejection to a SUBMITTED record
func (r *OnboardingRepository) Review(ctx context.Context, id string, d domain.ReviewDecision) (bool, error) {
	columns := map[string]any{
		"status":         d.Status,
		"reviewed_by_id": d.ReviewerID,
		"notes":          d.Notes,
	}
	switch d.Status {
	case domain.OnboardingApproved:
		columns["approved_at"] = d.At
	case domain.OnboardingRejected:
		columns["rejected_at"] = d.At
		columns["rejection_reason"] = d.RejectionReason
	default:
		return false, fmt.Errorf("review cannot set status %s", d.Status)
	}

	res := conn(ctx, r.db).Model(&domain.Onboarding{}).
		Where("id = ? AND status = ?", id, domain.OnboardingSubmitted).
		Updates(columns)
	if res.Error != nil {
		r.logger.Error("failed to review onboarding",
			slog.String("onboarding_id", id),
			slog.String("error", res.Error.Error()),
		)
		return false, mapDatabaseError(res.Error, nil)
	}
	return res.RowsAffected == 1, nil
}

// ListByStatus returns onboardings in status with their users, most recently
// submitted first
func (r *OnboardingRepository) ListByStatus(ctx context.Context, status domain.OnboardingStatus) ([]domain.Onboarding, error) {
	var obs []domain.Onboarding
	err := conn(ctx, r.db).
		Preload("User").
		Where("status = ?", status).
		Order("submitted_at DESC").
		Find(&obs).Error
	if err != nil {
		return nil, mapDatabaseError(err, nil)
	}
	return obs, nil
}
