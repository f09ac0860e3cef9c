package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"

	"github.com/intelliod/ems/internal/domain"
)

// InvitationRepository implements domain.InvitationRepository using gorm
type InvitationRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewInvitationRepository creates a new invitation repository
func NewInvitationRepository(db *gorm.DB, logger *slog.Logger) *InvitationRepository {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvitationRepository{db: db, logger: logger}
}

// Create stores an invitation. A second non-expired invitation for the same
// email violates idx_invitations_active_email and surfaces as a conflict.
func (r *InvitationRepository) Create(ctx context.Context, inv *domain.Invitation) error {
	inv.Email = domain.NormalizeEmail(inv.Email)
	if err := conn(ctx, r.db).Create(inv).Error; err != nil {
		return fmt.Errorf("failed to create invitation: %w", mapDatabaseError(err, nil))
	}
	return nil
}

// LatestByEmail returns the most recent invitation sent to email
func (r *InvitationRepository) LatestByEmail(ctx context.Context, email string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := conn(ctx, r.db).
		Where("email = ?", domain.NormalizeEmail(email)).
		Order("created_at DESC").
		First(&inv).Error
	if err != nil {
		return nil, mapDatabaseError(err, nil)
	}
	return &inv, nil
}

// LatestByUserID returns the most recent invitation for an invited user
func (r *InvitationRepository) LatestByUserID(ctx context.Context, userID string) (*domain.Invitation, error) {
	var inv domain.Invitation
	err := conn(ctx, r.db).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		First(&inv).Error
	if err != nil {
		return nil, mapDatabaseError(err, nil)
	}
	return &inv, nil
}

// List returns all invitations newest first with inviter and invitee loaded
func (r *InvitationRepository) List(ctx context.Context) ([]domain.Invitation, error) {
	var invitations []domain.Invitation
	err := conn(ctx, r.db).
		Preload("InvitedBy").
		Preload("User").
		Order("created_at DESC").
		Find(&invitations).Error
	if err != nil {
		return nil, mapDatabaseError(err, nil)
	}
	return invitations, nil
}

// MarkCompleted closes a pending invitation after first login
func (r *InvitationRepository) MarkCompleted(ctx context.Context, id string, at time.Time) error {
	res := conn(ctx, r.db).Model(&domain.Invitation{}).
		Where("id = ? AND status = ?", id, domain.InvitationPending).
		Updates(map[string]any{"status": domain.InvitationCompleted, "completed_at": at})
	if res.Error != nil {
		return mapDatabaseError(res.Error, nil)
	}
	if res.RowsAffected == 0 {
		return mapDatabaseError(gorm.ErrRecordNotFound, nil)
	}
	return nil
}

// MarkExpired transitions PENDING to EXPIRED
func (r *InvitationRepository) MarkExpired(ctx context.Context, id string) (bool, error) {
	res := conn(ctx, r.db).Model(&domain.Invitation{}).
		Where("id = ? AND status = ?", id, domain.InvitationPending).
		Update("status", domain.InvitationExpired)
	if res.Error != nil {
		return false, mapDatabaseError(res.Error, nil)
	}
	return res.RowsAffected == 1, nil
}

// ListPendingExpiredBefore finds invitations still PENDING whose expiry passed
func (r *InvitationRepository) ListPendingExpiredBefore(ctx context.Context, now time.Time) ([]domain.Invitation, error) {
	var invitations []domain.Invitation
	err := conn(ctx, r.db).
		Where("status = ? AND expires_at <= ?", domain.InvitationPending, now).
		Order("expires_at ASC").
		Find(&invitations).Error
	if err != nil {
		r.logger.Error("failed to list expired invitations", slog.String("error", err.Error()))
		return nil, mapDatabaseError(err, nil)
	}
	return invitations, nil
}
