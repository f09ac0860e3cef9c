package repository

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/intelliod/ems/internal/domain"
)

// UserRepository implements domain.UserRepository using gorm
type UserRepository struct {
	db     *gorm.DB
	logger *slog.Logger
}

// NewUserRepository creates a new user repository
func NewUserRepository(db *gorm.DB, logger *slog.Logger) *UserRepository {
	if logger == nil {
		logger = slog.Default()
	}

	return &UserRepository{
		db:     db,
		logger: logger,
	}
}

// Create creates a new user
func (r *UserRepository) Create(ctx context.Context, user *domain.User) error {
	user.Email = domain.NormalizeEmail(user.Email)
	if err := conn(ctx, r.db).Create(user).Error; err != nil {
		r.logger.Error("failed to create user",
			slog.String("email", user.Email),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("failed to create user: %w", mapDatabaseError(err, nil))
	}
	return nil
}

// GetByID retrieves a user by ID
func (r *UserRepository) GetByID(ctx context.Context, id string) (*domain.User, error) {
	var user domain.User
	if err := conn(ctx, r.db).First(&user, "id = ?", id).Error; err != nil {
		return nil, mapDatabaseError(err, nil)
	}
	return &user, nil
}

// GetByEmail retrieves a user by email regardless of activation state
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := conn(ctx, r.db).First(&user, "email = ?", domain.NormalizeEmail(email)).Error
	if err != nil {
		return nil, mapDatabaseError(err, nil)
	}
	return &user, nil
}

// ResetPlaceholder rewrites an invited user that never logged in
func (r *UserRepository) ResetPlaceholder(ctx context.Context, id, name, passwordHash string) (bool, error) {
	res := conn(ctx, r.db).Model(&domain.User{}).
		Where("id = ? AND is_first_login = ?", id, true).
		Updates(map[string]any{"name": name, "password_hash": passwordHash})
	if res.Error != nil {
		return false, mapDatabaseError(res.Error, nil)
	}
	return res.RowsAffected == 1, nil
}

// CompleteFirstLogin replaces the temporary password exactly once
func (r *UserRepository) CompleteFirstLogin(ctx context.Context, id, passwordHash string) (bool, error) {
	res := conn(ctx, r.db).Model(&domain.User{}).
		Where("id = ? AND is_first_login = ?", id, true).
		Updates(map[string]any{"password_hash": passwordHash, "is_first_login": false})
	if res.Error != nil {
		return false, mapDatabaseError(res.Error, nil)
	}
	return res.RowsAffected == 1, nil
}

// Activate marks the user active and done with first login
func (r *UserRepository) Activate(ctx context.Context, id string) error {
	return r.updateColumns(ctx, id, map[string]any{"is_active": true, "is_first_login": false})
}

// UpdatePassword stores a new password hash
func (r *UserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	return r.updateColumns(ctx, id, map[string]any{"password_hash": passwordHash})
}

// UpdateEmail changes the login email
func (r *UserRepository) UpdateEmail(ctx context.Context, id, email string) error {
	return r.updateColumns(ctx, id, map[string]any{"email": domain.NormalizeEmail(email)})
}

// TouchLastLogin records a successful login
func (r *UserRepository) TouchLastLogin(ctx context.Context, id string, at time.Time) error {
	return r.updateColumns(ctx, id, map[string]any{"last_login_at": at})
}

// ListByRole lists users holding role, oldest first
func (r *UserRepository) ListByRole(ctx context.Context, role domain.Role) ([]domain.User, error) {
	var users []domain.User
	if err := conn(ctx, r.db).Where("role = ?", role).Order("created_at ASC").Find(&users).Error; err != nil {
		return nil, mapDatabaseError(err, nil)
	}
	return users, nil
}

// LockForUpdate selects the user row FOR UPDATE. SQLite has no row locks and
// relies on its single writer instead.
func (r *UserRepository) LockForUpdate(ctx context.Context, id string) error {
	var u domain.User
	err := conn(ctx, r.db).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Select("id").
		First(&u, "id = ?", id).Error
	return mapDatabaseError(err, nil)
}

func (r *UserRepository) updateColumns(ctx context.Context, id string, columns map[string]any) error {
	res := conn(ctx, r.db).Model(&domain.User{}).Where("id = ?", id).Updates(columns)
	if res.Error != nil {
		r.logger.Error("failed to update user",
			slog.String("user_id", id),
			slog.String("error", res.Error.Error()),
		)
		return mapDatabaseError(res.Error, nil)
	}
	if res.RowsAffected == 0 {
		return mapDatabaseError(gorm.ErrRecordNotFound, nil)
	}
	return nil
}
