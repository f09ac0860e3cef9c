package domain

import (
	"context"
	"time"
)

// UserRepository defines user data access operations
type UserRepository interface {
	Create(ctx context.Context, user *User) error
	GetByID(ctx context.Context, id string) (*User, error)
	GetByEmail(ctx context.Context, email string) (*User, error)
	// ResetPlaceholder replaces name and temporary password of a user that
	// has not completed first login yet. It reports false when the user is
	// no longer a placeholder.
	ResetPlaceholder(ctx context.Context, id, name, passwordHash string) (bool, error)
	// CompleteFirstLogin swaps the password and clears is_first_login only if
	// it is still set.
	CompleteFirstLogin(ctx context.Context, id, passwordHash string) (bool, error)
	Activate(ctx context.Context, id string) error
	UpdatePassword(ctx context.Context, id, passwordHash string) error
	UpdateEmail(ctx context.Context, id, email string) error
	TouchLastLogin(ctx context.Context, id string, at time.Time) error
	ListByRole(ctx context.Context, role Role) ([]User, error)
	// LockForUpdate takes a row lock on the user until the surrounding
	// transaction ends. It serialises per-user writes such as uploads.
	LockForUpdate(ctx context.Context, id string) error
}

// InvitationRepository defines invitation data access operations
type InvitationRepository interface {
	Create(ctx context.Context, inv *Invitation) error
	LatestByEmail(ctx context.Context, email string) (*Invitation, error)
	LatestByUserID(ctx context.Context, userID string) (*Invitation, error)
	List(ctx context.Context) ([]Invitation, error)
	MarkCompleted(ctx context.Context, id string, at time.Time) error
	// MarkExpired moves a PENDING invitation to EXPIRED. It reports false
	// when the invitation was not pending anymore.
	MarkExpired(ctx context.Context, id string) (bool, error)
	ListPendingExpiredBefore(ctx context.Context, now time.Time) ([]Invitation, error)
}

// ProfileRepository defines profile data access operations
type ProfileRepository interface {
	Create(ctx context.Context, profile *Profile) error
	GetByUserID(ctx context.Context, userID string) (*Profile, error)
	Save(ctx context.Context, profile *Profile) error
}

// DocumentRepository defines document metadata access operations
type DocumentRepository interface {
	Create(ctx context.Context, doc *Document) error
	ListByUser(ctx context.Context, userID string) ([]Document, error)
	CountByUserAndType(ctx context.Context, userID string, docType DocumentType) (int64, error)
	GetByFilePath(ctx context.Context, filePath string) (*Document, error)
}

// OnboardingRepository defines onboarding data access operations
type OnboardingRepository interface {
	Create(ctx context.Context, ob *Onboarding) error
	GetByID(ctx context.Context, id string) (*Onboarding, error)
	GetByUserID(ctx context.Context, userID string) (*Onboarding, error)
	// Submit sets status SUBMITTED if the current status is one of from.
	Submit(ctx context.Context, id string, from []OnboardingStatus, at time.Time) (bool, error)
	// Review moves a SUBMITTED onboarding to APPROVED or REJECTED.
	Review(ctx context.Context, id string, decision ReviewDecision) (bool, error)
	ListByStatus(ctx context.Context, status OnboardingStatus) ([]Onboarding, error)
}

// ReviewDecision carries the fields written by a review transition.
type ReviewDecision struct {
	Status          OnboardingStatus
	ReviewerID      string
	At              time.Time
	Notes           string
	RejectionReason string
}

// AuditRepository appends and reads audit entries
type AuditRepository interface {
	Append(ctx context.Context, entry *AuditLog) error
	ListByEntityID(ctx context.Context, entityID string) ([]AuditLog, error)
	Count(ctx context.Context) (int64, error)
}

// Transactor runs fn inside a transaction carried by the context passed to
// it. Repository calls made with that context join the transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
