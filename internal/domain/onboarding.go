package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type OnboardingStatus string

const (
	OnboardingPending   OnboardingStatus = "PENDING"
	OnboardingSubmitted OnboardingStatus = "SUBMITTED"
	OnboardingApproved  OnboardingStatus = "APPROVED"
	OnboardingRejected  OnboardingStatus = "REJECTED"
)

// Onboarding is the per-user approval workflow record.
//
//	PENDING ──submit──▶ SUBMITTED ──review──▶ APPROVED
//	                     ▲   │
//	                     │   └────review────▶ REJECTED
//	                     └──────submit──────────┘
type Onboarding struct {
	ID              string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID          string           `gorm:"type:varchar(36);uniqueIndex;not null" json:"userId"`
	User            *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Status          OnboardingStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	SubmittedAt     *time.Time       `json:"submittedAt,omitempty"`
	ApprovedAt      *time.Time       `json:"approvedAt,omitempty"`
	RejectedAt      *time.Time       `json:"rejectedAt,omitempty"`
	ReviewedByID    *string          `gorm:"type:varchar(36)" json:"reviewedById,omitempty"`
	Notes           string           `gorm:"type:text" json:"notes,omitempty"`
	RejectionReason string           `gorm:"type:text" json:"rejectionReason,omitempty"`
	CreatedAt       time.Time        `json:"createdAt"`
	UpdatedAt       time.Time        `json:"updatedAt"`
}

func (o *Onboarding) BeforeCreate(tx *gorm.DB) error {
	if o.ID == "" {
		o.ID = uuid.NewString()
	}
	return nil
}

// SubmittableFrom lists the statuses an employee may submit from.
// SUBMITTED refreshes the timestamp; REJECTED starts a new review cycle.
var SubmittableFrom = []OnboardingStatus{OnboardingPending, OnboardingSubmitted, OnboardingRejected}

func (s OnboardingStatus) CanSubmit() bool {
	for _, allowed := range SubmittableFrom {
		if s == allowed {
			return true
		}
	}
	return false
}

func (s OnboardingStatus) CanReview() bool {
	return s == OnboardingSubmitted
}

// ProfileEditable reports whether the owner may still change their profile.
func (s OnboardingStatus) ProfileEditable() bool {
	return s != OnboardingApproved
}
