package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type InvitationStatus string

const (
	InvitationPending   InvitationStatus = "PENDING"
	InvitationCompleted InvitationStatus = "COMPLETED"
	InvitationExpired   InvitationStatus = "EXPIRED"
)

// Invitation links an email to a temporary credential. At most one
// invitation per email may be in a status other than EXPIRED; the
// partial unique index enforces it.
type Invitation struct {
	ID               string           `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email            string           `gorm:"type:varchar(320);not null;uniqueIndex:idx_invitations_active_email,where:status <> 'EXPIRED'" json:"email"`
	TempPasswordHash string           `gorm:"not null" json:"-"`
	Status           InvitationStatus `gorm:"type:varchar(16);not null;default:'PENDING';index" json:"status"`
	InvitedByID      string           `gorm:"type:varchar(36);not null" json:"invitedById"`
	InvitedBy        *User            `gorm:"foreignKey:InvitedByID" json:"invitedBy,omitempty"`
	UserID           string           `gorm:"type:varchar(36);not null;index" json:"userId"`
	User             *User            `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ExpiresAt        time.Time        `gorm:"not null" json:"expiresAt"`
	SentAt           time.Time        `gorm:"not null" json:"sentAt"`
	CompletedAt      *time.Time       `json:"completedAt,omitempty"`
	CreatedAt        time.Time        `json:"createdAt"`
}

func (i *Invitation) BeforeCreate(tx *gorm.DB) error {
	if i.ID == "" {
		i.ID = uuid.NewString()
	}
	return nil
}

// IsExpired reports whether the invitation can no longer be used at now.
func (i *Invitation) IsExpired(now time.Time) bool {
	if i.Status == InvitationExpired {
		return true
	}
	return !now.Before(i.ExpiresAt)
}

// Blocks reports whether the invitation prevents a new one for the same email.
func (i *Invitation) Blocks(now time.Time) bool {
	return i.Status == InvitationPending && !i.IsExpired(now)
}
