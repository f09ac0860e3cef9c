package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type AuditAction string

const (
	ActionInviteEmployee   AuditAction = "INVITE_EMPLOYEE"
	ActionFirstTimeLogin   AuditAction = "FIRST_TIME_LOGIN"
	ActionUpdateProfile    AuditAction = "UPDATE_PROFILE"
	ActionUploadDocument   AuditAction = "UPLOAD_DOCUMENT"
	ActionSubmitOnboarding AuditAction = "SUBMIT_ONBOARDING"
	ActionApproveEmployee  AuditAction = "APPROVE_EMPLOYEE"
	ActionRejectEmployee   AuditAction = "REJECT_EMPLOYEE"
	ActionExpireInvitation AuditAction = "EXPIRE_INVITATION"
	ActionLogout           AuditAction = "LOGOUT"
)

const (
	EntityUser       = "User"
	EntityInvitation = "Invitation"
	EntityProfile    = "EmployeeProfile"
	EntityDocument   = "Document"
	EntityOnboarding = "EmployeeOnboarding"
)

// AuditLog rows are insert-only.
type AuditLog struct {
	ID        string         `gorm:"type:varchar(36);primaryKey" json:"id"`
	ActorID   *string        `gorm:"type:varchar(36);index" json:"actorId,omitempty"`
	Action    AuditAction    `gorm:"type:varchar(32);not null;index" json:"action"`
	Entity    string         `gorm:"type:varchar(32);not null" json:"entity"`
	EntityID  string         `gorm:"type:varchar(36);not null;index" json:"entityId"`
	NewValues map[string]any `gorm:"type:text;serializer:json" json:"newValues,omitempty"`
	CreatedAt time.Time      `json:"createdAt"`
}

func (a *AuditLog) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	return nil
}

var errAuditImmutable = errors.New("audit log rows are immutable")

func (a *AuditLog) BeforeUpdate(tx *gorm.DB) error {
	return errAuditImmutable
}

func (a *AuditLog) BeforeDelete(tx *gorm.DB) error {
	return errAuditImmutable
}
