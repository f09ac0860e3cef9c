package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Role is the closed set of account roles.
type Role string

const (
	RoleAdmin    Role = "ADMIN"
	RoleHR       Role = "HR"
	RoleEmployee Role = "EMPLOYEE"
)

var roles = []Role{RoleAdmin, RoleHR, RoleEmployee}

// ParseRole matches raw case-insensitively against the known roles.
func ParseRole(raw string) (Role, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	for _, r := range roles {
		if string(r) == normalized {
			return r, nil
		}
	}
	return "", fmt.Errorf("unknown role %q", raw)
}

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool {
	_, err := ParseRole(string(r))
	return err == nil
}

// In reports whether r is a member of allowed.
func (r Role) In(allowed ...Role) bool {
	for _, a := range allowed {
		if r == a {
			return true
		}
	}
	return false
}

// Privileged reports whether r may act on other users' onboarding.
func (r Role) Privileged() bool {
	return r.In(RoleAdmin, RoleHR)
}

// User is a persisted account. PasswordHash is never serialized.
type User struct {
	ID           string     `gorm:"type:varchar(36);primaryKey" json:"id"`
	Email        string     `gorm:"type:varchar(320);uniqueIndex;not null" json:"email"`
	Name         string     `gorm:"type:varchar(200);not null" json:"name"`
	PasswordHash string     `gorm:"column:password_hash;not null" json:"-"`
	Role         Role       `gorm:"type:varchar(16);not null;default:'EMPLOYEE'" json:"role"`
	IsActive     bool       `gorm:"not null" json:"isActive"`
	IsFirstLogin bool       `gorm:"not null" json:"isFirstLogin"`
	LastLoginAt  *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
}

func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// UserSummary is the public projection used inside other resources.
type UserSummary struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Email    string `json:"email"`
	IsActive bool   `json:"isActive"`
}

func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, IsActive: u.IsActive}
}
