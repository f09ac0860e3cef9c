package domain

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

type Gender string

const (
	GenderMale           Gender = "MALE"
	GenderFemale         Gender = "FEMALE"
	GenderOther          Gender = "OTHER"
	GenderPreferNotToSay Gender = "PREFER_NOT_TO_SAY"
)

type MaritalStatus string

const (
	MaritalSingle   MaritalStatus = "SINGLE"
	MaritalMarried  MaritalStatus = "MARRIED"
	MaritalDivorced MaritalStatus = "DIVORCED"
	MaritalWidowed  MaritalStatus = "WIDOWED"
	MaritalOther    MaritalStatus = "OTHER"
)

type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zipCode"`
	Country string `json:"country"`
}

type EmergencyContact struct {
	Name         string `json:"name"`
	Relationship string `json:"relationship"`
	Phone        string `json:"phone"`
	Email        string `json:"email,omitempty"`
}

type BankDetails struct {
	BankName      string `json:"bankName"`
	AccountNumber string `json:"accountNumber"`
	IFSCCode      string `json:"ifscCode"`
}

// Profile holds the mutable employee data. It becomes read-only once the
// owner's onboarding is approved.
type Profile struct {
	ID               string            `gorm:"type:varchar(36);primaryKey" json:"id"`
	UserID           string            `gorm:"type:varchar(36);uniqueIndex;not null" json:"userId"`
	EmployeeID       string            `gorm:"type:varchar(32);uniqueIndex;not null" json:"employeeId"`
	FirstName        string            `gorm:"type:varchar(100)" json:"firstName"`
	MiddleName       string            `gorm:"type:varchar(100)" json:"middleName,omitempty"`
	LastName         string            `gorm:"type:varchar(100)" json:"lastName"`
	DateOfBirth      *time.Time        `json:"dateOfBirth,omitempty"`
	Gender           Gender            `gorm:"type:varchar(24)" json:"gender,omitempty"`
	MaritalStatus    MaritalStatus     `gorm:"type:varchar(16)" json:"maritalStatus,omitempty"`
	Nationality      string            `gorm:"type:varchar(100)" json:"nationality,omitempty"`
	Phone            string            `gorm:"type:varchar(32)" json:"phone,omitempty"`
	PersonalEmail    string            `gorm:"type:varchar(320)" json:"personalEmail,omitempty"`
	AlternatePhone   string            `gorm:"type:varchar(32)" json:"alternatePhone,omitempty"`
	CurrentAddress   *Address          `gorm:"type:text;serializer:json" json:"currentAddress,omitempty"`
	PermanentAddress *Address          `gorm:"type:text;serializer:json" json:"permanentAddress,omitempty"`
	EmergencyContact *EmergencyContact `gorm:"type:text;serializer:json" json:"emergencyContact,omitempty"`
	BankDetails      *BankDetails      `gorm:"type:text;serializer:json" json:"bankDetails,omitempty"`
	Department       string            `gorm:"type:varchar(100)" json:"department,omitempty"`
	Position         string            `gorm:"type:varchar(100)" json:"position,omitempty"`
	JoinDate         *time.Time        `json:"joinDate,omitempty"`
	ContractType     string            `gorm:"type:varchar(32)" json:"contractType,omitempty"`
	WorkLocation     string            `gorm:"type:varchar(32)" json:"workLocation,omitempty"`
	CreatedAt        time.Time         `json:"createdAt"`
	UpdatedAt        time.Time         `json:"updatedAt"`
}

func (p *Profile) BeforeCreate(tx *gorm.DB) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.EmployeeID == "" {
		p.EmployeeID = NewEmployeeID(time.Now().UTC())
	}
	return nil
}

// HasName reports whether the profile carries the fields submission requires.
func (p *Profile) HasName() bool {
	return p != nil && strings.TrimSpace(p.FirstName) != "" && strings.TrimSpace(p.LastName) != ""
}

// NewEmployeeID builds an identifier like EMP20260118A1B2C3.
func NewEmployeeID(now time.Time) string {
	buf := make([]byte, 3)
	if _, err := rand.Read(buf); err != nil {
		return "EMP" + now.Format("20060102150405")
	}
	return "EMP" + now.Format("20060102") + strings.ToUpper(hex.EncodeToString(buf))
}
