package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/intelliod/ems/internal/apperror"
	"github.com/intelliod/ems/internal/domain"
	"github.com/intelliod/ems/internal/security/audit"
)

type AddressInput struct {
	Street  string `json:"street" validate:"required"`
	City    string `json:"city" validate:"required"`
	State   string `json:"state" validate:"required"`
	ZipCode string `json:"zipCode" validate:"required"`
	Country string `json:"country" validate:"required"`
}

type EmergencyContactInput struct {
	Name         string `json:"name" validate:"required"`
	Relationship string `json:"relationship" validate:"required"`
	Phone        string `json:"phone" validate:"required,min=10"`
	Email        string `json:"email,omitempty" validate:"omitempty,email"`
}

type BankDetailsInput struct {
	BankName      string `json:"bankName" validate:"required"`
	AccountNumber string `json:"accountNumber" validate:"required"`
	IFSCCode      string `json:"ifscCode" validate:"required"`
}

// ProfileInput is the body of a profile update
type ProfileInput struct {
	FirstName        string                 `json:"firstName" validate:"required"`
	MiddleName       string                 `json:"middleName,omitempty"`
	LastName         string                 `json:"lastName" validate:"required"`
	DateOfBirth      string                 `json:"dateOfBirth" validate:"required"`
	Gender           domain.Gender          `json:"gender" validate:"required,oneof=MALE FEMALE OTHER PREFER_NOT_TO_SAY"`
	MaritalStatus    domain.MaritalStatus   `json:"maritalStatus" validate:"required,oneof=SINGLE MARRIED DIVORCED WIDOWED OTHER"`
	Nationality      string                 `json:"nationality" validate:"required"`
	Phone            string                 `json:"phone" validate:"required,min=10"`
	PersonalEmail    string                 `json:"personalEmail,omitempty" validate:"omitempty,email"`
	AlternatePhone   string                 `json:"alternatePhone,omitempty"`
	CurrentAddress   *AddressInput          `json:"currentAddress" validate:"required"`
	PermanentAddress *AddressInput          `json:"permanentAddress" validate:"required"`
	EmergencyContact *EmergencyContactInput `json:"emergencyContact" validate:"required"`
	BankDetails      *BankDetailsInput      `json:"bankDetails" validate:"required"`
}

var dateLayouts = []string{"2006-01-02", time.RFC3339, time.RFC3339Nano}

func parseDate(raw string) (time.Time, bool) {
	raw = strings.TrimSpace(raw)
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return t.UTC(), true
		}
	}
	return time.Time{}, false
}

func (in ProfileInput) apply(p *domain.Profile, dob time.Time) {
	p.FirstName = strings.TrimSpace(in.FirstName)
	p.MiddleName = strings.TrimSpace(in.MiddleName)
	p.LastName = strings.TrimSpace(in.LastName)
	p.DateOfBirth = &dob
	p.Gender = in.Gender
	p.MaritalStatus = in.MaritalStatus
	p.Nationality = in.Nationality
	p.Phone = in.Phone
	p.PersonalEmail = in.PersonalEmail
	p.AlternatePhone = in.AlternatePhone
	p.CurrentAddress = (*domain.Address)(in.CurrentAddress)
	p.PermanentAddress = (*domain.Address)(in.PermanentAddress)
	p.EmergencyContact = (*domain.EmergencyContact)(in.EmergencyContact)
	p.BankDetails = (*domain.BankDetails)(in.BankDetails)
}

// ProfileService manages the employee's own profile
type ProfileService struct {
	repos  Repositories
	audit  *audit.Logger
	logger *slog.Logger
}

// NewProfileService creates a new profile service
func NewProfileService(repos Repositories, auditLog *audit.Logger, logger *slog.Logger) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{repos: repos, audit: auditLog, logger: logger}
}

// CompleteProfile creates or replaces the caller's profile fields. It is
// refused once onboarding has been approved.
func (s *ProfileService) CompleteProfile(ctx context.Context, userID string, in ProfileInput) (*domain.Profile, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	dob, ok := parseDate(in.DateOfBirth)
	if !ok {
		return nil, fieldError("dateOfBirth", "must be a valid date")
	}

	var profile *domain.Profile
	err := s.repos.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ob, err := s.repos.Onboardings.GetByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return apperror.ErrOnboardingMissing
			}
			return err
		}
		if !ob.Status.ProfileEditable() {
			return apperror.ErrProfileLocked
		}

		profile, err = s.repos.Profiles.GetByUserID(ctx, userID)
		switch {
		case errors.Is(err, apperror.ErrNotFound):
			profile = &domain.Profile{UserID: userID}
			in.apply(profile, dob)
			err = s.repos.Profiles.Create(ctx, profile)
		case err == nil:
			in.apply(profile, dob)
			err = s.repos.Profiles.Save(ctx, profile)
		}
		if err != nil {
			return err
		}

		return s.audit.Record(ctx, audit.Entry{
			ActorID:   userID,
			Action:    domain.ActionUpdateProfile,
			Entity:    domain.EntityProfile,
			EntityID:  profile.ID,
			NewValues: profileAuditValues(profile),
		})
	})
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "profile updated", slog.String("user_id", userID), slog.String("profile_id", profile.ID))
	return profile, nil
}

// profileAuditValues records the changed fields with the account number masked.
func profileAuditValues(p *domain.Profile) map[string]any {
	values := map[string]any{
		"firstName":     p.FirstName,
		"middleName":    p.MiddleName,
		"lastName":      p.LastName,
		"gender":        p.Gender,
		"maritalStatus": p.MaritalStatus,
		"nationality":   p.Nationality,
		"phone":         p.Phone,
	}
	if p.DateOfBirth != nil {
		values["dateOfBirth"] = p.DateOfBirth.Format("2006-01-02")
	}
	if p.PersonalEmail != "" {
		values["personalEmail"] = p.PersonalEmail
	}
	if p.CurrentAddress != nil {
		values["currentAddress"] = p.CurrentAddress
	}
	if p.PermanentAddress != nil {
		values["permanentAddress"] = p.PermanentAddress
	}
	if p.EmergencyContact != nil {
		values["emergencyContact"] = p.EmergencyContact
	}
	if p.BankDetails != nil {
		values["bankDetails"] = domain.BankDetails{
			BankName:      p.BankDetails.BankName,
			AccountNumber: maskAccount(p.BankDetails.AccountNumber),
			IFSCCode:      p.BankDetails.IFSCCode,
		}
	}
	return values
}

func maskAccount(number string) string {
	if len(number) <= 4 {
		return strings.Repeat("*", len(number))
	}
	return strings.Repeat("*", len(number)-4) + number[len(number)-4:]
}

// ProfileView is everything an employee sees about themselves
type ProfileView struct {
	User       *domain.User       `json:"user"`
	Profile    *domain.Profile    `json:"profile"`
	Documents  []domain.Document  `json:"documents"`
	Onboarding *domain.Onboarding `json:"onboarding"`
}

// Get returns the caller's user record together with profile, documents and onboarding
func (s *ProfileService) Get(ctx context.Context, userID string) (*ProfileView, error) {
	user, err := s.repos.Users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ErrNotFound.WithMessage("user not found")
		}
		return nil, err
	}
	view := &ProfileView{User: user}

	if view.Profile, err = s.repos.Profiles.GetByUserID(ctx, userID); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}
	if view.Onboarding, err = s.repos.Onboardings.GetByUserID(ctx, userID); err != nil && !errors.Is(err, apperror.ErrNotFound) {
		return nil, err
	}
	if view.Documents, err = s.repos.Documents.ListByUser(ctx, userID); err != nil {
		return nil, err
	}
	return view, nil
}
