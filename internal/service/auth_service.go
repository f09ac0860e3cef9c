package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/intelliod/ems/internal/apperror"
	"github.com/intelliod/ems/internal/domain"
	"github.com/intelliod/ems/internal/observability/metrics"
	"github.com/intelliod/ems/internal/security/audit"
	"github.com/intelliod/ems/internal/security/auth"
)

// Repositories bundles the stores a service may need.
type Repositories struct {
	Users       domain.UserRepository
	Invitations domain.InvitationRepository
	Profiles    domain.ProfileRepository
	Documents   domain.DocumentRepository
	Onboardings domain.OnboardingRepository
	Tx          domain.Transactor
}

// AuthService handles authentication operations
type AuthService struct {
	repos       Repositories
	tokens      *auth.TokenManager
	hasher      *auth.PasswordHasher
	revocations auth.RevocationStore
	audit       *audit.Logger
	clock       Clock
	logger      *slog.Logger
}

// NewAuthService creates a new authentication service
func NewAuthService(
	repos Repositories,
	tokens *auth.TokenManager,
	hasher *auth.PasswordHasher,
	revocations auth.RevocationStore,
	auditLog *audit.Logger,
	clock Clock,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = realClock{}
	}
	if revocations == nil {
		revocations = auth.NewMemoryRevocationStore()
	}

	return &AuthService{
		repos:       repos,
		tokens:      tokens,
		hasher:      hasher,
		revocations: revocations,
		audit:       auditLog,
		clock:       clock,
		logger:      logger,
	}
}

// LoginInput is the body of a password login
type LoginInput struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// FirstLoginInput exchanges a temporary password for a permanent one
type FirstLoginInput struct {
	Email        string `json:"email" validate:"required,email"`
	TempPassword string `json:"tempPassword" validate:"required"`
	NewPassword  string `json:"newPassword" validate:"required,min=8"`
}

// LoginResult represents login response
type LoginResult struct {
	Token        string       `json:"token"`
	User         *domain.User `json:"user"`
	IsFirstLogin bool         `json:"isFirstLogin"`
}

// Login authenticates a user and returns a session token
func (s *AuthService) Login(ctx context.Context, in LoginInput) (*LoginResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}

	user, err := s.repos.Users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			s.logger.InfoContext(ctx, "login attempt with non-existent email", slog.String("email", domain.NormalizeEmail(in.Email)))
			metrics.ObserveLogin("password", "invalid")
			return nil, apperror.ErrInvalidCredential
		}
		return nil, err
	}

	ok, err := s.hasher.Verify(in.Password, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.logger.InfoContext(ctx, "login failed with wrong password", slog.String("user_id", user.ID))
		metrics.ObserveLogin("password", "invalid")
		return nil, apperror.ErrInvalidCredential
	}

	if !user.IsActive {
		metrics.ObserveLogin("password", "inactive")
		return nil, apperror.ErrAccountInactive
	}

	token, err := s.tokens.IssueToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	now := s.clock.Now()
	if err := s.repos.Users.TouchLastLogin(ctx, user.ID, now); err != nil {
		s.logger.WarnContext(ctx, "failed to record last login", slog.String("user_id", user.ID), slog.String("error", err.Error()))
	} else {
		user.LastLoginAt = &now
	}

	metrics.ObserveLogin("password", "ok")
	s.logger.InfoContext(ctx, "user logged in", slog.String("user_id", user.ID), slog.String("role", string(user.Role)))

	return &LoginResult{Token: token, User: user, IsFirstLogin: user.IsFirstLogin}, nil
}

// CompleteFirstLogin replaces the temporary password and activates the
// account in one transaction: the invitation is completed and an empty
// profile and a PENDING onboarding are created when absent.
func (s *AuthService) CompleteFirstLogin(ctx context.Context, in FirstLoginInput) (*LoginResult, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.NewPassword == in.TempPassword {
		return nil, fieldError("newPassword", "must differ from the temporary password")
	}

	user, err := s.repos.Users.GetByEmail(ctx, in.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ErrNotFound.WithMessage("user not found")
		}
		return nil, err
	}
	if !user.IsFirstLogin {
		return nil, apperror.ErrFirstLoginCompleted
	}

	ok, err := s.hasher.Verify(in.TempPassword, user.PasswordHash)
	if err != nil {
		return nil, err
	}
	if !ok {
		metrics.ObserveLogin("first_time", "invalid")
		return nil, apperror.ErrInvalidCredential.WithMessage("invalid temporary password")
	}

	now := s.clock.Now()
	invitation, err := s.repos.Invitations.LatestByUserID(ctx, user.ID)
	switch {
	case errors.Is(err, apperror.ErrNotFound):
		invitation = nil
	case err != nil:
		return nil, err
	case invitation.IsExpired(now):
		metrics.ObserveLogin("first_time", "expired")
		return nil, apperror.ErrInvitationExpired
	}

	newHash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return nil, err
	}

	err = s.repos.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		return s.activate(ctx, user, invitation, newHash, now)
	})
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.IssueToken(user.ID, user.Role)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}

	user.IsFirstLogin = false
	user.LastLoginAt = &now
	metrics.ObserveLogin("first_time", "ok")
	s.logger.InfoContext(ctx, "first-time login completed", slog.String("user_id", user.ID))

	return &LoginResult{Token: token, User: user, IsFirstLogin: false}, nil
}

func (s *AuthService) activate(ctx context.Context, user *domain.User, invitation *domain.Invitation, passwordHash string, now time.Time) error {
	swapped, err := s.repos.Users.CompleteFirstLogin(ctx, user.ID, passwordHash)
	if err != nil {
		return err
	}
	if !swapped {
		return apperror.ErrFirstLoginCompleted
	}

	values := map[string]any{"isFirstLogin": false}

	if invitation != nil && invitation.Status == domain.InvitationPending {
		if err := s.repos.Invitations.MarkCompleted(ctx, invitation.ID, now); err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				// expired by the sweeper after the check above
				return apperror.ErrInvitationExpired
			}
			return err
		}
		values["invitationId"] = invitation.ID
		values["invitationStatus"] = domain.InvitationCompleted
	}

	profile, err := s.repos.Profiles.GetByUserID(ctx, user.ID)
	if errors.Is(err, apperror.ErrNotFound) {
		profile = &domain.Profile{UserID: user.ID}
		err = s.repos.Profiles.Create(ctx, profile)
	}
	if err != nil {
		return err
	}
	values["profileId"] = profile.ID

	onboarding, err := s.repos.Onboardings.GetByUserID(ctx, user.ID)
	if errors.Is(err, apperror.ErrNotFound) {
		onboarding = &domain.Onboarding{UserID: user.ID, Status: domain.OnboardingPending}
		err = s.repos.Onboardings.Create(ctx, onboarding)
	}
	if err != nil {
		return err
	}
	values["onboardingId"] = onboarding.ID

	if err := s.repos.Users.TouchLastLogin(ctx, user.ID, now); err != nil {
		return err
	}

	return s.audit.Record(ctx, audit.Entry{
		ActorID:   user.ID,
		Action:    domain.ActionFirstTimeLogin,
		Entity:    domain.EntityUser,
		EntityID:  user.ID,
		NewValues: values,
	})
}

// Authenticate resolves a bearer token to the current user. Inactive
// accounts are refused unless they are employees still onboarding.
func (s *AuthService) Authenticate(ctx context.Context, token string) (*auth.Principal, error) {
	claims, err := s.tokens.ValidateToken(token)
	if err != nil {
		return nil, apperror.ErrTokenInvalid.Wrap(err)
	}

	revoked, err := s.revocations.IsRevoked(ctx, claims.ID)
	if err != nil {
		return nil, fmt.Errorf("check revocation: %w", err)
	}
	if revoked {
		return nil, apperror.ErrTokenInvalid
	}

	user, err := s.repos.Users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.ErrTokenInvalid
		}
		return nil, err
	}
	if !user.IsActive && user.Role != domain.RoleEmployee {
		return nil, apperror.ErrForbidden.WithMessage("account is not active")
	}

	return &auth.Principal{
		UserID:    user.ID,
		Email:     user.Email,
		Role:      user.Role,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAtTime(),
	}, nil
}

// Logout revokes the caller's token until it would have expired
func (s *AuthService) Logout(ctx context.Context, p *auth.Principal) error {
	if p == nil || p.TokenID == "" {
		return apperror.ErrTokenInvalid
	}
	if err := s.revocations.Revoke(ctx, p.TokenID, p.ExpiresAt); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	return s.audit.Record(ctx, audit.Entry{
		ActorID:   p.UserID,
		Action:    domain.ActionLogout,
		Entity:    domain.EntityUser,
		EntityID:  p.UserID,
		NewValues: map[string]any{"tokenId": p.TokenID},
	})
}

// SetPassword replaces a user's password. Used by operator tooling.
func (s *AuthService) SetPassword(ctx context.Context, email, password string) error {
	if len(password) < 8 {
		return fieldError("password", "must be at least 8 characters")
	}
	user, err := s.repos.Users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return err
	}
	if err := s.repos.Users.UpdatePassword(ctx, user.ID, hash); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "user password changed", slog.String("user_id", user.ID))
	return nil
}
