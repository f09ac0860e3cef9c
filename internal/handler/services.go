package handler

import (
	"context"
	"io"

	"github.com/intelliod/ems/internal/domain"
	"github.com/intelliod/ems/internal/security/auth"
	"github.com/intelliod/ems/internal/service"
)

// The interfaces below are satisfied by the service package and stubbed in tests.

type AuthService interface {
	Login(ctx context.Context, in service.LoginInput) (*service.LoginResult, error)
	CompleteFirstLogin(ctx context.Context, in service.FirstLoginInput) (*service.LoginResult, error)
	Logout(ctx context.Context, p *auth.Principal) error
}

type InvitationService interface {
	Invite(ctx context.Context, in service.InviteInput, inviterID string) (*service.InviteResult, error)
	List(ctx context.Context) ([]service.InvitationView, error)
}

type OnboardingService interface {
	Submit(ctx context.Context, userID string) (*domain.Onboarding, error)
	Review(ctx context.Context, onboardingID string, in service.ReviewInput, reviewerID string) (*domain.Onboarding, error)
	PendingApprovals(ctx context.Context) ([]service.PendingApproval, error)
}

type ProfileService interface {
	CompleteProfile(ctx context.Context, userID string, in service.ProfileInput) (*domain.Profile, error)
	Get(ctx context.Context, userID string) (*service.ProfileView, error)
}

type DocumentService interface {
	Upload(ctx context.Context, in service.UploadInput) (*domain.Document, error)
	List(ctx context.Context, userID string) ([]domain.Document, error)
	Open(ctx context.Context, p *auth.Principal, name string) (*domain.Document, io.ReadCloser, error)
	MaxBytes() int64
}
