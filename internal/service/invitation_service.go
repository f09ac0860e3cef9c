package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/intelliod/ems/internal/apperror"
	"github.com/intelliod/ems/internal/domain"
	"github.com/intelliod/ems/internal/observability/metrics"
	"github.com/intelliod/ems/internal/security/audit"
	"github.com/intelliod/ems/internal/security/auth"
)

const (
	DefaultInvitationTTL = 7 * 24 * time.Hour
	tempPasswordLength   = 12
)

// InvitationService creates invitations and their placeholder users
type InvitationService struct {
	repos    Repositories
	hasher   *auth.PasswordHasher
	audit    *audit.Logger
	notifier Notifier
	clock    Clock
	ttl      time.Duration
	logger   *slog.Logger
}

// NewInvitationService creates a new invitation service
func NewInvitationService(
	repos Repositories,
	hasher *auth.PasswordHasher,
	auditLog *audit.Logger,
	notifier Notifier,
	clock Clock,
	ttl time.Duration,
	logger *slog.Logger,
) *InvitationService {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = realClock{}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	if ttl <= 0 {
		ttl = DefaultInvitationTTL
	}
	return &InvitationService{
		repos:    repos,
		hasher:   hasher,
		audit:    auditLog,
		notifier: notifier,
		clock:    clock,
		ttl:      ttl,
		logger:   logger,
	}
}

// InviteInput is the body of an invitation request
type InviteInput struct {
	Email string `json:"email" validate:"required,email"`
	Name  string `json:"name" validate:"required"`
}

// InvitationView is the public projection of an invitation
type InvitationView struct {
	ID          string                  `json:"id"`
	Email       string                  `json:"email"`
	Status      domain.InvitationStatus `json:"status"`
	ExpiresAt   time.Time               `json:"expiresAt"`
	SentAt      time.Time               `json:"sentAt"`
	CompletedAt *time.Time              `json:"completedAt,omitempty"`
	CreatedAt   time.Time               `json:"createdAt"`
	InvitedBy   *domain.UserSummary     `json:"invitedBy,omitempty"`
	User        *domain.UserSummary     `json:"user,omitempty"`
}

// InviteResult carries the plaintext temporary password. It is never stored.
type InviteResult struct {
	Invitation   InvitationView `json:"invitation"`
	TempPassword string         `json:"tempPassword,omitempty"`
}

func newInvitationView(inv *domain.Invitation, now time.Time) InvitationView {
	v := InvitationView{
		ID:          inv.ID,
		Email:       inv.Email,
		Status:      inv.Status,
		ExpiresAt:   inv.ExpiresAt,
		SentAt:      inv.SentAt,
		CompletedAt: inv.CompletedAt,
		CreatedAt:   inv.CreatedAt,
	}
	// pending invitations past their expiry are reported as expired before
	// the sweeper gets to them
	if inv.Status == domain.InvitationPending && inv.IsExpired(now) {
		v.Status = domain.InvitationExpired
	}
	if inv.InvitedBy != nil {
		s := inv.InvitedBy.Summary()
		v.InvitedBy = &s
	}
	if inv.User != nil {
		s := inv.User.Summary()
		v.User = &s
	}
	return v
}

// Invite creates an EMPLOYEE placeholder user and a PENDING invitation with
// a fresh temporary password. An email whose previous invitation expired
// before first login is invited again by resetting its placeholder.
func (s *InvitationService) Invite(ctx context.Context, in InviteInput, inviterID string) (*InviteResult, error) {
	if err := validateInput(in); err != nil {
		metrics.ObserveInvitation("invalid")
		return nil, err
	}
	email := domain.NormalizeEmail(in.Email)

	tempPassword, err := auth.GenerateTempPassword(tempPasswordLength)
	if err != nil {
		return nil, err
	}
	hash, err := s.hasher.Hash(tempPassword)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	inv := &domain.Invitation{
		Email:            email,
		TempPasswordHash: hash,
		Status:           domain.InvitationPending,
		InvitedByID:      inviterID,
		ExpiresAt:        now.Add(s.ttl),
		SentAt:           now,
	}

	err = s.repos.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		values := map[string]any{"email": email, "name": in.Name, "invitedBy": inviterID}

		existing, err := s.repos.Users.GetByEmail(ctx, email)
		switch {
		case err == nil:
			renewed, err := s.renewPlaceholder(ctx, existing, in.Name, hash, now)
			if err != nil {
				return err
			}
			inv.UserID = existing.ID
			values["renewedInvitationId"] = renewed
		case errors.Is(err, apperror.ErrNotFound):
			user := &domain.User{
				Email:        email,
				Name:         in.Name,
				PasswordHash: hash,
				Role:         domain.RoleEmployee,
				IsActive:     true,
				IsFirstLogin: true,
			}
			if err := s.repos.Users.Create(ctx, user); err != nil {
				if errors.Is(err, apperror.ErrConflict) {
					return apperror.ErrDuplicateUser
				}
				return err
			}
			inv.UserID = user.ID
		default:
			return err
		}
		values["userId"] = inv.UserID

		if err := s.repos.Invitations.Create(ctx, inv); err != nil {
			if errors.Is(err, apperror.ErrConflict) {
				return apperror.ErrDuplicateInvitation
			}
			return err
		}
		values["expiresAt"] = inv.ExpiresAt

		return s.audit.Record(ctx, audit.Entry{
			ActorID:   inviterID,
			Action:    domain.ActionInviteEmployee,
			Entity:    domain.EntityInvitation,
			EntityID:  inv.ID,
			NewValues: values,
		})
	})
	if err != nil {
		switch {
		case errors.Is(err, apperror.ErrDuplicateUser):
			metrics.ObserveInvitation("duplicate_user")
		case errors.Is(err, apperror.ErrDuplicateInvitation):
			metrics.ObserveInvitation("duplicate_invitation")
		default:
			metrics.ObserveInvitation("error")
		}
		return nil, err
	}

	metrics.ObserveInvitation("ok")
	s.logger.InfoContext(ctx, "employee invited",
		slog.String("invitation_id", inv.ID),
		slog.String("invited_by", inviterID),
	)

	notify(ctx, s.logger, "invitation", func(ctx context.Context) error {
		return s.notifier.InvitationCreated(ctx, InvitationNotice{
			Email:        email,
			Name:         in.Name,
			TempPassword: tempPassword,
			ExpiresAt:    inv.ExpiresAt,
		})
	})

	return &InviteResult{Invitation: newInvitationView(inv, now), TempPassword: tempPassword}, nil
}

// renewPlaceholder checks whether an existing user may be invited again and
// resets it. It returns the id of the invitation being replaced.
func (s *InvitationService) renewPlaceholder(ctx context.Context, user *domain.User, name, hash string, now time.Time) (string, error) {
	if !user.IsFirstLogin {
		return "", apperror.ErrDuplicateUser
	}

	latest, err := s.repos.Invitations.LatestByEmail(ctx, user.Email)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return "", apperror.ErrDuplicateUser
		}
		return "", err
	}
	if latest.Blocks(now) {
		return "", apperror.ErrDuplicateInvitation
	}
	if !latest.IsExpired(now) {
		return "", apperror.ErrDuplicateUser
	}

	if latest.Status == domain.InvitationPending {
		if _, err := s.repos.Invitations.MarkExpired(ctx, latest.ID); err != nil {
			return "", err
		}
	}

	reset, err := s.repos.Users.ResetPlaceholder(ctx, user.ID, name, hash)
	if err != nil {
		return "", err
	}
	if !reset {
		return "", apperror.ErrDuplicateUser
	}
	return latest.ID, nil
}

// List returns every invitation, newest first
func (s *InvitationService) List(ctx context.Context) ([]InvitationView, error) {
	invitations, err := s.repos.Invitations.List(ctx)
	if err != nil {
		return nil, err
	}

	now := s.clock.Now()
	views := make([]InvitationView, 0, len(invitations))
	for i := range invitations {
		views = append(views, newInvitationView(&invitations[i], now))
	}
	return views, nil
}

// ExpireStale marks PENDING invitations past their expiry as EXPIRED. Each
// transition is its own transaction with one audit entry.
func (s *InvitationService) ExpireStale(ctx context.Context) (int, error) {
	now := s.clock.Now()
	stale, err := s.repos.Invitations.ListPendingExpiredBefore(ctx, now)
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, inv := range stale {
		if err := ctx.Err(); err != nil {
			return expired, err
		}

		applied := false
		err := s.repos.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
			ok, err := s.repos.Invitations.MarkExpired(ctx, inv.ID)
			if err != nil || !ok {
				return err
			}
			applied = true
			return s.audit.Record(ctx, audit.Entry{
				Action:    domain.ActionExpireInvitation,
				Entity:    domain.EntityInvitation,
				EntityID:  inv.ID,
				NewValues: map[string]any{"status": domain.InvitationExpired, "expiresAt": inv.ExpiresAt},
			})
		})
		if err != nil {
			return expired, err
		}
		if applied {
			expired++
		}
	}

	if expired > 0 {
		s.logger.InfoContext(ctx, "expired stale invitations", slog.Int("count", expired))
	}
	return expired, nil
}
