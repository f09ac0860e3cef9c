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
)

// OnboardingService drives the onboarding state machine
type OnboardingService struct {
	repos    Repositories
	audit    *audit.Logger
	notifier Notifier
	clock    Clock
	logger   *slog.Logger
}

// NewOnboardingService creates a new onboarding service
func NewOnboardingService(repos Repositories, auditLog *audit.Logger, notifier Notifier, clock Clock, logger *slog.Logger) *OnboardingService {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = realClock{}
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &OnboardingService{repos: repos, audit: auditLog, notifier: notifier, clock: clock, logger: logger}
}

// Submit moves the caller's onboarding to SUBMITTED once the profile has a
// name and the required documents are present. Submitting again while
// SUBMITTED refreshes the timestamp; submitting after REJECTED starts a new
// review cycle.
func (s *OnboardingService) Submit(ctx context.Context, userID string) (*domain.Onboarding, error) {
	var result *domain.Onboarding
	err := s.repos.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ob, err := s.repos.Onboardings.GetByUserID(ctx, userID)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return apperror.ErrOnboardingMissing
			}
			return err
		}
		if !ob.Status.CanSubmit() {
			return apperror.ErrInvalidState.WithMessage("onboarding has already been approved")
		}

		profile, err := s.repos.Profiles.GetByUserID(ctx, userID)
		if err != nil && !errors.Is(err, apperror.ErrNotFound) {
			return err
		}
		if !profile.HasName() {
			return apperror.ErrProfileIncomplete
		}

		docs, err := s.repos.Documents.ListByUser(ctx, userID)
		if err != nil {
			return err
		}
		if missing := domain.MissingRequired(docs); len(missing) > 0 {
			details := make([]apperror.FieldError, 0, len(missing))
			for _, t := range missing {
				details = append(details, apperror.FieldError{Field: "documents", Message: "missing " + string(t)})
			}
			return apperror.ErrMissingDocuments.WithDetails(details...)
		}

		now := s.clock.Now()
		ok, err := s.repos.Onboardings.Submit(ctx, ob.ID, domain.SubmittableFrom, now)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.ErrInvalidState
		}

		if err := s.audit.Record(ctx, audit.Entry{
			ActorID:  userID,
			Action:   domain.ActionSubmitOnboarding,
			Entity:   domain.EntityOnboarding,
			EntityID: ob.ID,
			NewValues: map[string]any{
				"status":         domain.OnboardingSubmitted,
				"previousStatus": ob.Status,
				"submittedAt":    now,
			},
		}); err != nil {
			return err
		}

		result, err = s.repos.Onboardings.GetByID(ctx, ob.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	metrics.ObserveOnboardingTransition(string(domain.OnboardingSubmitted))
	s.logger.InfoContext(ctx, "onboarding submitted", slog.String("onboarding_id", result.ID), slog.String("user_id", userID))
	return result, nil
}

// ReviewInput is the body of an approval decision
type ReviewInput struct {
	Approved        *bool  `json:"approved" validate:"required"`
	Notes           string `json:"notes,omitempty" validate:"omitempty,max=2000"`
	RejectionReason string `json:"rejectionReason,omitempty" validate:"omitempty,max=2000"`
}

// Review approves or rejects a SUBMITTED onboarding. Approval activates the
// user in the same transaction; rejection leaves the user's flags alone.
func (s *OnboardingService) Review(ctx context.Context, onboardingID string, in ReviewInput, reviewerID string) (*domain.Onboarding, error) {
	if err := validateInput(in); err != nil {
		return nil, err
	}
	approved := *in.Approved
	if !approved && in.RejectionReason == "" {
		return nil, fieldError("rejectionReason", "is required when rejecting")
	}

	decision := domain.ReviewDecision{
		Status:     domain.OnboardingRejected,
		ReviewerID: reviewerID,
		At:         s.clock.Now(),
		Notes:      in.Notes,
	}
	action := domain.ActionRejectEmployee
	if approved {
		decision.Status = domain.OnboardingApproved
		action = domain.ActionApproveEmployee
	} else {
		decision.RejectionReason = in.RejectionReason
	}

	var (
		result *domain.Onboarding
		user   *domain.User
	)
	err := s.repos.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		ob, err := s.repos.Onboardings.GetByID(ctx, onboardingID)
		if err != nil {
			if errors.Is(err, apperror.ErrNotFound) {
				return apperror.ErrNotFound.WithMessage("onboarding request not found")
			}
			return err
		}
		if !ob.Status.CanReview() {
			return apperror.ErrInvalidState.WithMessage("onboarding request is not in submitted status")
		}

		ok, err := s.repos.Onboardings.Review(ctx, ob.ID, decision)
		if err != nil {
			return err
		}
		if !ok {
			return apperror.ErrInvalidState.WithMessage("onboarding request is not in submitted status")
		}

		values := map[string]any{
			"status":       decision.Status,
			"approved":     approved,
			"reviewedById": reviewerID,
			"notes":        in.Notes,
		}
		if approved {
			if err := s.repos.Users.Activate(ctx, ob.UserID); err != nil {
				return err
			}
			values["approvedAt"] = decision.At
			values["userActivated"] = true
		} else {
			values["rejectedAt"] = decision.At
			values["rejectionReason"] = in.RejectionReason
		}

		if err := s.audit.Record(ctx, audit.Entry{
			ActorID:   reviewerID,
			Action:    action,
			Entity:    domain.EntityOnboarding,
			EntityID:  ob.ID,
			NewValues: values,
		}); err != nil {
			return err
		}

		if result, err = s.repos.Onboardings.GetByID(ctx, ob.ID); err != nil {
			return err
		}
		user, err = s.repos.Users.GetByID(ctx, ob.UserID)
		return err
	})
	if err != nil {
		return nil, err
	}
	result.User = user

	metrics.ObserveOnboardingTransition(string(decision.Status))
	s.logger.InfoContext(ctx, "onboarding reviewed",
		slog.String("onboarding_id", result.ID),
		slog.String("status", string(result.Status)),
		slog.String("reviewer_id", reviewerID),
	)

	notify(ctx, s.logger, "review", func(ctx context.Context) error {
		return s.notifier.OnboardingReviewed(ctx, ReviewNotice{
			Email:           user.Email,
			Name:            user.Name,
			Approved:        approved,
			Notes:           in.Notes,
			RejectionReason: in.RejectionReason,
		})
	})

	return result, nil
}

// PendingApproval is a SUBMITTED onboarding with everything a reviewer needs
type PendingApproval struct {
	ID          string                  `json:"id"`
	Status      domain.OnboardingStatus `json:"status"`
	SubmittedAt *time.Time              `json:"submittedAt,omitempty"`
	User        PendingUser             `json:"user"`
}

type PendingUser struct {
	ID        string            `json:"id"`
	Email     string            `json:"email"`
	Name      string            `json:"name"`
	Profile   *domain.Profile   `json:"profile"`
	Documents []domain.Document `json:"documents"`
}

// PendingApprovals lists SUBMITTED onboardings, most recently submitted first
func (s *OnboardingService) PendingApprovals(ctx context.Context) ([]PendingApproval, error) {
	obs, err := s.repos.Onboardings.ListByStatus(ctx, domain.OnboardingSubmitted)
	if err != nil {
		return nil, err
	}

	out := make([]PendingApproval, 0, len(obs))
	for _, ob := range obs {
		item := PendingApproval{ID: ob.ID, Status: ob.Status, SubmittedAt: ob.SubmittedAt}
		item.User.ID = ob.UserID
		if ob.User != nil {
			item.User.Email = ob.User.Email
			item.User.Name = ob.User.Name
		}

		profile, err := s.repos.Profiles.GetByUserID(ctx, ob.UserID)
		switch {
		case err == nil:
			item.User.Profile = profile
		case !errors.Is(err, apperror.ErrNotFound):
			return nil, err
		}

		docs, err := s.repos.Documents.ListByUser(ctx, ob.UserID)
		if err != nil {
			return nil, err
		}
		item.User.Documents = docs
		out = append(out, item)
	}

	metrics.SetPendingApprovals(len(out))
	return out, nil
}
