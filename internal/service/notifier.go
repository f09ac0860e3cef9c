package service

import (
	"context"
	"log/slog"
	"time"

	"github.com/intelliod/ems/internal/observability/metrics"
)

// InvitationNotice is sent after an invitation commits.
type InvitationNotice struct {
	Email        string
	Name         string
	TempPassword string
	ExpiresAt    time.Time
}

// ReviewNotice is sent after an onboarding review commits.
type ReviewNotice struct {
	Email           string
	Name            string
	Approved        bool
	Notes           string
	RejectionReason string
}

// Notifier delivers messages to employees. It is called only after the
// state change it reports has been committed; its errors are logged and
// never undo that change.
type Notifier interface {
	InvitationCreated(ctx context.Context, n InvitationNotice) error
	OnboardingReviewed(ctx context.Context, n ReviewNotice) error
}

type nopNotifier struct{}

func (nopNotifier) InvitationCreated(context.Context, InvitationNotice) error { return nil }
func (nopNotifier) OnboardingReviewed(context.Context, ReviewNotice) error    { return nil }

const notifyTimeout = 15 * time.Second

// notify runs send detached from the request's cancellation so a client
// disconnect does not abort delivery of an already committed change.
func notify(ctx context.Context, log *slog.Logger, kind string, send func(context.Context) error) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	if err := send(ctx); err != nil {
		metrics.ObserveNotification(kind, "error")
		log.WarnContext(ctx, "notification failed",
			slog.String("kind", kind),
			slog.String("error", err.Error()),
		)
		return
	}
	metrics.ObserveNotification(kind, "ok")
}
