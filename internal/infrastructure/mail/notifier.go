package mail

import (
	"context"
	"log/slog"

	"github.com/intelliod/ems/internal/reliability/circuitbreaker"
	"github.com/intelliod/ems/internal/service"
)

// LogNotifier writes notifications to the log instead of sending them.
// The temporary password only appears at debug level.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) InvitationCreated(ctx context.Context, in service.InvitationNotice) error {
	n.logger.InfoContext(ctx, "invitation created",
		slog.String("email", in.Email),
		slog.Time("expires_at", in.ExpiresAt),
	)
	n.logger.DebugContext(ctx, "invitation credentials",
		slog.String("email", in.Email),
		slog.String("temp_password", in.TempPassword),
	)
	return nil
}

func (n *LogNotifier) OnboardingReviewed(ctx context.Context, in service.ReviewNotice) error {
	n.logger.InfoContext(ctx, "onboarding reviewed",
		slog.String("email", in.Email),
		slog.Bool("approved", in.Approved),
	)
	return nil
}

// BreakerNotifier fails fast while the wrapped notifier keeps failing.
type BreakerNotifier struct {
	next    service.Notifier
	breaker *circuitbreaker.CircuitBreaker
}

func NewBreakerNotifier(next service.Notifier, breaker *circuitbreaker.CircuitBreaker, logger *slog.Logger) *BreakerNotifier {
	if logger == nil {
		logger = slog.Default()
	}
	breaker.SetStateChangeCallback(func(from, to circuitbreaker.State) {
		logger.Warn("mail circuit breaker state changed",
			slog.String("from", from.String()),
			slog.String("to", to.String()),
		)
	})
	return &BreakerNotifier{next: next, breaker: breaker}
}

func (n *BreakerNotifier) InvitationCreated(ctx context.Context, in service.InvitationNotice) error {
	return n.breaker.Execute(func() error {
		return n.next.InvitationCreated(ctx, in)
	})
}

func (n *BreakerNotifier) OnboardingReviewed(ctx context.Context, in service.ReviewNotice) error {
	return n.breaker.Execute(func() error {
		return n.next.OnboardingReviewed(ctx, in)
	})
}
