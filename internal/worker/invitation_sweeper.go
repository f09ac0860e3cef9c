package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/intelliod/ems/internal/observability/metrics"
	"github.com/intelliod/ems/internal/reliability/retry"
)

// InvitationExpirer is implemented by service.InvitationService.
type InvitationExpirer interface {
	ExpireStale(ctx context.Context) (int, error)
}

// InvitationSweeper periodically marks overdue PENDING invitations EXPIRED.
type InvitationSweeper struct {
	expirer  InvitationExpirer
	logger   *slog.Logger
	interval time.Duration
	retry    *retry.Policy
}

// NewInvitationSweeper creates a new sweeper
func NewInvitationSweeper(expirer InvitationExpirer, logger *slog.Logger, interval time.Duration) *InvitationSweeper {
	if logger == nil {
		logger = slog.Default()
	}
	return &InvitationSweeper{
		expirer:  expirer,
		logger:   logger,
		interval: interval,
		retry:    retry.DefaultPolicy(),
	}
}

// Start sweeps once immediately and then on every tick until ctx is done.
func (w *InvitationSweeper) Start(ctx context.Context) {
	if w.interval <= 0 {
		w.logger.Info("invitation sweeper disabled")
		return
	}

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.logger.Info("invitation sweeper started", slog.Duration("interval", w.interval))
	w.Sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("invitation sweeper stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep runs one pass and returns how many invitations it expired.
func (w *InvitationSweeper) Sweep(ctx context.Context) int {
	expired, err := retry.Do(ctx, w.retry, w.logger, "expire invitations", w.expirer.ExpireStale)
	if err != nil {
		if ctx.Err() != nil {
			return expired
		}
		w.logger.Error("invitation sweep failed", slog.String("error", err.Error()))
		metrics.ObserveSweep("error", expired)
		return expired
	}

	metrics.ObserveSweep("success", expired)
	if expired > 0 {
		w.logger.Info("invitation sweep complete", slog.Int("expired", expired))
	}
	return expired
}
