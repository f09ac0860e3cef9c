package audit

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/intelliod/ems/internal/domain"
	"github.com/intelliod/ems/internal/infrastructure/logger"
)

// Logger persists audit entries and mirrors them to the structured log.
type Logger struct {
	repo   domain.AuditRepository
	logger *slog.Logger
}

func NewLogger(repo domain.AuditRepository, log *slog.Logger) *Logger {
	if log == nil {
		log = slog.Default()
	}
	return &Logger{repo: repo, logger: log}
}

// Entry is one state change to record.
type Entry struct {
	ActorID   string
	Action    domain.AuditAction
	Entity    string
	EntityID  string
	NewValues map[string]any
}

// Record appends e. Call it with the transaction context of the change it
// describes so both commit or roll back together. An empty ActorID records
// a system action.
func (al *Logger) Record(ctx context.Context, e Entry) error {
	row := &domain.AuditLog{
		Action:    e.Action,
		Entity:    e.Entity,
		EntityID:  e.EntityID,
		NewValues: e.NewValues,
	}
	if e.ActorID != "" {
		actor := e.ActorID
		row.ActorID = &actor
	}
	if err := al.repo.Append(ctx, row); err != nil {
		return fmt.Errorf("record audit %s: %w", e.Action, err)
	}

	al.logger.InfoContext(ctx, "audit",
		slog.String("action", string(e.Action)),
		slog.String("entity", e.Entity),
		slog.String("entity_id", e.EntityID),
		slog.String("actor_id", e.ActorID),
		slog.String("request_id", logger.RequestID(ctx)),
	)
	return nil
}

// LogDenied logs a refused request. Denials are not persisted.
func (al *Logger) LogDenied(ctx context.Context, userID, reason string) {
	al.logger.WarnContext(ctx, "audit",
		slog.String("action", "access_denied"),
		slog.String("user_id", userID),
		slog.String("status", "denied"),
		slog.String("details", reason),
		slog.String("request_id", logger.RequestID(ctx)),
	)
}
