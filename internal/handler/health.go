package handler

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *database.DB and *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

type dependency struct {
	name string
	ping func(ctx context.Context) error
}

// HealthHandler serves liveness and readiness checks.
type HealthHandler struct {
	deps    []dependency
	started time.Time
	now     func() time.Time
	logger  *slog.Logger
}

// NewHealthHandler checks db and, when not nil, Redis for readiness.
func NewHealthHandler(db Pinger, redisClient *redis.Client, logger *slog.Logger) *HealthHandler {
	if logger == nil {
		logger = slog.Default()
	}
	deps := []dependency{{name: "database", ping: db.PingContext}}
	if redisClient != nil {
		deps = append(deps, dependency{name: "redis", ping: func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		}})
	}
	return &HealthHandler{deps: deps, started: time.Now(), now: time.Now, logger: logger}
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Uptime    string    `json:"uptime"`
}

type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

// Health handles GET /api/health and GET /healthz. It never touches
// dependencies.
func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	now := h.now()
	writeJSON(w, http.StatusOK, HealthResponse{
		Status:    "OK",
		Timestamp: now.UTC(),
		Uptime:    now.Sub(h.started).Truncate(time.Second).String(),
	})
}

// Ready handles GET /readyz: 200 when every dependency answers within 5s.
// Failure details are logged, not returned.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	resp := ReadinessResponse{Status: "ready", Checks: make(map[string]string, len(h.deps))}
	code := http.StatusOK
	for _, dep := range h.deps {
		start := time.Now()
		if err := dep.ping(ctx); err != nil {
			h.logger.WarnContext(ctx, "readiness check failed",
				slog.String("dependency", dep.name),
				slog.String("error", err.Error()),
			)
			resp.Checks[dep.name] = "unavailable"
			resp.Status = "not_ready"
			code = http.StatusServiceUnavailable
			continue
		}
		resp.Checks[dep.name] = "ok (" + time.Since(start).Round(time.Millisecond).String() + ")"
	}
	writeJSON(w, code, resp)
}
