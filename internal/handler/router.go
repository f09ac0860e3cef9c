package handler

import (
	"log/slog"
	"net/http"

	"github.com/intelliod/ems/internal/security"
	"github.com/intelliod/ems/internal/security/audit"
	"github.com/intelliod/ems/internal/security/middleware"
	"github.com/intelliod/ems/internal/security/ratelimit"
)

// Handlers groups the endpoint handlers mounted by NewRouter.
type Handlers struct {
	Auth     *AuthHandler
	Admin    *AdminHandler
	Employee *EmployeeHandler
	Health   *HealthHandler
	Metrics  http.Handler
}

// RouterConfig carries the per-route guards.
type RouterConfig struct {
	Authenticator middleware.Authenticator
	Authz         *security.AuthorizationService
	Limiter       *ratelimit.Limiter
	Audit         *audit.Logger
	Logger        *slog.Logger
}

// NewRouter mounts every route. Authentication and permission checks wrap
// individual routes; cross-cutting middleware is applied by the caller.
func NewRouter(h Handlers, cfg RouterConfig) *http.ServeMux {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	authz := cfg.Authz
	if authz == nil {
		authz = security.NewAuthorizationService(log)
	}

	jsonBody := middleware.RequireJSON(log)
	authed := middleware.Authenticate(cfg.Authenticator, cfg.Limiter, cfg.Audit, log)
	can := func(perm security.Permission) func(http.Handler) http.Handler {
		return middleware.RequirePermission(authz, perm, cfg.Audit)
	}
	route := func(fn http.HandlerFunc, mws ...func(http.Handler) http.Handler) http.Handler {
		return middleware.Chain(fn, mws...)
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/health", h.Health.Health)
	mux.HandleFunc("GET /healthz", h.Health.Health)
	mux.HandleFunc("GET /readyz", h.Health.Ready)
	mux.HandleFunc("GET /docs", Docs)
	if h.Metrics != nil {
		mux.Handle("GET /metrics", h.Metrics)
	}

	mux.Handle("POST /api/auth/login", route(h.Auth.Login, jsonBody))
	mux.Handle("POST /api/auth/first-time-login", route(h.Auth.FirstTimeLogin, jsonBody))
	mux.Handle("POST /api/auth/logout", route(h.Auth.Logout, authed))

	mux.Handle("POST /api/admin/invite-employee", route(h.Admin.InviteEmployee, authed, can(security.PermInviteEmployee), jsonBody))
	mux.Handle("GET /api/admin/pending-approvals", route(h.Admin.PendingApprovals, authed, can(security.PermReviewOnboarding)))
	mux.Handle("PUT /api/admin/approve-employee/{id}", route(h.Admin.ApproveEmployee, authed, can(security.PermReviewOnboarding), jsonBody))
	mux.Handle("GET /api/admin/invitations", route(h.Admin.Invitations, authed, can(security.PermListInvitations)))

	own := can(security.PermManageOwnProfile)
	mux.Handle("PUT /api/employee/complete-profile", route(h.Employee.CompleteProfile, authed, own, jsonBody))
	mux.Handle("POST /api/employee/upload-document", route(h.Employee.UploadDocument, authed, own))
	mux.Handle("POST /api/employee/submit-onboarding", route(h.Employee.SubmitOnboarding, authed, own))
	mux.Handle("GET /api/employee/profile", route(h.Employee.Profile, authed, own))
	mux.Handle("GET /api/employee/documents", route(h.Employee.Documents, authed, own))
	mux.Handle("GET /api/uploads/documents/{name}", route(h.Employee.DownloadDocument, authed))

	return mux
}
