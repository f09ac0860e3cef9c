package handler

import (
	"log/slog"
	"net/http"

	"github.com/intelliod/ems/internal/featureflags"
	"github.com/intelliod/ems/internal/security/auth"
	"github.com/intelliod/ems/internal/service"
)

// AdminHandler serves the ADMIN/HR endpoints
type AdminHandler struct {
	invitations InvitationService
	onboarding  OnboardingService
	flags       *featureflags.Set
	logger      *slog.Logger
}

// NewAdminHandler creates a new admin handler
func NewAdminHandler(invitations InvitationService, onboarding OnboardingService, flags *featureflags.Set, logger *slog.Logger) *AdminHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AdminHandler{invitations: invitations, onboarding: onboarding, flags: flags, logger: logger}
}

type inviteResponse struct {
	Message      string                 `json:"message"`
	Invitation   service.InvitationView `json:"invitation"`
	TempPassword string                 `json:"tempPassword,omitempty"`
}

// InviteEmployee handles POST /api/admin/invite-employee
func (h *AdminHandler) InviteEmployee(w http.ResponseWriter, r *http.Request) {
	var req service.InviteInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	inviter := auth.PrincipalFromContext(r.Context())
	result, err := h.invitations.Invite(r.Context(), req, inviter.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	resp := inviteResponse{
		Message:      "Employee invitation sent successfully",
		Invitation:   result.Invitation,
		TempPassword: result.TempPassword,
	}
	if h.flags.Enabled(featureflags.RedactTempPassword) {
		resp.TempPassword = ""
	}
	writeJSON(w, http.StatusCreated, resp)
}

// PendingApprovals handles GET /api/admin/pending-approvals
func (h *AdminHandler) PendingApprovals(w http.ResponseWriter, r *http.Request) {
	pending, err := h.onboarding.PendingApprovals(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"pendingApprovals": pending})
}

// ApproveEmployee handles PUT /api/admin/approve-employee/{id}
func (h *AdminHandler) ApproveEmployee(w http.ResponseWriter, r *http.Request) {
	var req service.ReviewInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	reviewer := auth.PrincipalFromContext(r.Context())
	onboarding, err := h.onboarding.Review(r.Context(), r.PathValue("id"), req, reviewer.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	message := "Employee rejected successfully"
	if req.Approved != nil && *req.Approved {
		message = "Employee approved successfully"
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    message,
		"onboarding": onboarding,
	})
}

// Invitations handles GET /api/admin/invitations
func (h *AdminHandler) Invitations(w http.ResponseWriter, r *http.Request) {
	invitations, err := h.invitations.List(r.Context())
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"invitations": invitations})
}
