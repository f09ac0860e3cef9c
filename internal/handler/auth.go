package handler

import (
	"log/slog"
	"net/http"

	"github.com/intelliod/ems/internal/apperror"
	"github.com/intelliod/ems/internal/domain"
	"github.com/intelliod/ems/internal/security/auth"
	"github.com/intelliod/ems/internal/service"
)

// AuthHandler handles authentication endpoints
type AuthHandler struct {
	authService AuthService
	logger      *slog.Logger
}

// NewAuthHandler creates a new auth handler
func NewAuthHandler(authService AuthService, logger *slog.Logger) *AuthHandler {
	if logger == nil {
		logger = slog.Default()
	}

	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

type loginResponse struct {
	Message      string       `json:"message"`
	Token        string       `json:"token"`
	User         *domain.User `json:"user"`
	IsFirstLogin bool         `json:"isFirstLogin"`
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req service.LoginInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.authService.Login(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, loginResponse{
		Message:      "Login successful",
		Token:        result.Token,
		User:         result.User,
		IsFirstLogin: result.IsFirstLogin,
	})
}

// FirstTimeLogin handles POST /api/auth/first-time-login
func (h *AuthHandler) FirstTimeLogin(w http.ResponseWriter, r *http.Request) {
	var req service.FirstLoginInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	result, err := h.authService.CompleteFirstLogin(r.Context(), req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Password changed successfully",
		"token":   result.Token,
		"user":    result.User,
	})
}

// Logout handles POST /api/auth/logout
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	if p == nil {
		writeError(w, r, h.logger, apperror.ErrTokenMissing)
		return
	}

	if err := h.authService.Logout(r.Context(), p); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	h.logger.InfoContext(r.Context(), "user logged out", slog.String("user_id", p.UserID))
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}
