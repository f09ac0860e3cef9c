package handler

import (
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"time"

	"github.com/intelliod/ems/internal/apperror"
	"github.com/intelliod/ems/internal/domain"
	"github.com/intelliod/ems/internal/security/auth"
	"github.com/intelliod/ems/internal/service"
)

const (
	uploadFileField = "document"
	uploadTypeField = "type"
	multipartMemory = 4 << 20
	// room for multipart boundaries and the type field
	multipartOverhead = 1 << 20
)

// EmployeeHandler serves the self-service employee endpoints
type EmployeeHandler struct {
	profiles   ProfileService
	documents  DocumentService
	onboarding OnboardingService
	logger     *slog.Logger
}

// NewEmployeeHandler creates a new employee handler
func NewEmployeeHandler(profiles ProfileService, documents DocumentService, onboarding OnboardingService, logger *slog.Logger) *EmployeeHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &EmployeeHandler{profiles: profiles, documents: documents, onboarding: onboarding, logger: logger}
}

// CompleteProfile handles PUT /api/employee/complete-profile
func (h *EmployeeHandler) CompleteProfile(w http.ResponseWriter, r *http.Request) {
	var req service.ProfileInput
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	p := auth.PrincipalFromContext(r.Context())
	profile, err := h.profiles.CompleteProfile(r.Context(), p.UserID, req)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message": "Profile updated successfully",
		"profile": profile,
	})
}

type uploadedDocument struct {
	ID         string              `json:"id"`
	Type       domain.DocumentType `json:"type"`
	FileName   string              `json:"fileName"`
	FileSize   int64               `json:"fileSize"`
	UploadedAt time.Time           `json:"uploadedAt"`
}

// UploadDocument handles POST /api/employee/upload-document
func (h *EmployeeHandler) UploadDocument(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	r.Body = http.MaxBytesReader(w, r.Body, h.documents.MaxBytes()+multipartOverhead)

	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooBig *http.MaxBytesError
		switch {
		case errors.As(err, &tooBig):
			writeError(w, r, h.logger, apperror.ErrFileTooLarge)
		case errors.Is(err, http.ErrNotMultipart):
			writeError(w, r, h.logger, apperror.ErrMissingFile)
		default:
			writeError(w, r, h.logger, apperror.Validation("invalid multipart body"))
		}
		return
	}
	defer func() {
		if r.MultipartForm != nil {
			_ = r.MultipartForm.RemoveAll()
		}
	}()

	in := service.UploadInput{
		UserID: p.UserID,
		Type:   r.FormValue(uploadTypeField),
		Size:   -1,
	}

	file, header, err := r.FormFile(uploadFileField)
	switch {
	case err == nil:
		defer file.Close()
		in.Content = file
		in.FileName = header.Filename
		in.MimeType = header.Header.Get("Content-Type")
		in.Size = header.Size
	case !errors.Is(err, http.ErrMissingFile):
		writeError(w, r, h.logger, apperror.Validation("invalid multipart body"))
		return
	}

	doc, err := h.documents.Upload(r.Context(), in)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": "Document uploaded successfully",
		"document": uploadedDocument{
			ID:         doc.ID,
			Type:       doc.Type,
			FileName:   doc.FileName,
			FileSize:   doc.FileSize,
			UploadedAt: doc.UploadedAt,
		},
	})
}

// SubmitOnboarding handles POST /api/employee/submit-onboarding
func (h *EmployeeHandler) SubmitOnboarding(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	onboarding, err := h.onboarding.Submit(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"message":    "Onboarding submitted successfully",
		"onboarding": onboarding,
	})
}

type profileResponse struct {
	*domain.User
	Profile    *domain.Profile    `json:"profile"`
	Documents  []domain.Document  `json:"documents"`
	Onboarding *domain.Onboarding `json:"onboarding"`
}

// Profile handles GET /api/employee/profile
func (h *EmployeeHandler) Profile(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	view, err := h.profiles.Get(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	docs := view.Documents
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"user": profileResponse{
			User:       view.User,
			Profile:    view.Profile,
			Documents:  docs,
			Onboarding: view.Onboarding,
		},
	})
}

// Documents handles GET /api/employee/documents
func (h *EmployeeHandler) Documents(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	docs, err := h.documents.List(r.Context(), p.UserID)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	if docs == nil {
		docs = []domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

// DownloadDocument handles GET /api/uploads/documents/{name}
func (h *EmployeeHandler) DownloadDocument(w http.ResponseWriter, r *http.Request) {
	p := auth.PrincipalFromContext(r.Context())
	doc, rc, err := h.documents.Open(r.Context(), p, r.PathValue("name"))
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	defer rc.Close()

	w.Header().Set("Content-Type", doc.MimeType)
	w.Header().Set("Content-Length", strconv.FormatInt(doc.FileSize, 10))
	w.Header().Set("Content-Disposition", mime.FormatMediaType("inline", map[string]string{"filename": doc.FileName}))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(r.Context(), "document download interrupted",
			slog.String("document_id", doc.ID),
			slog.String("error", err.Error()),
		)
	}
}
