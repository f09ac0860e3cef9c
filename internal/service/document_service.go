package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/intelliod/ems/internal/apperror"
	"github.com/intelliod/ems/internal/domain"
	"github.com/intelliod/ems/internal/observability/metrics"
	"github.com/intelliod/ems/internal/security"
	"github.com/intelliod/ems/internal/security/audit"
	"github.com/intelliod/ems/internal/security/auth"
)

const (
	DefaultMaxUploadBytes  = 10 << 20
	DefaultMaxPerType      = 20
	DocumentPathPrefix     = "uploads/documents/"
	documentFileNamePrefix = "document-"
)

// allowedFormats maps an accepted file extension to the mime types that may
// be declared with it.
var allowedFormats = map[string][]string{
	".jpg":  {"image/jpeg", "image/jpg", "image/pjpeg"},
	".jpeg": {"image/jpeg", "image/jpg", "image/pjpeg"},
	".png":  {"image/png"},
	".pdf":  {"application/pdf"},
	".doc":  {"application/msword"},
	".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
}

func formatAllowed(fileName, mimeType string) bool {
	ext := strings.ToLower(filepath.Ext(fileName))
	allowed, ok := allowedFormats[ext]
	if !ok {
		return false
	}
	mediaType, _, err := mime.ParseMediaType(mimeType)
	if err != nil {
		return false
	}
	for _, m := range allowed {
		if strings.EqualFold(mediaType, m) {
			return true
		}
	}
	return false
}

// FileStore persists document content under flat, generated names.
type FileStore interface {
	Save(ctx context.Context, name string, r io.Reader) (int64, error)
	Open(name string) (io.ReadCloser, error)
	Remove(name string) error
}

// DocumentService handles document intake and retrieval
type DocumentService struct {
	repos      Repositories
	store      FileStore
	authz      *security.AuthorizationService
	audit      *audit.Logger
	clock      Clock
	maxBytes   int64
	maxPerType int64
	logger     *slog.Logger
}

// DocumentLimits bounds what a single user may upload
type DocumentLimits struct {
	MaxBytes   int64
	MaxPerType int
}

// NewDocumentService creates a new document service
func NewDocumentService(
	repos Repositories,
	store FileStore,
	authz *security.AuthorizationService,
	auditLog *audit.Logger,
	clock Clock,
	limits DocumentLimits,
	logger *slog.Logger,
) *DocumentService {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = realClock{}
	}
	if authz == nil {
		authz = security.NewAuthorizationService(logger)
	}
	if limits.MaxBytes <= 0 {
		limits.MaxBytes = DefaultMaxUploadBytes
	}
	if limits.MaxPerType <= 0 {
		limits.MaxPerType = DefaultMaxPerType
	}
	return &DocumentService{
		repos:      repos,
		store:      store,
		authz:      authz,
		audit:      auditLog,
		clock:      clock,
		maxBytes:   limits.MaxBytes,
		maxPerType: int64(limits.MaxPerType),
		logger:     logger,
	}
}

// MaxBytes is the largest accepted upload
func (s *DocumentService) MaxBytes() int64 {
	return s.maxBytes
}

// UploadInput describes one uploaded file. Size is the size declared by the
// transport, or -1 when unknown.
type UploadInput struct {
	UserID   string
	Type     string
	FileName string
	MimeType string
	Size     int64
	Content  io.Reader
}

// Upload stores the file and records its metadata. The row and its audit
// entry commit together; the stored file is removed if they do not.
func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*domain.Document, error) {
	docType, err := domain.ParseDocumentType(in.Type)
	if err != nil {
		metrics.ObserveUpload(in.Type, "invalid_type", 0)
		return nil, apperror.ErrInvalidDocumentType
	}
	if in.Content == nil || in.FileName == "" {
		metrics.ObserveUpload(string(docType), "missing_file", 0)
		return nil, apperror.ErrMissingFile
	}
	if in.Size > s.maxBytes {
		metrics.ObserveUpload(string(docType), "too_large", in.Size)
		return nil, apperror.ErrFileTooLarge
	}
	if !formatAllowed(in.FileName, in.MimeType) {
		metrics.ObserveUpload(string(docType), "unsupported", in.Size)
		return nil, apperror.ErrUnsupportedFormat
	}

	// checked again under the user lock once the file is stored
	if err := s.checkTypeLimit(ctx, in.UserID, docType, in.Size); err != nil {
		return nil, err
	}

	name := s.storedName(in.FileName)
	written, err := s.store.Save(ctx, name, io.LimitReader(in.Content, s.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	if written > s.maxBytes {
		s.discard(ctx, name)
		metrics.ObserveUpload(string(docType), "too_large", written)
		return nil, apperror.ErrFileTooLarge
	}
	if written == 0 {
		s.discard(ctx, name)
		metrics.ObserveUpload(string(docType), "missing_file", 0)
		return nil, apperror.ErrMissingFile
	}

	doc := &domain.Document{
		UserID:   in.UserID,
		Type:     docType,
		FileName: filepath.Base(in.FileName),
		FilePath: DocumentPathPrefix + name,
		FileSize: written,
		MimeType: in.MimeType,
	}
	err = s.repos.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		if err := s.repos.Users.LockForUpdate(ctx, in.UserID); err != nil {
			return err
		}
		if err := s.checkTypeLimit(ctx, in.UserID, docType, written); err != nil {
			return err
		}
		if err := s.repos.Documents.Create(ctx, doc); err != nil {
			return err
		}
		return s.audit.Record(ctx, audit.Entry{
			ActorID:  in.UserID,
			Action:   domain.ActionUploadDocument,
			Entity:   domain.EntityDocument,
			EntityID: doc.ID,
			NewValues: map[string]any{
				"type":     docType,
				"fileName": doc.FileName,
				"fileSize": written,
			},
		})
	})
	if err != nil {
		s.discard(ctx, name)
		return nil, err
	}

	metrics.ObserveUpload(string(docType), "ok", written)
	s.logger.InfoContext(ctx, "document uploaded",
		slog.String("user_id", in.UserID),
		slog.String("document_id", doc.ID),
		slog.String("type", string(docType)),
		slog.Int64("size", written),
	)
	return doc, nil
}

func (s *DocumentService) checkTypeLimit(ctx context.Context, userID string, docType domain.DocumentType, size int64) error {
	count, err := s.repos.Documents.CountByUserAndType(ctx, userID, docType)
	if err != nil {
		return err
	}
	if count >= s.maxPerType {
		metrics.ObserveUpload(string(docType), "limit", size)
		return apperror.ErrDocumentLimit.WithMessage(
			fmt.Sprintf("at most %d documents of type %s are allowed", s.maxPerType, docType))
	}
	return nil
}

func (s *DocumentService) storedName(original string) string {
	suffix := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	ext := strings.ToLower(filepath.Ext(original))
	return fmt.Sprintf("%s%d-%s%s", documentFileNamePrefix, s.clock.Now().UnixMilli(), suffix, ext)
}

func (s *DocumentService) discard(ctx context.Context, name string) {
	if err := s.store.Remove(name); err != nil {
		s.logger.WarnContext(ctx, "failed to remove stored document",
			slog.String("name", name),
			slog.String("error", err.Error()),
		)
	}
}

// List returns the user's documents, newest first
func (s *DocumentService) List(ctx context.Context, userID string) ([]domain.Document, error) {
	return s.repos.Documents.ListByUser(ctx, userID)
}

// Open returns a stored document to its owner or to a role that may read
// any document. The caller closes the returned reader.
func (s *DocumentService) Open(ctx context.Context, p *auth.Principal, name string) (*domain.Document, io.ReadCloser, error) {
	if p == nil {
		return nil, nil, apperror.ErrTokenMissing
	}
	if name == "" || name != filepath.Base(name) || strings.HasPrefix(name, ".") {
		return nil, nil, apperror.ErrNotFound.WithMessage("document not found")
	}

	doc, err := s.repos.Documents.GetByFilePath(ctx, DocumentPathPrefix+name)
	if err != nil {
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, nil, apperror.ErrNotFound.WithMessage("document not found")
		}
		return nil, nil, err
	}

	if err := s.authz.ValidateResourceAccess(p.UserID, p.Role, security.ResourcePermission{
		ResourceType: security.ResourceDocument,
		ResourceID:   doc.ID,
		OwnerID:      doc.UserID,
	}); err != nil {
		return nil, nil, err
	}

	rc, err := s.store.Open(name)
	if err != nil {
		return nil, nil, fmt.Errorf("open document: %w", err)
	}
	return doc, rc, nil
}
