package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/intelliod/ems/internal/apperror"
	"github.com/intelliod/ems/internal/domain"
	"github.com/intelliod/ems/internal/featureflags"
	"github.com/intelliod/ems/internal/security/auth"
	"github.com/intelliod/ems/internal/service"
)

type stubAuth struct {
	loginFn      func(ctx context.Context, in service.LoginInput) (*service.LoginResult, error)
	firstLoginFn func(ctx context.Context, in service.FirstLoginInput) (*service.LoginResult, error)
	logoutFn     func(ctx context.Context, p *auth.Principal) error
}

func (s stubAuth) Login(ctx context.Context, in service.LoginInput) (*service.LoginResult, error) {
	if s.loginFn == nil {
		return &service.LoginResult{}, nil
	}
	return s.loginFn(ctx, in)
}

func (s stubAuth) CompleteFirstLogin(ctx context.Context, in service.FirstLoginInput) (*service.LoginResult, error) {
	if s.firstLoginFn == nil {
		return &service.LoginResult{}, nil
	}
	return s.firstLoginFn(ctx, in)
}

func (s stubAuth) Logout(ctx context.Context, p *auth.Principal) error {
	if s.logoutFn == nil {
		return nil
	}
	return s.logoutFn(ctx, p)
}

type stubInvitations struct {
	inviteFn func(ctx context.Context, in service.InviteInput, inviterID string) (*service.InviteResult, error)
	listFn   func(ctx context.Context) ([]service.InvitationView, error)
}

func (s stubInvitations) Invite(ctx context.Context, in service.InviteInput, inviterID string) (*service.InviteResult, error) {
	if s.inviteFn == nil {
		return &service.InviteResult{}, nil
	}
	return s.inviteFn(ctx, in, inviterID)
}

func (s stubInvitations) List(ctx context.Context) ([]service.InvitationView, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx)
}

type stubOnboarding struct {
	submitFn  func(ctx context.Context, userID string) (*domain.Onboarding, error)
	reviewFn  func(ctx context.Context, id string, in service.ReviewInput, reviewerID string) (*domain.Onboarding, error)
	pendingFn func(ctx context.Context) ([]service.PendingApproval, error)
}

func (s stubOnboarding) Submit(ctx context.Context, userID string) (*domain.Onboarding, error) {
	if s.submitFn == nil {
		return &domain.Onboarding{}, nil
	}
	return s.submitFn(ctx, userID)
}

func (s stubOnboarding) Review(ctx context.Context, id string, in service.ReviewInput, reviewerID string) (*domain.Onboarding, error) {
	if s.reviewFn == nil {
		return &domain.Onboarding{}, nil
	}
	return s.reviewFn(ctx, id, in, reviewerID)
}

func (s stubOnboarding) PendingApprovals(ctx context.Context) ([]service.PendingApproval, error) {
	if s.pendingFn == nil {
		return nil, nil
	}
	return s.pendingFn(ctx)
}

type stubProfiles struct {
	completeFn func(ctx context.Context, userID string, in service.ProfileInput) (*domain.Profile, error)
	getFn      func(ctx context.Context, userID string) (*service.ProfileView, error)
}

func (s stubProfiles) CompleteProfile(ctx context.Context, userID string, in service.ProfileInput) (*domain.Profile, error) {
	if s.completeFn == nil {
		return &domain.Profile{}, nil
	}
	return s.completeFn(ctx, userID, in)
}

func (s stubProfiles) Get(ctx context.Context, userID string) (*service.ProfileView, error) {
	if s.getFn == nil {
		return &service.ProfileView{User: &domain.User{ID: userID}}, nil
	}
	return s.getFn(ctx, userID)
}

type stubDocuments struct {
	uploadFn func(ctx context.Context, in service.UploadInput) (*domain.Document, error)
	listFn   func(ctx context.Context, userID string) ([]domain.Document, error)
	openFn   func(ctx context.Context, p *auth.Principal, name string) (*domain.Document, io.ReadCloser, error)
}

func (s stubDocuments) Upload(ctx context.Context, in service.UploadInput) (*domain.Document, error) {
	if s.uploadFn == nil {
		return &domain.Document{}, nil
	}
	return s.uploadFn(ctx, in)
}

func (s stubDocuments) List(ctx context.Context, userID string) ([]domain.Document, error) {
	if s.listFn == nil {
		return nil, nil
	}
	return s.listFn(ctx, userID)
}

func (s stubDocuments) Open(ctx context.Context, p *auth.Principal, name string) (*domain.Document, io.ReadCloser, error) {
	if s.openFn == nil {
		return nil, nil, apperror.ErrNotFound
	}
	return s.openFn(ctx, p, name)
}

func (s stubDocuments) MaxBytes() int64 { return 1024 }

type tokenAuthenticator map[string]*auth.Principal

func (m tokenAuthenticator) Authenticate(_ context.Context, token string) (*auth.Principal, error) {
	if p, ok := m[token]; ok {
		return p, nil
	}
	return nil, apperror.ErrTokenInvalid
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) PingContext(ctx context.Context) error { return f(ctx) }

type services struct {
	auth        stubAuth
	invitations stubInvitations
	onboarding  stubOnboarding
	profiles    stubProfiles
	documents   stubDocuments
	ping        pingFunc
}

func newTestRouter(s services) http.Handler {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	if s.ping == nil {
		s.ping = func(context.Context) error { return nil }
	}
	return NewRouter(Handlers{
		Auth:     NewAuthHandler(s.auth, log),
		Admin:    NewAdminHandler(s.invitations, s.onboarding, featureflags.FromEnv(), log),
		Employee: NewEmployeeHandler(s.profiles, s.documents, s.onboarding, log),
		Health:   NewHealthHandler(s.ping, nil, log),
	}, RouterConfig{
		Authenticator: tokenAuthenticator{
			"admin-token": {UserID: "admin-1", Role: domain.RoleAdmin},
			"hr-token":    {UserID: "hr-1", Role: domain.RoleHR},
			"emp-token":   {UserID: "emp-1", Role: domain.RoleEmployee},
		},
		Logger: log,
	})
}

func doJSON(t *testing.T, h http.Handler, method, path, token, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var payload map[string]any
	if err := json.NewDecoder(rr.Body).Decode(&payload); err != nil {
		t.Fatalf("decode response body: %v", err)
	}
	return payload
}

func TestLogin(t *testing.T) {
	h := newTestRouter(services{auth: stubAuth{
		loginFn: func(ctx context.Context, in service.LoginInput) (*service.LoginResult, error) {
			if in.Email != "a@x.com" || in.Password != "pw" {
				return nil, apperror.ErrInvalidCredential
			}
			return &service.LoginResult{Token: "tok", User: &domain.User{ID: "u1", Email: "a@x.com", PasswordHash: "secret"}, IsFirstLogin: true}, nil
		},
	}})

	rr := doJSON(t, h, http.MethodPost, "/api/auth/login", "", `{"email":"a@x.com","password":"pw"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if strings.Contains(rr.Body.String(), "secret") {
		t.Fatalf("password hash leaked: %s", rr.Body.String())
	}
	payload := decode(t, rr)
	if payload["token"] != "tok" || payload["isFirstLogin"] != true {
		t.Fatalf("unexpected payload %v", payload)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/auth/login", "", `{"email":"a@x.com","password":"nope"}`)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	rr = doJSON(t, h, http.MethodPost, "/api/auth/login", "", `{"email":"a@x.com","password":"pw","extra":1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("unknown fields should be rejected, got %d", rr.Code)
	}
}

func TestFirstTimeLoginErrorStatuses(t *testing.T) {
	cases := []struct {
		err    error
		status int
	}{
		{apperror.ErrNotFound.WithMessage("user not found"), http.StatusNotFound},
		{apperror.ErrFirstLoginCompleted, http.StatusBadRequest},
		{apperror.ErrInvalidCredential.WithMessage("invalid temporary password"), http.StatusUnauthorized},
		{apperror.ErrInvitationExpired, http.StatusBadRequest},
		{errors.New("database is down"), http.StatusInternalServerError},
	}

	for _, tc := range cases {
		h := newTestRouter(services{auth: stubAuth{
			firstLoginFn: func(context.Context, service.FirstLoginInput) (*service.LoginResult, error) {
				return nil, tc.err
			},
		}})
		rr := doJSON(t, h, http.MethodPost, "/api/auth/first-time-login", "", `{"email":"a@x.com","tempPassword":"t","newPassword":"password1"}`)
		if rr.Code != tc.status {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.status, rr.Code)
		}
		if tc.status == http.StatusInternalServerError && strings.Contains(rr.Body.String(), "database") {
			t.Fatalf("internal error leaked: %s", rr.Body.String())
		}
	}
}

func TestAdminRoutesRequireRole(t *testing.T) {
	var inviter string
	h := newTestRouter(services{invitations: stubInvitations{
		inviteFn: func(ctx context.Context, in service.InviteInput, inviterID string) (*service.InviteResult, error) {
			inviter = inviterID
			return &service.InviteResult{
				Invitation:   service.InvitationView{ID: "inv-1", Email: in.Email, Status: domain.InvitationPending},
				TempPassword: "Temp1234",
			}, nil
		},
	}})
	body := `{"email":"new@x.com","name":"New Hire"}`

	if rr := doJSON(t, h, http.MethodPost, "/api/admin/invite-employee", "", body); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
	if rr := doJSON(t, h, http.MethodPost, "/api/admin/invite-employee", "emp-token", body); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403 for employee, got %d", rr.Code)
	}

	rr := doJSON(t, h, http.MethodPost, "/api/admin/invite-employee", "hr-token", body)
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	payload := decode(t, rr)
	if payload["tempPassword"] != "Temp1234" || inviter != "hr-1" {
		t.Fatalf("unexpected payload %v (inviter %q)", payload, inviter)
	}
}

func TestInviteRedactsTempPasswordWhenFlagged(t *testing.T) {
	t.Setenv("FLAG_REDACT_TEMP_PASSWORD", "true")
	h := newTestRouter(services{invitations: stubInvitations{
		inviteFn: func(context.Context, service.InviteInput, string) (*service.InviteResult, error) {
			return &service.InviteResult{TempPassword: "Temp1234"}, nil
		},
	}})

	rr := doJSON(t, h, http.MethodPost, "/api/admin/invite-employee", "admin-token", `{"email":"new@x.com","name":"New Hire"}`)
	if rr.Code != http.StatusCreated || strings.Contains(rr.Body.String(), "Temp1234") {
		t.Fatalf("temp password should be redacted: %d %s", rr.Code, rr.Body.String())
	}
}

func TestInviteDuplicateIsBadRequest(t *testing.T) {
	h := newTestRouter(services{invitations: stubInvitations{
		inviteFn: func(context.Context, service.InviteInput, string) (*service.InviteResult, error) {
			return nil, apperror.ErrDuplicateInvitation
		},
	}})
	rr := doJSON(t, h, http.MethodPost, "/api/admin/invite-employee", "admin-token", `{"email":"new@x.com","name":"New Hire"}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if payload := decode(t, rr); payload["code"] != "duplicate_invitation" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestApproveEmployee(t *testing.T) {
	h := newTestRouter(services{onboarding: stubOnboarding{
		reviewFn: func(ctx context.Context, id string, in service.ReviewInput, reviewerID string) (*domain.Onboarding, error) {
			switch id {
			case "missing":
				return nil, apperror.ErrNotFound.WithMessage("onboarding request not found")
			case "approved":
				return nil, apperror.ErrInvalidState
			}
			return &domain.Onboarding{ID: id, Status: domain.OnboardingApproved}, nil
		},
	}})

	rr := doJSON(t, h, http.MethodPut, "/api/admin/approve-employee/ob-1", "admin-token", `{"approved":true,"notes":"ok"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if payload := decode(t, rr); payload["message"] != "Employee approved successfully" {
		t.Fatalf("unexpected payload %v", payload)
	}

	if rr := doJSON(t, h, http.MethodPut, "/api/admin/approve-employee/missing", "admin-token", `{"approved":true}`); rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	if rr := doJSON(t, h, http.MethodPut, "/api/admin/approve-employee/approved", "admin-token", `{"approved":true}`); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for wrong state, got %d", rr.Code)
	}
}

func TestSubmitOnboardingMissingDocuments(t *testing.T) {
	h := newTestRouter(services{onboarding: stubOnboarding{
		submitFn: func(ctx context.Context, userID string) (*domain.Onboarding, error) {
			return nil, apperror.ErrMissingDocuments.WithDetails(apperror.FieldError{Field: "documents", Message: "missing RESUME"})
		},
	}})

	rr := doJSON(t, h, http.MethodPost, "/api/employee/submit-onboarding", "emp-token", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	payload := decode(t, rr)
	details, ok := payload["details"].([]any)
	if !ok || len(details) != 1 {
		t.Fatalf("expected details, got %v", payload)
	}
}

func TestProfileEmbedsUserFields(t *testing.T) {
	h := newTestRouter(services{profiles: stubProfiles{
		getFn: func(ctx context.Context, userID string) (*service.ProfileView, error) {
			return &service.ProfileView{
				User:       &domain.User{ID: userID, Email: "e@x.com", IsActive: true},
				Profile:    &domain.Profile{FirstName: "Eve"},
				Onboarding: &domain.Onboarding{Status: domain.OnboardingApproved},
			}, nil
		},
	}})

	rr := doJSON(t, h, http.MethodGet, "/api/employee/profile", "emp-token", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	user, ok := decode(t, rr)["user"].(map[string]any)
	if !ok {
		t.Fatalf("missing user object")
	}
	if user["id"] != "emp-1" || user["isActive"] != true {
		t.Fatalf("user fields not embedded: %v", user)
	}
	if docs, ok := user["documents"].([]any); !ok || len(docs) != 0 {
		t.Fatalf("documents should be an empty list, got %v", user["documents"])
	}
	if ob, _ := user["onboarding"].(map[string]any); ob["status"] != "APPROVED" {
		t.Fatalf("unexpected onboarding %v", user["onboarding"])
	}
}

func multipartBody(t *testing.T, docType, fileName, contentType string, content []byte) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if docType != "" {
		if err := mw.WriteField("type", docType); err != nil {
			t.Fatalf("write field: %v", err)
		}
	}
	if fileName != "" {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="document"; filename="`+fileName+`"`)
		hdr.Set("Content-Type", contentType)
		part, err := mw.CreatePart(hdr)
		if err != nil {
			t.Fatalf("create part: %v", err)
		}
		if _, err := part.Write(content); err != nil {
			t.Fatalf("write part: %v", err)
		}
	}
	if err := mw.Close(); err != nil {
		t.Fatalf("close writer: %v", err)
	}
	return &buf, mw.FormDataContentType()
}

func TestUploadDocument(t *testing.T) {
	var got service.UploadInput
	var gotContent []byte
	h := newTestRouter(services{documents: stubDocuments{
		uploadFn: func(ctx context.Context, in service.UploadInput) (*domain.Document, error) {
			got = in
			if in.Content == nil {
				return nil, apperror.ErrMissingFile
			}
			gotContent, _ = io.ReadAll(in.Content)
			return &domain.Document{ID: "doc-1", Type: domain.DocumentResume, FileName: in.FileName, FileSize: int64(len(gotContent)), UploadedAt: time.Now()}, nil
		},
	}})

	body, contentType := multipartBody(t, "RESUME", "cv.pdf", "application/pdf", []byte("%PDF-1.7"))
	req := httptest.NewRequest(http.MethodPost, "/api/employee/upload-document", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer emp-token")
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d: %s", rr.Code, rr.Body.String())
	}
	if got.UserID != "emp-1" || got.Type != "RESUME" || got.FileName != "cv.pdf" || got.MimeType != "application/pdf" {
		t.Fatalf("unexpected upload input %+v", got)
	}
	if string(gotContent) != "%PDF-1.7" {
		t.Fatalf("unexpected content %q", gotContent)
	}

	body, contentType = multipartBody(t, "RESUME", "", "", nil)
	req = httptest.NewRequest(http.MethodPost, "/api/employee/upload-document", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer emp-token")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing file, got %d", rr.Code)
	}

	body, contentType = multipartBody(t, "RESUME", "big.pdf", "application/pdf", bytes.Repeat([]byte("x"), 3<<20))
	req = httptest.NewRequest(http.MethodPost, "/api/employee/upload-document", body)
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer emp-token")
	rr = httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for oversized body, got %d", rr.Code)
	}
	if payload := decode(t, rr); payload["code"] != "file_too_large" {
		t.Fatalf("unexpected payload %v", payload)
	}
}

func TestDownloadDocument(t *testing.T) {
	h := newTestRouter(services{documents: stubDocuments{
		openFn: func(ctx context.Context, p *auth.Principal, name string) (*domain.Document, io.ReadCloser, error) {
			if p.UserID != "emp-1" {
				return nil, nil, apperror.ErrForbidden
			}
			doc := &domain.Document{ID: "d1", FileName: "cv.pdf", MimeType: "application/pdf", FileSize: 4}
			return doc, io.NopCloser(strings.NewReader("%PDF")), nil
		},
	}})

	rr := doJSON(t, h, http.MethodGet, "/api/uploads/documents/document-1-abc.pdf", "emp-token", "")
	if rr.Code != http.StatusOK || rr.Body.String() != "%PDF" || rr.Header().Get("Content-Type") != "application/pdf" {
		t.Fatalf("unexpected download: %d %q %v", rr.Code, rr.Body.String(), rr.Header())
	}

	if rr := doJSON(t, h, http.MethodGet, "/api/uploads/documents/document-1-abc.pdf", "hr-token", ""); rr.Code != http.StatusForbidden {
		t.Fatalf("expected 403, got %d", rr.Code)
	}
}

func TestHealthAndReadiness(t *testing.T) {
	h := newTestRouter(services{})
	if rr := doJSON(t, h, http.MethodGet, "/api/health", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("health: %d", rr.Code)
	}
	if rr := doJSON(t, h, http.MethodGet, "/readyz", "", ""); rr.Code != http.StatusOK {
		t.Fatalf("ready: %d", rr.Code)
	}

	down := newTestRouter(services{ping: func(context.Context) error { return errors.New("connection refused") }})
	rr := doJSON(t, down, http.MethodGet, "/readyz", "", "")
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 when database is down, got %d", rr.Code)
	}
	if strings.Contains(rr.Body.String(), "connection refused") {
		t.Fatalf("readiness must not leak error text: %s", rr.Body.String())
	}
	if _, ok := decode(t, rr)["checks"].(map[string]any)["redis"]; ok {
		t.Fatalf("redis is not checked when not configured")
	}
}

func TestDocsListsRoutes(t *testing.T) {
	rr := doJSON(t, newTestRouter(services{}), http.MethodGet, "/docs", "", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("docs: %d", rr.Code)
	}
	var docs APIDocs
	if err := json.NewDecoder(rr.Body).Decode(&docs); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(docs.Endpoints) != len(catalogue.Endpoints) {
		t.Fatalf("unexpected endpoint count %d", len(docs.Endpoints))
	}
}
