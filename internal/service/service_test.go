package service

import (
	"bytes"
	"context"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/intelliod/ems/internal/domain"
	"github.com/intelliod/ems/internal/repository"
	"github.com/intelliod/ems/internal/security"
	"github.com/intelliod/ems/internal/security/audit"
	"github.com/intelliod/ems/internal/security/auth"
	"github.com/intelliod/ems/pkg/database"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

type memStore struct {
	mu      sync.Mutex
	files   map[string][]byte
	failErr error
}

func newMemStore() *memStore {
	return &memStore{files: map[string][]byte{}}
}

func (m *memStore) Save(_ context.Context, name string, r io.Reader) (int64, error) {
	if m.failErr != nil {
		return 0, m.failErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return 0, err
	}
	m.mu.Lock()
	m.files[name] = data
	m.mu.Unlock()
	return int64(len(data)), nil
}

func (m *memStore) Open(name string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.files[name]
	if !ok {
		return nil, os.ErrNotExist
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (m *memStore) Remove(name string) error {
	m.mu.Lock()
	delete(m.files, name)
	m.mu.Unlock()
	return nil
}

func (m *memStore) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.files)
}

type recordingNotifier struct {
	mu          sync.Mutex
	invitations []InvitationNotice
	reviews     []ReviewNotice
	err         error
}

func (n *recordingNotifier) InvitationCreated(_ context.Context, in InvitationNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.invitations = append(n.invitations, in)
	return n.err
}

func (n *recordingNotifier) OnboardingReviewed(_ context.Context, in ReviewNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reviews = append(n.reviews, in)
	return n.err
}

// testEnv wires every service over one in-memory SQLite database.
type testEnv struct {
	db          *gorm.DB
	repos       Repositories
	audits      *repository.AuditRepository
	clock       *fakeClock
	store       *memStore
	notifier    *recordingNotifier
	hasher      *auth.PasswordHasher
	tokens      *auth.TokenManager
	auth        *AuthService
	invitations *InvitationService
	onboarding  *OnboardingService
	profiles    *ProfileService
	documents   *DocumentService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), database.GormConfig(nil))
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := repository.Migrate(context.Background(), db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	env := &testEnv{
		db: db,
		repos: Repositories{
			Users:       repository.NewUserRepository(db, nil),
			Invitations: repository.NewInvitationRepository(db, nil),
			Profiles:    repository.NewProfileRepository(db, nil),
			Documents:   repository.NewDocumentRepository(db, nil),
			Onboardings: repository.NewOnboardingRepository(db, nil),
			Tx:          repository.NewTxManager(db),
		},
		audits:   repository.NewAuditRepository(db),
		clock:    &fakeClock{now: time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)},
		store:    newMemStore(),
		notifier: &recordingNotifier{},
		hasher:   auth.NewPasswordHasher(4),
		tokens:   auth.NewTokenManager("test-secret", "ems-test", time.Hour),
	}

	auditLog := audit.NewLogger(env.audits, nil)
	env.auth = NewAuthService(env.repos, env.tokens, env.hasher, nil, auditLog, env.clock, nil)
	env.invitations = NewInvitationService(env.repos, env.hasher, auditLog, env.notifier, env.clock, 0, nil)
	env.onboarding = NewOnboardingService(env.repos, auditLog, env.notifier, env.clock, nil)
	env.profiles = NewProfileService(env.repos, auditLog, nil)
	env.documents = NewDocumentService(env.repos, env.store, security.NewAuthorizationService(nil), auditLog, env.clock,
		DocumentLimits{MaxBytes: 1024, MaxPerType: 3}, nil)
	return env
}

func (e *testEnv) seedAdmin(t *testing.T, email string, role domain.Role) *domain.User {
	t.Helper()
	hash, err := e.hasher.Hash("admin-password")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	u := &domain.User{Email: email, Name: "Admin", PasswordHash: hash, Role: role, IsActive: true}
	if err := e.repos.Users.Create(context.Background(), u); err != nil {
		t.Fatalf("create admin: %v", err)
	}
	return u
}

// onboard invites email and completes first login, returning the new user
// and the permanent password.
func (e *testEnv) onboard(t *testing.T, inviter *domain.User, email string) (*domain.User, string) {
	t.Helper()
	ctx := context.Background()
	res, err := e.invitations.Invite(ctx, InviteInput{Email: email, Name: "New Hire"}, inviter.ID)
	if err != nil {
		t.Fatalf("invite %s: %v", email, err)
	}
	login, err := e.auth.CompleteFirstLogin(ctx, FirstLoginInput{Email: email, TempPassword: res.TempPassword, NewPassword: "permanent-pw"})
	if err != nil {
		t.Fatalf("first login %s: %v", email, err)
	}
	return login.User, "permanent-pw"
}

func (e *testEnv) auditCount(t *testing.T) int64 {
	t.Helper()
	n, err := e.audits.Count(context.Background())
	if err != nil {
		t.Fatalf("count audit: %v", err)
	}
	return n
}

func validProfile() ProfileInput {
	addr := &AddressInput{Street: "1 Main St", City: "Pune", State: "MH", ZipCode: "411001", Country: "India"}
	perm := *addr
	return ProfileInput{
		FirstName:        "Asha",
		LastName:         "Rao",
		DateOfBirth:      "1994-07-12",
		Gender:           domain.GenderFemale,
		MaritalStatus:    domain.MaritalSingle,
		Nationality:      "Indian",
		Phone:            "9876543210",
		CurrentAddress:   addr,
		PermanentAddress: &perm,
		EmergencyContact: &EmergencyContactInput{Name: "Ravi Rao", Relationship: "Brother", Phone: "9123456780"},
		BankDetails:      &BankDetailsInput{BankName: "SBI", AccountNumber: "123456789012", IFSCCode: "SBIN0000001"},
	}
}

func upload(docType domain.DocumentType, userID string) UploadInput {
	return UploadInput{
		UserID:   userID,
		Type:     string(docType),
		FileName: "scan.pdf",
		MimeType: "application/pdf",
		Size:     4,
		Content:  bytes.NewReader([]byte("%PDF")),
	}
}
