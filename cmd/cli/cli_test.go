package main

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"

	"github.com/intelliod/ems/internal/domain"
	"github.com/intelliod/ems/internal/repository"
	"github.com/intelliod/ems/pkg/config"
	"github.com/intelliod/ems/pkg/database"
)

func newTestDBEnv(t *testing.T) *dbEnv {
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

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	return newDBEnv(db, &config.Config{BcryptCost: 4, InvitationTTL: time.Hour}, log)
}

func TestSeedAdminIsIdempotent(t *testing.T) {
	env := newTestDBEnv(t)
	ctx := context.Background()

	created, err := env.seedAdmin(ctx, defaultAdminEmail, "first-password")
	if err != nil || !created {
		t.Fatalf("seed: created=%t err=%v", created, err)
	}
	created, err = env.seedAdmin(ctx, defaultAdminEmail, "other-password")
	if err != nil || created {
		t.Fatalf("second seed: created=%t err=%v", created, err)
	}

	admin, err := env.repos.Users.GetByEmail(ctx, defaultAdminEmail)
	if err != nil {
		t.Fatalf("get admin: %v", err)
	}
	if admin.Role != domain.RoleAdmin || !admin.IsActive || admin.IsFirstLogin {
		t.Fatalf("unexpected admin %+v", admin)
	}
	if ok, _ := env.hasher.Verify("first-password", admin.PasswordHash); !ok {
		t.Fatalf("seeded password should be kept")
	}
	profile, err := env.repos.Profiles.GetByUserID(ctx, admin.ID)
	if err != nil || profile.EmployeeID != "ADM001" {
		t.Fatalf("profile: %+v err=%v", profile, err)
	}
}

func TestSeedSecondAdminGetsNextEmployeeID(t *testing.T) {
	env := newTestDBEnv(t)
	ctx := context.Background()

	if _, err := env.seedAdmin(ctx, defaultAdminEmail, "first-password"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	created, err := env.seedAdmin(ctx, "ops@intelliod.com", "second-password")
	if err != nil || !created {
		t.Fatalf("second admin: created=%t err=%v", created, err)
	}

	ops, err := env.repos.Users.GetByEmail(ctx, "ops@intelliod.com")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	profile, err := env.repos.Profiles.GetByUserID(ctx, ops.ID)
	if err != nil || profile.EmployeeID != "ADM002" {
		t.Fatalf("profile: %+v err=%v", profile, err)
	}

	if err := env.repos.Users.Create(ctx, &domain.User{Email: "emp@intelliod.com", Name: "Emp", PasswordHash: "x", Role: domain.RoleEmployee}); err != nil {
		t.Fatalf("create employee: %v", err)
	}
	if _, err := env.seedAdmin(ctx, "emp@intelliod.com", "whatever-pw"); err == nil {
		t.Fatalf("seeding over an employee account must fail")
	}
}

func TestUpdateAdminEmailRejectsTakenAddress(t *testing.T) {
	env := newTestDBEnv(t)
	ctx := context.Background()
	if _, err := env.seedAdmin(ctx, "admin@company.com", "first-password"); err != nil {
		t.Fatalf("seed: %v", err)
	}
	if err := env.repos.Users.Create(ctx, &domain.User{Email: "taken@company.com", Name: "Taken", PasswordHash: "x", Role: domain.RoleEmployee}); err != nil {
		t.Fatalf("create: %v", err)
	}

	err := env.updateAdminEmail(ctx, "admin@company.com", "Taken@Company.com")
	if err == nil || !strings.Contains(err.Error(), "already in use") {
		t.Fatalf("expected duplicate email to be reported, got %v", err)
	}
}

func TestAdminPasswordAndEmail(t *testing.T) {
	env := newTestDBEnv(t)
	ctx := context.Background()
	if _, err := env.seedAdmin(ctx, "admin@company.com", "first-password"); err != nil {
		t.Fatalf("seed: %v", err)
	}

	if err := env.setAdminPassword(ctx, "admin@company.com", "short"); err == nil {
		t.Fatalf("expected short password to be rejected")
	}
	if err := env.setAdminPassword(ctx, "admin@company.com", "rotated-password"); err != nil {
		t.Fatalf("set password: %v", err)
	}
	if err := env.updateAdminEmail(ctx, "admin@company.com", "Admin@Intelliod.com"); err != nil {
		t.Fatalf("update email: %v", err)
	}

	admin, err := env.repos.Users.GetByEmail(ctx, defaultAdminEmail)
	if err != nil {
		t.Fatalf("admin should be reachable under the new email: %v", err)
	}
	if ok, _ := env.hasher.Verify("rotated-password", admin.PasswordHash); !ok {
		t.Fatalf("password was not rotated")
	}
}

func TestAdminToolsRefuseEmployees(t *testing.T) {
	env := newTestDBEnv(t)
	ctx := context.Background()
	if err := env.repos.Users.Create(ctx, &domain.User{Email: "emp@example.com", Name: "Emp", PasswordHash: "x", Role: domain.RoleEmployee}); err != nil {
		t.Fatalf("create: %v", err)
	}

	if err := env.setAdminPassword(ctx, "emp@example.com", "long-enough-pw"); err == nil {
		t.Fatalf("expected non-admin to be refused")
	}
	if err := env.updateAdminEmail(ctx, "emp@example.com", "x@example.com"); err == nil {
		t.Fatalf("expected non-admin to be refused")
	}
}

func TestAPIClientLoginStoresToken(t *testing.T) {
	t.Setenv("HOME", t.TempDir())

	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/auth/login":
			var body map[string]string
			_ = json.NewDecoder(r.Body).Decode(&body)
			if body["password"] != "pw" {
				w.WriteHeader(http.StatusUnauthorized)
				_, _ = w.Write([]byte(`{"error":"invalid credentials","code":"invalid_credential"}`))
				return
			}
			_, _ = w.Write([]byte(`{"token":"tok-123","user":{"email":"a@x.com","role":"ADMIN"}}`))
		case "/api/admin/invitations":
			gotAuth = r.Header.Get("Authorization")
			_, _ = w.Write([]byte(`{"invitations":[]}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()
	t.Setenv("EMS_API", srv.URL+"/api")

	err := loginUser([]string{"-email", "a@x.com", "-password", "bad"})
	if err == nil || !strings.Contains(err.Error(), "invalid credentials") {
		t.Fatalf("expected server message in error, got %v", err)
	}

	if err := loginUser([]string{"-email", "a@x.com", "-password", "pw"}); err != nil {
		t.Fatalf("login: %v", err)
	}
	if loadToken() != "tok-123" {
		t.Fatalf("token not stored: %q", loadToken())
	}

	if err := listInvitations(); err != nil {
		t.Fatalf("invitations: %v", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Fatalf("unexpected authorization header %q", gotAuth)
	}
}

func TestRunRejectsUnknownCommand(t *testing.T) {
	if code := run([]string{"bogus"}); code != 1 {
		t.Fatalf("expected exit code 1, got %d", code)
	}
	if code := run([]string{"help"}); code != 0 {
		t.Fatalf("help should succeed, got %d", code)
	}
}
