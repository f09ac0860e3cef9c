package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"time"

	"gorm.io/gorm"

	"github.com/intelliod/ems/internal/apperror"
	"github.com/intelliod/ems/internal/domain"
	"github.com/intelliod/ems/internal/infrastructure/logger"
	"github.com/intelliod/ems/internal/repository"
	"github.com/intelliod/ems/internal/security/audit"
	"github.com/intelliod/ems/internal/security/auth"
	"github.com/intelliod/ems/internal/service"
	"github.com/intelliod/ems/pkg/config"
	"github.com/intelliod/ems/pkg/database"
)

const defaultAdminEmail = "admin@intelliod.com"

// dbEnv is the state shared by the db subcommands.
type dbEnv struct {
	db     *gorm.DB
	cfg    *config.Config
	repos  service.Repositories
	audit  *audit.Logger
	hasher *auth.PasswordHasher
	log    *slog.Logger
}

func newDBEnv(db *gorm.DB, cfg *config.Config, log *slog.Logger) *dbEnv {
	return &dbEnv{
		db:  db,
		cfg: cfg,
		repos: service.Repositories{
			Users:       repository.NewUserRepository(db, log),
			Invitations: repository.NewInvitationRepository(db, log),
			Profiles:    repository.NewProfileRepository(db, log),
			Documents:   repository.NewDocumentRepository(db, log),
			Onboardings: repository.NewOnboardingRepository(db, log),
			Tx:          repository.NewTxManager(db),
		},
		audit:  audit.NewLogger(repository.NewAuditRepository(db), log),
		hasher: auth.NewPasswordHasher(cfg.BcryptCost),
		log:    log,
	}
}

func handleDB(args []string) error {
	if len(args) < 1 {
		fmt.Println("Usage: emsctl db <migrate|seed|admin-password|admin-email|expire-invitations>")
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logger.New(os.Stderr, cfg.LogLevel)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	pool, err := database.Open(ctx, cfg.Database(), log)
	if err != nil {
		return err
	}
	defer pool.Close()

	db := pool.Gorm()
	env := newDBEnv(db, cfg, log)

	subCmd := args[0]
	switch subCmd {
	case "migrate":
		if err := repository.Migrate(ctx, db); err != nil {
			return err
		}
		fmt.Println("✓ Schema migrated")
		return nil
	case "seed":
		return env.seedCommand(ctx, args[1:])
	case "admin-password":
		return env.adminPasswordCommand(ctx, args[1:])
	case "admin-email":
		return env.adminEmailCommand(ctx, args[1:])
	case "expire-invitations":
		return env.expireCommand(ctx)
	default:
		return fmt.Errorf("unknown db command: %s", subCmd)
	}
}

func (e *dbEnv) seedCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("seed", flag.ContinueOnError)
	email := fs.String("email", defaultAdminEmail, "admin email")
	password := fs.String("password", "", "admin password (generated when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := repository.Migrate(ctx, e.db); err != nil {
		return err
	}

	generated := false
	if *password == "" {
		pw, err := auth.GenerateTempPassword(16)
		if err != nil {
			return err
		}
		*password = pw
		generated = true
	}

	created, err := e.seedAdmin(ctx, *email, *password)
	if err != nil {
		return err
	}
	if !created {
		fmt.Printf("✓ Admin %s already exists, nothing to do\n", *email)
		return nil
	}
	fmt.Printf("✓ Database seeded, admin: %s\n", *email)
	if generated {
		fmt.Printf("  Generated password: %s\n", *password)
	}
	return nil
}

// seedAdmin creates an administrator and its profile unless an admin with
// that email already exists. Admin employee ids are numbered ADM001, ADM002...
func (e *dbEnv) seedAdmin(ctx context.Context, email, password string) (bool, error) {
	existing, err := e.repos.Users.GetByEmail(ctx, email)
	switch {
	case err == nil && existing.Role == domain.RoleAdmin:
		return false, nil
	case err == nil:
		return false, fmt.Errorf("%s already exists with role %s", existing.Email, existing.Role)
	case !errors.Is(err, apperror.ErrNotFound):
		return false, err
	}

	admins, err := e.repos.Users.ListByRole(ctx, domain.RoleAdmin)
	if err != nil {
		return false, err
	}
	employeeID := fmt.Sprintf("ADM%03d", len(admins)+1)

	hash, err := e.hasher.Hash(password)
	if err != nil {
		return false, err
	}
	joined := time.Date(2020, 1, 15, 0, 0, 0, 0, time.UTC)

	err = e.repos.Tx.WithinTransaction(ctx, func(ctx context.Context) error {
		admin := &domain.User{
			Email:        email,
			Name:         "System Administrator",
			PasswordHash: hash,
			Role:         domain.RoleAdmin,
			IsActive:     true,
		}
		if err := e.repos.Users.Create(ctx, admin); err != nil {
			return err
		}
		return e.repos.Profiles.Create(ctx, &domain.Profile{
			UserID:       admin.ID,
			EmployeeID:   employeeID,
			FirstName:    "System",
			LastName:     "Administrator",
			Department:   "IT",
			Position:     "System Admin",
			JoinDate:     &joined,
			ContractType: "FULL_TIME",
			WorkLocation: "HYBRID",
		})
	})
	if err != nil {
		return false, err
	}
	e.log.InfoContext(ctx, "admin seeded",
		slog.String("email", domain.NormalizeEmail(email)),
		slog.String("employee_id", employeeID),
	)
	return true, nil
}

func (e *dbEnv) adminPasswordCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("admin-password", flag.ContinueOnError)
	email := fs.String("email", defaultAdminEmail, "admin email")
	password := fs.String("password", "", "new password (at least 8 characters)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *password == "" {
		fs.PrintDefaults()
		return errors.New("password is required")
	}

	if err := e.setAdminPassword(ctx, *email, *password); err != nil {
		return err
	}
	fmt.Printf("✓ Password updated for %s\n", *email)
	return nil
}

func (e *dbEnv) setAdminPassword(ctx context.Context, email, password string) error {
	user, err := e.repos.Users.GetByEmail(ctx, email)
	if err != nil {
		return err
	}
	if user.Role != domain.RoleAdmin {
		return fmt.Errorf("%s is not an admin", user.Email)
	}
	authService := service.NewAuthService(e.repos, nil, e.hasher, nil, e.audit, nil, e.log)
	return authService.SetPassword(ctx, email, password)
}

func (e *dbEnv) adminEmailCommand(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("admin-email", flag.ContinueOnError)
	from := fs.String("from", "admin@company.com", "current admin email")
	to := fs.String("to", defaultAdminEmail, "new admin email")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := e.updateAdminEmail(ctx, *from, *to); err != nil {
		return err
	}
	fmt.Printf("✓ Admin email changed to %s\n", *to)
	return nil
}

func (e *dbEnv) updateAdminEmail(ctx context.Context, from, to string) error {
	user, err := e.repos.Users.GetByEmail(ctx, from)
	if err != nil {
		return fmt.Errorf("admin %s: %w", from, err)
	}
	if user.Role != domain.RoleAdmin {
		return fmt.Errorf("%s is not an admin", user.Email)
	}
	err = e.repos.Users.UpdateEmail(ctx, user.ID, to)
	if repository.IsUniqueViolation(err) {
		return fmt.Errorf("%s is already in use", domain.NormalizeEmail(to))
	}
	return err
}

func (e *dbEnv) expireCommand(ctx context.Context) error {
	invitations := service.NewInvitationService(e.repos, e.hasher, e.audit, nil, nil, e.cfg.InvitationTTL, e.log)
	n, err := invitations.ExpireStale(ctx)
	if err != nil {
		return err
	}
	fmt.Printf("✓ Expired %d invitation(s)\n", n)
	return nil
}
