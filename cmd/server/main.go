package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/intelliod/ems/internal/featureflags"
	"github.com/intelliod/ems/internal/handler"
	"github.com/intelliod/ems/internal/infrastructure/logger"
	"github.com/intelliod/ems/internal/infrastructure/mail"
	"github.com/intelliod/ems/internal/infrastructure/redis"
	"github.com/intelliod/ems/internal/infrastructure/storage"
	"github.com/intelliod/ems/internal/observability/metrics"
	"github.com/intelliod/ems/internal/observability/tracing"
	"github.com/intelliod/ems/internal/reliability/circuitbreaker"
	"github.com/intelliod/ems/internal/reliability/retry"
	"github.com/intelliod/ems/internal/repository"
	"github.com/intelliod/ems/internal/security"
	"github.com/intelliod/ems/internal/security/audit"
	"github.com/intelliod/ems/internal/security/auth"
	"github.com/intelliod/ems/internal/security/middleware"
	"github.com/intelliod/ems/internal/security/ratelimit"
	"github.com/intelliod/ems/internal/service"
	"github.com/intelliod/ems/internal/worker"
	"github.com/intelliod/ems/pkg/config"
	"github.com/intelliod/ems/pkg/database"
)

func main() {
	// 1. Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. Initialize structured logger
	log := logger.NewLogger(cfg.LogLevel, cfg.LogFile)
	flags := featureflags.FromEnv()
	log.Info("starting EMS server",
		slog.String("environment", cfg.Environment),
		slog.Any("feature_flags", flags.Names()),
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.Init(ctx, cfg.Tracing(), log)
	if err != nil {
		log.Error("failed to initialize tracing", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 3. Connect to Postgres and migrate
	connectPolicy := retry.DefaultPolicy()
	connectPolicy.MaxAttempts = 5
	connectPolicy.Retryable = database.Retryable
	pool, err := retry.Do(ctx, connectPolicy, log, "connect database", func(ctx context.Context) (*database.DB, error) {
		return database.Open(ctx, cfg.Database(), log)
	})
	if err != nil {
		log.Error("failed to connect to database", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer pool.Close()

	db := pool.Gorm()
	if err := repository.Migrate(ctx, db); err != nil {
		log.Error("failed to migrate schema", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 4. Token revocation: Redis when configured, otherwise in process
	var (
		revocations auth.RevocationStore
		redisRaw    *goredis.Client
	)
	if cfg.RedisURL != "" {
		redisClient, err := redis.NewClient(ctx, cfg.RedisURL, log)
		if err != nil {
			log.Error("failed to connect to Redis", slog.String("error", err.Error()))
			os.Exit(1)
		}
		defer redisClient.Close()
		revocations = redisClient
		redisRaw = redisClient.Raw()
	} else {
		log.Warn("REDIS_URL not set, token revocations are kept in memory")
		memory := auth.NewMemoryRevocationStore()
		revocations = memory
		go memory.RunJanitor(ctx, time.Hour)
	}

	store, err := storage.NewLocalStore(cfg.UploadDir, log)
	if err != nil {
		log.Error("failed to prepare upload directory", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// 5. Initialize security components
	secret := cfg.JWTSecret
	if secret == "" {
		secret = randomSecret()
		log.Warn("JWT_SECRET not set, using a random secret; tokens will not survive a restart")
	}
	tokenManager := auth.NewTokenManager(secret, cfg.JWTIssuer, cfg.JWTTTL)
	hasher := auth.NewPasswordHasher(cfg.BcryptCost)
	authz := security.NewAuthorizationService(log)
	rateLimiter := ratelimit.NewLimiter(cfg.RateLimitPerMinute, time.Minute)
	defer rateLimiter.Stop()
	proxies, err := middleware.NewProxyResolver(cfg.TrustedProxies)
	if err != nil {
		log.Error("invalid TRUSTED_PROXIES", slog.String("error", err.Error()))
		os.Exit(1)
	}

	repos := service.Repositories{
		Users:       repository.NewUserRepository(db, log),
		Invitations: repository.NewInvitationRepository(db, log),
		Profiles:    repository.NewProfileRepository(db, log),
		Documents:   repository.NewDocumentRepository(db, log),
		Onboardings: repository.NewOnboardingRepository(db, log),
		Tx:          repository.NewTxManager(db),
	}
	auditLogger := audit.NewLogger(repository.NewAuditRepository(db), log)
	notifier := newNotifier(cfg, log)

	// 6. Initialize services
	authService := service.NewAuthService(repos, tokenManager, hasher, revocations, auditLogger, nil, log)
	invitationService := service.NewInvitationService(repos, hasher, auditLogger, notifier, nil, cfg.InvitationTTL, log)
	onboardingService := service.NewOnboardingService(repos, auditLogger, notifier, nil, log)
	profileService := service.NewProfileService(repos, auditLogger, log)
	documentService := service.NewDocumentService(repos, store, authz, auditLogger, nil, service.DocumentLimits{
		MaxBytes:   cfg.MaxUploadBytes,
		MaxPerType: cfg.MaxDocumentsPerType,
	}, log)

	// 7. Setup HTTP routes
	mux := handler.NewRouter(handler.Handlers{
		Auth:     handler.NewAuthHandler(authService, log),
		Admin:    handler.NewAdminHandler(invitationService, onboardingService, flags, log),
		Employee: handler.NewEmployeeHandler(profileService, documentService, onboardingService, log),
		Health:   handler.NewHealthHandler(pool, redisRaw, log),
		Metrics:  promhttp.Handler(),
	}, handler.RouterConfig{
		Authenticator: authService,
		Authz:         authz,
		Limiter:       rateLimiter,
		Audit:         auditLogger,
		Logger:        log,
	})

	// Chain middleware: trace -> request log -> CORS -> sanitize -> login rate limit -> metrics -> routes
	rootHandler := otelhttp.NewHandler(
		middleware.Chain(metrics.HTTPMetricsMiddleware(mux),
			middleware.RequestLogger(log),
			middleware.CORS(cfg.CORSAllowedOrigins),
			middleware.SanitizeInputs(log),
			middleware.LoginRateLimit(rateLimiter, proxies, cfg.LoginRateLimitPerMinute, log),
		),
		tracing.ServiceName,
	)

	// 8. Start invitation sweeper in background
	sweeper := worker.NewInvitationSweeper(invitationService, log, cfg.InvitationSweepInterval)
	go sweeper.Start(ctx)

	// 9. Start HTTP server
	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.ServerPort),
		Handler:           rootHandler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	log.Info("server starting",
		slog.Int("port", cfg.ServerPort),
		slog.Int("rate_limit", cfg.RateLimitPerMinute),
		slog.Int("login_rate_limit", cfg.LoginRateLimitPerMinute),
		slog.Bool("smtp", cfg.SMTPConfigured()),
	)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serverErr := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case <-sigChan:
		log.Info("shutdown signal received")
	case err := <-serverErr:
		log.Error("server error", slog.String("error", err.Error()))
	}

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", slog.String("error", err.Error()))
	}
	cancel()
	if err := shutdownTracing(shutdownCtx); err != nil {
		log.Error("tracing shutdown error", slog.String("error", err.Error()))
	}
	log.Info("server stopped")
}

// newNotifier sends mail when SMTP is configured and logs otherwise.
func newNotifier(cfg *config.Config, log *slog.Logger) service.Notifier {
	if !cfg.SMTPConfigured() {
		log.Warn("SMTP not configured, notifications are logged only")
		return mail.NewLogNotifier(log)
	}
	smtp, err := mail.NewSMTPNotifier(mail.SMTPConfig{
		Host:     cfg.SMTPHost,
		Port:     cfg.SMTPPort,
		Username: cfg.SMTPUser,
		Password: cfg.SMTPPass,
		From:     cfg.FromEmail,
		AppURL:   cfg.AppURL,
		Company:  cfg.CompanyName,
	}, log)
	if err != nil {
		log.Error("failed to initialize mailer, falling back to log notifier", slog.String("error", err.Error()))
		return mail.NewLogNotifier(log)
	}
	return mail.NewBreakerNotifier(smtp, circuitbreaker.NewCircuitBreaker(5, 1, time.Minute), log)
}

func randomSecret() string {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return fmt.Sprintf("dev-%d", time.Now().UnixNano())
	}
	return hex.EncodeToString(buf)
}
