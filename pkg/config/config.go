package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"

	"github.com/intelliod/ems/internal/observability/tracing"
	"github.com/intelliod/ems/pkg/database"
)

// Config holds the application configuration
type Config struct {
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	ServerPort  int    `env:"SERVER_PORT" envDefault:"3001"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFile     string `env:"LOG_FILE"`

	DatabaseHost            string        `env:"DATABASE_HOST" envDefault:"localhost"`
	DatabasePort            int           `env:"DATABASE_PORT" envDefault:"5432"`
	DatabaseUser            string        `env:"DATABASE_USER" envDefault:"ems"`
	DatabasePassword        string        `env:"DATABASE_PASSWORD" envDefault:"ems"`
	DatabaseName            string        `env:"DATABASE_NAME" envDefault:"ems"`
	DatabaseSSLMode         string        `env:"DATABASE_SSLMODE" envDefault:"disable"`
	DatabaseMaxOpenConns    int           `env:"DATABASE_MAX_OPEN_CONNS" envDefault:"25"`
	DatabaseMaxIdleConns    int           `env:"DATABASE_MAX_IDLE_CONNS" envDefault:"5"`
	DatabaseConnMaxLifetime time.Duration `env:"DATABASE_CONN_MAX_LIFETIME" envDefault:"5m"`

	JWTSecret  string        `env:"JWT_SECRET"`
	JWTIssuer  string        `env:"JWT_ISSUER" envDefault:"ems"`
	JWTTTL     time.Duration `env:"JWT_TTL" envDefault:"168h"`
	BcryptCost int           `env:"BCRYPT_COST" envDefault:"12"`

	InvitationTTL           time.Duration `env:"INVITATION_TTL" envDefault:"168h"`
	InvitationSweepInterval time.Duration `env:"INVITATION_SWEEP_INTERVAL" envDefault:"1h"`

	UploadDir           string `env:"UPLOAD_DIR" envDefault:"uploads/documents"`
	MaxUploadBytes      int64  `env:"MAX_UPLOAD_BYTES" envDefault:"10485760"`
	MaxDocumentsPerType int    `env:"MAX_DOCUMENTS_PER_TYPE" envDefault:"20"`

	RedisURL string `env:"REDIS_URL"`

	SMTPHost    string `env:"SMTP_HOST"`
	SMTPPort    int    `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser    string `env:"SMTP_USER"`
	SMTPPass    string `env:"SMTP_PASS"`
	FromEmail   string `env:"FROM_EMAIL" envDefault:"noreply@intelliod.com"`
	AppURL      string `env:"APP_URL" envDefault:"http://localhost:3000"`
	CompanyName string `env:"COMPANY_NAME" envDefault:"Your Company"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000,http://localhost:5173"`

	RateLimitPerMinute      int `env:"RATE_LIMIT_PER_MINUTE" envDefault:"120"`
	LoginRateLimitPerMinute int `env:"LOGIN_RATE_LIMIT_PER_MINUTE" envDefault:"10"`

	// TrustedProxies lists the reverse proxies (addresses or CIDRs) whose
	// X-Forwarded-For header is believed. Empty trusts none.
	TrustedProxies []string `env:"TRUSTED_PROXIES" envSeparator:","`

	OTLPEndpoint     string  `env:"OTEL_EXPORTER_OTLP_ENDPOINT"`
	TraceSampleRatio float64 `env:"OTEL_TRACES_SAMPLE_RATIO" envDefault:"1"`
}

// Load reads .env (when present) and then the process environment
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	return Parse()
}

// Parse reads configuration from environment variables only
func Parse() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate rejects settings the server cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.JWTSecret == "" && !c.IsDevelopment() {
		errs = append(errs, errors.New("JWT_SECRET is required outside development"))
	}
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		errs = append(errs, fmt.Errorf("invalid SERVER_PORT %d", c.ServerPort))
	}
	if c.MaxUploadBytes <= 0 {
		errs = append(errs, errors.New("MAX_UPLOAD_BYTES must be positive"))
	}
	if c.InvitationTTL <= 0 {
		errs = append(errs, errors.New("INVITATION_TTL must be positive"))
	}
	if c.TraceSampleRatio < 0 || c.TraceSampleRatio > 1 {
		errs = append(errs, fmt.Errorf("OTEL_TRACES_SAMPLE_RATIO must be within [0,1], got %v", c.TraceSampleRatio))
	}
	if c.InvitationSweepInterval < 0 {
		errs = append(errs, errors.New("INVITATION_SWEEP_INTERVAL must not be negative"))
	}
	return errors.Join(errs...)
}

func (c *Config) IsDevelopment() bool {
	return strings.EqualFold(c.Environment, "development")
}

// Database returns the connection pool settings
func (c *Config) Database() *database.Config {
	return &database.Config{
		Host:            c.DatabaseHost,
		Port:            c.DatabasePort,
		User:            c.DatabaseUser,
		Password:        c.DatabasePassword,
		Database:        c.DatabaseName,
		SSLMode:         c.DatabaseSSLMode,
		MaxOpenConns:    c.DatabaseMaxOpenConns,
		MaxIdleConns:    c.DatabaseMaxIdleConns,
		ConnMaxLifetime: c.DatabaseConnMaxLifetime,
	}
}

// Tracing returns the exporter settings
func (c *Config) Tracing() tracing.Config {
	return tracing.Config{
		Endpoint:    c.OTLPEndpoint,
		Environment: c.Environment,
		SampleRatio: c.TraceSampleRatio,
	}
}

// SMTPConfigured reports whether invitation emails can be sent
func (c *Config) SMTPConfigured() bool {
	return c.SMTPHost != "" && c.SMTPUser != ""
}
