package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Config holds database configuration
type Config struct {
	Host            string
	Port            int
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// DSN renders the lib/pq keyword/value connection string. Values are quoted
// so passwords may contain spaces and quotes.
func (c *Config) DSN() string {
	return strings.Join([]string{
		"host=" + quoteValue(c.Host),
		fmt.Sprintf("port=%d", c.Port),
		"user=" + quoteValue(c.User),
		"password=" + quoteValue(c.Password),
		"dbname=" + quoteValue(c.Database),
		"sslmode=" + quoteValue(c.SSLMode),
	}, " ")
}

func quoteValue(v string) string {
	r := strings.NewReplacer(`\`, `\\`, `'`, `\'`)
	return "'" + r.Replace(v) + "'"
}

// DB bundles the lib/pq pool and the gorm handle layered on it.
type DB struct {
	sql    *sql.DB
	gorm   *gorm.DB
	logger *slog.Logger
}

// Open connects to Postgres, applies the pool limits, verifies the
// connection and wraps it in gorm.
func Open(ctx context.Context, config *Config, logger *slog.Logger) (*DB, error) {
	if logger == nil {
		logger = slog.Default()
	}

	sqlDB, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	sqlDB.SetMaxOpenConns(orDefault(config.MaxOpenConns, 25))
	sqlDB.SetMaxIdleConns(orDefault(config.MaxIdleConns, 5))
	if config.ConnMaxLifetime > 0 {
		sqlDB.SetConnMaxLifetime(config.ConnMaxLifetime)
	} else {
		sqlDB.SetConnMaxLifetime(5 * time.Minute)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := sqlDB.PingContext(pingCtx); err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	gormDB, err := OpenGorm(sqlDB, logger)
	if err != nil {
		_ = sqlDB.Close()
		return nil, err
	}

	logger.Info("database connected successfully",
		slog.String("host", config.Host),
		slog.String("database", config.Database),
	)
	return &DB{sql: sqlDB, gorm: gormDB, logger: logger}, nil
}

// Retryable reports whether a connection error may clear up on its own.
// Rejected credentials and unknown databases (classes 28 and 3D) do not.
func Retryable(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "28", "3D":
			return false
		}
	}
	return true
}

func orDefault(v, fallback int) int {
	if v > 0 {
		return v
	}
	return fallback
}

// Gorm returns the ORM handle used by the repositories.
func (d *DB) Gorm() *gorm.DB {
	return d.gorm
}

// PingContext checks the database with a short timeout. It satisfies the
// readiness check's Pinger.
func (d *DB) PingContext(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	return d.sql.PingContext(ctx)
}

// Close logs the final pool statistics and closes every connection.
func (d *DB) Close() error {
	if d.sql == nil {
		return nil
	}
	stats := d.sql.Stats()
	d.logger.Info("closing database pool",
		slog.Int("open_connections", stats.OpenConnections),
		slog.Int64("wait_count", stats.WaitCount),
		slog.Duration("wait_duration", stats.WaitDuration),
	)
	return d.sql.Close()
}
