package backends

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib" // PostgreSQL driver
)

// PostgreSQLBackend wraps the PostgreSQL database connection.
type PostgreSQLBackend struct {
	DB     *sql.DB
	Config PostgreSQLConfig

	// Migrator handles schema migrations
	Migrator *SQLMigrator

	// Health checker
	Health *PostgreSQLHealthChecker

	// Documents is the key/value document store
	Documents *SQLDocuments

	logger *slog.Logger
}

// PostgreSQLConfig holds PostgreSQL-specific configuration.
type PostgreSQLConfig struct {
	// URL is a full connection string; it takes precedence over the fields below.
	URL string

	Host            string
	Port            int
	Database        string
	User            string
	Password        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	ConnMaxIdleTime time.Duration
}

// Effective returns a copy with defaults applied for zero fields.
func (c PostgreSQLConfig) Effective() PostgreSQLConfig {
	out := c
	if out.Host == "" {
		out.Host = "localhost"
	}
	if out.Port == 0 {
		out.Port = 5432
	}
	if out.SSLMode == "" {
		out.SSLMode = "disable"
	}
	if out.MaxOpenConns == 0 {
		out.MaxOpenConns = 10
	}
	if out.MaxIdleConns == 0 {
		out.MaxIdleConns = 5
	}
	if out.ConnMaxLifetime == 0 {
		out.ConnMaxLifetime = 30 * time.Minute
	}
	if out.ConnMaxIdleTime == 0 {
		out.ConnMaxIdleTime = 5 * time.Minute
	}
	return out
}

// OpenPostgreSQL opens a PostgreSQL connection pool and migrates the schema.
func OpenPostgreSQL(ctx context.Context, config PostgreSQLConfig, logger *slog.Logger) (*PostgreSQLBackend, error) {
	if logger == nil {
		logger = slog.Default()
	}
	config = config.Effective()

	db, err := sql.Open("pgx", BuildPostgreSQLDSN(config))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(config.MaxOpenConns)
	db.SetMaxIdleConns(config.MaxIdleConns)
	db.SetConnMaxLifetime(config.ConnMaxLifetime)
	db.SetConnMaxIdleTime(config.ConnMaxIdleTime)

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	backend := &PostgreSQLBackend{
		DB:        db,
		Config:    config,
		Migrator:  NewSQLMigrator(db, DialectDollar),
		Health:    NewPostgreSQLHealthChecker(db),
		Documents: NewSQLDocuments(db, DialectDollar),
		logger:    logger,
	}
	if err := backend.Migrator.Migrate(ctx, 0); err != nil {
		db.Close()
		return nil, err
	}

	logger.Info("postgresql backend ready", "host", config.Host, "database", config.Database)
	return backend, nil
}

// BuildPostgreSQLDSN builds the connection string.
func BuildPostgreSQLDSN(config PostgreSQLConfig) string {
	if config.URL != "" {
		return config.URL
	}

	u := url.URL{
		Scheme: "postgres",
		Host:   fmt.Sprintf("%s:%d", config.Host, config.Port),
		Path:   "/" + strings.TrimPrefix(config.Database, "/"),
	}
	if config.User != "" {
		if config.Password != "" {
			u.User = url.UserPassword(config.User, config.Password)
		} else {
			u.User = url.User(config.User)
		}
	}
	q := url.Values{}
	if config.SSLMode != "" {
		q.Set("sslmode", config.SSLMode)
	}
	u.RawQuery = q.Encode()
	return u.String()
}

// Close closes the database connection.
func (b *PostgreSQLBackend) Close() error {
	return b.DB.Close()
}

// PostgreSQLHealthChecker monitors PostgreSQL database health.
type PostgreSQLHealthChecker struct {
	db *sql.DB
}

// NewPostgreSQLHealthChecker creates a new health checker.
func NewPostgreSQLHealthChecker(db *sql.DB) *PostgreSQLHealthChecker {
	return &PostgreSQLHealthChecker{db: db}
}

// Ping checks database connectivity.
func (h *PostgreSQLHealthChecker) Ping(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

// Status returns detailed health status.
func (h *PostgreSQLHealthChecker) Status(ctx context.Context) (map[string]any, error) {
	start := time.Now()
	err := h.db.PingContext(ctx)
	latency := time.Since(start)

	if err != nil {
		return map[string]any{
			"healthy": false,
			"error":   err.Error(),
			"latency": latency.String(),
		}, nil
	}

	var version string
	if err := h.db.QueryRowContext(ctx, "SELECT version()").Scan(&version); err != nil {
		version = "unknown"
	}

	stats := h.db.Stats()
	return map[string]any{
		"healthy":          true,
		"version":          version,
		"latency":          latency.String(),
		"open_conns":       stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration_ms": stats.WaitDuration.Milliseconds(),
	}, nil
}
