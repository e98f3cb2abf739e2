package backends

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// SQLiteBackend wraps the SQLite database connection with additional functionality.
type SQLiteBackend struct {
	DB     *sql.DB
	Config SQLiteConfig

	// Migrator handles schema migrations
	Migrator *SQLMigrator

	// Health checker
	Health *SQLiteHealthChecker

	// Documents is the key/value document store
	Documents *SQLDocuments
}

// SQLiteConfig holds SQLite-specific configuration.
type SQLiteConfig struct {
	Path        string
	JournalMode string
	BusyTimeout int
}

// OpenSQLite opens or creates a SQLite database and brings its schema up to date.
func OpenSQLite(ctx context.Context, config SQLiteConfig) (*SQLiteBackend, error) {
	if config.Path == "" {
		config.Path = "./data/threadrouter.db"
	}
	if config.JournalMode == "" {
		config.JournalMode = "WAL"
	}
	if config.BusyTimeout == 0 {
		config.BusyTimeout = 5000
	}

	dir := filepath.Dir(config.Path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create database directory %q: %w", dir, err)
	}

	dsn := fmt.Sprintf("%s?_journal_mode=%s&_busy_timeout=%d", config.Path, config.JournalMode, config.BusyTimeout)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database %q: %w", config.Path, err)
	}
	// One writer at a time; the busy timeout covers the rest.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	backend := &SQLiteBackend{
		DB:        db,
		Config:    config,
		Migrator:  NewSQLMigrator(db, DialectQuestion),
		Health:    NewSQLiteHealthChecker(db),
		Documents: NewSQLDocuments(db, DialectQuestion),
	}

	if err := backend.Migrator.Migrate(ctx, 0); err != nil {
		db.Close()
		return nil, err
	}
	return backend, nil
}

// Close closes the database connection.
func (b *SQLiteBackend) Close() error {
	return b.DB.Close()
}

// SQLMigrator handles schema migrations for the SQL backends.
type SQLMigrator struct {
	db      *sql.DB
	dialect Dialect
}

// NewSQLMigrator creates a migrator.
func NewSQLMigrator(db *sql.DB, dialect Dialect) *SQLMigrator {
	return &SQLMigrator{db: db, dialect: dialect}
}

// CurrentVersion returns the current schema version, 0 before the first migration.
func (m *SQLMigrator) CurrentVersion(ctx context.Context) (int, error) {
	var version int
	err := m.db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		// Table might not exist yet
		if isMissingTableError(err) {
			return 0, nil
		}
		return 0, err
	}
	return version, nil
}

// Migrate applies migrations up to target. A target of 0 means the latest version.
func (m *SQLMigrator) Migrate(ctx context.Context, target int) error {
	if target <= 0 || target > SchemaVersion {
		target = SchemaVersion
	}

	_, err := m.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return err
	}
	if current >= target {
		return nil
	}

	if _, err := m.db.ExecContext(ctx, documentsTable); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}

	_, err = m.db.ExecContext(ctx,
		m.dialect.rebind("INSERT INTO schema_version (version) VALUES (?) ON CONFLICT DO NOTHING"), target)
	if err != nil {
		return fmt.Errorf("record migration: %w", err)
	}
	return nil
}

// NeedsMigration returns true if the schema is outdated.
func (m *SQLMigrator) NeedsMigration(ctx context.Context) (bool, error) {
	current, err := m.CurrentVersion(ctx)
	if err != nil {
		return false, err
	}
	return current < SchemaVersion, nil
}

// SQLiteHealthChecker monitors SQLite database health.
type SQLiteHealthChecker struct {
	db *sql.DB
}

// NewSQLiteHealthChecker creates a new health checker.
func NewSQLiteHealthChecker(db *sql.DB) *SQLiteHealthChecker {
	return &SQLiteHealthChecker{db: db}
}

// Ping checks database connectivity.
func (h *SQLiteHealthChecker) Ping(ctx context.Context) error {
	return h.db.PingContext(ctx)
}

// Status returns detailed health status.
func (h *SQLiteHealthChecker) Status(ctx context.Context) (map[string]any, error) {
	if err := h.db.PingContext(ctx); err != nil {
		return map[string]any{"healthy": false, "error": err.Error()}, nil
	}

	var version string
	if err := h.db.QueryRowContext(ctx, "SELECT sqlite_version()").Scan(&version); err != nil {
		version = "unknown"
	}

	stats := h.db.Stats()
	return map[string]any{
		"healthy":          true,
		"version":          version,
		"open_conns":       stats.OpenConnections,
		"in_use":           stats.InUse,
		"idle":             stats.Idle,
		"wait_count":       stats.WaitCount,
		"wait_duration_ms": stats.WaitDuration.Milliseconds(),
	}, nil
}

func isMissingTableError(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "no such table") || strings.Contains(msg, "does not exist")
}
