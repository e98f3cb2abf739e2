// Package database provides the storage hub behind the configuration store.
// It opens one primary backend (SQLite by default, PostgreSQL or an embedded
// Pebble store) and exposes it as a key/value document store with health
// reporting.
package database

import (
	"context"
	"database/sql"
	"io"
	"time"
)

// BackendType identifies the type of database backend.
type BackendType string

const (
	BackendSQLite     BackendType = "sqlite"
	BackendPostgreSQL BackendType = "postgresql"
	BackendPebble     BackendType = "pebble"
)

// Backend represents a database backend connection with all its capabilities.
type Backend struct {
	// Name is the identifier for this backend (e.g., "primary")
	Name string

	// Type indicates the database type
	Type BackendType

	// DB is the SQL connection; nil for key/value backends
	DB *sql.DB

	// Documents is the key/value document store
	Documents Documents

	// Migrator handles schema migrations; nil for key/value backends
	Migrator Migrator

	// Health monitors database health
	Health HealthChecker

	closer io.Closer
}

// Close releases the backend's resources.
func (b *Backend) Close() error {
	if b.closer == nil {
		return nil
	}
	return b.closer.Close()
}

// Documents stores opaque document bodies by key. Get returns
// settings.ErrDocumentNotFound for a missing key.
type Documents interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

// Migrator interface for database schema migrations.
type Migrator interface {
	// CurrentVersion returns the current schema version.
	CurrentVersion(ctx context.Context) (int, error)

	// Migrate applies migrations up to the target version.
	// If target is 0, migrates to the latest version.
	Migrate(ctx context.Context, target int) error

	// NeedsMigration returns true if the schema is outdated.
	NeedsMigration(ctx context.Context) (bool, error)
}

// HealthChecker interface for monitoring database health.
type HealthChecker interface {
	// Ping checks basic database connectivity.
	Ping(ctx context.Context) error

	// Status returns detailed health status.
	Status(ctx context.Context) HealthStatus
}

// HealthStatus represents the health state of a database backend.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
	Version string        `json:"version"`
	Error   string        `json:"error,omitempty"`

	OpenConnections int   `json:"open_connections,omitempty"`
	InUse           int   `json:"in_use,omitempty"`
	Idle            int   `json:"idle,omitempty"`
	WaitCount       int64 `json:"wait_count,omitempty"`
	DiskUsage       int64 `json:"disk_usage,omitempty"`
}

// BackendFactory creates database backends based on configuration.
type BackendFactory interface {
	// Create opens a backend for the hub configuration.
	Create(ctx context.Context, config HubConfig) (*Backend, error)

	// Supports returns true if this factory can create the given backend type.
	Supports(backendType BackendType) bool
}
