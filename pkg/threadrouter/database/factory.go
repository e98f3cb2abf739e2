package database

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/database/backends"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

// SQLiteFactory creates SQLite backends.
type SQLiteFactory struct{}

// Create opens the SQLite backend and migrates its schema.
func (f *SQLiteFactory) Create(ctx context.Context, config HubConfig) (*Backend, error) {
	b, err := backends.OpenSQLite(ctx, backends.SQLiteConfig{
		Path:        config.SQLite.Path,
		JournalMode: config.SQLite.JournalMode,
		BusyTimeout: config.SQLite.BusyTimeout,
	})
	if err != nil {
		return nil, err
	}
	return &Backend{
		Type:      BackendSQLite,
		DB:        b.DB,
		Documents: &documentsWrapper{b.Documents},
		Migrator:  b.Migrator,
		Health:    &healthWrapper{b.Health},
		closer:    b,
	}, nil
}

// Supports returns true for SQLite backend type.
func (f *SQLiteFactory) Supports(backendType BackendType) bool {
	return backendType == BackendSQLite
}

// PostgreSQLFactory creates PostgreSQL backends.
type PostgreSQLFactory struct {
	logger *slog.Logger
}

// NewPostgreSQLFactory creates a new PostgreSQL factory.
func NewPostgreSQLFactory(logger *slog.Logger) *PostgreSQLFactory {
	return &PostgreSQLFactory{logger: logger}
}

// Create opens the PostgreSQL pool and migrates its schema.
func (f *PostgreSQLFactory) Create(ctx context.Context, config HubConfig) (*Backend, error) {
	pg := config.PostgreSQL
	b, err := backends.OpenPostgreSQL(ctx, backends.PostgreSQLConfig{
		URL:             pg.URL,
		Host:            pg.Host,
		Port:            pg.Port,
		Database:        pg.Database,
		User:            pg.User,
		Password:        pg.Password,
		SSLMode:         pg.SSLMode,
		MaxOpenConns:    pg.MaxOpenConns,
		MaxIdleConns:    pg.MaxIdleConns,
		ConnMaxLifetime: pg.ConnMaxLifetime,
	}, f.logger)
	if err != nil {
		return nil, err
	}
	return &Backend{
		Type:      BackendPostgreSQL,
		DB:        b.DB,
		Documents: &documentsWrapper{b.Documents},
		Migrator:  b.Migrator,
		Health:    &healthWrapper{b.Health},
		closer:    b,
	}, nil
}

// Supports returns true for PostgreSQL backend type.
func (f *PostgreSQLFactory) Supports(backendType BackendType) bool {
	return backendType == BackendPostgreSQL
}

// PebbleFactory creates embedded Pebble backends.
type PebbleFactory struct{}

// Create opens the Pebble store.
func (f *PebbleFactory) Create(ctx context.Context, config HubConfig) (*Backend, error) {
	b, err := backends.OpenPebble(backends.PebbleConfig{Dir: config.Pebble.Dir})
	if err != nil {
		return nil, err
	}
	return &Backend{
		Type:      BackendPebble,
		Documents: &documentsWrapper{b.Documents},
		Health:    &healthWrapper{b.Health},
		closer:    b,
	}, nil
}

// Supports returns true for Pebble backend type.
func (f *PebbleFactory) Supports(backendType BackendType) bool {
	return backendType == BackendPebble
}

// Wrapper types to adapt backends package types to database interfaces

type documentStore interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Put(ctx context.Context, key string, body []byte) error
	Delete(ctx context.Context, key string) error
	Keys(ctx context.Context, prefix string) ([]string, error)
}

type documentsWrapper struct {
	d documentStore
}

func (w *documentsWrapper) Get(ctx context.Context, key string) ([]byte, error) {
	body, err := w.d.Get(ctx, key)
	if errors.Is(err, backends.ErrNotFound) {
		return nil, fmt.Errorf("%s: %w", key, settings.ErrDocumentNotFound)
	}
	return body, err
}

func (w *documentsWrapper) Put(ctx context.Context, key string, body []byte) error {
	return w.d.Put(ctx, key, body)
}

func (w *documentsWrapper) Delete(ctx context.Context, key string) error {
	return w.d.Delete(ctx, key)
}

func (w *documentsWrapper) Keys(ctx context.Context, prefix string) ([]string, error) {
	return w.d.Keys(ctx, prefix)
}

type statusReporter interface {
	Ping(ctx context.Context) error
	Status(ctx context.Context) (map[string]any, error)
}

type healthWrapper struct {
	h statusReporter
}

func (w *healthWrapper) Ping(ctx context.Context) error {
	return w.h.Ping(ctx)
}

func (w *healthWrapper) Status(ctx context.Context) HealthStatus {
	start := time.Now()
	status, err := w.h.Status(ctx)
	if err != nil {
		return HealthStatus{Healthy: false, Error: err.Error()}
	}

	latency := parseDuration(extractString(status, "latency"))
	if latency == 0 {
		latency = time.Since(start)
	}

	return HealthStatus{
		Healthy:         extractBool(status, "healthy"),
		Version:         extractString(status, "version"),
		Error:           extractString(status, "error"),
		Latency:         latency,
		OpenConnections: extractInt(status, "open_conns"),
		InUse:           extractInt(status, "in_use"),
		Idle:            extractInt(status, "idle"),
		WaitCount:       extractInt64(status, "wait_count"),
		DiskUsage:       extractInt64(status, "disk_usage"),
	}
}

// Helper functions for extracting values from map[string]any

func extractBool(m map[string]any, key string) bool {
	if v, ok := m[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return false
}

func extractString(m map[string]any, key string) string {
	if v, ok := m[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func extractInt(m map[string]any, key string) int {
	return int(extractInt64(m, key))
}

func extractInt64(m map[string]any, key string) int64 {
	if v, ok := m[key]; ok {
		switch n := v.(type) {
		case int64:
			return n
		case int:
			return int64(n)
		case float64:
			return int64(n)
		}
	}
	return 0
}

func parseDuration(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}
