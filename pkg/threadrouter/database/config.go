package database

import (
	"time"
)

// HubConfig represents the complete database hub configuration.
type HubConfig struct {
	// Backend is the primary database backend type (default: "sqlite")
	Backend BackendType `yaml:"backend"`

	// SQLite configuration
	SQLite SQLiteConfig `yaml:"sqlite"`

	// PostgreSQL configuration
	PostgreSQL PostgreSQLConfig `yaml:"postgresql"`

	// Pebble configuration
	Pebble PebbleConfig `yaml:"pebble"`
}

// SQLiteConfig holds SQLite-specific configuration.
type SQLiteConfig struct {
	// Path to the database file (default: "./data/threadrouter.db")
	Path string `yaml:"path"`

	// Journal mode (default: WAL)
	JournalMode string `yaml:"journal_mode"`

	// Busy timeout in milliseconds (default: 5000)
	BusyTimeout int `yaml:"busy_timeout"`
}

// PostgreSQLConfig holds PostgreSQL configuration.
type PostgreSQLConfig struct {
	// URL is a complete connection string; overrides the fields below.
	URL string `yaml:"url"`

	// Host (default: "localhost")
	Host string `yaml:"host"`

	// Port (default: 5432)
	Port int `yaml:"port"`

	Database string `yaml:"database"`
	User     string `yaml:"user"`

	// Password (supports ${ENV_VAR} expansion)
	Password string `yaml:"password"`

	// SSL mode: disable, require, verify-ca, verify-full
	SSLMode string `yaml:"ssl_mode"`

	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

// PebbleConfig holds the embedded key/value store configuration.
type PebbleConfig struct {
	// Dir is the data directory (default: "./data/threadrouter.pebble")
	Dir string `yaml:"dir"`
}

// DefaultHubConfig returns the default hub configuration (SQLite).
func DefaultHubConfig() HubConfig {
	return HubConfig{
		Backend: BackendSQLite,
		SQLite: SQLiteConfig{
			Path:        "./data/threadrouter.db",
			JournalMode: "WAL",
			BusyTimeout: 5000,
		},
		PostgreSQL: PostgreSQLConfig{
			Host:    "localhost",
			Port:    5432,
			SSLMode: "disable",
		},
		Pebble: PebbleConfig{
			Dir: "./data/threadrouter.pebble",
		},
	}
}

// Effective returns a copy with default values filled in for zero fields.
func (c HubConfig) Effective() HubConfig {
	out := c
	def := DefaultHubConfig()

	if out.Backend == "" {
		out.Backend = def.Backend
	}
	if out.SQLite.Path == "" {
		out.SQLite.Path = def.SQLite.Path
	}
	if out.SQLite.JournalMode == "" {
		out.SQLite.JournalMode = def.SQLite.JournalMode
	}
	if out.SQLite.BusyTimeout == 0 {
		out.SQLite.BusyTimeout = def.SQLite.BusyTimeout
	}
	if out.Pebble.Dir == "" {
		out.Pebble.Dir = def.Pebble.Dir
	}
	return out
}
