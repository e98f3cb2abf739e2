// Package service wires threadrouter together: storage hub, configuration
// manager, menu engine, Discord channel and HTTP gateway.
package service

import (
	"fmt"
	"time"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/channels/discord"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/database"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/gateway"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/menu"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

// Menu variants.
const (
	VariantReactive  = "reactive"
	VariantSelection = "selection"
)

// Config is the process configuration loaded from threadrouter.yaml.
type Config struct {
	Discord  discord.Config     `yaml:"discord"`
	Menu     MenuConfig         `yaml:"menu"`
	Database database.HubConfig `yaml:"database"`
	Gateway  gateway.Config     `yaml:"gateway"`
	Logging  LoggingConfig      `yaml:"logging"`
}

// MenuConfig configures the menu engine.
type MenuConfig struct {
	// Variant is "reactive" (keycap reactions) or "selection" (select list).
	Variant string `yaml:"variant"`

	// Timeout is how long a menu waits for a choice (default: 5m).
	Timeout time.Duration `yaml:"timeout"`

	// MaxCategories caps the configured categories. Defaults to the
	// variant's option capacity.
	MaxCategories int `yaml:"max_categories"`

	// AttachInterval spaces reactive symbol attachment (default: 250ms).
	AttachInterval time.Duration `yaml:"attach_interval"`

	// Placeholder is the empty text of the selection list.
	Placeholder string `yaml:"placeholder"`

	// SweepSchedule is the cron schedule of the stale-menu sweeper
	// (default: "@every 1m"). "off" disables it.
	SweepSchedule string `yaml:"sweep_schedule"`

	// SweepMaxAge disbands menus older than this (default: twice the timeout).
	SweepMaxAge time.Duration `yaml:"sweep_max_age"`
}

// LoggingConfig configures the slog handler.
type LoggingConfig struct {
	// Level is debug, info, warn or error (default: info).
	Level string `yaml:"level"`

	// Format is "json" or "text" (default: json).
	Format string `yaml:"format"`
}

// DefaultConfig returns the configuration used when the file omits a value.
func DefaultConfig() *Config {
	return &Config{
		Discord: discord.DefaultConfig(),
		Menu: MenuConfig{
			Variant:        VariantReactive,
			Timeout:        menu.DefaultTimeout,
			AttachInterval: 250 * time.Millisecond,
			SweepSchedule:  "@every 1m",
		},
		Database: database.DefaultHubConfig(),
		Gateway: gateway.Config{
			Enabled: true,
			Address: "127.0.0.1:8087",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Effective returns a copy with defaults filled in for zero fields.
func (m MenuConfig) Effective() MenuConfig {
	out := m
	if out.Variant == "" {
		out.Variant = VariantReactive
	}
	if out.Timeout <= 0 {
		out.Timeout = menu.DefaultTimeout
	}
	if out.SweepSchedule == "" {
		out.SweepSchedule = "@every 1m"
	}
	if out.SweepMaxAge <= 0 {
		out.SweepMaxAge = 2 * out.Timeout
	}
	if out.MaxCategories <= 0 {
		out.MaxCategories = out.capacity()
	}
	return out
}

func (m MenuConfig) capacity() int {
	if m.Variant == VariantSelection {
		return menu.SelectionCapacity
	}
	return settings.DefaultMaxCategories
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	switch c.Menu.Variant {
	case "", VariantReactive, VariantSelection:
	default:
		return fmt.Errorf("menu.variant: unknown variant %q", c.Menu.Variant)
	}
	if eff := c.Menu.Effective(); eff.MaxCategories > eff.capacity() {
		return fmt.Errorf("menu.max_categories: %d exceeds the %s capacity of %d",
			eff.MaxCategories, eff.Variant, eff.capacity())
	}
	switch c.Database.Effective().Backend {
	case database.BackendSQLite, database.BackendPostgreSQL, database.BackendPebble:
	default:
		return fmt.Errorf("database.backend: unsupported backend %q", c.Database.Backend)
	}
	switch c.Logging.Format {
	case "", "json", "text":
	default:
		return fmt.Errorf("logging.format: must be json or text, got %q", c.Logging.Format)
	}
	return nil
}

// Strategy builds the menu strategy for the configured variant.
func (m MenuConfig) Strategy() menu.Strategy {
	eff := m.Effective()
	if eff.Variant == VariantSelection {
		return menu.Selection{MaxOptions: eff.MaxCategories, Placeholder: eff.Placeholder}
	}
	return menu.Reactive{Capacity: eff.MaxCategories, AttachInterval: eff.AttachInterval}
}
