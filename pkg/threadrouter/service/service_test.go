package service

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jholhewres/threadrouter/pkg/threadrouter/database"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/menu"
	"github.com/jholhewres/threadrouter/pkg/threadrouter/settings"
)

func testConfig(t *testing.T) *Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "threadrouter.db")
	return cfg
}

func TestParseConfig(t *testing.T) {
	cfg, err := ParseConfig([]byte(`
menu:
  variant: selection
  timeout: 2m
  sweep_schedule: "@every 30s"
database:
  backend: pebble
  pebble:
    dir: ./kv
gateway:
  address: 0.0.0.0:9000
logging:
  format: text
`))
	require.NoError(t, err)

	assert.Equal(t, VariantSelection, cfg.Menu.Variant)
	assert.Equal(t, 2*time.Minute, cfg.Menu.Timeout)
	assert.Equal(t, "@every 30s", cfg.Menu.SweepSchedule)
	assert.Equal(t, database.BackendPebble, cfg.Database.Backend)
	assert.Equal(t, "./kv", cfg.Database.Pebble.Dir)
	assert.Equal(t, "0.0.0.0:9000", cfg.Gateway.Address)
	assert.True(t, cfg.Gateway.Enabled, "defaults survive a partial section")
	assert.Equal(t, "!cm", cfg.Discord.CommandPrefix)
	assert.Equal(t, "text", cfg.Logging.Format)
}

func TestMenuConfig_Effective(t *testing.T) {
	eff := MenuConfig{}.Effective()
	assert.Equal(t, VariantReactive, eff.Variant)
	assert.Equal(t, menu.DefaultTimeout, eff.Timeout)
	assert.Equal(t, 2*menu.DefaultTimeout, eff.SweepMaxAge)
	assert.Equal(t, settings.DefaultMaxCategories, eff.MaxCategories)

	eff = MenuConfig{Variant: VariantSelection, Timeout: time.Minute}.Effective()
	assert.Equal(t, menu.SelectionCapacity, eff.MaxCategories)
	assert.Equal(t, 2*time.Minute, eff.SweepMaxAge)

	assert.IsType(t, menu.Selection{}, MenuConfig{Variant: VariantSelection}.Strategy())
	assert.IsType(t, menu.Reactive{}, MenuConfig{}.Strategy())
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"defaults", func(c *Config) {}, ""},
		{"unknown variant", func(c *Config) { c.Menu.Variant = "buttons" }, "menu.variant"},
		{"reactive over capacity", func(c *Config) { c.Menu.MaxCategories = 10 }, "menu.max_categories"},
		{"selection capacity", func(c *Config) {
			c.Menu.Variant = VariantSelection
			c.Menu.MaxCategories = 25
		}, ""},
		{"unknown backend", func(c *Config) { c.Database.Backend = "mongo" }, "database.backend"},
		{"bad log format", func(c *Config) { c.Logging.Format = "xml" }, "logging.format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("TR_TEST_SET", "value")

	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"a: ${TR_TEST_SET}", "a: value", false},
		{"a: $TR_TEST_SET", "a: value", false},
		{"a: ${TR_TEST_UNSET}", "a: ${TR_TEST_UNSET}", false},
		{"a: ${TR_TEST_UNSET:-fallback}", "a: fallback", false},
		{"a: ${TR_TEST_SET:-fallback}", "a: value", false},
		{"a: ${TR_TEST_UNSET:?token missing}", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := expandEnvVars(tt.in)
			if tt.wantErr {
				require.Error(t, err)
				assert.Contains(t, err.Error(), "token missing")
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestLoadConfigFromFile(t *testing.T) {
	t.Setenv(EnvDiscordToken, "bot-token")
	t.Setenv(EnvGatewayToken, "gw-token")

	dir := t.TempDir()
	path := filepath.Join(dir, "threadrouter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
discord:
  token: ${THREADROUTER_DISCORD_TOKEN}
  guild_id: "123"
database:
  sqlite:
    path: data/tr.db
`), 0o600))

	cfg, err := LoadConfigFromFile(path)
	require.NoError(t, err)
	assert.Equal(t, "bot-token", cfg.Discord.Token)
	assert.Equal(t, "gw-token", cfg.Gateway.AuthToken)
	assert.Equal(t, "123", cfg.Discord.GuildID)
	assert.Equal(t, filepath.Join(dir, "data/tr.db"), cfg.Database.SQLite.Path)

	out := filepath.Join(dir, "saved.yaml")
	require.NoError(t, SaveConfigToFile(cfg, out))
	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), "${THREADROUTER_DISCORD_TOKEN}")
	assert.NotContains(t, string(data), "bot-token")
	assert.NotContains(t, string(data), "gw-token")
}

func TestService_LifecycleWithoutDiscord(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Menu.SweepSchedule = "off"

	svc, err := New(ctx, cfg, nil)
	require.NoError(t, err)

	_, err = svc.Settings().ToggleCategory(ctx, settings.Category{ID: "100", Label: "Billing"})
	require.NoError(t, err)

	// Without a transport connection the menu cannot be sent.
	_, err = svc.Router().OnThreadReady(ctx, menu.ThreadReady{Thread: menu.Thread{
		ID: "user-1", ChannelID: "chan-1", RecipientIDs: []string{"user-1"},
	}})
	assert.NoError(t, err, "single category is not eligible")

	_, err = svc.Settings().ToggleCategory(ctx, settings.Category{ID: "200", Label: "Abuse"})
	require.NoError(t, err)
	_, err = svc.Router().OnThreadReady(ctx, menu.ThreadReady{Thread: menu.Thread{
		ID: "user-1", ChannelID: "chan-1", RecipientIDs: []string{"user-1"},
	}})
	assert.Error(t, err)
	assert.Equal(t, 0, svc.Router().Registry().Len())

	health := svc.Health(ctx)
	assert.Contains(t, health, "database")
	assert.Contains(t, health, "discord")

	require.NotNil(t, svc.Gateway())
	rec := httptest.NewRecorder()
	svc.Gateway().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `"database"`))

	require.NoError(t, svc.Stop(ctx))

	// Configuration survives a restart.
	svc, err = New(ctx, cfg, nil)
	require.NoError(t, err)
	assert.Len(t, svc.Settings().Snapshot().Categories, 2)
	require.NoError(t, svc.Stop(ctx))
}

func TestService_StartRequiresToken(t *testing.T) {
	ctx := context.Background()
	cfg := testConfig(t)
	cfg.Gateway.Enabled = false

	svc, err := New(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { svc.Stop(ctx) })

	err = svc.Start(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "token")
}
