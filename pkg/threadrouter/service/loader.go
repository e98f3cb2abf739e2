package service

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets in the file.
const (
	EnvDiscordToken = "THREADROUTER_DISCORD_TOKEN"
	EnvGatewayToken = "THREADROUTER_GATEWAY_TOKEN"
)

// envVarPattern matches ${VAR}, ${VAR:-default}, ${VAR:?error} and $VAR.
//
// Capture groups:
//   - Group 1: variable name (${} syntax)
//   - Group 2: modifier ("-" for default, "?" for error)
//   - Group 3: default value or error message
//   - Group 4: variable name (bare $VAR syntax)
var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(?::(-|\?)([^}]*))?\}|\$([A-Z_][A-Z0-9_]*)`)

// LoadConfigFromFile reads a YAML configuration file, loading .env files
// and expanding environment variables first.
func LoadConfigFromFile(path string) (*Config, error) {
	loadEnvFiles()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded, err := expandEnvVars(string(data))
	if err != nil {
		return nil, fmt.Errorf("expanding environment variables: %w", err)
	}

	cfg, err := ParseConfig([]byte(expanded))
	if err != nil {
		return nil, err
	}

	resolveSecrets(cfg)
	resolveRelativePaths(cfg, path)
	checkFilePermissions(path)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return cfg, nil
}

// ParseConfig parses YAML bytes over DefaultConfig.
func ParseConfig(data []byte) (*Config, error) {
	cfg := DefaultConfig()

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config YAML: %w", err)
	}
	return cfg, nil
}

// LoadOrDefault loads path, or the first discovered config file, or returns
// defaults with secrets from the environment when none exists.
func LoadOrDefault(path string) (*Config, string, error) {
	if path != "" {
		cfg, err := LoadConfigFromFile(path)
		if err != nil {
			return nil, "", fmt.Errorf("loading config: %w", err)
		}
		return cfg, path, nil
	}
	if found := FindConfigFile(); found != "" {
		cfg, err := LoadConfigFromFile(found)
		if err != nil {
			return nil, "", fmt.Errorf("loading config from %s: %w", found, err)
		}
		return cfg, found, nil
	}

	loadEnvFiles()
	cfg := DefaultConfig()
	resolveSecrets(cfg)
	return cfg, "", nil
}

// SaveConfigToFile writes cfg as YAML, replacing secrets that came from the
// environment with references. The previous file is kept as .bak.
func SaveConfigToFile(cfg *Config, path string) error {
	sanitized := *cfg
	sanitized.Discord.Token = sanitizeSecret(cfg.Discord.Token, EnvDiscordToken)
	sanitized.Gateway.AuthToken = sanitizeSecret(cfg.Gateway.AuthToken, EnvGatewayToken)

	data, err := yaml.Marshal(&sanitized)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	var check map[string]any
	if err := yaml.Unmarshal(data, &check); err != nil {
		return fmt.Errorf("config validation failed (refusing to write corrupt data): %w", err)
	}

	if existing, err := os.ReadFile(path); err == nil {
		_ = os.WriteFile(path+".bak", existing, 0o600)
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}

// FindConfigFile searches for config files in standard locations.
func FindConfigFile() string {
	candidates := []string{
		"threadrouter.yaml",
		"threadrouter.yml",
		"config.yaml",
		"configs/threadrouter.yaml",
	}
	for _, path := range candidates {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// IsEnvReference reports whether s is an environment variable reference.
func IsEnvReference(s string) bool {
	return strings.HasPrefix(s, "$")
}

// ---------- Internal ----------

// loadEnvFiles loads .env files without overwriting existing variables.
func loadEnvFiles() {
	for _, f := range []string{".env", ".env.local"} {
		_ = godotenv.Load(f)
	}
}

// expandEnvVars replaces variable references with their values. Unset
// variables without a modifier keep their placeholder; ${VAR:?msg} fails.
func expandEnvVars(input string) (string, error) {
	var missing error
	out := envVarPattern.ReplaceAllStringFunc(input, func(match string) string {
		sub := envVarPattern.FindStringSubmatch(match)
		name, modifier, value, bare := sub[1], sub[2], sub[3], sub[4]

		if bare != "" {
			if v, ok := os.LookupEnv(bare); ok {
				return v
			}
			return match
		}
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		switch modifier {
		case "-":
			return value
		case "?":
			if value == "" {
				value = "required environment variable not set"
			}
			if missing == nil {
				missing = fmt.Errorf("config error: %s - %s", name, value)
			}
			return ""
		}
		return match
	})
	if missing != nil {
		return "", missing
	}
	return out, nil
}

// resolveSecrets fills secrets from the environment when the file leaves
// them empty or as an unexpanded reference.
func resolveSecrets(cfg *Config) {
	if cfg.Discord.Token == "" || IsEnvReference(cfg.Discord.Token) {
		if v := os.Getenv(EnvDiscordToken); v != "" {
			cfg.Discord.Token = v
		}
	}
	if cfg.Gateway.AuthToken == "" || IsEnvReference(cfg.Gateway.AuthToken) {
		if v := os.Getenv(EnvGatewayToken); v != "" {
			cfg.Gateway.AuthToken = v
		}
	}
}

// resolveRelativePaths makes storage paths relative to the config file.
func resolveRelativePaths(cfg *Config, configPath string) {
	dir := filepath.Dir(configPath)
	cfg.Database.SQLite.Path = resolvePathFromConfig(cfg.Database.SQLite.Path, dir)
	cfg.Database.Pebble.Dir = resolvePathFromConfig(cfg.Database.Pebble.Dir, dir)
}

func resolvePathFromConfig(path, configDir string) string {
	if path == "" {
		return path
	}
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		path = filepath.Join(home, path[2:])
	}
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(configDir, path)
}

// sanitizeSecret returns a reference to envVar when it holds value.
func sanitizeSecret(value, envVar string) string {
	if value == "" || IsEnvReference(value) {
		return value
	}
	if os.Getenv(envVar) == value {
		return "${" + envVar + "}"
	}
	return value
}

// checkFilePermissions warns if the config file is group or world readable.
func checkFilePermissions(path string) {
	info, err := os.Stat(path)
	if err != nil {
		return
	}
	mode := info.Mode().Perm()
	if mode&0o044 != 0 {
		slog.Warn("config file has open permissions, consider restricting",
			"path", path,
			"current", fmt.Sprintf("%04o", mode),
			"recommended", "0600",
			"fix", fmt.Sprintf("chmod 600 %s", path),
		)
	}
}
