// Package config loads dashboard settings from an optional YAML file,
// then applies environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultDBDir is where the SQLite mirror lives when nothing else is set.
const DefaultDBDir = "/var/lib/leads-dashboard"

type Config struct {
	Listen string `yaml:"listen"`

	// BackendURL selects the leads backend: sqlite://path, postgres://...
	// or the http(s) base URL of a PostgREST endpoint.
	BackendURL string `yaml:"backend_url"`
	APIKey     string `yaml:"api_key"`

	// ChangesURL selects the change feed: postgres://, redis:// or empty
	// to poll every PollInterval.
	ChangesURL   string        `yaml:"changes_url"`
	PollInterval time.Duration `yaml:"poll_interval"`

	// SessionStore is "db", "memory" or a redis:// url.
	SessionStore string `yaml:"session_store"`

	AdminUsername     string `yaml:"admin_username"`
	AdminPassword     string `yaml:"admin_password"`
	AdminPasswordHash string `yaml:"admin_password_hash"`

	// LoginBurst login attempts per client, refilled one per LoginEvery.
	LoginBurst int           `yaml:"login_burst"`
	LoginEvery time.Duration `yaml:"login_every"`

	LogLevel string `yaml:"log_level"`
}

// Default returns the built-in settings.
func Default() *Config {
	return &Config{
		Listen:        "127.0.0.1:9000",
		BackendURL:    "sqlite://" + filepath.Join(DefaultDBDir, "leads.db"),
		PollInterval:  30 * time.Second,
		AdminUsername: "admin",
		AdminPassword: "password123",
		LoginBurst:    5,
		LoginEvery:    12 * time.Second,
		LogLevel:      "info",
	}
}

// Load reads path (if non-empty) over the defaults and applies env
// overrides. A missing file is an error only when path was given.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	if dir := os.Getenv("DB_DIR"); dir != "" {
		c.BackendURL = "sqlite://" + filepath.Join(dir, "leads.db")
	}
	setString(&c.Listen, "LISTEN_ADDR")
	setString(&c.BackendURL, "LEADS_BACKEND_URL")
	setString(&c.APIKey, "LEADS_API_KEY")
	setString(&c.ChangesURL, "LEADS_CHANGES_URL")
	setString(&c.SessionStore, "SESSION_STORE")
	setString(&c.AdminUsername, "ADMIN_USERNAME")
	setString(&c.AdminPassword, "ADMIN_PASSWORD")
	setString(&c.AdminPasswordHash, "ADMIN_PASSWORD_HASH")
	setString(&c.LogLevel, "LOG_LEVEL")

	if v := os.Getenv("POLL_INTERVAL"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("POLL_INTERVAL: %w", err)
		}
		c.PollInterval = d
	}
	return nil
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

// IsSQLite reports whether the backend is the local SQLite mirror.
func (c *Config) IsSQLite() bool {
	u := c.BackendURL
	return !strings.HasPrefix(u, "postgres://") &&
		!strings.HasPrefix(u, "postgresql://") &&
		!strings.HasPrefix(u, "http://") &&
		!strings.HasPrefix(u, "https://")
}

// SQLitePath returns the file path of a SQLite backend.
func (c *Config) SQLitePath() string {
	return strings.TrimPrefix(c.BackendURL, "sqlite://")
}

// SessionKind resolves an empty SessionStore: sessions go to the SQLite
// mirror when there is one, otherwise they stay in memory.
func (c *Config) SessionKind() string {
	if c.SessionStore != "" {
		return c.SessionStore
	}
	if c.IsSQLite() {
		return "db"
	}
	return "memory"
}
