// Package config loads bdash settings from a TOML file with environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
)

// ErrNotConfigured is returned when an integration is explicitly requested
// but its settings are missing.
var ErrNotConfigured = errors.New("config: integration not configured")

// Config holds all bdash configuration.
type Config struct {
	Graph      GraphConfig      `toml:"graph"`
	Store      StoreConfig      `toml:"store"`
	Sync       SyncConfig       `toml:"sync"`
	Daemon     DaemonConfig     `toml:"daemon"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// GraphConfig holds Microsoft Graph / SharePoint list settings.
type GraphConfig struct {
	TenantID     string `toml:"tenant_id,omitempty"`
	ClientID     string `toml:"client_id,omitempty"`
	ClientSecret string `toml:"client_secret,omitempty"`
	SiteID       string `toml:"site_id,omitempty"`
	ListID       string `toml:"list_id,omitempty"`
	BaseURL      string `toml:"base_url,omitempty"`
	PageSize     int    `toml:"page_size"`
	TimeoutSec   int    `toml:"timeout_sec"`
}

// StoreConfig selects the ledger store backend.
type StoreConfig struct {
	Driver     string `toml:"driver"` // "sqlite" or "postgres"
	DSN        string `toml:"dsn,omitempty"`
	TimeoutSec int    `toml:"timeout_sec"`
}

// SyncConfig controls scheduled syncs in the daemon.
type SyncConfig struct {
	Schedule string `toml:"schedule"` // robfig/cron spec
}

// DaemonConfig holds HTTP daemon settings.
type DaemonConfig struct {
	Addr string `toml:"addr"`
}

// AppearanceConfig holds display settings.
type AppearanceConfig struct {
	Theme    string `toml:"theme"`
	Currency string `toml:"currency"`
}

// Capabilities records which external integrations are usable.
// Computed once at startup and passed down instead of re-reading config.
type Capabilities struct {
	HasRemoteSync  bool
	HasPersistence bool
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		Graph: GraphConfig{
			BaseURL:    "https://graph.microsoft.com/v1.0",
			PageSize:   999,
			TimeoutSec: 30,
		},
		Store: StoreConfig{
			Driver:     "sqlite",
			TimeoutSec: 10,
		},
		Sync: SyncConfig{
			Schedule: "@every 15m",
		},
		Daemon: DaemonConfig{
			Addr: "127.0.0.1:8788",
		},
		Appearance: AppearanceConfig{
			Theme:    "flexoki-dark",
			Currency: "ZMW",
		},
	}
}

// Dir returns the XDG-compliant config directory.
func Dir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "bdash")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "bdash")
}

// Path returns the full path to the config file.
func Path() string {
	return filepath.Join(Dir(), "config.toml")
}

// Load reads the config file, returning defaults if it doesn't exist.
// Environment overrides are applied on top.
func Load() (Config, error) {
	return LoadFile(Path())
}

// LoadFile is Load for an explicit path.
func LoadFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path) //nolint:gosec // config path is chosen by the local user
	switch {
	case err == nil:
		if _, err := toml.Decode(string(data), &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	case !os.IsNotExist(err):
		return cfg, fmt.Errorf("reading config: %w", err)
	}

	applyEnv(&cfg)
	return cfg, nil
}

// Save writes the config to disk.
func Save(cfg Config) error {
	return SaveFile(Path(), cfg)
}

// SaveFile is Save for an explicit path.
func SaveFile(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600) //nolint:gosec // see LoadFile
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return toml.NewEncoder(f).Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(Path())
	return err == nil
}

var envOverrides = []struct {
	name string
	dst  func(*Config) *string
}{
	{"BDASH_GRAPH_TENANT_ID", func(c *Config) *string { return &c.Graph.TenantID }},
	{"BDASH_GRAPH_CLIENT_ID", func(c *Config) *string { return &c.Graph.ClientID }},
	{"BDASH_GRAPH_CLIENT_SECRET", func(c *Config) *string { return &c.Graph.ClientSecret }},
	{"BDASH_SHAREPOINT_SITE_ID", func(c *Config) *string { return &c.Graph.SiteID }},
	{"BDASH_SHAREPOINT_LIST_ID", func(c *Config) *string { return &c.Graph.ListID }},
	{"BDASH_STORE_DRIVER", func(c *Config) *string { return &c.Store.Driver }},
	{"BDASH_STORE_DSN", func(c *Config) *string { return &c.Store.DSN }},
}

func applyEnv(cfg *Config) {
	for _, o := range envOverrides {
		if v := strings.TrimSpace(os.Getenv(o.name)); v != "" {
			*o.dst(cfg) = v
		}
	}
}

// Capabilities derives the integration flags from cfg.
func (c Config) Capabilities() Capabilities {
	g := c.Graph
	return Capabilities{
		HasRemoteSync: g.TenantID != "" && g.ClientID != "" && g.ClientSecret != "" &&
			g.SiteID != "" && g.ListID != "",
		HasPersistence: strings.TrimSpace(c.Store.DSN) != "",
	}
}

// GraphTimeout returns the per-request timeout for Graph calls.
func (c Config) GraphTimeout() time.Duration {
	return secondsOr(c.Graph.TimeoutSec, 30)
}

// StoreTimeout returns the per-call timeout for store operations.
func (c Config) StoreTimeout() time.Duration {
	return secondsOr(c.Store.TimeoutSec, 10)
}

func secondsOr(n, def int) time.Duration {
	if n <= 0 {
		n = def
	}
	return time.Duration(n) * time.Second
}

// MaskSecret shortens a secret for display.
func MaskSecret(s string) string {
	if len(s) > 16 {
		return s[:4] + "..." + s[len(s)-4:]
	}
	if s == "" {
		return ""
	}
	return "****"
}
