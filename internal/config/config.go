// Package config loads the BancoDWG client configuration: a JSON file
// for everything shareable plus environment variables for the bucket
// credentials, so secrets never land in config.json.
package config

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/EduardoaMelegari/banco-projetos/internal/utils"
	"github.com/joho/godotenv"
)

var (
	home, _           = os.UserHomeDir()
	DefaultConfigPath = filepath.Join(home, ".bancodwg", "config.json")
	DefaultCacheDir   = filepath.Join(home, "BancoDWG")
	DefaultUsersFile  = filepath.Join(home, ".bancodwg", "users.json")
)

// Credential env vars. A .env file next to the config is also honored.
const (
	EnvAccessKey = "BANCODWG_ACCESS_KEY"
	EnvSecretKey = "BANCODWG_SECRET_KEY"
)

const (
	DefaultSyncIntervalSeconds = 300
	DefaultConcurrency         = 4
)

type Config struct {
	// Bucket settings. Endpoint is optional and only needed for
	// S3-compatible stores (MinIO, R2).
	Bucket   string `json:"bucket"`
	Region   string `json:"region"`
	Endpoint string `json:"endpoint,omitempty"`

	CacheDir  string `json:"cache_dir"`
	UsersFile string `json:"users_file"`

	AutoSyncOnStart         bool `json:"auto_sync_on_start"`
	SyncIntervalSeconds     int  `json:"sync_interval_seconds"`
	Concurrency             int  `json:"concurrency"`
	ResurrectPendingUploads bool `json:"resurrect_pending_uploads"`

	// Credentials come from the environment, never the JSON file.
	AccessKey string `json:"-"`
	SecretKey string `json:"-"`
	Path      string `json:"-"`
}

// Default returns a config with every non-credential field filled in.
func Default() *Config {
	return &Config{
		Region:                  "us-east-1",
		CacheDir:                DefaultCacheDir,
		UsersFile:               DefaultUsersFile,
		AutoSyncOnStart:         true,
		SyncIntervalSeconds:     DefaultSyncIntervalSeconds,
		Concurrency:             DefaultConcurrency,
		ResurrectPendingUploads: true,
	}
}

// Load reads the config file at path and overlays credentials from the
// environment. A .env file in the config dir is loaded first if present.
func Load(path string) (*Config, error) {
	path, err := utils.ResolvePath(path)
	if err != nil {
		return nil, fmt.Errorf("resolve config path: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	cfg.Path = path

	if cfg.CacheDir, err = utils.ResolvePath(cfg.CacheDir); err != nil {
		return nil, fmt.Errorf("resolve cache dir: %w", err)
	}
	if cfg.UsersFile, err = utils.ResolvePath(cfg.UsersFile); err != nil {
		return nil, fmt.Errorf("resolve users file: %w", err)
	}

	cfg.loadCredentials()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as indented JSON. Credentials are excluded by
// the struct tags.
func (c *Config) Save(path string) error {
	if err := utils.EnsureParent(path); err != nil {
		return fmt.Errorf("ensure config dir: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("encode config: %w", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	c.Path = path
	return nil
}

func (c *Config) Validate() error {
	if c.Bucket == "" {
		return fmt.Errorf("config: bucket is required")
	}
	if c.CacheDir == "" {
		return fmt.Errorf("config: cache_dir is required")
	}
	if c.UsersFile == "" {
		return fmt.Errorf("config: users_file is required")
	}
	if c.SyncIntervalSeconds < 0 {
		return fmt.Errorf("config: sync_interval_seconds cannot be negative")
	}
	if c.Concurrency < 0 {
		return fmt.Errorf("config: concurrency cannot be negative")
	}
	return nil
}

// SyncInterval is the auto-sync period. Zero means timer-driven sync is
// disabled.
func (c *Config) SyncInterval() time.Duration {
	return time.Duration(c.SyncIntervalSeconds) * time.Second
}

// loadCredentials pulls the bucket keys from a .env next to the config
// file, then the process environment. The environment wins.
func (c *Config) loadCredentials() {
	if c.Path != "" {
		envPath := filepath.Join(filepath.Dir(c.Path), ".env")
		if utils.FileExists(envPath) {
			if err := godotenv.Load(envPath); err != nil {
				slog.Warn("failed to load .env", "path", envPath, "error", err)
			}
		}
	}
	c.AccessKey = os.Getenv(EnvAccessKey)
	c.SecretKey = os.Getenv(EnvSecretKey)
}
