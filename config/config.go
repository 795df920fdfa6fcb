// Package config loads daemon configuration.
//
// Config is read from a YAML file (default /etc/dockhand/config.yaml),
// with environment variables overriding individual fields. Every field
// except the JWT secret has a working default so a bare config still
// starts the daemon.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is the config file location when --config is not given.
const DefaultPath = "/etc/dockhand/config.yaml"

// Config holds all daemon settings.
type Config struct {
	Listen            string        `yaml:"listen"`             // HTTP listen address
	DockerHost        string        `yaml:"docker-host"`        // empty = Docker client defaults (env, /var/run/docker.sock)
	DatabasePath      string        `yaml:"database-path"`      // SQLite file for container records
	JWTSecret         string        `yaml:"jwt-secret"`         // HMAC key for bearer tokens
	SyncInterval      time.Duration `yaml:"sync-interval"`      // container state reconciliation cadence
	HeartbeatInterval time.Duration `yaml:"heartbeat-interval"` // WebSocket ping cadence
	LogLevel          string        `yaml:"log-level"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Listen:            ":5000",
		DatabasePath:      "/var/lib/dockhand/records.db",
		SyncInterval:      30 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		LogLevel:          "info",
	}
}

// Load reads the config file at path and applies environment overrides.
// A missing file is not an error; defaults are returned.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	} else if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}

	applyEnv(&cfg)

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("DOCKHAND_LISTEN"); v != "" {
		cfg.Listen = v
	}
	if v := os.Getenv("DOCKER_HOST"); v != "" {
		cfg.DockerHost = v
	}
	if v := os.Getenv("DOCKHAND_DB_PATH"); v != "" {
		cfg.DatabasePath = v
	}
	if v := os.Getenv("DOCKHAND_JWT_SECRET"); v != "" {
		cfg.JWTSecret = v
	}
	if v := os.Getenv("DOCKHAND_SYNC_INTERVAL_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.SyncInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("DOCKHAND_WS_HEARTBEAT_MS"); v != "" {
		if ms, err := strconv.Atoi(v); err == nil && ms > 0 {
			cfg.HeartbeatInterval = time.Duration(ms) * time.Millisecond
		}
	}
	if v := os.Getenv("DOCKHAND_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
}

func (c Config) validate() error {
	if c.JWTSecret == "" {
		return fmt.Errorf("jwt-secret is required (config file or DOCKHAND_JWT_SECRET)")
	}
	if c.SyncInterval <= 0 {
		return fmt.Errorf("sync-interval must be positive, got %s", c.SyncInterval)
	}
	if c.HeartbeatInterval <= 0 {
		return fmt.Errorf("heartbeat-interval must be positive, got %s", c.HeartbeatInterval)
	}
	return nil
}
