// Copyright Open Responses Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the main configuration
type Config struct {
	Server           ServerConfig      `yaml:"server"`
	Logging          LoggingConfig     `yaml:"logging"`
	Storage          StorageConfig     `yaml:"storage"`
	SecretStore      SecretStoreConfig `yaml:"secret_store"`
	Vault            VaultConfig       `yaml:"vault"`
	Proxy            ProxyConfig       `yaml:"proxy"`
	Metrics          MetricsConfig     `yaml:"metrics"`
	IntegrationsFile string            `yaml:"integrations_file"` // optional YAML definitions to seed at startup
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host    string        `yaml:"host"`
	Port    int           `yaml:"port"`
	Timeout time.Duration `yaml:"timeout"`

	// AdminToken guards the credential read-back endpoint. Empty disables it.
	AdminToken string `yaml:"admin_token"`
}

// LoggingConfig contains logger configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "text"
}

// StorageConfig selects the record store for integrations, assignments and
// call logs.
type StorageConfig struct {
	Type string `yaml:"type"` // "memory" (default), "sqlite" or "postgres"
	DSN  string `yaml:"dsn"`
}

// SecretStoreConfig selects where sealed credential bundles live.
type SecretStoreConfig struct {
	// Type is "memory", "filesystem", "s3", "redis", "sqlite", "postgres",
	// or "database" to share the record store's connection.
	Type   string            `yaml:"type"`
	Params map[string]string `yaml:"params"` // backend specific, e.g. base_dir, bucket, url
}

// VaultConfig holds the age identity used to seal credentials.
type VaultConfig struct {
	Identity     string `yaml:"identity"`      // AGE-SECRET-KEY-1...
	IdentityFile string `yaml:"identity_file"` // file holding the identity
}

// ProxyConfig bounds upstream calls.
type ProxyConfig struct {
	Timeout          time.Duration `yaml:"timeout"`
	MaxResponseBytes int64         `yaml:"max_response_bytes"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
}

// Load loads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := base()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// Default returns default configuration with environment overrides applied.
func Default() *Config {
	cfg := base()
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg
}

// base holds the settings a config file starts from.
func base() *Config {
	return &Config{
		Server: ServerConfig{
			Host:    "0.0.0.0",
			Port:    8080,
			Timeout: 60 * time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{Enabled: true},
	}
}

// applyEnv overrides file settings with environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("STORAGE_TYPE"); v != "" {
		cfg.Storage.Type = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Storage.DSN = v
	}
	if v := os.Getenv("SECRET_STORE_TYPE"); v != "" {
		cfg.SecretStore.Type = v
	}
	if v := os.Getenv("VAULT_AGE_IDENTITY"); v != "" {
		cfg.Vault.Identity = v
	}
	if v := os.Getenv("ADMIN_TOKEN"); v != "" {
		cfg.Server.AdminToken = v
	}
	if v := os.Getenv("INTEGRATIONS_FILE"); v != "" {
		cfg.IntegrationsFile = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Storage.Type == "" {
		cfg.Storage.Type = "memory"
	}
	if cfg.SecretStore.Type == "" {
		// Keep credentials next to the records unless told otherwise.
		if cfg.Storage.Type == "memory" {
			cfg.SecretStore.Type = "memory"
		} else {
			cfg.SecretStore.Type = "database"
		}
	}
	if cfg.Proxy.Timeout <= 0 {
		cfg.Proxy.Timeout = 30 * time.Second
	}
	if cfg.Proxy.MaxResponseBytes <= 0 {
		cfg.Proxy.MaxResponseBytes = 10 << 20
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}
}
