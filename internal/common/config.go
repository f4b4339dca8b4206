// Package common provides shared utilities for Finch
package common

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
)

// Config holds all configuration for Finch
type Config struct {
	Environment string        `toml:"environment"`
	Server      ServerConfig  `toml:"server"`
	Storage     StorageConfig `toml:"storage"`
	Plaid       PlaidConfig   `toml:"plaid"`
	Fetch       FetchConfig   `toml:"fetch"`
	Logging     LoggingConfig `toml:"logging"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// StorageConfig holds the session store location.
type StorageConfig struct {
	Session AreaConfig `toml:"session"` // institution/logo caches + boundary estimates (BadgerHold)
}

// AreaConfig holds path configuration for a storage area.
type AreaConfig struct {
	Path string `toml:"path"`
}

// PlaidConfig holds aggregation API configuration
type PlaidConfig struct {
	BaseURL   string `toml:"base_url"`
	ClientID  string `toml:"client_id"`
	Secret    string `toml:"secret"`
	RateLimit int    `toml:"rate_limit"`
	Timeout   string `toml:"timeout"`
}

// GetTimeout parses and returns the timeout duration
func (c *PlaidConfig) GetTimeout() time.Duration {
	d, err := time.ParseDuration(c.Timeout)
	if err != nil {
		return 30 * time.Second
	}
	return d
}

// FetchConfig holds transaction fetch pagination bounds.
type FetchConfig struct {
	PageSize int `toml:"page_size"` // items per upstream page
	MaxItems int `toml:"max_items"` // safety cap across all pages of one fetch
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// NewDefaultConfig returns a Config with sensible defaults
func NewDefaultConfig() *Config {
	return &Config{
		Environment: "development",
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Storage: StorageConfig{
			Session: AreaConfig{Path: "data/session"},
		},
		Plaid: PlaidConfig{
			BaseURL:   "https://sandbox.plaid.com",
			RateLimit: 10,
			Timeout:   "30s",
		},
		Fetch: FetchConfig{
			PageSize: 100,
			MaxItems: 10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// LoadConfig loads configuration from files with environment overrides.
// A .env file in the working directory is loaded first if present.
func LoadConfig(paths ...string) (*Config, error) {
	_ = godotenv.Load()

	config := NewDefaultConfig()

	// Load and merge each config file in order (later files override earlier)
	for _, path := range paths {
		if path == "" {
			continue
		}

		if _, err := os.Stat(path); os.IsNotExist(err) {
			continue // Skip missing files
		}

		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		}

		if err := toml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(config)

	if config.Fetch.PageSize <= 0 {
		config.Fetch.PageSize = 100
	}
	if config.Fetch.MaxItems <= 0 {
		config.Fetch.MaxItems = 10000
	}

	return config, nil
}

// applyEnvOverrides applies environment variable overrides to config
func applyEnvOverrides(config *Config) {
	if env := os.Getenv("FINCH_ENV"); env != "" {
		config.Environment = env
	}

	if host := os.Getenv("FINCH_HOST"); host != "" {
		config.Server.Host = host
	}

	if port := os.Getenv("FINCH_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.Server.Port = p
		}
	}

	if level := os.Getenv("FINCH_LOG_LEVEL"); level != "" {
		config.Logging.Level = level
	}

	if path := os.Getenv("FINCH_DATA_PATH"); path != "" {
		config.Storage.Session.Path = path
	}

	if v := os.Getenv("PLAID_BASE_URL"); v != "" {
		config.Plaid.BaseURL = v
	}
	if v := os.Getenv("PLAID_CLIENT_ID"); v != "" {
		config.Plaid.ClientID = v
	}
	if v := os.Getenv("PLAID_SECRET"); v != "" {
		config.Plaid.Secret = v
	}
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	env := strings.ToLower(strings.TrimSpace(c.Environment))
	return env == "production" || env == "prod"
}
