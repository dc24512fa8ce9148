// Package config loads the static service configuration from config.toml and
// PULSEGRID_-prefixed environment variables.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// Config is the full static configuration for the service.
type Config struct {
	Server  ServerConfig  `koanf:"server"`
	SQLite  SQLiteConfig  `koanf:"sqlite"`
	Alerts  AlertsConfig  `koanf:"alerts"`
	Logging LoggingConfig `koanf:"logging"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Addr        string `koanf:"addr"`
	FrontendURL string `koanf:"frontend_url"`
	// RateLimit is the request ceiling per client IP per minute for the
	// alert and query APIs. Ingestion is exempt so devices are never
	// throttled.
	RateLimit int `koanf:"rate_limit"`
}

// SQLiteConfig holds the database path.
type SQLiteConfig struct {
	Path string `koanf:"path"`
}

// AlertsConfig holds notification defaults. These seed the settings table on
// first boot; after that the settings table is the source of truth and is
// re-read on every dispatch.
type AlertsConfig struct {
	Enabled        bool          `koanf:"enabled"`
	Recipients     []string      `koanf:"recipients"`
	SMTPHost       string        `koanf:"smtp_host"`
	SMTPPort       int           `koanf:"smtp_port"`
	SMTPUsername   string        `koanf:"smtp_username"`
	SMTPPassword   string        `koanf:"smtp_password"`
	SMTPFrom       string        `koanf:"smtp_from"`
	SMTPReplyTo    string        `koanf:"smtp_reply_to"`
	SMTPSecurity   string        `koanf:"smtp_security"`
	RequestTimeout time.Duration `koanf:"request_timeout"`
}

// LoggingConfig controls log verbosity.
type LoggingConfig struct {
	Level string `koanf:"level"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			FrontendURL: "http://localhost:5173",
			RateLimit:   100,
		},
		SQLite: SQLiteConfig{
			Path: "pulsegrid.db",
		},
		Alerts: AlertsConfig{
			Enabled:        false,
			SMTPPort:       587,
			SMTPSecurity:   "starttls",
			RequestTimeout: 5 * time.Second,
		},
		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the given file path (optional) and the
// environment, layered over the defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("config file %s not readable: %w", path, err)
		}
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	// PULSEGRID_SERVER_ADDR -> server.addr
	if err := k.Load(env.Provider("PULSEGRID_", ".", func(s string) string {
		return strings.ReplaceAll(strings.ToLower(strings.TrimPrefix(s, "PULSEGRID_")), "_", ".")
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}
