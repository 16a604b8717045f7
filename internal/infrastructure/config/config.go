// Package config loads supervisor configuration from the environment.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all supervisor configuration.
type Config struct {
	Server    ServerConfig
	Apps      AppsConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
}

// ServerConfig holds the IPC surface's HTTP server configuration.
type ServerConfig struct {
	Port string `envconfig:"PORT" default:"5100"`
	Host string `envconfig:"HOST" default:"127.0.0.1"`
}

// AppsConfig holds paths and labelling for the installed app system.
type AppsConfig struct {
	// ConfigPath is the TOML file backing the apps configuration tree.
	ConfigPath string `envconfig:"APPS_CONFIG" default:"/etc/moduleos/apps.toml"`

	// InstallDir is the root under which each app's files are installed.
	InstallDir string `envconfig:"APPS_INSTALL_DIR" default:"/opt/moduleos/apps"`

	// LabelPrefix is the security-label prefix applied to app processes.
	LabelPrefix string `envconfig:"APPS_LABEL_PREFIX" default:"app."`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds rate limiting configuration for the IPC surface.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"100"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"200"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("SUPERVISOR", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port: "5100",
			Host: "127.0.0.1",
		},
		Apps: AppsConfig{
			ConfigPath:  "/etc/moduleos/apps.toml",
			InstallDir:  "/opt/moduleos/apps",
			LabelPrefix: "app.",
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 100,
			Burst:             200,
			Enabled:           true,
		},
	}
}

// Addr returns the host:port the IPC surface listens on.
func (c *Config) Addr() string {
	return c.Server.Host + ":" + c.Server.Port
}
