// ABOUTME: Environment-driven configuration for leadbook
// ABOUTME: Parses env vars into Config and fills XDG and timezone defaults
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"
	"github.com/caarlos0/env/v11"
)

// Config holds every setting read from the environment.
type Config struct {
	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`
	GoogleAPIKey       string `env:"GOOGLE_API_KEY"`

	DBPath      string `env:"LEADBOOK_DB_PATH"`
	TokenPath   string `env:"LEADBOOK_TOKEN_PATH"`
	RedirectURL string `env:"LEADBOOK_OAUTH_REDIRECT_URL" envDefault:"http://localhost:8085/oauth/callback"`
	TimeZone    string `env:"LEADBOOK_TIMEZONE"`
	WebPort     int    `env:"LEADBOOK_WEB_PORT" envDefault:"8080"`
	JWTSecret   string `env:"LEADBOOK_JWT_SECRET"`
	User        string `env:"LEADBOOK_USER"`
	LogLevel    string `env:"LEADBOOK_LOG_LEVEL" envDefault:"info"`
}

// Load parses the environment. Callers load .env files before this.
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	if cfg.DBPath == "" {
		cfg.DBPath = DefaultDBPath()
	}
	if cfg.TokenPath == "" {
		cfg.TokenPath = DefaultTokenPath()
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = os.Getenv("TZ")
	}
	if cfg.TimeZone == "" {
		cfg.TimeZone = "UTC"
	}
	if cfg.User == "" {
		cfg.User = os.Getenv("USER")
	}
	if cfg.User == "" {
		cfg.User = "unknown"
	}

	if _, err := cfg.Location(); err != nil {
		return nil, err
	}
	if _, err := ParseLevel(cfg.LogLevel); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Location resolves the scheduling time zone.
func (c *Config) Location() (*time.Location, error) {
	loc, err := time.LoadLocation(c.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid LEADBOOK_TIMEZONE %q: %w", c.TimeZone, err)
	}
	return loc, nil
}

// HasGoogleCredentials reports whether the OAuth client is configured.
func (c *Config) HasGoogleCredentials() bool {
	return c.GoogleClientID != "" && c.GoogleClientSecret != ""
}

func DefaultDBPath() string {
	return filepath.Join(xdg.DataHome, "leadbook", "leadbook.db")
}

func DefaultTokenPath() string {
	return filepath.Join(xdg.DataHome, "leadbook", "google-token.json")
}
