// Package config loads DoLoop service configuration from environment
// variables.
package config

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration loaded from environment variables.
type Config struct {
	// General
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
	LogLevel    string `envconfig:"LOG_LEVEL" default:"info"`
	ListenAddr  string `envconfig:"LISTEN_ADDR" default:":8080"`

	// Storage
	DBPath       string `envconfig:"DB_PATH" default:"doloop.db"`
	LocalDataDir string `envconfig:"LOCAL_DATA_DIR" default:".doloop"`

	// Auth
	AuthMode  string `envconfig:"AUTH_MODE" default:"jwt"` // "jwt" or "none"
	JWTSecret string `envconfig:"JWT_SECRET"`

	// HTTP hardening
	CORSOrigins    string `envconfig:"CORS_ORIGINS"`
	RateLimitRPS   int    `envconfig:"RATE_LIMIT_RPS" default:"100"`
	RateLimitBurst int    `envconfig:"RATE_LIMIT_BURST" default:"200"`

	// AI generation (optional — service starts without AI in catalog-only mode)
	AIAPIKey        string `envconfig:"AI_API_KEY"`
	AIModel         string `envconfig:"AI_MODEL" default:"claude-sonnet-4-5"`
	AIMaxTokens     int    `envconfig:"AI_MAX_TOKENS" default:"2048"`
	AIBlocklistPath string `envconfig:"AI_BLOCKLIST_PATH"` // optional YAML extending the prompt block-list

	// Client-side limits are advisory; these are the authoritative ones.
	AIHourlyLimit  int `envconfig:"AI_HOURLY_LIMIT" default:"5"`
	AIDailyLimit   int `envconfig:"AI_DAILY_LIMIT" default:"20"`
	AIMonthlyLimit int `envconfig:"AI_MONTHLY_LIMIT" default:"100"`

	// Background reset sweep
	SweepInterval string `envconfig:"SWEEP_INTERVAL" default:"5m"`
}

// AIEnabled returns true if an AI provider key is configured.
func (c *Config) AIEnabled() bool {
	return c.AIAPIKey != ""
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if cfg.AuthMode == "jwt" && cfg.JWTSecret == "" && cfg.Environment != "development" {
		return nil, fmt.Errorf("JWT_SECRET is required when AUTH_MODE=jwt outside development")
	}
	return &cfg, nil
}

// LoadWithPrefix reads configuration with a prefix.
func LoadWithPrefix(prefix string) (*Config, error) {
	var cfg Config
	if err := envconfig.Process(prefix, &cfg); err != nil {
		return nil, fmt.Errorf("loading config with prefix %s: %w", prefix, err)
	}
	return &cfg, nil
}
