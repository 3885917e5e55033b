// Package config loads runtime configuration from the environment.
package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds every runtime setting. The DSN and session key are required;
// the rest have workable defaults.
type Config struct {
	// DSN is the PostgreSQL storage location.
	DSN string `env:"DTRACK_DSN,required"`

	// SessionKey signs session tokens (HS256). Required for any
	// authenticated operation.
	SessionKey string `env:"DTRACK_SESSION_KEY,required"`

	// SessionTTL bounds how long an issued session token stays valid.
	SessionTTL time.Duration `env:"DTRACK_SESSION_TTL" envDefault:"8h"`

	// AdminPassword seeds the bootstrap admin account on first run.
	AdminPassword string `env:"DTRACK_ADMIN_PASSWORD" envDefault:"admin123"`
}

// Load parses configuration from environment variables.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	return cfg, nil
}
