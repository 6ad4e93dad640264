package config

import (
	"fmt"
	"os"
	"strings"
)

// Config keeps runtime settings for the server.
type Config struct {
	HTTPAddr     string
	DatabaseURL  string
	AuthSecret   string
	RolloverTime string
}

// Load reads configuration from environment variables with sane defaults.
func Load() (Config, error) {
	cfg := Config{
		HTTPAddr:     strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		DatabaseURL:  strings.TrimSpace(os.Getenv("DATABASE_URL")),
		AuthSecret:   strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		RolloverTime: strings.TrimSpace(os.Getenv("ROLLOVER_TIME")),
	}

	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	if cfg.DatabaseURL == "" {
		cfg.DatabaseURL = "chronos.db"
	}

	// Empty ROLLOVER_TIME disables the nightly job entirely.

	if cfg.AuthSecret == "" {
		return cfg, fmt.Errorf("AUTH_SECRET is required")
	}

	return cfg, nil
}
