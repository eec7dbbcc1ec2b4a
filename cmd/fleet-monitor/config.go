package main

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the fleet-monitor CLI.
type Config struct {
	// Database
	DBPath string

	// HTTP API
	ListenAddr string

	// Background scheduling
	RollupInterval   time.Duration
	SnapshotInterval time.Duration
	CleanupInterval  time.Duration

	// Retention horizons
	RawRetentionDays   int
	AlertRetentionDays int

	// Default analytics windows
	TrendHours int
	GrowthDays int
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		DBPath:             "monitor.db",
		ListenAddr:         ":8093",
		RollupInterval:     15 * time.Minute,
		SnapshotInterval:   5 * time.Minute,
		CleanupInterval:    6 * time.Hour,
		RawRetentionDays:   30,
		AlertRetentionDays: 60,
		TrendHours:         24,
		GrowthDays:         30,
	}
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() *Config {
	// Load .env file if present (ignore error if not found)
	_ = godotenv.Load()

	cfg := DefaultConfig()

	if v := os.Getenv("MONITOR_DB"); v != "" {
		cfg.DBPath = v
	}
	if v := os.Getenv("MONITOR_LISTEN"); v != "" {
		cfg.ListenAddr = v
	}
	if v := os.Getenv("ROLLUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.RollupInterval = d
		}
	}
	if v := os.Getenv("SNAPSHOT_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SnapshotInterval = d
		}
	}
	if v := os.Getenv("CLEANUP_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.CleanupInterval = d
		}
	}
	if v := os.Getenv("RAW_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.RawRetentionDays = n
		}
	}
	if v := os.Getenv("ALERT_RETENTION_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.AlertRetentionDays = n
		}
	}
	if v := os.Getenv("TREND_HOURS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.TrendHours = n
		}
	}
	if v := os.Getenv("GROWTH_DAYS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.GrowthDays = n
		}
	}

	return cfg
}
