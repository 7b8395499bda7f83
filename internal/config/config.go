// Package config loads application configuration from environment
// variables (with an optional .env file) and layers in overrides from the
// app_settings table once the database is open.
//
// Loading order:
//  1. .env file, if present
//  2. environment variables
//  3. UpdateFromSettings, called after the database opens (takes
//     precedence over both of the above)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"

	"github.com/haloboard/marketfeed/internal/repository"
)

// Config holds application configuration.
type Config struct {
	DataDir  string // base directory for market.db, always absolute
	Port     int    // HTTP server port (default 8080)
	LogLevel string
	LogPretty bool
	DevMode  bool
}

// Load reads configuration from the environment. dataDirOverride, if
// given and non-empty, takes priority over the MARKETFEED_DATA_DIR
// environment variable.
func Load(dataDirOverride ...string) (*Config, error) {
	_ = godotenv.Load()

	var dataDir string
	if len(dataDirOverride) > 0 && dataDirOverride[0] != "" {
		dataDir = dataDirOverride[0]
	} else {
		dataDir = getEnv("MARKETFEED_DATA_DIR", "")
		if dataDir == "" {
			dataDir = "./data"
		}
	}

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:   absDataDir,
		Port:      getEnvAsInt("MARKETFEED_PORT", 8080),
		LogLevel:  getEnv("LOG_LEVEL", "info"),
		LogPretty: getEnvAsBool("LOG_PRETTY", false),
		DevMode:   getEnvAsBool("DEV_MODE", false),
	}

	return cfg, nil
}

// UpdateFromSettings overlays values stored in app_settings, which take
// precedence over whatever was read from the environment. Called once
// after the database and repositories are wired.
func (c *Config) UpdateFromSettings(settingsRepo *repository.AppSettingsRepository) error {
	port, err := settingsRepo.Get("api_port")
	if err != nil {
		return fmt.Errorf("failed to get api_port from settings: %w", err)
	}
	if port != nil && *port != "" {
		if p, err := strconv.Atoi(*port); err == nil {
			c.Port = p
		}
	}

	logLevel, err := settingsRepo.Get("log_level")
	if err != nil {
		return fmt.Errorf("failed to get log_level from settings: %w", err)
	}
	if logLevel != nil && *logLevel != "" {
		c.LogLevel = *logLevel
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
