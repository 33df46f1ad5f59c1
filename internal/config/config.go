// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	DataDir          string // Base directory for databases and parameter files (always absolute)
	LogLevel         string
	Port             int
	DevMode          bool
	AnthropicAPIKey  string // Optional; narrative generation is disabled without it
	NarrativeModel   string
	BackupBucket     string // Optional; S3 backups are disabled without it
	BackupRegion     string
	BackupAccessKey  string // Optional; falls back to the default AWS credential chain
	BackupSecretKey  string
	BackupRetention  int // Days to keep old backups in the bucket
	ReviewSchedule   string
	WarningsSchedule string
	BackupSchedule   string
	AvailableCash    float64 // Fund cash on hand, used by the scheduled portfolio review
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("KEEL_DATA_DIR", "")
	if dataDir == "" {
		dataDir = "./data"
	}

	// Always resolve to absolute path
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	// Ensure directory exists
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:          absDataDir,
		Port:             getEnvAsInt("KEEL_PORT", 8040),
		DevMode:          getEnvAsBool("DEV_MODE", false),
		LogLevel:         getEnv("LOG_LEVEL", "info"),
		AnthropicAPIKey:  getEnv("ANTHROPIC_API_KEY", ""),
		NarrativeModel:   getEnv("NARRATIVE_MODEL", ""),
		BackupBucket:     getEnv("BACKUP_S3_BUCKET", ""),
		BackupRegion:     getEnv("BACKUP_S3_REGION", "us-east-1"),
		BackupAccessKey:  getEnv("BACKUP_S3_ACCESS_KEY", ""),
		BackupSecretKey:  getEnv("BACKUP_S3_SECRET_KEY", ""),
		BackupRetention:  getEnvAsInt("BACKUP_RETENTION", 14),
		ReviewSchedule:   getEnv("REVIEW_CRON", "0 2 * * *"),
		WarningsSchedule: getEnv("WARNINGS_CRON", "0 */4 * * *"),
		BackupSchedule:   getEnv("BACKUP_CRON", "0 3 * * *"),
		AvailableCash:    getEnvAsFloat("AVAILABLE_CASH", 0),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid port: %d", c.Port)
	}
	if c.BackupRetention < 1 {
		return fmt.Errorf("backup retention must be at least 1, got %d", c.BackupRetention)
	}
	return nil
}

// Helper functions
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

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatVal, err := strconv.ParseFloat(value, 64); err == nil {
			return floatVal
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
