package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config holds the service configuration, loaded from environment
// variables with an optional .env file.
type Config struct {
	// Server
	ListenAddr   string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	Debug        bool

	// Database
	DatabaseDSN string

	// Storage
	StorageDir string

	// Parser budgets
	MaxFileSize int64
	ParseBudget time.Duration

	// Logging
	LogLevel  string
	LogFormat string
}

// Load reads configuration from the environment. A missing .env file is
// not an error; explicit environment variables always win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		ListenAddr:   getEnv("UPD_LISTEN_ADDR", ":8080"),
		ReadTimeout:  getDuration("UPD_READ_TIMEOUT", 30*time.Second),
		WriteTimeout: getDuration("UPD_WRITE_TIMEOUT", 30*time.Second),
		Debug:        getBool("UPD_DEBUG", false),
		DatabaseDSN:  os.Getenv("UPD_DATABASE_DSN"),
		StorageDir:   getEnv("UPD_STORAGE_DIR", "./data/uploads"),
		MaxFileSize:  getInt64("UPD_MAX_FILE_SIZE", 10<<20),
		ParseBudget:  getDuration("UPD_PARSE_BUDGET", 5*time.Second),
		LogLevel:     getEnv("UPD_LOG_LEVEL", "info"),
		LogFormat:    getEnv("UPD_LOG_FORMAT", "console"),
	}
	return cfg, nil
}

// Validate checks the fields the serve command cannot run without.
func (c *Config) Validate() error {
	if c.DatabaseDSN == "" {
		return fmt.Errorf("UPD_DATABASE_DSN is required")
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getInt64(key string, fallback int64) int64 {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return fallback
}

func getDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}
