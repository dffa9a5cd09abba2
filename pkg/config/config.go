package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// API defaults
const (
	DefaultPageSize       = 100
	DefaultExperimentSize = 100
	RequestTimeout        = 30 * time.Second
	APIKeyHeader          = "Galileo-API-Key"
)

// Environment variables
const (
	EnvAPIKey    = "GALILEO_API_KEY"
	EnvAPIURL    = "GALILEO_API_URL"
	EnvProject   = "GALILEO_PROJECT"
	EnvLogStream = "GALILEO_LOG_STREAM"
	EnvProjectID = "GALILEO_PROJECT_ID"
	EnvPageSize  = "GALILEO_PAGE_SIZE"
	EnvStoreDir  = "GALILEO_STORE_DIR"
)

// Snapshot storage defaults
const (
	DefaultMaxMemoryMB       = 32
	DefaultSnapshotRetention = 30 * 24 * time.Hour
	DefaultSnapshotListLimit = 20
	StoreTimeout             = 30 * time.Second
	StoreGCDiscardRatio      = 0.5
)

// Settings holds everything read from the environment. Explicit CLI
// arguments are applied on top by the caller.
type Settings struct {
	APIKey    string
	APIURL    string
	Project   string
	LogStream string
	ProjectID string
	PageSize  int
	StoreDir  string
}

// Load reads a .env file from the working directory (if any) and then the
// process environment. Variables already set in the environment win over
// the file. Warnings go to logger, or the standard logger when it is nil.
func Load(logger *log.Logger) Settings {
	if logger == nil {
		logger = log.Default()
	}
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		logger.Printf("⚠️  Failed to read .env: %v", err)
	}

	return Settings{
		APIKey:    os.Getenv(EnvAPIKey),
		APIURL:    os.Getenv(EnvAPIURL),
		Project:   os.Getenv(EnvProject),
		LogStream: os.Getenv(EnvLogStream),
		ProjectID: os.Getenv(EnvProjectID),
		PageSize:  getEnvInt(logger, EnvPageSize, DefaultPageSize),
		StoreDir:  os.Getenv(EnvStoreDir),
	}
}

// getEnvInt gets an int from environment variable or returns default
func getEnvInt(logger *log.Logger, key string, defaultValue int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil && parsed > 0 {
			return parsed
		}
		logger.Printf("⚠️  Invalid value for %s: %q, using default %d", key, val, defaultValue)
	}
	return defaultValue
}
