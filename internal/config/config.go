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
	DataDir  string // Base directory for the three databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	Reporting ReportingConfig
	Model     ModelConfig
	Broker    BrokerConfig
	Sink      SinkConfig
	S3        S3Config
	Watcher   WatcherConfig
	Schedules ScheduleConfig
	Backup    BackupConfig
}

// ReportingConfig controls window computation and estate fan-out
type ReportingConfig struct {
	WindowDays            int // Sliding window length when no previous report exists
	ValidationMaxAttempts int // Model invocations per report (first attempt plus retries)
	MaxPreviousReports    int // Previous-report context depth in evidence bundles
	MaxConcurrentReports  int // Semaphore bound for estate-wide runs
}

// ModelConfig selects and tunes the status model adapter
type ModelConfig struct {
	Provider       string // "stub" or "anthropic"
	ModelID        string
	APIKey         string // From ANTHROPIC_API_KEY
	TimeoutSeconds int    // Per-invocation timeout
}

// BrokerConfig configures the event publisher
type BrokerConfig struct {
	RedisAddr     string
	RedisPassword string
	AllowStub     bool // Permit the logging stub when no broker is configured (dev only)
}

// SinkConfig configures rendered-report sinks
type SinkConfig struct {
	Path string // Filesystem sink base directory; empty disables the sink
}

// S3Config configures the object-store client used by the S3 sink and backups
type S3Config struct {
	Bucket    string
	Endpoint  string // Optional custom endpoint (R2-style stores)
	Region    string
	AccessKey string
	SecretKey string
	Prefix    string
}

// Enabled reports whether enough of the S3 configuration is present to build a client
func (c S3Config) Enabled() bool {
	return c.Bucket != "" && c.AccessKey != "" && c.SecretKey != ""
}

// WatcherConfig configures the git-polling catalogue watcher
type WatcherConfig struct {
	CatalogueDir  string // Local git checkout of the catalogue repository; empty disables the watcher
	CatalogueFile string // Catalogue file within the checkout
	EstateKey     string // Estate the watched catalogue belongs to
}

// ScheduleConfig holds cron expressions (with seconds field) for background jobs
type ScheduleConfig struct {
	Reporting    string
	RegistrySync string
	Watch        string
	Backup       string
}

// BackupConfig controls database snapshots shipped to the object store
type BackupConfig struct {
	RetentionDays int
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	// Resolve the data directory to an absolute path and make sure it exists
	dataDir := getEnv("GHILLIE_DATA_DIR", "./data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		LogLevel: getEnv("GHILLIE_LOG_LEVEL", "info"),
		Port:     getEnvAsInt("GHILLIE_PORT", 8090),
		DevMode:  getEnvAsBool("GHILLIE_DEV_MODE", false),
		Reporting: ReportingConfig{
			WindowDays:            getEnvAsInt("GHILLIE_REPORTING_WINDOW_DAYS", 7),
			ValidationMaxAttempts: getEnvAsInt("GHILLIE_VALIDATION_MAX_ATTEMPTS", 2),
			MaxPreviousReports:    getEnvAsInt("GHILLIE_MAX_PREVIOUS_REPORTS", 3),
			MaxConcurrentReports:  getEnvAsInt("GHILLIE_MAX_CONCURRENT_REPORTS", 10),
		},
		Model: ModelConfig{
			Provider:       getEnv("GHILLIE_MODEL_PROVIDER", "stub"),
			ModelID:        getEnv("GHILLIE_MODEL_ID", "claude-3-5-haiku-latest"),
			APIKey:         getEnv("ANTHROPIC_API_KEY", ""),
			TimeoutSeconds: getEnvAsInt("GHILLIE_MODEL_TIMEOUT_SECONDS", 60),
		},
		Broker: BrokerConfig{
			RedisAddr:     getEnv("GHILLIE_REDIS_ADDR", ""),
			RedisPassword: getEnv("GHILLIE_REDIS_PASSWORD", ""),
			AllowStub:     getEnvAsBool("GHILLIE_ALLOW_STUB_BROKER", false),
		},
		Sink: SinkConfig{
			Path: getEnv("GHILLIE_REPORT_SINK_PATH", ""),
		},
		S3: S3Config{
			Bucket:    getEnv("GHILLIE_S3_BUCKET", ""),
			Endpoint:  getEnv("GHILLIE_S3_ENDPOINT", ""),
			Region:    getEnv("GHILLIE_S3_REGION", "auto"),
			AccessKey: getEnv("GHILLIE_S3_ACCESS_KEY", ""),
			SecretKey: getEnv("GHILLIE_S3_SECRET_KEY", ""),
			Prefix:    getEnv("GHILLIE_S3_PREFIX", "reports"),
		},
		Watcher: WatcherConfig{
			CatalogueDir:  getEnv("GHILLIE_CATALOGUE_DIR", ""),
			CatalogueFile: getEnv("GHILLIE_CATALOGUE_FILE", "catalogue.yaml"),
			EstateKey:     getEnv("GHILLIE_CATALOGUE_ESTATE", ""),
		},
		Schedules: ScheduleConfig{
			Reporting:    getEnv("GHILLIE_REPORTING_SCHEDULE", "0 0 6 * * *"),
			RegistrySync: getEnv("GHILLIE_REGISTRY_SYNC_SCHEDULE", "0 30 * * * *"),
			Watch:        getEnv("GHILLIE_WATCH_SCHEDULE", "0 */5 * * * *"),
			Backup:       getEnv("GHILLIE_BACKUP_SCHEDULE", "0 0 3 * * *"),
		},
		Backup: BackupConfig{
			RetentionDays: getEnvAsInt("GHILLIE_BACKUP_RETENTION_DAYS", 30),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present and well-formed
func (c *Config) Validate() error {
	if c.Reporting.WindowDays <= 0 {
		return fmt.Errorf("GHILLIE_REPORTING_WINDOW_DAYS must be a positive integer, got %d", c.Reporting.WindowDays)
	}
	if c.Reporting.ValidationMaxAttempts <= 0 {
		return fmt.Errorf("GHILLIE_VALIDATION_MAX_ATTEMPTS must be a positive integer, got %d", c.Reporting.ValidationMaxAttempts)
	}
	if c.Reporting.MaxConcurrentReports <= 0 {
		return fmt.Errorf("GHILLIE_MAX_CONCURRENT_REPORTS must be a positive integer, got %d", c.Reporting.MaxConcurrentReports)
	}
	if c.Model.Provider == "anthropic" && c.Model.APIKey == "" {
		return fmt.Errorf("ANTHROPIC_API_KEY is required when GHILLIE_MODEL_PROVIDER=anthropic")
	}
	if c.Watcher.CatalogueDir != "" && c.Watcher.EstateKey == "" {
		return fmt.Errorf("GHILLIE_CATALOGUE_ESTATE is required when GHILLIE_CATALOGUE_DIR is set")
	}
	return nil
}

// DatabasePath returns the SQLite file path for a named database
func (c *Config) DatabasePath(name string) string {
	return filepath.Join(c.DataDir, name+".db")
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

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
