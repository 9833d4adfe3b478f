// Package config provides configuration management functionality.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/aristath/divtrack/internal/domain"
	"github.com/joho/godotenv"
)

// Missing price policies
const (
	MissingPriceZero      = "zero"
	MissingPriceCostBasis = "cost_basis"
)

// Config holds application configuration
type Config struct {
	DataDir  string // Base directory for all databases (always absolute)
	LogLevel string
	Port     int
	DevMode  bool

	BaseCurrency      domain.Currency
	FXDefaultCurrency domain.Currency // Fallback table entry used for unknown codes
	FXRateTTL         time.Duration
	FXTimeout         time.Duration
	FXAPIURL          string

	MarketDataURL       string
	ProviderTimeout     time.Duration
	ProviderRateLimit   float64 // Requests per second, 0 = unlimited
	ProviderConcurrency int

	MissingPricePolicy string
	LiveInterval       time.Duration // Push interval of the live valuation feed
	AuthJWTSecret      string        // Empty disables auth
	CORSOrigins        []string

	Schedules Schedules
	Backup    *BackupConfig
}

// Schedules holds cron expressions (with seconds) for background jobs
type Schedules struct {
	FXWarmup          string
	ExpectedDividends string
	ClientDataCleanup string
	DatabaseCheck     string
	Maintenance       string
}

// BackupConfig holds S3-compatible backup settings. Disabled when Bucket is empty.
type BackupConfig struct {
	Bucket          string
	Endpoint        string // Custom endpoint (e.g. Cloudflare R2); empty uses AWS
	Region          string
	AccessKeyID     string
	SecretAccessKey string
	Schedule        string // Cron expression (with seconds)
	RetentionDays   int
}

// Enabled reports whether backups should be scheduled.
func (b *BackupConfig) Enabled() bool {
	return b != nil && b.Bucket != ""
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	dataDir := getEnv("DATA_DIR", "./data")

	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}

	if err := os.MkdirAll(absDataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %w", err)
	}

	cfg := &Config{
		DataDir:  absDataDir,
		Port:     getEnvAsInt("PORT", 8001),
		DevMode:  getEnvAsBool("DEV_MODE", false),
		LogLevel: getEnv("LOG_LEVEL", "info"),

		BaseCurrency:      domain.ParseCurrency(getEnv("BASE_CURRENCY", "DKK")),
		FXDefaultCurrency: domain.ParseCurrency(getEnv("FX_DEFAULT_CURRENCY", "USD")),
		FXRateTTL:         getEnvAsDuration("FX_RATE_TTL", time.Hour),
		FXTimeout:         getEnvAsDuration("FX_TIMEOUT", 4*time.Second),
		FXAPIURL:          getEnv("FX_API_URL", "https://api.exchangerate-api.com"),

		MarketDataURL:       getEnv("MARKET_DATA_URL", "https://query1.finance.yahoo.com"),
		ProviderTimeout:     getEnvAsDuration("PROVIDER_TIMEOUT", 4*time.Second),
		ProviderRateLimit:   getEnvAsFloat("PROVIDER_RATE_LIMIT", 5),
		ProviderConcurrency: getEnvAsInt("PROVIDER_CONCURRENCY", 8),

		MissingPricePolicy: strings.ToLower(getEnv("MISSING_PRICE_POLICY", MissingPriceZero)),
		LiveInterval:       getEnvAsDuration("LIVE_INTERVAL", 30*time.Second),
		AuthJWTSecret:      getEnv("AUTH_JWT_SECRET", ""),
		CORSOrigins:        getEnvAsList("CORS_ORIGINS", []string{"*"}),

		Schedules: Schedules{
			FXWarmup:          getEnv("SCHEDULE_FX_WARMUP", "0 */30 * * * *"),
			ExpectedDividends: getEnv("SCHEDULE_EXPECTED_DIVIDENDS", "0 30 6 * * *"),
			ClientDataCleanup: getEnv("SCHEDULE_CLIENT_DATA_CLEANUP", "0 0 4 * * *"),
			DatabaseCheck:     getEnv("SCHEDULE_DATABASE_CHECK", "0 0 */6 * * *"),
			Maintenance:       getEnv("SCHEDULE_MAINTENANCE", "0 0 2 * * *"),
		},
		Backup: loadBackupConfig(),
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks if required configuration is present
func (c *Config) Validate() error {
	if !c.BaseCurrency.Supported() {
		return fmt.Errorf("unsupported BASE_CURRENCY %q", c.BaseCurrency)
	}
	if !c.FXDefaultCurrency.Supported() {
		return fmt.Errorf("unsupported FX_DEFAULT_CURRENCY %q", c.FXDefaultCurrency)
	}
	if c.FXRateTTL <= 0 {
		return fmt.Errorf("FX_RATE_TTL must be positive")
	}
	if c.FXTimeout <= 0 || c.ProviderTimeout <= 0 {
		return fmt.Errorf("FX_TIMEOUT and PROVIDER_TIMEOUT must be positive")
	}
	if c.ProviderConcurrency < 1 {
		return fmt.Errorf("PROVIDER_CONCURRENCY must be at least 1")
	}
	if c.ProviderRateLimit < 0 {
		return fmt.Errorf("PROVIDER_RATE_LIMIT must not be negative")
	}
	switch c.MissingPricePolicy {
	case MissingPriceZero, MissingPriceCostBasis:
	default:
		return fmt.Errorf("unknown MISSING_PRICE_POLICY %q", c.MissingPricePolicy)
	}
	if c.LiveInterval <= 0 {
		return fmt.Errorf("LIVE_INTERVAL must be positive")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT %d", c.Port)
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
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
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

// getEnvAsDuration accepts Go durations ("90s", "1h") or plain seconds.
func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(value); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func loadBackupConfig() *BackupConfig {
	return &BackupConfig{
		Bucket:          getEnv("BACKUP_BUCKET", ""),
		Endpoint:        getEnv("BACKUP_ENDPOINT", ""),
		Region:          getEnv("BACKUP_REGION", "auto"),
		AccessKeyID:     getEnv("BACKUP_ACCESS_KEY_ID", ""),
		SecretAccessKey: getEnv("BACKUP_SECRET_ACCESS_KEY", ""),
		Schedule:        getEnv("BACKUP_SCHEDULE", "0 0 3 * * *"), // Daily at 03:00
		RetentionDays:   getEnvAsInt("BACKUP_RETENTION_DAYS", 30),
	}
}
