package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"sjsage522/catalogworker/pkg/errors"
)

// Store drivers understood by services/store
const (
	StoreDriverPostgres = "postgres"
	StoreDriverMongo    = "mongo"
	StoreDriverMemory   = "memory"
)

// Config represents the application configuration
type Config struct {
	// Catalog site
	BaseURL   string
	BrandFile string

	// Run modes
	TestMode    int
	UseSchedule bool
	UseStore    bool
	MaxPages    int

	// Fetcher configuration
	FetchDelayMin     time.Duration
	FetchDelayMax     time.Duration
	FetchTimeout      time.Duration
	RateLimitBlock    time.Duration
	DocumentCacheSize int
	RespectRobots     bool

	// Memcache configuration, empty keeps block markers in process
	MemcacheAddr string

	// Store configuration
	StoreDriver    string
	DatabaseURL    string
	MongoURI       string
	MongoDatabase  string
	StoreTable     string
	StoreBatchSize int

	// Snapshot configuration
	SnapshotFile   string
	SnapshotBucket string

	// Redis change feed, empty address disables it
	RedisAddr            string
	RedisDB              int
	RedisStream          string
	RedisStreamCount     int
	RedisStreamMaxLength int

	// Operations
	MetricsAddr  string
	CronSpec     string
	ErrorLogFile string

	// Environment
	Environment string
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	return &Config{
		BaseURL:   getEnv("CATALOG_BASE_URL", "https://www.bbqguys.com"),
		BrandFile: getEnv("BRAND_FILE", "url_list.json"),

		TestMode:    getEnvInt("TEST_MODE", 1),
		UseSchedule: getEnvBool("USE_SCHEDULE", false),
		UseStore:    getEnvBool("USE_STORE", true),
		MaxPages:    getEnvInt("MAX_PAGES", 0),

		FetchDelayMin:     time.Duration(getEnvInt("FETCH_DELAY_MIN_MS", 1000)) * time.Millisecond,
		FetchDelayMax:     time.Duration(getEnvInt("FETCH_DELAY_MAX_MS", 3000)) * time.Millisecond,
		FetchTimeout:      time.Duration(getEnvInt("FETCH_TIMEOUT_SECONDS", 30)) * time.Second,
		RateLimitBlock:    time.Duration(getEnvInt("RATE_LIMIT_BLOCK_SECONDS", 300)) * time.Second,
		DocumentCacheSize: getEnvInt("DOCUMENT_CACHE_SIZE", 32),
		RespectRobots:     getEnvBool("RESPECT_ROBOTS", false),

		MemcacheAddr: getEnv("MEMCACHE_ADDR", ""),

		StoreDriver:    strings.ToLower(getEnv("STORE_DRIVER", StoreDriverPostgres)),
		DatabaseURL:    getEnv("DATABASE_URL", ""),
		MongoURI:       getEnv("MONGO_URI", ""),
		MongoDatabase:  getEnv("MONGO_DATABASE", "catalog"),
		StoreTable:     getEnv("STORE_TABLE", "scrapped_products2"),
		StoreBatchSize: getEnvInt("STORE_BATCH_SIZE", 100),

		SnapshotFile:   getEnv("SNAPSHOT_FILE", "products.json"),
		SnapshotBucket: getEnv("SNAPSHOT_BUCKET", ""),

		RedisAddr:            getEnv("REDIS_ADDR", ""),
		RedisDB:              getEnvInt("REDIS_DB", 0),
		RedisStream:          getEnv("REDIS_STREAM", "catalog_changes"),
		RedisStreamCount:     getEnvInt("REDIS_STREAM_COUNT", 1),
		RedisStreamMaxLength: getEnvInt("REDIS_STREAM_MAX_LENGTH", 1000),

		MetricsAddr:  getEnv("METRICS_ADDR", ""),
		CronSpec:     getEnv("CRON_SPEC", ""),
		ErrorLogFile: getEnv("ERROR_LOG_FILE", "storage/logs/errors.log"),

		Environment: getEnv("CATALOG_ENVIRONMENT", "development"),
	}
}

// Validate checks the configuration. Any failure is a configuration fault
// and must stop the run before a brand is processed.
func (c *Config) Validate() error {
	base, err := url.Parse(c.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return errors.NewConfiguration(fmt.Sprintf("CATALOG_BASE_URL %q is not an absolute URL", c.BaseURL), err)
	}
	if c.BrandFile == "" {
		return errors.NewConfiguration("BRAND_FILE is required", nil)
	}
	if c.TestMode < 0 || c.TestMode > 2 {
		return errors.NewConfiguration(fmt.Sprintf("TEST_MODE must be 0, 1 or 2, got %d", c.TestMode), nil)
	}
	if c.MaxPages < 0 {
		return errors.NewConfiguration("MAX_PAGES must not be negative", nil)
	}
	if c.FetchDelayMin < 0 || c.FetchDelayMax < c.FetchDelayMin {
		return errors.NewConfiguration(fmt.Sprintf("invalid fetch delay range [%s, %s]", c.FetchDelayMin, c.FetchDelayMax), nil)
	}
	if c.FetchTimeout <= 0 {
		return errors.NewConfiguration("FETCH_TIMEOUT_SECONDS must be positive", nil)
	}
	if c.DocumentCacheSize < 0 {
		return errors.NewConfiguration("DOCUMENT_CACHE_SIZE must not be negative", nil)
	}
	if c.StoreBatchSize <= 0 {
		return errors.NewConfiguration("STORE_BATCH_SIZE must be positive", nil)
	}
	if c.SnapshotFile == "" {
		return errors.NewConfiguration("SNAPSHOT_FILE is required", nil)
	}
	if c.RedisAddr != "" && c.RedisStreamCount <= 0 {
		return errors.NewConfiguration("REDIS_STREAM_COUNT must be positive", nil)
	}

	if !c.UseStore {
		return nil
	}
	switch c.StoreDriver {
	case StoreDriverPostgres:
		if c.DatabaseURL == "" {
			return errors.NewConfiguration("DATABASE_URL is required when USE_STORE is enabled", nil)
		}
	case StoreDriverMongo:
		if c.MongoURI == "" {
			return errors.NewConfiguration("MONGO_URI is required when USE_STORE is enabled", nil)
		}
	case StoreDriverMemory:
	default:
		return errors.NewConfiguration(fmt.Sprintf("unknown STORE_DRIVER %q", c.StoreDriver), nil)
	}
	if c.StoreTable == "" {
		return errors.NewConfiguration("STORE_TABLE is required when USE_STORE is enabled", nil)
	}
	return nil
}

// ProductLimit returns the per-brand product cap for the configured test mode.
// Zero means unbounded.
func (c *Config) ProductLimit() int {
	return c.TestMode
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvInt(key string, defaultValue int) int {
	value, err := strconv.Atoi(getEnv(key, strconv.Itoa(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvBool(key string, defaultValue bool) bool {
	value, err := strconv.ParseBool(getEnv(key, strconv.FormatBool(defaultValue)))
	if err != nil {
		return defaultValue
	}
	return value
}
