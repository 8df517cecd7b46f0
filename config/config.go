package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"sjsage522/producttracker/pkg/errors"
)

// Supported persistence backends
const (
	BackendSQLite   = "sqlite"
	BackendRedis    = "redis"
	BackendMemcache = "memcache"
)

// Config represents the application configuration
type Config struct {
	// Persistence
	StoreBackend      string
	SQLitePath        string
	StorageQuotaBytes int64

	// Redis configuration
	RedisAddr            string
	RedisDB              int
	RedisKeyPrefix       string
	RedisStream          string
	RedisStreamMaxLength int64
	PublishEvents        bool

	// Memcache configuration
	MemcacheAddr string

	// Scheduler configuration
	SettleDelay  time.Duration
	PollInterval time.Duration

	// Retention sweep
	CleanupInterval time.Duration

	// Transport
	ListenAddr     string
	ChromeDebugURL string

	// Environment
	Environment string
}

var defaults = map[string]interface{}{
	"STORE_BACKEND":            BackendSQLite,
	"SQLITE_PATH":              "producttracker.db",
	"STORAGE_QUOTA_BYTES":      10485760,
	"REDIS_ADDR":               "localhost:6379",
	"REDIS_DB":                 0,
	"REDIS_KEY_PREFIX":         "producttracker:",
	"REDIS_STREAM":             "producttracker:events",
	"REDIS_STREAM_MAX_LENGTH":  1000,
	"PUBLISH_EVENTS":           false,
	"MEMCACHE_ADDR":            "localhost:11211",
	"SETTLE_DELAY_MS":          1500,
	"POLL_INTERVAL_MS":         1000,
	"CLEANUP_INTERVAL_MINUTES": 1440,
	"LISTEN_ADDR":              ":8787",
	"CHROME_DEBUG_URL":         "http://localhost:9222",
	"TRACKER_ENVIRONMENT":      "development",
}

// LoadConfig loads the configuration from environment variables with defaults
func LoadConfig() *Config {
	cfg, _ := Load("")
	return cfg
}

// Load reads configuration from an optional YAML file and the environment.
// Environment variables take precedence over the file.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var readErr error
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			readErr = errors.NewConfiguration(fmt.Sprintf("failed to read config file %s", path), err)
		}
	}

	cfg := &Config{
		StoreBackend:         strings.ToLower(v.GetString("STORE_BACKEND")),
		SQLitePath:           v.GetString("SQLITE_PATH"),
		StorageQuotaBytes:    v.GetInt64("STORAGE_QUOTA_BYTES"),
		RedisAddr:            v.GetString("REDIS_ADDR"),
		RedisDB:              v.GetInt("REDIS_DB"),
		RedisKeyPrefix:       v.GetString("REDIS_KEY_PREFIX"),
		RedisStream:          v.GetString("REDIS_STREAM"),
		RedisStreamMaxLength: v.GetInt64("REDIS_STREAM_MAX_LENGTH"),
		PublishEvents:        v.GetBool("PUBLISH_EVENTS"),
		MemcacheAddr:         v.GetString("MEMCACHE_ADDR"),
		SettleDelay:          time.Duration(v.GetInt("SETTLE_DELAY_MS")) * time.Millisecond,
		PollInterval:         time.Duration(v.GetInt("POLL_INTERVAL_MS")) * time.Millisecond,
		CleanupInterval:      time.Duration(v.GetInt("CLEANUP_INTERVAL_MINUTES")) * time.Minute,
		ListenAddr:           v.GetString("LISTEN_ADDR"),
		ChromeDebugURL:       v.GetString("CHROME_DEBUG_URL"),
		Environment:          v.GetString("TRACKER_ENVIRONMENT"),
	}
	return cfg, readErr
}

// Validate checks the configuration for values the application cannot run with
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case BackendSQLite:
		if c.SQLitePath == "" {
			return errors.NewConfiguration("SQLITE_PATH must be set for the sqlite backend", nil)
		}
	case BackendRedis, BackendMemcache:
	default:
		return errors.NewConfiguration(fmt.Sprintf("unknown STORE_BACKEND %q", c.StoreBackend), nil)
	}
	if c.SettleDelay <= 0 {
		return errors.NewConfiguration("SETTLE_DELAY_MS must be positive", nil)
	}
	if c.PollInterval <= 0 {
		return errors.NewConfiguration("POLL_INTERVAL_MS must be positive", nil)
	}
	if c.CleanupInterval <= 0 {
		return errors.NewConfiguration("CLEANUP_INTERVAL_MINUTES must be positive", nil)
	}
	if c.StorageQuotaBytes <= 0 {
		return errors.NewConfiguration("STORAGE_QUOTA_BYTES must be positive", nil)
	}
	return nil
}

// IsProduction reports whether the tracker runs in production mode
func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
