package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sjsage522/producttracker/pkg/errors"
)

func TestLoadConfig(t *testing.T) {
	// Test with default values
	config := LoadConfig()
	assert.Equal(t, BackendSQLite, config.StoreBackend)
	assert.Equal(t, "producttracker.db", config.SQLitePath)
	assert.Equal(t, "localhost:6379", config.RedisAddr)
	assert.Equal(t, 0, config.RedisDB)
	assert.Equal(t, "localhost:11211", config.MemcacheAddr)
	assert.Equal(t, int64(10485760), config.StorageQuotaBytes)
	assert.Equal(t, 1500*time.Millisecond, config.SettleDelay)
	assert.Equal(t, time.Second, config.PollInterval)
	assert.Equal(t, 24*time.Hour, config.CleanupInterval)
	assert.False(t, config.PublishEvents)
	assert.NoError(t, config.Validate())

	// Test with environment variables
	t.Setenv("STORE_BACKEND", "Redis")
	t.Setenv("REDIS_ADDR", "redis.example.com:6379")
	t.Setenv("REDIS_DB", "1")
	t.Setenv("MEMCACHE_ADDR", "memcache.example.com:11211")
	t.Setenv("SETTLE_DELAY_MS", "250")
	t.Setenv("PUBLISH_EVENTS", "true")
	t.Setenv("TRACKER_ENVIRONMENT", "production")

	config = LoadConfig()
	assert.Equal(t, BackendRedis, config.StoreBackend)
	assert.Equal(t, "redis.example.com:6379", config.RedisAddr)
	assert.Equal(t, 1, config.RedisDB)
	assert.Equal(t, "memcache.example.com:11211", config.MemcacheAddr)
	assert.Equal(t, 250*time.Millisecond, config.SettleDelay)
	assert.True(t, config.PublishEvents)
	assert.True(t, config.IsProduction())
}

func TestLoadFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tracker.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sqlite_path: /tmp/products.db\npoll_interval_ms: 500\n"), 0o600))

	config, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "/tmp/products.db", config.SQLitePath)
	assert.Equal(t, 500*time.Millisecond, config.PollInterval)
}

func TestLoadMissingFile(t *testing.T) {
	config, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
	assert.True(t, errors.HasType(err, errors.ErrorTypeConfiguration))
	assert.NotNil(t, config)
}

func TestValidate(t *testing.T) {
	config := LoadConfig()
	config.StoreBackend = "mongo"
	assert.Error(t, config.Validate())

	config = LoadConfig()
	config.PollInterval = 0
	assert.Error(t, config.Validate())

	config = LoadConfig()
	config.StoreBackend = BackendMemcache
	assert.NoError(t, config.Validate())
}
