// Package kvstore is the single key-value persistence port behind the product
// and settings stores.
package kvstore

import (
	"context"
	"errors"
	"fmt"

	"sjsage522/producttracker/config"
)

// ErrNotFound is returned by Get when the key holds no value
var ErrNotFound = errors.New("kvstore: key not found")

// Store represents a key-value persistence backend.
// Set replaces the whole value atomically.
type Store interface {
	// Get retrieves a value, or ErrNotFound
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value
	Set(ctx context.Context, key string, value []byte) error

	// Delete removes a value; deleting a missing key is not an error
	Delete(ctx context.Context, key string) error

	// Size returns the bytes in use by a key, 0 when absent
	Size(ctx context.Context, key string) (int64, error)

	// Close releases the backend
	Close() error
}

// Open creates the backend selected by the configuration
func Open(ctx context.Context, cfg *config.Config) (Store, error) {
	switch cfg.StoreBackend {
	case config.BackendSQLite:
		return NewSQLiteStore(ctx, cfg.SQLitePath)
	case config.BackendRedis:
		return NewRedisStore(ctx, cfg.RedisAddr, cfg.RedisDB, cfg.RedisKeyPrefix)
	case config.BackendMemcache:
		return NewMemcacheStore(cfg.MemcacheAddr), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.StoreBackend)
	}
}
