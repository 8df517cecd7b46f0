package kvstore

import (
	"context"
	"errors"

	"github.com/bradfitz/gomemcache/memcache"

	"sjsage522/producttracker/logger"
)

// MemcacheStore implements Store using memcache.
// Values never expire; the default server item limit of 1MB caps the collection size.
type MemcacheStore struct {
	client *memcache.Client
	log    *logger.Logger
}

// NewMemcacheStore creates a new memcache store
func NewMemcacheStore(serverAddr string) *MemcacheStore {
	return &MemcacheStore{
		client: memcache.New(serverAddr),
		log:    logger.ForKV("memcache"),
	}
}

// Get retrieves a value from memcache
func (m *MemcacheStore) Get(_ context.Context, key string) ([]byte, error) {
	item, err := m.client.Get(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return item.Value, nil
}

// Set stores a value in memcache without expiration
func (m *MemcacheStore) Set(_ context.Context, key string, value []byte) error {
	m.log.Debug().Str("key", key).Int("bytes", len(value)).Msg("Set")
	return m.client.Set(&memcache.Item{
		Key:   key,
		Value: value,
	})
}

// Delete removes a value from memcache
func (m *MemcacheStore) Delete(_ context.Context, key string) error {
	err := m.client.Delete(key)
	if errors.Is(err, memcache.ErrCacheMiss) {
		return nil
	}
	return err
}

// Size returns the stored value length
func (m *MemcacheStore) Size(ctx context.Context, key string) (int64, error) {
	v, err := m.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return int64(len(v)), nil
}

// Ping checks that the server answers
func (m *MemcacheStore) Ping() error {
	return m.client.Ping()
}

// Close releases idle connections
func (m *MemcacheStore) Close() error {
	return m.client.Close()
}
