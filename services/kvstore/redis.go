package kvstore

import (
	"context"
	"errors"

	"github.com/redis/go-redis/v9"

	"sjsage522/producttracker/logger"
)

// RedisStore implements Store using plain Redis strings
type RedisStore struct {
	client *redis.Client
	prefix string
	log    *logger.Logger
}

// NewRedisStore creates a new Redis store and checks the connection
func NewRedisStore(ctx context.Context, addr string, db int, prefix string) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
		DB:   db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return &RedisStore{
		client: client,
		prefix: prefix,
		log:    logger.ForKV("redis"),
	}, nil
}

// Get retrieves a value from Redis
func (r *RedisStore) Get(ctx context.Context, key string) ([]byte, error) {
	v, err := r.client.Get(ctx, r.prefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	return v, err
}

// Set stores a value in Redis without expiration
func (r *RedisStore) Set(ctx context.Context, key string, value []byte) error {
	r.log.Debug().Str("key", key).Int("bytes", len(value)).Msg("Set")
	return r.client.Set(ctx, r.prefix+key, value, 0).Err()
}

// Delete removes a value from Redis
func (r *RedisStore) Delete(ctx context.Context, key string) error {
	return r.client.Del(ctx, r.prefix+key).Err()
}

// Size returns STRLEN of the key
func (r *RedisStore) Size(ctx context.Context, key string) (int64, error) {
	return r.client.StrLen(ctx, r.prefix+key).Result()
}

// Close closes the Redis connection
func (r *RedisStore) Close() error {
	return r.client.Close()
}
