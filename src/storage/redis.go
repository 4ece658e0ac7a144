package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/go-redis/v9"
)

// ErrNotFound is returned when a key does not exist or has expired
var ErrNotFound = errors.New("key not found")

// releaseScript deletes the lock only when the caller still owns it
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0`)

// RedisStorage stores JSON documents under a key prefix with a TTL
type RedisStorage struct {
	client *redis.Client
	prefix string
}

// NewRedisStorage connects to redisURL and verifies the connection
func NewRedisStorage(ctx context.Context, redisURL, prefix string) (*RedisStorage, error) {
	if redisURL == "" {
		return nil, fmt.Errorf("REDIS_URL environment variable is required")
	}

	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse REDIS_URL: %w", err)
	}

	client := redis.NewClient(opts)

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewRedisStorageFromClient(client, prefix), nil
}

// NewRedisStorageFromClient wraps an existing client
func NewRedisStorageFromClient(client *redis.Client, prefix string) *RedisStorage {
	return &RedisStorage{client: client, prefix: prefix}
}

// WithPrefix returns a storage sharing the connection under another prefix
func (r *RedisStorage) WithPrefix(prefix string) *RedisStorage {
	return &RedisStorage{client: r.client, prefix: prefix}
}

func (r *RedisStorage) key(id string) string {
	return r.prefix + id
}

// Set stores data as JSON with TTL
func (r *RedisStorage) Set(ctx context.Context, id string, data any, ttl time.Duration) error {
	payload, err := sonic.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal data: %w", err)
	}

	if err := r.client.Set(ctx, r.key(id), payload, ttl).Err(); err != nil {
		return fmt.Errorf("failed to set %s: %w", r.key(id), err)
	}
	return nil
}

// Get decodes the stored JSON into dest
func (r *RedisStorage) Get(ctx context.Context, id string, dest any) error {
	payload, err := r.client.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to get %s: %w", r.key(id), err)
	}
	return decode(payload, dest)
}

// GetAndTouch reads the value and extends its TTL in one round trip
func (r *RedisStorage) GetAndTouch(ctx context.Context, id string, ttl time.Duration, dest any) error {
	payload, err := r.client.GetEx(ctx, r.key(id), ttl).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return ErrNotFound
		}
		return fmt.Errorf("failed to GETEX %s: %w", r.key(id), err)
	}
	return decode(payload, dest)
}

// Delete removes the key
func (r *RedisStorage) Delete(ctx context.Context, id string) error {
	if err := r.client.Del(ctx, r.key(id)).Err(); err != nil {
		return fmt.Errorf("failed to delete %s: %w", r.key(id), err)
	}
	return nil
}

// AcquireLock sets the key to owner only if it is absent
func (r *RedisStorage) AcquireLock(ctx context.Context, id, owner string, ttl time.Duration) (bool, error) {
	ok, err := r.client.SetNX(ctx, r.key(id), owner, ttl).Result()
	if err != nil {
		return false, fmt.Errorf("failed to acquire lock %s: %w", r.key(id), err)
	}
	return ok, nil
}

// ReleaseLock deletes the key if owner still holds it
func (r *RedisStorage) ReleaseLock(ctx context.Context, id, owner string) error {
	if err := releaseScript.Run(ctx, r.client, []string{r.key(id)}, owner).Err(); err != nil && !errors.Is(err, redis.Nil) {
		return fmt.Errorf("failed to release lock %s: %w", r.key(id), err)
	}
	return nil
}

// Close closes the Redis connection
func (r *RedisStorage) Close() error {
	return r.client.Close()
}

// Ping tests Redis connection
func (r *RedisStorage) Ping(ctx context.Context) error {
	return r.client.Ping(ctx).Err()
}

func decode(payload []byte, dest any) error {
	if err := sonic.Unmarshal(payload, dest); err != nil {
		return fmt.Errorf("failed to unmarshal data: %w", err)
	}
	return nil
}
