package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRemoteTimeout = 250 * time.Millisecond

// RedisStore is the remote cache tier. Every call is bounded by a short
// timeout so a slow or unreachable redis degrades to the local tier instead
// of stalling request handling.
type RedisStore struct {
	client  *redis.Client
	timeout time.Duration
	now     func() time.Time
}

// NewRedisStore wraps an existing redis client. A non-positive timeout falls
// back to the default.
func NewRedisStore(client *redis.Client, timeout time.Duration) *RedisStore {
	if timeout <= 0 {
		timeout = defaultRemoteTimeout
	}
	return &RedisStore{client: client, timeout: timeout, now: time.Now}
}

// Get implements Store. A missing key is (nil, nil); any transport problem is
// returned as an error so the facade can fall back.
func (s *RedisStore) Get(ctx context.Context, key string) (*Entry, error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	if errors.Is(getCmd.Err(), redis.Nil) {
		return nil, nil
	}
	value, err := getCmd.Bytes()
	if err != nil {
		return nil, fmt.Errorf("redis get %q: %w", key, err)
	}
	remaining := ttlCmd.Val()
	if remaining < 0 {
		// Key exists without a TTL; treat it as expiring now rather than
		// serving an entry with unknown freshness.
		return nil, nil
	}
	return &Entry{Value: value, ExpiresAt: s.now().Add(remaining)}, nil
}

// Set implements Store.
func (s *RedisStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	if err := s.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %q: %w", key, err)
	}
	return nil
}

// DeleteByPrefix implements Store. It removes the exact key plus every key
// under "prefix:*" found by SCAN, deleting in batches.
func (s *RedisStore) DeleteByPrefix(ctx context.Context, prefix string) error {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.client.Del(ctx, prefix).Err(); err != nil {
		return fmt.Errorf("redis del %q: %w", prefix, err)
	}

	iter := s.client.Scan(ctx, 0, prefix+":*", 100).Iterator()
	batch := make([]string, 0, 100)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := s.client.Del(ctx, batch...).Err(); err != nil {
			return fmt.Errorf("redis del %d keys under %q: %w", len(batch), prefix, err)
		}
		batch = batch[:0]
		return nil
	}
	for iter.Next(ctx) {
		batch = append(batch, iter.Val())
		if len(batch) == cap(batch) {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan %q: %w", prefix, err)
	}
	return flush()
}
