// Copyright (c) 2026 Kantan Labs. All rights reserved.

/*
Package cache provides an explicit TTL-bound key-value service over Redis.

Every entry carries a caller-supplied TTL; there is no eviction policy beyond
expiry. Keys are independent single-key operations, so no locking is needed
on top of the Redis client.

Core Responsibilities:

  - Volatility: Handles data with TTL (Time-To-Live).
  - Invalidation: Single-key delete plus pattern-based sweep (SCAN + DEL).
  - Isolation: Consumers own their key taxonomy via constants.RedisPrefix*.
*/
package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/kantan-dev/kantan/internal/platform/apperr"
)

// scanBatchSize is the COUNT hint passed to SCAN during pattern invalidation.
const scanBatchSize = 100

// Store is a Redis-backed TTL cache.
type Store struct {
	client *redis.Client
}

// New creates a new cache [Store] over an established Redis client.
func New(client *redis.Client) *Store {
	return &Store{client: client}
}

/*
Set stores a value under key with the supplied TTL.

Parameters:
  - context: context.Context
  - key: string (fully prefixed cache key)
  - value: string
  - ttl: time.Duration (entry lifetime, must be > 0)

Returns:
  - error: Storage failures
*/
func (store *Store) Set(context context.Context, key, value string, ttl time.Duration) error {
	if err := store.client.Set(context, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("cache_set_failed: %w", err)
	}
	return nil
}

/*
Get retrieves the value stored under key.

Description: Returns apperr.NotFound if the key is absent or expired.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - string: Stored value
  - error: apperr.NotFound or connectivity errors
*/
func (store *Store) Get(context context.Context, key string) (string, error) {
	value, err := store.client.Get(context, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.NotFound("Cache entry")
		}
		return "", fmt.Errorf("cache_get_failed: %w", err)
	}
	return value, nil
}

/*
GetDel atomically retrieves and removes the value stored under key.

Description: Backed by the Redis GETDEL command, so concurrent callers can
never both observe the same entry. Returns apperr.NotFound if the key is
absent, expired, or already taken.

Parameters:
  - context: context.Context
  - key: string

Returns:
  - string: Stored value
  - error: apperr.NotFound or connectivity errors
*/
func (store *Store) GetDel(context context.Context, key string) (string, error) {
	value, err := store.client.GetDel(context, key).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", apperr.NotFound("Cache entry")
		}
		return "", fmt.Errorf("cache_getdel_failed: %w", err)
	}
	return value, nil
}

/*
Invalidate removes one or more keys. Missing keys are not an error.

Parameters:
  - context: context.Context
  - keys: ...string

Returns:
  - error: Deletion failures
*/
func (store *Store) Invalidate(context context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := store.client.Del(context, keys...).Err(); err != nil {
		return fmt.Errorf("cache_invalidate_failed: %w", err)
	}
	return nil
}

/*
InvalidatePattern removes every key matching the glob-style pattern.

Description: Iterates with SCAN to stay cursor-based and non-blocking on the
Redis side, deleting matches in batches.

Parameters:
  - context: context.Context
  - pattern: string (e.g. "auth:refresh:<userID>:*")

Returns:
  - int: Number of keys removed
  - error: Scan or deletion failures
*/
func (store *Store) InvalidatePattern(context context.Context, pattern string) (int, error) {
	var (
		cursor  uint64
		removed int
	)

	for {
		keys, nextCursor, err := store.client.Scan(context, cursor, pattern, scanBatchSize).Result()
		if err != nil {
			return removed, fmt.Errorf("cache_scan_failed: %w", err)
		}

		if len(keys) > 0 {
			deleted, err := store.client.Del(context, keys...).Result()
			if err != nil {
				return removed, fmt.Errorf("cache_invalidate_pattern_failed: %w", err)
			}
			removed += int(deleted)
		}

		cursor = nextCursor
		if cursor == 0 {
			break
		}
	}

	return removed, nil
}
