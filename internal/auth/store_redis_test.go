// Copyright (c) 2026 Kantan Labs. All rights reserved.

package auth

import (
	"context"
	"path"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kantan-dev/kantan/internal/platform/apperr"
)

// fakeCache is an in-memory tokenCache. TTLs are recorded but not enforced.
type fakeCache struct {
	mu     sync.Mutex
	values map[string]string
	ttls   map[string]time.Duration
}

func newFakeCache() *fakeCache {
	return &fakeCache{values: make(map[string]string), ttls: make(map[string]time.Duration)}
}

func (cache *fakeCache) Set(_ context.Context, key, value string, ttl time.Duration) error {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	cache.values[key] = value
	cache.ttls[key] = ttl
	return nil
}

func (cache *fakeCache) GetDel(_ context.Context, key string) (string, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	if value, ok := cache.values[key]; ok {
		delete(cache.values, key)
		return value, nil
	}
	return "", apperr.NotFound("Cache entry")
}

func (cache *fakeCache) InvalidatePattern(_ context.Context, pattern string) (int, error) {
	cache.mu.Lock()
	defer cache.mu.Unlock()
	removed := 0
	for key := range cache.values {
		if matched, _ := path.Match(pattern, key); matched {
			delete(cache.values, key)
			removed++
		}
	}
	return removed, nil
}

/*
TestRefreshTokenStore_SingleUse verifies that a saved token can be consumed
exactly once.
*/
func TestRefreshTokenStore_SingleUse(t *testing.T) {
	store := NewRefreshTokenStore(newFakeCache())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "alice", "tok1", time.Hour))

	require.NoError(t, store.Consume(ctx, "alice", "tok1"))

	err := store.Consume(ctx, "alice", "tok1")
	require.Error(t, err)
	assert.Equal(t, "TOKEN_REVOKED", apperr.As(err).Code)
}

/*
TestRefreshTokenStore_ConcurrentConsume verifies that parallel rotation
attempts presenting the same token produce exactly one winner; the rest
are rejected as revoked.
*/
func TestRefreshTokenStore_ConcurrentConsume(t *testing.T) {
	store := NewRefreshTokenStore(newFakeCache())
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "alice", "tok1", time.Hour))

	const attempts = 8
	results := make(chan error, attempts)

	var start sync.WaitGroup
	start.Add(1)
	for i := 0; i < attempts; i++ {
		go func() {
			start.Wait()
			results <- store.Consume(ctx, "alice", "tok1")
		}()
	}
	start.Done()

	succeeded := 0
	for i := 0; i < attempts; i++ {
		if err := <-results; err == nil {
			succeeded++
		} else {
			assert.Equal(t, "TOKEN_REVOKED", apperr.As(err).Code)
		}
	}

	assert.Equal(t, 1, succeeded)
}

/*
TestRefreshTokenStore_UnknownToken verifies that a token never saved is
reported as revoked, not as a distinct "unknown" state.
*/
func TestRefreshTokenStore_UnknownToken(t *testing.T) {
	store := NewRefreshTokenStore(newFakeCache())

	err := store.Consume(context.Background(), "alice", "never-issued")
	require.Error(t, err)
	assert.Equal(t, "TOKEN_REVOKED", apperr.As(err).Code)
}

/*
TestRefreshTokenStore_RevokeAll verifies the per-user sweep leaves other
users' tokens intact.
*/
func TestRefreshTokenStore_RevokeAll(t *testing.T) {
	cache := newFakeCache()
	store := NewRefreshTokenStore(cache)
	ctx := context.Background()

	require.NoError(t, store.Save(ctx, "alice", "tok1", time.Hour))
	require.NoError(t, store.Save(ctx, "alice", "tok2", time.Hour))
	require.NoError(t, store.Save(ctx, "bob", "tok3", time.Hour))

	revoked, err := store.RevokeAll(ctx, "alice")
	require.NoError(t, err)
	assert.Equal(t, 2, revoked)

	// Bob's token survives the sweep.
	assert.NoError(t, store.Consume(ctx, "bob", "tok3"))
}
