// Copyright (c) 2026 Kantan Labs. All rights reserved.

package auth

import (
	"context"
	"time"

	"github.com/kantan-dev/kantan/internal/platform/apperr"
	"github.com/kantan-dev/kantan/internal/platform/constants"
)

// # Refresh Token Vault

// tokenCache is the slice of the platform cache the vault needs.
type tokenCache interface {
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	GetDel(ctx context.Context, key string) (string, error)
	InvalidatePattern(ctx context.Context, pattern string) (int, error)
}

// RefreshTokenStore tracks which refresh tokens are still valid.
//
// # Security Concept
//
// A refresh token is a signed JWT, but the signature alone never suffices:
// the (userID, tokenID) pair must also hold a live validity record here.
// Deleting the record is how rotation and logout revoke tokens that are
// cryptographically still valid.
type RefreshTokenStore struct {
	cache tokenCache
}

// NewRefreshTokenStore creates a vault over the platform cache.
func NewRefreshTokenStore(cache tokenCache) *RefreshTokenStore {
	return &RefreshTokenStore{cache: cache}
}

// key builds the validity record key: auth:refresh:<userID>:<tokenID>.
func (store *RefreshTokenStore) key(userID, tokenID string) string {
	return constants.RedisPrefixRefreshToken + userID + ":" + tokenID
}

/*
Save marks a freshly issued refresh token as valid.

Parameters:
  - context: context.Context
  - userID: string
  - tokenID: string (the token's tkn claim)
  - ttl: time.Duration (aligned with the token's expiry)

Returns:
  - error: Storage failures
*/
func (store *RefreshTokenStore) Save(context context.Context, userID, tokenID string, ttl time.Duration) error {
	return store.cache.Set(context, store.key(userID, tokenID), "1", ttl)
}

/*
Consume atomically spends a refresh token's validity record.

Description: The record is taken with a single GETDEL, so a token can be
consumed exactly once even when concurrent rotation attempts present it
simultaneously. A missing record means the token was already rotated,
revoked by logout, or simply expired — all reported as TOKEN_REVOKED so
operators can spot replay attempts.

Parameters:
  - context: context.Context
  - userID: string
  - tokenID: string

Returns:
  - error: apperr.TokenRevoked or storage failures
*/
func (store *RefreshTokenStore) Consume(context context.Context, userID, tokenID string) error {
	if _, err := store.cache.GetDel(context, store.key(userID, tokenID)); err != nil {
		if apperr.IsAppError(err) {
			return apperr.TokenRevoked("Refresh token has been revoked")
		}
		return err
	}
	return nil
}

/*
RevokeAll invalidates every live refresh token for the user.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - int: Number of tokens revoked
  - error: Sweep failures
*/
func (store *RefreshTokenStore) RevokeAll(context context.Context, userID string) (int, error) {
	return store.cache.InvalidatePattern(context, constants.RedisPrefixRefreshToken+userID+":*")
}
