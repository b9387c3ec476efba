// Copyright (c) 2026 Kantan Labs. All rights reserved.

package sec_test

import (
	"crypto/rand"
	"crypto/rsa"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kantan-dev/kantan/internal/platform/sec"
)

// newTestService builds a TokenService around a freshly generated RSA key.
func newTestService(t *testing.T) *sec.TokenService {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	return sec.NewTokenServiceFromKeys(key, "kantan.test")
}

/*
TestAccessToken_RoundTrip verifies that claims encoded into an access token
are returned intact by verification before the TTL elapses.
*/
func TestAccessToken_RoundTrip(t *testing.T) {
	service := newTestService(t)

	identity := sec.Identity{
		UserID:      "user-1",
		Username:    "alice",
		TenantID:    "tenant-1",
		Roles:       []string{"editor"},
		Permissions: []string{"document:update", "document:read"},
	}

	signed, err := service.GenerateAccessToken(identity, 15*time.Minute)
	require.NoError(t, err)

	claims, err := service.VerifyAccessToken(signed)
	require.NoError(t, err)

	assert.Equal(t, identity.UserID, claims.UserID)
	assert.Equal(t, identity.UserID, claims.Subject)
	assert.Equal(t, identity.Username, claims.Username)
	assert.Equal(t, identity.TenantID, claims.TenantID)
	assert.Equal(t, identity.Roles, claims.Roles)
	assert.Equal(t, identity.Permissions, claims.Permissions)
}

/*
TestAccessToken_Expired verifies that a token whose TTL has elapsed is
rejected with ErrTokenExpired.
*/
func TestAccessToken_Expired(t *testing.T) {
	service := newTestService(t)

	// Issue a token that expired one minute ago.
	signed, err := service.GenerateAccessToken(sec.Identity{UserID: "user-1"}, -1*time.Minute)
	require.NoError(t, err)

	_, err = service.VerifyAccessToken(signed)
	assert.ErrorIs(t, err, sec.ErrTokenExpired)
}

/*
TestAccessToken_WrongKey verifies that a token signed by a different key
fails with a signature error.
*/
func TestAccessToken_WrongKey(t *testing.T) {
	issuerService := newTestService(t)
	verifierService := newTestService(t)

	signed, err := issuerService.GenerateAccessToken(sec.Identity{UserID: "user-1"}, 15*time.Minute)
	require.NoError(t, err)

	_, err = verifierService.VerifyAccessToken(signed)
	assert.ErrorIs(t, err, sec.ErrTokenSignature)
}

/*
TestAccessToken_Malformed verifies classification of unparseable tokens.
*/
func TestAccessToken_Malformed(t *testing.T) {
	service := newTestService(t)

	tests := []struct {
		name  string
		token string
	}{
		{"empty", ""},
		{"garbage", "not-a-jwt"},
		{"truncated", "eyJhbGciOiJSUzI1NiJ9"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := service.VerifyAccessToken(tt.token)
			assert.ErrorIs(t, err, sec.ErrTokenMalformed)
		})
	}
}

/*
TestRefreshToken_RoundTrip verifies the (userID, tokenID) pair survives
the sign/verify cycle.
*/
func TestRefreshToken_RoundTrip(t *testing.T) {
	service := newTestService(t)

	signed, err := service.GenerateRefreshToken("user-1", "token-abc", 30*24*time.Hour)
	require.NoError(t, err)

	claims, err := service.VerifyRefreshToken(signed)
	require.NoError(t, err)

	assert.Equal(t, "user-1", claims.UserID)
	assert.Equal(t, "token-abc", claims.TokenID)
}
