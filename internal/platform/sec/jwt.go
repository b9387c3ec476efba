// Copyright (c) 2026 Kantan Labs. All rights reserved.

// Package sec provides cryptographic primitives and token management.
//
// # Architecture
//
// This package isolates security-sensitive code (Hashing, JWT Signing) from
// the domain logic. It acts as an Infrastructure service injected into the
// Application layer via small interfaces owned by the consumers.
package sec

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// # Verification Failures

// Sentinel errors returned by token verification. Callers map these onto
// transport-level 401 responses; the distinction matters for diagnostics
// (an expired token is routine, a bad signature is suspicious).
var (
	// ErrTokenExpired indicates the token was valid but its lifetime has elapsed.
	ErrTokenExpired = errors.New("sec: token expired")

	// ErrTokenSignature indicates the signature does not match our public key.
	ErrTokenSignature = errors.New("sec: invalid token signature")

	// ErrTokenMalformed indicates the string is not a parseable JWT at all.
	ErrTokenMalformed = errors.New("sec: malformed token")
)

// # Token Claims

// AccessClaims represents the payload embedded inside a JWT Access Token.
//
// # Why custom claims?
//
// By embedding identity, tenant, role names, and the union of permission
// codes directly inside the JWT, request handling can reconstruct the active
// user context WITHOUT querying the database on the fast paths. Endpoints
// guarded by a policy still re-resolve permissions on every request.
type AccessClaims struct {
	jwt.RegisteredClaims

	// Custom application claims are abbreviated to keep the JWT payload small.
	UserID      string   `json:"uid"`
	Username    string   `json:"unm"`
	TenantID    string   `json:"tid,omitempty"`
	Roles       []string `json:"rol,omitempty"`
	Permissions []string `json:"prm,omitempty"`
}

// RefreshClaims represents the payload embedded inside a JWT Refresh Token.
//
// # Security Concept
//
// The refresh token proves nothing on its own: the (UserID, TokenID) pair
// must still be marked valid in the token cache. Signature and expiry are
// checked first so that forged or stale tokens never reach the cache.
type RefreshClaims struct {
	jwt.RegisteredClaims

	UserID  string `json:"uid"`
	TokenID string `json:"tkn"`
}

// Identity carries everything encoded into a new access token.
type Identity struct {
	UserID      string
	Username    string
	TenantID    string
	Roles       []string
	Permissions []string
}

// # Token Service

// TokenService handles generation and verification of JWT tokens using RS256.
type TokenService struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
}

// NewTokenService creates a new TokenService.
// It reads RSA keys from the provided filesystem paths.
//
// A failure here is a fatal misconfiguration: the application must not start
// authenticating requests without valid signing material.
func NewTokenService(privateKeyPath, publicKeyPath, issuer string) (*TokenService, error) {
	privateKeyData, err := os.ReadFile(privateKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read private key from %s: %w", privateKeyPath, err)
	}

	privateKey, err := jwt.ParseRSAPrivateKeyFromPEM(privateKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse private key: %w", err)
	}

	publicKeyData, err := os.ReadFile(publicKeyPath)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to read public key from %s: %w", publicKeyPath, err)
	}

	publicKey, err := jwt.ParseRSAPublicKeyFromPEM(publicKeyData)
	if err != nil {
		return nil, fmt.Errorf("sec: failed to parse public key: %w", err)
	}

	return &TokenService{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
	}, nil
}

// NewTokenServiceFromKeys creates a TokenService from an in-memory key pair.
//
// # Usage
//
// Used by tests and ephemeral environments where keys are generated rather
// than mounted from disk.
func NewTokenServiceFromKeys(privateKey *rsa.PrivateKey, issuer string) *TokenService {
	return &TokenService{
		privateKey: privateKey,
		publicKey:  &privateKey.PublicKey,
		issuer:     issuer,
	}
}

// GenerateAccessToken creates a new signed JWT access token for an identity.
func (service *TokenService) GenerateAccessToken(identity Identity, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := AccessClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   identity.UserID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		UserID:      identity.UserID,
		Username:    identity.Username,
		TenantID:    identity.TenantID,
		Roles:       identity.Roles,
		Permissions: identity.Permissions,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(service.privateKey)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign access token: %w", err)
	}

	return signedToken, nil
}

// GenerateRefreshToken creates a new signed JWT refresh token carrying the
// (userID, tokenID) pair that keys the validity record in the token cache.
func (service *TokenService) GenerateRefreshToken(userID, tokenID string, timeToLive time.Duration) (string, error) {
	currentTime := time.Now()
	claims := RefreshClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			Issuer:    service.issuer,
			IssuedAt:  jwt.NewNumericDate(currentTime),
			ExpiresAt: jwt.NewNumericDate(currentTime.Add(timeToLive)),
		},
		UserID:  userID,
		TokenID: tokenID,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	signedToken, err := token.SignedString(service.privateKey)
	if err != nil {
		return "", fmt.Errorf("sec: failed to sign refresh token: %w", err)
	}

	return signedToken, nil
}

// VerifyAccessToken checks the signature and validity of an access token.
//
// # Returns
//   - *AccessClaims on success.
//   - [ErrTokenExpired], [ErrTokenSignature], or [ErrTokenMalformed] on failure.
func (service *TokenService) VerifyAccessToken(tokenString string) (*AccessClaims, error) {
	claims := &AccessClaims{}
	if err := service.verify(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// VerifyRefreshToken checks the signature and validity of a refresh token.
func (service *TokenService) VerifyRefreshToken(tokenString string) (*RefreshClaims, error) {
	claims := &RefreshClaims{}
	if err := service.verify(tokenString, claims); err != nil {
		return nil, err
	}
	return claims, nil
}

// verify parses a token string into claims and classifies any failure into
// one of the package sentinel errors.
func (service *TokenService) verify(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
			return nil, fmt.Errorf("sec: unexpected signing method: %v", token.Header["alg"])
		}
		return service.publicKey, nil
	})

	switch {
	case err == nil && token.Valid:
		return nil
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenSignatureInvalid):
		return ErrTokenSignature
	case errors.Is(err, jwt.ErrTokenMalformed):
		return ErrTokenMalformed
	default:
		return fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
}
