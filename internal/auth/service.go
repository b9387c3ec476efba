// Copyright (c) 2026 Kantan Labs. All rights reserved.

/*
Package auth implements the authentication lifecycle: registration, login,
refresh-token rotation, and logout.

# Architecture

  - Service: Orchestrates credential checks and token issuance.
  - RefreshTokenStore: Redis-backed vault of refresh-token validity records.
  - Tokens: RSA-signed JWT pairs minted by the platform sec package.

# Token Model

Logins produce a short-lived access token, plus a long-lived refresh token
when the caller asks to be remembered. The refresh token is single-use:
refreshing consumes its validity record and issues a brand-new pair. A
consumed, revoked, or unknown token presented again is reported as
TOKEN_REVOKED.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kantan-dev/kantan/internal/audit"
	"github.com/kantan-dev/kantan/internal/iam"
	"github.com/kantan-dev/kantan/internal/platform/apperr"
	"github.com/kantan-dev/kantan/internal/platform/ctxutil"
	"github.com/kantan-dev/kantan/internal/platform/sec"
	"github.com/kantan-dev/kantan/pkg/uuidv7"
)

// # Contracts & Types

// TokenProvider defines the contract for minting and checking token pairs.
type TokenProvider interface {
	// GenerateAccessToken creates a signed JWT string for the given identity.
	GenerateAccessToken(identity sec.Identity, timeToLive time.Duration) (string, error)

	// GenerateRefreshToken creates a signed JWT carrying the (userID, tokenID) pair.
	GenerateRefreshToken(userID, tokenID string, timeToLive time.Duration) (string, error)

	// VerifyRefreshToken checks signature and expiry of a refresh token.
	VerifyRefreshToken(tokenString string) (*sec.RefreshClaims, error)
}

// TokenVault tracks refresh-token validity records.
type TokenVault interface {
	Save(ctx context.Context, userID, tokenID string, ttl time.Duration) error
	Consume(ctx context.Context, userID, tokenID string) error
	RevokeAll(ctx context.Context, userID string) (int, error)
}

// AuditRecorder appends authentication events to the audit trail.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// Service implements authentication use cases.
//
// # Review Process
//
// This service is critical for security. Any changes to hashing, token
// issuance, or rotation logic must be reviewed by the security team.
type Service struct {
	users           iam.UserRepository
	roles           iam.RoleRepository
	permissions     iam.PermissionRepository
	tokens          TokenProvider
	vault           TokenVault
	recorder        AuditRecorder
	accessTokenTTL  time.Duration
	refreshTokenTTL time.Duration
}

// NewService constructs a new auth [Service] with necessary dependencies.
func NewService(
	users iam.UserRepository,
	roles iam.RoleRepository,
	permissions iam.PermissionRepository,
	tokens TokenProvider,
	vault TokenVault,
	recorder AuditRecorder,
	accessTokenTTL time.Duration,
	refreshTokenTTL time.Duration,
) *Service {
	return &Service{
		users:           users,
		roles:           roles,
		permissions:     permissions,
		tokens:          tokens,
		vault:           vault,
		recorder:        recorder,
		accessTokenTTL:  accessTokenTTL,
		refreshTokenTTL: refreshTokenTTL,
	}
}

// AccessTokenTTL exposes the configured access-token lifetime to the
// transport layer for the expires_in response field.
func (service *Service) AccessTokenTTL() time.Duration {
	return service.accessTokenTTL
}

// # Registration Flow

// RegisterInput holds the data required to enroll a new account.
type RegisterInput struct {
	Username string
	Email    string
	Password string
	TenantID string
}

/*
Register validates, hashes, and persists a brand new user account.

Description: Enforces platform-wide username and email uniqueness, stores
only the bcrypt hash, and activates the account immediately.

Parameters:
  - context: context.Context
  - input: RegisterInput

Returns:
  - *iam.User: Created entity
  - error: Conflict (if identity exists) or storage errors
*/
func (service *Service) Register(context context.Context, input RegisterInput) (*iam.User, error) {

	// Verify email uniqueness. Return a client-safe Conflict error.
	_, err := service.users.FindByEmail(context, input.Email)
	if err == nil {
		return nil, apperr.Conflict("Email is already registered")
	}

	// Verify username uniqueness. Return a client-safe Conflict error.
	_, err = service.users.FindByUsername(context, input.Username)
	if err == nil {
		return nil, apperr.Conflict("Username is already taken")
	}

	// Prevent storing plain-text passwords. Default cost is used for balance
	// between security and CPU utilization during registration spikes.
	hashedPassword, err := sec.HashPassword(input.Password)
	if err != nil {
		return nil, fmt.Errorf("auth_service_hash_failed: %w", err)
	}

	// Construct the new User entity. Time-sortable ID to prevent PG index fragmentation.
	user := &iam.User{
		ID:           uuidv7.New(),
		Username:     input.Username,
		Email:        input.Email,
		PasswordHash: hashedPassword,
		Status:       iam.UserStatusActive,
		TenantID:     input.TenantID,
	}

	// Persist the user to the database
	if err := service.users.Create(context, user); err != nil {
		return nil, fmt.Errorf("auth_service_register_failed: %w", err)
	}

	service.recorder.Record(context, audit.Entry{
		UserID:      user.ID,
		TenantID:    user.TenantID,
		Action:      audit.ActionCreate,
		Resource:    "Account",
		ResourceID:  user.ID,
		Description: "Account registered",
	})

	return user, nil
}

// # Authentication Flow

// LoginInput defines credentials for an authentication attempt.
type LoginInput struct {
	Login      string // Can be Username or Email
	Password   string
	RememberMe bool // Mint a refresh token so the session outlives the access token.
	UserAgent  string
	IPAddress  string
}

// Session represents a successfully established authentication session.
type Session struct {
	AccessToken           string
	RefreshToken          string
	RefreshTokenExpiresAt time.Time
	User                  *iam.User
}

/*
Login validates user credentials and issues a fresh token pair.

Description: Verifies identity with a constant-time password comparison and
embeds the user's role names and permission codes into the access token.
When remember-me is requested, a refresh token is minted and its validity
record registered in the vault; otherwise the session simply lapses with
the access token.

Parameters:
  - context: context.Context
  - input: LoginInput

Returns:
  - *Session: Transport-ready session credentials
  - error: Unauthorized or internal failures
*/
func (service *Service) Login(context context.Context, input LoginInput) (*Session, error) {
	var user *iam.User
	var err error
	// Flexible login: look up by Email or Username
	user, err = service.users.FindByEmail(context, input.Login)
	if err != nil {
		user, err = service.users.FindByUsername(context, input.Login)
	}

	// If (err != nil) the user does not exist. Generic message to prevent enumeration.
	if err != nil {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	// Verify password hash using constant-time comparison in bcrypt to prevent timing attacks
	if !sec.CheckPasswordHash(input.Password, user.PasswordHash) {
		return nil, apperr.Unauthorized("Invalid login credentials")
	}

	// Suspended and deactivated accounts keep their password but lose access.
	if !user.Status.CanAuthenticate() {
		return nil, apperr.Unauthorized("Account is not active")
	}

	session, err := service.issueSession(context, user, input.RememberMe)
	if err != nil {
		return nil, err
	}

	// Best-effort bookkeeping off the hot path. The response never waits on it.
	go service.touchLastLogin(ctxutil.GetLogger(context), user.ID)

	service.recorder.Record(context, audit.Entry{
		UserID:      user.ID,
		TenantID:    user.TenantID,
		Action:      audit.ActionLogin,
		Resource:    "Session",
		Description: "User logged in",
		IPAddress:   input.IPAddress,
		UserAgent:   input.UserAgent,
	})

	return session, nil
}

// touchLastLogin stamps the account's last-login time on a detached context
// so the write survives the login request ending first.
func (service *Service) touchLastLogin(logger *slog.Logger, userID string) {
	detached := ctxutil.WithLogger(context.Background(), logger)
	if err := service.users.TouchLastLogin(detached, userID); err != nil {
		logger.WarnContext(detached, "auth_touch_last_login_failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
	}
}

// issueSession mints an access token for an already-verified user, plus a
// refresh token and its validity record when withRefresh is set.
func (service *Service) issueSession(context context.Context, user *iam.User, withRefresh bool) (*Session, error) {

	// ── 1. Claims Enrichment ──────────────────────────────────────────────

	roles, err := service.roles.ForUser(context, user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_role_lookup_failed: %w", err)
	}

	roleNames := make([]string, 0, len(roles))
	for _, role := range roles {
		roleNames = append(roleNames, role.Name)
	}

	permissionCodes, err := service.permissions.CodesForUser(context, user.ID)
	if err != nil {
		return nil, fmt.Errorf("auth_service_permission_lookup_failed: %w", err)
	}

	// ── 2. Access Token ───────────────────────────────────────────────────

	accessToken, err := service.tokens.GenerateAccessToken(sec.Identity{
		UserID:      user.ID,
		Username:    user.Username,
		TenantID:    user.TenantID,
		Roles:       roleNames,
		Permissions: permissionCodes,
	}, service.accessTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_token_generation_failed: %w", err)
	}

	session := &Session{
		AccessToken: accessToken,
		User:        user,
	}

	if !withRefresh {
		return session, nil
	}

	// ── 3. Refresh Token & Validity Record ────────────────────────────────

	tokenID := uuidv7.New()
	refreshToken, err := service.tokens.GenerateRefreshToken(user.ID, tokenID, service.refreshTokenTTL)
	if err != nil {
		return nil, fmt.Errorf("auth_service_refresh_token_failed: %w", err)
	}

	if err := service.vault.Save(context, user.ID, tokenID, service.refreshTokenTTL); err != nil {
		return nil, fmt.Errorf("auth_service_vault_save_failed: %w", err)
	}

	session.RefreshToken = refreshToken
	session.RefreshTokenExpiresAt = time.Now().Add(service.refreshTokenTTL)

	return session, nil
}

// # Session Management

/*
RefreshSession implements the refresh-token rotation mechanism.

Description: Verifies the old token's signature and expiry, consumes its
single-use validity record (replay attack mitigation), re-resolves the
user's current grants, and issues a fresh rotated pair.

Parameters:
  - context: context.Context
  - refreshToken: string

Returns:
  - *Session: New session credentials
  - error: Unauthorized, TokenRevoked, or storage failures
*/
func (service *Service) RefreshSession(context context.Context, refreshToken string) (*Session, error) {

	// ── 1. Cryptographic Verification ─────────────────────────────────────

	claims, err := service.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, sec.ErrTokenExpired) {
			return nil, apperr.Unauthorized("Refresh token expired")
		}
		return nil, apperr.Unauthorized("Invalid refresh token")
	}

	// ── 2. Single-Use Consumption ─────────────────────────────────────────
	// Rotation: the record is spent before anything new is issued, so the
	// same token can never produce two sessions.

	if err := service.vault.Consume(context, claims.UserID, claims.TokenID); err != nil {
		return nil, err
	}

	// ── 3. Re-Issuance ────────────────────────────────────────────────────
	// Grants are re-resolved from the store so a role change since login is
	// reflected in the new access token.

	user, err := service.users.FindByID(context, claims.UserID)
	if err != nil {
		return nil, apperr.Unauthorized("User not found or suspended")
	}

	if !user.Status.CanAuthenticate() {
		return nil, apperr.Unauthorized("Account is not active")
	}

	// A rotation is by definition a remembered session.
	return service.issueSession(context, user, true)
}

/*
Logout revokes every live refresh token for the user.

Description: Access tokens stay valid until natural expiry (they are
stateless), but no new session can be minted without logging in again.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Revocation failures
*/
func (service *Service) Logout(context context.Context, userID string) error {
	revoked, err := service.vault.RevokeAll(context, userID)
	if err != nil {
		return fmt.Errorf("auth_service_logout_failed: %w", err)
	}

	service.recorder.Record(context, audit.Entry{
		UserID:      userID,
		Action:      audit.ActionLogout,
		Resource:    "Session",
		Description: fmt.Sprintf("User logged out, %d token(s) revoked", revoked),
	})

	return nil
}

/*
Me returns the authenticated user's own profile.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - *iam.User: Hydrated account entity
  - error: apperr.NotFound or storage failures
*/
func (service *Service) Me(context context.Context, userID string) (*iam.User, error) {
	return service.users.FindByID(context, userID)
}
