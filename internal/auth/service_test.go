// Copyright (c) 2026 Kantan Labs. All rights reserved.

package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kantan-dev/kantan/internal/audit"
	"github.com/kantan-dev/kantan/internal/iam"
	"github.com/kantan-dev/kantan/internal/platform/apperr"
	"github.com/kantan-dev/kantan/internal/platform/sec"
	"github.com/kantan-dev/kantan/pkg/pagination"
)

// # Test Fakes

// memoryUserRepo is an in-memory UserRepository.
type memoryUserRepo struct {
	byID map[string]*iam.User
}

func newMemoryUserRepo(users ...*iam.User) *memoryUserRepo {
	repo := &memoryUserRepo{byID: make(map[string]*iam.User)}
	for _, user := range users {
		repo.byID[user.ID] = user
	}
	return repo
}

func (repo *memoryUserRepo) FindByID(_ context.Context, id string) (*iam.User, error) {
	if user, ok := repo.byID[id]; ok {
		return user, nil
	}
	return nil, apperr.NotFound("User")
}

func (repo *memoryUserRepo) FindByUsername(_ context.Context, username string) (*iam.User, error) {
	for _, user := range repo.byID {
		if user.Username == username {
			return user, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *memoryUserRepo) FindByEmail(_ context.Context, email string) (*iam.User, error) {
	for _, user := range repo.byID {
		if user.Email == email {
			return user, nil
		}
	}
	return nil, apperr.NotFound("User")
}

func (repo *memoryUserRepo) Create(_ context.Context, user *iam.User) error {
	repo.byID[user.ID] = user
	return nil
}

func (repo *memoryUserRepo) TouchLastLogin(_ context.Context, _ string) error { return nil }

func (repo *memoryUserRepo) List(_ context.Context, _ string, _ pagination.Params) ([]iam.User, int, error) {
	return nil, 0, nil
}

// stubRoleRepo serves a fixed role list for every user.
type stubRoleRepo struct {
	roles []iam.Role
}

func (repo *stubRoleRepo) ForUser(_ context.Context, _ string) ([]iam.Role, error) {
	return repo.roles, nil
}

func (repo *stubRoleRepo) List(_ context.Context, _ string, _ pagination.Params) ([]iam.Role, int, error) {
	return nil, 0, nil
}

// stubPermissionRepo serves a fixed code list for every user.
type stubPermissionRepo struct {
	codes []string
}

func (repo *stubPermissionRepo) ForRole(_ context.Context, _ string) ([]iam.Permission, error) {
	return nil, nil
}

func (repo *stubPermissionRepo) CodesForUser(_ context.Context, _ string) ([]string, error) {
	return repo.codes, nil
}

func (repo *stubPermissionRepo) List(_ context.Context, _ string, _ pagination.Params) ([]iam.Permission, int, error) {
	return nil, 0, nil
}

// memoryVault is an in-memory TokenVault with single-use semantics.
type memoryVault struct {
	records map[string]bool
}

func newMemoryVault() *memoryVault {
	return &memoryVault{records: make(map[string]bool)}
}

func (vault *memoryVault) Save(_ context.Context, userID, tokenID string, _ time.Duration) error {
	vault.records[userID+":"+tokenID] = true
	return nil
}

func (vault *memoryVault) Consume(_ context.Context, userID, tokenID string) error {
	key := userID + ":" + tokenID
	if !vault.records[key] {
		return apperr.TokenRevoked("Refresh token has been revoked")
	}
	delete(vault.records, key)
	return nil
}

func (vault *memoryVault) RevokeAll(_ context.Context, userID string) (int, error) {
	revoked := 0
	for key := range vault.records {
		if strings.HasPrefix(key, userID+":") {
			delete(vault.records, key)
			revoked++
		}
	}
	return revoked, nil
}

// captureRecorder collects audit entries.
type captureRecorder struct {
	entries []audit.Entry
}

func (recorder *captureRecorder) Record(_ context.Context, entry audit.Entry) {
	recorder.entries = append(recorder.entries, entry)
}

// # Harness

type serviceHarness struct {
	service  *Service
	users    *memoryUserRepo
	vault    *memoryVault
	recorder *captureRecorder
}

func newServiceHarness(t *testing.T, users ...*iam.User) *serviceHarness {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	userRepo := newMemoryUserRepo(users...)
	vault := newMemoryVault()
	recorder := &captureRecorder{}

	service := NewService(
		userRepo,
		&stubRoleRepo{roles: []iam.Role{{ID: "r1", Name: "editor", TenantID: "T1"}}},
		&stubPermissionRepo{codes: []string{"document:read", "document:update"}},
		sec.NewTokenServiceFromKeys(key, "kantan.app"),
		vault,
		recorder,
		15*time.Minute,
		720*time.Hour,
	)

	return &serviceHarness{service: service, users: userRepo, vault: vault, recorder: recorder}
}

func activeUser(t *testing.T, password string) *iam.User {
	t.Helper()

	hash, err := sec.HashPassword(password)
	require.NoError(t, err)

	return &iam.User{
		ID:           "alice",
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: hash,
		Status:       iam.UserStatusActive,
		TenantID:     "T1",
	}
}

// # Registration

/*
TestRegister verifies enrollment, uniqueness enforcement, and that only
the bcrypt hash is stored.
*/
func TestRegister(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := newServiceHarness(t)

		user, err := h.service.Register(context.Background(), RegisterInput{
			Username: "bob",
			Email:    "bob@example.com",
			Password: "s3cret-pass",
			TenantID: "T1",
		})

		require.NoError(t, err)
		assert.Equal(t, iam.UserStatusActive, user.Status)
		assert.NotEqual(t, "s3cret-pass", user.PasswordHash)
		assert.True(t, sec.CheckPasswordHash("s3cret-pass", user.PasswordHash))
	})

	t.Run("duplicate_email", func(t *testing.T) {
		h := newServiceHarness(t, activeUser(t, "s3cret-pass"))

		_, err := h.service.Register(context.Background(), RegisterInput{
			Username: "other",
			Email:    "alice@example.com",
			Password: "s3cret-pass",
		})

		require.Error(t, err)
		assert.Equal(t, "CONFLICT", apperr.As(err).Code)
	})

	t.Run("duplicate_username", func(t *testing.T) {
		h := newServiceHarness(t, activeUser(t, "s3cret-pass"))

		_, err := h.service.Register(context.Background(), RegisterInput{
			Username: "alice",
			Email:    "other@example.com",
			Password: "s3cret-pass",
		})

		require.Error(t, err)
		assert.Equal(t, "CONFLICT", apperr.As(err).Code)
	})
}

// # Login

/*
TestLogin verifies credential validation, claims enrichment, and the audit
side effect.
*/
func TestLogin(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		h := newServiceHarness(t, activeUser(t, "s3cret-pass"))

		session, err := h.service.Login(context.Background(), LoginInput{
			Login:      "alice@example.com",
			Password:   "s3cret-pass",
			RememberMe: true,
		})

		require.NoError(t, err)
		assert.NotEmpty(t, session.AccessToken)
		assert.NotEmpty(t, session.RefreshToken)
		assert.Len(t, h.vault.records, 1)

		require.Len(t, h.recorder.entries, 1)
		assert.Equal(t, audit.ActionLogin, h.recorder.entries[0].Action)
	})

	t.Run("ephemeral_session", func(t *testing.T) {
		h := newServiceHarness(t, activeUser(t, "s3cret-pass"))

		// Without remember-me the session lives and dies with the access
		// token: no refresh token, nothing in the vault.
		session, err := h.service.Login(context.Background(), LoginInput{
			Login:    "alice",
			Password: "s3cret-pass",
		})

		require.NoError(t, err)
		assert.NotEmpty(t, session.AccessToken)
		assert.Empty(t, session.RefreshToken)
		assert.Empty(t, h.vault.records)
	})

	t.Run("wrong_password", func(t *testing.T) {
		h := newServiceHarness(t, activeUser(t, "s3cret-pass"))

		_, err := h.service.Login(context.Background(), LoginInput{
			Login:    "alice",
			Password: "wrong-pass",
		})

		require.Error(t, err)
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	})

	t.Run("unknown_user", func(t *testing.T) {
		h := newServiceHarness(t)

		_, err := h.service.Login(context.Background(), LoginInput{
			Login:    "ghost",
			Password: "whatever1",
		})

		require.Error(t, err)
		// Same generic message as a wrong password, preventing enumeration.
		assert.Equal(t, "Invalid login credentials", apperr.As(err).Message)
	})

	t.Run("suspended_account", func(t *testing.T) {
		user := activeUser(t, "s3cret-pass")
		user.Status = iam.UserStatusSuspended
		h := newServiceHarness(t, user)

		_, err := h.service.Login(context.Background(), LoginInput{
			Login:    "alice",
			Password: "s3cret-pass",
		})

		require.Error(t, err)
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	})
}

// # Refresh Rotation

/*
TestRefreshSession_Rotation verifies the single-use contract: a refresh
token works exactly once, and its replacement works afterwards.
*/
func TestRefreshSession_Rotation(t *testing.T) {
	h := newServiceHarness(t, activeUser(t, "s3cret-pass"))

	session, err := h.service.Login(context.Background(), LoginInput{
		Login:      "alice",
		Password:   "s3cret-pass",
		RememberMe: true,
	})
	require.NoError(t, err)

	// First rotation succeeds and yields a different pair.
	rotated, err := h.service.RefreshSession(context.Background(), session.RefreshToken)
	require.NoError(t, err)
	assert.NotEqual(t, session.RefreshToken, rotated.RefreshToken)

	// Replaying the spent token is rejected as revoked.
	_, err = h.service.RefreshSession(context.Background(), session.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, "TOKEN_REVOKED", apperr.As(err).Code)

	// The rotated token is still good.
	_, err = h.service.RefreshSession(context.Background(), rotated.RefreshToken)
	require.NoError(t, err)
}

/*
TestRefreshSession_RejectsBadTokens verifies signature and expiry checks
run before the vault is consulted.
*/
func TestRefreshSession_RejectsBadTokens(t *testing.T) {
	h := newServiceHarness(t, activeUser(t, "s3cret-pass"))

	t.Run("garbage", func(t *testing.T) {
		_, err := h.service.RefreshSession(context.Background(), "not.a.token")
		require.Error(t, err)
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	})

	t.Run("foreign_signature", func(t *testing.T) {
		otherKey, err := rsa.GenerateKey(rand.Reader, 2048)
		require.NoError(t, err)

		forged, err := sec.NewTokenServiceFromKeys(otherKey, "kantan.app").
			GenerateRefreshToken("alice", "tok1", time.Hour)
		require.NoError(t, err)

		_, err = h.service.RefreshSession(context.Background(), forged)
		require.Error(t, err)
		assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
	})
}

/*
TestRefreshSession_SuspendedMidSession verifies that an account suspension
takes effect at the next rotation even though the token is valid.
*/
func TestRefreshSession_SuspendedMidSession(t *testing.T) {
	user := activeUser(t, "s3cret-pass")
	h := newServiceHarness(t, user)

	session, err := h.service.Login(context.Background(), LoginInput{
		Login:      "alice",
		Password:   "s3cret-pass",
		RememberMe: true,
	})
	require.NoError(t, err)

	user.Status = iam.UserStatusSuspended

	_, err = h.service.RefreshSession(context.Background(), session.RefreshToken)
	require.Error(t, err)
	assert.Equal(t, "UNAUTHORIZED", apperr.As(err).Code)
}

// # Logout

/*
TestLogout verifies that every live refresh token for the user is revoked
and the event is audited.
*/
func TestLogout(t *testing.T) {
	h := newServiceHarness(t, activeUser(t, "s3cret-pass"))

	// Two concurrent sessions (two devices).
	first, err := h.service.Login(context.Background(), LoginInput{Login: "alice", Password: "s3cret-pass", RememberMe: true})
	require.NoError(t, err)
	second, err := h.service.Login(context.Background(), LoginInput{Login: "alice", Password: "s3cret-pass", RememberMe: true})
	require.NoError(t, err)

	require.NoError(t, h.service.Logout(context.Background(), "alice"))

	// Neither session can be refreshed anymore.
	_, err = h.service.RefreshSession(context.Background(), first.RefreshToken)
	assert.Equal(t, "TOKEN_REVOKED", apperr.As(err).Code)
	_, err = h.service.RefreshSession(context.Background(), second.RefreshToken)
	assert.Equal(t, "TOKEN_REVOKED", apperr.As(err).Code)

	// Two logins and one logout in the trail.
	var logouts int
	for _, entry := range h.recorder.entries {
		if entry.Action == audit.ActionLogout {
			logouts++
		}
	}
	assert.Equal(t, 1, logouts)
}
