// Copyright (c) 2026 Kantan Labs. All rights reserved.

package authz_test

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kantan-dev/kantan/internal/audit"
	"github.com/kantan-dev/kantan/internal/authz"
	"github.com/kantan-dev/kantan/internal/iam/ability"
	"github.com/kantan-dev/kantan/internal/platform/sec"
)

// # Test Fakes

// fakeAbilities returns a fixed rule set for every user.
type fakeAbilities struct {
	set ability.RuleSet
}

func (f *fakeAbilities) Build(_ context.Context, _, _ string) ability.RuleSet {
	return f.set
}

// fakeRecorder captures recorded audit entries.
type fakeRecorder struct {
	entries []audit.Entry
}

func (f *fakeRecorder) Record(_ context.Context, entry audit.Entry) {
	f.entries = append(f.entries, entry)
}

// # Harness

type harness struct {
	tokens   *sec.TokenService
	recorder *fakeRecorder
	guard    *authz.Guard
}

func newHarness(t *testing.T, rules ...ability.Rule) *harness {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	tokens := sec.NewTokenServiceFromKeys(key, "kantan.app")
	recorder := &fakeRecorder{}

	return &harness{
		tokens:   tokens,
		recorder: recorder,
		guard:    authz.NewGuard(tokens, &fakeAbilities{set: ability.NewRuleSet(rules...)}, recorder),
	}
}

// accessToken mints a valid token for the test user.
func (h *harness) accessToken(t *testing.T) string {
	t.Helper()

	token, err := h.tokens.GenerateAccessToken(sec.Identity{
		UserID:   "alice",
		Username: "alice",
		TenantID: "T1",
	}, time.Minute)
	require.NoError(t, err)

	return token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, _ *http.Request) {
		writer.WriteHeader(http.StatusOK)
	})
}

// # Authentication

/*
TestAuthenticate_RejectsBadCredentials verifies the strict 401 behavior for
missing, malformed, invalid and expired bearer tokens.
*/
func TestAuthenticate_RejectsBadCredentials(t *testing.T) {
	h := newHarness(t)
	protected := h.guard.Authenticate(okHandler())

	expired, err := h.tokens.GenerateAccessToken(sec.Identity{UserID: "alice"}, -time.Minute)
	require.NoError(t, err)

	tests := []struct {
		name   string
		header string
	}{
		{"missing_header", ""},
		{"wrong_scheme", "Basic abc123"},
		{"empty_token", "Bearer "},
		{"garbage_token", "Bearer not.a.jwt"},
		{"expired_token", "Bearer " + expired},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				request.Header.Set("Authorization", tt.header)
			}

			response := httptest.NewRecorder()
			protected.ServeHTTP(response, request)

			assert.Equal(t, http.StatusUnauthorized, response.Code)
		})
	}
}

/*
TestAuthenticate_PassesValidToken verifies that a valid token reaches the
downstream handler.
*/
func TestAuthenticate_PassesValidToken(t *testing.T) {
	h := newHarness(t)
	protected := h.guard.Authenticate(okHandler())

	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set("Authorization", "Bearer "+h.accessToken(t))

	response := httptest.NewRecorder()
	protected.ServeHTTP(response, request)

	assert.Equal(t, http.StatusOK, response.Code)
}

// # Policy Enforcement

/*
TestRequire_AuditDiscipline verifies the audit contract: exactly one entry
per policy-checked request (allow and deny alike), and zero entries for
requests that never hit a policy.
*/
func TestRequire_AuditDiscipline(t *testing.T) {
	t.Run("allow_records_one_entry", func(t *testing.T) {
		h := newHarness(t, ability.Rule{Action: "read", Subject: "Document"})
		handler := h.guard.Authenticate(
			h.guard.Require(authz.Policy{Action: "read", Subject: "Document"})(okHandler()),
		)

		request := httptest.NewRequest(http.MethodGet, "/documents", nil)
		request.Header.Set("Authorization", "Bearer "+h.accessToken(t))

		response := httptest.NewRecorder()
		handler.ServeHTTP(response, request)

		assert.Equal(t, http.StatusOK, response.Code)
		require.Len(t, h.recorder.entries, 1)
		assert.Equal(t, "alice", h.recorder.entries[0].UserID)
		assert.Equal(t, "Document", h.recorder.entries[0].Resource)
	})

	t.Run("deny_records_one_entry", func(t *testing.T) {
		h := newHarness(t) // No rules at all.
		handler := h.guard.Authenticate(
			h.guard.Require(authz.Policy{Action: "delete", Subject: "Document"})(okHandler()),
		)

		request := httptest.NewRequest(http.MethodDelete, "/documents/1", nil)
		request.Header.Set("Authorization", "Bearer "+h.accessToken(t))

		response := httptest.NewRecorder()
		handler.ServeHTTP(response, request)

		assert.Equal(t, http.StatusForbidden, response.Code)
		require.Len(t, h.recorder.entries, 1)
	})

	t.Run("no_policy_records_nothing", func(t *testing.T) {
		h := newHarness(t)
		handler := h.guard.Authenticate(okHandler())

		request := httptest.NewRequest(http.MethodGet, "/me", nil)
		request.Header.Set("Authorization", "Bearer "+h.accessToken(t))

		response := httptest.NewRecorder()
		handler.ServeHTTP(response, request)

		assert.Equal(t, http.StatusOK, response.Code)
		assert.Empty(t, h.recorder.entries)
	})
}

/*
TestRequire_VocabularyMapping verifies that a policy action outside the
audit vocabulary is recorded as custom, with the literal action preserved
in the entry description.
*/
func TestRequire_VocabularyMapping(t *testing.T) {
	h := newHarness(t, ability.Rule{Action: "manage", Subject: "AuditLog"})
	handler := h.guard.Authenticate(
		h.guard.Require(authz.Policy{Action: "manage", Subject: "AuditLog"})(okHandler()),
	)

	request := httptest.NewRequest(http.MethodGet, "/audit-logs", nil)
	request.Header.Set("Authorization", "Bearer "+h.accessToken(t))

	response := httptest.NewRecorder()
	handler.ServeHTTP(response, request)

	assert.Equal(t, http.StatusOK, response.Code)
	require.Len(t, h.recorder.entries, 1)
	assert.Equal(t, audit.ActionCustom, h.recorder.entries[0].Action)
	assert.Contains(t, h.recorder.entries[0].Description, "manage AuditLog")
}

/*
TestRequire_WithoutIdentity verifies that a policy checkpoint reached
without authentication is a hard 403.
*/
func TestRequire_WithoutIdentity(t *testing.T) {
	h := newHarness(t, ability.Rule{Action: ability.ActionManage, Subject: ability.SubjectAll})
	handler := h.guard.Require(authz.Policy{Action: "read", Subject: "Document"})(okHandler())

	response := httptest.NewRecorder()
	handler.ServeHTTP(response, httptest.NewRequest(http.MethodGet, "/documents", nil))

	assert.Equal(t, http.StatusForbidden, response.Code)
}

/*
TestRequire_ResourceConditions verifies instance-level checks: the policy's
resource extractor feeds rule conditions, so tenant-scoped rules deny
foreign resources.
*/
func TestRequire_ResourceConditions(t *testing.T) {
	h := newHarness(t, ability.Rule{
		Action:     "update",
		Subject:    "Document",
		Conditions: map[string]any{"tenant_id": "T1"},
	})

	policy := authz.Policy{
		Action:  "update",
		Subject: "Document",
		Resource: func(request *http.Request) map[string]any {
			return map[string]any{"tenant_id": request.URL.Query().Get("tenant")}
		},
	}
	handler := h.guard.Authenticate(h.guard.Require(policy)(okHandler()))

	t.Run("own_tenant", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPatch, "/documents/1?tenant=T1", nil)
		request.Header.Set("Authorization", "Bearer "+h.accessToken(t))

		response := httptest.NewRecorder()
		handler.ServeHTTP(response, request)

		assert.Equal(t, http.StatusOK, response.Code)
	})

	t.Run("foreign_tenant", func(t *testing.T) {
		request := httptest.NewRequest(http.MethodPatch, "/documents/1?tenant=T2", nil)
		request.Header.Set("Authorization", "Bearer "+h.accessToken(t))

		response := httptest.NewRecorder()
		handler.ServeHTTP(response, request)

		assert.Equal(t, http.StatusForbidden, response.Code)
	})
}

/*
TestRequire_CompositePredicate verifies policies built from AllOf/AnyOf
combinators.
*/
func TestRequire_CompositePredicate(t *testing.T) {
	h := newHarness(t, ability.Rule{Action: "read", Subject: "Document"})

	policy := authz.Policy{
		Action:  "read",
		Subject: "Document",
		Predicate: ability.AnyOf(
			ability.CanPerform("read", "Document"),
			ability.CanPerform("manage", "all"),
		),
	}
	handler := h.guard.Authenticate(h.guard.Require(policy)(okHandler()))

	request := httptest.NewRequest(http.MethodGet, "/documents", nil)
	request.Header.Set("Authorization", "Bearer "+h.accessToken(t))

	response := httptest.NewRecorder()
	handler.ServeHTTP(response, request)

	assert.Equal(t, http.StatusOK, response.Code)
}
