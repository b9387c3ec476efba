// Copyright (c) 2026 Kantan Labs. All rights reserved.

/*
Package authz implements the per-request authentication and authorization guard.

# Architecture

The guard is two composable chi middlewares:

  - Authenticate: verifies the bearer token and injects the access claims
    into the request context. Routes mounted outside this middleware are
    public and skip authentication entirely.
  - Require: enforces a declarative [Policy] against a rule set compiled
    fresh for the authenticated user. Every policy decision — allow or
    deny — produces exactly one audit entry. Requests on paths with no
    policy produce none.

# Fail Closed

A missing identity at a policy checkpoint is a hard deny. Rule compilation
failures surface as empty rule sets upstream, which also deny.
*/
package authz

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/kantan-dev/kantan/internal/audit"
	"github.com/kantan-dev/kantan/internal/iam/ability"
	"github.com/kantan-dev/kantan/internal/platform/apperr"
	"github.com/kantan-dev/kantan/internal/platform/ctxutil"
	"github.com/kantan-dev/kantan/internal/platform/obs"
	"github.com/kantan-dev/kantan/internal/platform/respond"
	"github.com/kantan-dev/kantan/internal/platform/sec"
)

// # Collaborator Contracts

// TokenVerifier validates an access token string into claims.
type TokenVerifier interface {
	VerifyAccessToken(tokenString string) (*sec.AccessClaims, error)
}

// AbilityBuilder compiles the rule set for one user identity.
type AbilityBuilder interface {
	Build(ctx context.Context, userID, tenantID string) ability.RuleSet
}

// AuditRecorder appends entries to the audit trail, best-effort.
type AuditRecorder interface {
	Record(ctx context.Context, entry audit.Entry)
}

// # Guard

// Guard wires token verification, rule compilation and audit recording
// into the middleware chain.
type Guard struct {
	verifier  TokenVerifier
	abilities AbilityBuilder
	recorder  AuditRecorder
}

// NewGuard constructs a Guard from its collaborators.
func NewGuard(verifier TokenVerifier, abilities AbilityBuilder, recorder AuditRecorder) *Guard {
	return &Guard{verifier: verifier, abilities: abilities, recorder: recorder}
}

/*
Authenticate is the strict authentication middleware.

Description: Extracts and verifies the bearer token from the Authorization
header. Any failure is a hard 401; there is no anonymous fall-through.
Verified claims are attached to the request context for handlers and the
policy middleware downstream.
*/
func (guard *Guard) Authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {

		// ── 1. Header Extraction ──────────────────────────────────────────────

		header := request.Header.Get("Authorization")
		if header == "" {
			respond.Error(writer, request, apperr.Unauthorized("Authentication required"))
			return
		}

		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			respond.Error(writer, request, apperr.Unauthorized("Invalid authorization header"))
			return
		}

		// ── 2. Token Verification ─────────────────────────────────────────────

		claims, err := guard.verifier.VerifyAccessToken(token)
		if err != nil {
			switch {
			case errors.Is(err, sec.ErrTokenExpired):
				respond.Error(writer, request, apperr.Unauthorized("Token expired"))
			default:
				respond.Error(writer, request, apperr.Unauthorized("Invalid token"))
			}
			return
		}

		// ── 3. Context Injection ──────────────────────────────────────────────

		next.ServeHTTP(writer, request.WithContext(ctxutil.WithAuthUser(request.Context(), claims)))
	})
}

// # Policies

// Policy declares what a route requires from the authenticated user.
//
// Action and Subject name the grant being exercised and label the audit
// entry. Predicate defaults to CanPerform(Action, Subject) when nil;
// composite requirements use AllOf/AnyOf. Resource optionally extracts
// instance attributes from the request for condition evaluation; when nil
// the check is class-level.
type Policy struct {
	Action    string
	Subject   string
	Predicate ability.Predicate
	Resource  func(request *http.Request) map[string]any
}

// predicate resolves the effective predicate for evaluation.
func (policy Policy) predicate() ability.Predicate {
	if policy.Predicate != nil {
		return policy.Predicate
	}
	return ability.CanPerform(policy.Action, policy.Subject)
}

/*
Require returns a middleware enforcing the given policy.

Description: Compiles the caller's rule set fresh on every request, so a
permission change takes effect immediately. The decision is counted in the
metrics and recorded in the audit trail — exactly one entry per checked
request, allow and deny alike.
*/
func (guard *Guard) Require(policy Policy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			ctx := request.Context()

			// A policy checkpoint without an identity means the route was
			// mounted outside Authenticate. Deny rather than guess.
			claims := ctxutil.GetAuthUser(ctx)
			if claims == nil {
				obs.ObserveAuthzDecision("deny")
				respond.Error(writer, request, apperr.Forbidden("You do not have permission to perform this action"))
				return
			}

			// ── 1. Rule Compilation ───────────────────────────────────────────

			set := guard.abilities.Build(ctx, claims.UserID, claims.TenantID)

			// ── 2. Policy Evaluation ──────────────────────────────────────────

			var resource map[string]any
			if policy.Resource != nil {
				resource = policy.Resource(request)
			}

			granted := ability.Evaluate(set, policy.predicate(), resource)

			// ── 3. Decision Recording ─────────────────────────────────────────

			guard.record(ctx, request, claims, policy, granted)

			if !granted {
				obs.ObserveAuthzDecision("deny")
				respond.Error(writer, request, apperr.Forbidden("You do not have permission to perform this action"))
				return
			}

			obs.ObserveAuthzDecision("allow")
			next.ServeHTTP(writer, request)
		})
	}
}

// record writes the single audit entry for a policy decision.
func (guard *Guard) record(ctx context.Context, request *http.Request, claims *sec.AccessClaims, policy Policy, granted bool) {
	outcome := "denied"
	if granted {
		outcome = "granted"
	}

	guard.recorder.Record(ctx, audit.Entry{
		UserID:      claims.UserID,
		TenantID:    claims.TenantID,
		Action:      audit.Kind(policy.Action),
		Resource:    policy.Subject,
		Description: policy.Action + " " + policy.Subject + " " + outcome,
		IPAddress:   request.RemoteAddr,
		UserAgent:   request.UserAgent(),
	})
}
