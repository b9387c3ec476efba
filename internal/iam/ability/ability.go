// Copyright (c) 2026 Kantan Labs. All rights reserved.

/*
Package ability compiles a user's role/permission assignments into a runtime
rule set and evaluates authorization predicates against it.

# Architecture

The package sits between the iam stores and the authorization guard:

  - Builder: resolves roles and permissions for one user and compiles them
    into a [RuleSet]. Built fresh per request — a permission change takes
    effect on the very next request, and concurrent requests never share
    mutable state.
  - RuleSet: an immutable collection of (action, subject, conditions) rules.
  - Predicate: a tagged-variant policy tree (CanPerform/AllOf/AnyOf)
    evaluated by a pure function over the compiled rule set.

# Tenant Isolation

Every rule compiled from a non-system permission for a tenant user carries a
tenant-equality condition. Cross-tenant access is impossible by construction
of the rule set, not by ad hoc checks in handlers.
*/
package ability

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kantan-dev/kantan/internal/iam"
	"github.com/kantan-dev/kantan/internal/platform/constants"
	"github.com/kantan-dev/kantan/internal/platform/ctxutil"
)

// # Rule Vocabulary

const (
	// ActionManage is the wildcard action matching every action.
	ActionManage = "manage"

	// SubjectAll is the wildcard subject matching every resource type.
	SubjectAll = "all"

	// ConditionTenantID is the attribute key used for tenant-equality conditions.
	ConditionTenantID = "tenant_id"
)

// Placeholders resolvable inside permission condition values.
const (
	placeholderUserID   = "${user.id}"
	placeholderTenantID = "${user.tenant_id}"
)

// # Rules

// Rule is one compiled grant: the user may perform Action on Subject,
// restricted by Conditions (attribute equality).
type Rule struct {
	Action     string
	Subject    string
	Conditions map[string]any
}

// matches reports whether this rule grants action on subject for the given
// resource attributes.
//
// # Class vs Instance Checks
//
// A nil resource means "can the user act on this kind of subject at all" —
// conditions are not evaluated, mirroring how a list endpoint is guarded
// before any concrete row is known. A non-nil resource is an instance
// check: every condition must match an attribute of the resource.
func (rule Rule) matches(action, subject string, resource map[string]any) bool {
	if rule.Action != ActionManage && rule.Action != action {
		return false
	}
	if rule.Subject != SubjectAll && rule.Subject != subject {
		return false
	}
	if resource == nil {
		return true
	}

	for key, expected := range rule.Conditions {
		actual, present := resource[key]
		if !present || !conditionEquals(expected, actual) {
			return false
		}
	}

	return true
}

// conditionEquals compares a condition value with a resource attribute.
// Condition payloads are flat scalar maps decoded from JSON, so a
// normalized string comparison avoids float64-vs-int mismatches.
func conditionEquals(expected, actual any) bool {
	return fmt.Sprint(expected) == fmt.Sprint(actual)
}

// RuleSet is the compiled collection of rules for one authenticated user.
//
// # Concurrency
//
// A RuleSet is immutable after construction and safe for concurrent reads,
// though in practice each instance lives only for a single request.
type RuleSet struct {
	rules []Rule
}

// NewRuleSet constructs a RuleSet from pre-built rules. Primarily used by tests.
func NewRuleSet(rules ...Rule) RuleSet {
	return RuleSet{rules: rules}
}

// Rules returns the compiled rules. The returned slice must not be mutated.
func (set RuleSet) Rules() []Rule {
	return set.rules
}

// Can reports whether any rule grants action on subject for the given
// resource attributes (nil = class-level check, see [Rule.matches]).
//
// Rule order never affects the outcome: rules are independent grants and a
// single match suffices. Duplicate rules are harmless.
func (set RuleSet) Can(action, subject string, resource map[string]any) bool {
	for _, rule := range set.rules {
		if rule.matches(action, subject, resource) {
			return true
		}
	}
	return false
}

// # Builder

// Builder compiles rule sets from the credential store.
type Builder struct {
	roles       iam.RoleRepository
	permissions iam.PermissionRepository
}

// NewBuilder constructs a Builder over the role and permission repositories.
func NewBuilder(roles iam.RoleRepository, permissions iam.PermissionRepository) *Builder {
	return &Builder{roles: roles, permissions: permissions}
}

// Build compiles the rule set for the given user identity.
//
// # Flow
//
//  1. Resolve the user's roles. If any is the tenant-less
//     system-administrator role, return a single unconditional manage-all
//     rule and stop.
//  2. For each role, resolve its permissions; each permission becomes one
//     rule with the permission's action (lower-cased) and subject.
//  3. Parse the permission's condition JSON; malformed payloads are logged
//     and skipped, never fatal.
//  4. Inject a tenant-equality condition for non-system permissions when
//     the user belongs to a tenant.
//
// # Failure Semantics
//
// Lookup failures mid-build are logged and swallowed: the caller receives
// whatever rules were already accumulated. Partial failure can only narrow
// the granted surface, never widen it.
func (builder *Builder) Build(ctx context.Context, userID, tenantID string) RuleSet {
	logger := ctxutil.GetLogger(ctx)

	roles, err := builder.roles.ForUser(ctx, userID)
	if err != nil {
		logger.ErrorContext(ctx, "ability_role_resolution_failed",
			slog.String("user_id", userID),
			slog.Any("error", err),
		)
		return RuleSet{}
	}

	// ── 1. Administrator Short-Circuit ────────────────────────────────────
	// Only the tenant-less role qualifies: a tenant may own a local role
	// named "admin", but it compiles like any other role and stays scoped.

	for _, role := range roles {
		if role.Name == constants.SystemAdminRole && role.TenantID == "" {
			return NewRuleSet(Rule{Action: ActionManage, Subject: SubjectAll})
		}
	}

	// ── 2. Permission Compilation ─────────────────────────────────────────

	var rules []Rule
	for _, role := range roles {
		permissions, err := builder.permissions.ForRole(ctx, role.ID)
		if err != nil {
			// Fail closed: keep what we have, grant nothing extra.
			logger.ErrorContext(ctx, "ability_permission_resolution_failed",
				slog.String("user_id", userID),
				slog.String("role_id", role.ID),
				slog.Any("error", err),
			)
			continue
		}

		for _, permission := range permissions {
			rules = append(rules, builder.compile(ctx, permission, userID, tenantID))
		}
	}

	return RuleSet{rules: rules}
}

// compile turns one permission row into one rule.
func (builder *Builder) compile(ctx context.Context, permission iam.Permission, userID, tenantID string) Rule {
	rule := Rule{
		Action:     strings.ToLower(string(permission.Action)),
		Subject:    permission.Subject,
		Conditions: parseConditions(ctx, permission, userID, tenantID),
	}

	// ── 3. Tenant Scoping ─────────────────────────────────────────────────
	// Non-system permissions held by a tenant user are always narrowed to
	// that tenant, regardless of what the stored conditions say.
	if permission.ResourceType != iam.ResourceTypeSystem && tenantID != "" {
		if rule.Conditions == nil {
			rule.Conditions = make(map[string]any, 1)
		}
		rule.Conditions[ConditionTenantID] = tenantID
	}

	return rule
}

// parseConditions decodes a permission's serialized condition expression and
// resolves identity placeholders. Malformed payloads are logged and treated
// as "no extra constraint".
func parseConditions(ctx context.Context, permission iam.Permission, userID, tenantID string) map[string]any {
	raw := strings.TrimSpace(permission.Conditions)
	if raw == "" {
		return nil
	}

	var conditions map[string]any
	if err := json.Unmarshal([]byte(raw), &conditions); err != nil {
		ctxutil.GetLogger(ctx).WarnContext(ctx, "ability_condition_parse_failed",
			slog.String("permission_code", permission.Code),
			slog.Any("error", err),
		)
		return nil
	}

	for key, value := range conditions {
		switch value {
		case placeholderUserID:
			conditions[key] = userID
		case placeholderTenantID:
			conditions[key] = tenantID
		}
	}

	return conditions
}
