// Copyright (c) 2026 Kantan Labs. All rights reserved.

// Package iam defines the identity and access-management entities of the
// Kantan platform.
//
// # Architecture
//
// Entities in this package represent the "Truth" of the system.
// They have no dependencies on outer layers (like databases, APIs, or libraries).
// This makes the core logic highly testable and resilient to technology changes.
package iam

import (
	"time"
)

// # User

// UserStatus represents the lifecycle state of an account.
type UserStatus string

const (
	UserStatusActive    UserStatus = "active"    // Normal account, may authenticate.
	UserStatusInactive  UserStatus = "inactive"  // Disabled by an administrator.
	UserStatusSuspended UserStatus = "suspended" // Locked pending review.
)

// CanAuthenticate reports whether an account in this state may log in or
// refresh a session.
func (s UserStatus) CanAuthenticate() bool {
	return s == UserStatusActive
}

// User represents a registered member of a tenant (or a platform-level
// account when TenantID is empty).
//
// # Rules
//   - Username and Email are unique platform-wide.
//   - PasswordHash is generated via Bcrypt exclusively by the auth service.
//   - Users are never hard-deleted here; deletion cascades via the store.
type User struct {
	ID           string     `json:"id"`
	Username     string     `json:"username"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"` // Explicitly omitted from JSON for security.
	Status       UserStatus `json:"status"`
	TenantID     string     `json:"tenant_id,omitempty"`
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
}

// # Role

// Role is a named grant bundle. Users hold roles (many-to-many); roles hold
// permissions (many-to-many).
type Role struct {
	ID          string    `json:"id"`
	Name        string    `json:"name"`
	Description string    `json:"description,omitempty"`
	TenantID    string    `json:"tenant_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// # Permission

// ResourceType classifies what kind of resource a permission targets.
//
// # Tenant Scoping
//
// Non-system permissions held by a tenant user are automatically narrowed
// to that user's tenant during rule compilation. System permissions are
// exempt: they target platform-level resources that have no tenant.
type ResourceType string

const (
	ResourceTypeSystem ResourceType = "system" // Reserved: platform-level resources.
	ResourceTypeTenant ResourceType = "tenant" // Ordinary tenant-owned resources.
)

// ActionType is the verb a permission grants on its subject.
type ActionType string

const (
	ActionCreate ActionType = "create"
	ActionRead   ActionType = "read"
	ActionUpdate ActionType = "update"
	ActionDelete ActionType = "delete"
	ActionManage ActionType = "manage" // Wildcard: every action on the subject.
)

// Permission represents a specific action allowed on a resource type.
//
// # Conditions
//
// The Conditions field holds an optional serialized JSON object of attribute
// constraints (e.g. {"created_by": "${user.id}"}). Malformed payloads are
// tolerated at compile time: the permission still grants its action, just
// without the extra constraint.
type Permission struct {
	ID           string       `json:"id"`
	Name         string       `json:"name"`
	Code         string       `json:"code"` // Unique action identifier, e.g. "document:update".
	Description  string       `json:"description,omitempty"`
	Subject      string       `json:"subject"` // Resource pattern the permission applies to.
	ResourceType ResourceType `json:"resource_type"`
	Action       ActionType   `json:"action"`
	Conditions   string       `json:"conditions,omitempty"`
	TenantID     string       `json:"tenant_id,omitempty"`
	CreatedAt    time.Time    `json:"created_at"`
}

// # Tenant

// TenantStatus represents the lifecycle state of a tenant organization.
type TenantStatus string

const (
	TenantStatusActive   TenantStatus = "active"
	TenantStatusDisabled TenantStatus = "disabled"
)

// Tenant is the isolation boundary grouping users, roles, permissions, and
// resources belonging to one customer organization.
type Tenant struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Status    TenantStatus `json:"status"`
	CreatedAt time.Time    `json:"created_at"`
}
