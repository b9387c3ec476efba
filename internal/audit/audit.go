// Copyright (c) 2026 Kantan Labs. All rights reserved.

/*
Package audit records and queries the security event trail.

# Overview

Every consequential action in the system — authentication events and
authorization decisions alike — produces one audit entry. Recording is
best-effort: a write failure is logged and swallowed so the audit trail
never takes the primary request path down with it.
*/
package audit

import "time"

// # Action Vocabulary

// ActionKind classifies what an audit entry records.
type ActionKind string

const (
	ActionCreate  ActionKind = "create"
	ActionRead    ActionKind = "read"
	ActionUpdate  ActionKind = "update"
	ActionDelete  ActionKind = "delete"
	ActionLogin   ActionKind = "login"
	ActionLogout  ActionKind = "logout"
	ActionExport  ActionKind = "export"
	ActionImport  ActionKind = "import"
	ActionPublish ActionKind = "publish"
	ActionCustom  ActionKind = "custom"
)

// Kind maps a free-form action name onto the vocabulary above. Names
// outside it are recorded as [ActionCustom]; callers keep the literal
// name in the entry's description.
func Kind(action string) ActionKind {
	switch kind := ActionKind(action); kind {
	case ActionCreate, ActionRead, ActionUpdate, ActionDelete, ActionLogin,
		ActionLogout, ActionExport, ActionImport, ActionPublish, ActionCustom:
		return kind
	default:
		return ActionCustom
	}
}

// # Entities

// Entry is one immutable record in the audit trail.
type Entry struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	TenantID    string     `json:"tenant_id,omitempty"`
	Action      ActionKind `json:"action"`
	Resource    string     `json:"resource"`
	ResourceID  string     `json:"resource_id,omitempty"`
	Description string     `json:"description,omitempty"`
	BeforeValue string     `json:"before_value,omitempty"`
	AfterValue  string     `json:"after_value,omitempty"`
	IPAddress   string     `json:"ip_address,omitempty"`
	UserAgent   string     `json:"user_agent,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
}

// Filter narrows an audit trail query. Zero-valued fields are ignored.
type Filter struct {
	UserID     string
	TenantID   string
	Action     ActionKind
	Resource   string
	ResourceID string
	From       time.Time
	To         time.Time
}
