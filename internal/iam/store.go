// Copyright (c) 2026 Kantan Labs. All rights reserved.

package iam

import (
	"context"

	"github.com/kantan-dev/kantan/pkg/pagination"
)

// # User Data Access

// UserRepository defines the data access contract for user accounts.
type UserRepository interface {

	/*
		FindByID returns the account with the given ID.

		Parameters:
		  - context: context.Context
		  - id: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByID(context context.Context, id string) (*User, error)

	/*
		FindByUsername returns the account with the given username.

		Parameters:
		  - context: context.Context
		  - username: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByUsername(context context.Context, username string) (*User, error)

	/*
		FindByEmail returns the account with the given email.

		Parameters:
		  - context: context.Context
		  - email: string

		Returns:
		  - *User: Hydrated entity
		  - error: Database retrieval failures
	*/
	FindByEmail(context context.Context, email string) (*User, error)

	/*
		Create persists a brand-new user account to the storage.

		Parameters:
		  - context: context.Context
		  - user: *User

		Returns:
		  - error: Persistence failures
	*/
	Create(context context.Context, user *User) error

	/*
		TouchLastLogin updates only the account's last-login timestamp.

		Description: Best-effort bookkeeping; callers fire it asynchronously
		and must never let a failure here affect the login response.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - error: Persistence failures
	*/
	TouchLastLogin(context context.Context, userID string) error

	/*
		List returns accounts visible within the tenant filter, newest first.

		Parameters:
		  - context: context.Context
		  - tenantID: string (empty = no tenant filter)
		  - params: pagination.Params

		Returns:
		  - []User: Page of accounts
		  - int: Total matching count
		  - error: Retrieval failures
	*/
	List(context context.Context, tenantID string, params pagination.Params) ([]User, int, error)
}

// # Role Data Access

// RoleRepository defines the data access contract for roles and assignments.
type RoleRepository interface {

	/*
		ForUser returns every role assigned to the given account.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []Role: Assigned roles (possibly empty)
		  - error: Retrieval failures
	*/
	ForUser(context context.Context, userID string) ([]Role, error)

	/*
		List returns roles visible within the tenant filter.

		Parameters:
		  - context: context.Context
		  - tenantID: string (empty = no tenant filter)
		  - params: pagination.Params

		Returns:
		  - []Role: Page of roles
		  - int: Total matching count
		  - error: Retrieval failures
	*/
	List(context context.Context, tenantID string, params pagination.Params) ([]Role, int, error)
}

// # Permission Data Access

// PermissionRepository defines the data access contract for permissions.
type PermissionRepository interface {

	/*
		ForRole returns every permission attached to the given role.

		Parameters:
		  - context: context.Context
		  - roleID: string

		Returns:
		  - []Permission: Attached permissions (possibly empty)
		  - error: Retrieval failures
	*/
	ForRole(context context.Context, roleID string) ([]Permission, error)

	/*
		CodesForUser returns the distinct union of permission codes across
		all of the user's roles.

		Description: Used to embed the grant surface into access-token claims.

		Parameters:
		  - context: context.Context
		  - userID: string

		Returns:
		  - []string: Sorted unique permission codes
		  - error: Retrieval failures
	*/
	CodesForUser(context context.Context, userID string) ([]string, error)

	/*
		List returns permissions visible within the tenant filter.

		Parameters:
		  - context: context.Context
		  - tenantID: string (empty = no tenant filter)
		  - params: pagination.Params

		Returns:
		  - []Permission: Page of permissions
		  - int: Total matching count
		  - error: Retrieval failures
	*/
	List(context context.Context, tenantID string, params pagination.Params) ([]Permission, int, error)
}
