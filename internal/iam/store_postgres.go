// Copyright (c) 2026 Kantan Labs. All rights reserved.

// PostgreSQL implementations of the iam repositories.
//
// # Error Mapping
//
// Storage-specific errors (like pgx.ErrNoRows) are mapped to domain-friendly
// [apperr.AppError] types to avoid leaking storage implementation details.
package iam

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kantan-dev/kantan/internal/platform/dberr"
	"github.com/kantan-dev/kantan/pkg/pagination"
)

// userColumns is the canonical SELECT list for iam.account.
const userColumns = `id, username, email, passwordhash, status, COALESCE(tenantid, ''), lastloginat, createdat, updatedat`

// # User Repository

// PostgresUserRepository implements the UserRepository interface using pgx.
type PostgresUserRepository struct {
	pool *pgxpool.Pool
}

// NewUserRepository creates a new PostgreSQL implementation of the UserRepository.
func NewUserRepository(pool *pgxpool.Pool) *PostgresUserRepository {
	return &PostgresUserRepository{pool: pool}
}

/*
Create persists a new user record into the iam.account table.

Parameters:
  - context: context.Context
  - user: *User (Entity to persist)

Returns:
  - error: apperr.Conflict on duplicate username/email, or connectivity errors
*/
func (repository *PostgresUserRepository) Create(context context.Context, user *User) error {
	const query = `
		INSERT INTO iam.account (
			id, username, email, passwordhash, status, tenantid, createdat, updatedat
		) VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7, $8)`

	now := time.Now()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	_, err := repository.pool.Exec(context, query,
		user.ID,
		user.Username,
		user.Email,
		user.PasswordHash,
		user.Status,
		user.TenantID,
		user.CreatedAt,
		user.UpdatedAt,
	)

	return dberr.Wrap(err, "create_account")
}

/*
FindByID retrieves a user record by their unique ID.

Parameters:
  - context: context.Context
  - id: string (UUIDv7)

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByID(context context.Context, id string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM iam.account WHERE id = $1`
	return repository.findOne(context, query, id)
}

/*
FindByUsername retrieves a user record by their unique username.

Parameters:
  - context: context.Context
  - username: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByUsername(context context.Context, username string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM iam.account WHERE username = $1`
	return repository.findOne(context, query, username)
}

/*
FindByEmail retrieves a user record by their unique email address.

Parameters:
  - context: context.Context
  - email: string

Returns:
  - *User: Hydrated account entity
  - error: apperr.NotFound or database errors
*/
func (repository *PostgresUserRepository) FindByEmail(context context.Context, email string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM iam.account WHERE email = $1`
	return repository.findOne(context, query, email)
}

// findOne executes a single-row account query and hydrates the entity.
func (repository *PostgresUserRepository) findOne(context context.Context, query string, argument any) (*User, error) {
	user := &User{}
	err := repository.pool.QueryRow(context, query, argument).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.Status,
		&user.TenantID,
		&user.LastLoginAt,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	if err != nil {
		return nil, dberr.Wrap(err, "find_account")
	}

	return user, nil
}

/*
TouchLastLogin stamps the account's last successful authentication time.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - error: Persistence failures
*/
func (repository *PostgresUserRepository) TouchLastLogin(context context.Context, userID string) error {
	const query = `UPDATE iam.account SET lastloginat = $2 WHERE id = $1`

	_, err := repository.pool.Exec(context, query, userID, time.Now())
	return dberr.Wrap(err, "touch_last_login")
}

/*
List returns a page of accounts, optionally filtered by tenant, newest first.

Parameters:
  - context: context.Context
  - tenantID: string (empty = all tenants)
  - params: pagination.Params

Returns:
  - []User: Page of accounts
  - int: Total matching count
  - error: Retrieval failures
*/
func (repository *PostgresUserRepository) List(context context.Context, tenantID string, params pagination.Params) ([]User, int, error) {
	const query = `
		SELECT ` + userColumns + `
		FROM iam.account
		WHERE ($1 = '' OR tenantid = $1)
		ORDER BY createdat DESC
		LIMIT $2 OFFSET $3`

	rows, err := repository.pool.Query(context, query, tenantID, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, dberr.Wrap(err, "list_accounts")
	}
	defer rows.Close()

	users := make([]User, 0, params.Limit)
	for rows.Next() {
		var user User
		if err := rows.Scan(
			&user.ID,
			&user.Username,
			&user.Email,
			&user.PasswordHash,
			&user.Status,
			&user.TenantID,
			&user.LastLoginAt,
			&user.CreatedAt,
			&user.UpdatedAt,
		); err != nil {
			return nil, 0, dberr.Wrap(err, "scan_account")
		}
		users = append(users, user)
	}

	const countQuery = `SELECT COUNT(*) FROM iam.account WHERE ($1 = '' OR tenantid = $1)`

	var total int
	if err := repository.pool.QueryRow(context, countQuery, tenantID).Scan(&total); err != nil {
		return nil, 0, dberr.Wrap(err, "count_accounts")
	}

	return users, total, nil
}

// # Role Repository

// PostgresRoleRepository implements the RoleRepository interface using pgx.
type PostgresRoleRepository struct {
	pool *pgxpool.Pool
}

// NewRoleRepository creates a new PostgreSQL implementation of the RoleRepository.
func NewRoleRepository(pool *pgxpool.Pool) *PostgresRoleRepository {
	return &PostgresRoleRepository{pool: pool}
}

/*
ForUser returns every role assigned to the given account via iam.account_role.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []Role: Assigned roles
  - error: Retrieval failures
*/
func (repository *PostgresRoleRepository) ForUser(context context.Context, userID string) ([]Role, error) {
	const query = `
		SELECT r.id, r.name, COALESCE(r.description, ''), COALESCE(r.tenantid, ''), r.createdat
		FROM iam.role r
		INNER JOIN iam.account_role ar ON ar.roleid = r.id
		WHERE ar.accountid = $1
		ORDER BY r.name`

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_role_repo_for_user_failed: %w", err)
	}
	defer rows.Close()

	var roles []Role
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.TenantID, &role.CreatedAt); err != nil {
			return nil, fmt.Errorf("postgres_role_repo_for_user_scan_failed: %w", err)
		}
		roles = append(roles, role)
	}

	return roles, nil
}

/*
List returns a page of roles, optionally filtered by tenant.

Parameters:
  - context: context.Context
  - tenantID: string (empty = all tenants)
  - params: pagination.Params

Returns:
  - []Role: Page of roles
  - int: Total matching count
  - error: Retrieval failures
*/
func (repository *PostgresRoleRepository) List(context context.Context, tenantID string, params pagination.Params) ([]Role, int, error) {
	const query = `
		SELECT id, name, COALESCE(description, ''), COALESCE(tenantid, ''), createdat
		FROM iam.role
		WHERE ($1 = '' OR tenantid = $1)
		ORDER BY name
		LIMIT $2 OFFSET $3`

	rows, err := repository.pool.Query(context, query, tenantID, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_role_repo_list_failed: %w", err)
	}
	defer rows.Close()

	roles := make([]Role, 0, params.Limit)
	for rows.Next() {
		var role Role
		if err := rows.Scan(&role.ID, &role.Name, &role.Description, &role.TenantID, &role.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("postgres_role_repo_list_scan_failed: %w", err)
		}
		roles = append(roles, role)
	}

	const countQuery = `SELECT COUNT(*) FROM iam.role WHERE ($1 = '' OR tenantid = $1)`

	var total int
	if err := repository.pool.QueryRow(context, countQuery, tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_role_repo_count_failed: %w", err)
	}

	return roles, total, nil
}

// # Permission Repository

// permissionColumns is the canonical SELECT list for iam.permission.
const permissionColumns = `id, name, code, COALESCE(description, ''), subject, resourcetype, action, COALESCE(conditions, ''), COALESCE(tenantid, ''), createdat`

// PostgresPermissionRepository implements the PermissionRepository interface using pgx.
type PostgresPermissionRepository struct {
	pool *pgxpool.Pool
}

// NewPermissionRepository creates a new PostgreSQL implementation of the PermissionRepository.
func NewPermissionRepository(pool *pgxpool.Pool) *PostgresPermissionRepository {
	return &PostgresPermissionRepository{pool: pool}
}

/*
ForRole returns every permission attached to the given role via iam.role_permission.

Parameters:
  - context: context.Context
  - roleID: string

Returns:
  - []Permission: Attached permissions
  - error: Retrieval failures
*/
func (repository *PostgresPermissionRepository) ForRole(context context.Context, roleID string) ([]Permission, error) {
	const query = `
		SELECT p.id, p.name, p.code, COALESCE(p.description, ''), p.subject, p.resourcetype,
		       p.action, COALESCE(p.conditions, ''), COALESCE(p.tenantid, ''), p.createdat
		FROM iam.permission p
		INNER JOIN iam.role_permission rp ON rp.permissionid = p.id
		WHERE rp.roleid = $1
		ORDER BY p.code`

	rows, err := repository.pool.Query(context, query, roleID)
	if err != nil {
		return nil, fmt.Errorf("postgres_permission_repo_for_role_failed: %w", err)
	}
	defer rows.Close()

	return scanPermissions(rows)
}

/*
CodesForUser returns the distinct union of permission codes across all of the
user's roles, sorted for stable token claims.

Parameters:
  - context: context.Context
  - userID: string

Returns:
  - []string: Unique permission codes
  - error: Retrieval failures
*/
func (repository *PostgresPermissionRepository) CodesForUser(context context.Context, userID string) ([]string, error) {
	const query = `
		SELECT DISTINCT p.code
		FROM iam.permission p
		INNER JOIN iam.role_permission rp ON rp.permissionid = p.id
		INNER JOIN iam.account_role ar ON ar.roleid = rp.roleid
		WHERE ar.accountid = $1
		ORDER BY p.code`

	rows, err := repository.pool.Query(context, query, userID)
	if err != nil {
		return nil, fmt.Errorf("postgres_permission_repo_codes_failed: %w", err)
	}
	defer rows.Close()

	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			return nil, fmt.Errorf("postgres_permission_repo_codes_scan_failed: %w", err)
		}
		codes = append(codes, code)
	}

	return codes, nil
}

/*
List returns a page of permissions, optionally filtered by tenant.

Parameters:
  - context: context.Context
  - tenantID: string (empty = all tenants)
  - params: pagination.Params

Returns:
  - []Permission: Page of permissions
  - int: Total matching count
  - error: Retrieval failures
*/
func (repository *PostgresPermissionRepository) List(context context.Context, tenantID string, params pagination.Params) ([]Permission, int, error) {
	const query = `
		SELECT ` + permissionColumns + `
		FROM iam.permission
		WHERE ($1 = '' OR tenantid = $1)
		ORDER BY code
		LIMIT $2 OFFSET $3`

	rows, err := repository.pool.Query(context, query, tenantID, params.Limit, params.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_permission_repo_list_failed: %w", err)
	}
	defer rows.Close()

	permissions, err := scanPermissions(rows)
	if err != nil {
		return nil, 0, err
	}

	const countQuery = `SELECT COUNT(*) FROM iam.permission WHERE ($1 = '' OR tenantid = $1)`

	var total int
	if err := repository.pool.QueryRow(context, countQuery, tenantID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_permission_repo_count_failed: %w", err)
	}

	return permissions, total, nil
}

// scanPermissions hydrates permission rows from the canonical column order.
func scanPermissions(rows pgx.Rows) ([]Permission, error) {
	var permissions []Permission
	for rows.Next() {
		var permission Permission
		if err := rows.Scan(
			&permission.ID,
			&permission.Name,
			&permission.Code,
			&permission.Description,
			&permission.Subject,
			&permission.ResourceType,
			&permission.Action,
			&permission.Conditions,
			&permission.TenantID,
			&permission.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres_permission_repo_scan_failed: %w", err)
		}
		permissions = append(permissions, permission)
	}

	return permissions, nil
}
