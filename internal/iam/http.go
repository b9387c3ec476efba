// Copyright (c) 2026 Kantan Labs. All rights reserved.

package iam

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/kantan-dev/kantan/internal/platform/constants"
	requestutil "github.com/kantan-dev/kantan/internal/platform/request"
	"github.com/kantan-dev/kantan/internal/platform/respond"
	"github.com/kantan-dev/kantan/pkg/pagination"
)

// Handler implements the HTTP read surface for the credential directory:
// accounts, roles and permissions.
//
// # Security
//
// The handler performs no authorization itself. Every route is mounted
// behind the authentication and policy middleware, which guarantees an
// identity in the request context and a granted read policy before any
// handler below runs.
type Handler struct {
	users       UserRepository
	roles       RoleRepository
	permissions PermissionRepository
}

// NewHandler constructs a new directory [Handler].
func NewHandler(users UserRepository, roles RoleRepository, permissions PermissionRepository) *Handler {
	return &Handler{users: users, roles: roles, permissions: permissions}
}

// Routes returns a [chi.Router] with the directory's list endpoints.
//
// The require factory supplies the policy middleware for each route; the
// handler stays decoupled from the guard implementation.
func (handler *Handler) Routes(require func(action, subject string) func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()

	router.With(require("read", "User")).Get("/users", handler.listUsers)
	router.With(require("read", "Role")).Get("/roles", handler.listRoles)
	router.With(require("read", "Permission")).Get("/permissions", handler.listPermissions)

	return router
}

/*
tenantFilter resolves the tenant scope for a list query.

Description: Tenant users are always pinned to their own tenant; the
tenant_id query parameter is honored only for system administrators, who
may also omit it to list across all tenants. Holding a role named "admin"
inside a tenant does not qualify: the override requires a tenant-less
identity.
*/
func tenantFilter(request *http.Request) (string, error) {
	claims, err := requestutil.RequiredClaims(request)
	if err != nil {
		return "", err
	}

	if claims.TenantID == "" {
		for _, role := range claims.Roles {
			if role == constants.SystemAdminRole {
				return request.URL.Query().Get("tenant_id"), nil
			}
		}
	}

	return claims.TenantID, nil
}

// # Directory Endpoints

/*
GET /api/v1/users.

Description: Lists accounts within the caller's tenant scope, newest first.

Request:
  - page, limit: int (query, optional)
  - tenant_id: string (query, administrators only)

Response:
  - 200: []User: Page of accounts with pagination metadata
  - 401: ErrUnauthorized: Authentication required
  - 403: ErrForbidden: Caller lacks the read grant
*/
func (handler *Handler) listUsers(writer http.ResponseWriter, request *http.Request) {
	tenantID, err := tenantFilter(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)
	users, total, err := handler.users.List(request.Context(), tenantID, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, users, pagination.NewMeta(params.Page, params.Limit, total))
}

/*
GET /api/v1/roles.

Description: Lists roles within the caller's tenant scope.

Request:
  - page, limit: int (query, optional)
  - tenant_id: string (query, administrators only)

Response:
  - 200: []Role: Page of roles with pagination metadata
  - 401: ErrUnauthorized: Authentication required
  - 403: ErrForbidden: Caller lacks the read grant
*/
func (handler *Handler) listRoles(writer http.ResponseWriter, request *http.Request) {
	tenantID, err := tenantFilter(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)
	roles, total, err := handler.roles.List(request.Context(), tenantID, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, roles, pagination.NewMeta(params.Page, params.Limit, total))
}

/*
GET /api/v1/permissions.

Description: Lists permission definitions within the caller's tenant scope.

Request:
  - page, limit: int (query, optional)
  - tenant_id: string (query, administrators only)

Response:
  - 200: []Permission: Page of permissions with pagination metadata
  - 401: ErrUnauthorized: Authentication required
  - 403: ErrForbidden: Caller lacks the read grant
*/
func (handler *Handler) listPermissions(writer http.ResponseWriter, request *http.Request) {
	tenantID, err := tenantFilter(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := pagination.FromRequest(request)
	permissions, total, err := handler.permissions.List(request.Context(), tenantID, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, permissions, pagination.NewMeta(params.Page, params.Limit, total))
}
