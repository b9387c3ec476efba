// Copyright (c) 2026 Kantan Labs. All rights reserved.

package audit

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/kantan-dev/kantan/internal/platform/respond"
	"github.com/kantan-dev/kantan/pkg/pagination"
)

// Handler implements the HTTP read surface for the audit trail.
//
// # Security
//
// Routes are mounted behind the policy middleware with a manage-level
// requirement: only administrators reach these handlers.
type Handler struct {
	recorder *Recorder
}

// NewHandler constructs a new audit [Handler].
func NewHandler(recorder *Recorder) *Handler {
	return &Handler{recorder: recorder}
}

// Routes returns a [chi.Router] with the audit trail endpoints.
//
// The require factory supplies the policy middleware; reading the trail
// demands the manage grant on AuditLog, which in practice means the
// administrator role.
func (handler *Handler) Routes(require func(action, subject string) func(http.Handler) http.Handler) chi.Router {
	router := chi.NewRouter()

	router.With(require("manage", "AuditLog")).Get("/", handler.list)

	return router
}

/*
GET /api/v1/audit-logs.

Description: Lists audit entries matching the query filters, newest first.

Request:
  - page, limit: int (query, optional)
  - user_id, tenant_id, action, resource, resource_id: string (query, optional)
  - from, to: RFC 3339 timestamps (query, optional)

Response:
  - 200: []Entry: Page of audit entries with pagination metadata
  - 401: ErrUnauthorized: Authentication required
  - 403: ErrForbidden: Caller is not an administrator
*/
func (handler *Handler) list(writer http.ResponseWriter, request *http.Request) {
	query := request.URL.Query()

	filter := Filter{
		UserID:     query.Get("user_id"),
		TenantID:   query.Get("tenant_id"),
		Action:     ActionKind(query.Get("action")),
		Resource:   query.Get("resource"),
		ResourceID: query.Get("resource_id"),
	}

	// Unparseable bounds are ignored rather than rejected: the trail is an
	// operator tool and a sloppy filter should degrade to a wider view.
	if raw := query.Get("from"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.From = parsed
		}
	}
	if raw := query.Get("to"); raw != "" {
		if parsed, err := time.Parse(time.RFC3339, raw); err == nil {
			filter.To = parsed
		}
	}

	params := pagination.FromRequest(request)
	entries, total, err := handler.recorder.Query(request.Context(), filter, params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Paginated(writer, entries, pagination.NewMeta(params.Page, params.Limit, total))
}
