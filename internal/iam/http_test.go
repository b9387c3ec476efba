// Copyright (c) 2026 Kantan Labs. All rights reserved.

package iam

import (
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kantan-dev/kantan/internal/platform/ctxutil"
	"github.com/kantan-dev/kantan/internal/platform/sec"
)

/*
TestTenantFilter verifies the tenant scoping rules for list queries:
tenant users are pinned to their own tenant, administrators may widen or
narrow the scope via the tenant_id parameter.
*/
func TestTenantFilter(t *testing.T) {
	tests := []struct {
		name     string
		claims   *sec.AccessClaims
		query    string
		expected string
		wantErr  bool
	}{
		{
			name:     "tenant_user_pinned",
			claims:   &sec.AccessClaims{UserID: "alice", TenantID: "T1", Roles: []string{"editor"}},
			query:    "?tenant_id=T2", // Ignored for non-admins.
			expected: "T1",
		},
		{
			name:     "tenant_scoped_admin_pinned",
			claims:   &sec.AccessClaims{UserID: "mallory", TenantID: "T1", Roles: []string{"admin"}},
			query:    "?tenant_id=T2", // A tenant-local "admin" gets no override.
			expected: "T1",
		},
		{
			name:     "admin_unscoped_by_default",
			claims:   &sec.AccessClaims{UserID: "root", Roles: []string{"admin"}},
			expected: "",
		},
		{
			name:     "admin_narrows_explicitly",
			claims:   &sec.AccessClaims{UserID: "root", Roles: []string{"admin"}},
			query:    "?tenant_id=T2",
			expected: "T2",
		},
		{
			name:    "unauthenticated",
			claims:  nil,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			request := httptest.NewRequest("GET", "/users"+tt.query, nil)
			if tt.claims != nil {
				request = request.WithContext(ctxutil.WithAuthUser(request.Context(), tt.claims))
			}

			tenantID, err := tenantFilter(request)
			if tt.wantErr {
				require.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, tenantID)
		})
	}
}
