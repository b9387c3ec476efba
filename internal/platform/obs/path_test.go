// Copyright (c) 2026 Kantan Labs. All rights reserved.

package obs_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/kantan-dev/kantan/internal/platform/obs"
)

/*
TestCanonicalPath verifies that identifier segments collapse into ":id"
while static segments are preserved.
*/
func TestCanonicalPath(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{"empty", "", "/"},
		{"root", "/", "/"},
		{"static", "/metrics", "/metrics"},
		{"uuid_segment", "/api/v1/users/0190b2f0-1234-7abc-8def-0123456789ab", "/api/v1/users/:id"},
		{"numeric_segment", "/api/v1/roles/42", "/api/v1/roles/:id"},
		{"mixed", "/api/v1/audit-logs", "/api/v1/audit-logs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, obs.CanonicalPath(tt.input))
		})
	}
}
