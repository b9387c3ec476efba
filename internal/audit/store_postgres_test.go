// Copyright (c) 2026 Kantan Labs. All rights reserved.

package audit

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

/*
TestBuildFilter verifies WHERE clause assembly: zero-valued fields are
skipped and placeholders stay in argument order.
*/
func TestBuildFilter(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		where, arguments := buildFilter(Filter{})
		assert.Empty(t, where)
		assert.Empty(t, arguments)
	})

	t.Run("single_field", func(t *testing.T) {
		where, arguments := buildFilter(Filter{UserID: "alice"})
		assert.Equal(t, " WHERE userid = $1", where)
		assert.Equal(t, []any{"alice"}, arguments)
	})

	t.Run("all_fields", func(t *testing.T) {
		from := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
		to := from.AddDate(0, 1, 0)

		where, arguments := buildFilter(Filter{
			UserID:     "alice",
			TenantID:   "T1",
			Action:     ActionLogin,
			Resource:   "Session",
			ResourceID: "S1",
			From:       from,
			To:         to,
		})

		assert.Equal(t,
			" WHERE userid = $1 AND tenantid = $2 AND action = $3 AND resource = $4 AND resourceid = $5 AND createdat >= $6 AND createdat <= $7",
			where,
		)
		assert.Len(t, arguments, 7)
	})
}
