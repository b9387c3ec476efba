// Copyright (c) 2026 Kantan Labs. All rights reserved.

package audit

import (
	"context"

	"github.com/kantan-dev/kantan/pkg/pagination"
)

// # Audit Data Access

// Store defines the persistence contract for the audit trail.
type Store interface {

	/*
		Insert appends one entry to the trail.

		Parameters:
		  - context: context.Context
		  - entry: *Entry (fully populated, ID and CreatedAt included)

		Returns:
		  - error: Persistence failures
	*/
	Insert(context context.Context, entry *Entry) error

	/*
		List returns entries matching the filter, newest first.

		Parameters:
		  - context: context.Context
		  - filter: Filter (zero-valued fields are ignored)
		  - params: pagination.Params

		Returns:
		  - []Entry: Page of entries
		  - int: Total matching count
		  - error: Retrieval failures
	*/
	List(context context.Context, filter Filter, params pagination.Params) ([]Entry, int, error)
}
