// Copyright (c) 2026 Kantan Labs. All rights reserved.

package audit

import (
	"context"
	"log/slog"
	"time"

	"github.com/kantan-dev/kantan/internal/platform/ctxutil"
	"github.com/kantan-dev/kantan/pkg/pagination"
	"github.com/kantan-dev/kantan/pkg/uuidv7"
)

// Recorder is the write/read facade over the audit trail.
type Recorder struct {
	store Store
}

// NewRecorder constructs a Recorder over the given store.
func NewRecorder(store Store) *Recorder {
	return &Recorder{store: store}
}

/*
Record appends one entry to the trail, best-effort.

Description: Fills in the entry's ID and timestamp when absent. A storage
failure is logged with full context and swallowed: auditing must never fail
the request that produced the event.

Parameters:
  - context: context.Context
  - entry: Entry (ID and CreatedAt optional)
*/
func (recorder *Recorder) Record(context context.Context, entry Entry) {
	if entry.ID == "" {
		entry.ID = uuidv7.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now()
	}

	if err := recorder.store.Insert(context, &entry); err != nil {
		ctxutil.GetLogger(context).ErrorContext(context, "audit_record_failed",
			slog.String("user_id", entry.UserID),
			slog.String("action", string(entry.Action)),
			slog.String("resource", entry.Resource),
			slog.Any("error", err),
		)
	}
}

/*
Query returns audit entries matching the filter, newest first.

Parameters:
  - context: context.Context
  - filter: Filter
  - params: pagination.Params

Returns:
  - []Entry: Page of entries
  - int: Total matching count
  - error: Retrieval failures
*/
func (recorder *Recorder) Query(context context.Context, filter Filter, params pagination.Params) ([]Entry, int, error) {
	return recorder.store.List(context, filter, params)
}
