// Copyright (c) 2026 Kantan Labs. All rights reserved.

package audit

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kantan-dev/kantan/pkg/pagination"
)

// fakeStore captures inserted entries and optionally fails.
type fakeStore struct {
	inserted  []Entry
	insertErr error
	listed    []Entry
	listTotal int
}

func (f *fakeStore) Insert(_ context.Context, entry *Entry) error {
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, *entry)
	return nil
}

func (f *fakeStore) List(_ context.Context, _ Filter, _ pagination.Params) ([]Entry, int, error) {
	return f.listed, f.listTotal, nil
}

/*
TestRecord_FillsIdentityAndTimestamp verifies that Record assigns an ID and
timestamp when the caller leaves them empty.
*/
func TestRecord_FillsIdentityAndTimestamp(t *testing.T) {
	store := &fakeStore{}
	recorder := NewRecorder(store)

	recorder.Record(context.Background(), Entry{
		UserID:   "alice",
		Action:   ActionLogin,
		Resource: "Session",
	})

	require.Len(t, store.inserted, 1)
	assert.NotEmpty(t, store.inserted[0].ID)
	assert.False(t, store.inserted[0].CreatedAt.IsZero())
	assert.Equal(t, ActionLogin, store.inserted[0].Action)
}

/*
TestRecord_SwallowsStoreFailure verifies that a failing store never
propagates: recording is best-effort by contract.
*/
func TestRecord_SwallowsStoreFailure(t *testing.T) {
	store := &fakeStore{insertErr: errors.New("connection refused")}
	recorder := NewRecorder(store)

	assert.NotPanics(t, func() {
		recorder.Record(context.Background(), Entry{UserID: "alice", Action: ActionLogin, Resource: "Session"})
	})
	assert.Empty(t, store.inserted)
}

/*
TestQuery_PassesThrough verifies that Query delegates filter and pagination
to the store unchanged.
*/
func TestQuery_PassesThrough(t *testing.T) {
	store := &fakeStore{
		listed:    []Entry{{ID: "e1"}, {ID: "e2"}},
		listTotal: 7,
	}
	recorder := NewRecorder(store)

	entries, total, err := recorder.Query(context.Background(), Filter{UserID: "alice"}, pagination.Params{Page: 1, Limit: 2})

	require.NoError(t, err)
	assert.Len(t, entries, 2)
	assert.Equal(t, 7, total)
}

/*
TestKind verifies the action vocabulary mapping: known names pass through,
anything else degrades to custom.
*/
func TestKind(t *testing.T) {
	tests := []struct {
		action   string
		expected ActionKind
	}{
		{"read", ActionRead},
		{"delete", ActionDelete},
		{"login", ActionLogin},
		{"custom", ActionCustom},
		{"manage", ActionCustom},
		{"frobnicate", ActionCustom},
		{"", ActionCustom},
	}

	for _, tt := range tests {
		t.Run("action_"+tt.action, func(t *testing.T) {
			assert.Equal(t, tt.expected, Kind(tt.action))
		})
	}
}
