// Copyright (c) 2026 Kantan Labs. All rights reserved.

// PostgreSQL implementation of the audit store.
package audit

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/kantan-dev/kantan/pkg/pagination"
)

// entryColumns is the canonical SELECT list for audit.entry.
const entryColumns = `id, userid, COALESCE(tenantid, ''), action, resource, COALESCE(resourceid, ''),
	COALESCE(description, ''), COALESCE(beforevalue, ''), COALESCE(aftervalue, ''),
	COALESCE(ipaddress, ''), COALESCE(useragent, ''), createdat`

// PostgresStore implements the Store interface using pgx.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL implementation of the audit Store.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

/*
Insert appends one entry to the audit.entry table.

Parameters:
  - context: context.Context
  - entry: *Entry

Returns:
  - error: Persistence failures
*/
func (store *PostgresStore) Insert(context context.Context, entry *Entry) error {
	const query = `
		INSERT INTO audit.entry (
			id, userid, tenantid, action, resource, resourceid,
			description, beforevalue, aftervalue, ipaddress, useragent, createdat
		) VALUES ($1, $2, NULLIF($3, ''), $4, $5, NULLIF($6, ''),
			NULLIF($7, ''), NULLIF($8, ''), NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), $12)`

	_, err := store.pool.Exec(context, query,
		entry.ID,
		entry.UserID,
		entry.TenantID,
		entry.Action,
		entry.Resource,
		entry.ResourceID,
		entry.Description,
		entry.BeforeValue,
		entry.AfterValue,
		entry.IPAddress,
		entry.UserAgent,
		entry.CreatedAt,
	)

	if err != nil {
		return fmt.Errorf("postgres_audit_store_insert_failed: %w", err)
	}

	return nil
}

/*
List returns audit entries matching the filter, newest first.

Parameters:
  - context: context.Context
  - filter: Filter
  - params: pagination.Params

Returns:
  - []Entry: Page of entries
  - int: Total matching count
  - error: Retrieval failures
*/
func (store *PostgresStore) List(context context.Context, filter Filter, params pagination.Params) ([]Entry, int, error) {
	where, arguments := buildFilter(filter)

	query := `SELECT ` + entryColumns + ` FROM audit.entry` + where +
		` ORDER BY createdat DESC LIMIT $` + strconv.Itoa(len(arguments)+1) +
		` OFFSET $` + strconv.Itoa(len(arguments)+2)

	rows, err := store.pool.Query(context, query, append(arguments, params.Limit, params.Offset())...)
	if err != nil {
		return nil, 0, fmt.Errorf("postgres_audit_store_list_failed: %w", err)
	}
	defer rows.Close()

	entries := make([]Entry, 0, params.Limit)
	for rows.Next() {
		var entry Entry
		if err := rows.Scan(
			&entry.ID,
			&entry.UserID,
			&entry.TenantID,
			&entry.Action,
			&entry.Resource,
			&entry.ResourceID,
			&entry.Description,
			&entry.BeforeValue,
			&entry.AfterValue,
			&entry.IPAddress,
			&entry.UserAgent,
			&entry.CreatedAt,
		); err != nil {
			return nil, 0, fmt.Errorf("postgres_audit_store_list_scan_failed: %w", err)
		}
		entries = append(entries, entry)
	}

	countQuery := `SELECT COUNT(*) FROM audit.entry` + where

	var total int
	if err := store.pool.QueryRow(context, countQuery, arguments...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("postgres_audit_store_count_failed: %w", err)
	}

	return entries, total, nil
}

// buildFilter translates a Filter into a WHERE clause and its arguments.
func buildFilter(filter Filter) (string, []any) {
	var clauses []string
	var arguments []any

	appendClause := func(condition string, value any) {
		arguments = append(arguments, value)
		clauses = append(clauses, fmt.Sprintf(condition, len(arguments)))
	}

	if filter.UserID != "" {
		appendClause("userid = $%d", filter.UserID)
	}
	if filter.TenantID != "" {
		appendClause("tenantid = $%d", filter.TenantID)
	}
	if filter.Action != "" {
		appendClause("action = $%d", filter.Action)
	}
	if filter.Resource != "" {
		appendClause("resource = $%d", filter.Resource)
	}
	if filter.ResourceID != "" {
		appendClause("resourceid = $%d", filter.ResourceID)
	}
	if !filter.From.IsZero() {
		appendClause("createdat >= $%d", filter.From)
	}
	if !filter.To.IsZero() {
		appendClause("createdat <= $%d", filter.To)
	}

	if len(clauses) == 0 {
		return "", nil
	}

	return " WHERE " + strings.Join(clauses, " AND "), arguments
}
