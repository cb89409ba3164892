// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// defaultQueryLimit caps result size when the filter does not.
const defaultQueryLimit = 100

// Query returns entries matching the filter, newest first. Reads see
// only committed batches; call Sync first for read-your-writes.
func (r *Recorder) Query(ctx context.Context, filter Filter) ([]Entry, error) {
	conn, err := r.pool.Take(ctx)
	if err != nil {
		return nil, fmt.Errorf("audit: query: %w", err)
	}
	defer r.pool.Put(conn)

	var conditions []string
	var args []any

	if filter.Component != "" {
		conditions = append(conditions, "component = ?")
		args = append(args, filter.Component)
	}
	if filter.Kind != "" {
		conditions = append(conditions, "kind = ?")
		args = append(args, filter.Kind)
	}
	if filter.Decision != "" {
		conditions = append(conditions, "decision = ?")
		args = append(args, filter.Decision)
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "at >= ?")
		args = append(args, filter.Since.UnixMilli())
	}
	if !filter.Until.IsZero() {
		conditions = append(conditions, "at <= ?")
		args = append(args, filter.Until.UnixMilli())
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = defaultQueryLimit
	}

	query := "SELECT id, at, component, kind, resource, decision, reason, rule FROM decisions"
	if len(conditions) > 0 {
		query += " WHERE " + strings.Join(conditions, " AND ")
	}
	query += " ORDER BY id DESC LIMIT ?"
	args = append(args, limit)

	var entries []Entry
	err = sqlitex.Execute(conn, query, &sqlitex.ExecOptions{
		Args: args,
		ResultFunc: func(stmt *sqlite.Stmt) error {
			entries = append(entries, scanEntry(stmt))
			return nil
		},
	})
	if err != nil {
		return nil, fmt.Errorf("audit: query decisions: %w", err)
	}
	return entries, nil
}

// scanEntry reads one decisions row.
//
// Columns: id(0), at(1), component(2), kind(3), resource(4),
// decision(5), reason(6), rule(7)
func scanEntry(stmt *sqlite.Stmt) Entry {
	return Entry{
		ID:        stmt.ColumnInt64(0),
		Time:      time.UnixMilli(stmt.ColumnInt64(1)).UTC(),
		Component: stmt.ColumnText(2),
		Kind:      stmt.ColumnText(3),
		Resource:  stmt.ColumnText(4),
		Decision:  stmt.ColumnText(5),
		Reason:    stmt.ColumnText(6),
		Rule:      stmt.ColumnText(7),
	}
}
