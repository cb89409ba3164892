// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"fmt"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

// schema is the audit database layout: one flat append-only table.
// The at column is unix milliseconds UTC.
const schema = `
	CREATE TABLE IF NOT EXISTS decisions (
		id        INTEGER PRIMARY KEY,
		at        INTEGER NOT NULL,
		component TEXT NOT NULL,
		kind      TEXT NOT NULL,
		resource  TEXT NOT NULL,
		decision  TEXT NOT NULL,
		reason    TEXT NOT NULL DEFAULT '',
		rule      TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_decisions_component ON decisions(component, id);
	CREATE INDEX IF NOT EXISTS idx_decisions_at ON decisions(at);
`

// EnsureSchema creates the decisions table and its indexes if they do
// not exist. Suitable as a sqlitepool OnConnect hook so every pooled
// connection sees the schema before first use.
func EnsureSchema(conn *sqlite.Conn) error {
	if err := sqlitex.ExecuteScript(conn, schema, nil); err != nil {
		return fmt.Errorf("audit: ensuring schema: %w", err)
	}
	return nil
}
