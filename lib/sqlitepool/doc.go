// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package sqlitepool provides Enclave's standard SQLite connection
// pool. The audit log is its primary consumer; anything else in the
// daemon that wants local structured storage goes through the same
// pool rather than opening its own connections.
//
// It wraps zombiezen.com/go/sqlite with production defaults: WAL
// journal mode, NORMAL synchronous for process-crash durability
// without fsync-per-commit overhead, memory-mapped reads, and a busy
// timeout so write contention degrades to waiting instead of errors.
//
// Callers [Pool.Take] a connection, do their work, and [Pool.Put] it
// back. Connections are not safe for concurrent use; each goroutine
// holds its own for the duration of its work.
//
// # Pragmas
//
// Every connection is initialized with:
//
//   - journal_mode=WAL: concurrent readers with a single writer.
//     Audit queries never block the recorder's inserts.
//   - synchronous=NORMAL: commits survive a process crash. An OS crash
//     can lose the final moments of the decision trail; the decisions
//     themselves were never gated on audit durability, so the trade is
//     acceptable.
//   - busy_timeout=5000: wait up to five seconds for a write lock
//     instead of surfacing SQLITE_BUSY.
//   - foreign_keys=OFF: the schema is a flat append-only table;
//     referential integrity is managed by the writing code.
//   - cache_size=-8192: 8 MB page cache per connection.
//   - mmap_size=268435456: 256 MB memory-mapped I/O for reads.
//   - temp_store=MEMORY: temporary indexes in memory.
//
// The package is intentionally thin. It applies the pragmas and
// exposes the zombiezen types directly; consumers write SQL with
// sqlitex.Execute and friends. No query builder, no ORM.
package sqlitepool
