// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package audit records capability decisions to a local SQLite
// database.
//
// The Recorder sits behind the capability engine as its observer.
// Every decision the engine makes is queued here and committed to the
// decisions table by a background goroutine in batched transactions.
// The enqueue path never blocks: a full queue drops the entry and
// increments a counter rather than delaying the operation that
// triggered the check.
//
// The table is append-only. Query filters by component, capability
// kind, decision, and time range, newest first. Environment entries
// name the variable and its resolution tier but never the resolved
// value, so the log is safe to read with any filter.
package audit
