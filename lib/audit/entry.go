// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import "time"

// Entry is one recorded capability decision.
type Entry struct {
	// ID is the rowid assigned on insert, strictly increasing in
	// commit order. Zero until persisted.
	ID int64 `cbor:"id" json:"id"`

	// Time is when the decision was made, not when it was committed.
	// Stored at millisecond precision.
	Time time.Time `cbor:"time" json:"time"`

	// Component is the component the decision applied to.
	Component string `cbor:"component" json:"component"`

	// Kind is the capability kind: storage, network, environment, or
	// memory.
	Kind string `cbor:"kind" json:"kind"`

	// Resource describes what was requested, in the capability
	// request's rendering: a path with access modes, a host and port,
	// a variable name, a byte count.
	Resource string `cbor:"resource" json:"resource"`

	// Decision is "allow" or "deny".
	Decision string `cbor:"decision" json:"decision"`

	// Reason is the denial reason. Empty for allowed decisions.
	Reason string `cbor:"reason,omitempty" json:"reason,omitempty"`

	// Rule is the policy rule that granted the request. Empty for
	// denials.
	Rule string `cbor:"rule,omitempty" json:"rule,omitempty"`
}

// Filter selects entries from the log. Zero fields match everything.
type Filter struct {
	// Component restricts results to one component.
	Component string

	// Kind restricts results to one capability kind.
	Kind string

	// Decision restricts results to "allow" or "deny".
	Decision string

	// Since excludes entries before this time. Inclusive.
	Since time.Time

	// Until excludes entries after this time. Inclusive.
	Until time.Time

	// Limit caps the number of returned entries. Zero means 100.
	Limit int
}

// Stats reports the recorder's lifetime counters.
type Stats struct {
	// Recorded is the number of entries committed to the database.
	Recorded uint64 `cbor:"recorded" json:"recorded"`

	// Dropped is the number of entries discarded because the queue
	// was full.
	Dropped uint64 `cbor:"dropped" json:"dropped"`
}
