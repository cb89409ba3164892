// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package cli

// ToolAnnotations describes behavioral properties of a CLI command
// when exposed as a tool to an agent. Agents use these hints to
// decide which tools are safe to call freely, which can be retried,
// and which require confirmation.
//
// All fields are pointers; nil means "unspecified" and the consumer
// applies its own defaults.
type ToolAnnotations struct {
	// ReadOnly is true when the command only reads state and never
	// modifies it. Agents may call read-only tools without
	// confirmation.
	ReadOnly *bool `json:"read_only,omitempty"`

	// Destructive is true when the command may irreversibly remove
	// data. Agents should require explicit confirmation first.
	Destructive *bool `json:"destructive,omitempty"`

	// Idempotent is true when repeated calls with identical arguments
	// produce the same result. Agents may safely retry idempotent
	// tools on transient failures.
	Idempotent *bool `json:"idempotent,omitempty"`
}

// ReadOnly returns annotations for commands that query state without
// modifying it: list, show, check, audit, status, export.
func ReadOnly() *ToolAnnotations {
	return &ToolAnnotations{
		ReadOnly:    boolPtr(true),
		Destructive: boolPtr(false),
		Idempotent:  boolPtr(true),
	}
}

// Idempotent returns annotations for commands that modify state but
// converge to the same result when called repeatedly with identical
// arguments: grant, set, apply, reload, import.
func Idempotent() *ToolAnnotations {
	return &ToolAnnotations{
		ReadOnly:    boolPtr(false),
		Destructive: boolPtr(false),
		Idempotent:  boolPtr(true),
	}
}

// Create returns annotations for commands that create resources or
// produce side effects that accumulate on repeated calls: load,
// invoke, keygen.
func Create() *ToolAnnotations {
	return &ToolAnnotations{
		ReadOnly:    boolPtr(false),
		Destructive: boolPtr(false),
		Idempotent:  boolPtr(false),
	}
}

// Destructive returns annotations for commands that remove resources
// or grants: unload, revoke, secret delete.
func Destructive() *ToolAnnotations {
	return &ToolAnnotations{
		ReadOnly:    boolPtr(false),
		Destructive: boolPtr(true),
		Idempotent:  boolPtr(false),
	}
}

func boolPtr(value bool) *bool {
	return &value
}
