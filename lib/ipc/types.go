// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package ipc

import (
	"time"

	"github.com/enclave-foundation/enclave/lib/audit"
	"github.com/enclave-foundation/enclave/lib/capability"
	"github.com/enclave-foundation/enclave/lib/component"
	"github.com/enclave-foundation/enclave/lib/policy"
)

// Admin socket actions. Lifecycle actions keep their bare names;
// everything else is verb-object kebab-case.
const (
	// ActionLoad fetches, validates, and instantiates a component.
	// Params: LoadParams. Result: component.Record.
	ActionLoad = "load"

	// ActionUnload stops a component and removes it from the registry.
	// Its policy document and secrets survive for a future load.
	// Params: UnloadParams. Result: none.
	ActionUnload = "unload"

	// ActionReload swaps a component's instance for one built from a
	// new (or the same) artifact. Params: ReloadParams. Result:
	// component.Record.
	ActionReload = "reload"

	// ActionList snapshots every registered component. Result:
	// ListResult.
	ActionList = "list"

	// ActionTools lists a component's exported functions. Params:
	// ToolsParams. Result: ToolsResult.
	ActionTools = "tools"

	// ActionInvoke calls an exported function. Params: InvokeParams.
	// Result: InvokeResult.
	ActionInvoke = "invoke"

	// ActionGrantStorage adds or widens a storage rule. Params:
	// GrantStorageParams. Result: policy.Document (the updated
	// document, like every policy mutation).
	ActionGrantStorage = "grant-storage"

	// ActionRevokeStorage narrows or removes a storage rule. Params:
	// RevokeStorageParams. Result: policy.Document.
	ActionRevokeStorage = "revoke-storage"

	// ActionGrantNetwork adds a network rule. Params:
	// GrantNetworkParams. Result: policy.Document.
	ActionGrantNetwork = "grant-network"

	// ActionRevokeNetwork removes a network rule. Params:
	// RevokeNetworkParams. Result: policy.Document.
	ActionRevokeNetwork = "revoke-network"

	// ActionGrantEnv makes an environment variable visible. Params:
	// GrantEnvParams. Result: policy.Document.
	ActionGrantEnv = "grant-env"

	// ActionRevokeEnv removes an environment rule. Params:
	// RevokeEnvParams. Result: policy.Document.
	ActionRevokeEnv = "revoke-env"

	// ActionSetMemoryLimit sets or clears the memory ceiling. Params:
	// SetMemoryLimitParams. Result: policy.Document.
	ActionSetMemoryLimit = "set-memory-limit"

	// ActionGetPolicy reads a component's policy document. Params:
	// GetPolicyParams. Result: policy.Document.
	ActionGetPolicy = "get-policy"

	// ActionApplyPreset applies a JSONC preset's grants in one
	// mutation. Params: ApplyPresetParams. Result: policy.Document.
	ActionApplyPreset = "apply-preset"

	// ActionSecretSet upserts one secret value. Params:
	// SecretSetParams. Result: none.
	ActionSecretSet = "secret-set"

	// ActionSecretDelete removes one secret key. Params:
	// SecretDeleteParams. Result: none.
	ActionSecretDelete = "secret-delete"

	// ActionSecretList lists a component's secret key names, never
	// values. Params: SecretListParams. Result: SecretListResult.
	ActionSecretList = "secret-list"

	// ActionSecretExport returns a component's secrets sealed to age
	// recipients. Params: SecretExportParams. Result:
	// SecretExportResult.
	ActionSecretExport = "secret-export"

	// ActionSecretImport merges a map of plaintext secrets. Params:
	// SecretImportParams. Result: none.
	ActionSecretImport = "secret-import"

	// ActionCheck evaluates a capability request without performing
	// it. Params: CheckParams. Result: CheckResult.
	ActionCheck = "check"

	// ActionAuditQuery reads the decision log. Params:
	// AuditQueryParams. Result: AuditQueryResult.
	ActionAuditQuery = "audit-query"

	// ActionStatus reports daemon identity and counters. Result:
	// StatusResult.
	ActionStatus = "status"
)

// LoadParams are the parameters of "load".
type LoadParams struct {
	// Locator is the artifact source in text form: an absolute file
	// path, an https URL, or a digest reference into the cache. The
	// daemon parses and validates it.
	Locator string `cbor:"locator"`

	// ID overrides the component identity derived from the locator.
	ID string `cbor:"id,omitempty"`

	// Replace reloads in place when the ID is already loaded instead
	// of failing.
	Replace bool `cbor:"replace,omitempty"`
}

// UnloadParams are the parameters of "unload".
type UnloadParams struct {
	ID string `cbor:"id"`
}

// ReloadParams are the parameters of "reload".
type ReloadParams struct {
	ID string `cbor:"id"`

	// Locator is the replacement artifact source. Empty reloads from
	// the component's current locator.
	Locator string `cbor:"locator,omitempty"`
}

// ListResult is the result of "list".
type ListResult struct {
	Components []component.Record `cbor:"components,omitempty"`
}

// ToolsParams are the parameters of "tools".
type ToolsParams struct {
	ID string `cbor:"id"`
}

// ToolsResult is the result of "tools".
type ToolsResult struct {
	Tools []component.Tool `cbor:"tools,omitempty"`
}

// InvokeParams are the parameters of "invoke".
type InvokeParams struct {
	ID string `cbor:"id"`

	// Function is the export name to call.
	Function string `cbor:"function"`

	// Args are raw core-wasm stack values in call order. The "tools"
	// action reports each export's expected types.
	Args []uint64 `cbor:"args,omitempty"`
}

// InvokeResult is the result of "invoke".
type InvokeResult struct {
	// Results are raw core-wasm stack values in return order.
	Results []uint64 `cbor:"results,omitempty"`
}

// GrantStorageParams are the parameters of "grant-storage".
type GrantStorageParams struct {
	ID string `cbor:"id"`

	// Prefix is the absolute path prefix to grant. Matching is
	// literal: a trailing slash confines the grant to the directory's
	// subtree without covering the directory entry itself.
	Prefix string `cbor:"prefix"`

	// Access is the mode set to grant, "read", "write", or
	// "read,write". Granting an already-covered prefix widens the
	// rule's modes.
	Access policy.Access `cbor:"access"`
}

// RevokeStorageParams are the parameters of "revoke-storage".
type RevokeStorageParams struct {
	ID     string `cbor:"id"`
	Prefix string `cbor:"prefix"`

	// Access is the mode set to remove. Removing every granted mode
	// deletes the rule; revoking an absent rule succeeds silently.
	Access policy.Access `cbor:"access"`
}

// GrantNetworkParams are the parameters of "grant-network".
type GrantNetworkParams struct {
	ID   string `cbor:"id"`
	Host string `cbor:"host"`

	// Port restricts the rule to one port. Nil allows any port on the
	// host.
	Port *uint16 `cbor:"port,omitempty"`
}

// RevokeNetworkParams are the parameters of "revoke-network". The
// rule removed must match host and port exactly; revoking a portless
// rule does not touch ported rules for the same host, nor the
// reverse.
type RevokeNetworkParams struct {
	ID   string  `cbor:"id"`
	Host string  `cbor:"host"`
	Port *uint16 `cbor:"port,omitempty"`
}

// GrantEnvParams are the parameters of "grant-env".
type GrantEnvParams struct {
	ID  string `cbor:"id"`
	Key string `cbor:"key"`

	// FixedValue pins the variable to a policy-supplied value that
	// wins over secrets and the host environment. Nil grants
	// visibility only, leaving any existing fixed value in place.
	FixedValue *string `cbor:"fixed_value,omitempty"`
}

// RevokeEnvParams are the parameters of "revoke-env".
type RevokeEnvParams struct {
	ID  string `cbor:"id"`
	Key string `cbor:"key"`
}

// SetMemoryLimitParams are the parameters of "set-memory-limit".
type SetMemoryLimitParams struct {
	ID string `cbor:"id"`

	// Bytes is the new ceiling. Zero clears the limit, restoring
	// unbounded-by-policy.
	Bytes uint64 `cbor:"bytes"`
}

// GetPolicyParams are the parameters of "get-policy".
type GetPolicyParams struct {
	ID string `cbor:"id"`
}

// ApplyPresetParams are the parameters of "apply-preset".
type ApplyPresetParams struct {
	ID string `cbor:"id"`

	// Preset is a JSONC preset document, carried verbatim. The daemon
	// parses and validates it so file contents are vetted by the same
	// code regardless of which client sent them.
	Preset []byte `cbor:"preset"`
}

// SecretSetParams are the parameters of "secret-set".
type SecretSetParams struct {
	ID  string `cbor:"id"`
	Key string `cbor:"key"`

	// Value is the plaintext secret. Safe over local IPC: the socket
	// is owner-only and never leaves the machine. The daemon writes
	// it to the component's 0600 record.
	Value string `cbor:"value"`
}

// SecretDeleteParams are the parameters of "secret-delete".
type SecretDeleteParams struct {
	ID  string `cbor:"id"`
	Key string `cbor:"key"`
}

// SecretListParams are the parameters of "secret-list".
type SecretListParams struct {
	ID string `cbor:"id"`
}

// SecretListResult is the result of "secret-list".
type SecretListResult struct {
	// Keys are the component's secret key names, sorted. Values never
	// cross the socket unsealed in this direction.
	Keys []string `cbor:"keys,omitempty"`
}

// SecretExportParams are the parameters of "secret-export".
type SecretExportParams struct {
	ID string `cbor:"id"`

	// Recipients are age public keys ("age1..."). The daemon seals
	// the secret map to them before answering, so the export crosses
	// the socket and lands on disk already encrypted.
	Recipients []string `cbor:"recipients"`
}

// SecretExportResult is the result of "secret-export".
type SecretExportResult struct {
	// Bundle is the sealed export: base64-encoded age ciphertext of
	// the component's secret map. Only a recipient identity can open
	// it.
	Bundle string `cbor:"bundle"`
}

// SecretImportParams are the parameters of "secret-import".
type SecretImportParams struct {
	ID string `cbor:"id"`

	// Values are plaintext key-value pairs merged into the
	// component's record in one write. Clients unseal exported
	// bundles on their side, where the age identity lives, and this
	// carries the result over the same local-only trust boundary as
	// secret-set.
	Values map[string]string `cbor:"values"`
}

// CheckParams are the parameters of "check".
type CheckParams struct {
	ID string `cbor:"id"`

	// Request is the capability request to evaluate. Nothing is
	// performed; the decision is computed, audited, and returned.
	Request capability.Request `cbor:"request"`
}

// CheckResult is the result of "check".
type CheckResult struct {
	// Decision is "allow" or "deny".
	Decision string `cbor:"decision"`

	// Reason explains a denial. Empty when allowed.
	Reason string `cbor:"reason,omitempty"`

	// Rule is the policy rule that matched. Empty when denied.
	Rule string `cbor:"rule,omitempty"`

	// ValueSource is the resolution tier of an allowed environment
	// check: "fixed", "secret", "inherited", or "absent". Never the
	// value itself.
	ValueSource string `cbor:"value_source,omitempty"`
}

// AuditQueryParams are the parameters of "audit-query". Zero fields
// match everything; results come newest first.
type AuditQueryParams struct {
	// Component restricts results to one component.
	Component string `cbor:"component,omitempty"`

	// Kind restricts results to one capability kind.
	Kind string `cbor:"kind,omitempty"`

	// Decision restricts results to "allow" or "deny".
	Decision string `cbor:"decision,omitempty"`

	// Since and Until bound the time range, inclusive. Nil means
	// unbounded.
	Since *time.Time `cbor:"since,omitempty"`
	Until *time.Time `cbor:"until,omitempty"`

	// Limit caps the result count. Zero applies the server default.
	Limit int `cbor:"limit,omitempty"`
}

// AuditQueryResult is the result of "audit-query".
type AuditQueryResult struct {
	Entries []audit.Entry `cbor:"entries,omitempty"`
}

// StatusResult is the result of "status".
type StatusResult struct {
	// Version is the daemon's build version.
	Version string `cbor:"version"`

	// StartedAt is when the daemon began serving.
	StartedAt time.Time `cbor:"started_at"`

	// Components is the number of registered components.
	Components int `cbor:"components"`

	// DefaultMemoryLimit is the host's memory ceiling in bytes for
	// components whose policy sets no limit of its own. Zero means
	// such components are bounded only by the runtime.
	DefaultMemoryLimit uint64 `cbor:"default_memory_limit,omitempty"`

	// Audit carries the recorder's counters. Nil when auditing is
	// disabled.
	Audit *audit.Stats `cbor:"audit,omitempty"`
}
