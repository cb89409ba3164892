// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"fmt"

	"github.com/enclave-foundation/enclave/lib/policy"
)

// Decision is the outcome of a capability check.
type Decision int

const (
	// Deny means the access is not permitted.
	Deny Decision = iota

	// Allow means the access is permitted.
	Allow
)

// String returns "allow" or "deny".
func (d Decision) String() string {
	if d == Allow {
		return "allow"
	}
	return "deny"
}

// MarshalText renders the decision name for audit records.
func (d Decision) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// DenyReason describes why a capability check was denied.
type DenyReason int

const (
	// ReasonNoStorageRule means no storage rule's prefix covers the
	// normalized path.
	ReasonNoStorageRule DenyReason = iota

	// ReasonStorageAccess means a rule covers the path but its access
	// set does not include every requested mode.
	ReasonStorageAccess

	// ReasonNoNetworkRule means no network rule matches the host and
	// port.
	ReasonNoNetworkRule

	// ReasonEnvNotVisible means the environment variable has no
	// visibility rule.
	ReasonEnvNotVisible

	// ReasonMemoryExceeded means the reservation exceeds the policy's
	// memory limit.
	ReasonMemoryExceeded

	// ReasonInvalidRequest means the request itself is malformed (a
	// relative storage path, an empty host, an unknown kind). Malformed
	// requests fail closed.
	ReasonInvalidRequest

	// ReasonPolicyUnavailable means the component's policy document
	// could not be loaded. Checks without a readable policy fail
	// closed.
	ReasonPolicyUnavailable
)

// String returns a human-readable reason.
func (r DenyReason) String() string {
	switch r {
	case ReasonNoStorageRule:
		return "no storage rule covers the path"
	case ReasonStorageAccess:
		return "storage rule does not include the requested access"
	case ReasonNoNetworkRule:
		return "no network rule matches the host and port"
	case ReasonEnvNotVisible:
		return "environment variable is not visible"
	case ReasonMemoryExceeded:
		return "reservation exceeds the memory limit"
	case ReasonInvalidRequest:
		return "malformed capability request"
	case ReasonPolicyUnavailable:
		return "policy document unavailable"
	default:
		return "unknown"
	}
}

// MarshalText renders the reason for audit records.
func (r DenyReason) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// ValueSource identifies which tier resolved an environment variable.
type ValueSource int

const (
	// SourceAbsent means visibility was granted but no tier holds a
	// value.
	SourceAbsent ValueSource = iota

	// SourceFixed means the policy's fixed value resolved the key. A
	// fixed value is authoritative over all other tiers.
	SourceFixed

	// SourceSecret means the component's secret record resolved the
	// key.
	SourceSecret

	// SourceInherited means the host's process environment resolved
	// the key.
	SourceInherited
)

// String returns the tier name.
func (s ValueSource) String() string {
	switch s {
	case SourceFixed:
		return "fixed"
	case SourceSecret:
		return "secret"
	case SourceInherited:
		return "inherited"
	case SourceAbsent:
		return "absent"
	default:
		return "unknown"
	}
}

// MarshalText renders the tier name. Sources are safe to audit; values
// are not.
func (s ValueSource) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// EnvValue is the outcome of resolving a visible environment variable.
// Present is false when no tier holds a value, which is not an error:
// the variable exists for the component but is unset.
type EnvValue struct {
	Present bool
	Value   string
	Source  ValueSource
}

// Result describes the outcome of a capability check: the decision, a
// deny reason, and the rule that matched, for audit records and the
// dry-run surface. Environment results carry the resolution tier but
// never the resolved value, so results are always safe to log.
type Result struct {
	// Decision is Allow or Deny.
	Decision Decision

	// Reason describes why the check was denied. Only meaningful when
	// Decision is Deny.
	Reason DenyReason

	// MatchedStorage is the storage rule that allowed the request, if
	// any.
	MatchedStorage *policy.StorageRule

	// MatchedNetwork is the network rule that allowed the request, if
	// any.
	MatchedNetwork *policy.NetworkRule

	// MatchedEnvironment is the visibility rule that allowed the
	// request, if any.
	MatchedEnvironment *policy.EnvironmentRule

	// Source is the resolution tier of an environment check. Only
	// meaningful for allowed environment requests.
	Source ValueSource
}

// MatchedRule renders the rule that allowed the request, in the same
// form the policy document uses. Empty for denials and for results
// with no matched rule.
func (r Result) MatchedRule() string {
	switch {
	case r.MatchedStorage != nil:
		return fmt.Sprintf("%s [%s]", r.MatchedStorage.Prefix, r.MatchedStorage.Access)
	case r.MatchedNetwork != nil:
		if r.MatchedNetwork.Port != nil {
			return fmt.Sprintf("%s:%d", r.MatchedNetwork.Host, *r.MatchedNetwork.Port)
		}
		return r.MatchedNetwork.Host
	case r.MatchedEnvironment != nil:
		if r.MatchedEnvironment.FixedValue != nil {
			return r.MatchedEnvironment.Key + " (fixed)"
		}
		return r.MatchedEnvironment.Key
	default:
		return ""
	}
}

// allowStorage builds an allow result recording the matched rule.
func allowStorage(rule *policy.StorageRule) Result {
	return Result{Decision: Allow, MatchedStorage: rule}
}

func allowNetwork(rule *policy.NetworkRule) Result {
	return Result{Decision: Allow, MatchedNetwork: rule}
}

func allowEnvironment(rule *policy.EnvironmentRule, source ValueSource) Result {
	return Result{Decision: Allow, MatchedEnvironment: rule, Source: source}
}

func deny(reason DenyReason) Result {
	return Result{Decision: Deny, Reason: reason}
}
