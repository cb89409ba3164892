// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"path"
	"strings"

	"github.com/enclave-foundation/enclave/lib/policy"
)

// Evaluate decides one request against fixed inputs: the component's
// policy document, its secret map, and a snapshot of the inherited
// process environment. It is a pure function; callers that need the
// resolved value of an environment request use ResolveEnvironment
// instead, which this delegates to.
//
// Evaluation per kind:
//
//  1. Storage: normalize the path (resolving "." and ".." segments,
//     clamped at the root so traversal cannot escape), then allow iff
//     some rule's prefix is a literal prefix of the normalized path
//     and the rule's access set includes every requested mode.
//  2. Network: hosts compare case-insensitively; a rule without a port
//     matches any port, a rule with a port requires an exact match.
//     Allow iff any rule matches.
//  3. Environment: deny unless a visibility rule names the key; the
//     resolution tier is reported in the result.
//  4. Memory: allow iff the reservation fits the policy's limit, or
//     unconditionally when the policy sets none.
func Evaluate(doc *policy.Document, secrets map[string]string, environ map[string]string, request Request) Result {
	switch request.Kind {
	case KindStorage:
		return evaluateStorage(doc, request)
	case KindNetwork:
		return evaluateNetwork(doc, request)
	case KindEnvironment:
		_, result := resolveEnvironment(doc, secrets, lookupFromMap(environ), request.Key)
		return result
	case KindMemory:
		return evaluateMemory(doc, request)
	default:
		return deny(ReasonInvalidRequest)
	}
}

// ResolveEnvironment resolves a visible environment variable to its
// value with precedence fixed value, then secret, then inherited
// environment, then absent. The result alone is safe to record; the
// EnvValue carries the material.
func ResolveEnvironment(doc *policy.Document, secrets map[string]string, environ map[string]string, key string) (EnvValue, Result) {
	return resolveEnvironment(doc, secrets, lookupFromMap(environ), key)
}

func resolveEnvironment(doc *policy.Document, secrets map[string]string, environ func(string) (string, bool), key string) (EnvValue, Result) {
	var rule *policy.EnvironmentRule
	for i := range doc.Environment {
		if doc.Environment[i].Key == key {
			rule = &doc.Environment[i]
			break
		}
	}
	if rule == nil {
		return EnvValue{}, deny(ReasonEnvNotVisible)
	}

	if rule.FixedValue != nil {
		value := EnvValue{Present: true, Value: *rule.FixedValue, Source: SourceFixed}
		return value, allowEnvironment(rule, SourceFixed)
	}
	if secretValue, ok := secrets[key]; ok {
		value := EnvValue{Present: true, Value: secretValue, Source: SourceSecret}
		return value, allowEnvironment(rule, SourceSecret)
	}
	if environ != nil {
		if inherited, ok := environ(key); ok {
			value := EnvValue{Present: true, Value: inherited, Source: SourceInherited}
			return value, allowEnvironment(rule, SourceInherited)
		}
	}
	return EnvValue{Source: SourceAbsent}, allowEnvironment(rule, SourceAbsent)
}

func evaluateStorage(doc *policy.Document, request Request) Result {
	if request.Access == 0 || !strings.HasPrefix(request.Path, "/") {
		return deny(ReasonInvalidRequest)
	}
	normalized := path.Clean(request.Path)

	covered := false
	for i := range doc.Storage {
		rule := &doc.Storage[i]
		if !strings.HasPrefix(normalized, rule.Prefix) {
			continue
		}
		covered = true
		if rule.Access.Has(request.Access) {
			return allowStorage(rule)
		}
	}
	if covered {
		return deny(ReasonStorageAccess)
	}
	return deny(ReasonNoStorageRule)
}

func evaluateNetwork(doc *policy.Document, request Request) Result {
	if request.Host == "" {
		return deny(ReasonInvalidRequest)
	}

	for i := range doc.Network {
		rule := &doc.Network[i]
		if !strings.EqualFold(rule.Host, request.Host) {
			continue
		}
		if rule.Port == nil {
			return allowNetwork(rule)
		}
		if request.Port != nil && *request.Port == *rule.Port {
			return allowNetwork(rule)
		}
	}
	return deny(ReasonNoNetworkRule)
}

func evaluateMemory(doc *policy.Document, request Request) Result {
	if doc.MemoryLimit == nil || request.Bytes <= *doc.MemoryLimit {
		return Result{Decision: Allow}
	}
	return deny(ReasonMemoryExceeded)
}

// lookupFromMap adapts an environment snapshot map to a lookup
// function. A nil map means an empty environment.
func lookupFromMap(environ map[string]string) func(string) (string, bool) {
	if environ == nil {
		return nil
	}
	return func(key string) (string, bool) {
		value, ok := environ[key]
		return value, ok
	}
}
