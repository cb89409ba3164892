// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"os"

	"github.com/enclave-foundation/enclave/lib/policy"
	"github.com/enclave-foundation/enclave/lib/secret"
)

// Observer receives every decision an Engine makes, allow and deny
// alike. The audit log implements this. Observers run synchronously on
// the checking goroutine and must be fast.
type Observer interface {
	ObserveDecision(componentID string, request Request, result Result)
}

// Engine answers capability checks for components by pulling their
// current policy and secrets from the stores on every call. Mutations
// to either store take effect on the next check; a running component
// never needs a restart to pick up a grant or a revocation.
//
// The zero value is not usable; Policies and Secrets are required.
// Environ defaults to the process environment. A nil Observer
// disables observation.
type Engine struct {
	Policies *policy.Store
	Secrets  *secret.Store

	// Environ resolves the inherited environment tier. Nil means
	// os.LookupEnv. Tests inject a fake.
	Environ func(string) (string, bool)

	// Observer sees every decision. Nil disables observation.
	Observer Observer
}

// Check decides one capability request for a component. Denials are
// reported in the result, not the error; the error is set only when
// the component's policy document cannot be loaded, in which case the
// result is a deny (checks fail closed).
func (e *Engine) Check(componentID string, request Request) (Result, error) {
	doc, err := e.Policies.Load(componentID)
	if err != nil {
		result := deny(ReasonPolicyUnavailable)
		e.observe(componentID, request, result)
		return result, err
	}

	var result Result
	switch request.Kind {
	case KindEnvironment:
		_, result = resolveEnvironment(doc, e.secretsFor(componentID), e.environ(), request.Key)
	default:
		result = Evaluate(doc, nil, nil, request)
	}

	e.observe(componentID, request, result)
	return result, nil
}

// ResolveEnv resolves an environment variable for a component,
// returning the value alongside the decision. The sandbox host calls
// this for guest environment reads; unlike Check, the caller receives
// secret material and owns keeping it out of logs.
func (e *Engine) ResolveEnv(componentID, key string) (EnvValue, Result, error) {
	doc, err := e.Policies.Load(componentID)
	if err != nil {
		result := deny(ReasonPolicyUnavailable)
		e.observe(componentID, Environment(key), result)
		return EnvValue{}, result, err
	}

	value, result := resolveEnvironment(doc, e.secretsFor(componentID), e.environ(), key)
	e.observe(componentID, Environment(key), result)
	return value, result, nil
}

// CheckStorage is shorthand for Check with a storage request.
func (e *Engine) CheckStorage(componentID, path string, access policy.Access) (Result, error) {
	return e.Check(componentID, Storage(path, access))
}

// CheckNetwork is shorthand for Check with a network request.
func (e *Engine) CheckNetwork(componentID, host string, port *uint16) (Result, error) {
	return e.Check(componentID, Network(host, port))
}

// CheckMemory is shorthand for Check with a memory request.
func (e *Engine) CheckMemory(componentID string, bytes uint64) (Result, error) {
	return e.Check(componentID, Memory(bytes))
}

// secretsFor fetches a component's secrets for environment resolution.
// A record that cannot be read degrades to "no secrets available":
// resolution continues through the fixed and inherited tiers, and the
// failure never takes the component down.
func (e *Engine) secretsFor(componentID string) map[string]string {
	values, err := e.Secrets.Get(componentID)
	if err != nil {
		return nil
	}
	return values
}

func (e *Engine) environ() func(string) (string, bool) {
	if e.Environ != nil {
		return e.Environ
	}
	return os.LookupEnv
}

func (e *Engine) observe(componentID string, request Request, result Result) {
	if e.Observer != nil {
		e.Observer.ObserveDecision(componentID, request, result)
	}
}
