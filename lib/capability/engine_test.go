// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/enclave-foundation/enclave/lib/policy"
	"github.com/enclave-foundation/enclave/lib/secret"
)

type recordedDecision struct {
	componentID string
	request     Request
	result      Result
}

type fakeObserver struct {
	decisions []recordedDecision
}

func (o *fakeObserver) ObserveDecision(componentID string, request Request, result Result) {
	o.decisions = append(o.decisions, recordedDecision{componentID, request, result})
}

func newTestEngine(t *testing.T) (*Engine, *policy.Store, *secret.Store) {
	t.Helper()
	dir := t.TempDir()
	policies, err := policy.NewStore(filepath.Join(dir, "policies"))
	if err != nil {
		t.Fatalf("creating policy store: %v", err)
	}
	secrets, err := secret.NewStore(filepath.Join(dir, "secrets"))
	if err != nil {
		t.Fatalf("creating secret store: %v", err)
	}
	engine := &Engine{
		Policies: policies,
		Secrets:  secrets,
		Environ:  func(string) (string, bool) { return "", false },
	}
	return engine, policies, secrets
}

func TestEngineGrantRevokeRoundTrip(t *testing.T) {
	engine, policies, _ := newTestEngine(t)

	// Before any grant: deny.
	result, err := engine.CheckStorage("echo", "/data/file.txt", policy.AccessRead)
	if err != nil {
		t.Fatalf("checking: %v", err)
	}
	if result.Decision != Deny {
		t.Fatal("ungranted check allowed")
	}

	if _, err := policies.Mutate("echo", func(doc *policy.Document) error {
		return doc.GrantStorage("/data/", policy.AccessRead)
	}); err != nil {
		t.Fatalf("granting: %v", err)
	}

	// The grant takes effect on the next check, no restart involved.
	result, err = engine.CheckStorage("echo", "/data/file.txt", policy.AccessRead)
	if err != nil {
		t.Fatalf("checking: %v", err)
	}
	if result.Decision != Allow {
		t.Fatalf("granted check denied: %v", result.Reason)
	}

	if _, err := policies.Mutate("echo", func(doc *policy.Document) error {
		return doc.RevokeStorage("/data/", policy.AccessRead)
	}); err != nil {
		t.Fatalf("revoking: %v", err)
	}

	// Revocation restores pre-grant behavior.
	result, err = engine.CheckStorage("echo", "/data/file.txt", policy.AccessRead)
	if err != nil {
		t.Fatalf("checking: %v", err)
	}
	if result.Decision != Deny || result.Reason != ReasonNoStorageRule {
		t.Fatalf("revoked check = %v (%v), want deny with no rule", result.Decision, result.Reason)
	}
}

func TestEngineResolveEnv(t *testing.T) {
	engine, policies, secrets := newTestEngine(t)
	engine.Environ = func(key string) (string, bool) {
		if key == "API_KEY" {
			return "xyz", true
		}
		return "", false
	}

	if _, err := policies.Mutate("echo", func(doc *policy.Document) error {
		return doc.GrantEnv("API_KEY", nil)
	}); err != nil {
		t.Fatalf("granting: %v", err)
	}
	if err := secrets.Set("echo", "API_KEY", "abc"); err != nil {
		t.Fatalf("setting secret: %v", err)
	}

	// Secret beats inherited.
	value, result, err := engine.ResolveEnv("echo", "API_KEY")
	if err != nil {
		t.Fatalf("resolving: %v", err)
	}
	if result.Decision != Allow || value.Value != "abc" || value.Source != SourceSecret {
		t.Fatalf("got %+v (%v)", value, result.Decision)
	}

	// Deleting the secret falls through to the inherited tier.
	if err := secrets.Delete("echo", "API_KEY"); err != nil {
		t.Fatalf("deleting secret: %v", err)
	}
	value, _, err = engine.ResolveEnv("echo", "API_KEY")
	if err != nil {
		t.Fatalf("resolving: %v", err)
	}
	if value.Value != "xyz" || value.Source != SourceInherited {
		t.Fatalf("got %+v after secret deletion, want inherited", value)
	}

	// A fixed value overrides everything.
	if _, err := policies.Mutate("echo", func(doc *policy.Document) error {
		fixed := "pinned"
		return doc.GrantEnv("API_KEY", &fixed)
	}); err != nil {
		t.Fatalf("granting fixed: %v", err)
	}
	value, _, err = engine.ResolveEnv("echo", "API_KEY")
	if err != nil {
		t.Fatalf("resolving: %v", err)
	}
	if value.Value != "pinned" || value.Source != SourceFixed {
		t.Fatalf("got %+v with fixed value set, want fixed tier", value)
	}
}

func TestEngineCorruptSecretsDegrade(t *testing.T) {
	engine, policies, secrets := newTestEngine(t)
	engine.Environ = func(key string) (string, bool) { return "from-host", true }

	if _, err := policies.Mutate("echo", func(doc *policy.Document) error {
		return doc.GrantEnv("API_KEY", nil)
	}); err != nil {
		t.Fatalf("granting: %v", err)
	}
	corrupt := filepath.Join(secrets.Dir(), "echo.yaml")
	if err := os.WriteFile(corrupt, []byte("{{{{"), 0o600); err != nil {
		t.Fatalf("corrupting record: %v", err)
	}

	// The unreadable record means "no secrets": resolution continues
	// through the inherited tier instead of failing the component.
	value, result, err := engine.ResolveEnv("echo", "API_KEY")
	if err != nil {
		t.Fatalf("resolving with corrupt record: %v", err)
	}
	if result.Decision != Allow || value.Value != "from-host" || value.Source != SourceInherited {
		t.Fatalf("got %+v (%v), want inherited tier", value, result.Decision)
	}
}

func TestEngineUnreadablePolicyFailsClosed(t *testing.T) {
	engine, policies, _ := newTestEngine(t)

	path := filepath.Join(policies.Dir(), "echo.yaml")
	if err := os.WriteFile(path, []byte("{{{{"), 0o600); err != nil {
		t.Fatalf("corrupting document: %v", err)
	}

	result, err := engine.CheckStorage("echo", "/data/x", policy.AccessRead)
	if err == nil {
		t.Fatal("check with unreadable policy returned no error")
	}
	if !policy.IsMalformed(err) {
		t.Errorf("error %v is not a MalformedError", err)
	}
	if result.Decision != Deny || result.Reason != ReasonPolicyUnavailable {
		t.Errorf("result = %v (%v), want fail-closed deny", result.Decision, result.Reason)
	}
}

func TestEngineObserverSeesEveryDecision(t *testing.T) {
	engine, policies, _ := newTestEngine(t)
	observer := &fakeObserver{}
	engine.Observer = observer

	if _, err := policies.Mutate("echo", func(doc *policy.Document) error {
		return doc.GrantNetwork("api.example.com", nil)
	}); err != nil {
		t.Fatalf("granting: %v", err)
	}

	if _, err := engine.CheckNetwork("echo", "api.example.com", nil); err != nil {
		t.Fatalf("checking: %v", err)
	}
	if _, err := engine.CheckNetwork("echo", "blocked.example.com", nil); err != nil {
		t.Fatalf("checking: %v", err)
	}

	if len(observer.decisions) != 2 {
		t.Fatalf("observer saw %d decisions, want 2", len(observer.decisions))
	}
	if observer.decisions[0].result.Decision != Allow || observer.decisions[1].result.Decision != Deny {
		t.Errorf("observer decisions = %+v", observer.decisions)
	}
	for _, decision := range observer.decisions {
		if decision.componentID != "echo" || decision.request.Kind != KindNetwork {
			t.Errorf("decision = %+v", decision)
		}
	}
}
