// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package capability

import (
	"testing"

	"github.com/enclave-foundation/enclave/lib/policy"
)

// storageDoc grants /data/ read, /logs/ read+write, /data/shared/
// write.
func storageDoc(t *testing.T) *policy.Document {
	t.Helper()
	doc := policy.NewDocument()
	for _, grant := range []struct {
		prefix string
		access policy.Access
	}{
		{"/data/", policy.AccessRead},
		{"/logs/", policy.AccessRead | policy.AccessWrite},
		{"/data/shared/", policy.AccessWrite},
	} {
		if err := doc.GrantStorage(grant.prefix, grant.access); err != nil {
			t.Fatalf("granting %s: %v", grant.prefix, err)
		}
	}
	return doc
}

func TestEvaluateStorage(t *testing.T) {
	doc := storageDoc(t)

	tests := []struct {
		name   string
		path   string
		access policy.Access
		want   Decision
		reason DenyReason
	}{
		{"read under granted prefix", "/data/file.txt", policy.AccessRead, Allow, 0},
		{"write under read-only prefix", "/data/file.txt", policy.AccessWrite, Deny, ReasonStorageAccess},
		{"both modes under full grant", "/logs/app.log", policy.AccessRead | policy.AccessWrite, Allow, 0},
		{"both modes split across rules", "/data/shared/report", policy.AccessRead | policy.AccessWrite, Deny, ReasonStorageAccess},
		{"write under nested grant", "/data/shared/report", policy.AccessWrite, Allow, 0},
		{"read under nested grant via parent", "/data/shared/report", policy.AccessRead, Allow, 0},
		{"ungranted prefix", "/etc/passwd", policy.AccessRead, Deny, ReasonNoStorageRule},
		{"traversal escape", "/data/../etc/passwd", policy.AccessRead, Deny, ReasonNoStorageRule},
		{"traversal within prefix", "/data/./sub/../file.txt", policy.AccessRead, Allow, 0},
		{"prefix boundary respected", "/database/file", policy.AccessRead, Deny, ReasonNoStorageRule},
		{"relative path", "data/file.txt", policy.AccessRead, Deny, ReasonInvalidRequest},
		{"empty access set", "/data/file.txt", 0, Deny, ReasonInvalidRequest},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := Evaluate(doc, nil, nil, Storage(test.path, test.access))
			if result.Decision != test.want {
				t.Fatalf("Evaluate(%s [%s]) = %v, want %v", test.path, test.access, result.Decision, test.want)
			}
			if test.want == Deny && result.Reason != test.reason {
				t.Errorf("reason = %v, want %v", result.Reason, test.reason)
			}
			if test.want == Allow && result.MatchedStorage == nil {
				t.Error("allow result has no matched rule")
			}
		})
	}
}

func TestEvaluateNetwork(t *testing.T) {
	doc := policy.NewDocument()
	if err := doc.GrantNetwork("api.example.com", nil); err != nil {
		t.Fatalf("granting: %v", err)
	}
	dbPort := uint16(5432)
	if err := doc.GrantNetwork("db.internal", &dbPort); err != nil {
		t.Fatalf("granting: %v", err)
	}

	port := func(p uint16) *uint16 { return &p }
	tests := []struct {
		name string
		host string
		port *uint16
		want Decision
	}{
		{"any-port rule with port", "api.example.com", port(8443), Allow},
		{"any-port rule without port", "api.example.com", nil, Allow},
		{"case-insensitive host", "API.Example.COM", port(443), Allow},
		{"unknown host", "other.example.com", nil, Deny},
		{"ported rule exact match", "db.internal", port(5432), Allow},
		{"ported rule wrong port", "db.internal", port(5433), Deny},
		{"ported rule without request port", "db.internal", nil, Deny},
		{"empty host", "", nil, Deny},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := Evaluate(doc, nil, nil, Network(test.host, test.port))
			if result.Decision != test.want {
				t.Errorf("Evaluate(network %s) = %v, want %v", test.host, result.Decision, test.want)
			}
		})
	}
}

func TestResolveEnvironment(t *testing.T) {
	fixed := "policy-val"
	doc := policy.NewDocument()
	if err := doc.GrantEnv("API_KEY", nil); err != nil {
		t.Fatalf("granting: %v", err)
	}
	if err := doc.GrantEnv("PINNED", &fixed); err != nil {
		t.Fatalf("granting: %v", err)
	}
	if err := doc.GrantEnv("UNSET_EVERYWHERE", nil); err != nil {
		t.Fatalf("granting: %v", err)
	}

	secrets := map[string]string{"API_KEY": "abc", "PINNED": "secret-val", "HIDDEN": "nope"}
	environ := map[string]string{"API_KEY": "xyz", "INHERITED_ONLY": "from-host"}

	t.Run("secret beats inherited", func(t *testing.T) {
		value, result := ResolveEnvironment(doc, secrets, environ, "API_KEY")
		if result.Decision != Allow || !value.Present || value.Value != "abc" || value.Source != SourceSecret {
			t.Errorf("got %+v (%v)", value, result.Decision)
		}
	})

	t.Run("fixed beats secret", func(t *testing.T) {
		value, result := ResolveEnvironment(doc, secrets, environ, "PINNED")
		if result.Decision != Allow || value.Value != "policy-val" || value.Source != SourceFixed {
			t.Errorf("got %+v (%v)", value, result.Decision)
		}
	})

	t.Run("inherited as last tier", func(t *testing.T) {
		if err := doc.GrantEnv("INHERITED_ONLY", nil); err != nil {
			t.Fatalf("granting: %v", err)
		}
		value, result := ResolveEnvironment(doc, secrets, environ, "INHERITED_ONLY")
		if result.Decision != Allow || value.Value != "from-host" || value.Source != SourceInherited {
			t.Errorf("got %+v (%v)", value, result.Decision)
		}
	})

	t.Run("visible but unset everywhere", func(t *testing.T) {
		value, result := ResolveEnvironment(doc, secrets, environ, "UNSET_EVERYWHERE")
		if result.Decision != Allow {
			t.Fatalf("decision = %v, want allow (absence after visibility is not a denial)", result.Decision)
		}
		if value.Present || value.Source != SourceAbsent {
			t.Errorf("got %+v, want absent", value)
		}
	})

	t.Run("not visible denies despite values", func(t *testing.T) {
		value, result := ResolveEnvironment(doc, secrets, environ, "HIDDEN")
		if result.Decision != Deny || result.Reason != ReasonEnvNotVisible {
			t.Fatalf("got %v (%v), want deny for invisible key", result.Decision, result.Reason)
		}
		if value.Present {
			t.Error("denied resolution still produced a value")
		}
	})
}

func TestEvaluateMemory(t *testing.T) {
	limited := policy.NewDocument()
	limited.SetMemoryLimit(64 << 20)
	unlimited := policy.NewDocument()

	tests := []struct {
		name  string
		doc   *policy.Document
		bytes uint64
		want  Decision
	}{
		{"at the limit", limited, 64 << 20, Allow},
		{"under the limit", limited, 1 << 20, Allow},
		{"over the limit", limited, 64<<20 + 1, Deny},
		{"no limit set", unlimited, 1 << 40, Allow},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			result := Evaluate(test.doc, nil, nil, Memory(test.bytes))
			if result.Decision != test.want {
				t.Errorf("Evaluate(memory %d) = %v, want %v", test.bytes, result.Decision, test.want)
			}
			if test.want == Deny && result.Reason != ReasonMemoryExceeded {
				t.Errorf("reason = %v, want %v", result.Reason, ReasonMemoryExceeded)
			}
		})
	}
}

func TestEvaluateUnknownKind(t *testing.T) {
	result := Evaluate(policy.NewDocument(), nil, nil, Request{Kind: Kind(99)})
	if result.Decision != Deny || result.Reason != ReasonInvalidRequest {
		t.Errorf("got %v (%v), want deny with invalid-request reason", result.Decision, result.Reason)
	}
}

func TestResultErr(t *testing.T) {
	request := Storage("/data/x", policy.AccessRead)

	if err := (Result{Decision: Allow}).Err("echo", request); err != nil {
		t.Errorf("allow result produced error %v", err)
	}

	err := deny(ReasonNoStorageRule).Err("echo", request)
	if err == nil {
		t.Fatal("deny result produced no error")
	}
	if !IsDenied(err) {
		t.Errorf("error %v is not a DeniedError", err)
	}
}
