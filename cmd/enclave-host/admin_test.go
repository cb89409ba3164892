// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/enclave-foundation/enclave/lib/artifact"
	"github.com/enclave-foundation/enclave/lib/audit"
	"github.com/enclave-foundation/enclave/lib/capability"
	"github.com/enclave-foundation/enclave/lib/component"
	"github.com/enclave-foundation/enclave/lib/ipc"
	"github.com/enclave-foundation/enclave/lib/policy"
	"github.com/enclave-foundation/enclave/lib/sealed"
	"github.com/enclave-foundation/enclave/lib/secret"
	"github.com/enclave-foundation/enclave/lib/service"
	"github.com/enclave-foundation/enclave/lib/sqlitepool"
	"github.com/enclave-foundation/enclave/lib/version"
	"github.com/enclave-foundation/enclave/sandbox"
)

// addModule exports add(i32, i32) -> i32.
var addModule = []byte{
	0x00, 0x61, 0x73, 0x6d, 0x01, 0x00, 0x00, 0x00,
	0x01, 0x07, 0x01, 0x60, 0x02, 0x7f, 0x7f, 0x01, 0x7f, // type: (i32, i32) -> i32
	0x03, 0x02, 0x01, 0x00,
	0x07, 0x07, 0x01, 0x03, 0x61, 0x64, 0x64, 0x00, 0x00, // export "add" func 0
	0x0a, 0x09, 0x01, 0x07, 0x00, 0x20, 0x00, 0x20, 0x01, 0x6a, 0x0b, // local.get 0, local.get 1, i32.add
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// newTestDaemon wires a Daemon against real stores, a real sandbox
// host, and a real audit recorder, all rooted in a temp directory.
// The inherited environment is empty so environment checks are
// deterministic.
func newTestDaemon(t *testing.T) *Daemon {
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

	engine := &capability.Engine{
		Policies: policies,
		Secrets:  secrets,
		Environ:  func(string) (string, bool) { return "", false },
	}

	pool, err := sqlitepool.Open(sqlitepool.Config{
		Path:      filepath.Join(dir, "audit.db"),
		PoolSize:  2,
		Logger:    testLogger(),
		OnConnect: audit.EnsureSchema,
	})
	if err != nil {
		t.Fatalf("opening audit database: %v", err)
	}
	t.Cleanup(func() { pool.Close() })

	recorder, err := audit.NewRecorder(audit.Config{Pool: pool, Log: testLogger()})
	if err != nil {
		t.Fatalf("starting audit recorder: %v", err)
	}
	t.Cleanup(func() { recorder.Close() })
	engine.Observer = recorder

	host, err := sandbox.NewHost(sandbox.Config{Engine: engine, Log: testLogger()})
	if err != nil {
		t.Fatalf("creating sandbox host: %v", err)
	}
	t.Cleanup(func() { host.Close(context.Background()) })

	cache, err := artifact.NewCache(filepath.Join(dir, "artifacts"))
	if err != nil {
		t.Fatalf("creating artifact cache: %v", err)
	}

	registry, err := component.NewRegistry(component.RegistryConfig{
		Policies: policies,
		Secrets:  secrets,
		Host:     host,
		Fetcher:  &artifact.Fetcher{Cache: cache},
		Log:      testLogger(),
	})
	if err != nil {
		t.Fatalf("creating registry: %v", err)
	}
	t.Cleanup(func() { registry.Close(context.Background()) })

	return &Daemon{
		registry:  registry,
		policies:  policies,
		secrets:   secrets,
		engine:    engine,
		recorder:  recorder,
		startedAt: time.Now().UTC(),
		logger:    testLogger(),
	}
}

func waitForSocket(t *testing.T, path string) {
	t.Helper()
	for {
		if _, err := os.Stat(path); err == nil {
			return
		}
		if t.Context().Err() != nil {
			t.Fatalf("socket %s did not appear before test context expired", path)
		}
		runtime.Gosched()
	}
}

// startAdmin serves the daemon's actions on a temp socket and returns
// a client for it. The server drains when the test finishes.
func startAdmin(t *testing.T, daemon *Daemon) *service.Client {
	t.Helper()
	socketPath := filepath.Join(t.TempDir(), "admin.sock")
	server := service.NewSocketServer(socketPath, testLogger())
	daemon.register(server)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		server.Serve(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	waitForSocket(t, socketPath)
	return service.NewClient(socketPath)
}

// writeModule writes wasm bytes under a temp directory and returns the
// absolute path, which doubles as a file locator.
func writeModule(t *testing.T, name string, binary []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, binary, 0o600); err != nil {
		t.Fatalf("writing module: %v", err)
	}
	return path
}

func TestAdminComponentLifecycle(t *testing.T) {
	daemon := newTestDaemon(t)
	client := startAdmin(t, daemon)
	ctx := context.Background()

	path := writeModule(t, "adder.wasm", addModule)

	var record component.Record
	if err := client.Call(ctx, ipc.ActionLoad, ipc.LoadParams{Locator: path}, &record); err != nil {
		t.Fatalf("load: %v", err)
	}
	if record.ID != "adder" {
		t.Errorf("ID = %q, want %q", record.ID, "adder")
	}
	if record.State != component.StateReady {
		t.Errorf("state = %s, want %s", record.State, component.StateReady)
	}
	if record.Digest != artifact.DigestBytes(addModule) {
		t.Error("record digest does not match the module bytes")
	}
	if record.LoadedAt.IsZero() {
		t.Error("LoadedAt is zero on a ready record")
	}

	var tools ipc.ToolsResult
	if err := client.Call(ctx, ipc.ActionTools, ipc.ToolsParams{ID: "adder"}, &tools); err != nil {
		t.Fatalf("tools: %v", err)
	}
	if len(tools.Tools) != 1 || tools.Tools[0].Name != "add" {
		t.Fatalf("tools = %+v, want [add]", tools.Tools)
	}
	if got := tools.Tools[0].Signature(); got != "add(i32, i32) -> i32" {
		t.Errorf("signature = %q, want %q", got, "add(i32, i32) -> i32")
	}

	var invoked ipc.InvokeResult
	err := client.Call(ctx, ipc.ActionInvoke, ipc.InvokeParams{
		ID:       "adder",
		Function: "add",
		Args:     []uint64{2, 3},
	}, &invoked)
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if len(invoked.Results) != 1 || invoked.Results[0] != 5 {
		t.Errorf("add(2, 3) = %v, want [5]", invoked.Results)
	}

	// Reload without a locator rebuilds the instance from the current
	// artifact.
	var reloaded component.Record
	if err := client.Call(ctx, ipc.ActionReload, ipc.ReloadParams{ID: "adder"}, &reloaded); err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.State != component.StateReady {
		t.Errorf("state after reload = %s, want %s", reloaded.State, component.StateReady)
	}

	var listed ipc.ListResult
	if err := client.Call(ctx, ipc.ActionList, nil, &listed); err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(listed.Components) != 1 || listed.Components[0].ID != "adder" {
		t.Fatalf("list = %+v, want [adder]", listed.Components)
	}

	if err := client.Call(ctx, ipc.ActionUnload, ipc.UnloadParams{ID: "adder"}, nil); err != nil {
		t.Fatalf("unload: %v", err)
	}
	listed = ipc.ListResult{}
	if err := client.Call(ctx, ipc.ActionList, nil, &listed); err != nil {
		t.Fatalf("list after unload: %v", err)
	}
	if len(listed.Components) != 0 {
		t.Errorf("list after unload = %+v, want empty", listed.Components)
	}
}

func TestAdminRequestValidation(t *testing.T) {
	daemon := newTestDaemon(t)
	client := startAdmin(t, daemon)
	ctx := context.Background()

	tests := []struct {
		name   string
		action string
		params any
		want   string
	}{
		{
			name:   "load without params",
			action: ipc.ActionLoad,
			params: nil,
			want:   "missing required field: params",
		},
		{
			name:   "load without locator",
			action: ipc.ActionLoad,
			params: ipc.LoadParams{},
			want:   "locator is required",
		},
		{
			name:   "load from a cleartext URL",
			action: ipc.ActionLoad,
			params: ipc.LoadParams{Locator: "http://example.com/tool.wasm"},
			want:   "invalid locator",
		},
		{
			name:   "unload without id",
			action: ipc.ActionUnload,
			params: ipc.UnloadParams{},
			want:   "id is required",
		},
		{
			name:   "invoke without function",
			action: ipc.ActionInvoke,
			params: ipc.InvokeParams{ID: "adder"},
			want:   "function is required",
		},
		{
			name:   "grant storage without prefix",
			action: ipc.ActionGrantStorage,
			params: ipc.GrantStorageParams{ID: "adder", Access: policy.AccessRead},
			want:   "prefix is required",
		},
		{
			name:   "grant storage without access",
			action: ipc.ActionGrantStorage,
			params: ipc.GrantStorageParams{ID: "adder", Prefix: "/data/"},
			want:   "access is required",
		},
		{
			name:   "grant network without host",
			action: ipc.ActionGrantNetwork,
			params: ipc.GrantNetworkParams{ID: "adder"},
			want:   "host is required",
		},
		{
			name:   "secret set without value",
			action: ipc.ActionSecretSet,
			params: ipc.SecretSetParams{ID: "adder", Key: "TOKEN"},
			want:   "value is required",
		},
		{
			name:   "secret export without recipients",
			action: ipc.ActionSecretExport,
			params: ipc.SecretExportParams{ID: "adder"},
			want:   "recipients is required",
		},
		{
			name:   "apply preset without document",
			action: ipc.ActionApplyPreset,
			params: ipc.ApplyPresetParams{ID: "adder"},
			want:   "preset is required",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := client.Call(ctx, tt.action, tt.params, nil)
			if err == nil {
				t.Fatal("call succeeded, want a validation error")
			}
			var serviceErr *service.ServiceError
			if !errors.As(err, &serviceErr) {
				t.Fatalf("error = %v, want a *service.ServiceError", err)
			}
			if !strings.Contains(serviceErr.Message, tt.want) {
				t.Errorf("message = %q, want it to contain %q", serviceErr.Message, tt.want)
			}
		})
	}
}

func TestAdminPolicyRoundTrip(t *testing.T) {
	daemon := newTestDaemon(t)
	client := startAdmin(t, daemon)
	ctx := context.Background()

	// Grants work against IDs that have never been loaded; the
	// document materializes on first mutation.
	var doc policy.Document
	err := client.Call(ctx, ipc.ActionGrantStorage, ipc.GrantStorageParams{
		ID:     "notes",
		Prefix: "/data/notes/",
		Access: policy.AccessRead,
	}, &doc)
	if err != nil {
		t.Fatalf("grant-storage: %v", err)
	}
	if len(doc.Storage) != 1 || doc.Storage[0].Prefix != "/data/notes/" {
		t.Fatalf("storage rules = %+v, want the granted prefix", doc.Storage)
	}

	check := func(request capability.Request) ipc.CheckResult {
		t.Helper()
		var result ipc.CheckResult
		err := client.Call(ctx, ipc.ActionCheck, ipc.CheckParams{ID: "notes", Request: request}, &result)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
		return result
	}

	read := check(capability.Storage("/data/notes/today.md", policy.AccessRead))
	if read.Decision != "allow" {
		t.Fatalf("read decision = %q (%s), want allow", read.Decision, read.Reason)
	}
	if read.Rule == "" {
		t.Error("allowed check reports no matching rule")
	}

	write := check(capability.Storage("/data/notes/today.md", policy.AccessWrite))
	if write.Decision != "deny" {
		t.Fatalf("write decision = %q, want deny", write.Decision)
	}
	if write.Reason != "storage rule does not include the requested access" {
		t.Errorf("write reason = %q", write.Reason)
	}

	outside := check(capability.Storage("/etc/passwd", policy.AccessRead))
	if outside.Decision != "deny" {
		t.Fatalf("outside decision = %q, want deny", outside.Decision)
	}
	if outside.Reason != "no storage rule covers the path" {
		t.Errorf("outside reason = %q", outside.Reason)
	}

	err = client.Call(ctx, ipc.ActionRevokeStorage, ipc.RevokeStorageParams{
		ID:     "notes",
		Prefix: "/data/notes/",
		Access: policy.AccessRead,
	}, &doc)
	if err != nil {
		t.Fatalf("revoke-storage: %v", err)
	}
	if len(doc.Storage) != 0 {
		t.Fatalf("storage rules after revoke = %+v, want none", doc.Storage)
	}
	if revoked := check(capability.Storage("/data/notes/today.md", policy.AccessRead)); revoked.Decision != "deny" {
		t.Errorf("read after revoke = %q, want deny", revoked.Decision)
	}

	// Network grants, with and without a port.
	port := uint16(443)
	err = client.Call(ctx, ipc.ActionGrantNetwork, ipc.GrantNetworkParams{
		ID:   "notes",
		Host: "api.example.com",
		Port: &port,
	}, &doc)
	if err != nil {
		t.Fatalf("grant-network: %v", err)
	}
	if allowed := check(capability.Network("api.example.com", &port)); allowed.Decision != "allow" {
		t.Errorf("network check = %q (%s), want allow", allowed.Decision, allowed.Reason)
	}
	otherPort := uint16(80)
	if denied := check(capability.Network("api.example.com", &otherPort)); denied.Decision != "deny" {
		t.Errorf("network check on another port = %q, want deny", denied.Decision)
	}
	err = client.Call(ctx, ipc.ActionRevokeNetwork, ipc.RevokeNetworkParams{
		ID:   "notes",
		Host: "api.example.com",
		Port: &port,
	}, &doc)
	if err != nil {
		t.Fatalf("revoke-network: %v", err)
	}
	if len(doc.Network) != 0 {
		t.Fatalf("network rules after revoke = %+v, want none", doc.Network)
	}

	// A fixed-value environment grant resolves from policy.
	fixed := "production"
	err = client.Call(ctx, ipc.ActionGrantEnv, ipc.GrantEnvParams{
		ID:         "notes",
		Key:        "DEPLOY_ENV",
		FixedValue: &fixed,
	}, &doc)
	if err != nil {
		t.Fatalf("grant-env: %v", err)
	}
	env := check(capability.Environment("DEPLOY_ENV"))
	if env.Decision != "allow" {
		t.Fatalf("env check = %q (%s), want allow", env.Decision, env.Reason)
	}
	if env.ValueSource != "fixed" {
		t.Errorf("env value source = %q, want fixed", env.ValueSource)
	}
	if hidden := check(capability.Environment("HOME")); hidden.Decision != "deny" {
		t.Errorf("ungranted env check = %q, want deny", hidden.Decision)
	}
	err = client.Call(ctx, ipc.ActionRevokeEnv, ipc.RevokeEnvParams{ID: "notes", Key: "DEPLOY_ENV"}, &doc)
	if err != nil {
		t.Fatalf("revoke-env: %v", err)
	}
	if len(doc.Environment) != 0 {
		t.Fatalf("environment rules after revoke = %+v, want none", doc.Environment)
	}

	// Memory ceiling: under passes, over denies, zero clears.
	err = client.Call(ctx, ipc.ActionSetMemoryLimit, ipc.SetMemoryLimitParams{ID: "notes", Bytes: 1 << 20}, &doc)
	if err != nil {
		t.Fatalf("set-memory-limit: %v", err)
	}
	if doc.MemoryLimit == nil || *doc.MemoryLimit != 1<<20 {
		t.Fatalf("memory limit = %v, want 1 MiB", doc.MemoryLimit)
	}
	if under := check(capability.Memory(512 << 10)); under.Decision != "allow" {
		t.Errorf("memory under limit = %q, want allow", under.Decision)
	}
	over := check(capability.Memory(2 << 20))
	if over.Decision != "deny" {
		t.Fatalf("memory over limit = %q, want deny", over.Decision)
	}
	if over.Reason != "reservation exceeds the memory limit" {
		t.Errorf("memory reason = %q", over.Reason)
	}
	err = client.Call(ctx, ipc.ActionSetMemoryLimit, ipc.SetMemoryLimitParams{ID: "notes", Bytes: 0}, &doc)
	if err != nil {
		t.Fatalf("clearing memory limit: %v", err)
	}
	if doc.MemoryLimit != nil {
		t.Errorf("memory limit after clear = %v, want none", doc.MemoryLimit)
	}

	// get-policy returns the stored document.
	var loaded policy.Document
	if err := client.Call(ctx, ipc.ActionGetPolicy, ipc.GetPolicyParams{ID: "notes"}, &loaded); err != nil {
		t.Fatalf("get-policy: %v", err)
	}
	if loaded.Version == 0 {
		t.Error("loaded document has no version")
	}
}

func TestAdminApplyPreset(t *testing.T) {
	daemon := newTestDaemon(t)
	client := startAdmin(t, daemon)
	ctx := context.Background()

	preset := []byte(`{
		// Grants for a documentation fetcher.
		"name": "doc-fetcher",
		"storage": [
			{"prefix": "/data/docs/", "access": ["read", "write"]},
		],
		"network": [
			{"host": "docs.example.com", "port": 443},
		],
		"environment": [
			{"key": "DOCS_LANG", "fixed_value": "en"},
		],
		"memory_limit": 33554432,
	}`)

	var doc policy.Document
	err := client.Call(ctx, ipc.ActionApplyPreset, ipc.ApplyPresetParams{ID: "docs", Preset: preset}, &doc)
	if err != nil {
		t.Fatalf("apply-preset: %v", err)
	}
	if len(doc.Storage) != 1 || len(doc.Network) != 1 || len(doc.Environment) != 1 {
		t.Fatalf("document after preset = %+v, want one rule per kind", doc)
	}
	if doc.MemoryLimit == nil || *doc.MemoryLimit != 32<<20 {
		t.Errorf("memory limit = %v, want 32 MiB", doc.MemoryLimit)
	}

	var result ipc.CheckResult
	err = client.Call(ctx, ipc.ActionCheck, ipc.CheckParams{
		ID:      "docs",
		Request: capability.Storage("/data/docs/index.md", policy.AccessRead|policy.AccessWrite),
	}, &result)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if result.Decision != "allow" {
		t.Errorf("check after preset = %q (%s), want allow", result.Decision, result.Reason)
	}

	badPreset := []byte(`{"name": "broken", "storage": [{"prefix": "relative", "access": ["read"]}]}`)
	err = client.Call(ctx, ipc.ActionApplyPreset, ipc.ApplyPresetParams{ID: "docs", Preset: badPreset}, nil)
	if err == nil {
		t.Fatal("applying a preset with a relative prefix succeeded")
	}
}

func TestAdminSecretRoundTrip(t *testing.T) {
	daemon := newTestDaemon(t)
	client := startAdmin(t, daemon)
	ctx := context.Background()

	err := client.Call(ctx, ipc.ActionSecretSet, ipc.SecretSetParams{
		ID:    "svc",
		Key:   "API_TOKEN",
		Value: "hunter2",
	}, nil)
	if err != nil {
		t.Fatalf("secret-set: %v", err)
	}

	var keys ipc.SecretListResult
	if err := client.Call(ctx, ipc.ActionSecretList, ipc.SecretListParams{ID: "svc"}, &keys); err != nil {
		t.Fatalf("secret-list: %v", err)
	}
	if len(keys.Keys) != 1 || keys.Keys[0] != "API_TOKEN" {
		t.Fatalf("keys = %v, want [API_TOKEN]", keys.Keys)
	}

	// A visibility grant without a fixed value resolves from the
	// secret store.
	var doc policy.Document
	err = client.Call(ctx, ipc.ActionGrantEnv, ipc.GrantEnvParams{ID: "svc", Key: "API_TOKEN"}, &doc)
	if err != nil {
		t.Fatalf("grant-env: %v", err)
	}
	var resolved ipc.CheckResult
	err = client.Call(ctx, ipc.ActionCheck, ipc.CheckParams{
		ID:      "svc",
		Request: capability.Environment("API_TOKEN"),
	}, &resolved)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if resolved.Decision != "allow" || resolved.ValueSource != "secret" {
		t.Errorf("env check = %q/%q, want allow from the secret tier", resolved.Decision, resolved.ValueSource)
	}

	// Export seals to the recipient; only the matching identity opens
	// the bundle.
	keypair, err := sealed.GenerateKeypair()
	if err != nil {
		t.Fatalf("generating keypair: %v", err)
	}
	defer keypair.Close()

	var exported ipc.SecretExportResult
	err = client.Call(ctx, ipc.ActionSecretExport, ipc.SecretExportParams{
		ID:         "svc",
		Recipients: []string{keypair.PublicKey},
	}, &exported)
	if err != nil {
		t.Fatalf("secret-export: %v", err)
	}
	if strings.Contains(exported.Bundle, "hunter2") {
		t.Fatal("exported bundle contains plaintext")
	}
	values, err := sealed.Unseal(exported.Bundle, keypair.PrivateKey)
	if err != nil {
		t.Fatalf("unsealing bundle: %v", err)
	}
	if values["API_TOKEN"] != "hunter2" {
		t.Errorf("unsealed values = %v, want the exported secret", values)
	}

	// Import merges into another component's record.
	err = client.Call(ctx, ipc.ActionSecretImport, ipc.SecretImportParams{
		ID:     "mirror",
		Values: values,
	}, nil)
	if err != nil {
		t.Fatalf("secret-import: %v", err)
	}
	keys = ipc.SecretListResult{}
	if err := client.Call(ctx, ipc.ActionSecretList, ipc.SecretListParams{ID: "mirror"}, &keys); err != nil {
		t.Fatalf("secret-list after import: %v", err)
	}
	if len(keys.Keys) != 1 || keys.Keys[0] != "API_TOKEN" {
		t.Fatalf("imported keys = %v, want [API_TOKEN]", keys.Keys)
	}

	if err := client.Call(ctx, ipc.ActionSecretDelete, ipc.SecretDeleteParams{ID: "svc", Key: "API_TOKEN"}, nil); err != nil {
		t.Fatalf("secret-delete: %v", err)
	}
	keys = ipc.SecretListResult{}
	if err := client.Call(ctx, ipc.ActionSecretList, ipc.SecretListParams{ID: "svc"}, &keys); err != nil {
		t.Fatalf("secret-list after delete: %v", err)
	}
	if len(keys.Keys) != 0 {
		t.Errorf("keys after delete = %v, want none", keys.Keys)
	}
}

func TestAdminAuditQuery(t *testing.T) {
	daemon := newTestDaemon(t)
	client := startAdmin(t, daemon)
	ctx := context.Background()

	var doc policy.Document
	err := client.Call(ctx, ipc.ActionGrantStorage, ipc.GrantStorageParams{
		ID:     "notes",
		Prefix: "/data/",
		Access: policy.AccessRead,
	}, &doc)
	if err != nil {
		t.Fatalf("grant-storage: %v", err)
	}

	var result ipc.CheckResult
	for _, request := range []capability.Request{
		capability.Storage("/data/a.txt", policy.AccessRead),
		capability.Storage("/data/a.txt", policy.AccessWrite),
	} {
		err := client.Call(ctx, ipc.ActionCheck, ipc.CheckParams{ID: "notes", Request: request}, &result)
		if err != nil {
			t.Fatalf("check: %v", err)
		}
	}

	var denied ipc.AuditQueryResult
	err = client.Call(ctx, ipc.ActionAuditQuery, ipc.AuditQueryParams{Decision: "deny"}, &denied)
	if err != nil {
		t.Fatalf("audit-query: %v", err)
	}
	if len(denied.Entries) != 1 {
		t.Fatalf("deny entries = %d, want 1", len(denied.Entries))
	}
	entry := denied.Entries[0]
	if entry.Component != "notes" || entry.Kind != "storage" || entry.Decision != "deny" {
		t.Errorf("entry = %+v, want the denied storage check", entry)
	}
	if entry.Reason == "" {
		t.Error("denied entry has no reason")
	}
	if entry.Time.IsZero() {
		t.Error("entry has no timestamp")
	}

	// No params means no filter: both decisions, newest first.
	var all ipc.AuditQueryResult
	if err := client.Call(ctx, ipc.ActionAuditQuery, nil, &all); err != nil {
		t.Fatalf("audit-query without filter: %v", err)
	}
	if len(all.Entries) != 2 {
		t.Fatalf("entries = %d, want 2", len(all.Entries))
	}
	if all.Entries[0].Decision != "deny" || all.Entries[1].Decision != "allow" {
		t.Errorf("order = [%s %s], want newest first", all.Entries[0].Decision, all.Entries[1].Decision)
	}

	var limited ipc.AuditQueryResult
	if err := client.Call(ctx, ipc.ActionAuditQuery, ipc.AuditQueryParams{Limit: 1}, &limited); err != nil {
		t.Fatalf("audit-query with limit: %v", err)
	}
	if len(limited.Entries) != 1 {
		t.Errorf("limited entries = %d, want 1", len(limited.Entries))
	}
}

func TestAdminStatus(t *testing.T) {
	daemon := newTestDaemon(t)
	daemon.defaultMemoryLimit = 64 << 20
	client := startAdmin(t, daemon)
	ctx := context.Background()

	var status ipc.StatusResult
	if err := client.Call(ctx, ipc.ActionStatus, nil, &status); err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Version != version.Version {
		t.Errorf("version = %q, want %q", status.Version, version.Version)
	}
	if status.Components != 0 {
		t.Errorf("components = %d, want 0", status.Components)
	}
	if status.DefaultMemoryLimit != 64<<20 {
		t.Errorf("default memory limit = %d, want %d", status.DefaultMemoryLimit, 64<<20)
	}
	if status.StartedAt.IsZero() {
		t.Error("status has no start time")
	}
	if status.Audit == nil {
		t.Fatal("status has no audit counters while auditing is enabled")
	}
}

func TestAdminAuditDisabled(t *testing.T) {
	daemon := newTestDaemon(t)
	daemon.recorder = nil
	daemon.engine.Observer = nil
	client := startAdmin(t, daemon)
	ctx := context.Background()

	err := client.Call(ctx, ipc.ActionAuditQuery, nil, nil)
	if err == nil {
		t.Fatal("audit-query succeeded with auditing disabled")
	}
	var serviceErr *service.ServiceError
	if !errors.As(err, &serviceErr) {
		t.Fatalf("error = %v, want a *service.ServiceError", err)
	}
	if !strings.Contains(serviceErr.Message, "audit log is disabled") {
		t.Errorf("message = %q, want the disabled notice", serviceErr.Message)
	}

	var status ipc.StatusResult
	if err := client.Call(ctx, ipc.ActionStatus, nil, &status); err != nil {
		t.Fatalf("status: %v", err)
	}
	if status.Audit != nil {
		t.Errorf("audit counters = %+v, want none while auditing is disabled", status.Audit)
	}
}
