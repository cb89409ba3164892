// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/enclave-foundation/enclave/lib/capability"
	"github.com/enclave-foundation/enclave/lib/component"
)

const (
	// hostModuleName is the import namespace guests use for host
	// functions.
	hostModuleName = "enclave_host"

	// wasmPageSize is the WASM linear memory page size.
	wasmPageSize = 64 * 1024

	// maxWasmPages is the architectural page limit (4 GiB).
	maxWasmPages = 65536

	// DefaultMaxRequestBytes caps payloads guests hand to host
	// functions.
	DefaultMaxRequestBytes = 1 << 20

	// DefaultMaxResponseBytes caps HTTP response bodies returned to
	// guests.
	DefaultMaxResponseBytes = 10 << 20
)

// Config wires a Host. Engine is required; everything else has a
// usable default.
type Config struct {
	// Engine decides every capability request the host intercepts.
	Engine *capability.Engine

	// StorageRoot is the host directory backing guest filesystem
	// reads. Empty means components get no filesystem at all.
	StorageRoot string

	// DefaultMemoryLimit is the memory ceiling in bytes for components
	// whose policy sets none. Zero means such components are
	// unbounded.
	DefaultMemoryLimit uint64

	// MaxRequestBytes caps host-function request payloads. Zero means
	// DefaultMaxRequestBytes.
	MaxRequestBytes uint32

	// MaxResponseBytes caps HTTP response bodies. Zero means
	// DefaultMaxResponseBytes.
	MaxResponseBytes int64

	// HTTPClient performs guest-requested fetches. Nil means a
	// default client; per-request deadlines come from the invocation
	// context.
	HTTPClient *http.Client

	// Log receives host events and guest output. Nil means
	// slog.Default().
	Log *slog.Logger
}

// Host compiles and runs component binaries. Each instance gets a
// dedicated runtime so memory ceilings and interception wiring are
// per-component. Safe for concurrent use.
type Host struct {
	engine             *capability.Engine
	storageRoot        string
	defaultMemoryLimit uint64
	maxRequestBytes    uint32
	maxResponseBytes   int64
	httpClient         *http.Client
	log                *slog.Logger

	// cache shares compiled machine code between Validate and
	// Instantiate, and between instances of the same binary.
	cache wazero.CompilationCache
}

// NewHost builds a Host from config.
func NewHost(config Config) (*Host, error) {
	if config.Engine == nil {
		return nil, fmt.Errorf("sandbox host requires a capability engine")
	}
	host := &Host{
		engine:             config.Engine,
		storageRoot:        config.StorageRoot,
		defaultMemoryLimit: config.DefaultMemoryLimit,
		maxRequestBytes:    config.MaxRequestBytes,
		maxResponseBytes:   config.MaxResponseBytes,
		httpClient:         config.HTTPClient,
		log:                config.Log,
		cache:              wazero.NewCompilationCache(),
	}
	if host.maxRequestBytes == 0 {
		host.maxRequestBytes = DefaultMaxRequestBytes
	}
	if host.maxResponseBytes == 0 {
		host.maxResponseBytes = DefaultMaxResponseBytes
	}
	if host.httpClient == nil {
		host.httpClient = &http.Client{}
	}
	if host.log == nil {
		host.log = slog.Default()
	}
	return host, nil
}

// Close releases the shared compilation cache.
func (h *Host) Close(ctx context.Context) error {
	return h.cache.Close(ctx)
}

// Validate checks that binary is a well-formed WASM module. The
// compiled form lands in the shared cache, so a validate-then-load
// sequence compiles once.
func (h *Host) Validate(binary []byte) error {
	ctx := context.Background()
	runtime := wazero.NewRuntimeWithConfig(ctx, wazero.NewRuntimeConfig().WithCompilationCache(h.cache))
	defer runtime.Close(ctx)

	compiled, err := runtime.CompileModule(ctx, binary)
	if err != nil {
		return fmt.Errorf("compiling module: %w", err)
	}
	return compiled.Close(ctx)
}

// Instantiate runs a component binary in a fresh runtime wired for
// interception. The returned instance serves invocations until
// closed.
func (h *Host) Instantiate(ctx context.Context, id string, binary []byte) (component.Instance, error) {
	policyDoc, err := h.engine.Policies.Load(id)
	if err != nil {
		return nil, err
	}
	limit := h.defaultMemoryLimit
	if policyDoc.MemoryLimit != nil {
		limit = *policyDoc.MemoryLimit
	}

	runtimeConfig := wazero.NewRuntimeConfig().
		WithCompilationCache(h.cache).
		WithCloseOnContextDone(true)
	if limit > 0 {
		pages := limit / wasmPageSize
		if pages == 0 {
			pages = 1
		}
		if pages > maxWasmPages {
			pages = maxWasmPages
		}
		runtimeConfig = runtimeConfig.WithMemoryLimitPages(uint32(pages))
	}

	runtime := wazero.NewRuntimeWithConfig(ctx, runtimeConfig)
	success := false
	defer func() {
		if !success {
			runtime.Close(ctx)
		}
	}()

	compiled, err := runtime.CompileModule(ctx, binary)
	if err != nil {
		return nil, fmt.Errorf("compiling component %q: %w", id, err)
	}

	if err := h.checkMemory(id, compiled.ExportedMemories(), policyDoc.MemoryLimit, limit); err != nil {
		return nil, err
	}

	wasi_snapshot_preview1.MustInstantiate(ctx, runtime)
	if err := h.instantiateHostModule(ctx, runtime, id); err != nil {
		return nil, fmt.Errorf("installing host functions for component %q: %w", id, err)
	}

	moduleConfig := wazero.NewModuleConfig().
		WithName(id).
		WithStartFunctions().
		WithStdout(newLogWriter(h.log, id, "stdout")).
		WithStderr(newLogWriter(h.log, id, "stderr"))
	if h.storageRoot != "" {
		guarded := newGuardFS(h.engine, id, h.storageRoot)
		moduleConfig = moduleConfig.WithFSConfig(wazero.NewFSConfig().WithFSMount(guarded, "/"))
	}

	module, err := runtime.InstantiateModule(ctx, compiled, moduleConfig)
	if err != nil {
		return nil, fmt.Errorf("instantiating component %q: %w", id, err)
	}

	// Reactor-style components initialize here instead of _start.
	if initialize := module.ExportedFunction("_initialize"); initialize != nil {
		if _, err := initialize.Call(ctx); err != nil {
			return nil, fmt.Errorf("initializing component %q: %w", id, err)
		}
	}

	success = true
	return &Instance{id: id, runtime: runtime, module: module}, nil
}

// checkMemory rejects declared memory minimums that cannot fit under
// the component's ceiling. When the policy itself sets the limit the
// decision goes through the engine, so the audit trail shows it; the
// host-wide default is a deployment ceiling, enforced here and
// visible only as a load failure.
func (h *Host) checkMemory(id string, memories map[string]api.MemoryDefinition, policyLimit *uint64, limit uint64) error {
	var minBytes uint64
	for _, memory := range memories {
		if declared := uint64(memory.Min()) * wasmPageSize; declared > minBytes {
			minBytes = declared
		}
	}
	if minBytes == 0 {
		return nil
	}

	if policyLimit != nil {
		result, err := h.engine.CheckMemory(id, minBytes)
		if err != nil {
			return err
		}
		if result.Decision != capability.Allow {
			return &MemoryLimitError{ID: id, RequestedBytes: minBytes, LimitBytes: *policyLimit}
		}
		return nil
	}
	if limit > 0 && minBytes > limit {
		return &MemoryLimitError{ID: id, RequestedBytes: minBytes, LimitBytes: limit}
	}
	return nil
}
