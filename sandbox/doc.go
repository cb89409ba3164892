// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox executes untrusted component binaries inside a WASM
// runtime and intercepts every resource access they attempt.
//
// The central type is [Host], which compiles component binaries
// (wazero) and instantiates each one in its own runtime with its own
// memory ceiling. A component never receives ambient authority: its
// only paths to the outside world are the WASI filesystem mount and
// the host functions the Host installs, and both translate each
// access into a capability request decided by the permission engine
// before anything touches the real resource.
//
// Interception points:
//
//   - Filesystem: the guest's "/" is a guarded view over a host
//     directory. Every open issues a storage read check for the guest
//     path; denial surfaces to the guest as a plain permission error.
//   - enclave_host.env_get: resolves an environment variable through
//     the engine's precedence (policy fixed value, then secret, then
//     inherited). A denied or absent key looks identical to the
//     guest; the denial itself is recorded by the engine's observer.
//   - enclave_host.http_fetch: parses the requested URL, checks a
//     network capability for its host and port, and only then
//     performs the request. Responses are size-capped.
//   - enclave_host.log_write: guest structured logging, forwarded to
//     the host logger tagged with the component ID.
//
// Host functions use a packed pointer+length ABI: every call takes
// one i64 whose upper 32 bits are a guest memory offset and lower 32
// bits a byte length, and returns a response the same way. Response
// buffers are allocated in guest memory through the component's
// exported "allocate" function. Payloads are JSON.
//
// The memory ceiling comes from the component's policy document,
// falling back to the host-wide default when the policy sets none.
// Declared memory minimums that cannot fit are rejected before
// instantiation with a typed [MemoryLimitError]. The runtime's page
// limit also caps growth at execution time.
//
// A component's exported functions (minus allocator and lifecycle
// exports) become its tools: callable by name with raw numeric
// arguments. Cancelling the invocation context aborts guest
// execution; a blocked capability check never hangs the caller.
package sandbox
