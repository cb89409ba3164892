// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package component manages the lifecycle of sandboxed components: the
// registry of what is loaded, the load/unload/reload transitions, and
// the link between a running instance and its durable policy and
// secret records.
//
// A component's identity is its ID, derived from the artifact locator
// or supplied explicitly at load time. Policy documents and secret
// records are keyed by that ID and owned by their stores, not by the
// registry: unloading a component removes only its [Record] and
// runtime instance, and a later load of the same ID reattaches to the
// records it left behind, so granted permissions and stored secrets
// survive unload/reload cycles.
//
// The [Registry] is an explicit object rather than process-global
// state, so tests can run several independent registries side by
// side. Lifecycle transitions for one ID are serialized; operations
// on different IDs proceed independently. Reload builds the
// replacement instance while the old one keeps serving and swaps
// atomically, so the ID never disappears from the registry mid-reload.
package component
