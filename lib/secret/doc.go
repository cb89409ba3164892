// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package secret holds component secrets at rest and in memory.
//
// [Store] is the durable side: one flat YAML record per component,
// owner-readable only from creation, cached by file identity so
// out-of-band provisioning is picked up without a restart. Records
// hold environment-variable-shaped keys; the permission engine
// resolves a component's visible environment against them.
//
// [Buffer] is the in-memory side, for secret material that passes
// through the host without belonging to a record: age identity keys
// for sealed bundle export, values captured at an interactive prompt.
// It allocates outside the Go heap via mmap(MAP_ANONYMOUS), locks the
// pages into RAM via mlock, and excludes them from core dumps via
// madvise(MADV_DONTDUMP); Close zeroes, unlocks, and unmaps. The
// garbage collector never sees the region, so it cannot copy or
// relocate the secret.
//
// Depends on gopkg.in/yaml.v3 and golang.org/x/sys/unix. No other
// Enclave dependencies.
package secret
