// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Enclave-host is the Enclave daemon. It owns all durable state (policy
// documents, secret records, the artifact cache, the audit database),
// runs WASM components inside capability-checked sandboxes, and serves
// the admin protocol on a unix socket restricted to the owning user.
//
// Components never talk to this socket; their only surface is the host
// functions and guarded filesystem the sandbox wires in, every use of
// which passes through the capability engine. The socket carries the
// operator side: lifecycle, policy grants and revocations, secret
// management, dry-run checks, and audit queries.
package main
