// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package ipc defines the action names and CBOR-encoded parameter and
// result types for the admin Unix socket protocol. Both
// cmd/enclave-host and cmd/enclave import this package so the wire
// types are defined once rather than mirrored.
//
// Results that are plain domain types (component.Record,
// policy.Document) travel as-is; this package declares only the
// shapes that exist for the wire.
package ipc
