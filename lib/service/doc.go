// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package service implements the CBOR-over-Unix-socket protocol that
// connects the enclave CLI to the enclave-host daemon.
//
// The protocol is deliberately small: each connection carries exactly
// one request (an action name plus an optional CBOR parameter payload)
// and one response ({ok, error, data}). CBOR values are
// self-delimiting, so there is no framing layer. The package provides
// both halves:
//
//   - SocketServer: listens on a Unix socket, routes requests to
//     registered ActionFunc handlers, enforces read/write deadlines
//     and a request size cap, and drains in-flight handlers on
//     shutdown.
//   - Client: dials the socket per call, marshals typed parameters,
//     and decodes the response data into a caller-supplied value.
//
// The action names and parameter types that travel over this protocol
// are defined in lib/ipc; this package treats them as opaque bytes.
//
// # Authentication
//
// There is none at the request level, on purpose. The daemon restricts
// the socket file to mode 0600 before accepting connections, so the
// operating system's file permission check is the admission decision:
// anyone who can open the socket is the user who started the daemon.
// Sandboxed components never see this socket at all.
package service
