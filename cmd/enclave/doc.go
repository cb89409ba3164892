// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Enclave is the admin CLI for an enclave-host daemon. It provides
// subcommands for component lifecycle (component), capability grants
// (policy, check), secret management (secret), and the decision log
// (audit), all over the daemon's owner-only unix socket.
package main
