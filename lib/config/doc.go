// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides YAML configuration loading for enclave-host.
//
// Configuration is loaded from a single file specified by either the
// ENCLAVE_CONFIG environment variable (via [Load]) or a --config flag
// (via [LoadFile]); with neither set, [Load] returns the compiled-in
// defaults. There is no ~/.config discovery and no automatic file
// search, and individual environment variables never override file
// values.
//
// Variable expansion is performed on path fields after loading:
// ${HOME}, ${ENCLAVE_ROOT}, and ${VAR:-default} patterns are
// expanded, so a file that relocates paths.root can express the
// derived paths once.
//
// Key exports:
//
//   - [Config] -- master struct with Paths, Log, Fetch, Audit, Sandbox
//   - [Default] -- returns a Config with single-host defaults
//   - [Load] and [LoadFile] -- the two entry points for loading
//
// This package depends on no other enclave packages.
package config
