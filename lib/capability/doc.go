// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package capability decides whether a component may touch a resource.
//
// The core is [Evaluate], a pure function: given a policy document, a
// secret map, an inherited environment snapshot, and one [Request], it
// returns a [Result]. Same inputs, same decision; no clocks, no
// ordering effects. Absence of a matching rule is denial: the model
// is allow-list only, with no deny entries and no globs.
//
// [Engine] is the wired form the host uses: it pulls the component's
// current policy and secrets from their stores on every check, so
// grants and revocations take effect on the next decision without a
// component restart. An [Observer] sees every decision, which is how
// the audit log hangs off the engine without the engine knowing about
// storage.
//
// Environment lookups are resolutions, not booleans: a visible key
// resolves through policy fixed value, then secret store, then
// inherited process environment, and "no value anywhere" is a valid
// outcome distinct from "not visible".
package capability
