// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package artifact fetches, digests, and caches component binaries.
//
// A component is loaded from a [Locator]: a local file path, an HTTPS
// URL, or a digest reference into the local cache. Fetching maps a
// locator to bytes deterministically; every successful fetch lands in
// the content-addressed [Cache], so a digest reference keeps working
// after the original source is gone and repeated loads of the same
// URL cost no network.
//
// Artifacts are addressed by keyed BLAKE3 [Digest]. Cache entries are
// stored compressed (zstd when the ratio justifies it, LZ4 when speed
// wins, raw when neither helps) and verified against their digest on
// every read, so cache corruption surfaces as an error instead of as
// a different component.
package artifact
