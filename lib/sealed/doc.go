// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed provides age encryption for secret bundle export and
// import. It wraps filippo.io/age for the specific operations the
// secret surface needs: generate x25519 keypairs, seal a component's
// secret map to recipient public keys, and unseal a bundle with a
// private key.
//
// Ciphertext is base64-encoded so bundles travel as plain strings in
// admin responses and paste cleanly into files. The encoding is
// handled internally: callers pass secret values in and get base64
// strings out, and vice versa.
//
// Private keys and decrypted plaintext live in [secret.Buffer] values
// backed by mmap memory outside the Go heap (locked against swap,
// excluded from core dumps, zeroed on Close). Unsealed values
// necessarily surface as ordinary strings at the protocol boundary;
// the buffer keeps the exposure window small.
//
// Key exports:
//
//   - [GenerateKeypair] -- new age x25519 keypair in a secret.Buffer
//   - [Seal] / [Unseal] -- secret map to sealed bundle and back
//   - [Encrypt] / [Decrypt] -- the raw byte layer underneath
//   - [ReadIdentityFile] -- load a private key from an identity file
//   - [ParsePublicKey] / [ParsePrivateKey] -- key validation
//
// Sealing happens daemon-side on export (plaintext never crosses the
// socket outward); unsealing happens client-side on import, where the
// identity file lives.
package sealed
