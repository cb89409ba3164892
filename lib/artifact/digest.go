// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"encoding/hex"
	"fmt"

	"github.com/zeebo/blake3"
)

// Digest is a 32-byte keyed BLAKE3 digest of a whole artifact. All
// cache addressing and locator digest references use this form.
type Digest [32]byte

// moduleDomainKey is the BLAKE3 key for artifact digests. Domain
// separation keeps these digests distinct from any other BLAKE3 use;
// the value is the ASCII domain name zero-padded to 32 bytes, so it
// reads in hex dumps. Changing it invalidates every existing cache
// entry.
var moduleDomainKey = [32]byte{
	'e', 'n', 'c', 'l', 'a', 'v', 'e', '.', 'a', 'r', 't', 'i', 'f', 'a', 'c', 't',
	'.', 'm', 'o', 'd', 'u', 'l', 'e', 0, 0, 0, 0, 0, 0, 0, 0, 0,
}

// DigestBytes computes the digest of an artifact's bytes.
func DigestBytes(data []byte) Digest {
	hasher, err := blake3.NewKeyed(moduleDomainKey[:])
	if err != nil {
		panic("artifact: BLAKE3 keyed hash initialization failed: " + err.Error())
	}
	hasher.Write(data)
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest
}

// String returns the canonical lowercase hex form.
func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// Short returns the first 12 hex characters, for logs and listings.
func (d Digest) Short() string {
	return d.String()[:12]
}

// MarshalText renders the hex form for JSON, YAML, and CBOR.
func (d Digest) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText parses the hex form.
func (d *Digest) UnmarshalText(text []byte) error {
	parsed, err := ParseDigest(string(text))
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// ParseDigest parses the 64-character hex form of a digest.
func ParseDigest(text string) (Digest, error) {
	var digest Digest
	if len(text) != hex.EncodedLen(len(digest)) {
		return Digest{}, fmt.Errorf("digest must be %d hex characters, got %d", hex.EncodedLen(len(digest)), len(text))
	}
	decoded, err := hex.DecodeString(text)
	if err != nil {
		return Digest{}, fmt.Errorf("invalid digest %q: %w", text, err)
	}
	copy(digest[:], decoded)
	return digest, nil
}
