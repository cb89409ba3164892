// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"strings"
	"testing"
)

func TestDigestBytes(t *testing.T) {
	first := DigestBytes([]byte("component-a"))
	second := DigestBytes([]byte("component-a"))
	other := DigestBytes([]byte("component-b"))

	if first != second {
		t.Error("same bytes produced different digests")
	}
	if first == other {
		t.Error("different bytes produced the same digest")
	}
	if len(first.String()) != 64 {
		t.Errorf("hex form is %d characters, want 64", len(first.String()))
	}
	if !strings.HasPrefix(first.String(), first.Short()) {
		t.Error("Short() is not a prefix of String()")
	}
}

func TestParseDigest(t *testing.T) {
	original := DigestBytes([]byte("round-trip"))

	parsed, err := ParseDigest(original.String())
	if err != nil {
		t.Fatalf("parsing valid digest: %v", err)
	}
	if parsed != original {
		t.Errorf("round trip changed the digest: %s != %s", parsed, original)
	}

	for _, text := range []string{"", "abc", strings.Repeat("g", 64), strings.Repeat("ab", 33)} {
		if _, err := ParseDigest(text); err == nil {
			t.Errorf("ParseDigest(%q) succeeded, want error", text)
		}
	}
}
