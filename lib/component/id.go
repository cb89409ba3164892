// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package component

import (
	"fmt"
	"strings"

	"github.com/enclave-foundation/enclave/lib/artifact"
)

// MaxIDLength bounds component IDs. IDs name policy and secret files
// on disk and appear in every audit row, so they stay short.
const MaxIDLength = 64

// idChars is the set of characters permitted in component IDs:
// lowercase a-z, 0-9, and the symbols . _ -. Checked via a lookup
// table for O(1) per-character validation.
var idChars [256]bool

func init() {
	for c := 'a'; c <= 'z'; c++ {
		idChars[c] = true
	}
	for c := '0'; c <= '9'; c++ {
		idChars[c] = true
	}
	idChars['.'] = true
	idChars['_'] = true
	idChars['-'] = true
}

// ValidateID checks that a component ID is safe to use as both a
// registry key and a filename for the component's policy and secret
// records.
//
// Rules enforced:
//   - Non-empty, at most MaxIDLength characters
//   - Only lowercase a-z, 0-9, ., _, -
//   - Starts with a letter or digit (no hidden files, no "-x" that
//     reads as a flag in shell commands)
//   - Not "." or "..", and no ".." anywhere (path traversal)
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("component ID is empty")
	}
	if len(id) > MaxIDLength {
		return fmt.Errorf("component ID is %d characters, maximum is %d", len(id), MaxIDLength)
	}
	for i := 0; i < len(id); i++ {
		if !idChars[id[i]] {
			return fmt.Errorf("invalid character %q at position %d (allowed: a-z, 0-9, ., _, -)", id[i], i)
		}
	}
	first := id[0]
	if !(first >= 'a' && first <= 'z') && !(first >= '0' && first <= '9') {
		return fmt.Errorf("component ID must start with a letter or digit")
	}
	if strings.Contains(id, "..") {
		return fmt.Errorf("component ID contains '..'")
	}
	return nil
}

// DeriveID derives a component ID from an artifact locator: the
// artifact's base name without extension, lowercased, with runs of
// disallowed characters collapsed to single dashes. "WebFetch v2.wasm"
// becomes "webfetch-v2". Fails if nothing usable remains.
func DeriveID(locator artifact.Locator) (string, error) {
	base := strings.ToLower(locator.BaseName())

	var builder strings.Builder
	builder.Grow(len(base))
	dash := false
	for i := 0; i < len(base); i++ {
		c := base[i]
		if idChars[c] {
			builder.WriteByte(c)
			dash = false
			continue
		}
		if builder.Len() > 0 && !dash {
			builder.WriteByte('-')
			dash = true
		}
	}
	id := strings.Trim(builder.String(), "-.")
	if len(id) > MaxIDLength {
		id = strings.TrimRight(id[:MaxIDLength], "-.")
	}

	if err := ValidateID(id); err != nil {
		return "", fmt.Errorf("cannot derive a component ID from %q: %w", locator.String(), err)
	}
	return id, nil
}
