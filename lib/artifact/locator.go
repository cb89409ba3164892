// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"fmt"
	"net/url"
	"path"
	"path/filepath"
	"strings"
)

// Scheme identifies where a locator points.
type Scheme int

const (
	// SchemeFile is a path on the local filesystem.
	SchemeFile Scheme = iota

	// SchemeHTTPS is a remote artifact fetched over TLS. Plain HTTP is
	// refused: component binaries define what runs in the sandbox, and
	// a cleartext fetch is an invitation to swap them in flight.
	SchemeHTTPS

	// SchemeCache is a digest reference resolved purely from the local
	// cache.
	SchemeCache
)

func (s Scheme) String() string {
	switch s {
	case SchemeFile:
		return "file"
	case SchemeHTTPS:
		return "https"
	case SchemeCache:
		return "cache"
	default:
		return fmt.Sprintf("scheme(%d)", int(s))
	}
}

// Locator names an artifact source: a local path, an HTTPS URL, or a
// cache digest reference ("cache:<hex>").
type Locator struct {
	Scheme Scheme

	// Path is the filesystem path of a file locator.
	Path string

	// URL is the full URL of an https locator.
	URL string

	// Digest addresses a cache locator.
	Digest Digest
}

// ParseLocator parses a locator from its text form. Accepted forms:
// an absolute or relative filesystem path (optionally "file://"
// prefixed), an "https://" URL, or "cache:<hex digest>". Plain
// "http://" is rejected.
func ParseLocator(text string) (Locator, error) {
	switch {
	case text == "":
		return Locator{}, fmt.Errorf("empty artifact locator")

	case strings.HasPrefix(text, "https://"):
		parsed, err := url.Parse(text)
		if err != nil {
			return Locator{}, fmt.Errorf("invalid artifact URL %q: %w", text, err)
		}
		if parsed.Host == "" {
			return Locator{}, fmt.Errorf("artifact URL %q has no host", text)
		}
		return Locator{Scheme: SchemeHTTPS, URL: text}, nil

	case strings.HasPrefix(text, "http://"):
		return Locator{}, fmt.Errorf("refusing cleartext artifact URL %q (use https)", text)

	case strings.HasPrefix(text, "cache:"):
		digest, err := ParseDigest(strings.TrimPrefix(text, "cache:"))
		if err != nil {
			return Locator{}, fmt.Errorf("invalid cache locator %q: %w", text, err)
		}
		return Locator{Scheme: SchemeCache, Digest: digest}, nil

	case strings.HasPrefix(text, "file://"):
		filePath := strings.TrimPrefix(text, "file://")
		if !strings.HasPrefix(filePath, "/") {
			return Locator{}, fmt.Errorf("file locator %q must be absolute", text)
		}
		return Locator{Scheme: SchemeFile, Path: filePath}, nil

	default:
		return Locator{Scheme: SchemeFile, Path: text}, nil
	}
}

// String returns the canonical text form, reparseable by
// ParseLocator.
func (l Locator) String() string {
	switch l.Scheme {
	case SchemeHTTPS:
		return l.URL
	case SchemeCache:
		return "cache:" + l.Digest.String()
	default:
		return l.Path
	}
}

// BaseName returns the artifact's name with any directory and
// extension stripped: the default component ID derivation input.
func (l Locator) BaseName() string {
	switch l.Scheme {
	case SchemeHTTPS:
		parsed, err := url.Parse(l.URL)
		if err != nil {
			return ""
		}
		return trimExtension(path.Base(parsed.Path))
	case SchemeCache:
		return l.Digest.Short()
	default:
		return trimExtension(filepath.Base(l.Path))
	}
}

// MarshalText renders the canonical form for component records.
func (l Locator) MarshalText() ([]byte, error) {
	return []byte(l.String()), nil
}

// UnmarshalText parses the canonical form.
func (l *Locator) UnmarshalText(text []byte) error {
	parsed, err := ParseLocator(string(text))
	if err != nil {
		return err
	}
	*l = parsed
	return nil
}

func trimExtension(base string) string {
	if base == "/" || base == "." {
		return ""
	}
	return strings.TrimSuffix(base, filepath.Ext(base))
}
