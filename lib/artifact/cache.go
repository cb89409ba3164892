// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package artifact

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// Cache entry format: a fixed header followed by the (possibly
// compressed) payload.
//
//	offset 0  magic "ENCA" (4 bytes)
//	offset 4  format version (1 byte)
//	offset 5  compression tag (1 byte)
//	offset 6  uncompressed size, big-endian (8 bytes)
//	offset 14 payload
const (
	cacheMagic         = "ENCA"
	cacheFormatVersion = 1
	cacheHeaderSize    = 14
)

// Cache is a content-addressed store of fetched artifacts, sharded
// two levels deep by digest prefix. Entries are immutable: a digest
// either resolves to exactly the bytes that produced it or to an
// error. Get re-digests after decompression, so a flipped bit on disk
// cannot impersonate an artifact.
type Cache struct {
	root string
}

// NewCache opens (creating if needed) a cache directory.
func NewCache(root string) (*Cache, error) {
	if err := os.MkdirAll(root, 0o700); err != nil {
		return nil, fmt.Errorf("creating artifact cache %s: %w", root, err)
	}
	return &Cache{root: root}, nil
}

// Root returns the cache's root directory.
func (c *Cache) Root() string { return c.root }

// Put stores an artifact and returns its digest. Storing bytes that
// are already cached is a cheap no-op.
func (c *Cache) Put(data []byte) (Digest, error) {
	digest := DigestBytes(data)
	path := c.entryPath(digest)

	if _, err := os.Stat(path); err == nil {
		return digest, nil
	}

	payload, tag := compress(data)

	header := make([]byte, cacheHeaderSize)
	copy(header, cacheMagic)
	header[4] = cacheFormatVersion
	header[5] = byte(tag)
	binary.BigEndian.PutUint64(header[6:], uint64(len(data)))

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return Digest{}, fmt.Errorf("creating cache shard directory: %w", err)
	}

	tmpFile, err := os.CreateTemp(c.root, "entry-*.tmp")
	if err != nil {
		return Digest{}, fmt.Errorf("creating temp cache entry: %w", err)
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(header); err != nil {
		tmpFile.Close()
		return Digest{}, fmt.Errorf("writing cache entry header: %w", err)
	}
	if _, err := tmpFile.Write(payload); err != nil {
		tmpFile.Close()
		return Digest{}, fmt.Errorf("writing cache entry payload: %w", err)
	}
	if err := tmpFile.Close(); err != nil {
		return Digest{}, fmt.Errorf("closing temp cache entry: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return Digest{}, fmt.Errorf("renaming cache entry to %s: %w", path, err)
	}
	success = true
	return digest, nil
}

// Get returns the artifact bytes for a digest. The returned bytes
// always re-digest to the requested value; anything else (truncation,
// corruption, a tampered entry) is an error.
func (c *Cache) Get(digest Digest) ([]byte, error) {
	path := c.entryPath(digest)
	raw, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("artifact %s not in cache", digest.Short())
		}
		return nil, fmt.Errorf("reading cache entry %s: %w", digest.Short(), err)
	}

	if len(raw) < cacheHeaderSize || string(raw[:4]) != cacheMagic {
		return nil, fmt.Errorf("cache entry %s: malformed header", digest.Short())
	}
	if raw[4] != cacheFormatVersion {
		return nil, fmt.Errorf("cache entry %s: unsupported format version %d", digest.Short(), raw[4])
	}
	tag := compressionTag(raw[5])
	size := binary.BigEndian.Uint64(raw[6:14])

	data, err := decompress(raw[cacheHeaderSize:], tag, int(size))
	if err != nil {
		return nil, fmt.Errorf("cache entry %s: %w", digest.Short(), err)
	}
	if DigestBytes(data) != digest {
		return nil, fmt.Errorf("cache entry %s: content does not match digest", digest.Short())
	}
	return data, nil
}

// Has reports whether a digest is cached.
func (c *Cache) Has(digest Digest) bool {
	_, err := os.Stat(c.entryPath(digest))
	return err == nil
}

// Digests returns every cached digest, sorted by hex form. Entries
// with unparseable names are skipped.
func (c *Cache) Digests() ([]Digest, error) {
	var digests []Digest
	err := filepath.WalkDir(c.root, func(path string, entry fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".art") {
			return nil
		}
		digest, parseErr := ParseDigest(strings.TrimSuffix(entry.Name(), ".art"))
		if parseErr != nil {
			return nil
		}
		digests = append(digests, digest)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walking artifact cache: %w", err)
	}
	sort.Slice(digests, func(i, j int) bool {
		return digests[i].String() < digests[j].String()
	})
	return digests, nil
}

// entryPath returns the sharded path for a digest.
func (c *Cache) entryPath(digest Digest) string {
	hexForm := digest.String()
	return filepath.Join(c.root, hexForm[:2], hexForm[2:4], hexForm+".art")
}
