// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package secret

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"
)

// Store is a file-backed secret store. Each component's record lives
// at <dir>/<id>.yaml as a flat key-to-value map, owner-readable only
// from the moment it is created. Keys are environment variable names;
// the permission engine resolves a component's visible environment
// against this store.
//
// Reads are served from an in-memory cache invalidated by file
// modification time and size, so records edited or provisioned outside
// the store become visible on the next Get without a restart. Maps
// returned by Get are shared between readers and must not be modified;
// use Export for a private copy.
type Store struct {
	dir string

	// cache maps component ID to *recordEntry.
	cache sync.Map

	// mu guards writeLocks.
	mu         sync.Mutex
	writeLocks map[string]*sync.Mutex
}

// recordEntry pins the file identity a record was parsed from. A stat
// mismatch on either field invalidates the entry. exists=false caches
// the absence of a record.
type recordEntry struct {
	modTime time.Time
	size    int64
	exists  bool
	values  map[string]string
}

// keyPattern is the accepted secret key shape: environment variable
// names.
var keyPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// NewStore opens (creating if needed) the secret directory. The
// directory itself is owner-only, a second fence in front of the 0600
// record files.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating secret directory %s: %w", dir, err)
	}
	return &Store{
		dir:        dir,
		writeLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// Get returns a component's secrets. A component with no record on
// disk gets an empty map; this is not an error. A record that exists
// but cannot be read or parsed returns a *IOError. The returned map is
// shared with other readers and must not be modified.
func (s *Store) Get(id string) (map[string]string, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	info, statErr := os.Stat(path)
	if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
		return nil, &IOError{ID: id, Path: path, Err: statErr}
	}

	if cached, ok := s.cache.Load(id); ok {
		entry := cached.(*recordEntry)
		if statErr != nil && !entry.exists {
			return entry.values, nil
		}
		if statErr == nil && entry.exists && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
			return entry.values, nil
		}
	}

	if statErr != nil {
		values := map[string]string{}
		s.cache.Store(id, &recordEntry{values: values})
		return values, nil
	}

	values, entry, err := s.read(id, path)
	if err != nil {
		return nil, err
	}
	s.cache.Store(id, entry)
	return values, nil
}

// read parses one record from disk. The stat comes from the open file
// handle so the cached identity always describes the bytes actually
// parsed.
func (s *Store) read(id, path string) (map[string]string, *recordEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, &IOError{ID: id, Path: path, Err: err}
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, nil, &IOError{ID: id, Path: path, Err: err}
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, &IOError{ID: id, Path: path, Err: err}
	}

	values, err := parseRecord(data)
	if err != nil {
		return nil, nil, &IOError{ID: id, Path: path, Err: err}
	}

	return values, &recordEntry{
		modTime: info.ModTime(),
		size:    info.Size(),
		exists:  true,
		values:  values,
	}, nil
}

// Set stores one secret, creating the record if the component has
// none. The record file is 0600 from creation.
func (s *Store) Set(id, key, value string) error {
	if !keyPattern.MatchString(key) {
		return fmt.Errorf("invalid secret key %q (keys are environment variable names)", key)
	}
	return s.update(id, func(values map[string]string) {
		values[key] = value
	})
}

// Delete removes one secret. Deleting a key the component does not
// hold is a no-op. Deleting the last key removes the record file
// entirely, so an emptied component leaves no trace on disk.
func (s *Store) Delete(id, key string) error {
	return s.update(id, func(values map[string]string) {
		delete(values, key)
	})
}

// Ensure creates an empty 0600 record for a component that has none.
// Used when a component is first attached so the record exists with
// the right permissions before any value lands in it.
func (s *Store) Ensure(id string) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	lock := s.writeLock(id)
	lock.Lock()
	defer lock.Unlock()

	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return &IOError{ID: id, Path: path, Err: err}
	}
	return s.writeLocked(id, path, map[string]string{})
}

// Keys returns a component's secret key names, sorted. Values are not
// exposed; this backs listings that must never print secret material.
func (s *Store) Keys(id string) ([]string, error) {
	values, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	keys := make([]string, 0, len(values))
	for key := range values {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

// Export returns a private copy of a component's secrets, safe for the
// caller to hold or modify. Used for sealed bundle export.
func (s *Store) Export(id string) (map[string]string, error) {
	values, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	return maps.Clone(values), nil
}

// Import merges values into a component's record, replacing existing
// keys. Used for sealed bundle import.
func (s *Store) Import(id string, imported map[string]string) error {
	for key := range imported {
		if !keyPattern.MatchString(key) {
			return fmt.Errorf("invalid secret key %q in import", key)
		}
	}
	return s.update(id, func(values map[string]string) {
		maps.Copy(values, imported)
	})
}

// IDs returns the component IDs that have a record on disk, sorted.
func (s *Store) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing secret directory %s: %w", s.dir, err)
	}
	var ids []string
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".yaml") {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, ".yaml"))
	}
	sort.Strings(ids)
	return ids, nil
}

// update applies fn to a private copy of the component's current
// values and persists the result. Writers for the same component are
// serialized. An update that empties the record deletes the file.
func (s *Store) update(id string, fn func(map[string]string)) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	lock := s.writeLock(id)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Get(id)
	if err != nil {
		return err
	}
	values := maps.Clone(current)
	if values == nil {
		values = map[string]string{}
	}
	fn(values)

	if maps.Equal(values, current) {
		return nil
	}
	if len(values) == 0 {
		if err := os.Remove(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return &IOError{ID: id, Path: path, Err: err}
		}
		s.cache.Store(id, &recordEntry{values: map[string]string{}})
		return nil
	}
	return s.writeLocked(id, path, values)
}

// writeLocked atomically writes and publishes a record. Caller holds
// the component's write lock.
func (s *Store) writeLocked(id, path string, values map[string]string) error {
	data, err := encodeRecord(values)
	if err != nil {
		return &IOError{ID: id, Path: path, Err: err}
	}

	// CreateTemp creates the file 0600: the record is owner-only from
	// the first byte written, not chmodded after the fact.
	tmpFile, err := os.CreateTemp(s.dir, "secret-*.tmp")
	if err != nil {
		return &IOError{ID: id, Path: path, Err: err}
	}
	tmpPath := tmpFile.Name()

	success := false
	defer func() {
		if !success {
			os.Remove(tmpPath)
		}
	}()

	if _, err := tmpFile.Write(data); err != nil {
		tmpFile.Close()
		return &IOError{ID: id, Path: path, Err: err}
	}
	if err := tmpFile.Close(); err != nil {
		return &IOError{ID: id, Path: path, Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return &IOError{ID: id, Path: path, Err: err}
	}
	success = true

	entry := &recordEntry{exists: true, values: values}
	if info, err := os.Stat(path); err == nil {
		entry.modTime = info.ModTime()
		entry.size = info.Size()
	}
	s.cache.Store(id, entry)
	return nil
}

// writeLock returns the mutex serializing writers for one component.
func (s *Store) writeLock(id string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	lock, ok := s.writeLocks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.writeLocks[id] = lock
	}
	return lock
}

// path maps a component ID to its record path, refusing IDs that would
// escape the secret directory.
func (s *Store) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid component ID %q", id)
	}
	return filepath.Join(s.dir, id+".yaml"), nil
}
