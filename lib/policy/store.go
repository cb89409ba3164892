// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package policy

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Store is a file-backed policy store. Each component's document lives
// at <dir>/<id>.yaml, world-unreadable. Loads are served from an
// in-memory cache invalidated by file modification time and size, so
// documents edited outside the store (an operator with a text editor)
// are picked up on the next load without a restart.
//
// Loaded documents are published atomically and shared between
// readers: callers must not modify them. All mutation goes through
// Mutate, which serializes writers per component and re-reads the file
// before applying the change.
type Store struct {
	dir string

	// cache maps component ID to *cacheEntry.
	cache sync.Map

	// mu guards writeLocks.
	mu         sync.Mutex
	writeLocks map[string]*sync.Mutex
}

// cacheEntry records the file identity a document was loaded from. A
// stat mismatch on either field invalidates the entry. exists=false
// caches the absence of a file so repeated loads of unconfigured
// components stay cheap.
type cacheEntry struct {
	modTime time.Time
	size    int64
	exists  bool
	doc     *Document
}

// NewStore opens (creating if needed) the policy directory. The
// directory is created owner-only: policy documents may embed fixed
// environment values.
func NewStore(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, fmt.Errorf("creating policy directory %s: %w", dir, err)
	}
	return &Store{
		dir:        dir,
		writeLocks: make(map[string]*sync.Mutex),
	}, nil
}

// Dir returns the store's root directory.
func (s *Store) Dir() string { return s.dir }

// Load returns the policy document for a component. A component with
// no document on disk gets an empty deny-everything document; this is
// not an error. A document that exists but cannot be parsed or
// validated returns a *MalformedError.
func (s *Store) Load(id string) (*Document, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	info, statErr := os.Stat(path)
	if statErr != nil && !errors.Is(statErr, fs.ErrNotExist) {
		return nil, fmt.Errorf("stat policy document %s: %w", path, statErr)
	}

	if cached, ok := s.cache.Load(id); ok {
		entry := cached.(*cacheEntry)
		if statErr != nil && !entry.exists {
			return entry.doc, nil
		}
		if statErr == nil && entry.exists && entry.modTime.Equal(info.ModTime()) && entry.size == info.Size() {
			return entry.doc, nil
		}
	}

	if statErr != nil {
		doc := NewDocument()
		s.cache.Store(id, &cacheEntry{doc: doc})
		return doc, nil
	}

	doc, entry, err := s.read(id, path)
	if err != nil {
		return nil, err
	}
	s.cache.Store(id, entry)
	return doc, nil
}

// read loads and validates one document from disk. The stat is taken
// from the open file handle so the cached identity always describes
// the bytes actually read, even if the path is renamed over mid-read.
func (s *Store) read(id, path string) (*Document, *cacheEntry, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("opening policy document %s: %w", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, nil, fmt.Errorf("stat policy document %s: %w", path, err)
	}
	data, err := io.ReadAll(file)
	if err != nil {
		return nil, nil, fmt.Errorf("reading policy document %s: %w", path, err)
	}

	var doc Document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, nil, &MalformedError{ID: id, Path: path, Err: err}
	}
	if err := doc.normalize(); err != nil {
		return nil, nil, &MalformedError{ID: id, Path: path, Err: err}
	}
	if err := doc.Validate(); err != nil {
		return nil, nil, &MalformedError{ID: id, Path: path, Err: err}
	}

	return &doc, &cacheEntry{
		modTime: info.ModTime(),
		size:    info.Size(),
		exists:  true,
		doc:     &doc,
	}, nil
}

// Save validates and atomically writes a component's document, then
// publishes it to the cache. Most callers want Mutate instead, which
// handles the read-modify-write cycle.
func (s *Store) Save(id string, doc *Document) error {
	path, err := s.path(id)
	if err != nil {
		return err
	}

	lock := s.writeLock(id)
	lock.Lock()
	defer lock.Unlock()

	return s.saveLocked(id, path, doc)
}

// Mutate applies fn to a copy of the component's current document and,
// if fn succeeds, validates and persists the result. Writers for the
// same component are serialized; the document fn receives is private
// to the call, so fn may modify it freely. The persisted document is
// returned.
func (s *Store) Mutate(id string, fn func(*Document) error) (*Document, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	lock := s.writeLock(id)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	doc := current.Clone()
	if err := fn(doc); err != nil {
		return nil, err
	}
	if err := s.saveLocked(id, path, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// saveLocked writes and publishes a document. Caller holds the
// component's write lock.
func (s *Store) saveLocked(id, path string, doc *Document) error {
	if err := doc.normalize(); err != nil {
		return err
	}
	if err := doc.Validate(); err != nil {
		return err
	}

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encoding policy document for %q: %w", id, err)
	}

	// CreateTemp creates the file 0600, so a document carrying fixed
	// environment values is never world-readable, even transiently.
	tmpFile, err := os.CreateTemp(s.dir, "policy-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp policy file: %w", err)
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
		return fmt.Errorf("writing policy document for %q: %w", id, err)
	}
	if err := tmpFile.Close(); err != nil {
		return fmt.Errorf("closing temp policy file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming policy document to %s: %w", path, err)
	}
	success = true

	entry := &cacheEntry{exists: true, doc: doc}
	if info, err := os.Stat(path); err == nil {
		entry.modTime = info.ModTime()
		entry.size = info.Size()
	}
	s.cache.Store(id, entry)
	return nil
}

// Ensure materializes the component's document on disk if none exists
// yet, so the durable record outlives the in-memory default. The
// current document is returned either way; an existing document that
// fails to parse surfaces as *MalformedError.
func (s *Store) Ensure(id string) (*Document, error) {
	path, err := s.path(id)
	if err != nil {
		return nil, err
	}

	lock := s.writeLock(id)
	lock.Lock()
	defer lock.Unlock()

	current, err := s.Load(id)
	if err != nil {
		return nil, err
	}
	if _, statErr := os.Stat(path); statErr == nil {
		return current, nil
	}
	doc := current.Clone()
	if err := s.saveLocked(id, path, doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// IDs returns the component IDs that have a policy document on disk,
// sorted. Components without documents (implicitly deny-everything)
// are not listed.
func (s *Store) IDs() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("listing policy directory %s: %w", s.dir, err)
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

// path maps a component ID to its document path. Full ID validation
// belongs to the component registry; the store only refuses IDs that
// would escape its directory.
func (s *Store) path(id string) (string, error) {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return "", fmt.Errorf("invalid component ID %q", id)
	}
	return filepath.Join(s.dir, id+".yaml"), nil
}
