// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package component

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"

	"github.com/enclave-foundation/enclave/lib/artifact"
	"github.com/enclave-foundation/enclave/lib/clock"
	"github.com/enclave-foundation/enclave/lib/policy"
	"github.com/enclave-foundation/enclave/lib/secret"
)

// Fetcher resolves artifact locators to bytes. *artifact.Fetcher is
// the production implementation.
type Fetcher interface {
	Fetch(ctx context.Context, locator artifact.Locator) (*artifact.Fetched, error)
}

// Host turns validated artifact bytes into running instances. The
// sandbox package provides the production implementation; tests
// substitute fakes.
type Host interface {
	// Validate checks that binary is a well-formed component artifact.
	Validate(binary []byte) error

	// Instantiate produces a running instance for the component. The
	// host enforces the component's memory ceiling and wires resource
	// interception before any guest code runs.
	Instantiate(ctx context.Context, id string, binary []byte) (Instance, error)
}

// Instance is one running component.
type Instance interface {
	// Tools lists the instance's exported functions.
	Tools() []Tool

	// Invoke calls an exported function with raw stack values.
	Invoke(ctx context.Context, function string, args []uint64) ([]uint64, error)

	// Close releases the instance's runtime resources.
	Close(ctx context.Context) error
}

// RegistryConfig wires a registry's collaborators. All fields except
// Log are required.
type RegistryConfig struct {
	Policies *policy.Store
	Secrets  *secret.Store
	Host     Host
	Fetcher  Fetcher

	// Log receives lifecycle events. Nil means slog.Default().
	Log *slog.Logger

	// Clock stamps LoadedAt. Nil means the real clock.
	Clock clock.Clock
}

// Registry tracks loaded components and serializes lifecycle
// transitions per component ID. It is safe for concurrent use.
type Registry struct {
	policies *policy.Store
	secrets  *secret.Store
	host     Host
	fetcher  Fetcher
	log      *slog.Logger
	clock    clock.Clock

	// mu guards entries and locks. Held only for map access, never
	// across fetch, validation, or instantiation.
	mu      sync.Mutex
	entries map[string]*entry
	locks   map[string]*sync.Mutex
}

// entry pairs a component's record with its runtime instance. During
// a reload the record shows Loading while instance still points at the
// serving predecessor.
type entry struct {
	record   Record
	instance Instance
}

// NewRegistry builds a registry from its collaborators.
func NewRegistry(config RegistryConfig) (*Registry, error) {
	switch {
	case config.Policies == nil:
		return nil, fmt.Errorf("registry requires a policy store")
	case config.Secrets == nil:
		return nil, fmt.Errorf("registry requires a secret store")
	case config.Host == nil:
		return nil, fmt.Errorf("registry requires an execution host")
	case config.Fetcher == nil:
		return nil, fmt.Errorf("registry requires an artifact fetcher")
	}
	log := config.Log
	if log == nil {
		log = slog.Default()
	}
	clk := config.Clock
	if clk == nil {
		clk = clock.Real()
	}
	return &Registry{
		policies: config.Policies,
		secrets:  config.Secrets,
		host:     config.Host,
		fetcher:  config.Fetcher,
		log:      log,
		clock:    clk,
		entries:  make(map[string]*entry),
		locks:    make(map[string]*sync.Mutex),
	}, nil
}

// LoadOptions adjusts a Load call.
type LoadOptions struct {
	// ID overrides the identity derived from the locator.
	ID string

	// Replace reloads in place when the ID is already loaded instead
	// of failing with AlreadyLoadedError.
	Replace bool
}

// Load fetches, validates, and instantiates a component, attaching it
// to the policy document and secret record for its ID (created empty
// on first-ever load). A failed load leaves no trace in the registry.
// Cancelling ctx abandons the load; the ID simply never reaches Ready.
func (r *Registry) Load(ctx context.Context, locator artifact.Locator, opts LoadOptions) (Record, error) {
	id := opts.ID
	if id == "" {
		derived, err := DeriveID(locator)
		if err != nil {
			return Record{}, err
		}
		id = derived
	} else if err := ValidateID(id); err != nil {
		return Record{}, fmt.Errorf("invalid component ID %q: %w", id, err)
	}

	lock := r.lifecycleLock(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	if existing, loaded := r.entries[id]; loaded {
		r.mu.Unlock()
		if !opts.Replace {
			return Record{}, &AlreadyLoadedError{ID: id}
		}
		return r.replaceLocked(ctx, existing, locator)
	}
	fresh := &entry{record: Record{ID: id, Locator: locator, State: StateLoading}}
	r.entries[id] = fresh
	r.mu.Unlock()

	record, err := r.build(ctx, fresh, locator)
	if err != nil {
		r.mu.Lock()
		delete(r.entries, id)
		r.mu.Unlock()
		return Record{}, err
	}
	r.log.Info("component loaded",
		"component", id,
		"locator", locator.String(),
		"digest", record.Digest.Short(),
		"tools", len(record.Tools))
	return record, nil
}

// Reload replaces a loaded component's instance with one built from
// locator (zero value: the component's current locator). The old
// instance keeps serving until the replacement is ready; on failure
// it stays in place and the error reports why the new one was
// rejected. The ID never leaves the registry.
func (r *Registry) Reload(ctx context.Context, id string, locator artifact.Locator) (Record, error) {
	if err := ValidateID(id); err != nil {
		return Record{}, fmt.Errorf("invalid component ID %q: %w", id, err)
	}

	lock := r.lifecycleLock(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	existing, loaded := r.entries[id]
	r.mu.Unlock()
	if !loaded {
		return Record{}, &NotFoundError{ID: id}
	}
	return r.replaceLocked(ctx, existing, locator)
}

// Unload releases a component's instance and removes its Record. The
// component's policy document and secret record are preserved for a
// future load of the same ID.
func (r *Registry) Unload(ctx context.Context, id string) error {
	if err := ValidateID(id); err != nil {
		return fmt.Errorf("invalid component ID %q: %w", id, err)
	}

	lock := r.lifecycleLock(id)
	lock.Lock()
	defer lock.Unlock()

	r.mu.Lock()
	existing, loaded := r.entries[id]
	if !loaded {
		r.mu.Unlock()
		return &NotFoundError{ID: id}
	}
	delete(r.entries, id)
	existing.record.State = StateUnloaded
	instance := existing.instance
	r.mu.Unlock()

	r.log.Info("component unloaded", "component", id)
	if instance == nil {
		return nil
	}
	if err := instance.Close(ctx); err != nil {
		return fmt.Errorf("closing instance of component %q: %w", id, err)
	}
	return nil
}

// Get returns a snapshot of one component's record.
func (r *Registry) Get(id string) (Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	existing, loaded := r.entries[id]
	if !loaded {
		return Record{}, &NotFoundError{ID: id}
	}
	return existing.record.clone(), nil
}

// List returns a snapshot of all registered components, sorted by ID.
func (r *Registry) List() []Record {
	r.mu.Lock()
	records := make([]Record, 0, len(r.entries))
	for _, existing := range r.entries {
		records = append(records, existing.record.clone())
	}
	r.mu.Unlock()

	sort.Slice(records, func(i, j int) bool { return records[i].ID < records[j].ID })
	return records
}

// Tools returns the exported functions of a loaded component.
func (r *Registry) Tools(id string) ([]Tool, error) {
	record, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	return record.Tools, nil
}

// Invoke calls an exported function of a loaded component. During a
// reload the previous instance serves the call.
func (r *Registry) Invoke(ctx context.Context, id, function string, args []uint64) ([]uint64, error) {
	r.mu.Lock()
	existing, loaded := r.entries[id]
	var instance Instance
	if loaded {
		instance = existing.instance
	}
	r.mu.Unlock()

	if instance == nil {
		return nil, &NotFoundError{ID: id}
	}
	return instance.Invoke(ctx, function, args)
}

// Close unloads every component. Used at daemon shutdown.
func (r *Registry) Close(ctx context.Context) error {
	r.mu.Lock()
	ids := make([]string, 0, len(r.entries))
	for id := range r.entries {
		ids = append(ids, id)
	}
	r.mu.Unlock()

	var errs []error
	for _, id := range ids {
		if err := r.Unload(ctx, id); err != nil && !IsNotFound(err) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// build runs the fetch, validate, attach, instantiate sequence for a
// load or reload. Caller holds the component's lifecycle lock. On
// success the entry is published Ready; the caller handles failure
// cleanup, so a broken load can either vanish (first load) or fall
// back to the previous instance (reload).
func (r *Registry) build(ctx context.Context, target *entry, locator artifact.Locator) (Record, error) {
	id := target.record.ID

	fetched, err := r.fetcher.Fetch(ctx, locator)
	if err != nil {
		return Record{}, err
	}
	if err := r.host.Validate(fetched.Data); err != nil {
		return Record{}, &InvalidArtifactError{ID: id, Locator: locator.String(), Err: err}
	}

	// Attach to the durable records before any guest code runs. A
	// malformed policy document refuses the load; the component must
	// not reach Ready with rules nobody can read.
	if _, err := r.policies.Ensure(id); err != nil {
		return Record{}, err
	}
	if err := r.secrets.Ensure(id); err != nil {
		return Record{}, err
	}

	instance, err := r.host.Instantiate(ctx, id, fetched.Data)
	if err != nil {
		return Record{}, err
	}

	record := Record{
		ID:       id,
		Locator:  locator,
		Digest:   fetched.Digest,
		State:    StateReady,
		LoadedAt: r.clock.Now().UTC(),
		Tools:    instance.Tools(),
	}
	r.mu.Lock()
	target.record = record
	target.instance = instance
	r.mu.Unlock()
	return record.clone(), nil
}

// replaceLocked swaps a loaded component's instance for one built from
// locator. Caller holds the component's lifecycle lock.
func (r *Registry) replaceLocked(ctx context.Context, existing *entry, locator artifact.Locator) (Record, error) {
	r.mu.Lock()
	previous := existing.record
	previousInstance := existing.instance
	if locator == (artifact.Locator{}) {
		locator = previous.Locator
	}
	existing.record.State = StateLoading
	r.mu.Unlock()

	record, err := r.build(ctx, existing, locator)
	if err != nil {
		r.mu.Lock()
		existing.record = previous
		r.mu.Unlock()
		return Record{}, err
	}

	r.log.Info("component reloaded",
		"component", previous.ID,
		"locator", locator.String(),
		"digest", record.Digest.Short())
	if previousInstance != nil {
		if closeErr := previousInstance.Close(ctx); closeErr != nil {
			r.log.Warn("closing replaced instance",
				"component", previous.ID,
				"error", closeErr)
		}
	}
	return record, nil
}

// lifecycleLock returns the mutex serializing lifecycle transitions
// for one component ID.
func (r *Registry) lifecycleLock(id string) *sync.Mutex {
	r.mu.Lock()
	defer r.mu.Unlock()
	lock, ok := r.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		r.locks[id] = lock
	}
	return lock
}
