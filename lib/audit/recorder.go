// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package audit

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/enclave-foundation/enclave/lib/capability"
	"github.com/enclave-foundation/enclave/lib/clock"
	"github.com/enclave-foundation/enclave/lib/sqlitepool"
)

// maxBatch caps how many queued entries one transaction commits.
const maxBatch = 64

// Config configures a Recorder.
type Config struct {
	// Pool is the audit database connection pool. Required. The
	// recorder borrows connections; it does not close the pool.
	Pool *sqlitepool.Pool

	// Log receives recorder diagnostics. Nil discards them.
	Log *slog.Logger

	// Clock stamps entries. Nil means the real clock.
	Clock clock.Clock

	// BufferSize is the queue capacity. Decisions observed while the
	// queue is full are dropped. Defaults to 1024.
	BufferSize int
}

// Recorder persists capability decisions. It implements
// capability.Observer: ObserveDecision enqueues and returns
// immediately, and a background goroutine writes queued entries in
// batched transactions. The decision path never waits on the disk.
type Recorder struct {
	pool  *sqlitepool.Pool
	log   *slog.Logger
	clock clock.Clock

	messages  chan message
	quit      chan struct{}
	done      chan struct{}
	closeOnce sync.Once

	recorded atomic.Uint64
	dropped  atomic.Uint64
}

// message is one queue element: either an entry to persist or a flush
// marker whose channel closes once everything queued before it has
// been committed.
type message struct {
	entry Entry
	flush chan struct{}
}

// NewRecorder starts a recorder writing to the given pool.
func NewRecorder(cfg Config) (*Recorder, error) {
	if cfg.Pool == nil {
		return nil, errors.New("audit: pool is required")
	}
	log := cfg.Log
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}
	clk := cfg.Clock
	if clk == nil {
		clk = clock.Real()
	}
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 1024
	}

	r := &Recorder{
		pool:     cfg.Pool,
		log:      log,
		clock:    clk,
		messages: make(chan message, bufferSize),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go r.run()
	return r, nil
}

// ObserveDecision queues one decision for persistence. Never blocks:
// if the queue is full the entry is dropped and counted.
func (r *Recorder) ObserveDecision(componentID string, request capability.Request, result capability.Result) {
	entry := Entry{
		Time:      r.clock.Now().UTC(),
		Component: componentID,
		Kind:      request.Kind.String(),
		Resource:  request.Resource(),
		Decision:  result.Decision.String(),
	}
	if result.Decision == capability.Allow {
		entry.Rule = result.MatchedRule()
	} else {
		entry.Reason = result.Reason.String()
	}

	select {
	case r.messages <- message{entry: entry}:
	default:
		r.dropped.Add(1)
	}
}

// Sync blocks until every entry queued before the call has been
// committed. Returns immediately once the recorder is closed.
func (r *Recorder) Sync() {
	flushed := make(chan struct{})
	select {
	case r.messages <- message{flush: flushed}:
	case <-r.done:
		return
	}
	select {
	case <-flushed:
	case <-r.done:
	}
}

// Stats returns the lifetime counters.
func (r *Recorder) Stats() Stats {
	return Stats{
		Recorded: r.recorded.Load(),
		Dropped:  r.dropped.Load(),
	}
}

// Close commits everything still queued and stops the writer.
// Decisions observed after Close are lost. Safe to call twice.
func (r *Recorder) Close() error {
	r.closeOnce.Do(func() { close(r.quit) })
	<-r.done
	return nil
}

// run is the writer loop: one blocking receive, then whatever else is
// already queued, all committed together. On quit it drains the queue
// before exiting.
func (r *Recorder) run() {
	defer close(r.done)
	for {
		select {
		case msg := <-r.messages:
			r.flush(msg)
		case <-r.quit:
			for {
				select {
				case msg := <-r.messages:
					r.flush(msg)
				default:
					return
				}
			}
		}
	}
}

// flush commits a batch beginning with first, then releases any flush
// markers the batch contained.
func (r *Recorder) flush(first message) {
	batch := make([]message, 1, maxBatch)
	batch[0] = first
collect:
	for len(batch) < maxBatch {
		select {
		case msg := <-r.messages:
			batch = append(batch, msg)
		default:
			break collect
		}
	}

	entries := make([]Entry, 0, len(batch))
	for _, msg := range batch {
		if msg.flush == nil {
			entries = append(entries, msg.entry)
		}
	}

	if len(entries) > 0 {
		if err := r.insert(entries); err != nil {
			r.log.Error("audit write failed", "error", err, "entries", len(entries))
		} else {
			r.recorded.Add(uint64(len(entries)))
		}
	}

	for _, msg := range batch {
		if msg.flush != nil {
			close(msg.flush)
		}
	}
}

// insert writes a batch in one immediate transaction.
func (r *Recorder) insert(entries []Entry) (err error) {
	conn, err := r.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("audit: take connection: %w", err)
	}
	defer r.pool.Put(conn)

	endTransaction, err := sqlitex.ImmediateTransaction(conn)
	if err != nil {
		return fmt.Errorf("audit: begin transaction: %w", err)
	}
	defer endTransaction(&err)

	for i := range entries {
		entry := &entries[i]
		err = sqlitex.Execute(conn, `INSERT INTO decisions
			(at, component, kind, resource, decision, reason, rule)
			VALUES (?, ?, ?, ?, ?, ?, ?)`, &sqlitex.ExecOptions{
			Args: []any{
				entry.Time.UnixMilli(),
				entry.Component,
				entry.Kind,
				entry.Resource,
				entry.Decision,
				entry.Reason,
				entry.Rule,
			},
		})
		if err != nil {
			return fmt.Errorf("audit: insert decision: %w", err)
		}
	}
	return nil
}
