// Copyright 2026 The Enclave Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"bytes"
	"log/slog"
	"sync"
)

// logWriter forwards a guest output stream to the host logger one
// line at a time. Partial lines are buffered until their newline
// arrives; wazero hands the writer whatever chunks the guest flushes.
type logWriter struct {
	log    *slog.Logger
	id     string
	stream string

	mu      sync.Mutex
	pending bytes.Buffer
}

func newLogWriter(log *slog.Logger, id, stream string) *logWriter {
	return &logWriter{log: log, id: id, stream: stream}
}

func (w *logWriter) Write(p []byte) (int, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.pending.Write(p)
	for {
		line, err := w.pending.ReadString('\n')
		if err != nil {
			// No newline yet; keep the partial line for the next
			// write.
			w.pending.WriteString(line)
			break
		}
		w.emit(line[:len(line)-1])
	}
	return len(p), nil
}

func (w *logWriter) emit(line string) {
	if line == "" {
		return
	}
	w.log.Info(line, "component", w.id, "stream", w.stream)
}
