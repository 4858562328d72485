// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package server implements the connection lifecycle: a worker per
// connection, a registry tracking live workers, and a supervisor running
// the accept loop.
package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/ashgrove/historyd/internal/protocol"
	"github.com/ashgrove/historyd/internal/store"
)

// workerState names the stages a ClientWorker moves through. It exists for
// observability (logging, registry introspection); the control flow itself
// is plain sequential Go, not an explicit state table.
type workerState string

const (
	stateReading    workerState = "reading"
	stateCommitting workerState = "committing"
	stateStreaming  workerState = "streaming"
	stateClosing    workerState = "closing"
	stateTerminated workerState = "terminated"
)

// MetricsRecorder receives lifecycle events for observability. A nil
// MetricsRecorder is valid: every call site on it is guarded.
type MetricsRecorder interface {
	RecordAccepted()
	RecordRejected()
	RecordCommit()
	RecordStreamed(n int64)
}

// ClientWorker drives one connection's lifecycle: read exactly one
// newline-terminated packet, commit it to the store, stream the store's
// entire contents back, close. Append and Stream run under a lock shared
// across all workers so that a commit is never interleaved with another
// worker's read of the store.
type ClientWorker struct {
	id      string
	conn    net.Conn
	store   store.BackingStore
	lock    *sync.Mutex
	log     *slog.Logger
	metrics MetricsRecorder

	mu    sync.Mutex
	state workerState
}

// NewClientWorker builds a worker for conn. lock must be shared by every
// worker reading from or writing to st. metrics may be nil.
func NewClientWorker(id string, conn net.Conn, st store.BackingStore, lock *sync.Mutex, log *slog.Logger, metrics MetricsRecorder) *ClientWorker {
	return &ClientWorker{
		id:      id,
		conn:    conn,
		store:   st,
		lock:    lock,
		log:     log.With("worker_id", id, "remote_addr", conn.RemoteAddr().String()),
		metrics: metrics,
		state:   stateReading,
	}
}

// State reports the worker's current lifecycle stage.
func (w *ClientWorker) State() workerState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

func (w *ClientWorker) setState(s workerState) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

// Run executes the worker's lifecycle to completion. It always closes the
// connection before returning, and returns only once the connection is
// fully torn down (state Terminated). ctx cancellation unblocks a pending
// read or write by closing the connection out from under it.
func (w *ClientWorker) Run(ctx context.Context) {
	defer func() {
		w.setState(stateClosing)
		w.conn.Close()
		w.setState(stateTerminated)
	}()

	unblock := make(chan struct{})
	defer close(unblock)
	go func() {
		select {
		case <-ctx.Done():
			w.conn.Close()
		case <-unblock:
		}
	}()

	w.setState(stateReading)
	reader := protocol.NewPacketReader()
	packet, err := reader.ReadOne(w.conn)
	if err != nil {
		if errors.Is(err, io.EOF) {
			// Client disconnected mid-packet: nothing to commit.
			w.log.Debug("connection closed before newline, no commit")
			return
		}
		w.log.Warn("reading packet", "error", err)
		return
	}

	w.setState(stateCommitting)
	w.lock.Lock()
	if _, err := w.store.Append(packet); err != nil {
		w.lock.Unlock()
		w.log.Error("appending packet", "error", err)
		return
	}
	if w.metrics != nil {
		w.metrics.RecordCommit()
	}

	w.setState(stateStreaming)
	total := w.store.TotalSize()
	n, err := w.store.Stream(0, total, w.conn)
	w.lock.Unlock()
	if err != nil {
		w.log.Warn("streaming response", "error", err)
		return
	}
	if w.metrics != nil {
		w.metrics.RecordStreamed(n)
	}

	w.log.Debug("connection handled", "bytes_appended", len(packet), "bytes_streamed", n)
}
