// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package server

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/ashgrove/historyd/internal/admission"
	"github.com/ashgrove/historyd/internal/store"
)

// Supervisor owns the accept loop, the worker registry, and the single
// lock shared by every worker's commit-then-streamback. It holds no
// package-level mutable state: every instance is an explicit value,
// constructed by the caller and torn down by cancelling its context.
type Supervisor struct {
	listen  string
	store   store.BackingStore
	limiter *admission.Limiter
	log     *slog.Logger
	metrics MetricsRecorder

	historyLock *sync.Mutex
	registry    *Registry
}

// NewSupervisor builds a Supervisor that will listen on listen and commit
// packets to st, serializing every commit-then-streamback under lock.
// limiter and metrics may both be nil. lock is shared with any other
// writer of st (e.g. a timestamp injector) so their writes never
// interleave with a worker's commit.
func NewSupervisor(listen string, st store.BackingStore, lock *sync.Mutex, limiter *admission.Limiter, log *slog.Logger, metrics MetricsRecorder) *Supervisor {
	return &Supervisor{
		listen:      listen,
		store:       st,
		historyLock: lock,
		limiter:     limiter,
		log:         log,
		metrics:     metrics,
		registry:    NewRegistry(),
	}
}

// Registry exposes the live-worker registry for observability endpoints.
func (s *Supervisor) Registry() *Registry { return s.registry }

// Run opens the listener and serves until ctx is cancelled or a fatal
// accept error occurs.
func (s *Supervisor) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.listen)
	if err != nil {
		return fmt.Errorf("listening on %s: %w", s.listen, err)
	}
	return s.RunWithListener(ctx, ln)
}

// RunWithListener serves on an already-open listener, closing it on
// return. Accept failures caused by shutdown are not errors; any other
// accept failure is fatal and returned immediately — there is no
// consecutive-error backoff, per the stricter accept policy this service
// follows.
func (s *Supervisor) RunWithListener(ctx context.Context, ln net.Listener) error {
	defer ln.Close()

	go func() {
		<-ctx.Done()
		s.log.Info("shutting down, closing listener")
		ln.Close()
	}()

	s.log.Info("listening", "address", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			select {
			case <-ctx.Done():
				s.log.Info("waiting for live connections to drain")
				s.registry.Wait()
				s.log.Info("shutdown complete")
				return nil
			default:
				return fmt.Errorf("accept: %w", err)
			}
		}

		if !s.limiter.Allow() {
			s.log.Warn("rejecting connection, admission limit exceeded", "remote_addr", conn.RemoteAddr().String())
			if s.metrics != nil {
				s.metrics.RecordRejected()
			}
			conn.Close()
			continue
		}
		if s.metrics != nil {
			s.metrics.RecordAccepted()
		}

		id := uuid.NewString()
		worker := NewClientWorker(id, conn, s.store, s.historyLock, s.log, s.metrics)
		s.registry.Spawn(ctx, worker)
	}
}
