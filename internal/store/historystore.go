// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package store

import (
	"io"
	"sync"

	"github.com/ashgrove/historyd/internal/history"
)

// EvictFunc is invoked synchronously from within HistoryStore.Append, with
// the store's lock held, whenever Append evicts the oldest entry to make
// room for a new one. The callback receives
// ownership of the evicted bytes and must not retain a reference into the
// CircularHistory itself.
type EvictFunc func(evicted []byte)

// HistoryStore is a BackingStore over a fixed-capacity CircularHistory: one
// entry per Append, streamed back by walking entries via FindByOffset.
type HistoryStore struct {
	mu      sync.Mutex
	hist    *history.CircularHistory
	onEvict EvictFunc
	closed  bool
}

// NewHistoryStore wraps hist as a BackingStore. onEvict may be nil.
func NewHistoryStore(hist *history.CircularHistory, onEvict EvictFunc) *HistoryStore {
	return &HistoryStore{hist: hist, onEvict: onEvict}
}

// Append adds data as one new CircularHistory entry.
func (s *HistoryStore) Append(data []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	evicted, ok := s.hist.Append(history.NewEntry(data))
	if ok && s.onEvict != nil {
		s.onEvict(evicted.Bytes())
	}
	return int64(len(data)), nil
}

// Stream copies up to maxLen bytes starting at offset into dst, walking
// entries and re-querying FindByOffset after each one until the request is
// satisfied or the history ends.
func (s *HistoryStore) Stream(offset, maxLen int64, dst io.Writer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	var delivered int64
	for delivered < maxLen {
		entry, byteOffset, ok := s.hist.FindByOffset(offset + delivered)
		if !ok {
			break
		}
		chunk := entry.Bytes()[byteOffset:]
		remaining := maxLen - delivered
		if int64(len(chunk)) > remaining {
			chunk = chunk[:remaining]
		}
		n, err := dst.Write(chunk)
		delivered += int64(n)
		if err != nil {
			return delivered, err
		}
		if int64(n) < int64(len(chunk)) {
			// short write with no error: stop, caller sees a partial stream.
			break
		}
	}
	return delivered, nil
}

// TotalSize returns the store's current logical size.
func (s *HistoryStore) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hist.TotalSize()
}

// Close releases the underlying history. Idempotent.
func (s *HistoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.hist.FreeAll()
	s.closed = true
	return nil
}
