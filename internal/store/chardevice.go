// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package store

import (
	"fmt"
	"io"
	"os"
	"sync"
)

// CharDeviceStore is a minimal BackingStore over a character device node
// (e.g. /dev/aesdchar). It writes one full packet per Append and streams via
// sequential reads from the device, not via memory mapping.
//
// The device owns its own internal history and eviction policy; this store
// only forwards bytes to and from it and does not interpret or reconstruct
// evicted content itself.
type CharDeviceStore struct {
	mu     sync.Mutex
	path   string
	dev    *os.File
	size   int64
	closed bool
}

// NewCharDeviceStore opens the device node at path for reading and writing.
func NewCharDeviceStore(path string) (*CharDeviceStore, error) {
	dev, err := os.OpenFile(path, os.O_RDWR, 0)
	if err != nil {
		return nil, fmt.Errorf("opening character device %s: %w", path, err)
	}
	return &CharDeviceStore{path: path, dev: dev}, nil
}

// Append writes data to the device in full, looping on short writes.
func (s *CharDeviceStore) Append(data []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	written := 0
	for written < len(data) {
		n, err := s.dev.Write(data[written:])
		written += n
		if err != nil {
			return int64(written), fmt.Errorf("writing to character device: %w", err)
		}
	}
	s.size += int64(written)
	return int64(written), nil
}

// Stream seeks the device back to its start and reads sequentially from
// there, copying up to maxLen bytes to dst. offset is accepted for
// interface compatibility but is not separately seekable on this backend;
// the device itself governs what bytes a read returns after eviction.
func (s *CharDeviceStore) Stream(offset, maxLen int64, dst io.Writer) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	if _, err := s.dev.Seek(0, io.SeekStart); err != nil {
		return 0, fmt.Errorf("seeking character device: %w", err)
	}

	n, err := io.CopyN(dst, s.dev, maxLen)
	if err == io.EOF {
		err = nil
	}
	if err != nil {
		return n, fmt.Errorf("streaming from character device: %w", err)
	}
	return n, nil
}

// TotalSize returns the cumulative bytes appended since this store was
// opened.
func (s *CharDeviceStore) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Close closes the device descriptor. Idempotent.
func (s *CharDeviceStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true
	return s.dev.Close()
}
