// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package store

import (
	"fmt"
	"io"
	"os"
	"sync"

	"golang.org/x/sys/unix"
)

// FileStore is a BackingStore backed by a memory-mapped regular file. The
// file is opened read-write, page-aligned, and remapped (in place when the
// kernel can, otherwise moved) whenever an Append would overflow it. The mapping and file
// descriptor are released, and the file unlinked, only on Close.
type FileStore struct {
	mu       sync.Mutex
	path     string
	file     *os.File
	mapping  []byte // current mmap, length is a multiple of pageSize
	size     int64  // logical size (<= len(mapping))
	pageSize int64
	closed   bool
}

// NewFileStore opens (creating if necessary) path and maps it into memory.
// If preallocate is positive, the file's mapping is pre-extended to at
// least that many bytes at open time, ahead of the first Append that would
// otherwise trigger the growth.
func NewFileStore(path string, preallocate int64) (*FileStore, error) {
	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("opening backing file: %w", err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("statting backing file: %w", err)
	}

	pageSize := int64(os.Getpagesize())
	size := info.Size()
	mapSize := pageMultiple(size, pageSize)
	if preallocate > mapSize {
		mapSize = pageMultiple(preallocate, pageSize)
	}

	if err := f.Truncate(mapSize); err != nil {
		f.Close()
		return nil, fmt.Errorf("truncating backing file: %w", err)
	}

	var mapping []byte
	if mapSize > 0 {
		mapping, err = unix.Mmap(int(f.Fd()), 0, int(mapSize), unix.PROT_READ|unix.PROT_WRITE, unix.MAP_SHARED)
		if err != nil {
			f.Close()
			return nil, fmt.Errorf("mapping backing file: %w", err)
		}
	}

	return &FileStore{
		path:     path,
		file:     f,
		mapping:  mapping,
		size:     size,
		pageSize: pageSize,
	}, nil
}

func pageMultiple(n, pageSize int64) int64 {
	return (n/pageSize + 1) * pageSize
}

// Append extends the file by data, growing (and remapping) the mapping if
// necessary.
func (s *FileStore) Append(data []byte) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return 0, ErrClosed
	}

	need := s.size + int64(len(data))
	if need > int64(len(s.mapping)) {
		newMapSize := pageMultiple(need, s.pageSize)
		if err := s.file.Truncate(newMapSize); err != nil {
			return 0, fmt.Errorf("extending backing file: %w", err)
		}
		remapped, err := unix.Mremap(s.mapping, int(newMapSize), unix.MREMAP_MAYMOVE)
		if err != nil {
			return 0, fmt.Errorf("remapping backing file: %w", err)
		}
		s.mapping = remapped
	}

	copy(s.mapping[s.size:need], data)
	s.size = need
	return int64(len(data)), nil
}

// Stream writes up to maxLen bytes starting at offset to dst directly from
// the mapping.
func (s *FileStore) Stream(offset, maxLen int64, dst io.Writer) (int64, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return 0, ErrClosed
	}
	if offset < 0 || offset >= s.size || maxLen <= 0 {
		s.mu.Unlock()
		return 0, nil
	}
	end := offset + maxLen
	if end > s.size {
		end = s.size
	}
	chunk := make([]byte, end-offset)
	copy(chunk, s.mapping[offset:end])
	s.mu.Unlock()

	n, err := dst.Write(chunk)
	return int64(n), err
}

// TotalSize returns the current logical size of the backing file.
func (s *FileStore) TotalSize() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.size
}

// Close unmaps the file, closes its descriptor, and unlinks the path.
func (s *FileStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil
	}
	s.closed = true

	var firstErr error
	if len(s.mapping) > 0 {
		if err := unix.Munmap(s.mapping); err != nil {
			firstErr = fmt.Errorf("unmapping backing file: %w", err)
		}
	}
	if err := s.file.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("closing backing file: %w", err)
	}
	if err := os.Remove(s.path); err != nil && firstErr == nil && !os.IsNotExist(err) {
		firstErr = fmt.Errorf("unlinking backing file: %w", err)
	}
	return firstErr
}
