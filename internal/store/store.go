// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

// Package store defines the abstract backing-store contract and its two
// concrete realisations: a memory-mapped file store and a history-backed
// store built directly on internal/history.
package store

import (
	"errors"
	"io"
)

// ErrClosed is returned by operations attempted after Close.
var ErrClosed = errors.New("store: closed")

// BackingStore is the abstract sink every ClientWorker commits packets to
// and streams history back from. Implementations must make Append and
// Stream individually atomic; the caller is responsible for holding any
// coarser lock needed to make an Append+Stream pair appear atomic to other
// clients (see server.Supervisor's history lock).
type BackingStore interface {
	// Append atomically extends the logical content by data and returns the
	// number of bytes added.
	Append(data []byte) (delta int64, err error)

	// Stream writes up to maxLen bytes starting at offset to dst and returns
	// the number of bytes actually delivered.
	Stream(offset, maxLen int64, dst io.Writer) (n int64, err error)

	// TotalSize returns the current logical size of the store.
	TotalSize() int64

	// Close releases any resources (file descriptors, mappings) held by the
	// store. It is idempotent.
	Close() error
}
