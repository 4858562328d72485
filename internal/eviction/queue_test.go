// Copyright (c) 2025 Nishisan. All rights reserved.
// Use of this source code is governed by the N-Backup License (Non-Commercial Evaluation)
// that can be found in the LICENSE file.

package eviction

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeSink struct {
	mu  sync.Mutex
	got [][]byte
}

func (f *fakeSink) Put(_ context.Context, data []byte) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := append([]byte(nil), data...)
	f.got = append(f.got, cp)
	return nil
}

func (f *fakeSink) entries() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.got...)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestQueueArchivesPushedEntries(t *testing.T) {
	sink := &fakeSink{}
	q := NewQueue(sink, 0, 8, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	go q.Run(ctx)
	defer cancel()

	q.Push([]byte("one"))
	q.Push([]byte("two"))

	require.NoError(t, q.Flush(time.Second))
	require.ElementsMatch(t, [][]byte{[]byte("one"), []byte("two")}, sink.entries())

	stats := q.Stats()
	require.Equal(t, int64(2), stats.TotalPushed)
	require.Equal(t, int64(2), stats.TotalDrained)
}

func TestQueueDropsWhenByteBudgetExceeded(t *testing.T) {
	sink := &fakeSink{}
	q := NewQueue(sink, 4, 8, discardLogger())

	q.Push([]byte("this is too big to fit"))

	stats := q.Stats()
	require.Equal(t, int64(1), stats.TotalDropped)
	require.Equal(t, int64(0), stats.TotalPushed)
}

func TestQueueDrainsRemainingEntriesOnShutdown(t *testing.T) {
	sink := &fakeSink{}
	q := NewQueue(sink, 0, 8, discardLogger())

	ctx, cancel := context.WithCancel(context.Background())
	q.Push([]byte("pending"))
	cancel()
	q.Run(ctx) // with ctx already cancelled, drains synchronously then returns

	require.Len(t, sink.entries(), 1)
}
